package notify

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net"
	"net/http"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/rickgao/market-etl/internal/config"
	"github.com/rickgao/market-etl/internal/fetch"
)

// ResendURL is the Resend send-email endpoint.
const ResendURL = "https://api.resend.com/emails"

// Mailer sends plain-text alert emails.
type Mailer interface {
	Send(ctx context.Context, subject, body string) error
}

// NewMailer picks a transport from cfg: Resend when an API key is set,
// SMTP when a user and password are set. Without credentials the returned
// Mailer only logs a warning.
func NewMailer(cfg config.MailConfig, httpClient *fetch.Client, logger *slog.Logger) Mailer {
	if logger == nil {
		logger = slog.Default()
	}
	switch {
	case cfg.ResendAPIKey != "" && cfg.From != "" && cfg.To != "":
		return &ResendMailer{
			URL:    ResendURL,
			APIKey: cfg.ResendAPIKey,
			From:   cfg.From,
			To:     cfg.To,
			http:   httpClient,
		}
	case cfg.User != "" && cfg.Password != "":
		return &SMTPMailer{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.User,
			Password: cfg.Password,
			From:     cfg.From,
			To:       cfg.To,
		}
	default:
		return disabledMailer{logger: logger}
	}
}

// Alert sends an email and logs the outcome. Errors are not returned.
func Alert(ctx context.Context, m Mailer, logger *slog.Logger, subject, body string) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := m.Send(ctx, subject, body); err != nil {
		logger.Error("failed to send alert email", "subject", subject, "error", err)
		return
	}
	if _, ok := m.(disabledMailer); !ok {
		logger.Info("alert email sent", "subject", subject)
	}
}

type disabledMailer struct {
	logger *slog.Logger
}

func (d disabledMailer) Send(_ context.Context, subject, _ string) error {
	d.logger.Warn("mail credentials missing, cannot send email", "subject", subject)
	return nil
}

// SMTPMailer sends through an SMTP server with STARTTLS and PLAIN auth.
type SMTPMailer struct {
	Host     string
	Port     int
	User     string
	Password string
	From     string
	To       string
	Timeout  time.Duration // Dial timeout (default: 30s)
}

// Send delivers one message.
func (m *SMTPMailer) Send(ctx context.Context, subject, body string) error {
	from := m.From
	if from == "" {
		from = m.User
	}
	to := m.To
	if to == "" {
		to = m.User
	}
	timeout := m.Timeout
	if timeout == 0 {
		timeout = 30 * time.Second
	}

	addr := net.JoinHostPort(m.Host, strconv.Itoa(m.Port))
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("dial %s: %w", addr, err)
	}
	if deadline, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(deadline)
	}

	c, err := smtp.NewClient(conn, m.Host)
	if err != nil {
		conn.Close()
		return fmt.Errorf("smtp handshake: %w", err)
	}
	defer c.Close()

	if err := c.StartTLS(&tls.Config{ServerName: m.Host}); err != nil {
		return fmt.Errorf("starttls: %w", err)
	}
	if err := c.Auth(smtp.PlainAuth("", m.User, m.Password, m.Host)); err != nil {
		return fmt.Errorf("smtp auth: %w", err)
	}
	if err := c.Mail(from); err != nil {
		return fmt.Errorf("smtp mail from: %w", err)
	}
	if err := c.Rcpt(to); err != nil {
		return fmt.Errorf("smtp rcpt to: %w", err)
	}

	w, err := c.Data()
	if err != nil {
		return fmt.Errorf("smtp data: %w", err)
	}
	if _, err := w.Write(BuildMessage(from, to, subject, body)); err != nil {
		w.Close()
		return fmt.Errorf("write message: %w", err)
	}
	if err := w.Close(); err != nil {
		return fmt.Errorf("close message: %w", err)
	}
	return c.Quit()
}

// BuildMessage renders a UTF-8 plain-text message with CRLF line endings.
func BuildMessage(from, to, subject, body string) []byte {
	var b strings.Builder
	b.WriteString("From: " + from + "\r\n")
	b.WriteString("To: " + to + "\r\n")
	b.WriteString("Subject: " + mime.QEncoding.Encode("utf-8", subject) + "\r\n")
	b.WriteString("Date: " + time.Now().Format(time.RFC1123Z) + "\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=\"utf-8\"\r\n")
	b.WriteString("Content-Transfer-Encoding: 8bit\r\n")
	b.WriteString("\r\n")
	body = strings.ReplaceAll(body, "\r\n", "\n")
	b.WriteString(strings.ReplaceAll(body, "\n", "\r\n"))
	return []byte(b.String())
}

// ResendMailer sends through the Resend HTTP API.
type ResendMailer struct {
	URL    string
	APIKey string
	From   string
	To     string

	http *fetch.Client
}

// NewResendMailer creates a Resend mailer posting to apiURL.
func NewResendMailer(apiURL, apiKey, from, to string, httpClient *fetch.Client) *ResendMailer {
	return &ResendMailer{URL: apiURL, APIKey: apiKey, From: from, To: to, http: httpClient}
}

type resendRequest struct {
	From    string   `json:"from"`
	To      []string `json:"to"`
	Subject string   `json:"subject"`
	Text    string   `json:"text"`
}

// Send delivers one message.
func (m *ResendMailer) Send(ctx context.Context, subject, body string) error {
	if m.APIKey == "" || m.From == "" || m.To == "" {
		return errors.New("resend: missing api key, from or to address")
	}

	payload, err := json.Marshal(resendRequest{
		From:    m.From,
		To:      []string{m.To},
		Subject: subject,
		Text:    body,
	})
	if err != nil {
		return fmt.Errorf("encode email: %w", err)
	}

	_, err = m.http.Do(ctx, fetch.Request{
		Method:      http.MethodPost,
		URL:         m.URL,
		Body:        payload,
		ContentType: "application/json",
		Header:      http.Header{"Authorization": []string{"Bearer " + m.APIKey}},
	})
	if err != nil {
		return fmt.Errorf("resend: %w", err)
	}
	return nil
}
