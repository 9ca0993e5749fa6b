package fetch

import (
	"bytes"
	"fmt"
	"io"
	"mime"
	"strings"

	"golang.org/x/text/encoding/htmlindex"
	"golang.org/x/text/transform"
)

// DecodeBody converts body to UTF-8 using the charset named in contentType.
// Bodies without a charset, or already in UTF-8, are returned unchanged.
func DecodeBody(body []byte, contentType string) (string, error) {
	charset := charsetOf(contentType)
	if charset == "" || charset == "utf-8" || charset == "utf8" {
		return string(body), nil
	}

	enc, err := htmlindex.Get(charset)
	if err != nil {
		// Unknown labels are served as-is rather than failing the page.
		return string(body), nil
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(body), enc.NewDecoder()))
	if err != nil {
		return "", fmt.Errorf("decode %s body: %w", charset, err)
	}
	return string(decoded), nil
}

func charsetOf(contentType string) string {
	if contentType == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	return strings.ToLower(strings.TrimSpace(params["charset"]))
}
