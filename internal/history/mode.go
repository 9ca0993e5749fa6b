package history

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrInvalidMode is returned for arguments other than max, latest or YYYY-MM.
var ErrInvalidMode = errors.New("invalid mode")

// Mode selects which months a run fetches.
type Mode struct {
	Name string

	// Start and End bound the fetch. Both are zero for full history; End is
	// zero for "up to now".
	Start time.Time
	End   time.Time

	// Update merges into the existing file instead of replacing it.
	Update bool
}

// Full reports whether the mode fetches the whole history.
func (m Mode) Full() bool {
	return m.Start.IsZero()
}

// ParseMode interprets a run argument relative to now.
func ParseMode(arg string, now time.Time) (Mode, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))

	switch arg {
	case "max":
		return Mode{Name: arg}, nil
	case "latest":
		start := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		return Mode{Name: arg, Start: start, Update: true}, nil
	}

	month, err := time.Parse("2006-01", arg)
	if err != nil {
		return Mode{}, fmt.Errorf("%w %q: use max, latest or YYYY-MM", ErrInvalidMode, arg)
	}
	return Mode{
		Name:   arg,
		Start:  month,
		End:    month.AddDate(0, 1, -1),
		Update: true,
	}, nil
}
