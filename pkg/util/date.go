package util

import (
	"fmt"
	"time"
)

// DateLayout is the calendar date format used by the FRED API.
const DateLayout = "2006-01-02"

// DateRange computes the observation window for a lookback frequency.
// End is the UTC calendar date of now; start is end minus one day, seven
// days, one calendar month or one calendar year.
func DateRange(frequency string, now time.Time) (start, end string, err error) {
	today := now.UTC()
	today = time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, time.UTC)

	var from time.Time
	switch frequency {
	case "1d":
		from = today.AddDate(0, 0, -1)
	case "1w":
		from = today.AddDate(0, 0, -7)
	case "1m":
		from = today.AddDate(0, -1, 0)
	case "1y":
		from = today.AddDate(-1, 0, 0)
	default:
		return "", "", fmt.Errorf("unsupported frequency %q", frequency)
	}
	return FormatDate(from), FormatDate(today), nil
}

// FormatDate formats t as YYYY-MM-DD.
func FormatDate(t time.Time) string { return t.Format(DateLayout) }

// ParseDate parses a YYYY-MM-DD string. Returns (t, true) if it worked.
func ParseDate(s string) (time.Time, bool) {
	if s == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
