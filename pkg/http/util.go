package http

import (
	"time"

	xutil "ChartDash/pkg/util"
)

// ParseIntDefault parses string to int or returns default if empty/invalid.
func ParseIntDefault(s string, def int) int { return xutil.ParseIntDefault(s, def) }

// ParseDate parses a YYYY-MM-DD date. Returns (t, true) if it worked.
func ParseDate(s string) (time.Time, bool) { return xutil.ParseDate(s) }
