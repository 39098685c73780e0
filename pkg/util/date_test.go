package util

import (
	"testing"
	"time"
)

func TestDateRangeFrequencies(t *testing.T) {
	now := time.Date(2024, 3, 15, 18, 30, 0, 0, time.UTC)
	cases := map[string]string{
		"1d": "2024-03-14",
		"1w": "2024-03-08",
		"1m": "2024-02-15",
		"1y": "2023-03-15",
	}
	for freq, wantStart := range cases {
		start, end, err := DateRange(freq, now)
		if err != nil {
			t.Fatalf("%s: unexpected error %v", freq, err)
		}
		if end != "2024-03-15" {
			t.Fatalf("%s: end should be today, got %s", freq, end)
		}
		if start != wantStart {
			t.Fatalf("%s: start %s, want %s", freq, start, wantStart)
		}
		if start >= end {
			t.Fatalf("%s: start %s not before end %s", freq, start, end)
		}
	}
}

func TestDateRangeUsesUTCDate(t *testing.T) {
	loc := time.FixedZone("UTC+9", 9*60*60)
	now := time.Date(2024, 1, 1, 3, 0, 0, 0, loc) // 2023-12-31 18:00 UTC
	start, end, err := DateRange("1d", now)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if end != "2023-12-31" || start != "2023-12-30" {
		t.Fatalf("unexpected range %s..%s", start, end)
	}
}

func TestDateRangeMonthOverflow(t *testing.T) {
	// calendar arithmetic normalizes Feb 31 to Mar 2 (leap year), still before end
	now := time.Date(2024, 3, 31, 12, 0, 0, 0, time.UTC)
	start, end, err := DateRange("1m", now)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if start != "2024-03-02" || end != "2024-03-31" {
		t.Fatalf("unexpected range %s..%s", start, end)
	}
}

func TestDateRangeUnknownFrequency(t *testing.T) {
	if _, _, err := DateRange("5m", time.Now()); err == nil {
		t.Fatalf("expected error")
	}
}

func TestParseDate(t *testing.T) {
	got, ok := ParseDate("2024-10-10")
	if !ok {
		t.Fatalf("expected ok")
	}
	if got.Year() != 2024 || got.Month() != time.October || got.Day() != 10 {
		t.Fatalf("unexpected date %v", got)
	}
	if _, ok := ParseDate("10/10/2024"); ok {
		t.Fatalf("expected failure")
	}
}

func TestParseIntDefault(t *testing.T) {
	if ParseIntDefault("", 7) != 7 || ParseIntDefault("x", 7) != 7 || ParseIntDefault(" 3 ", 7) != 3 {
		t.Fatalf("unexpected parse")
	}
}
