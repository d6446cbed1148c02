// Package dates parses the loosely formatted opening dates found across
// discovery sources and provides the lookback-window arithmetic for
// "recently opened" cutoffs.
package dates

import (
	"strings"
	"time"
)

// Layouts is the fixed priority order for opening-date parsing, most
// specific first. The first matching layout wins, so a value matching
// several layouts always resolves the same way.
var Layouts = []string{
	"2006-01-02",
	"2006/01/02",
	"2006.01.02",
	"2006-01",
	"2006/01",
	"2006.01",
	"2006",
}

// ParseOpeningDate parses a raw opening-date value. ISO-like values with a
// time component are reduced to their date part first. Range values like
// "2025-06-01/2025-06-30" resolve to the start of the range. Returns nil
// when no layout matches.
func ParseOpeningDate(raw string) *time.Time {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil
	}

	// Normalize common ISO-like formats carrying a time.
	raw = strings.ReplaceAll(raw, "T", " ")
	if i := strings.IndexByte(raw, ' '); i >= 0 {
		raw = raw[:i]
	}

	if d := parseLayouts(raw); d != nil {
		return d
	}

	// Ranges like "2025-06-01/2025-06-30": take the start.
	if i := strings.IndexByte(raw, '/'); i >= 0 {
		return parseLayouts(strings.TrimSpace(raw[:i]))
	}

	return nil
}

func parseLayouts(raw string) *time.Time {
	for _, layout := range Layouts {
		if d, err := time.Parse(layout, raw); err == nil {
			return &d
		}
	}
	return nil
}

// SubtractMonths walks back the given number of calendar months, clamping
// the day to the target month's last day so e.g. Mar 31 minus one month is
// Feb 28 rather than an overflow into March.
func SubtractMonths(date time.Time, months int) time.Time {
	year, month := date.Year(), int(date.Month())-months
	for month <= 0 {
		month += 12
		year--
	}
	day := date.Day()
	if last := lastDayOfMonth(year, time.Month(month)); day > last {
		day = last
	}
	return time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)
}

func lastDayOfMonth(year int, month time.Month) int {
	first := time.Date(year, month, 1, 0, 0, 0, 0, time.UTC)
	return first.AddDate(0, 1, -1).Day()
}
