package util

import (
	"strings"
	"time"
)

// Layouts accepted for raw observation dates, tried in order.
var dateLayouts = []string{
	"2006-01-02",
	time.RFC3339,
	time.RFC3339Nano,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006/01/02",
	"01/02/2006",
	"2006-01",
	"20060102",
}

// ParseDate tries the known date layouts and returns the calendar day in UTC.
func ParseDate(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return DayStart(t), true
		}
	}
	return time.Time{}, false
}

// ParseDateDefault parses a date or returns def if empty/invalid.
func ParseDateDefault(s string, def time.Time) time.Time {
	if t, ok := ParseDate(s); ok {
		return t
	}
	return def
}

// DayStart drops the clock part, keeping the calendar day as seen in t's location.
func DayStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// MonthStart returns the first day of t's month (UTC).
func MonthStart(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC)
}

// MonthEnd returns the last calendar day of t's month (UTC).
func MonthEnd(t time.Time) time.Time {
	return MonthStart(t).AddDate(0, 1, -1)
}

// AddMonths shifts a month-start date by n months.
func AddMonths(t time.Time, n int) time.Time {
	return MonthStart(t).AddDate(0, n, 0)
}

// MonthsBetween counts whole months from a to b (b after a gives a positive number).
func MonthsBetween(a, b time.Time) int {
	return (b.Year()-a.Year())*12 + int(b.Month()) - int(a.Month())
}

// DaysBetween returns the number of calendar days from a to b.
func DaysBetween(a, b time.Time) int {
	return int(DayStart(b).Sub(DayStart(a)).Hours() / 24)
}

// RunStamp formats the stamp used in output file names (YYYYMMDD).
func RunStamp(t time.Time) string {
	return t.Format("20060102")
}

// ArchiveStamp formats the archive folder name (YYYY-MM-DD).
func ArchiveStamp(t time.Time) string {
	return t.Format("2006-01-02")
}

// FormatMonth renders a month label as YYYY-MM-01.
func FormatMonth(t time.Time) string {
	return MonthStart(t).Format("2006-01-02")
}
