package util

import "time"

// DateLayout is the calendar-date key format used across documents.
const DateLayout = "2006-01-02"

// DateKey returns the UTC calendar date of t as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDateKey parses a YYYY-MM-DD key as midnight UTC.
func ParseDateKey(s string) (time.Time, error) {
	return time.Parse(DateLayout, s)
}

// DaysBefore returns the instant exactly days calendar days before now.
func DaysBefore(now time.Time, days int) time.Time {
	return now.AddDate(0, 0, -days)
}
