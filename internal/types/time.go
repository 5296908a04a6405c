package types

import "time"

// DateLayout is the wire format for calendar days
const DateLayout = "2006-01-02"

func ParseTime(t string) (time.Time, error) {
	return time.Parse(time.RFC3339, t)
}

func FormatTime(t time.Time) string {
	return t.Format(time.RFC3339)
}

// ParseDate parses a YYYY-MM-DD calendar day at midnight UTC
func ParseDate(d string) (time.Time, error) {
	return time.Parse(DateLayout, d)
}

func FormatDate(t time.Time) string {
	return t.Format(DateLayout)
}
