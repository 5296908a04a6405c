package types

import (
	"time"
)

// StartOfDay truncates t to midnight in t's own location
func StartOfDay(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}

// SameDay reports whether a and b fall on the same calendar day.
// Each value is read in its own location.
func SameDay(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return ay == by && am == bm && ad == bd
}

// DaysInMonth returns the number of days of the given month
func DaysInMonth(year int, month time.Month, loc *time.Location) int {
	firstOfNextMonth := time.Date(year, month+1, 1, 0, 0, 0, 0, loc)
	return firstOfNextMonth.AddDate(0, 0, -1).Day()
}

// AddMonthsClamped moves t by the given number of months and pins the result
// to the requested day of month. Days past the end of the target month are
// clamped to its last day, so day 31 in February lands on the 28th or 29th.
// The result is a calendar date at midnight in t's location.
func AddMonthsClamped(t time.Time, months int, day int) time.Time {
	y, m, _ := t.Date()

	newY := y
	newM := int(m) + months

	// normalise into 1..12 carrying whole years
	for newM > 12 {
		newM -= 12
		newY++
	}
	for newM < 1 {
		newM += 12
		newY--
	}

	lastDay := DaysInMonth(newY, time.Month(newM), t.Location())
	if day > lastDay {
		day = lastDay
	}

	return time.Date(newY, time.Month(newM), day, 0, 0, 0, 0, t.Location())
}

// CalendarBefore reports whether a's calendar day precedes b's.
// Each value is read in its own location.
func CalendarBefore(a, b time.Time) bool {
	ay, am, ad := a.Date()
	by, bm, bd := b.Date()
	return time.Date(ay, am, ad, 0, 0, 0, 0, time.UTC).Before(time.Date(by, bm, bd, 0, 0, 0, 0, time.UTC))
}
