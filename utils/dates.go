package utils

import "time"

// AddMonths advances t by the given number of calendar months, preserving
// the day-of-month and clamping to the last valid day when the target month
// is shorter: Jan 31 + 1 month is Feb 28 (29 in leap years), not Mar 3.
// Refill due dates depend on this exact behavior.
func AddMonths(t time.Time, months int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	firstOfTarget := time.Date(year, month+time.Month(months), 1, 0, 0, 0, 0, t.Location())
	lastDay := firstOfTarget.AddDate(0, 1, -1).Day()
	if day > lastDay {
		day = lastDay
	}

	return time.Date(firstOfTarget.Year(), firstOfTarget.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}
