package timeutil

import "time"

// DayWindow returns the [start, end) bounds of the UTC civil day
// containing t. All "today" comparisons in the portal use this window
// so that stored timestamps and boundaries share one time basis.
func DayWindow(t time.Time) (start, end time.Time) {
	u := t.UTC()
	start = time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
	return start, start.Add(24 * time.Hour)
}

// SameDay reports whether a falls within the UTC civil day of ref.
func SameDay(a, ref time.Time) bool {
	start, end := DayWindow(ref)
	au := a.UTC()
	return !au.Before(start) && au.Before(end)
}
