package models

import (
	"time"

	"centerequity/portal/internal/timeutil"
)

// NextLogin advances a login stamp for a successful login at now.
// Attempts accumulate within a single UTC day and reset to 1 on the
// first login of a new day. The timestamp always moves to now.
func NextLogin(prev LastLogin, now time.Time) LastLogin {
	if timeutil.SameDay(prev.At, now) {
		return LastLogin{At: now, Attempts: prev.Attempts + 1}
	}
	return LastLogin{At: now, Attempts: 1}
}
