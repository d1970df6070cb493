package models

import "time"

// Session is the server-side record backing an issued access token.
// Deleting the row invalidates the token immediately.
type Session struct {
	ID         string
	UserID     string
	TokenHash  []byte
	IP         string
	UserAgent  string
	CreatedAt  time.Time
	LastSeenAt time.Time
	ExpiresAt  time.Time
}
