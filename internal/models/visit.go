package models

import "time"

// VisitEntry is one "reason for visit" captured at registration or
// login time. Entries are append-only and removed only by bulk purge;
// AuthorName is a snapshot taken when the entry was written.
type VisitEntry struct {
	ID         string
	Reason     string
	AuthorID   string
	AuthorName string
	At         time.Time
}
