package models

import "time"

type Rank string

const (
	RankMember Rank = "Member"
	RankStaff  Rank = "Staff"
	RankAdmin  Rank = "Admin"
)

func (r Rank) Valid() bool {
	switch r {
	case RankMember, RankStaff, RankAdmin:
		return true
	}
	return false
}

// Subscribe is tri-state: explicit yes, explicit no, or never answered.
type Subscribe string

const (
	SubscribeYes   Subscribe = "yes"
	SubscribeNo    Subscribe = "no"
	SubscribeUnset Subscribe = ""
)

// LastLogin tracks the most recent login and how many logins the user
// has made within that login's UTC day.
type LastLogin struct {
	At       time.Time
	Attempts int
}

type User struct {
	ID           string
	Username     string
	FirstName    string
	LastName     string
	Rank         Rank
	Subscribe    Subscribe
	PasswordHash []byte
	ResetToken   *string
	ResetExpires *time.Time
	UserSince    time.Time
	LastLogin    LastLogin
}

func (u User) IsAdmin() bool {
	return u.Rank == RankAdmin
}

// HasLiveResetToken reports whether a recovery token is present and not
// yet expired. A token missing its expiry counts as absent.
func (u User) HasLiveResetToken(now time.Time) bool {
	return u.ResetToken != nil && u.ResetExpires != nil && u.ResetExpires.After(now)
}

// ProfileUpdate is a partial profile mutation; nil fields are left
// untouched.
type ProfileUpdate struct {
	FirstName *string
	LastName  *string
	Username  *string
	Rank      *Rank
	Subscribe *Subscribe
}
