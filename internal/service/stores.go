package service

import (
	"context"
	"time"

	"centerequity/portal/internal/mail"
	"centerequity/portal/internal/models"
)

// UserStore is the durable user record store. Mutating operations are
// single-statement read-modify-writes scoped to one row; the two
// Consume variants carry compare-and-clear semantics so a recovery
// token can be spent exactly once.
type UserStore interface {
	Create(ctx context.Context, user models.User) error
	GetByID(ctx context.Context, id string) (models.User, error)
	FindByUsername(ctx context.Context, username string) (models.User, error)
	UpdateProfile(ctx context.Context, id string, upd models.ProfileUpdate) (models.User, error)
	TouchLogin(ctx context.Context, id string, now time.Time) (models.LastLogin, error)
	SetResetToken(ctx context.Context, id string, token string, expires time.Time) error
	FindByResetToken(ctx context.Context, token string, now time.Time) (models.User, error)
	ConsumeResetPassword(ctx context.Context, token string, now time.Time, passwordHash []byte) (models.User, error)
	ConsumeResetProfile(ctx context.Context, token string, now time.Time, upd models.ProfileUpdate) (models.User, error)
	ListNonAdmin(ctx context.Context) ([]models.User, error)
	DeleteNonAdmin(ctx context.Context) (int64, error)
}

type SessionStore interface {
	Create(ctx context.Context, session models.Session) error
	GetByID(ctx context.Context, id string) (models.Session, error)
	DeleteByID(ctx context.Context, id string) error
}

type VisitStore interface {
	Create(ctx context.Context, entry models.VisitEntry) error
	ListAll(ctx context.Context) ([]models.VisitEntry, error)
	ListByAuthor(ctx context.Context, authorID string) ([]models.VisitEntry, error)
	DeleteAll(ctx context.Context) (int64, error)
}

type Mailer interface {
	Send(ctx context.Context, msg mail.Message) error
}

// ExportSink receives published admin exports.
type ExportSink interface {
	PutSubscriberExport(ctx context.Context, key string, body string) error
}
