package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"centerequity/portal/internal/ids"
	"centerequity/portal/internal/models"
)

// Visits is the append-only "reason for visit" log. Writes are
// best-effort: a failed append must never fail the login or
// registration that triggered it.
type Visits struct {
	store VisitStore
	log   zerolog.Logger
}

func NewVisits(store VisitStore, log zerolog.Logger) *Visits {
	return &Visits{store: store, log: log}
}

func (v *Visits) Record(ctx context.Context, authorID string, authorName string, reason string, at time.Time) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return
	}

	entry := models.VisitEntry{
		ID:         ids.New(),
		Reason:     reason,
		AuthorID:   authorID,
		AuthorName: authorName,
		At:         at,
	}

	if err := v.store.Create(ctx, entry); err != nil {
		v.log.Warn().Err(err).Str("author_id", authorID).Msg("visit entry write failed")
	}
}

func (v *Visits) History(ctx context.Context, authorID string) ([]models.VisitEntry, error) {
	return v.store.ListByAuthor(ctx, authorID)
}

func (v *Visits) PurgeAll(ctx context.Context) (int64, error) {
	return v.store.DeleteAll(ctx)
}
