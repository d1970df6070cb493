package jobs

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"centerequity/portal/internal/repository"
)

// Scheduler sweeps expired session rows. Recovery-token expiry is not
// swept here: tokens are checked lazily at validation time.
type Scheduler struct {
	cron     *cron.Cron
	sessions *repository.SessionRepository
	cache    *redis.Client
	log      zerolog.Logger
}

func NewScheduler(sessions *repository.SessionRepository, cache *redis.Client, log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:     cron.New(cron.WithSeconds()),
		sessions: sessions,
		cache:    cache,
		log:      log,
	}
}

func (s *Scheduler) Start() error {
	if _, err := s.cron.AddFunc("0 0 * * * *", s.sweepSessions); err != nil {
		return err
	}
	s.cron.Start()
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish, up
// to a short grace period.
func (s *Scheduler) Stop() {
	stopCtx := s.cron.Stop()
	select {
	case <-stopCtx.Done():
	case <-time.After(5 * time.Second):
		s.log.Warn().Msg("scheduler stop timed out")
	}
}

func (s *Scheduler) sweepSessions() {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	deleted, err := s.sessions.DeleteExpired(ctx, time.Now())
	if err != nil {
		s.log.Error().Err(err).Msg("session sweep failed")
		return
	}
	if deleted > 0 {
		s.log.Info().Int64("deleted", deleted).Msg("expired sessions swept")
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, "jobs:session_sweep", time.Now().UTC().Format(time.RFC3339), 0).Err(); err != nil {
			s.log.Warn().Err(err).Msg("sweep heartbeat failed")
		}
	}
}
