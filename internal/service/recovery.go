package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog"

	"centerequity/portal/internal/config"
	"centerequity/portal/internal/mail"
	"centerequity/portal/internal/models"
	"centerequity/portal/internal/repository"
	"centerequity/portal/internal/security"
)

var (
	ErrUnknownIdentity       = errors.New("unknown identity")
	ErrTokenInvalidOrExpired = errors.New("token invalid or expired")
	ErrPasswordMismatch      = errors.New("passwords do not match")
	ErrMailDelivery          = errors.New("mail delivery failed")
)

// resetTokenTTL is how long an issued recovery token stays valid.
const resetTokenTTL = time.Hour

// Recovery issues and consumes single-use account recovery tokens.
type Recovery struct {
	users  UserStore
	mailer Mailer
	cfg    *config.AppConfig
	log    zerolog.Logger
	now    func() time.Time
}

func NewRecovery(users UserStore, mailer Mailer, cfg *config.AppConfig, log zerolog.Logger) *Recovery {
	return &Recovery{
		users:  users,
		mailer: mailer,
		cfg:    cfg,
		log:    log,
		now:    time.Now,
	}
}

// Issue stores a fresh token on the user and then mails the recovery
// links. A failed send is reported as ErrMailDelivery but the token is
// deliberately not rolled back: the mail may have gone out despite the
// error, and the user can retry the request.
func (r *Recovery) Issue(ctx context.Context, username string) (string, error) {
	user, err := r.users.FindByUsername(ctx, normalizeUsername(username))
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return "", ErrUnknownIdentity
		}
		return "", fmt.Errorf("find user: %w", err)
	}

	token, err := security.NewResetToken()
	if err != nil {
		return "", err
	}

	expires := r.now().Add(resetTokenTTL)
	if err := r.users.SetResetToken(ctx, user.ID, token, expires); err != nil {
		return "", fmt.Errorf("store reset token: %w", err)
	}

	msg := mail.RecoveryMessage(r.cfg.BaseURL, user.Username, token)
	if err := r.mailer.Send(ctx, msg); err != nil {
		r.log.Error().Err(err).Str("user_id", user.ID).Msg("recovery mail send failed")
		return token, ErrMailDelivery
	}

	return token, nil
}

// Resolve returns the user behind a live token. Never-issued, already
// consumed and expired tokens are indistinguishable to the caller.
func (r *Recovery) Resolve(ctx context.Context, token string) (models.User, error) {
	if token == "" {
		return models.User{}, ErrTokenInvalidOrExpired
	}

	user, err := r.users.FindByResetToken(ctx, token, r.now())
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrTokenInvalidOrExpired
		}
		return models.User{}, fmt.Errorf("resolve token: %w", err)
	}
	return user, nil
}

// ConsumePassword spends the token on a password change. A mismatched
// confirmation fails before the token is touched so the same link can
// be retried.
func (r *Recovery) ConsumePassword(ctx context.Context, token string, newPassword string, confirmPassword string) (models.User, error) {
	if token == "" {
		return models.User{}, ErrTokenInvalidOrExpired
	}
	if newPassword == "" || newPassword != confirmPassword {
		return models.User{}, ErrPasswordMismatch
	}

	passwordHash, err := security.HashPassword(newPassword)
	if err != nil {
		return models.User{}, fmt.Errorf("hash password: %w", err)
	}

	user, err := r.users.ConsumeResetPassword(ctx, token, r.now(), passwordHash)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return models.User{}, ErrTokenInvalidOrExpired
		}
		return models.User{}, fmt.Errorf("consume token: %w", err)
	}
	return user, nil
}

// ConsumeProfile spends the token on a profile update. A username
// collision aborts before the clear, leaving the token valid.
func (r *Recovery) ConsumeProfile(ctx context.Context, token string, upd models.ProfileUpdate) (models.User, error) {
	if token == "" {
		return models.User{}, ErrTokenInvalidOrExpired
	}
	if upd.Username != nil {
		username := normalizeUsername(*upd.Username)
		upd.Username = &username
	}
	if upd.Rank != nil && !upd.Rank.Valid() {
		return models.User{}, fmt.Errorf("unknown rank %q", *upd.Rank)
	}

	user, err := r.users.ConsumeResetProfile(ctx, token, r.now(), upd)
	if err != nil {
		switch {
		case errors.Is(err, repository.ErrUserNotFound):
			return models.User{}, ErrTokenInvalidOrExpired
		case errors.Is(err, repository.ErrDuplicateUsername):
			return models.User{}, ErrDuplicateIdentity
		}
		return models.User{}, fmt.Errorf("consume token: %w", err)
	}
	return user, nil
}
