package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"centerequity/portal/internal/config"
	"centerequity/portal/internal/ids"
	"centerequity/portal/internal/models"
	"centerequity/portal/internal/repository"
	"centerequity/portal/internal/security"
)

var (
	ErrDuplicateIdentity  = errors.New("identity already registered")
	ErrInvalidCredentials = errors.New("invalid credentials")
)

const (
	RedirectHome    = "/"
	RedirectReports = "/admin/reports"
)

type Auth struct {
	users    UserStore
	sessions SessionStore
	visits   *Visits
	cfg      *config.AppConfig
	log      zerolog.Logger
	now      func() time.Time
}

func NewAuth(users UserStore, sessions SessionStore, visits *Visits, cfg *config.AppConfig, log zerolog.Logger) *Auth {
	return &Auth{
		users:    users,
		sessions: sessions,
		visits:   visits,
		cfg:      cfg,
		log:      log,
		now:      time.Now,
	}
}

type RegisterInput struct {
	FirstName string
	LastName  string
	Username  string
	Password  string
	Rank      models.Rank
	Subscribe models.Subscribe
	Reason    string
}

type LoginInput struct {
	Username  string
	Password  string
	Reason    string
	IP        string
	UserAgent string
}

// AuthResult is the "authenticate as user X" signal handed to the web
// layer: the session record is already persisted, Token transports it.
type AuthResult struct {
	Token     string
	SessionID string
	User      models.User
	Redirect  string
}

func normalizeUsername(username string) string {
	return strings.ToLower(strings.TrimSpace(username))
}

func redirectFor(rank models.Rank) string {
	if rank == models.RankAdmin {
		return RedirectReports
	}
	return RedirectHome
}

func (a *Auth) Register(ctx context.Context, input RegisterInput) (AuthResult, error) {
	username := normalizeUsername(input.Username)
	if username == "" || input.Password == "" {
		return AuthResult{}, ErrInvalidCredentials
	}

	rank := input.Rank
	if rank == "" {
		rank = models.RankMember
	}
	if !rank.Valid() {
		return AuthResult{}, fmt.Errorf("unknown rank %q", input.Rank)
	}

	if _, err := a.users.FindByUsername(ctx, username); err == nil {
		return AuthResult{}, ErrDuplicateIdentity
	} else if !errors.Is(err, repository.ErrUserNotFound) {
		return AuthResult{}, fmt.Errorf("check username: %w", err)
	}

	passwordHash, err := security.HashPassword(input.Password)
	if err != nil {
		return AuthResult{}, fmt.Errorf("hash password: %w", err)
	}

	now := a.now()
	user := models.User{
		ID:           ids.New(),
		Username:     username,
		FirstName:    strings.TrimSpace(input.FirstName),
		LastName:     strings.TrimSpace(input.LastName),
		Rank:         rank,
		Subscribe:    input.Subscribe,
		PasswordHash: passwordHash,
		UserSince:    now,
		LastLogin:    models.LastLogin{At: now, Attempts: 1},
	}

	if err := a.users.Create(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return AuthResult{}, ErrDuplicateIdentity
		}
		return AuthResult{}, fmt.Errorf("create user: %w", err)
	}

	result, err := a.establishSession(ctx, user, "", "")
	if err != nil {
		return AuthResult{}, err
	}

	a.visits.Record(ctx, user.ID, user.Username, input.Reason, now)

	return result, nil
}

func (a *Auth) Login(ctx context.Context, input LoginInput) (AuthResult, error) {
	username := normalizeUsername(input.Username)

	user, err := a.users.FindByUsername(ctx, username)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			return AuthResult{}, ErrInvalidCredentials
		}
		return AuthResult{}, fmt.Errorf("find user: %w", err)
	}

	ok, err := security.VerifyPassword(input.Password, user.PasswordHash)
	if err != nil || !ok {
		return AuthResult{}, ErrInvalidCredentials
	}

	now := a.now()
	stamp, err := a.users.TouchLogin(ctx, user.ID, now)
	if err != nil {
		return AuthResult{}, fmt.Errorf("touch login: %w", err)
	}
	user.LastLogin = stamp

	result, err := a.establishSession(ctx, user, input.IP, input.UserAgent)
	if err != nil {
		return AuthResult{}, err
	}

	a.visits.Record(ctx, user.ID, user.Username, input.Reason, now)

	return result, nil
}

func (a *Auth) UpdateProfile(ctx context.Context, userID string, upd models.ProfileUpdate) (models.User, error) {
	if upd.Username != nil {
		username := normalizeUsername(*upd.Username)
		upd.Username = &username
	}
	if upd.Rank != nil && !upd.Rank.Valid() {
		return models.User{}, fmt.Errorf("unknown rank %q", *upd.Rank)
	}

	user, err := a.users.UpdateProfile(ctx, userID, upd)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateUsername) {
			return models.User{}, ErrDuplicateIdentity
		}
		return models.User{}, fmt.Errorf("update profile: %w", err)
	}
	return user, nil
}

func (a *Auth) Logout(ctx context.Context, sessionID string) error {
	if err := a.sessions.DeleteByID(ctx, sessionID); err != nil {
		return fmt.Errorf("delete session: %w", err)
	}
	return nil
}

func (a *Auth) establishSession(ctx context.Context, user models.User, ip string, userAgent string) (AuthResult, error) {
	sessionID := ids.New()

	token, err := security.NewSessionToken(a.cfg.Security.SessionSecret, user.ID, sessionID, string(user.Rank), a.cfg.Security.SessionTTL)
	if err != nil {
		return AuthResult{}, err
	}

	session := models.Session{
		ID:        sessionID,
		UserID:    user.ID,
		TokenHash: security.HashSessionToken(token),
		IP:        ip,
		UserAgent: userAgent,
		ExpiresAt: a.now().Add(a.cfg.Security.SessionTTL),
	}

	if err := a.sessions.Create(ctx, session); err != nil {
		return AuthResult{}, fmt.Errorf("create session: %w", err)
	}

	return AuthResult{
		Token:     token,
		SessionID: sessionID,
		User:      user,
		Redirect:  redirectFor(user.Rank),
	}, nil
}
