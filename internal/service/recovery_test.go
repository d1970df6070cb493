package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"centerequity/portal/internal/ids"
	"centerequity/portal/internal/models"
	"centerequity/portal/internal/security"
)

func seedUser(t *testing.T, users *memoryUserStore, username string) models.User {
	t.Helper()
	hash, err := security.HashPassword("original-password")
	require.NoError(t, err)

	user := models.User{
		ID:           ids.New(),
		Username:     username,
		FirstName:    "Test",
		Rank:         models.RankMember,
		PasswordHash: hash,
		UserSince:    time.Now(),
		LastLogin:    models.LastLogin{At: time.Now(), Attempts: 1},
	}
	require.NoError(t, users.Create(context.Background(), user))
	return user
}

func newTestRecovery(t *testing.T) (*Recovery, *memoryUserStore, *fakeMailer) {
	t.Helper()
	users := newMemoryUserStore()
	mailer := &fakeMailer{}
	recovery := NewRecovery(users, mailer, testConfig(), zerolog.Nop())
	return recovery, users, mailer
}

func TestIssueAndResolve(t *testing.T) {
	recovery, users, mailer := newTestRecovery(t)
	ctx := context.Background()
	user := seedUser(t, users, "alice@x.com")

	token, err := recovery.Issue(ctx, "ALICE@x.com")
	require.NoError(t, err)
	assert.Len(t, token, 40) // 20 bytes hex

	require.Len(t, mailer.sent, 1)
	assert.Equal(t, "alice@x.com", mailer.sent[0].To)
	assert.Contains(t, mailer.sent[0].Body, token)

	resolved, err := recovery.Resolve(ctx, token)
	require.NoError(t, err)
	assert.Equal(t, user.ID, resolved.ID)
}

func TestIssueUnknownIdentity(t *testing.T) {
	recovery, _, mailer := newTestRecovery(t)

	_, err := recovery.Issue(context.Background(), "nobody@x.com")
	assert.ErrorIs(t, err, ErrUnknownIdentity)
	assert.Empty(t, mailer.sent)
}

func TestResolveExpiredToken(t *testing.T) {
	recovery, users, _ := newTestRecovery(t)
	ctx := context.Background()
	seedUser(t, users, "bob@x.com")

	issuedAt := time.Date(2024, 3, 15, 10, 0, 0, 0, time.UTC)
	recovery.now = func() time.Time { return issuedAt }

	token, err := recovery.Issue(ctx, "bob@x.com")
	require.NoError(t, err)

	recovery.now = func() time.Time { return issuedAt.Add(59 * time.Minute) }
	_, err = recovery.Resolve(ctx, token)
	require.NoError(t, err)

	recovery.now = func() time.Time { return issuedAt.Add(61 * time.Minute) }
	_, err = recovery.Resolve(ctx, token)
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
}

func TestResolveNeverIssued(t *testing.T) {
	recovery, _, _ := newTestRecovery(t)

	_, err := recovery.Resolve(context.Background(), "0000000000000000000000000000000000000000")
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)

	_, err = recovery.Resolve(context.Background(), "")
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
}

func TestConsumePasswordSingleUse(t *testing.T) {
	recovery, users, _ := newTestRecovery(t)
	ctx := context.Background()
	user := seedUser(t, users, "carol@x.com")

	token, err := recovery.Issue(ctx, "carol@x.com")
	require.NoError(t, err)

	changed, err := recovery.ConsumePassword(ctx, token, "new-password", "new-password")
	require.NoError(t, err)
	assert.Equal(t, user.ID, changed.ID)
	assert.Nil(t, changed.ResetToken)
	assert.Nil(t, changed.ResetExpires)

	ok, err := security.VerifyPassword("new-password", changed.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)

	// the token was spent
	_, err = recovery.ConsumePassword(ctx, token, "again", "again")
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
}

func TestConsumePasswordConcurrentSingleWinner(t *testing.T) {
	recovery, users, _ := newTestRecovery(t)
	ctx := context.Background()
	seedUser(t, users, "race@x.com")

	token, err := recovery.Issue(ctx, "race@x.com")
	require.NoError(t, err)

	// two consumers race on the same token; the compare-and-clear
	// must admit exactly one
	start := make(chan struct{})
	errs := make([]error, 2)
	var wg sync.WaitGroup
	for i := range errs {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			<-start
			_, errs[i] = recovery.ConsumePassword(ctx, token, "new-password", "new-password")
		}(i)
	}
	close(start)
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		switch {
		case err == nil:
			won++
		case errors.Is(err, ErrTokenInvalidOrExpired):
			lost++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}
	assert.Equal(t, 1, won)
	assert.Equal(t, 1, lost)

	winner, err := users.FindByUsername(ctx, "race@x.com")
	require.NoError(t, err)
	assert.Nil(t, winner.ResetToken)
	ok, err := security.VerifyPassword("new-password", winner.PasswordHash)
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestPasswordMismatchKeepsToken(t *testing.T) {
	recovery, users, _ := newTestRecovery(t)
	ctx := context.Background()
	seedUser(t, users, "dave@x.com")

	token, err := recovery.Issue(ctx, "dave@x.com")
	require.NoError(t, err)

	_, err = recovery.ConsumePassword(ctx, token, "new-password", "typo-password")
	assert.ErrorIs(t, err, ErrPasswordMismatch)

	// same link still works
	_, err = recovery.ConsumePassword(ctx, token, "new-password", "new-password")
	require.NoError(t, err)
}

func TestMailFailureKeepsTokenValid(t *testing.T) {
	recovery, users, mailer := newTestRecovery(t)
	ctx := context.Background()
	mailer.sendErr = errors.New("smtp unreachable")
	seedUser(t, users, "eve@x.com")

	token, err := recovery.Issue(ctx, "eve@x.com")
	assert.ErrorIs(t, err, ErrMailDelivery)
	require.NotEmpty(t, token)

	// issuance was not rolled back
	_, err = recovery.Resolve(ctx, token)
	require.NoError(t, err)
}

func TestConsumeProfile(t *testing.T) {
	recovery, users, _ := newTestRecovery(t)
	ctx := context.Background()
	seedUser(t, users, "frank@x.com")

	token, err := recovery.Issue(ctx, "frank@x.com")
	require.NoError(t, err)

	newName := "Franklin"
	subscribe := models.SubscribeYes
	updated, err := recovery.ConsumeProfile(ctx, token, models.ProfileUpdate{
		FirstName: &newName,
		Subscribe: &subscribe,
	})
	require.NoError(t, err)
	assert.Equal(t, "Franklin", updated.FirstName)
	assert.Equal(t, models.SubscribeYes, updated.Subscribe)
	assert.Nil(t, updated.ResetToken)

	_, err = recovery.ConsumeProfile(ctx, token, models.ProfileUpdate{FirstName: &newName})
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
}

func TestConsumeProfileDuplicateKeepsToken(t *testing.T) {
	recovery, users, _ := newTestRecovery(t)
	ctx := context.Background()
	seedUser(t, users, "grace@x.com")
	seedUser(t, users, "taken@x.com")

	token, err := recovery.Issue(ctx, "grace@x.com")
	require.NoError(t, err)

	taken := "taken@x.com"
	_, err = recovery.ConsumeProfile(ctx, token, models.ProfileUpdate{Username: &taken})
	assert.ErrorIs(t, err, ErrDuplicateIdentity)

	// collision left the token live for a retry
	free := "grace2@x.com"
	updated, err := recovery.ConsumeProfile(ctx, token, models.ProfileUpdate{Username: &free})
	require.NoError(t, err)
	assert.Equal(t, "grace2@x.com", updated.Username)
}

func TestReissueReplacesToken(t *testing.T) {
	recovery, users, _ := newTestRecovery(t)
	ctx := context.Background()
	seedUser(t, users, "henry@x.com")

	first, err := recovery.Issue(ctx, "henry@x.com")
	require.NoError(t, err)
	second, err := recovery.Issue(ctx, "henry@x.com")
	require.NoError(t, err)
	require.NotEqual(t, first, second)

	// only the latest token is live
	_, err = recovery.Resolve(ctx, first)
	assert.ErrorIs(t, err, ErrTokenInvalidOrExpired)
	_, err = recovery.Resolve(ctx, second)
	require.NoError(t, err)
}
