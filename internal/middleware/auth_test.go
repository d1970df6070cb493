package middleware

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"centerequity/portal/internal/models"
	"centerequity/portal/internal/security"
)

const testSecret = "test-secret"

type fakeSessions struct {
	sessions map[string]models.Session
	touchErr error
}

func (f *fakeSessions) GetByID(_ context.Context, id string) (models.Session, error) {
	session, ok := f.sessions[id]
	if !ok {
		return models.Session{}, errors.New("session not found")
	}
	return session, nil
}

func (f *fakeSessions) Touch(_ context.Context, _ string, _ string, _ string) error {
	return f.touchErr
}

type fakeUsers struct {
	users map[string]models.User
}

func (f *fakeUsers) GetByID(_ context.Context, id string) (models.User, error) {
	user, ok := f.users[id]
	if !ok {
		return models.User{}, errors.New("user not found")
	}
	return user, nil
}

type gateFixture struct {
	router   *gin.Engine
	users    *fakeUsers
	sessions *fakeSessions
	logBuf   *bytes.Buffer
}

func newGateFixture(t *testing.T) *gateFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	users := &fakeUsers{users: make(map[string]models.User)}
	sessions := &fakeSessions{sessions: make(map[string]models.Session)}
	logBuf := &bytes.Buffer{}

	router := gin.New()
	router.GET("/stats",
		Auth(zerolog.New(logBuf), testSecret, users, sessions),
		RequireRank(models.RankAdmin),
		func(c *gin.Context) { c.Status(http.StatusOK) },
	)

	return &gateFixture{router: router, users: users, sessions: sessions, logBuf: logBuf}
}

func (f *gateFixture) addUser(t *testing.T, id string, rank models.Rank) string {
	t.Helper()
	f.users.users[id] = models.User{ID: id, Username: id + "@x.com", Rank: rank}

	sessionID := "session-" + id
	token, err := security.NewSessionToken(testSecret, id, sessionID, string(rank), time.Hour)
	require.NoError(t, err)

	f.sessions.sessions[sessionID] = models.Session{
		ID:        sessionID,
		UserID:    id,
		TokenHash: security.HashSessionToken(token),
		ExpiresAt: time.Now().Add(time.Hour),
	}
	return token
}

func (f *gateFixture) request(token string, referer string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/stats", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	if referer != "" {
		req.Header.Set("Referer", referer)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func TestGateAnonymousRejected(t *testing.T) {
	f := newGateFixture(t)

	rec := f.request("", "/home")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redirect":"/home"`)
}

func TestGateGarbageTokenRejected(t *testing.T) {
	f := newGateFixture(t)

	rec := f.request("not-a-token", "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redirect":"/login"`)
}

func TestGateNonAdminForbidden(t *testing.T) {
	f := newGateFixture(t)
	token := f.addUser(t, "member", models.RankMember)

	rec := f.request(token, "/home")
	assert.Equal(t, http.StatusForbidden, rec.Code)
	assert.Contains(t, rec.Body.String(), `"redirect":"/home"`)
}

func TestGateAdminAdmitted(t *testing.T) {
	f := newGateFixture(t)
	token := f.addUser(t, "root", models.RankAdmin)

	rec := f.request(token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGateLogoutInvalidatesImmediately(t *testing.T) {
	f := newGateFixture(t)
	token := f.addUser(t, "root", models.RankAdmin)

	rec := f.request(token, "")
	require.Equal(t, http.StatusOK, rec.Code)

	// logout deletes the server-side session; the token itself is
	// still unexpired but must no longer be accepted
	delete(f.sessions.sessions, "session-root")

	rec = f.request(token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestGateTouchFailureLoggedNotFatal(t *testing.T) {
	f := newGateFixture(t)
	token := f.addUser(t, "root", models.RankAdmin)
	f.sessions.touchErr = errors.New("connection reset")

	rec := f.request(token, "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, f.logBuf.String(), "touch session")
}

func TestGateExpiredSessionRejected(t *testing.T) {
	f := newGateFixture(t)
	token := f.addUser(t, "root", models.RankAdmin)

	session := f.sessions.sessions["session-root"]
	session.ExpiresAt = time.Now().Add(-time.Minute)
	f.sessions.sessions["session-root"] = session

	rec := f.request(token, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
