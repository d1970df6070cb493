package middleware

import (
	"context"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"centerequity/portal/internal/models"
	"centerequity/portal/internal/security"
)

const (
	currentUserKey = "current_user"
	sessionIDKey   = "session_id"
)

type SessionReader interface {
	GetByID(ctx context.Context, id string) (models.Session, error)
	Touch(ctx context.Context, id string, ip string, userAgent string) error
}

type UserReader interface {
	GetByID(ctx context.Context, id string) (models.User, error)
}

// backTarget is where a rejected caller is sent: its referring page
// when known, the login page otherwise.
func backTarget(c *gin.Context) string {
	if ref := c.GetHeader("Referer"); ref != "" {
		return ref
	}
	return "/login"
}

func rejectAnonymous(c *gin.Context) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{
		"error":    "unauthorized",
		"message":  "You need to be logged in to access this page",
		"redirect": backTarget(c),
	})
}

// Auth admits only callers with a parseable token backed by a live
// server-side session. Deleting the session row (logout) invalidates
// the token immediately, before its own expiry.
func Auth(log zerolog.Logger, sessionSecret string, users UserReader, sessions SessionReader) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" || !strings.HasPrefix(authHeader, "Bearer ") {
			rejectAnonymous(c)
			return
		}

		tokenStr := strings.TrimPrefix(authHeader, "Bearer ")

		claims, err := security.ParseSessionToken(tokenStr, sessionSecret)
		if err != nil {
			rejectAnonymous(c)
			return
		}

		session, err := sessions.GetByID(c.Request.Context(), claims.SessionID)
		if err != nil {
			rejectAnonymous(c)
			return
		}

		if session.UserID != claims.UserID ||
			session.ExpiresAt.Before(time.Now()) ||
			!security.SessionTokenMatches(tokenStr, session.TokenHash) {
			rejectAnonymous(c)
			return
		}

		user, err := users.GetByID(c.Request.Context(), claims.UserID)
		if err != nil {
			rejectAnonymous(c)
			return
		}

		if err := sessions.Touch(c.Request.Context(), session.ID, c.ClientIP(), c.GetHeader("User-Agent")); err != nil {
			log.Warn().Err(err).Str("session_id", session.ID).Msg("touch session")
		}

		c.Set(sessionIDKey, session.ID)
		c.Set(currentUserKey, user)

		c.Next()
	}
}

// RequireRank gates a route on the caller's rank; Auth must run first.
func RequireRank(ranks ...models.Rank) gin.HandlerFunc {
	rankSet := make(map[models.Rank]struct{}, len(ranks))
	for _, rank := range ranks {
		rankSet[rank] = struct{}{}
	}

	return func(c *gin.Context) {
		user, ok := CurrentUser(c)
		if !ok {
			rejectAnonymous(c)
			return
		}

		if _, ok := rankSet[user.Rank]; !ok {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{
				"error":    "forbidden",
				"message":  "Only Admins can access this page",
				"redirect": backTarget(c),
			})
			return
		}

		c.Next()
	}
}

func CurrentUser(c *gin.Context) (models.User, bool) {
	val, exists := c.Get(currentUserKey)
	if !exists {
		return models.User{}, false
	}
	user, ok := val.(models.User)
	return user, ok
}

func SessionID(c *gin.Context) string {
	return c.GetString(sessionIDKey)
}
