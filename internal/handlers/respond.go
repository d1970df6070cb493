package handlers

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"centerequity/portal/internal/models"
	"centerequity/portal/internal/service"
)

type userResponse struct {
	ID        string    `json:"id"`
	Username  string    `json:"username"`
	FirstName string    `json:"firstName"`
	LastName  string    `json:"lastName"`
	Rank      string    `json:"rank"`
	Subscribe string    `json:"subscribe"`
	UserSince time.Time `json:"userSince"`
}

func toUserResponse(user models.User) userResponse {
	return userResponse{
		ID:        user.ID,
		Username:  user.Username,
		FirstName: user.FirstName,
		LastName:  user.LastName,
		Rank:      string(user.Rank),
		Subscribe: string(user.Subscribe),
		UserSince: user.UserSince,
	}
}

// respondError maps the service error taxonomy onto HTTP statuses.
// Anything outside the taxonomy is an internal fault: logged for
// operators, generic to the caller.
func (h HandlerSet) respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, service.ErrDuplicateIdentity):
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate_identity", "message": "That username is already registered"})
	case errors.Is(err, service.ErrInvalidCredentials):
		c.JSON(http.StatusUnauthorized, gin.H{"error": "invalid_credentials", "message": "Invalid username or password"})
	case errors.Is(err, service.ErrTokenInvalidOrExpired):
		c.JSON(http.StatusBadRequest, gin.H{"error": "token_invalid_or_expired", "message": "That link is invalid or has expired"})
	case errors.Is(err, service.ErrPasswordMismatch):
		c.JSON(http.StatusBadRequest, gin.H{"error": "password_mismatch", "message": "Passwords do not match"})
	case errors.Is(err, service.ErrMailDelivery):
		c.JSON(http.StatusBadGateway, gin.H{"error": "mail_delivery_failed", "message": "The recovery mail could not be sent"})
	default:
		h.log.Error().Err(err).Str("path", c.Request.URL.Path).Msg("request failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_server_error"})
	}
}
