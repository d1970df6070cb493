package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"centerequity/portal/internal/service"
)

type forgotRequest struct {
	Username string `json:"username" binding:"required"`
}

// ForgotPassword always lands on the same target whether or not the
// identity exists; only the message text differs. The asymmetry is a
// deliberate carry-over from the original flow.
func (h HandlerSet) ForgotPassword(c *gin.Context) {
	var req forgotRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	_, err := h.recovery.Issue(c.Request.Context(), req.Username)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{
			"message":  "A recovery mail is on its way",
			"redirect": "/login",
		})
	case errors.Is(err, service.ErrUnknownIdentity):
		c.JSON(http.StatusOK, gin.H{
			"message":  "No account with that name exists",
			"redirect": "/login",
		})
	default:
		h.respondError(c, err)
	}
}

type resetRequest struct {
	Token           string `json:"token" binding:"required"`
	NewPassword     string `json:"newPassword" binding:"required"`
	ConfirmPassword string `json:"confirmPassword" binding:"required"`
}

func (h HandlerSet) ResetPassword(c *gin.Context) {
	var req resetRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	user, err := h.recovery.ConsumePassword(c.Request.Context(), req.Token, req.NewPassword, req.ConfirmPassword)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Password changed, you can log in now",
		"redirect": "/login",
		"user":     toUserResponse(user),
	})
}

// ResolveToken lets the edit-account form prefill the profile behind a
// live token without consuming it.
func (h HandlerSet) ResolveToken(c *gin.Context) {
	user, err := h.recovery.Resolve(c.Request.Context(), c.Query("token"))
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(user)})
}

type updateAccountRequest struct {
	Token     string  `json:"token" binding:"required"`
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Username  *string `json:"username"`
	Rank      *string `json:"rank"`
	Subscribe *string `json:"subscribe"`
}

func (h HandlerSet) UpdateAccount(c *gin.Context) {
	var req updateAccountRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upd := updateMeRequest{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Rank:      req.Rank,
		Subscribe: req.Subscribe,
	}.toUpdate()

	user, err := h.recovery.ConsumeProfile(c.Request.Context(), req.Token, upd)
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":  "Account updated, you can log in now",
		"redirect": "/login",
		"user":     toUserResponse(user),
	})
}
