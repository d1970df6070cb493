package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"centerequity/portal/internal/middleware"
	"centerequity/portal/internal/models"
	"centerequity/portal/internal/service"
)

type registerRequest struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Username  string `json:"username" binding:"required"`
	Password  string `json:"password" binding:"required,min=6"`
	Rank      string `json:"rank"`
	Subscribe string `json:"subscribe"`
	Reason    string `json:"reason"`
}

type authResponse struct {
	Token    string       `json:"token"`
	Redirect string       `json:"redirect"`
	User     userResponse `json:"user"`
}

func (h HandlerSet) RegisterUser(c *gin.Context) {
	var req registerRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.auth.Register(c.Request.Context(), service.RegisterInput{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
		Password:  req.Password,
		Rank:      models.Rank(req.Rank),
		Subscribe: models.Subscribe(req.Subscribe),
		Reason:    req.Reason,
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusCreated, authResponse{
		Token:    result.Token,
		Redirect: result.Redirect,
		User:     toUserResponse(result.User),
	})
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
	Reason   string `json:"reason"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.auth.Login(c.Request.Context(), service.LoginInput{
		Username:  req.Username,
		Password:  req.Password,
		Reason:    req.Reason,
		IP:        c.ClientIP(),
		UserAgent: c.GetHeader("User-Agent"),
	})
	if err != nil {
		h.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, authResponse{
		Token:    result.Token,
		Redirect: result.Redirect,
		User:     toUserResponse(result.User),
	})
}

func (h HandlerSet) Logout(c *gin.Context) {
	sessionID := middleware.SessionID(c)
	if err := h.auth.Logout(c.Request.Context(), sessionID); err != nil {
		h.respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h HandlerSet) Me(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	history, err := h.visits.History(c.Request.Context(), user.ID)
	if err != nil {
		h.respondError(c, err)
		return
	}

	visits := make([]gin.H, 0, len(history))
	for _, entry := range history {
		visits = append(visits, gin.H{
			"reason": entry.Reason,
			"at":     entry.At,
		})
	}

	messages, err := h.flash.Drain(c.Request.Context(), middleware.SessionID(c))
	if err != nil {
		h.log.Warn().Err(err).Msg("flash drain failed")
	}

	c.JSON(http.StatusOK, gin.H{
		"user":     toUserResponse(user),
		"visits":   visits,
		"messages": messages,
	})
}

type updateMeRequest struct {
	FirstName *string `json:"firstName"`
	LastName  *string `json:"lastName"`
	Username  *string `json:"username"`
	Rank      *string `json:"rank"`
	Subscribe *string `json:"subscribe"`
}

func (req updateMeRequest) toUpdate() models.ProfileUpdate {
	upd := models.ProfileUpdate{
		FirstName: req.FirstName,
		LastName:  req.LastName,
		Username:  req.Username,
	}
	if req.Rank != nil {
		rank := models.Rank(*req.Rank)
		upd.Rank = &rank
	}
	if req.Subscribe != nil {
		subscribe := models.Subscribe(*req.Subscribe)
		upd.Subscribe = &subscribe
	}
	return upd
}

func (h HandlerSet) UpdateMe(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
		return
	}

	var req updateMeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	updated, err := h.auth.UpdateProfile(c.Request.Context(), user.ID, req.toUpdate())
	if err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.flash.Push(c.Request.Context(), middleware.SessionID(c), "success", "Profile updated"); err != nil {
		h.log.Warn().Err(err).Msg("flash push failed")
	}

	c.JSON(http.StatusOK, gin.H{"user": toUserResponse(updated)})
}
