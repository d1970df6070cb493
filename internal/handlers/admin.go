package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"centerequity/portal/internal/middleware"
)

func (h HandlerSet) AdminReports(c *gin.Context) {
	overview, err := h.reports.Overview(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}

	users := make([]userResponse, 0, len(overview.Users))
	for _, user := range overview.Users {
		users = append(users, toUserResponse(user))
	}
	newToday := make([]userResponse, 0, len(overview.NewToday))
	for _, user := range overview.NewToday {
		newToday = append(newToday, toUserResponse(user))
	}
	subscribers := make([]userResponse, 0, len(overview.Subscribers))
	for _, user := range overview.Subscribers {
		subscribers = append(subscribers, toUserResponse(user))
	}

	c.JSON(http.StatusOK, gin.H{
		"byReason":    overview.ByReason,
		"byRank":      overview.ByRank,
		"bySubscribe": overview.BySubscribe,
		"loginsToday": overview.LoginsToday,
		"newToday":    newToday,
		"users":       users,
		"subscribers": subscribers,
	})
}

func (h HandlerSet) AdminSubscriberExport(c *gin.Context) {
	export, err := h.reports.SubscriberExport(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"subscribers": export})
}

func (h HandlerSet) AdminPublishSubscribers(c *gin.Context) {
	key, err := h.reports.PublishSubscriberExport(c.Request.Context())
	if err != nil {
		h.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"objectKey": key})
}

func (h HandlerSet) AdminPurge(c *gin.Context) {
	if err := h.reports.PurgeNonAdmin(c.Request.Context()); err != nil {
		h.respondError(c, err)
		return
	}

	if err := h.flash.Push(c.Request.Context(), middleware.SessionID(c), "success", "All member data purged"); err != nil {
		h.log.Warn().Err(err).Msg("flash push failed")
	}

	c.JSON(http.StatusOK, gin.H{"redirect": "/admin/reports"})
}
