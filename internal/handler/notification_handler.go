package handler

import (
	"net/http"
	"strconv"

	"backend/internal/middleware"
	"backend/internal/model"
	"backend/internal/permission"
	"backend/internal/service"
	ws "backend/internal/websocket"
	"backend/pkg/pagination"
	"backend/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

type NotificationHandler struct {
	notificationService service.NotificationService
	resolver            *permission.Resolver
	hub                 *ws.Hub
}

func NewNotificationHandler(notificationService service.NotificationService, resolver *permission.Resolver, hub *ws.Hub) *NotificationHandler {
	return &NotificationHandler{notificationService: notificationService, resolver: resolver, hub: hub}
}

func (h *NotificationHandler) RegisterRoutes(router *gin.RouterGroup, authn gin.HandlerFunc) {
	notifications := router.Group("/api/notifications", authn)
	{
		notifications.GET("", h.List)
		notifications.GET("/unread-count", h.UnreadCount)
		notifications.PUT("/:id/read", h.MarkRead)
		notifications.PUT("/read-all", h.MarkAllRead)
		notifications.PUT("/:id/archive", h.Archive)
	}

	// Live feed; token is validated inside ServeWs since websocket clients
	// cannot send Authorization headers from the browser.
	router.GET("/ws/notifications", func(c *gin.Context) {
		ws.ServeWs(h.hub, c, middleware.GetJWTSecret())
	})

	security := router.Group("/api/security-events", authn,
		middleware.RequireApp(h.resolver, model.AppAdmin, permission.LevelAdmin))
	{
		security.GET("", h.ListSecurityEvents)
	}
}

// List returns the caller's notifications newest first
// @Summary      List notifications
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Param        unread  query     bool  false  "Only unread"
// @Param        page    query     int   false  "Page number (default 1)"
// @Param        limit   query     int   false  "Items per page (default 20)"
// @Success      200     {object}  response.Response{data=[]service.NotificationResponse}
// @Failure      401     {object}  response.Response
// @Router       /api/notifications [get]
func (h *NotificationHandler) List(c *gin.Context) {
	params := pagination.Parse(c)
	unreadOnly, _ := strconv.ParseBool(c.DefaultQuery("unread", "false"))

	notifications, total, err := h.notificationService.List(c.Request.Context(), middleware.CurrentUser(c).ID, unreadOnly, params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, notifications, params.Page, params.Limit, total))
}

// UnreadCount returns the badge count
// @Summary      Unread notification count
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response{data=object}
// @Router       /api/notifications/unread-count [get]
func (h *NotificationHandler) UnreadCount(c *gin.Context) {
	count, err := h.notificationService.UnreadCount(c.Request.Context(), middleware.CurrentUser(c).ID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"unread": count}))
}

// MarkRead marks one notification read
// @Summary      Mark notification read
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Notification ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/notifications/{id}/read [put]
func (h *NotificationHandler) MarkRead(c *gin.Context) {
	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid notification id"))
		return
	}
	if err := h.notificationService.MarkRead(c.Request.Context(), middleware.CurrentUser(c).ID, notificationID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "marked read"}))
}

// MarkAllRead marks every unread notification read
// @Summary      Mark all notifications read
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Success      200  {object}  response.Response
// @Router       /api/notifications/read-all [put]
func (h *NotificationHandler) MarkAllRead(c *gin.Context) {
	if err := h.notificationService.MarkAllRead(c.Request.Context(), middleware.CurrentUser(c).ID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "all marked read"}))
}

// Archive hides a notification from the default list
// @Summary      Archive notification
// @Tags         notifications
// @Security     BearerAuth
// @Produce      json
// @Param        id   path      string  true  "Notification ID"
// @Success      200  {object}  response.Response
// @Failure      404  {object}  response.Response
// @Router       /api/notifications/{id}/archive [put]
func (h *NotificationHandler) Archive(c *gin.Context) {
	notificationID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, response.Error(http.StatusBadRequest, "Invalid notification id"))
		return
	}
	if err := h.notificationService.Archive(c.Request.Context(), middleware.CurrentUser(c).ID, notificationID); err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Success(http.StatusOK, gin.H{"message": "archived"}))
}

// ListSecurityEvents returns the audit trail newest first
// @Summary      List security events
// @Tags         security
// @Security     BearerAuth
// @Produce      json
// @Param        type   query     string  false  "Filter by event type"
// @Param        page   query     int     false  "Page number (default 1)"
// @Param        limit  query     int     false  "Items per page (default 20)"
// @Success      200    {object}  response.Response{data=[]model.SecurityEvent}
// @Failure      403    {object}  response.Response
// @Router       /api/security-events [get]
func (h *NotificationHandler) ListSecurityEvents(c *gin.Context) {
	params := pagination.Parse(c)
	events, total, err := h.notificationService.ListSecurityEvents(c.Request.Context(), c.Query("type"), params.Page, params.Limit)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, response.Paged(http.StatusOK, events, params.Page, params.Limit, total))
}
