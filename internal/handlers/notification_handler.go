package handlers

import (
	"context"
	"log/slog"
	"math"
	"net/http"
	"strconv"

	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ActorLookup resolves the users behind notifications.
type ActorLookup interface {
	Profiles(ctx context.Context, ids []string) ([]models.UserCompact, error)
}

// NotificationHandler handles notification-related HTTP requests
type NotificationHandler struct {
	notifications *services.NotificationService
	actors        ActorLookup
	logger        *slog.Logger
}

// NewNotificationHandler creates a new NotificationHandler
func NewNotificationHandler(notifications *services.NotificationService, actors ActorLookup, logger *slog.Logger) *NotificationHandler {
	return &NotificationHandler{
		notifications: notifications,
		actors:        actors,
		logger:        loggerOrDefault(logger),
	}
}

// RegisterNotificationRoutes registers notification routes
func (h *NotificationHandler) RegisterNotificationRoutes(g *echo.Group) {
	g.GET("/notifications", h.GetNotifications)
	g.GET("/notifications/grouped", h.GetGroupedNotifications)
	g.GET("/notifications/unread-count", h.GetUnreadCount)
	g.PUT("/notifications/:id/read", h.MarkAsRead)
	g.PUT("/notifications/read-all", h.MarkAllAsRead)
}

// EnrichedNotification includes actor info
type EnrichedNotification struct {
	models.Notification
	Actor *models.UserCompact `json:"actor,omitempty"`
}

func (h *NotificationHandler) enrichNotifications(ctx context.Context, notifications []models.Notification) []EnrichedNotification {
	enriched := make([]EnrichedNotification, len(notifications))
	var ids []string
	seen := make(map[string]bool)
	for i, n := range notifications {
		enriched[i] = EnrichedNotification{Notification: n}
		if n.ActorID != "" && !seen[n.ActorID] {
			seen[n.ActorID] = true
			ids = append(ids, n.ActorID)
		}
	}
	if len(ids) == 0 || h.actors == nil {
		return enriched
	}

	actors, err := h.actors.Profiles(ctx, ids)
	if err != nil {
		h.logger.WarnContext(ctx, "loading notification actors", "error", err)
		return enriched
	}
	byID := make(map[string]models.UserCompact, len(actors))
	for _, a := range actors {
		byID[a.ID] = a
	}
	for i := range enriched {
		if actor, ok := byID[enriched[i].ActorID]; ok {
			enriched[i].Actor = &actor
		}
	}
	return enriched
}

// GetNotifications returns paginated notifications
func (h *NotificationHandler) GetNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	page, _ := strconv.Atoi(c.QueryParam("page"))
	limit, _ := strconv.Atoi(c.QueryParam("limit"))

	result, err := h.notifications.List(ctx, page, limit)
	if err != nil {
		return httpError(c, h.logger, err)
	}

	totalPages := int(math.Ceil(float64(result.Total) / float64(result.Limit)))

	return c.JSON(http.StatusOK, echo.Map{
		"success": true,
		"data": echo.Map{
			"notifications": h.enrichNotifications(ctx, result.Notifications),
		},
		"meta": echo.Map{
			"currentPage":     result.Page,
			"totalPages":      totalPages,
			"totalItems":      result.Total,
			"itemsPerPage":    result.Limit,
			"hasNextPage":     result.Page < totalPages,
			"hasPreviousPage": result.Page > 1,
		},
	})
}

// GetGroupedNotifications returns notifications grouped by time period
func (h *NotificationHandler) GetGroupedNotifications(c echo.Context) error {
	ctx := c.Request().Context()
	grouped, err := h.notifications.Grouped(ctx)
	if err != nil {
		return httpError(c, h.logger, err)
	}

	unreadCount, _ := h.notifications.UnreadCount(ctx)

	return success(c, http.StatusOK, echo.Map{
		"notifications": echo.Map{
			"today":     h.enrichNotifications(ctx, grouped.Today),
			"yesterday": h.enrichNotifications(ctx, grouped.Yesterday),
			"thisWeek":  h.enrichNotifications(ctx, grouped.ThisWeek),
			"older":     h.enrichNotifications(ctx, grouped.Older),
		},
		"unreadCount": unreadCount,
	})
}

// GetUnreadCount returns the unread notification count
func (h *NotificationHandler) GetUnreadCount(c echo.Context) error {
	count, err := h.notifications.UnreadCount(c.Request().Context())
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, echo.Map{"count": count})
}

// MarkAsRead marks a notification as read
func (h *NotificationHandler) MarkAsRead(c echo.Context) error {
	if err := h.notifications.MarkRead(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, echo.Map{"success": true})
}

// MarkAllAsRead marks all notifications as read
func (h *NotificationHandler) MarkAllAsRead(c echo.Context) error {
	updated, err := h.notifications.MarkAllRead(c.Request().Context())
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, echo.Map{"success": true, "updated": updated})
}
