package handlers

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/anonto42/minglr/backend/internal/geo"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ActivityHandler serves the activity catalogue
type ActivityHandler struct {
	activities *services.ActivityService
	polls      *services.PollService
	logger     *slog.Logger
}

// NewActivityHandler creates a new ActivityHandler
func NewActivityHandler(activities *services.ActivityService, polls *services.PollService, logger *slog.Logger) *ActivityHandler {
	return &ActivityHandler{activities: activities, polls: polls, logger: loggerOrDefault(logger)}
}

// RegisterActivityRoutes registers activity routes
func (h *ActivityHandler) RegisterActivityRoutes(g *echo.Group) {
	g.GET("/activities", h.GetActivities)
	g.GET("/activities/nearby", h.GetNearby)
	g.GET("/activities/ranked", h.GetRanked)
	g.GET("/activities/:id", h.GetActivity)
	g.POST("/activities/:id/share", h.ShareActivity)
}

func (h *ActivityHandler) GetActivities(c echo.Context) error {
	return success(c, http.StatusOK, h.activities.List(c.Request().Context()))
}

func (h *ActivityHandler) GetActivity(c echo.Context) error {
	activity, err := h.activities.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, activity)
}

// GetNearby sorts positioned activities by distance from lat/lng
func (h *ActivityHandler) GetNearby(c echo.Context) error {
	lat, errLat := strconv.ParseFloat(c.QueryParam("lat"), 64)
	lng, errLng := strconv.ParseFloat(c.QueryParam("lng"), 64)
	origin := geo.Point{Lat: lat, Lng: lng}
	if errLat != nil || errLng != nil || !origin.Valid() {
		return echo.NewHTTPError(http.StatusBadRequest, "lat and lng must be valid coordinates")
	}
	return success(c, http.StatusOK, h.activities.Nearby(c.Request().Context(), origin))
}

// GetRanked returns the caller's recommended activities. limit caps the result.
func (h *ActivityHandler) GetRanked(c echo.Context) error {
	ranked, err := h.activities.Ranked(c.Request().Context())
	if err != nil {
		return httpError(c, h.logger, err)
	}
	if limit, err := strconv.Atoi(c.QueryParam("limit")); err == nil && limit >= 0 && limit < len(ranked) {
		ranked = ranked[:limit]
	}
	return success(c, http.StatusOK, ranked)
}

// ShareActivity posts the activity with an attendance poll to a group
func (h *ActivityHandler) ShareActivity(c echo.Context) error {
	var req models.ShareActivityRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	msg, err := h.polls.ShareActivity(c.Request().Context(), c.Param("id"), req.GroupID)
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusCreated, msg)
}
