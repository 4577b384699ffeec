package handlers

import (
	"log/slog"
	"net/http"

	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// ChatHandler handles groups, messages and polls
type ChatHandler struct {
	messaging *services.MessagingService
	polls     *services.PollService
	logger    *slog.Logger
}

// NewChatHandler creates a new ChatHandler
func NewChatHandler(messaging *services.MessagingService, polls *services.PollService, logger *slog.Logger) *ChatHandler {
	return &ChatHandler{messaging: messaging, polls: polls, logger: loggerOrDefault(logger)}
}

// RegisterChatRoutes registers group, message and poll routes
func (h *ChatHandler) RegisterChatRoutes(g *echo.Group) {
	g.POST("/groups", h.CreateGroup)
	g.POST("/groups/:id/members", h.AddMembers)
	g.DELETE("/groups/:id/members/me", h.LeaveGroup)

	g.POST("/messages", h.SendMessage)
	g.POST("/messages/:id/vote", h.Vote)
	g.GET("/messages/:id/poll", h.GetPoll)
	g.GET("/events/confirmed", h.GetConfirmedEvents)
}

// CreateGroup creates a group with the caller as a member
func (h *ChatHandler) CreateGroup(c echo.Context) error {
	var req models.CreateGroupRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	group, err := h.messaging.CreateGroup(c.Request().Context(), req.Name, req.MemberIDs)
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusCreated, group)
}

func (h *ChatHandler) AddMembers(c echo.Context) error {
	var req models.AddMembersRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	group, err := h.messaging.AddMembers(c.Request().Context(), c.Param("id"), req.MemberIDs)
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, group)
}

func (h *ChatHandler) LeaveGroup(c echo.Context) error {
	if err := h.messaging.LeaveGroup(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, echo.Map{"groupId": c.Param("id"), "left": true})
}

// SendMessage posts to a group, or to the global channel when no group is given
func (h *ChatHandler) SendMessage(c echo.Context) error {
	var req models.SendMessageRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	msg, err := h.messaging.SendMessage(c.Request().Context(), services.SendMessageInput{
		Text:       req.Text,
		ActivityID: req.ActivityID,
		GroupID:    req.GroupID,
		Poll:       req.Poll,
	})
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusCreated, msg)
}

func (h *ChatHandler) Vote(c echo.Context) error {
	var req models.VoteRequest
	if err := bind(c, &req); err != nil {
		return err
	}
	if req.Option == nil {
		return echo.NewHTTPError(http.StatusBadRequest, "option is required")
	}

	view, err := h.polls.Vote(c.Request().Context(), c.Param("id"), *req.Option)
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, view)
}

func (h *ChatHandler) GetPoll(c echo.Context) error {
	view, err := h.polls.Poll(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, view)
}

// GetConfirmedEvents lists the attendance polls the caller voted YES on
func (h *ChatHandler) GetConfirmedEvents(c echo.Context) error {
	events, err := h.polls.ConfirmedEvents(c.Request().Context())
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, events)
}
