package handlers

import (
	"log/slog"
	"net/http"

	"github.com/anonto42/minglr/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// FollowHandler handles follow/unfollow HTTP requests
type FollowHandler struct {
	users  *services.UserService
	logger *slog.Logger
}

// NewFollowHandler creates a new FollowHandler
func NewFollowHandler(users *services.UserService, logger *slog.Logger) *FollowHandler {
	return &FollowHandler{users: users, logger: loggerOrDefault(logger)}
}

// RegisterFollowRoutes registers follow-related routes
func (h *FollowHandler) RegisterFollowRoutes(g *echo.Group) {
	g.POST("/users/:id/follow", h.FollowUser)
	g.DELETE("/users/:id/follow", h.UnfollowUser)
	g.GET("/users/:id/followers", h.GetFollowers)
	g.GET("/users/:id/following", h.GetFollowing)
	g.GET("/friends", h.GetFriends)
}

// FollowUser follows a user
func (h *FollowHandler) FollowUser(c echo.Context) error {
	if err := h.users.Follow(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusCreated, echo.Map{"userId": c.Param("id"), "following": true})
}

// UnfollowUser unfollows a user
func (h *FollowHandler) UnfollowUser(c echo.Context) error {
	if err := h.users.Unfollow(c.Request().Context(), c.Param("id")); err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, echo.Map{"userId": c.Param("id"), "following": false})
}

func (h *FollowHandler) GetFollowers(c echo.Context) error {
	users, err := h.users.Followers(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, users)
}

func (h *FollowHandler) GetFollowing(c echo.Context) error {
	users, err := h.users.Following(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, users)
}

// GetFriends lists mutual follows of the caller
func (h *FollowHandler) GetFriends(c echo.Context) error {
	users, err := h.users.Friends(c.Request().Context())
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, users)
}
