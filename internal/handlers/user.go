package handlers

import (
	"log/slog"
	"net/http"

	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// UserHandler handles HTTP requests related to users
type UserHandler struct {
	users  *services.UserService
	logger *slog.Logger
}

// NewUserHandler creates a new UserHandler
func NewUserHandler(users *services.UserService, logger *slog.Logger) *UserHandler {
	return &UserHandler{users: users, logger: loggerOrDefault(logger)}
}

// RegisterProfileRoutes registers user profile-related routes
func (h *UserHandler) RegisterProfileRoutes(g *echo.Group) {
	g.GET("/me", h.GetProfile)
	g.PUT("/me", h.UpdateProfile)
	g.POST("/me/wishlist/:activityId", h.AddToWishlist)
	g.DELETE("/me/wishlist/:activityId", h.RemoveFromWishlist)
	g.GET("/users/search", h.SearchUsers)
	g.GET("/users/:id", h.GetUser)
}

func (h *UserHandler) GetUser(c echo.Context) error {
	user, err := h.users.Get(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, user)
}

// GetProfile retrieves the authenticated user's profile
func (h *UserHandler) GetProfile(c echo.Context) error {
	user, err := h.users.Me(c.Request().Context())
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, user)
}

// UpdateProfile changes the caller's name, avatar or preferences
func (h *UserHandler) UpdateProfile(c echo.Context) error {
	var req models.UpdateProfileRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	user, err := h.users.UpdateProfile(c.Request().Context(), models.ProfileUpdate{
		Name:        req.Name,
		Avatar:      req.Avatar,
		Preferences: req.Preferences,
	})
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, user)
}

func (h *UserHandler) AddToWishlist(c echo.Context) error {
	if err := h.users.AddToWishlist(c.Request().Context(), c.Param("activityId")); err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, echo.Map{"activityId": c.Param("activityId"), "wishlisted": true})
}

func (h *UserHandler) RemoveFromWishlist(c echo.Context) error {
	if err := h.users.RemoveFromWishlist(c.Request().Context(), c.Param("activityId")); err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, echo.Map{"activityId": c.Param("activityId"), "wishlisted": false})
}

// SearchUsers finds users whose name starts with q
func (h *UserHandler) SearchUsers(c echo.Context) error {
	users, err := h.users.Search(c.Request().Context(), c.QueryParam("q"))
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, users)
}
