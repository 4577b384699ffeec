package handlers

import (
	"log/slog"
	"net/http"

	"github.com/anonto42/minglr/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// LikeHandler handles like-related HTTP requests
type LikeHandler struct {
	posts  *services.PostService
	logger *slog.Logger
}

// NewLikeHandler creates a new LikeHandler
func NewLikeHandler(posts *services.PostService, logger *slog.Logger) *LikeHandler {
	return &LikeHandler{posts: posts, logger: loggerOrDefault(logger)}
}

// RegisterLikeRoutes registers like-related routes
func (h *LikeHandler) RegisterLikeRoutes(g *echo.Group) {
	g.POST("/posts/:id/like", h.ToggleLike)
}

// ToggleLike likes the post, or removes the caller's like if present
func (h *LikeHandler) ToggleLike(c echo.Context) error {
	liked, err := h.posts.ToggleLike(c.Request().Context(), c.Param("id"))
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, echo.Map{"postId": c.Param("id"), "liked": liked})
}
