package handlers

import (
	"log/slog"
	"net/http"

	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// CommentHandler handles comment-related HTTP requests
type CommentHandler struct {
	posts  *services.PostService
	logger *slog.Logger
}

// NewCommentHandler creates a new CommentHandler
func NewCommentHandler(posts *services.PostService, logger *slog.Logger) *CommentHandler {
	return &CommentHandler{posts: posts, logger: loggerOrDefault(logger)}
}

// RegisterCommentRoutes registers comment-related routes
func (h *CommentHandler) RegisterCommentRoutes(g *echo.Group) {
	g.POST("/posts/:id/comments", h.CreateComment)
}

// CreateComment adds a comment to a post
func (h *CommentHandler) CreateComment(c echo.Context) error {
	var req models.CreateCommentRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	comment, err := h.posts.AddComment(c.Request().Context(), c.Param("id"), req.Text)
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusCreated, comment)
}
