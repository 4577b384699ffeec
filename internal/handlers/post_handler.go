package handlers

import (
	"log/slog"
	"net/http"

	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// PostHandler handles HTTP requests related to feed posts
type PostHandler struct {
	posts  *services.PostService
	logger *slog.Logger
}

// NewPostHandler creates a new PostHandler
func NewPostHandler(posts *services.PostService, logger *slog.Logger) *PostHandler {
	return &PostHandler{posts: posts, logger: loggerOrDefault(logger)}
}

// RegisterPostRoutes registers post-related routes
func (h *PostHandler) RegisterPostRoutes(g *echo.Group) {
	g.GET("/posts", h.GetPosts)
	g.POST("/posts", h.CreatePost)
}

// CreatePost publishes a post as the caller
func (h *PostHandler) CreatePost(c echo.Context) error {
	var req models.CreatePostRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	post, err := h.posts.Create(c.Request().Context(), req)
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusCreated, post)
}

// GetPosts returns the feed, newest first
func (h *PostHandler) GetPosts(c echo.Context) error {
	posts, err := h.posts.List(c.Request().Context())
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return success(c, http.StatusOK, posts)
}
