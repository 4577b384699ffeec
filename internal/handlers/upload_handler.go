package handlers

import (
	"log/slog"
	"net/http"

	"github.com/anonto42/minglr/backend/internal/media"
	"github.com/labstack/echo/v4"
)

// UploadHandler accepts image uploads as multipart "file" fields
type UploadHandler struct {
	uploader *media.Uploader
	logger   *slog.Logger
}

// NewUploadHandler creates a new UploadHandler
func NewUploadHandler(uploader *media.Uploader, logger *slog.Logger) *UploadHandler {
	return &UploadHandler{uploader: uploader, logger: loggerOrDefault(logger)}
}

// RegisterUploadRoutes registers upload routes
func (h *UploadHandler) RegisterUploadRoutes(g *echo.Group) {
	g.POST("/uploads/profile-picture", h.upload(media.ProfilePicture))
	g.POST("/uploads/post-image", h.upload(media.PostImage))
}

func (h *UploadHandler) upload(kind media.Kind) echo.HandlerFunc {
	return func(c echo.Context) error {
		fh, err := c.FormFile("file")
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "file is required")
		}
		if fh.Size > media.MaxImageSize {
			return echo.NewHTTPError(http.StatusBadRequest, "Image size must be less than 5MB")
		}
		f, err := fh.Open()
		if err != nil {
			return echo.NewHTTPError(http.StatusBadRequest, "Invalid file")
		}
		defer f.Close()

		url, err := h.uploader.Upload(c.Request().Context(), kind, fh.Filename, f)
		if err != nil {
			return httpError(c, h.logger, err)
		}
		return success(c, http.StatusCreated, echo.Map{"url": url, "path": string(kind)})
	}
}
