package router

import (
	"log/slog"
	"time"

	"github.com/anonto42/minglr/backend/internal/handlers"
	"github.com/anonto42/minglr/backend/internal/media"
	"github.com/anonto42/minglr/backend/internal/metrics"
	"github.com/anonto42/minglr/backend/internal/middleware"
	"github.com/anonto42/minglr/backend/internal/services"
	"github.com/labstack/echo/v4"
)

// Dependencies are the services and settings the routes are built from.
type Dependencies struct {
	Users         *services.UserService
	Messaging     *services.MessagingService
	Polls         *services.PollService
	Notifications *services.NotificationService
	Posts         *services.PostService
	Activities    *services.ActivityService
	Uploader      *media.Uploader

	// Profiles resolves session tokens to principals.
	Profiles middleware.ProfileResolver
	Verifier middleware.TokenVerifier

	JWTSecret      string
	JWTTTL         time.Duration
	OriginPatterns []string
	HealthChecks   map[string]handlers.Pinger
	Metrics        *metrics.Metrics
	Logger         *slog.Logger
}

// SetupRoutes configures all application routes and injects dependencies
func SetupRoutes(e *echo.Echo, d Dependencies) {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	// Health check - always accessible
	e.GET("/health", handlers.HealthCheck(d.HealthChecks))

	// --- Unprotected routes for authentication ---
	authGroup := e.Group("/api/v1/auth")
	authHandler := handlers.NewAuthHandler(d.Users, d.Verifier, d.JWTSecret, d.JWTTTL, logger)
	authHandler.RegisterAuthRoutes(authGroup)
	logger.Debug("auth routes configured")

	// --- Protected routes (require JWT authentication) ---
	auth := middleware.JWTAuthMiddleware(d.JWTSecret, d.Profiles)
	api := e.Group("/api/v1", auth)

	handlers.NewUserHandler(d.Users, logger).RegisterProfileRoutes(api)
	handlers.NewFollowHandler(d.Users, logger).RegisterFollowRoutes(api)
	logger.Debug("user routes configured")

	handlers.NewPostHandler(d.Posts, logger).RegisterPostRoutes(api)
	handlers.NewLikeHandler(d.Posts, logger).RegisterLikeRoutes(api)
	handlers.NewCommentHandler(d.Posts, logger).RegisterCommentRoutes(api)
	logger.Debug("post routes configured")

	handlers.NewChatHandler(d.Messaging, d.Polls, logger).RegisterChatRoutes(api)
	handlers.NewActivityHandler(d.Activities, d.Polls, logger).RegisterActivityRoutes(api)
	logger.Debug("chat and activity routes configured")

	handlers.NewNotificationHandler(d.Notifications, d.Users, logger).RegisterNotificationRoutes(api)
	logger.Debug("notification routes configured")

	if d.Uploader != nil {
		handlers.NewUploadHandler(d.Uploader, logger).RegisterUploadRoutes(api)
		logger.Debug("upload routes configured")
	}

	// websockets authenticate with the token query parameter
	ws := e.Group("/api/v1/ws", auth)
	handlers.NewStreamHandler(d.Messaging, d.Polls, d.Posts, d.Notifications, d.Metrics, d.OriginPatterns, logger).
		RegisterStreamRoutes(ws)
	logger.Debug("stream routes configured")

	logger.Info("all routes configured")
}
