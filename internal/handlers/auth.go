package handlers

import (
	"log/slog"
	"net/http"
	"time"

	"firebase.google.com/go/v4/auth"
	"github.com/anonto42/minglr/backend/internal/middleware"
	"github.com/anonto42/minglr/backend/internal/models"
	"github.com/anonto42/minglr/backend/internal/services"
	"github.com/anonto42/minglr/backend/internal/session"
	"github.com/labstack/echo/v4"
)

// AuthHandler exchanges Firebase identities for Minglr session tokens
type AuthHandler struct {
	users     *services.UserService
	verifier  middleware.TokenVerifier
	jwtSecret string
	jwtTTL    time.Duration
	logger    *slog.Logger
}

// NewAuthHandler creates a new AuthHandler
func NewAuthHandler(users *services.UserService, verifier middleware.TokenVerifier, jwtSecret string, jwtTTL time.Duration, logger *slog.Logger) *AuthHandler {
	if jwtTTL <= 0 {
		jwtTTL = 72 * time.Hour
	}
	return &AuthHandler{
		users:     users,
		verifier:  verifier,
		jwtSecret: jwtSecret,
		jwtTTL:    jwtTTL,
		logger:    loggerOrDefault(logger),
	}
}

// RegisterAuthRoutes registers the public authentication routes
func (h *AuthHandler) RegisterAuthRoutes(g *echo.Group) {
	g.POST("/session", h.Session, middleware.FirebaseAuthMiddleware(h.verifier))
	g.POST("/signup", h.Signup)
}

type sessionResponse struct {
	Token string              `json:"token"`
	User  *models.UserProfile `json:"user"`
}

// Session verifies the Firebase ID token, creates the profile on first sign-in and issues a session JWT
func (h *AuthHandler) Session(c echo.Context) error {
	token, ok := c.Get(middleware.FirebaseTokenKey).(*auth.Token)
	if !ok {
		return echo.NewHTTPError(http.StatusUnauthorized, "Invalid Firebase ID token")
	}

	principal := session.Principal{
		UserID: token.UID,
		Name:   stringClaim(token.Claims, "name"),
		Avatar: stringClaim(token.Claims, "picture"),
		Email:  stringClaim(token.Claims, "email"),
	}
	ctx := session.WithPrincipal(c.Request().Context(), principal)
	profile, err := h.users.EnsureProfile(ctx, principal)
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return h.issue(c, http.StatusOK, profile)
}

// Signup creates the Firebase account and its profile
func (h *AuthHandler) Signup(c echo.Context) error {
	var req models.SignupRequest
	if err := bind(c, &req); err != nil {
		return err
	}

	profile, err := h.users.Signup(c.Request().Context(), req)
	if err != nil {
		return httpError(c, h.logger, err)
	}
	return h.issue(c, http.StatusCreated, profile)
}

func (h *AuthHandler) issue(c echo.Context, status int, profile *models.UserProfile) error {
	token, err := middleware.IssueToken(h.jwtSecret, h.jwtTTL, profile, time.Now())
	if err != nil {
		h.logger.ErrorContext(c.Request().Context(), "signing session token", "user_id", profile.ID, "error", err)
		return echo.NewHTTPError(http.StatusInternalServerError, "Failed to generate token")
	}
	return success(c, status, sessionResponse{Token: token, User: profile})
}

func stringClaim(claims map[string]interface{}, key string) string {
	if v, ok := claims[key].(string); ok {
		return v
	}
	return ""
}
