package handlers

import (
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/anonto42/minglr/backend/internal/apperrors"
	"github.com/labstack/echo/v4"
)

const internalErrorMessage = "Something went wrong, please try again"

func success(c echo.Context, status int, data any) error {
	return c.JSON(status, echo.Map{"success": true, "data": data})
}

// httpError translates service errors to HTTP errors. Unknown errors are logged and hidden.
func httpError(c echo.Context, logger *slog.Logger, err error) error {
	switch {
	case errors.Is(err, apperrors.ErrInvalidInput):
		return echo.NewHTTPError(http.StatusBadRequest, apperrors.Message(err))
	case errors.Is(err, apperrors.ErrUnauthenticated):
		return echo.NewHTTPError(http.StatusUnauthorized, "User not authenticated")
	case errors.Is(err, apperrors.ErrPermissionDenied):
		return echo.NewHTTPError(http.StatusForbidden, permissionMessage(err))
	case errors.Is(err, apperrors.ErrNotFound):
		return echo.NewHTTPError(http.StatusNotFound, "Not found")
	case errors.Is(err, apperrors.ErrConflict):
		return echo.NewHTTPError(http.StatusConflict, "Already exists")
	}
	logger.ErrorContext(c.Request().Context(), "request failed",
		"method", c.Request().Method, "path", c.Path(), "error", err)
	return echo.NewHTTPError(http.StatusInternalServerError, internalErrorMessage)
}

func permissionMessage(err error) string {
	const prefix = "permission denied: "
	msg := err.Error()
	if i := strings.Index(msg, prefix); i >= 0 && strings.HasPrefix(msg[i+len(prefix):], "Permission denied") {
		return msg[i+len(prefix):]
	}
	return "Permission denied"
}

// bind decodes and validates the request body into req.
func bind(c echo.Context, req any) error {
	if err := c.Bind(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "Invalid request payload")
	}
	if c.Echo().Validator == nil {
		return nil
	}
	if err := c.Validate(req); err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, err.Error())
	}
	return nil
}

func loggerOrDefault(logger *slog.Logger) *slog.Logger {
	if logger == nil {
		return slog.Default()
	}
	return logger
}
