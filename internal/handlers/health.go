package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// Pinger is a dependency checked by the health endpoint.
type Pinger func(ctx context.Context) error

// HealthCheck reports the service status. Failing dependencies are listed and turn the status into 503.
func HealthCheck(checks map[string]Pinger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()

		failing := map[string]string{}
		for name, ping := range checks {
			if err := ping(ctx); err != nil {
				failing[name] = err.Error()
			}
		}
		if len(failing) > 0 {
			return c.JSON(http.StatusServiceUnavailable, echo.Map{
				"status":  "degraded",
				"service": "minglr-api",
				"failing": failing,
			})
		}
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "healthy",
			"service": "minglr-api",
		})
	}
}
