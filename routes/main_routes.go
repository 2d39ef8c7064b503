package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/HSouheill/barrim_matching/controllers"
	"github.com/HSouheill/barrim_matching/websocket"
)

// Pinger reports whether the database is reachable.
type Pinger func(ctx context.Context) error

// SetupRoutes registers the health check and every API route group.
func SetupRoutes(e *echo.Echo, ping Pinger, mc *controllers.MatchingBonusController, hub *websocket.Hub, jwtSecret string) {
	e.Match([]string{http.MethodGet, http.MethodHead}, "/health", func(c echo.Context) error {
		status, database := http.StatusOK, "connected"
		ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
		defer cancel()
		if err := ping(ctx); err != nil {
			status, database = http.StatusServiceUnavailable, "unreachable"
		}
		return c.JSON(status, map[string]string{
			"status":   http.StatusText(status),
			"database": database,
		})
	})

	RegisterMatchingRoutes(e, mc, hub, jwtSecret)
}
