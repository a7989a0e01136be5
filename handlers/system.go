package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
)

// DatabaseStatus is the optional persistent backend reported by /api/status.
type DatabaseStatus interface {
	Ping(ctx context.Context) error
	GetDatabaseStats(ctx context.Context) (map[string]interface{}, error)
}

// GetHealth returns OK
func (h *Handler) GetHealth(c echo.Context) error {
	return c.String(http.StatusOK, "OK")
}

// GetStatus returns backend status
func (h *Handler) GetStatus(c echo.Context) error {
	nodes, stale, _ := h.Cache.GetNodes(true)

	status := map[string]interface{}{
		"status":      "running",
		"uptime":      time.Since(h.StartedAt).Round(time.Second).String(),
		"knownNodes":  len(nodes),
		"cacheStatus": h.Cache.GetCacheMode(),
		"staleData":   stale,
		"timestamp":   time.Now(),
		"database":    "memory",
	}

	if h.Database != nil {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 3*time.Second)
		defer cancel()
		if err := h.Database.Ping(ctx); err != nil {
			status["database"] = "unreachable"
		} else if counts, err := h.Database.GetDatabaseStats(ctx); err == nil {
			status["database"] = "mongodb"
			status["collections"] = counts
		}
	}
	return c.JSON(http.StatusOK, status)
}
