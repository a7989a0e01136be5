package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"xandpulse/services"
)

type CacheHandlers struct {
	cache *services.CacheService
}

func NewCacheHandlers(cache *services.CacheService) *CacheHandlers {
	return &CacheHandlers{cache: cache}
}

// GetCacheStatus - GET /cache/status
func (h *CacheHandlers) GetCacheStatus(c echo.Context) error {
	mode := h.cache.GetCacheMode()
	return c.JSON(http.StatusOK, map[string]interface{}{
		"mode":    mode,
		"healthy": mode == services.CacheModeRedis,
		"stats":   h.cache.GetCacheStats(),
	})
}

// ClearCache drops cached nodes and stats. Alert cooldown markers survive.
func (h *CacheHandlers) ClearCache(c echo.Context) error {
	if err := h.cache.ClearCache(); err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{
		"message": "Cache cleared",
		"mode":    string(h.cache.GetCacheMode()),
	})
}
