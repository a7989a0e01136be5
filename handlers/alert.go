package handlers

import (
	"context"
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/labstack/echo/v4"
	log "github.com/sirupsen/logrus"

	"xandpulse/services"
)

// CycleRunner runs one collect-diff-alert cycle on demand.
type CycleRunner interface {
	RunCycle(ctx context.Context) (*services.CycleResult, error)
}

// AlertHandlers serves the in-app alert feed and the manual trigger.
type AlertHandlers struct {
	alertService *services.AlertService
	runner       CycleRunner
	cronSecret   string
}

func NewAlertHandlers(alertService *services.AlertService, runner CycleRunner, cronSecret string) *AlertHandlers {
	return &AlertHandlers{
		alertService: alertService,
		runner:       runner,
		cronSecret:   cronSecret,
	}
}

// ListAlerts - GET /api/alerts?subscription_id=&unread=true&limit=50
func (ah *AlertHandlers) ListAlerts(c echo.Context) error {
	limit := intQuery(c, "limit", 50)
	if limit < 1 || limit > 500 {
		limit = 50
	}
	unread := c.QueryParam("unread") == "true"

	rows, err := ah.alertService.Feed(c.Request().Context(), c.QueryParam("subscription_id"), unread, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":  len(rows),
		"alerts": rows,
	})
}

// MarkRead - POST /api/alerts/:id/read
func (ah *AlertHandlers) MarkRead(c echo.Context) error {
	err := ah.alertService.MarkRead(c.Request().Context(), c.Param("id"))
	if errors.Is(err, services.ErrAlertNotFound) {
		return c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})
	}
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, map[string]string{"message": "alert marked as read"})
}

// ProcessAlerts - POST /api/alerts/process
// Runs one cycle immediately. Requires "Authorization: Bearer <secret>" when a
// cron secret is configured.
func (ah *AlertHandlers) ProcessAlerts(c echo.Context) error {
	if ah.cronSecret != "" {
		token := strings.TrimPrefix(c.Request().Header.Get(echo.HeaderAuthorization), "Bearer ")
		if subtle.ConstantTimeCompare([]byte(token), []byte(ah.cronSecret)) != 1 {
			log.Warnf("⚠️  Rejected alert trigger from %s", c.RealIP())
			return c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "unauthorized"})
		}
	}

	result, err := ah.runner.RunCycle(c.Request().Context())
	if err != nil {
		return c.JSON(http.StatusBadGateway, ErrorResponse{Error: err.Error()})
	}
	return c.JSON(http.StatusOK, result)
}
