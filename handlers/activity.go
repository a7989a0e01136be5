package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"

	"xandpulse/services"
)

type ActivityHandlers struct {
	activity *services.ActivityService
}

func NewActivityHandlers(activity *services.ActivityService) *ActivityHandlers {
	return &ActivityHandlers{activity: activity}
}

// GetActivity - GET /api/activity?limit=20
func (ah *ActivityHandlers) GetActivity(c echo.Context) error {
	limit := intQuery(c, "limit", 20)
	if limit < 1 || limit > 100 {
		limit = 20
	}

	events, err := ah.activity.Recent(c.Request().Context(), limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}

	return c.JSON(http.StatusOK, map[string]interface{}{
		"count":  len(events),
		"events": events,
	})
}
