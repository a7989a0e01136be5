package handlers

import (
	"net/http"
	"strconv"

	"github.com/labstack/echo/v4"

	"xandpulse/services"
)

type CreditsHandlers struct {
	creditsService *services.CreditsService
}

func NewCreditsHandlers(creditsService *services.CreditsService) *CreditsHandlers {
	return &CreditsHandlers{
		creditsService: creditsService,
	}
}

// GetAllCredits - GET /api/credits
func (ch *CreditsHandlers) GetAllCredits(c echo.Context) error {
	credits := ch.creditsService.GetAllCredits()

	return c.JSON(http.StatusOK, map[string]interface{}{
		"total":     len(credits),
		"threshold": ch.creditsService.Threshold().Threshold,
		"credits":   credits,
	})
}

// GetTopCredits - GET /api/credits/top?limit=20
func (ch *CreditsHandlers) GetTopCredits(c echo.Context) error {
	limit := 20
	if l, err := strconv.Atoi(c.QueryParam("limit")); err == nil && l > 0 {
		limit = l
	}

	credits := ch.creditsService.GetTopCredits(limit)

	return c.JSON(http.StatusOK, map[string]interface{}{
		"limit":       limit,
		"count":       len(credits),
		"top_credits": credits,
	})
}

// GetThreshold - GET /api/credits/threshold
func (ch *CreditsHandlers) GetThreshold(c echo.Context) error {
	return c.JSON(http.StatusOK, ch.creditsService.Threshold())
}

// GetNodeCredits - GET /api/credits/:pubkey
func (ch *CreditsHandlers) GetNodeCredits(c echo.Context) error {
	pubkey := c.Param("pubkey")
	if pubkey == "" {
		return c.JSON(http.StatusBadRequest, ErrorResponse{Error: "pubkey parameter required"})
	}

	credits, exists := ch.creditsService.GetCredits(pubkey)
	if !exists {
		return c.JSON(http.StatusNotFound, map[string]string{
			"error":  "credits not found for this pubkey",
			"pubkey": pubkey,
		})
	}

	return c.JSON(http.StatusOK, credits)
}

// GetCreditsStats - GET /api/credits/stats
func (ch *CreditsHandlers) GetCreditsStats(c echo.Context) error {
	return c.JSON(http.StatusOK, ch.creditsService.GetCreditsStats())
}
