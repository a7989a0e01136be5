package handlers

import (
	"net/http"

	"github.com/labstack/echo/v4"
)

// GetStats godoc
// @Summary Get network statistics
// @Description Returns node counts, storage, credits eligibility and network health
// @Tags stats
// @Produce json
// @Success 200 {object} NetworkStatsResponse
// @Failure 503 {object} ErrorResponse
// @Router /api/stats [get]
func (h *Handler) GetStats(c echo.Context) error {
	stats, stale, found := h.Cache.GetNetworkStats(false)
	if !found {
		stats, stale, found = h.Cache.GetNetworkStats(true)
	}
	if !found {
		return c.JSON(http.StatusServiceUnavailable, ErrorResponse{
			Error: "Network statistics temporarily unavailable",
		})
	}

	nodes, _, nodesFound := h.Cache.GetNodes(true)

	var publicNodes, privateNodes int
	if nodesFound {
		for _, node := range nodes {
			if node.IsPublic {
				publicNodes++
			} else {
				privateNodes++
			}
		}
	}

	response := NetworkStatsResponse{
		TotalNodes:         stats.TotalNodes,
		OnlineNodes:        stats.OnlineNodes,
		DegradedNodes:      stats.DegradedNodes,
		OfflineNodes:       stats.OfflineNodes,
		PublicNodes:        publicNodes,
		PrivateNodes:       privateNodes,
		TotalStoragePB:     stats.TotalStorage,
		UsedStoragePB:      stats.UsedStorage,
		AverageUptime:      stats.AverageUptime,
		AverageHealthScore: stats.AverageHealthScore,
		TotalCredits:       stats.TotalCredits,
		CreditsThreshold:   stats.CreditsThreshold,
		EligibleNodes:      stats.EligibleNodes,
		NetworkHealth:      stats.NetworkHealth,
		LastUpdated:        stats.LastUpdated.String(),
	}

	if stale {
		c.Response().Header().Set("X-Data-Stale", "true")
		c.Response().Header().Set("Cache-Control", "max-age=30")
	} else {
		c.Response().Header().Set("Cache-Control", "max-age=60")
	}

	return c.JSON(http.StatusOK, response)
}

type NetworkStatsResponse struct {
	TotalNodes         int     `json:"total_nodes"`
	OnlineNodes        int     `json:"online_nodes"`
	DegradedNodes      int     `json:"degraded_nodes"`
	OfflineNodes       int     `json:"offline_nodes"`
	PublicNodes        int     `json:"public_nodes"`
	PrivateNodes       int     `json:"private_nodes"`
	TotalStoragePB     float64 `json:"total_storage_pb"`
	UsedStoragePB      float64 `json:"used_storage_pb"`
	AverageUptime      float64 `json:"average_uptime"`
	AverageHealthScore float64 `json:"average_health_score"`
	TotalCredits       float64 `json:"total_credits"`
	CreditsThreshold   float64 `json:"credits_threshold"`
	EligibleNodes      int     `json:"eligible_nodes"`
	NetworkHealth      float64 `json:"network_health"`
	LastUpdated        string  `json:"last_updated"`
}
