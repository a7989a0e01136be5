package services

import (
	"math"
	"time"

	log "github.com/sirupsen/logrus"

	"xandpulse/models"
)

const bytesPerPB = 1e15

// AggregateNetworkStats summarises an enriched node list. threshold is the
// credits eligibility threshold of the same cycle.
func AggregateNetworkStats(nodes []*models.NodeSnapshot, threshold float64, now time.Time) models.NetworkStats {
	aggr := models.NetworkStats{
		TotalNodes:       len(nodes),
		CreditsThreshold: threshold,
		LastUpdated:      now,
	}

	if len(nodes) == 0 {
		log.Println("No nodes available for aggregation")
		return aggr
	}

	var sumUptime, sumHealth float64

	for _, node := range nodes {
		switch node.Status {
		case models.StatusOnline:
			aggr.OnlineNodes++
		case models.StatusDegraded:
			aggr.DegradedNodes++
		case models.StatusOffline:
			aggr.OfflineNodes++
		}

		aggr.TotalStorage += float64(node.Storage.Total) / bytesPerPB
		aggr.UsedStorage += float64(node.Storage.Used) / bytesPerPB

		sumUptime += node.Uptime
		sumHealth += float64(node.HealthScore)

		aggr.TotalCredits += node.Credits
		if IsEligible(node.Credits, threshold) {
			aggr.EligibleNodes++
		}
	}

	n := float64(len(nodes))
	aggr.AverageUptime = sumUptime / n
	aggr.AverageHealthScore = sumHealth / n

	// Online ratio dominates; average uptime smooths short blips.
	onlineRatio := float64(aggr.OnlineNodes) / n
	aggr.NetworkHealth = math.Min(100, onlineRatio*80+aggr.AverageUptime*0.2)

	log.WithFields(log.Fields{
		"nodes":    aggr.TotalNodes,
		"online":   aggr.OnlineNodes,
		"degraded": aggr.DegradedNodes,
		"offline":  aggr.OfflineNodes,
		"health":   math.Round(aggr.NetworkHealth*100) / 100,
		"eligible": aggr.EligibleNodes,
	}).Debug("Aggregated network stats")

	return aggr
}
