package utils

import (
	"math"
	"time"

	"xandpulse/models"
)

// Gossip propagates every second and reaches the whole network in under
// five minutes, so anything older than the grace period is gone.
const (
	onlineWindow   = 5 * time.Minute
	degradedWindow = 8 * time.Minute
)

// DetermineStatus classifies a node from how long ago gossip last saw it.
func DetermineStatus(lastSeen, now time.Time) models.NodeStatus {
	age := now.Sub(lastSeen)
	switch {
	case age < onlineWindow:
		return models.StatusOnline
	case age < degradedWindow:
		return models.StatusDegraded
	default:
		return models.StatusOffline
	}
}

// UptimePercent converts reported process uptime into a 24h availability
// percentage, halved for nodes that are currently offline.
func UptimePercent(uptimeSeconds int64, status models.NodeStatus) float64 {
	if uptimeSeconds <= 0 {
		return 0
	}
	pct := math.Min(100, float64(uptimeSeconds)/86400*100)
	if status == models.StatusOffline {
		pct /= 2
	}
	return math.Round(pct*100) / 100
}

// BadgeForUptime returns the uptime tier.
func BadgeForUptime(uptime float64) models.Badge {
	switch {
	case uptime >= 99.5:
		return models.BadgeElite
	case uptime >= 95:
		return models.BadgeReliable
	case uptime >= 80:
		return models.BadgeAverage
	default:
		return models.BadgeUnreliable
	}
}

// CalculateHealthScore computes the node's composite score (0-100).
func CalculateHealthScore(n *models.NodeSnapshot) int {
	// 1. Availability (30%)
	var scoreStatus float64
	switch n.Status {
	case models.StatusOnline:
		scoreStatus = 30
	case models.StatusDegraded:
		scoreStatus = 15
	}

	// 2. Uptime (40%)
	scoreUptime := (n.Uptime / 100.0) * 40

	// 3. Version currency (20%)
	var scoreVersion float64
	_, _, severity := CheckVersionStatus(n.Version, nil)
	switch severity {
	case "none":
		scoreVersion = 20
	case "info":
		scoreVersion = 14
	case "warning":
		scoreVersion = 8
	}

	// 4. Reachability (10%)
	var scorePublic float64
	if n.IsPublic {
		scorePublic = 10
	}

	score := scoreStatus + scoreUptime + scoreVersion + scorePublic

	// Test networks carry no mainnet weight.
	if n.VersionType == models.VersionDevnet || n.VersionType == models.VersionTrynet {
		score *= 0.7
	}

	return int(math.Max(0, math.Min(100, math.Round(score))))
}
