package services

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"

	"xandpulse/models"
	"xandpulse/utils"
)

const (
	terabyte = int64(1_000_000_000_000)
	petabyte = 1000 * terabyte

	healthSwingPoints = 2.0
	nodeCountSwing    = 5
)

// storageMilestones are the network capacity marks announced in the feed, ascending.
var storageMilestones = []int64{
	100 * terabyte,
	125 * terabyte,
	150 * terabyte,
	200 * terabyte,
	250 * terabyte,
	500 * terabyte,
	petabyte,
}

// BuildNetworkSnapshot summarises a node population for the next cycle's diff.
func BuildNetworkSnapshot(nodes []*models.NodeSnapshot, now time.Time) *models.NetworkSnapshot {
	snap := &models.NetworkSnapshot{
		Nodes:      make(map[string]models.NodeState, len(nodes)),
		Countries:  make(map[string]int),
		TotalNodes: len(nodes),
		Timestamp:  now,
	}

	for _, n := range nodes {
		snap.Nodes[n.ID] = models.NodeState{
			Status:  n.Status,
			Version: n.Version,
			Badge:   utils.BadgeForUptime(n.Uptime),
		}
		if c := n.Country(); c != "" {
			snap.Countries[c]++
		}
		snap.TotalStorage += n.Storage.Total
		if n.Status == models.StatusOnline {
			snap.OnlineNodes++
		}
	}

	if snap.TotalNodes > 0 {
		snap.HealthScore = float64(snap.OnlineNodes) / float64(snap.TotalNodes) * 100
	}
	return snap
}

// DetectChanges diffs two consecutive snapshots into feed events. It has no
// side effects; node ids are visited in sorted order so output is stable.
func DetectChanges(prev, curr *models.NetworkSnapshot, currentNodes []*models.NodeSnapshot) []models.ActivityEvent {
	if prev == nil || curr == nil {
		return nil
	}

	ts := curr.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	byID := make(map[string]*models.NodeSnapshot, len(currentNodes))
	for _, n := range currentNodes {
		byID[n.ID] = n
	}
	label := func(id string) string {
		if n, ok := byID[id]; ok && n.Address != "" {
			return fmt.Sprintf("%s (%s)", shortID(id), n.Address)
		}
		return shortID(id)
	}

	var events []models.ActivityEvent
	emit := func(t models.ActivityType, icon, nodeID, msg string, meta map[string]interface{}) {
		events = append(events, models.ActivityEvent{
			ID:        newEventID(ts),
			Type:      t,
			Message:   msg,
			Icon:      icon,
			NodeID:    nodeID,
			Timestamp: ts,
			Metadata:  meta,
		})
	}

	for _, id := range sortedKeys(curr.Nodes) {
		cur := curr.Nodes[id]
		old, existed := prev.Nodes[id]

		if !existed {
			emit(models.ActivityNodeOnline, models.IconServer, id,
				fmt.Sprintf("New node %s joined the network", label(id)), nil)
			continue
		}

		if cur.Status != old.Status {
			meta := map[string]interface{}{"from": old.Status, "to": cur.Status}
			switch cur.Status {
			case models.StatusOnline:
				emit(models.ActivityNodeOnline, models.IconUp, id,
					fmt.Sprintf("Node %s came online", label(id)), meta)
			case models.StatusOffline:
				emit(models.ActivityNodeOffline, models.IconDown, id,
					fmt.Sprintf("Node %s went offline", label(id)), meta)
			case models.StatusDegraded:
				emit(models.ActivityNodeDegraded, models.IconWarning, id,
					fmt.Sprintf("Node %s is experiencing issues", label(id)), meta)
			}
		}

		if cur.Version != old.Version {
			emit(models.ActivityVersionChange, models.IconUpgrade, id,
				fmt.Sprintf("Node %s updated from %s to %s", label(id), old.Version, cur.Version),
				map[string]interface{}{"from": old.Version, "to": cur.Version})
		}

		if badgeAchieved(old.Badge, cur.Badge) {
			emit(models.ActivityBadgeAchieved, models.IconAward, id,
				fmt.Sprintf("Node %s earned the %s badge", label(id), cur.Badge),
				map[string]interface{}{"from": old.Badge, "to": cur.Badge})
		}
	}

	for _, id := range sortedKeys(prev.Nodes) {
		if _, still := curr.Nodes[id]; !still {
			emit(models.ActivityNodeOffline, models.IconDown, id,
				fmt.Sprintf("Node %s left the network", shortID(id)), nil)
		}
	}

	for _, country := range sortedKeys(curr.Countries) {
		now := curr.Countries[country]
		before := prev.Countries[country]
		if before > 0 && now > before {
			delta := now - before
			emit(models.ActivityCountryChange, models.IconGlobe, "",
				fmt.Sprintf("%d new node(s) in %s, now %d", delta, country, now),
				map[string]interface{}{"country": country, "delta": delta, "total": now})
		}
	}

	for _, m := range storageMilestones {
		if curr.TotalStorage >= m && prev.TotalStorage < m {
			emit(models.ActivityStorageMilestone, models.IconDatabase, "",
				fmt.Sprintf("Network storage passed %s", formatMilestone(m)),
				map[string]interface{}{"milestone_bytes": m, "total_bytes": curr.TotalStorage})
		}
	}

	if delta := curr.HealthScore - prev.HealthScore; math.Abs(delta) >= healthSwingPoints {
		verb := "rose"
		if delta < 0 {
			verb = "fell"
		}
		emit(models.ActivityHealthChange, models.IconActivity, "",
			fmt.Sprintf("Network health %s %.1f points to %.1f%%", verb, math.Abs(delta), curr.HealthScore),
			map[string]interface{}{"delta": delta, "health": curr.HealthScore})
	}

	if delta := curr.TotalNodes - prev.TotalNodes; delta >= nodeCountSwing || delta <= -nodeCountSwing {
		verb := "grew"
		if delta < 0 {
			verb = "shrank"
		}
		emit(models.ActivityNodeCountChange, models.IconServer, "",
			fmt.Sprintf("Node count %s by %d to %d", verb, absInt(delta), curr.TotalNodes),
			map[string]interface{}{"delta": delta, "total": curr.TotalNodes})
	}

	return events
}

// badgeAchieved: any move into elite, or average to reliable.
// unreliable -> average is deliberately not announced.
func badgeAchieved(from, to models.Badge) bool {
	if from == to {
		return false
	}
	if to == models.BadgeElite {
		return true
	}
	return from == models.BadgeAverage && to == models.BadgeReliable
}

func newEventID(ts time.Time) string {
	return fmt.Sprintf("%d-%s", ts.UnixMilli(), uuid.NewString()[:8])
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

func formatMilestone(b int64) string {
	if b >= petabyte {
		return fmt.Sprintf("%d PB", b/petabyte)
	}
	return fmt.Sprintf("%d TB", b/terabyte)
}

func absInt(v int) int {
	if v < 0 {
		return -v
	}
	return v
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ActivityService runs the diff engine once per collection cycle.
type ActivityService struct {
	snapshots SnapshotStore
	activity  ActivityStore
	discord   *DiscordBotService
	metrics   *Metrics
	now       func() time.Time
}

func NewActivityService(snapshots SnapshotStore, activity ActivityStore, discord *DiscordBotService, metrics *Metrics) *ActivityService {
	return &ActivityService{
		snapshots: snapshots,
		activity:  activity,
		discord:   discord,
		metrics:   metrics,
		now:       time.Now,
	}
}

// RecordCycle diffs nodes against the stored snapshot, appends the resulting
// events and stores the new snapshot. Without a readable previous snapshot the
// cycle only establishes the baseline.
func (as *ActivityService) RecordCycle(ctx context.Context, nodes []*models.NodeSnapshot) ([]models.ActivityEvent, error) {
	curr := BuildNetworkSnapshot(nodes, as.now())

	prev, err := as.snapshots.GetPreviousSnapshot(ctx)
	if err != nil {
		log.Warnf("⚠️  Could not read previous snapshot, treating as first run: %v", err)
		prev = nil
	}

	var events []models.ActivityEvent
	if prev != nil {
		events = DetectChanges(prev, curr, nodes)
	}

	if len(events) > 0 {
		if err := as.activity.AppendActivity(ctx, events); err != nil {
			return events, fmt.Errorf("failed to append activity: %w", err)
		}
		for _, ev := range events {
			as.metrics.ActivityEvent(string(ev.Type))
		}
	}

	if err := as.snapshots.SaveSnapshot(ctx, curr); err != nil {
		return events, fmt.Errorf("failed to save snapshot: %w", err)
	}

	if len(events) > 0 && as.discord != nil {
		if err := as.discord.SendActivityDigest(events, curr); err != nil {
			log.Debugf("Discord activity digest not sent: %v", err)
		}
	}

	log.WithFields(log.Fields{
		"nodes":  curr.TotalNodes,
		"online": curr.OnlineNodes,
		"events": len(events),
	}).Info("Activity cycle recorded")
	return events, nil
}

// Recent returns the newest feed entries first.
func (as *ActivityService) Recent(ctx context.Context, limit int) ([]models.ActivityEvent, error) {
	return as.activity.RecentActivity(ctx, limit)
}
