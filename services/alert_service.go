package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"math"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"xandpulse/models"
)

// CooldownWindow is how long a (subscription, node, alert type) stays quiet after a send.
const CooldownWindow = 6 * time.Hour

const defaultDispatchConcurrency = 8

// EmailSender is the outbound mail channel.
type EmailSender interface {
	Send(ctx context.Context, to, subject, html string) error
}

// PushSender is the outbound Web Push channel.
type PushSender interface {
	Send(ctx context.Context, endpoint *models.PushEndpoint, payload []byte) error
}

// alertJob is one notification that passed rule evaluation and the cooldown check.
type alertJob struct {
	sub     *models.Subscription
	nodeID  string
	kind    models.AlertType
	title   string
	message string
	link    string
}

// AlertService turns node state transitions into notifications for subscribers.
type AlertService struct {
	records  SnapshotStore
	subs     SubscriptionStore
	cooldown CooldownStore
	feed     AlertFeedStore

	email   EmailSender
	push    PushSender
	discord *DiscordBotService
	metrics *Metrics

	concurrency int
	now         func() time.Time
}

type AlertServiceConfig struct {
	Records       SnapshotStore
	Subscriptions SubscriptionStore
	Cooldown      CooldownStore
	Feed          AlertFeedStore
	Email         EmailSender
	Push          PushSender
	Discord       *DiscordBotService
	Metrics       *Metrics
	Concurrency   int
}

func NewAlertService(cfg AlertServiceConfig) *AlertService {
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = defaultDispatchConcurrency
	}
	return &AlertService{
		records:     cfg.Records,
		subs:        cfg.Subscriptions,
		cooldown:    cfg.Cooldown,
		feed:        cfg.Feed,
		email:       cfg.Email,
		push:        cfg.Push,
		discord:     cfg.Discord,
		metrics:     cfg.Metrics,
		concurrency: cfg.Concurrency,
		now:         time.Now,
	}
}

// IsInCooldown reports whether an alert of this type was sent to the
// subscription for the node within CooldownWindow before now.
func (as *AlertService) IsInCooldown(ctx context.Context, subscriptionID, nodeID string, alertType models.AlertType, now time.Time) (bool, error) {
	last, err := as.cooldown.LastAlertSent(ctx, subscriptionID, nodeID, alertType)
	if err != nil {
		return false, fmt.Errorf("failed to read cooldown marker: %w", err)
	}
	if last.IsZero() {
		return false, nil
	}
	return now.Sub(last) < CooldownWindow, nil
}

// ProcessAlerts compares currentNodes with the stored node records and
// delivers every alert that fired and is not cooling down. Delivery failures
// are counted, never returned. Without stored records nothing is sent.
func (as *AlertService) ProcessAlerts(ctx context.Context, currentNodes []*models.NodeSnapshot, baseURL string) models.ProcessResult {
	var result models.ProcessResult

	previous, err := as.records.GetPreviousNodeRecords(ctx)
	if err != nil {
		log.Warnf("⚠️  Could not read previous node records, skipping alerts: %v", err)
		result.Skipped = true
		return result
	}
	if len(previous) == 0 {
		log.Println("No previous node records, alert baseline established")
		result.Skipped = true
		return result
	}

	prevByID := make(map[string]models.NodeRecord, len(previous))
	for _, rec := range previous {
		prevByID[rec.NodeID] = rec
	}

	now := as.now()
	jobs, evalErrors := as.collectJobs(ctx, currentNodes, prevByID, baseURL, now)

	var (
		offline, scoreDrop, other, errs atomic.Int64
		expiredMu                       sync.Mutex
		expired                         []string
	)
	errs.Add(int64(evalErrors))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(as.concurrency)

	for _, job := range jobs {
		job := job
		g.Go(func() error {
			outcome := as.deliver(gctx, job, now)
			errs.Add(int64(outcome.failures))
			if outcome.expiredEndpoint != "" {
				expiredMu.Lock()
				expired = append(expired, outcome.expiredEndpoint)
				expiredMu.Unlock()
			}
			if !outcome.delivered {
				return nil
			}
			switch job.kind {
			case models.AlertOffline:
				offline.Add(1)
			case models.AlertScoreDrop:
				scoreDrop.Add(1)
			default:
				other.Add(1)
			}
			return nil
		})
	}
	_ = g.Wait()

	sort.Strings(expired)
	result.OfflineAlerts = int(offline.Load())
	result.ScoreDropAlerts = int(scoreDrop.Load())
	result.OtherAlerts = int(other.Load())
	result.Errors = int(errs.Load())
	result.ExpiredPushEndpoints = expired

	log.WithFields(log.Fields{
		"offline":    result.OfflineAlerts,
		"score_drop": result.ScoreDropAlerts,
		"other":      result.OtherAlerts,
		"errors":     result.Errors,
		"expired":    len(result.ExpiredPushEndpoints),
	}).Info("Alert processing complete")

	if as.discord.Enabled() && (len(jobs) > 0 || result.Errors > 0) {
		if err := as.discord.SendAlertSummary(result); err != nil {
			log.Debugf("Discord alert summary not sent: %v", err)
		}
	}

	return result
}

// collectJobs evaluates every subscription rule against each node's transition.
// Nodes are visited in id order; the returned count is the number of store errors hit.
func (as *AlertService) collectJobs(ctx context.Context, nodes []*models.NodeSnapshot, prevByID map[string]models.NodeRecord, baseURL string, now time.Time) ([]alertJob, int) {
	sorted := make([]*models.NodeSnapshot, len(nodes))
	copy(sorted, nodes)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].ID < sorted[j].ID })

	var jobs []alertJob
	failures := 0

	for _, n := range sorted {
		curr := models.NewNodeRecord(n, now)
		var prev *models.NodeRecord
		if rec, ok := prevByID[n.ID]; ok {
			prev = &rec
		}

		subs, err := as.subs.ListSubscriptionsForNode(ctx, n.ID)
		if err != nil {
			log.Warnf("⚠️  Failed to load subscriptions for node %s: %v", n.ID, err)
			failures++
			continue
		}

		for _, sub := range subs {
			for _, rule := range sub.Rules() {
				fired, title, message := evaluateRule(rule, prev, curr, n)
				if !fired {
					continue
				}

				cooling, err := as.IsInCooldown(ctx, sub.ID, n.ID, rule.Type(), now)
				if err != nil {
					log.Warnf("⚠️  %v", err)
					failures++
					continue
				}
				if cooling {
					log.WithFields(log.Fields{
						"subscription": sub.ID,
						"node":         n.ID,
						"type":         rule.Type(),
					}).Debug("Alert suppressed by cooldown")
					continue
				}

				jobs = append(jobs, alertJob{
					sub:     sub,
					nodeID:  n.ID,
					kind:    rule.Type(),
					title:   title,
					message: message,
					link:    nodeLink(baseURL, n.ID),
				})
			}
		}
	}
	return jobs, failures
}

// evaluateRule decides whether rule fires for the prev -> curr transition.
// prev is nil for nodes seen for the first time; only a transition into
// offline can fire without history.
func evaluateRule(rule models.AlertRule, prev *models.NodeRecord, curr models.NodeRecord, n *models.NodeSnapshot) (bool, string, string) {
	name := nodeLabel(n)

	switch r := rule.(type) {
	case models.StatusRule:
		if curr.Status != r.Into {
			return false, "", ""
		}
		if prev == nil && r.Into != models.StatusOffline {
			return false, "", ""
		}
		if prev != nil && prev.Status == r.Into {
			return false, "", ""
		}
		switch r.Into {
		case models.StatusOffline:
			return true, fmt.Sprintf("Node %s is offline", name),
				fmt.Sprintf("Node %s stopped responding and is now offline.", name)
		case models.StatusOnline:
			return true, fmt.Sprintf("Node %s is back online", name),
				fmt.Sprintf("Node %s is online again.", name)
		default:
			return true, fmt.Sprintf("Node %s is degraded", name),
				fmt.Sprintf("Node %s has not been seen for several minutes and is degraded.", name)
		}

	case models.ThresholdRule:
		if prev == nil {
			return false, "", ""
		}
		before, after, metric := thresholdMetric(r.Kind, *prev, curr)
		if !crossed(before, after, r.Threshold, r.Direction) {
			return false, "", ""
		}
		verb := "dropped below"
		if r.Direction == models.Above {
			verb = "rose above"
		}
		return true, fmt.Sprintf("Node %s %s %s %.0f", name, metric, verb, r.Threshold),
			fmt.Sprintf("The %s of node %s %s %.2f (was %.2f, now %.2f).", metric, name, verb, r.Threshold, before, after)

	case models.ChangeRule:
		if prev == nil {
			return false, "", ""
		}
		switch r.Kind {
		case models.AlertVersionChange:
			if prev.Version == curr.Version || curr.Version == "" {
				return false, "", ""
			}
			return true, fmt.Sprintf("Node %s updated to %s", name, curr.Version),
				fmt.Sprintf("Node %s changed version from %s to %s.", name, prev.Version, curr.Version)
		case models.AlertStorageChange:
			delta := curr.StorageUsagePercent - prev.StorageUsagePercent
			if math.Abs(delta) < r.Threshold {
				return false, "", ""
			}
			return true, fmt.Sprintf("Node %s storage usage changed", name),
				fmt.Sprintf("Storage usage of node %s moved %+.1f points to %.1f%%.", name, delta, curr.StorageUsagePercent)
		case models.AlertPublicStatusChange:
			if prev.IsPublic == curr.IsPublic {
				return false, "", ""
			}
			visibility := "private"
			if curr.IsPublic {
				visibility = "public"
			}
			return true, fmt.Sprintf("Node %s is now %s", name, visibility),
				fmt.Sprintf("Node %s changed its RPC visibility to %s.", name, visibility)
		}
	}
	return false, "", ""
}

func thresholdMetric(kind models.AlertType, prev, curr models.NodeRecord) (float64, float64, string) {
	switch kind {
	case models.AlertUptimeDrop, models.AlertUptimeRise:
		return prev.UptimePercent, curr.UptimePercent, "uptime"
	default:
		return prev.StakingScore, curr.StakingScore, "score"
	}
}

// crossed is a strict crossing: being on the far side already does not count.
func crossed(before, after, threshold float64, dir models.Direction) bool {
	if dir == models.Above {
		return before < threshold && after >= threshold
	}
	return before >= threshold && after < threshold
}

type deliveryOutcome struct {
	delivered       bool
	failures        int
	expiredEndpoint string
}

// deliver sends one job on every configured channel. The cooldown marker and
// feed row are written unless every attempted channel failed.
func (as *AlertService) deliver(ctx context.Context, job alertJob, now time.Time) deliveryOutcome {
	var out deliveryOutcome
	attempted, succeeded := 0, 0

	logger := log.WithFields(log.Fields{
		"subscription": job.sub.ID,
		"node":         job.nodeID,
		"type":         job.kind,
	})

	if job.sub.EmailEnabled && job.sub.Email != "" && as.email != nil {
		attempted++
		if err := as.email.Send(ctx, job.sub.Email, job.title, renderAlertEmail(job)); err != nil {
			logger.Warnf("⚠️  Email delivery failed: %v", err)
			out.failures++
			as.metrics.DispatchError("email")
		} else {
			succeeded++
			as.metrics.AlertSent(string(job.kind), "email")
		}
	}

	if job.sub.Push != nil && as.push != nil {
		attempted++
		payload, _ := json.Marshal(map[string]string{
			"title": job.title,
			"body":  job.message,
			"url":   job.link,
			"tag":   fmt.Sprintf("%s-%s", job.kind, job.nodeID),
		})
		if err := as.push.Send(ctx, job.sub.Push, payload); err != nil {
			if errors.Is(err, ErrPushSubscriptionExpired) {
				out.expiredEndpoint = job.sub.Push.Endpoint
			}
			logger.Warnf("⚠️  Push delivery failed: %v", err)
			out.failures++
			as.metrics.DispatchError("push")
		} else {
			succeeded++
			as.metrics.AlertSent(string(job.kind), "push")
		}
	}

	if attempted > 0 && succeeded == 0 {
		return out
	}

	if err := as.cooldown.RecordAlertSent(ctx, models.AlertSentRecord{
		SubscriptionID: job.sub.ID,
		NodeID:         job.nodeID,
		AlertType:      job.kind,
		SentAt:         now,
	}); err != nil {
		logger.Warnf("⚠️  Failed to record cooldown marker: %v", err)
		out.failures++
	}

	if err := as.feed.AppendAlert(ctx, &models.AlertRow{
		ID:             uuid.NewString(),
		SubscriptionID: job.sub.ID,
		NodeID:         job.nodeID,
		AlertType:      job.kind,
		Title:          job.title,
		Message:        job.message,
		CreatedAt:      now,
	}); err != nil {
		logger.Warnf("⚠️  Failed to append alert row: %v", err)
		out.failures++
	}

	out.delivered = true
	return out
}

func renderAlertEmail(job alertJob) string {
	var b strings.Builder
	b.WriteString("<h2>")
	b.WriteString(html.EscapeString(job.title))
	b.WriteString("</h2><p>")
	b.WriteString(html.EscapeString(job.message))
	b.WriteString("</p>")
	if job.link != "" {
		fmt.Fprintf(&b, `<p><a href="%s">View node</a></p>`, html.EscapeString(job.link))
	}
	b.WriteString(`<p style="color:#888;font-size:12px">You receive this because you subscribed to XandPulse alerts for this node.</p>`)
	return b.String()
}

func nodeLink(baseURL, nodeID string) string {
	if baseURL == "" {
		return ""
	}
	return strings.TrimRight(baseURL, "/") + "/nodes/" + nodeID
}

func nodeLabel(n *models.NodeSnapshot) string {
	if n.Address != "" {
		return n.Address
	}
	return shortID(n.ID)
}

// Feed returns a subscription's in-app alerts, newest first.
func (as *AlertService) Feed(ctx context.Context, subscriptionID string, unreadOnly bool, limit int) ([]*models.AlertRow, error) {
	return as.feed.ListAlerts(ctx, subscriptionID, unreadOnly, limit)
}

func (as *AlertService) MarkRead(ctx context.Context, id string) error {
	return as.feed.MarkAlertRead(ctx, id)
}
