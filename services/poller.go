package services

import (
	"context"
	"fmt"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"xandpulse/models"
)

// NodeSource produces the raw node list of a cycle.
type NodeSource interface {
	Collect(ctx context.Context) ([]*models.NodeSnapshot, error)
}

// CycleResult is what one polling cycle did.
type CycleResult struct {
	Nodes    int                  `json:"nodes"`
	Events   int                  `json:"activity_events"`
	Alerts   models.ProcessResult `json:"alerts"`
	Stats    models.NetworkStats  `json:"stats"`
	Duration time.Duration        `json:"duration_ns"`
}

// Poller drives collect -> enrich -> cache -> diff -> alert -> persist.
type Poller struct {
	source   NodeSource
	credits  *CreditsService
	cache    *CacheService
	activity *ActivityService
	alerts   *AlertService
	records  SnapshotStore
	metrics  *Metrics

	baseURL  string
	interval time.Duration

	cycleMu  sync.Mutex
	stopChan chan struct{}
	now      func() time.Time
}

type PollerConfig struct {
	Source   NodeSource
	Credits  *CreditsService
	Cache    *CacheService
	Activity *ActivityService
	Alerts   *AlertService
	Records  SnapshotStore
	Metrics  *Metrics
	BaseURL  string
	Interval time.Duration
}

func NewPoller(cfg PollerConfig) *Poller {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	return &Poller{
		source:   cfg.Source,
		credits:  cfg.Credits,
		cache:    cfg.Cache,
		activity: cfg.Activity,
		alerts:   cfg.Alerts,
		records:  cfg.Records,
		metrics:  cfg.Metrics,
		baseURL:  cfg.BaseURL,
		interval: cfg.Interval,
		stopChan: make(chan struct{}),
		now:      time.Now,
	}
}

func (p *Poller) Start() {
	log.Printf("Starting Poller (cycle every %s)...", p.interval)

	ticker := time.NewTicker(p.interval)
	go func() {
		p.runOnce()
		for {
			select {
			case <-ticker.C:
				p.runOnce()
			case <-p.stopChan:
				ticker.Stop()
				log.Println("Poller stopped")
				return
			}
		}
	}()
}

func (p *Poller) Stop() {
	close(p.stopChan)
}

func (p *Poller) runOnce() {
	ctx, cancel := context.WithTimeout(context.Background(), p.interval)
	defer cancel()

	defer func() {
		if r := recover(); r != nil {
			log.Errorf("Polling cycle panicked: %v", r)
			p.metrics.CycleFailed()
		}
	}()

	if _, err := p.RunCycle(ctx); err != nil {
		log.Warnf("⚠️  Polling cycle failed: %v", err)
	}
}

// RunCycle performs one full cycle. Cycles never overlap; a second caller
// waits for the running one to finish. Only a failed collection is an error;
// downstream failures are logged and the cycle continues.
func (p *Poller) RunCycle(ctx context.Context) (*CycleResult, error) {
	p.cycleMu.Lock()
	defer p.cycleMu.Unlock()

	start := p.now()

	nodes, err := p.source.Collect(ctx)
	if err != nil {
		p.metrics.CycleFailed()
		return nil, fmt.Errorf("collect failed: %w", err)
	}

	var threshold models.CreditsThreshold
	creditsByPubkey := map[string]float64{}
	if p.credits != nil {
		creditsByPubkey = p.credits.CreditsMap()
		threshold = p.credits.Threshold()
	}
	enriched := EnrichNodesWithCreditsData(nodes, creditsByPubkey)

	stats := AggregateNetworkStats(enriched, threshold.Threshold, start)
	if p.cache != nil {
		p.cache.SetNodes(enriched, &stats)
	}
	p.metrics.SetNodeCounts(map[string]int{
		string(models.StatusOnline):   stats.OnlineNodes,
		string(models.StatusDegraded): stats.DegradedNodes,
		string(models.StatusOffline):  stats.OfflineNodes,
	})
	p.metrics.SetEligible(stats.EligibleNodes)

	result := &CycleResult{Nodes: len(enriched), Stats: stats}

	if p.activity != nil {
		events, err := p.activity.RecordCycle(ctx, enriched)
		if err != nil {
			log.Warnf("⚠️  Activity diff failed: %v", err)
		}
		result.Events = len(events)
	}

	if p.alerts != nil {
		result.Alerts = p.alerts.ProcessAlerts(ctx, enriched, p.baseURL)
	}

	records := make([]models.NodeRecord, 0, len(enriched))
	for _, n := range enriched {
		records = append(records, models.NewNodeRecord(n, start))
	}
	if err := p.records.SaveNodeRecords(ctx, records); err != nil {
		log.Warnf("⚠️  Failed to save node records: %v", err)
	}

	result.Duration = p.now().Sub(start)
	p.metrics.ObserveCycle(result.Duration.Seconds())

	log.WithFields(log.Fields{
		"nodes":    result.Nodes,
		"events":   result.Events,
		"offline":  result.Alerts.OfflineAlerts,
		"drops":    result.Alerts.ScoreDropAlerts,
		"errors":   result.Alerts.Errors,
		"duration": result.Duration,
	}).Info("✓ Polling cycle complete")

	return result, nil
}
