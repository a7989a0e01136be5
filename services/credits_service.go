package services

import (
	"context"
	"encoding/json"
	"fmt"
	"math"
	"net/http"
	"sort"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"

	"xandpulse/models"
)

const (
	creditsPercentile    = 0.95
	creditsThresholdRate = 0.8
)

// EnrichNodesWithCreditsData returns copies of nodes with credits taken from
// creditsByPubkey; nodes absent from the map get 0.
func EnrichNodesWithCreditsData(nodes []*models.NodeSnapshot, creditsByPubkey map[string]float64) []*models.NodeSnapshot {
	out := make([]*models.NodeSnapshot, 0, len(nodes))
	for _, n := range nodes {
		cp := *n
		cp.Credits = creditsByPubkey[n.PublicKey]
		out = append(out, &cp)
	}
	return out
}

// CreditsPercentile95 is the nearest-rank 95th percentile of the positive values.
func CreditsPercentile95(values []float64) float64 {
	positive := make([]float64, 0, len(values))
	for _, v := range values {
		if v > 0 {
			positive = append(positive, v)
		}
	}
	if len(positive) == 0 {
		return 0
	}
	sort.Float64s(positive)
	idx := int(math.Floor(float64(len(positive)) * creditsPercentile))
	if idx >= len(positive) {
		idx = len(positive) - 1
	}
	return positive[idx]
}

// ComputeCreditsThreshold is 80% of the 95th percentile of positive credits.
// Small populations make the index coarse; that is accepted.
func ComputeCreditsThreshold(values []float64) float64 {
	return CreditsPercentile95(values) * creditsThresholdRate
}

// IsEligible reports whether credits meet a computed threshold. With no
// credits data (threshold 0) nobody is eligible.
func IsEligible(credits, threshold float64) bool {
	return threshold > 0 && credits >= threshold
}

type CreditsService struct {
	httpClient   *http.Client
	credits      map[string]*models.PodCredits // Key: pubkey
	threshold    models.CreditsThreshold
	creditsMutex sync.RWMutex
	stopChan     chan struct{}
	apiEndpoint  string
	interval     time.Duration
}

func NewCreditsService(endpoint string, interval time.Duration) *CreditsService {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &CreditsService{
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
		credits:     make(map[string]*models.PodCredits),
		stopChan:    make(chan struct{}),
		apiEndpoint: endpoint,
		interval:    interval,
	}
}

func (cs *CreditsService) Start() {
	log.Printf("Starting Pod Credits Service (updates every %s)...", cs.interval)

	cs.refresh()

	ticker := time.NewTicker(cs.interval)

	go func() {
		for {
			select {
			case <-ticker.C:
				cs.refresh()
			case <-cs.stopChan:
				ticker.Stop()
				log.Println("Pod Credits Service stopped")
				return
			}
		}
	}()
}

func (cs *CreditsService) Stop() {
	close(cs.stopChan)
}

func (cs *CreditsService) refresh() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := cs.FetchCredits(ctx); err != nil {
		log.Warnf("⚠️  Pod credits fetch failed: %v", err)
	}
}

// FetchCredits pulls the credits feed once and replaces the ranked table and threshold.
func (cs *CreditsService) FetchCredits(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, cs.apiEndpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create credits request: %w", err)
	}

	resp, err := cs.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to fetch pod credits: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("pod credits API returned status %d", resp.StatusCode)
	}

	var creditsResp models.PodCreditsResponse
	if err := json.NewDecoder(resp.Body).Decode(&creditsResp); err != nil {
		return fmt.Errorf("failed to decode credits response: %w", err)
	}

	if creditsResp.Status != "success" {
		return fmt.Errorf("pod credits API returned non-success status: %s", creditsResp.Status)
	}

	cs.apply(creditsResp.PodsCredits, time.Now())
	return nil
}

func (cs *CreditsService) apply(entries []models.PodCreditsEntry, now time.Time) {
	// The feed is not guaranteed to be sorted.
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Credits > entries[j].Credits
	})

	values := make([]float64, 0, len(entries))
	for _, e := range entries {
		values = append(values, e.Credits)
	}
	p95 := CreditsPercentile95(values)
	threshold := p95 * creditsThresholdRate

	cs.creditsMutex.Lock()
	defer cs.creditsMutex.Unlock()

	newCredits := make(map[string]*models.PodCredits, len(entries))
	eligible := 0
	var total float64

	for i, entry := range entries {
		pubkey := entry.PodID

		var oldCredits float64
		if existing, exists := cs.credits[pubkey]; exists {
			oldCredits = existing.Credits
		}

		pc := &models.PodCredits{
			Pubkey:        pubkey,
			Credits:       entry.Credits,
			LastUpdated:   now,
			Rank:          i + 1,
			CreditsChange: entry.Credits - oldCredits,
			Eligible:      IsEligible(entry.Credits, threshold),
		}
		if pc.Eligible {
			eligible++
		}
		total += entry.Credits
		newCredits[pubkey] = pc
	}

	cs.credits = newCredits
	cs.threshold = models.CreditsThreshold{
		Threshold:     threshold,
		Percentile95:  p95,
		EligibleCount: eligible,
		TotalNodes:    len(newCredits),
		ComputedAt:    now,
	}

	var avg float64
	if len(newCredits) > 0 {
		avg = total / float64(len(newCredits))
	}
	log.WithFields(log.Fields{
		"nodes":     len(newCredits),
		"avg":       math.Round(avg),
		"threshold": threshold,
		"eligible":  eligible,
	}).Info("Updated pod credits")
}

// GetCredits returns credits for a specific pubkey/pod_id
func (cs *CreditsService) GetCredits(pubkey string) (*models.PodCredits, bool) {
	if pubkey == "" {
		return nil, false
	}

	cs.creditsMutex.RLock()
	defer cs.creditsMutex.RUnlock()

	credits, exists := cs.credits[pubkey]
	return credits, exists
}

// CreditsMap returns pubkey -> credits for enrichment.
func (cs *CreditsService) CreditsMap() map[string]float64 {
	cs.creditsMutex.RLock()
	defer cs.creditsMutex.RUnlock()

	out := make(map[string]float64, len(cs.credits))
	for k, v := range cs.credits {
		out[k] = v.Credits
	}
	return out
}

// Threshold returns the eligibility threshold from the latest fetch.
func (cs *CreditsService) Threshold() models.CreditsThreshold {
	cs.creditsMutex.RLock()
	defer cs.creditsMutex.RUnlock()
	return cs.threshold
}

// GetAllCredits returns all pod credits ordered by rank
func (cs *CreditsService) GetAllCredits() []*models.PodCredits {
	cs.creditsMutex.RLock()
	defer cs.creditsMutex.RUnlock()

	result := make([]*models.PodCredits, 0, len(cs.credits))
	for _, c := range cs.credits {
		result = append(result, c)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Rank < result[j].Rank
	})
	return result
}

// GetTopCredits returns top N nodes by credits
func (cs *CreditsService) GetTopCredits(limit int) []*models.PodCredits {
	all := cs.GetAllCredits()
	if limit > len(all) {
		limit = len(all)
	}
	return all[:limit]
}

// GetCreditsStats summarises the credits distribution.
func (cs *CreditsService) GetCreditsStats() map[string]interface{} {
	all := cs.GetAllCredits()
	th := cs.Threshold()

	if len(all) == 0 {
		return map[string]interface{}{
			"total_nodes": 0,
			"error":       "no credits data available",
		}
	}

	var total float64
	for _, c := range all {
		total += c.Credits
	}

	// all is ordered by credits descending
	return map[string]interface{}{
		"total_nodes":     len(all),
		"total_credits":   total,
		"average_credits": total / float64(len(all)),
		"median_credits":  all[len(all)/2].Credits,
		"max_credits":     all[0].Credits,
		"min_credits":     all[len(all)-1].Credits,
		"threshold":       th.Threshold,
		"eligible_nodes":  th.EligibleCount,
	}
}
