package services

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"xandpulse/models"
	"xandpulse/utils"
)

// ErrInsufficientData is returned when there is nothing to benchmark against.
var ErrInsufficientData = errors.New("insufficient data")

const (
	eliteUptimeTarget = 99.5
	topQuartile       = 0.75
)

// BenchmarkService positions nodes against the network. It holds no state
// and is safe for concurrent use.
type BenchmarkService struct{}

func NewBenchmarkService() *BenchmarkService {
	return &BenchmarkService{}
}

type metricColumns struct {
	uptime, storage, credits, health []float64
}

func columnsOf(nodes []*models.NodeSnapshot) metricColumns {
	c := metricColumns{
		uptime:  make([]float64, 0, len(nodes)),
		storage: make([]float64, 0, len(nodes)),
		credits: make([]float64, 0, len(nodes)),
		health:  make([]float64, 0, len(nodes)),
	}
	for _, n := range nodes {
		c.uptime = append(c.uptime, n.Uptime)
		c.storage = append(c.storage, float64(n.Storage.Total))
		c.credits = append(c.credits, n.Credits)
		c.health = append(c.health, float64(n.HealthScore))
	}
	return c
}

// splitPopulation returns the population without the subject, and the
// population guaranteed to contain the subject exactly once.
func splitPopulation(subject *models.NodeSnapshot, population []*models.NodeSnapshot) (others, all []*models.NodeSnapshot) {
	others = make([]*models.NodeSnapshot, 0, len(population))
	for _, n := range population {
		if n.ID != subject.ID {
			others = append(others, n)
		}
	}
	all = make([]*models.NodeSnapshot, 0, len(others)+1)
	all = append(all, others...)
	all = append(all, subject)
	return others, all
}

// BenchmarkNode compares subject against the rest of population.
func (bs *BenchmarkService) BenchmarkNode(subject *models.NodeSnapshot, population []*models.NodeSnapshot) (*models.BenchmarkResult, error) {
	if subject == nil || len(population) == 0 {
		return nil, ErrInsufficientData
	}

	others, all := splitPopulation(subject, population)
	oc := columnsOf(others)
	ac := columnsOf(all)

	storage := float64(subject.Storage.Total)
	health := float64(subject.HealthScore)

	result := &models.BenchmarkResult{
		Node:       subject,
		TotalNodes: len(all),
		NetworkAverages: models.MetricSet{
			Uptime:      utils.Mean(oc.uptime),
			Storage:     utils.Mean(oc.storage),
			Credits:     utils.Mean(oc.credits),
			HealthScore: utils.Mean(oc.health),
		},
		Percentiles: models.PercentileSet{
			Uptime:      utils.Percentile(subject.Uptime, oc.uptime, true),
			Storage:     utils.Percentile(storage, oc.storage, true),
			Credits:     utils.Percentile(subject.Credits, oc.credits, true),
			HealthScore: utils.Percentile(health, oc.health, true),
		},
		Strengths:    []string{},
		Weaknesses:   []string{},
		Improvements: []models.Improvement{},
	}

	result.Rankings = models.RankingSet{
		Uptime:      utils.Rank(subject.Uptime, ac.uptime, true),
		Storage:     utils.Rank(storage, ac.storage, true),
		Credits:     utils.Rank(subject.Credits, ac.credits, true),
		HealthScore: utils.Rank(health, ac.health, true),
	}
	// Credits is the network's ranking signal.
	result.Rankings.Overall = result.Rankings.Credits

	bs.assess(result)
	result.OverallRating = ratingFor(result.Percentiles.Credits)
	result.Improvements = improvementsFor(subject, result.Percentiles.Storage, oc.storage)

	return result, nil
}

func (bs *BenchmarkService) assess(r *models.BenchmarkResult) {
	n := r.Node
	avgUptime := r.NetworkAverages.Uptime

	// Absolute bands first: a perfect node surrounded by perfect peers is
	// still excellent.
	switch {
	case n.Uptime >= 99:
		r.Strengths = append(r.Strengths, fmt.Sprintf("Excellent uptime (%.2f%%)", n.Uptime))
	case n.Uptime >= 95:
		r.Strengths = append(r.Strengths, fmt.Sprintf("Good uptime (%.2f%%)", n.Uptime))
	case n.Uptime >= 90 && n.Uptime >= avgUptime:
		r.Strengths = append(r.Strengths, fmt.Sprintf("Above average uptime (%.2f%%)", n.Uptime))
	case n.Uptime < 80:
		r.Weaknesses = append(r.Weaknesses, fmt.Sprintf("Low uptime (%.2f%%, below 80%% threshold)", n.Uptime))
	case n.Uptime < avgUptime:
		r.Weaknesses = append(r.Weaknesses, fmt.Sprintf("Uptime below network average (%.2f%% vs %.2f%%)", n.Uptime, avgUptime))
	}

	switch p := r.Percentiles.Storage; {
	case p >= 75:
		r.Strengths = append(r.Strengths, fmt.Sprintf("High storage commitment (top %d%%)", 100-p))
	case p < 25:
		r.Weaknesses = append(r.Weaknesses, fmt.Sprintf("Low storage commitment (%dth percentile)", p))
	}

	switch p := r.Percentiles.Credits; {
	case p >= 75:
		r.Strengths = append(r.Strengths, fmt.Sprintf("Strong credits (beats %d%% of nodes)", p))
	case p < 40:
		r.Weaknesses = append(r.Weaknesses, fmt.Sprintf("Credits below most nodes (beats %d%%)", p))
	}

	switch n.VersionType {
	case models.VersionMainnet:
		r.Strengths = append(r.Strengths, "Running mainnet release")
	case models.VersionDevnet, models.VersionTrynet:
		r.Weaknesses = append(r.Weaknesses, fmt.Sprintf("Running %s build (30%% score penalty)", n.VersionType))
	}
}

func ratingFor(creditsPercentile int) models.Rating {
	switch {
	case creditsPercentile >= 75:
		return models.RatingExcellent
	case creditsPercentile >= 50:
		return models.RatingGood
	case creditsPercentile >= 25:
		return models.RatingAverage
	default:
		return models.RatingBelowAverage
	}
}

func improvementsFor(n *models.NodeSnapshot, storagePercentile int, otherStorage []float64) []models.Improvement {
	out := []models.Improvement{}

	if n.Uptime < eliteUptimeTarget {
		out = append(out, models.Improvement{
			Metric:  "uptime",
			Current: n.Uptime,
			Target:  eliteUptimeTarget,
			Label:   "Elite badge",
		})
	}

	if storagePercentile < 75 && len(otherStorage) > 0 {
		target := utils.ValueAtPercentile(otherStorage, topQuartile)
		current := float64(n.Storage.Total)
		if target > current {
			out = append(out, models.Improvement{
				Metric:  "storage",
				Current: current,
				Target:  target,
				Label:   "Reach top 25%",
			})
		}
	}

	return out
}

// FindSimilarNodes returns the nodes ranked immediately above the subject by
// credits (closest first) followed by those immediately below. Negative counts
// fall back to 2 above and 1 below.
func (bs *BenchmarkService) FindSimilarNodes(subject *models.NodeSnapshot, population []*models.NodeSnapshot, above, below int) []*models.NodeSnapshot {
	if subject == nil {
		return nil
	}
	if above < 0 {
		above = 2
	}
	if below < 0 {
		below = 1
	}

	_, all := splitPopulation(subject, population)
	sort.SliceStable(all, func(i, j int) bool {
		if all[i].Credits != all[j].Credits {
			return all[i].Credits > all[j].Credits
		}
		return all[i].ID < all[j].ID
	})

	pos := 0
	for i, n := range all {
		if n.ID == subject.ID {
			pos = i
			break
		}
	}

	out := make([]*models.NodeSnapshot, 0, above+below)
	for i := pos - 1; i >= 0 && i >= pos-above; i-- {
		out = append(out, all[i])
	}
	for i := pos + 1; i < len(all) && i <= pos+below; i++ {
		out = append(out, all[i])
	}
	return out
}

// CompareNodes benchmarks a and b against the same population and reports
// a per-metric winner.
func (bs *BenchmarkService) CompareNodes(a, b *models.NodeSnapshot, population []*models.NodeSnapshot) (*models.NodeComparison, error) {
	if a == nil || b == nil {
		return nil, ErrInsufficientData
	}

	ra, err := bs.BenchmarkNode(a, population)
	if err != nil {
		return nil, err
	}
	rb, err := bs.BenchmarkNode(b, population)
	if err != nil {
		return nil, err
	}

	return &models.NodeComparison{
		ResultA: ra,
		ResultB: rb,
		Comparison: []models.MetricComparison{
			compareMetric("uptime", a.Uptime, b.Uptime),
			compareMetric("storage", float64(a.Storage.Total), float64(b.Storage.Total)),
			compareMetric("credits", a.Credits, b.Credits),
			compareMetric("health_score", float64(a.HealthScore), float64(b.HealthScore)),
		},
	}, nil
}

func compareMetric(name string, va, vb float64) models.MetricComparison {
	mc := models.MetricComparison{
		Metric:     name,
		ValueA:     va,
		ValueB:     vb,
		Winner:     models.WinnerTie,
		Difference: math.Abs(va - vb),
	}
	switch {
	case va > vb:
		mc.Winner = models.WinnerA
	case vb > va:
		mc.Winner = models.WinnerB
	}
	if larger := math.Max(va, vb); larger > 0 {
		mc.PercentDifference = mc.Difference / larger * 100
	}
	return mc
}
