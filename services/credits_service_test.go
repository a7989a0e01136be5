package services

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xandpulse/models"
)

func oneToTwenty() []float64 {
	values := make([]float64, 0, 20)
	for i := 1; i <= 20; i++ {
		values = append(values, float64(i))
	}
	return values
}

func TestComputeCreditsThresholdScenario(t *testing.T) {
	threshold := ComputeCreditsThreshold(oneToTwenty())
	assert.Equal(t, 16.0, threshold)
	assert.True(t, IsEligible(16, threshold))
	assert.False(t, IsEligible(15, threshold))
}

func TestComputeCreditsThresholdIgnoresNonPositive(t *testing.T) {
	values := append([]float64{0, 0, -3}, oneToTwenty()...)
	assert.Equal(t, 16.0, ComputeCreditsThreshold(values))
	assert.Equal(t, 0.0, ComputeCreditsThreshold(nil))
	assert.False(t, IsEligible(0, 0))
}

func TestEnrichThenThresholdIsIdempotent(t *testing.T) {
	nodes := make([]*models.NodeSnapshot, 0, 20)
	credits := map[string]float64{}
	for i, v := range oneToTwenty() {
		pk := string(rune('A' + i))
		nodes = append(nodes, &models.NodeSnapshot{ID: pk, PublicKey: pk})
		credits[pk] = v
	}

	thresholdOf := func(ns []*models.NodeSnapshot) float64 {
		vals := make([]float64, 0, len(ns))
		for _, n := range ns {
			vals = append(vals, n.Credits)
		}
		return ComputeCreditsThreshold(vals)
	}

	first := EnrichNodesWithCreditsData(nodes, credits)
	second := EnrichNodesWithCreditsData(first, credits)
	assert.Equal(t, thresholdOf(first), thresholdOf(second))
	assert.Equal(t, 16.0, thresholdOf(second))
}

func TestEnrichDefaultsMissingToZeroAndDoesNotMutate(t *testing.T) {
	in := []*models.NodeSnapshot{
		{ID: "a", PublicKey: "pa", Credits: 99},
		{ID: "b", PublicKey: "pb", Credits: 42},
	}
	out := EnrichNodesWithCreditsData(in, map[string]float64{"pa": 7})

	require.Len(t, out, 2)
	assert.Equal(t, 7.0, out[0].Credits)
	assert.Equal(t, 0.0, out[1].Credits)
	assert.Equal(t, 99.0, in[0].Credits)
	assert.Equal(t, 42.0, in[1].Credits)
}

func TestCreditsServiceFetchRanksAndComputesThreshold(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"success","pods_credits":[
			{"pod_id":"low","credits":10},
			{"pod_id":"top","credits":100},
			{"pod_id":"mid","credits":50}
		]}`))
	}))
	defer srv.Close()

	cs := NewCreditsService(srv.URL, time.Minute)
	require.NoError(t, cs.FetchCredits(context.Background()))

	top, ok := cs.GetCredits("top")
	require.True(t, ok)
	assert.Equal(t, 1, top.Rank)
	assert.True(t, top.Eligible)

	low, _ := cs.GetCredits("low")
	assert.Equal(t, 3, low.Rank)
	assert.False(t, low.Eligible)

	th := cs.Threshold()
	assert.Equal(t, 100.0, th.Percentile95)
	assert.Equal(t, 80.0, th.Threshold)
	assert.Equal(t, 1, th.EligibleCount)
	assert.Equal(t, map[string]float64{"low": 10, "top": 100, "mid": 50}, cs.CreditsMap())

	top3 := cs.GetTopCredits(2)
	require.Len(t, top3, 2)
	assert.Equal(t, "mid", top3[1].Pubkey)
}

func TestCreditsServiceFetchRejectsFailureStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"error","pods_credits":[]}`))
	}))
	defer srv.Close()

	cs := NewCreditsService(srv.URL, time.Minute)
	assert.Error(t, cs.FetchCredits(context.Background()))
	assert.Empty(t, cs.GetAllCredits())
}

func TestCreditsServiceTracksChange(t *testing.T) {
	cs := NewCreditsService("http://unused", time.Minute)
	now := time.Now()
	cs.apply([]models.PodCreditsEntry{{PodID: "a", Credits: 10}}, now)
	cs.apply([]models.PodCreditsEntry{{PodID: "a", Credits: 25}}, now.Add(time.Minute))

	a, ok := cs.GetCredits("a")
	require.True(t, ok)
	assert.Equal(t, 15.0, a.CreditsChange)
}
