package services

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"xandpulse/config"
	"xandpulse/models"
)

func podServer(t *testing.T, pods []models.PodWithStats) *httptest.Server {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/rpc", r.URL.Path)
		var req models.RPCRequest
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "2.0", req.JSONRPC)
		assert.Equal(t, methodPodsWithStats, req.Method)

		result, _ := json.Marshal(models.PodsWithStatsResponse{Pods: pods, TotalCount: len(pods)})
		_ = json.NewEncoder(w).Encode(models.RPCResponse{JSONRPC: "2.0", Result: result, ID: req.ID})
	}))
	t.Cleanup(srv.Close)
	return srv
}

func hostOf(srv *httptest.Server) string {
	return strings.TrimPrefix(srv.URL, "http://")
}

func TestCollectorMergesSeedsAndNormalizes(t *testing.T) {
	now := time.Unix(1_750_000_000, 0)

	seedA := podServer(t, []models.PodWithStats{
		{Pubkey: "PK1", Address: "10.0.0.1:9001", Version: "0.8.0", LastSeenTimestamp: now.Add(-10 * time.Minute).Unix(), Uptime: 43200, IsPublic: true, StorageCommitted: 1000},
		{Pubkey: "PK2", Address: "10.0.0.2:9001", Version: "0.8.0-trynet.20251210", LastSeenTimestamp: now.Add(-6 * time.Minute).Unix(), Uptime: 86400},
	})
	seedB := podServer(t, []models.PodWithStats{
		{Pubkey: "PK1", Address: "10.0.0.1:9001", Version: "0.8.0", LastSeenTimestamp: now.Add(-30 * time.Second).Unix(), Uptime: 43200, IsPublic: true, StorageCommitted: 1000},
		{Address: "10.0.0.3:9001", Version: "0.7.3", LastSeenTimestamp: now.Add(-30 * time.Second).Unix()},
	})

	cfg := config.Default()
	cfg.PRPC.MaxRetries = 1
	cfg.PRPC.SeedNodes = []string{hostOf(seedA), hostOf(seedB)}

	c := NewCollector(cfg, NewPRPCClient(cfg), nil)
	c.now = func() time.Time { return now }

	nodes, err := c.Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, nodes, 3)

	byID := map[string]*models.NodeSnapshot{}
	for _, n := range nodes {
		byID[n.ID] = n
	}

	pk1 := byID["PK1"]
	require.NotNil(t, pk1)
	assert.Equal(t, models.StatusOnline, pk1.Status, "newest sighting wins")
	assert.Equal(t, 50.0, pk1.Uptime)
	assert.Equal(t, models.VersionMainnet, pk1.VersionType)
	assert.Equal(t, int64(1000), pk1.Storage.Total)
	assert.Nil(t, pk1.Location)
	assert.Equal(t, 30+20+20+10, pk1.HealthScore)

	pk2 := byID["PK2"]
	require.NotNil(t, pk2)
	assert.Equal(t, models.StatusDegraded, pk2.Status)
	assert.Equal(t, models.VersionTrynet, pk2.VersionType)

	var anon *models.NodeSnapshot
	for id, n := range byID {
		if strings.HasPrefix(id, "addr-") {
			anon = n
		}
	}
	require.NotNil(t, anon, "pods without pubkey get an address-derived id")
	assert.Equal(t, "10.0.0.3:9001", anon.Address)
}

func TestCollectorToleratesDeadSeed(t *testing.T) {
	live := podServer(t, []models.PodWithStats{{Pubkey: "PK1", Address: "10.0.0.1:9001", LastSeenTimestamp: time.Now().Unix()}})
	dead := httptest.NewServer(http.NotFoundHandler())
	deadAddr := hostOf(dead)
	dead.Close()

	cfg := config.Default()
	cfg.PRPC.MaxRetries = 1
	cfg.PRPC.SeedNodes = []string{deadAddr, hostOf(live)}

	nodes, err := NewCollector(cfg, NewPRPCClient(cfg), nil).Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, nodes, 1)
}

func TestCollectorFailsWhenNoSeedAnswers(t *testing.T) {
	dead := httptest.NewServer(http.NotFoundHandler())
	deadAddr := hostOf(dead)
	dead.Close()

	cfg := config.Default()
	cfg.PRPC.MaxRetries = 1
	cfg.PRPC.SeedNodes = []string{deadAddr}

	_, err := NewCollector(cfg, NewPRPCClient(cfg), nil).Collect(context.Background())
	assert.ErrorIs(t, err, ErrNoSeedsReachable)
}

func TestPRPCClientRetriesServerErrors(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_ = json.NewEncoder(w).Encode(models.RPCResponse{JSONRPC: "2.0", Result: json.RawMessage(`{"version":"0.8.0"}`), ID: 1})
	}))
	defer srv.Close()

	cfg := config.Default()
	cfg.PRPC.MaxRetries = 3
	ver, err := NewPRPCClient(cfg).GetVersion(context.Background(), hostOf(srv))
	require.NoError(t, err)
	assert.Equal(t, "0.8.0", ver.Version)
	assert.Equal(t, 2, calls)
}

func TestPRPCClientSurfacesRPCError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(models.RPCResponse{JSONRPC: "2.0", Error: &models.RPCError{Code: -32601, Message: "Method not found"}, ID: 1})
	}))
	defer srv.Close()

	cfg := config.Default()
	_, err := NewPRPCClient(cfg).GetPodsWithStats(context.Background(), hostOf(srv))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Method not found")
}

func TestWithDefaultPort(t *testing.T) {
	assert.Equal(t, "10.0.0.1:6000", withDefaultPort("10.0.0.1", 6000))
	assert.Equal(t, "10.0.0.1:9001", withDefaultPort("10.0.0.1:9001", 6000))
}
