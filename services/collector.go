package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	log "github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"xandpulse/config"
	"xandpulse/models"
	"xandpulse/utils"
)

// ErrNoSeedsReachable is returned when no configured seed answered.
var ErrNoSeedsReachable = errors.New("no seed node reachable")

const seedConcurrency = 4

// Collector turns the gossip view of the configured seed nodes into NodeSnapshots.
type Collector struct {
	client      *PRPCClient
	geo         *utils.GeoResolver
	seeds       []string
	defaultPort int
	now         func() time.Time
}

func NewCollector(cfg *config.Config, client *PRPCClient, geo *utils.GeoResolver) *Collector {
	seeds := make([]string, 0, len(cfg.PRPC.SeedNodes))
	for _, s := range cfg.PRPC.SeedNodes {
		if s = strings.TrimSpace(s); s != "" {
			seeds = append(seeds, withDefaultPort(s, cfg.PRPC.DefaultPort))
		}
	}
	return &Collector{
		client:      client,
		geo:         geo,
		seeds:       seeds,
		defaultPort: cfg.PRPC.DefaultPort,
		now:         time.Now,
	}
}

func withDefaultPort(addr string, port int) string {
	if _, _, err := net.SplitHostPort(addr); err == nil || port <= 0 {
		return addr
	}
	return net.JoinHostPort(addr, strconv.Itoa(port))
}

// Collect asks every seed for its pods and merges the answers by node id,
// keeping the most recently seen record. It fails only if no seed answered.
func (c *Collector) Collect(ctx context.Context) ([]*models.NodeSnapshot, error) {
	if len(c.seeds) == 0 {
		return nil, fmt.Errorf("no seed nodes configured")
	}

	var (
		mu        sync.Mutex
		merged    = make(map[string]models.PodWithStats)
		reachable int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(seedConcurrency)

	for _, seed := range c.seeds {
		seed := seed
		g.Go(func() error {
			resp, err := c.client.GetPodsWithStats(gctx, seed)
			if err != nil {
				log.Warnf("⚠️  Seed %s unavailable: %v", seed, err)
				return nil
			}

			mu.Lock()
			defer mu.Unlock()
			reachable++
			for _, pod := range resp.Pods {
				id := utils.NodeID(pod.Pubkey, pod.Address)
				if existing, ok := merged[id]; !ok || pod.LastSeenTimestamp > existing.LastSeenTimestamp {
					merged[id] = pod
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	if reachable == 0 {
		return nil, ErrNoSeedsReachable
	}

	now := c.now()
	nodes := make([]*models.NodeSnapshot, 0, len(merged))
	for _, pod := range merged {
		nodes = append(nodes, c.normalize(pod, now))
	}
	sort.Slice(nodes, func(i, j int) bool { return nodes[i].ID < nodes[j].ID })

	log.WithFields(log.Fields{
		"seeds":     len(c.seeds),
		"reachable": reachable,
		"nodes":     len(nodes),
	}).Info("Collected pods from gossip")
	return nodes, nil
}

func (c *Collector) normalize(pod models.PodWithStats, now time.Time) *models.NodeSnapshot {
	lastSeen := time.Unix(pod.LastSeenTimestamp, 0)
	status := utils.DetermineStatus(lastSeen, now)

	n := &models.NodeSnapshot{
		ID:            utils.NodeID(pod.Pubkey, pod.Address),
		PublicKey:     pod.Pubkey,
		Address:       pod.Address,
		Status:        status,
		Uptime:        utils.UptimePercent(pod.Uptime, status),
		UptimeSeconds: pod.Uptime,
		Storage: models.StorageInfo{
			Total:        pod.StorageCommitted,
			Used:         pod.StorageUsed,
			UsagePercent: pod.StorageUsagePercent,
		},
		Version:     pod.Version,
		VersionType: utils.ClassifyVersionType(pod.Version),
		IsPublic:    pod.IsPublic,
		LastSeen:    lastSeen,
		ObservedAt:  now,
	}

	host := pod.Address
	if h, _, err := net.SplitHostPort(pod.Address); err == nil {
		host = h
	}
	n.Location = c.geo.Lookup(host)
	n.HealthScore = utils.CalculateHealthScore(n)
	return n
}
