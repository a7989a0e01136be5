package services

import (
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	log "github.com/sirupsen/logrus"

	"xandpulse/config"
	"xandpulse/models"
)

var _ CooldownStore = (*CacheService)(nil)

// CacheMode indicates which cache backend is active
type CacheMode string

const (
	CacheModeRedis    CacheMode = "redis"
	CacheModeInMemory CacheMode = "in-memory"
)

const (
	keyNodes = "nodes"
	keyStats = "stats"
)

// CacheItem is an in-memory entry; Data holds the same JSON Redis would.
type CacheItem struct {
	Data      []byte
	ExpiresAt time.Time
}

// CacheService keeps the latest node list, network stats and alert cooldown
// markers in Redis, falling back to process memory while Redis is unreachable.
type CacheService struct {
	redisCfg config.RedisConfig
	ttl      time.Duration

	redis       *redis.Client
	redisCtx    context.Context
	redisCancel context.CancelFunc
	mode        CacheMode
	modeMutex   sync.RWMutex

	inMemoryStore sync.Map

	stopChan chan struct{}
	stopOnce sync.Once
}

func NewCacheService(cfg *config.Config) *CacheService {
	ctx, cancel := context.WithCancel(context.Background())

	cs := &CacheService{
		redisCfg:    cfg.Redis,
		ttl:         cfg.CacheTTLDuration(),
		redisCtx:    ctx,
		redisCancel: cancel,
		stopChan:    make(chan struct{}),
		mode:        CacheModeInMemory,
	}

	if cfg.Redis.Enabled {
		cs.connectRedis()
	} else {
		log.Println("Redis disabled in config, using in-memory cache only")
	}

	return cs
}

func (cs *CacheService) connectRedis() {
	if cs.redisCfg.Address == "" {
		log.Println("Redis address not configured, using in-memory cache")
		return
	}

	options := &redis.Options{
		Addr:         cs.redisCfg.Address,
		Password:     cs.redisCfg.Password,
		DB:           cs.redisCfg.DB,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: 5 * time.Second,
		PoolSize:     10,
		MinIdleConns: 2,
		MaxRetries:   3,
		PoolTimeout:  10 * time.Second,
	}

	if cs.redisCfg.UseTLS {
		options.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
		log.Printf("TLS enabled for Redis connection")
	}

	cs.redis = redis.NewClient(options)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := cs.redis.Ping(ctx).Err(); err != nil {
		log.Warnf("⚠️  Redis connection failed: %v", err)
		log.Warnf("⚠️  Running in IN-MEMORY mode")
		cs.setMode(CacheModeInMemory)
		return
	}

	log.Printf("✓ Redis connected at %s", cs.redisCfg.Address)
	cs.setMode(CacheModeRedis)
}

func (cs *CacheService) setMode(mode CacheMode) {
	cs.modeMutex.Lock()
	defer cs.modeMutex.Unlock()
	cs.mode = mode
}

func (cs *CacheService) getMode() CacheMode {
	cs.modeMutex.RLock()
	defer cs.modeMutex.RUnlock()
	return cs.mode
}

// Start runs the Redis health check loop.
func (cs *CacheService) Start() {
	if cs.redis == nil {
		return
	}
	go cs.runHealthCheckLoop()
}

func (cs *CacheService) Stop() {
	cs.stopOnce.Do(func() {
		close(cs.stopChan)
		cs.redisCancel()
		if cs.redis != nil {
			cs.redis.Close()
		}
	})
}

func (cs *CacheService) runHealthCheckLoop() {
	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cs.checkRedisHealth()
		case <-cs.stopChan:
			return
		}
	}
}

// checkRedisHealth flips between backends as Redis comes and goes.
func (cs *CacheService) checkRedisHealth() {
	mode := cs.getMode()
	ctx, cancel := context.WithTimeout(cs.redisCtx, 2*time.Second)
	defer cancel()

	err := cs.redis.Ping(ctx).Err()

	if mode == CacheModeRedis && err != nil {
		log.Warnf("⚠️  Redis health check failed: %v", err)
		log.Warnf("⚠️  Switching to IN-MEMORY mode")
		cs.setMode(CacheModeInMemory)
	} else if mode == CacheModeInMemory && err == nil {
		log.Printf("✓ Redis reconnected! Switching back to REDIS mode")
		cs.syncInMemoryToRedis()
		cs.setMode(CacheModeRedis)
	}
}

// syncInMemoryToRedis copies live in-memory entries, cooldown markers included, to Redis.
func (cs *CacheService) syncInMemoryToRedis() {
	synced := 0
	cs.inMemoryStore.Range(func(key, value interface{}) bool {
		item := value.(*CacheItem)
		if ttl := time.Until(item.ExpiresAt); ttl > 0 {
			if err := cs.setRedisRaw(key.(string), item.Data, ttl); err == nil {
				synced++
			}
		}
		return true
	})
	log.Printf("Synced %d items to Redis", synced)
}

// Set stores data as JSON in the active backend.
func (cs *CacheService) Set(key string, data interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal failed: %w", err)
	}

	if cs.getMode() == CacheModeRedis {
		err := cs.setRedisRaw(key, raw, ttl)
		if err == nil {
			return nil
		}
		log.Warnf("Redis SET failed for '%s': %v (falling back to in-memory)", key, err)
	}
	cs.setInMemory(key, raw, ttl)
	return nil
}

// GetInto decodes the entry for key into dst. Expired in-memory entries are
// still decoded when allowStale is set; the second result reports staleness.
func (cs *CacheService) GetInto(key string, dst interface{}, allowStale bool) (found bool, stale bool) {
	if cs.getMode() == CacheModeRedis {
		raw, ok, err := cs.getRedisRaw(key)
		if err == nil {
			if !ok {
				return false, false
			}
			return json.Unmarshal(raw, dst) == nil, false
		}
		log.Debugf("Redis GET failed for '%s': %v", key, err)
	}

	raw, stale, ok := cs.getInMemory(key)
	if !ok || (stale && !allowStale) {
		return false, false
	}
	return json.Unmarshal(raw, dst) == nil, stale
}

func (cs *CacheService) setRedisRaw(key string, raw []byte, ttl time.Duration) error {
	if cs.redis == nil {
		return fmt.Errorf("redis client not initialized")
	}
	ctx, cancel := context.WithTimeout(cs.redisCtx, 2*time.Second)
	defer cancel()
	return cs.redis.Set(ctx, key, raw, ttl).Err()
}

func (cs *CacheService) getRedisRaw(key string) ([]byte, bool, error) {
	if cs.redis == nil {
		return nil, false, fmt.Errorf("redis client not initialized")
	}
	ctx, cancel := context.WithTimeout(cs.redisCtx, 2*time.Second)
	defer cancel()

	raw, err := cs.redis.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, err
	}
	return raw, true, nil
}

func (cs *CacheService) setInMemory(key string, raw []byte, ttl time.Duration) {
	cs.inMemoryStore.Store(key, &CacheItem{
		Data:      raw,
		ExpiresAt: time.Now().Add(ttl),
	})
}

func (cs *CacheService) getInMemory(key string) ([]byte, bool, bool) {
	val, ok := cs.inMemoryStore.Load(key)
	if !ok {
		return nil, false, false
	}
	item := val.(*CacheItem)
	return item.Data, time.Now().After(item.ExpiresAt), true
}

// SetNodes caches the enriched node list of the latest cycle and its summary stats.
func (cs *CacheService) SetNodes(nodes []*models.NodeSnapshot, stats *models.NetworkStats) {
	if err := cs.Set(keyNodes, nodes, cs.ttl); err != nil {
		log.Warnf("⚠️  Failed to cache nodes: %v", err)
	}
	if stats != nil {
		if err := cs.Set(keyStats, stats, cs.ttl); err != nil {
			log.Warnf("⚠️  Failed to cache stats: %v", err)
		}
	}
}

// GetNodes returns the cached node list; stale data is only returned when allowed.
func (cs *CacheService) GetNodes(allowStale bool) ([]*models.NodeSnapshot, bool, bool) {
	var nodes []*models.NodeSnapshot
	found, stale := cs.GetInto(keyNodes, &nodes, allowStale)
	if !found {
		return nil, false, false
	}
	return nodes, stale, true
}

// GetNode finds one node in the cached list.
func (cs *CacheService) GetNode(id string, allowStale bool) (*models.NodeSnapshot, bool, bool) {
	nodes, stale, found := cs.GetNodes(allowStale)
	if !found {
		return nil, false, false
	}
	for _, n := range nodes {
		if n.ID == id || n.PublicKey == id {
			return n, stale, true
		}
	}
	return nil, false, false
}

func (cs *CacheService) GetNetworkStats(allowStale bool) (*models.NetworkStats, bool, bool) {
	var stats models.NetworkStats
	found, stale := cs.GetInto(keyStats, &stats, allowStale)
	if !found {
		return nil, false, false
	}
	return &stats, stale, true
}

// LastAlertSent reads a cooldown marker. Missing or expired markers read as never sent.
func (cs *CacheService) LastAlertSent(_ context.Context, subscriptionID, nodeID string, alertType models.AlertType) (time.Time, error) {
	var sentAt time.Time
	if found, _ := cs.GetInto(cooldownKey(subscriptionID, nodeID, alertType), &sentAt, false); !found {
		return time.Time{}, nil
	}
	return sentAt, nil
}

// RecordAlertSent writes a cooldown marker that expires with the cooldown window.
func (cs *CacheService) RecordAlertSent(_ context.Context, record models.AlertSentRecord) error {
	ttl := CooldownWindow - time.Since(record.SentAt)
	if ttl <= 0 {
		return nil
	}
	return cs.Set(cooldownKey(record.SubscriptionID, record.NodeID, record.AlertType), record.SentAt, ttl)
}

func (cs *CacheService) GetCacheMode() CacheMode {
	return cs.getMode()
}

// ClearCache drops cached nodes and stats. Cooldown markers are kept.
func (cs *CacheService) ClearCache() error {
	if cs.getMode() == CacheModeRedis && cs.redis != nil {
		ctx, cancel := context.WithTimeout(cs.redisCtx, 5*time.Second)
		defer cancel()
		if err := cs.redis.Del(ctx, keyNodes, keyStats).Err(); err != nil {
			return fmt.Errorf("failed to clear redis cache: %w", err)
		}
	}
	cs.inMemoryStore.Delete(keyNodes)
	cs.inMemoryStore.Delete(keyStats)
	log.Println("Cache cleared")
	return nil
}

func (cs *CacheService) GetCacheStats() map[string]interface{} {
	stats := map[string]interface{}{
		"mode":    string(cs.getMode()),
		"enabled": cs.redisCfg.Enabled,
	}

	if cs.getMode() == CacheModeRedis && cs.redis != nil {
		ctx, cancel := context.WithTimeout(cs.redisCtx, 2*time.Second)
		defer cancel()
		if dbSize, err := cs.redis.DBSize(ctx).Result(); err == nil {
			stats["redis_keys"] = dbSize
		}
	}

	inMemCount := 0
	cs.inMemoryStore.Range(func(_, _ interface{}) bool {
		inMemCount++
		return true
	})
	stats["in_memory_keys"] = inMemCount

	return stats
}
