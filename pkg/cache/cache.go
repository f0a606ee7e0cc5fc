// Package cache is the thin Redis-backed cache shared by the
// services. It degrades gracefully: every failure is logged, counted
// and swallowed, so a dead Redis only costs latency, never requests.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

var (
	hits = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_hits_total",
		Help: "Cache lookups served from Redis.",
	}, []string{"prefix"})
	misses = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "cache_misses_total",
		Help: "Cache lookups that fell through to the source of truth.",
	}, []string{"prefix"})
	failures = promauto.NewCounter(prometheus.CounterOpts{
		Name: "cache_failures_total",
		Help: "Cache operations that errored and were swallowed.",
	})
)

// SettingsKey caches one tenant's OrganizationSettings.
func SettingsKey(tenantID uuid.UUID) string {
	return "settings:tenant:" + tenantID.String()
}

// AvailabilityKey caches one resource's projection for one date.
func AvailabilityKey(resourceID uuid.UUID, date string) string {
	return "availability:resource:" + resourceID.String() + ":" + date
}

// AvailabilityPattern matches every cached date of a resource.
func AvailabilityPattern(resourceID uuid.UUID) string {
	return "availability:resource:" + resourceID.String() + ":*"
}

// commands is the slice of the Redis API the cache touches.
type commands interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
	Keys(ctx context.Context, pattern string) *redis.StringSliceCmd
}

type Cache struct {
	rdb             commands
	log             *zap.Logger
	settingsTTL     time.Duration
	availabilityTTL time.Duration
}

// New wires the cache over an existing Redis client. TTLs are in
// seconds, matching the CACHE_TTL_* environment knobs. A nil client
// yields an always-miss cache.
func New(rdb *redis.Client, logger *zap.Logger, settingsTTLSeconds, availabilityTTLSeconds int) *Cache {
	c := &Cache{
		log:             logger,
		settingsTTL:     time.Duration(settingsTTLSeconds) * time.Second,
		availabilityTTL: time.Duration(availabilityTTLSeconds) * time.Second,
	}
	if rdb != nil {
		c.rdb = rdb
	}
	return c
}

func (c *Cache) SettingsTTL() time.Duration     { return c.settingsTTL }
func (c *Cache) AvailabilityTTL() time.Duration { return c.availabilityTTL }

// GetJSON loads key into dest. Returns false on miss, on error, or on
// a nil cache.
func (c *Cache) GetJSON(ctx context.Context, key string, dest any) bool {
	if c == nil || c.rdb == nil {
		return false
	}
	raw, err := c.rdb.Get(ctx, key).Result()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			failures.Inc()
			c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		misses.WithLabelValues(prefixOf(key)).Inc()
		return false
	}
	if err := json.Unmarshal([]byte(raw), dest); err != nil {
		failures.Inc()
		c.log.Warn("cache entry corrupt", zap.String("key", key), zap.Error(err))
		return false
	}
	hits.WithLabelValues(prefixOf(key)).Inc()
	return true
}

// SetJSON stores value under key with ttl. Errors are swallowed.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil || c.rdb == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		failures.Inc()
		c.log.Warn("cache marshal failed", zap.String("key", key), zap.Error(err))
		return
	}
	if err := c.rdb.Set(ctx, key, raw, ttl).Err(); err != nil {
		failures.Inc()
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

// Delete removes keys, ignoring failures.
func (c *Cache) Delete(ctx context.Context, keys ...string) {
	if c == nil || c.rdb == nil || len(keys) == 0 {
		return
	}
	if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
		failures.Inc()
		c.log.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

// DeletePattern removes every key matching pattern.
func (c *Cache) DeletePattern(ctx context.Context, pattern string) {
	if c == nil || c.rdb == nil {
		return
	}
	keys, err := c.rdb.Keys(ctx, pattern).Result()
	if err != nil {
		failures.Inc()
		c.log.Warn("cache scan failed", zap.String("pattern", pattern), zap.Error(err))
		return
	}
	c.Delete(ctx, keys...)
}

func prefixOf(key string) string {
	for i, r := range key {
		if r == ':' {
			return key[:i]
		}
	}
	return key
}
