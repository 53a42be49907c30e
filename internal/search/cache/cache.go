// Package cache is an optional Redis-backed cache of reranked results, keyed
// on the parsed query tree so equivalent spellings share entries. Concurrent
// fills for the same key collapse through singleflight.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"log/slog"
	"sync/atomic"

	"golang.org/x/sync/singleflight"

	"github.com/cascadeir/cascade/internal/model"
	"github.com/cascadeir/cascade/pkg/config"
	"github.com/cascadeir/cascade/pkg/metrics"
	pkgredis "github.com/cascadeir/cascade/pkg/redis"
)

const keyPrefix = "cascade:search:"

// ResultCache caches final rankings across queries.
type ResultCache struct {
	client  *pkgredis.Client
	cfg     config.RedisConfig
	group   singleflight.Group
	metrics *metrics.Metrics
	logger  *slog.Logger
	hits    atomic.Int64
	misses  atomic.Int64
}

// New wraps a connected Redis client. metrics may be nil.
func New(client *pkgredis.Client, cfg config.RedisConfig, m *metrics.Metrics) *ResultCache {
	return &ResultCache{
		client:  client,
		cfg:     cfg,
		metrics: m,
		logger:  slog.Default().With("component", "result-cache"),
	}
}

// GetOrCompute returns the cached ranking for the query tree, or computes,
// stores, and returns it. The bool reports a cache hit.
func (c *ResultCache) GetOrCompute(
	ctx context.Context,
	tree *model.QueryNode,
	computeFn func() ([]model.SearchResult, error),
) ([]model.SearchResult, bool, error) {
	key := c.buildKey(tree)
	if ranked, ok := c.get(ctx, key); ok {
		return ranked, true, nil
	}
	val, err, _ := c.group.Do(key, func() (interface{}, error) {
		if ranked, ok := c.get(ctx, key); ok {
			return ranked, nil
		}
		ranked, err := computeFn()
		if err != nil {
			return nil, err
		}
		c.set(ctx, key, ranked)
		return ranked, nil
	})
	if err != nil {
		return nil, false, err
	}
	return val.([]model.SearchResult), false, nil
}

func (c *ResultCache) get(ctx context.Context, key string) ([]model.SearchResult, bool) {
	data, err := c.client.Get(ctx, key)
	if err != nil {
		if !pkgredis.IsNilError(err) {
			c.logger.Error("cache get failed", "key", key, "error", err)
		}
		c.miss()
		return nil, false
	}
	var ranked []model.SearchResult
	if err := json.Unmarshal([]byte(data), &ranked); err != nil {
		c.logger.Error("cache unmarshal failed", "key", key, "error", err)
		c.miss()
		return nil, false
	}
	c.hit()
	return ranked, true
}

func (c *ResultCache) set(ctx context.Context, key string, ranked []model.SearchResult) {
	data, err := json.Marshal(ranked)
	if err != nil {
		c.logger.Error("cache marshal failed", "key", key, "error", err)
		return
	}
	if err := c.client.Set(ctx, key, data, c.cfg.CacheTTL); err != nil {
		c.logger.Error("cache set failed", "key", key, "error", err)
	}
}

// Stats returns the hit and miss counts since startup.
func (c *ResultCache) Stats() (hits, misses int64) {
	return c.hits.Load(), c.misses.Load()
}

func (c *ResultCache) buildKey(tree *model.QueryNode) string {
	hash := sha256.Sum256([]byte(tree.String()))
	return fmt.Sprintf("%s%x", keyPrefix, hash[:16])
}

func (c *ResultCache) hit() {
	c.hits.Add(1)
	if c.metrics != nil {
		c.metrics.CacheHitsTotal.Inc()
	}
}

func (c *ResultCache) miss() {
	c.misses.Add(1)
	if c.metrics != nil {
		c.metrics.CacheMissesTotal.Inc()
	}
}
