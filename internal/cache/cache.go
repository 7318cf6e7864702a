// Package cache provides the Redis read-through cache for product lookups.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"productapi/internal/models"
)

// DefaultPrefix namespaces every key written by ProductCache.
const DefaultPrefix = "productapi:product:"

// tombstone marks a deleted product so that in-flight fills cannot bring it back.
const tombstone = "deleted"

// maxTombstoneTTL caps how long a deleted id stays blocked.
const maxTombstoneTTL = 30 * time.Second

// ProductCache caches product responses by id.
type ProductCache struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
	stats  *Stats
}

// Stats tracks cache statistics.
type Stats struct {
	Hits    uint64 `json:"hits"`
	Misses  uint64 `json:"misses"`
	Sets    uint64 `json:"sets"`
	Deletes uint64 `json:"deletes"`
	Errors  uint64 `json:"errors"`
}

// StatsSnapshot is a point-in-time copy of Stats.
type StatsSnapshot struct {
	Hits      uint64  `json:"hits"`
	Misses    uint64  `json:"misses"`
	Sets      uint64  `json:"sets"`
	Deletes   uint64  `json:"deletes"`
	Errors    uint64  `json:"errors"`
	HitRate   float64 `json:"hit_rate"`
	TotalGets uint64  `json:"total_gets"`
}

// New creates a new ProductCache. An empty prefix falls back to DefaultPrefix.
func New(client *redis.Client, prefix string, ttl time.Duration) *ProductCache {
	if prefix == "" {
		prefix = DefaultPrefix
	}
	return &ProductCache{
		client: client,
		prefix: prefix,
		ttl:    ttl,
		stats:  &Stats{},
	}
}

func (c *ProductCache) key(id uuid.UUID) string {
	return c.prefix + id.String()
}

// Get returns the cached product. The boolean is false on a miss.
func (c *ProductCache) Get(ctx context.Context, id uuid.UUID) (*models.ProductResponse, bool, error) {
	data, err := c.client.Get(ctx, c.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			atomic.AddUint64(&c.stats.Misses, 1)
			return nil, false, nil
		}
		atomic.AddUint64(&c.stats.Errors, 1)
		return nil, false, fmt.Errorf("cache get error: %w", err)
	}
	if string(data) == tombstone {
		atomic.AddUint64(&c.stats.Misses, 1)
		return nil, false, nil
	}

	var resp models.ProductResponse
	if err := json.Unmarshal(data, &resp); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return nil, false, fmt.Errorf("cache unmarshal error: %w", err)
	}

	atomic.AddUint64(&c.stats.Hits, 1)
	return &resp, true, nil
}

// Set writes resp unconditionally. Called after a committed write, it
// replaces whatever a concurrent reader may have cached.
func (c *ProductCache) Set(ctx context.Context, resp models.ProductResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache marshal error: %w", err)
	}

	if err := c.client.Set(ctx, c.key(resp.ID), data, c.ttl).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache set error: %w", err)
	}

	atomic.AddUint64(&c.stats.Sets, 1)
	return nil
}

// Fill stores resp read on a miss, but only if the key is still absent. A
// value written by Set or a Delete tombstone always wins over a fill.
func (c *ProductCache) Fill(ctx context.Context, resp models.ProductResponse) error {
	data, err := json.Marshal(resp)
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache marshal error: %w", err)
	}

	stored, err := c.client.SetNX(ctx, c.key(resp.ID), data, c.ttl).Result()
	if err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache fill error: %w", err)
	}
	if stored {
		atomic.AddUint64(&c.stats.Sets, 1)
	}
	return nil
}

// Delete replaces the entry for id with a short-lived tombstone.
func (c *ProductCache) Delete(ctx context.Context, id uuid.UUID) error {
	if err := c.client.Set(ctx, c.key(id), tombstone, c.tombstoneTTL()).Err(); err != nil {
		atomic.AddUint64(&c.stats.Errors, 1)
		return fmt.Errorf("cache delete error: %w", err)
	}

	atomic.AddUint64(&c.stats.Deletes, 1)
	return nil
}

func (c *ProductCache) tombstoneTTL() time.Duration {
	if c.ttl > 0 && c.ttl < maxTombstoneTTL {
		return c.ttl
	}
	return maxTombstoneTTL
}

// GetStats returns the current cache statistics.
func (c *ProductCache) GetStats() StatsSnapshot {
	hits := atomic.LoadUint64(&c.stats.Hits)
	misses := atomic.LoadUint64(&c.stats.Misses)
	totalGets := hits + misses

	var hitRate float64
	if totalGets > 0 {
		hitRate = float64(hits) / float64(totalGets) * 100
	}

	return StatsSnapshot{
		Hits:      hits,
		Misses:    misses,
		Sets:      atomic.LoadUint64(&c.stats.Sets),
		Deletes:   atomic.LoadUint64(&c.stats.Deletes),
		Errors:    atomic.LoadUint64(&c.stats.Errors),
		HitRate:   hitRate,
		TotalGets: totalGets,
	}
}

// Ping checks if the Redis connection is healthy.
func (c *ProductCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

// Close closes the Redis client connection.
func (c *ProductCache) Close() error {
	return c.client.Close()
}
