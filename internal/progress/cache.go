package progress

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/arc-self/wikipii-scan/internal/domain"
)

// cacheKeyFmt is the Redis key template for a scan's last-emitted
// progress percentage (§4.C). It exists only to enforce the monotonicity
// invariant across orchestrator restarts within the same process group —
// the checkpoint/event store remains the durable source of truth.
const cacheKeyFmt = "wikipii:scan:%s:last_percentage"

// cacheTTL bounds how long a stale entry survives a crash before it falls
// out of the cache entirely.
const cacheTTL = 24 * time.Hour

// Cache is a best-effort (scanId -> lastEmittedPercentage) cache, grounded
// on public-api-service's SDKHandler: Redis is consulted first, any miss
// or error falls back to the caller's in-process Tracker instead of
// failing the scan.
type Cache struct {
	redis *redis.Client
}

// NewCache wraps an existing Redis client.
func NewCache(client *redis.Client) *Cache {
	return &Cache{redis: client}
}

// Set records the last emitted percentage for a scan.
func (c *Cache) Set(ctx context.Context, scanId domain.ScanId, percentage int) error {
	key := fmt.Sprintf(cacheKeyFmt, scanId)
	if err := c.redis.Set(ctx, key, percentage, cacheTTL).Err(); err != nil {
		return fmt.Errorf("progress cache: set: %w", err)
	}
	return nil
}

// Get returns the last emitted percentage, or ok=false on a cache miss,
// parse failure, or any Redis error.
func (c *Cache) Get(ctx context.Context, scanId domain.ScanId) (int, bool) {
	key := fmt.Sprintf(cacheKeyFmt, scanId)
	val, err := c.redis.Get(ctx, key).Result()
	if err != nil {
		return 0, false
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, false
	}
	return n, true
}
