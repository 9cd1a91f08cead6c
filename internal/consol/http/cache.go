package http

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/thinq-erp/consol/internal/consol"
)

// reportCache stores rendered report payloads in Redis. A nil client turns
// every operation into a no-op so handlers work without a cache.
type reportCache struct {
	client *redis.Client
	ttl    time.Duration
}

func newReportCache(client *redis.Client, ttl time.Duration) *reportCache {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &reportCache{client: client, ttl: ttl}
}

func (c *reportCache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c == nil || c.client == nil {
		return nil, false
	}
	payload, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		return nil, false
	}
	return payload, true
}

func (c *reportCache) Set(ctx context.Context, key string, payload []byte) {
	if c == nil || c.client == nil {
		return
	}
	_ = c.client.Set(ctx, key, payload, c.ttl).Err()
}

// Invalidate drops every cached report. A posted or reopened entry moves
// figures for every tree containing its owner, and the ancestor roots are not
// derivable from the cache keys, so the whole namespace goes.
func (c *reportCache) Invalidate(ctx context.Context) error {
	if c == nil || c.client == nil {
		return nil
	}
	const pattern = "consol:report:*"
	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, pattern, 100).Result()
		if err != nil {
			if errors.Is(err, redis.ErrClosed) {
				return nil
			}
			return err
		}
		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = next
		if cursor == 0 {
			return nil
		}
	}
}

func buildCacheKey(kind string, filter consol.Filters) string {
	var b strings.Builder
	b.WriteString("consol:report:")
	b.WriteString(kind)
	b.WriteString(":root=")
	b.WriteString(strconv.FormatInt(filter.RootEntityID, 10))
	b.WriteString(":from=")
	b.WriteString(filter.DateFrom.Format("2006-01-02"))
	b.WriteString(":to=")
	b.WriteString(filter.DateTo.Format("2006-01-02"))
	b.WriteString(":elim=")
	b.WriteString(strconv.FormatBool(filter.IncludeElimination))
	return b.String()
}
