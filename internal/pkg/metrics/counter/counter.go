package counter

import (
	"context"
	"strconv"

	"github.com/gofiber/fiber/v2/log"
	"github.com/redis/go-redis/v9"
)

// DefaultKey is the Redis hash holding billing event counters.
const DefaultKey = "billing:counters:events"

// Counter counts billing events in a Redis hash, one field per event name.
type Counter struct {
	rdb redis.Cmdable
	key string
}

func New(rdb redis.Cmdable, key string) *Counter {
	if key == "" {
		key = DefaultKey
	}
	return &Counter{rdb: rdb, key: key}
}

// Incr adds one to event.
func (c *Counter) Incr(ctx context.Context, event string) error {
	return c.rdb.HIncrBy(ctx, c.key, event, 1).Err()
}

// Record increments event and only logs failures, so request paths never
// fail because Redis is away.
func (c *Counter) Record(ctx context.Context, event string) {
	if err := c.Incr(ctx, event); err != nil {
		log.Warnf("[Counter] Failed to record %s: %v", event, err)
	}
}

// Snapshot returns all counters. Fields that do not parse are skipped.
func (c *Counter) Snapshot(ctx context.Context) (map[string]int64, error) {
	data, err := c.rdb.HGetAll(ctx, c.key).Result()
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(data))
	for k, v := range data {
		n, perr := strconv.ParseInt(v, 10, 64)
		if perr != nil {
			continue
		}
		out[k] = n
	}
	return out, nil
}

// Reset drops all counters.
func (c *Counter) Reset(ctx context.Context) error {
	return c.rdb.Del(ctx, c.key).Err()
}
