package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/cmlabs-hris/attendance-engine/internal/domain/report"
	"github.com/redis/go-redis/v9"
)

const defaultPrefix = "attendance:"

// Redis shares cached summaries between API instances. The generation lives
// in its own key and is part of every entry key, so Invalidate is a single
// INCR and stale entries simply expire.
type Redis struct {
	client *redis.Client
	ttl    time.Duration
	prefix string
}

// NewRedis wraps an existing client. ttl must be positive so orphaned
// generations are reclaimed.
func NewRedis(client *redis.Client, ttl time.Duration) *Redis {
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Redis{client: client, ttl: ttl, prefix: defaultPrefix}
}

// Connect parses url, dials and pings the server.
func Connect(ctx context.Context, url string) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return client, nil
}

func (r *Redis) genKey(employeeID string) string {
	return r.prefix + "gen:" + employeeID
}

func (r *Redis) entryKey(employeeID string, gen int64, key string) string {
	return r.prefix + employeeID + ":" + strconv.FormatInt(gen, 10) + ":" + key
}

func (r *Redis) generation(ctx context.Context, employeeID string) (int64, error) {
	gen, err := r.client.Get(ctx, r.genKey(employeeID)).Int64()
	if errors.Is(err, redis.Nil) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read generation: %w", err)
	}
	return gen, nil
}

func (r *Redis) Get(ctx context.Context, employeeID, key string) (report.SummaryStats, int64, bool, error) {
	gen, err := r.generation(ctx, employeeID)
	if err != nil {
		return report.SummaryStats{}, 0, false, err
	}

	raw, err := r.client.Get(ctx, r.entryKey(employeeID, gen, key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return report.SummaryStats{}, gen, false, nil
	}
	if err != nil {
		return report.SummaryStats{}, gen, false, fmt.Errorf("failed to read cache entry: %w", err)
	}

	var stats report.SummaryStats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return report.SummaryStats{}, gen, false, fmt.Errorf("failed to decode cache entry: %w", err)
	}
	return stats, gen, true, nil
}

func (r *Redis) Set(ctx context.Context, employeeID, key string, gen int64, stats report.SummaryStats) error {
	raw, err := json.Marshal(stats)
	if err != nil {
		return fmt.Errorf("failed to encode cache entry: %w", err)
	}
	if err := r.client.Set(ctx, r.entryKey(employeeID, gen, key), raw, r.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write cache entry: %w", err)
	}
	return nil
}

func (r *Redis) Invalidate(ctx context.Context, employeeID string) error {
	if err := r.client.Incr(ctx, r.genKey(employeeID)).Err(); err != nil {
		return fmt.Errorf("failed to bump generation: %w", err)
	}
	return nil
}
