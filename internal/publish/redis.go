package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"turbidity-monitor/internal/errs"
	"turbidity-monitor/internal/monitor"
)

const (
	statusKeyPrefix = "turbidity:status:"
	eventsChannel   = "turbidity:events"
	statusTTL       = 24 * time.Hour
)

// redisClient is the subset of *redis.Client used here.
type redisClient interface {
	Ping(ctx context.Context) *redis.StatusCmd
	Set(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.StatusCmd
	Publish(ctx context.Context, channel string, message interface{}) *redis.IntCmd
	Close() error
}

// Redis stores the latest status under a per-run key and publishes events
// on a shared channel.
type Redis struct {
	client redisClient
}

// NewRedis connects to addr and verifies the connection.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	rdb := redis.NewClient(&redis.Options{
		Addr:       addr,
		DB:         0,
		PoolSize:   4,
		MaxRetries: 3,
	})
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("%w: redis %s: %w", errs.ErrResource, addr, err)
	}
	return &Redis{client: rdb}, nil
}

// StatusKey is the key holding the latest status of a run.
func StatusKey(runID string) string {
	return statusKeyPrefix + runID
}

// PublishStatus overwrites the run's status key.
func (r *Redis) PublishStatus(ctx context.Context, runID string, st monitor.Status) error {
	data, err := json.Marshal(st)
	if err != nil {
		return err
	}
	return r.client.Set(ctx, StatusKey(runID), data, statusTTL).Err()
}

// PublishEvent sends msg on the events channel.
func (r *Redis) PublishEvent(ctx context.Context, msg Message) error {
	data, err := json.Marshal(msg)
	if err != nil {
		return err
	}
	return r.client.Publish(ctx, eventsChannel, data).Err()
}

func (r *Redis) Close() error {
	return r.client.Close()
}

// Open returns a redis publisher for addr, or Nop when addr is empty.
func Open(ctx context.Context, addr string) (Publisher, error) {
	if addr == "" {
		return Nop{}, nil
	}
	r, err := NewRedis(ctx, addr)
	if err != nil {
		return nil, err
	}
	return r, nil
}
