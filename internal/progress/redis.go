package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisPublisher stores checkpoints in Redis with a per-key TTL. Each job
// has a single writer, so the read-check-write monotonicity guard is not
// racy in practice.
type RedisPublisher struct {
	client *redis.Client
	prefix string
	ttl    time.Duration
}

// RedisConfig holds Redis connection configuration.
type RedisConfig struct {
	Addr     string
	Password string
	DB       int
	Prefix   string
	TTL      time.Duration
}

// NewRedisPublisher creates a Redis-backed progress channel and verifies
// connectivity.
func NewRedisPublisher(cfg RedisConfig) (*RedisPublisher, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}

	prefix := cfg.Prefix
	if prefix == "" {
		prefix = "menudig:"
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}

	return &RedisPublisher{client: client, prefix: prefix, ttl: ttl}, nil
}

func (p *RedisPublisher) key(jobID string) string {
	return p.prefix + "job:" + jobID
}

// Publish stores the checkpoint under the job key, refreshing the TTL.
func (p *RedisPublisher) Publish(ctx context.Context, jobID string, cp Checkpoint) error {
	if prev, err := p.Get(ctx, jobID); err == nil && cp.Progress < prev.Progress {
		return regressionError(jobID, prev.Progress, cp.Progress)
	}

	data, err := json.Marshal(cp)
	if err != nil {
		return fmt.Errorf("marshal checkpoint: %w", err)
	}
	if err := p.client.Set(ctx, p.key(jobID), data, p.ttl).Err(); err != nil {
		return fmt.Errorf("redis set: %w", err)
	}
	return nil
}

// Get retrieves the latest checkpoint for a job, or ErrNotFound when the
// id is unknown or the entry has expired.
func (p *RedisPublisher) Get(ctx context.Context, jobID string) (Checkpoint, error) {
	val, err := p.client.Get(ctx, p.key(jobID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return Checkpoint{}, ErrNotFound
	}
	if err != nil {
		return Checkpoint{}, fmt.Errorf("redis get: %w", err)
	}
	var cp Checkpoint
	if err := json.Unmarshal(val, &cp); err != nil {
		return Checkpoint{}, fmt.Errorf("unmarshal checkpoint: %w", err)
	}
	return cp, nil
}

// Close closes the Redis connection.
func (p *RedisPublisher) Close() error {
	return p.client.Close()
}
