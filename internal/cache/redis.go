package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/file-parser/backend/internal/models"
)

// RedisCache stores progress snapshots in Redis with a TTL, msgpack
// encoded.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewRedisCache connects to Redis and verifies the connection.
func NewRedisCache(addr string, db int, ttl time.Duration) (*RedisCache, error) {
	client := redis.NewClient(&redis.Options{
		Addr:         addr,
		DB:           db,
		DialTimeout:  5 * time.Second,
		ReadTimeout:  3 * time.Second,
		WriteTimeout: 3 * time.Second,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}

	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisCache{client: client, ttl: ttl}, nil
}

var _ ProgressCache = (*RedisCache)(nil)

func progressKey(fileID string) string {
	return "progress:" + fileID
}

// Get returns the cached snapshot, or nil when absent.
func (r *RedisCache) Get(ctx context.Context, fileID string) (*models.FileProgress, error) {
	data, err := r.client.Get(ctx, progressKey(fileID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading progress from redis: %w", err)
	}

	var p models.FileProgress
	if err := msgpack.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decoding cached progress: %w", err)
	}
	return &p, nil
}

// Set stores a snapshot with the configured TTL.
func (r *RedisCache) Set(ctx context.Context, p *models.FileProgress) error {
	data, err := msgpack.Marshal(p)
	if err != nil {
		return fmt.Errorf("encoding progress: %w", err)
	}
	if err := r.client.Set(ctx, progressKey(p.FileID), data, r.ttl).Err(); err != nil {
		return fmt.Errorf("writing progress to redis: %w", err)
	}
	return nil
}

// Delete removes a snapshot.
func (r *RedisCache) Delete(ctx context.Context, fileID string) error {
	if err := r.client.Del(ctx, progressKey(fileID)).Err(); err != nil {
		return fmt.Errorf("deleting progress from redis: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (r *RedisCache) Close() error {
	return r.client.Close()
}
