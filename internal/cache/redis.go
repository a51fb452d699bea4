package cache

import (
	"context"
	"fmt"
	"time"

	"example.com/jodi/services/whatsapp/config"
	"github.com/go-redis/redis/v8"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
)

// RedisCache remembers which export files have already been ingested, keyed
// by a content digest, so unchanged files are not re-parsed on every run.
// The database dedup index stays authoritative; this only saves round trips.
type RedisCache struct {
	client  *redis.Client
	enabled bool
	ttl     time.Duration
}

// NewRedisCache creates a new Redis cache
func NewRedisCache(cfg config.RedisConfig) (*RedisCache, error) {
	if !cfg.Enabled {
		return &RedisCache{enabled: false}, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	// Test the connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, errors.Wrap(err, "failed to connect to Redis")
	}

	return &RedisCache{
		client:  client,
		enabled: true,
		ttl:     cfg.TTL,
	}, nil
}

// ExportCacheKey generates a cache key for an export content digest
func ExportCacheKey(digest string) string {
	return fmt.Sprintf("whatsapp:export:%s", digest)
}

// SeenExport reports whether an export with this content digest was already
// ingested. Errors degrade to "not seen" so the cache can never lose events.
func (c *RedisCache) SeenExport(ctx context.Context, digest string) bool {
	if c == nil || !c.enabled {
		return false
	}

	n, err := c.client.Exists(ctx, ExportCacheKey(digest)).Result()
	if err != nil {
		log.Warn().Err(err).Msg("Failed to check export cache, treating file as new")
		return false
	}
	return n > 0
}

// MarkExport records an export digest after a successful load.
func (c *RedisCache) MarkExport(ctx context.Context, digest string) error {
	if c == nil || !c.enabled {
		return nil
	}

	if err := c.client.Set(ctx, ExportCacheKey(digest), time.Now().UTC().Format(time.RFC3339), c.ttl).Err(); err != nil {
		return errors.Wrap(err, "failed to mark export in Redis")
	}
	return nil
}

// Close closes the Redis connection
func (c *RedisCache) Close() error {
	if c == nil || !c.enabled || c.client == nil {
		return nil
	}

	return c.client.Close()
}
