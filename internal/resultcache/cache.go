package resultcache

import (
	"context"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"strings"
	"time"

	"github.com/go-redis/redis/v8"
	log "github.com/sirupsen/logrus"
)

// Cache is a best-effort read-through cache for search responses, keyed by
// a hash of the query. A nil *Cache is valid and always misses, so the
// service runs fine without Redis.
type Cache struct {
	client *redis.Client
	ttl    time.Duration
}

// New connects to Redis and returns the cache, or nil when addr is empty
// or the initial ping fails. The service runs uncached either way.
func New(addr, password string, db int, ttl time.Duration) *Cache {
	if addr == "" {
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	if err := client.Ping(context.Background()).Err(); err != nil {
		log.WithError(err).Warn("Failed to connect to result cache Redis, running without result cache")
		client.Close()
		return nil
	}
	log.Info("Connected to result cache Redis")

	return &Cache{client: client, ttl: ttl}
}

// QueryKey builds a deterministic cache key from the query parts.
func QueryKey(parts ...string) string {
	h := sha256.Sum256([]byte(strings.Join(parts, "\x1f")))
	return "akquise:search:" + base64.RawURLEncoding.EncodeToString(h[:])
}

// Get unmarshals the cached value for key into dest and reports whether it
// was present.
func (c *Cache) Get(ctx context.Context, key string, dest interface{}) bool {
	if c == nil {
		return false
	}

	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if err != redis.Nil {
			log.WithError(err).Warn("Failed to get data from result cache")
		}
		return false
	}

	if err := json.Unmarshal(data, dest); err != nil {
		log.WithError(err).Error("Failed to unmarshal cached result")
		return false
	}
	return true
}

// Set stores v under key for the configured TTL. Failures are logged, not
// returned; caching is best effort.
func (c *Cache) Set(ctx context.Context, key string, v interface{}) {
	if c == nil {
		return
	}

	data, err := json.Marshal(v)
	if err != nil {
		log.WithError(err).Error("Failed to marshal result for caching")
		return
	}

	if err := c.client.Set(ctx, key, data, c.ttl).Err(); err != nil {
		log.WithError(err).Warn("Failed to store result in cache")
	}
}

// Close releases the Redis connection.
func (c *Cache) Close() error {
	if c == nil {
		return nil
	}
	return c.client.Close()
}
