package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/raaihank/phi-sentinel/internal/privacy"
	"go.uber.org/zap"
)

// ResultCache caches serialized de-identification results in Redis, keyed by a
// fingerprint of the request options and input text. Only the result schema is
// stored; the raw input never leaves the process and exists in the key solely
// as a one-way hash.
type ResultCache struct {
	client *redis.Client
	config *Config
	logger *zap.Logger
	hits   int64
	misses int64
}

// New creates a Redis-backed result cache and verifies connectivity.
func New(config *Config, logger *zap.Logger) (*ResultCache, error) {
	opts, err := redis.ParseURL(config.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	opts.PoolSize = config.MaxConnections
	opts.MinIdleConns = config.MinIdleConns

	client := redis.NewClient(opts)

	cache := &ResultCache{
		client: client,
		config: config,
		logger: logger,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if _, err := client.Ping(ctx).Result(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	logger.Info("Result cache initialized",
		zap.String("redis_url", maskRedisURL(config.RedisURL)),
		zap.Int("max_connections", config.MaxConnections),
		zap.Duration("default_ttl", config.DefaultTTL))

	return cache, nil
}

// Fingerprint derives the cache key material for one call: identical text under
// identical options always maps to the same key.
func Fingerprint(text string, opts privacy.Options) string {
	hasher := sha256.New()
	fmt.Fprintf(hasher, "%s|%s|%s|%t|%s|", opts.Mode, opts.Policy, opts.DefaultAction, opts.Reversible, opts.Locale)
	hasher.Write([]byte(text))
	return hex.EncodeToString(hasher.Sum(nil))
}

func (c *ResultCache) key(fingerprint string) string {
	return fmt.Sprintf("%s:result:%s", c.config.KeyPrefix, fingerprint)
}

// Get returns the cached result for a fingerprint, or nil on miss. Transport
// errors are returned so callers can log and fall through to the pipeline.
func (c *ResultCache) Get(ctx context.Context, fingerprint string) (*privacy.Result, error) {
	data, err := c.client.Get(ctx, c.key(fingerprint)).Bytes()
	if err == redis.Nil {
		atomic.AddInt64(&c.misses, 1)
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("cache get failed: %w", err)
	}

	var result privacy.Result
	if err := json.Unmarshal(data, &result); err != nil {
		// A corrupt entry is treated as a miss and evicted.
		c.client.Del(ctx, c.key(fingerprint))
		atomic.AddInt64(&c.misses, 1)
		return nil, nil
	}

	atomic.AddInt64(&c.hits, 1)
	return &result, nil
}

// Set stores a result under the configured TTL.
func (c *ResultCache) Set(ctx context.Context, fingerprint string, result *privacy.Result) error {
	data, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("cache marshal failed: %w", err)
	}
	if err := c.client.Set(ctx, c.key(fingerprint), data, c.config.DefaultTTL).Err(); err != nil {
		return fmt.Errorf("cache set failed: %w", err)
	}
	return nil
}

// Stats returns hit/miss counters since process start.
func (c *ResultCache) Stats() Stats {
	hits := atomic.LoadInt64(&c.hits)
	misses := atomic.LoadInt64(&c.misses)
	stats := Stats{Hits: hits, Misses: misses}
	if total := hits + misses; total > 0 {
		stats.HitRate = float64(hits) / float64(total)
	}
	return stats
}

// Close releases the Redis connection pool.
func (c *ResultCache) Close() error {
	return c.client.Close()
}

// maskRedisURL masks sensitive information in Redis URL for logging
func maskRedisURL(url string) string {
	if strings.Contains(url, "@") {
		parts := strings.Split(url, "@")
		if len(parts) >= 2 {
			userPart := parts[0]
			if strings.Contains(userPart, ":") {
				userParts := strings.Split(userPart, ":")
				if len(userParts) >= 3 {
					userParts[len(userParts)-1] = "***"
					parts[0] = strings.Join(userParts, ":")
				}
			}
			return strings.Join(parts, "@")
		}
	}
	return url
}
