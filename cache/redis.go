package cache

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

// DefaultRedisPrefix namespaces cache keys.
const DefaultRedisPrefix = "agentctx:cache:"

// hitScript counts a hit only while the entry still exists, so a hash that
// expires mid-lookup is never recreated without its TTL. It returns the new
// hit count, or -1 when the entry is gone.
var hitScript = redis.NewScript(`
	if redis.call('EXISTS', KEYS[1]) == 0 then
		return -1
	end
	return redis.call('HINCRBY', KEYS[1], 'hit_count', 1)
`)

// RedisConfig sizes a Redis cache.
type RedisConfig struct {
	Prefix   string        `yaml:"prefix"`
	Capacity int           `yaml:"capacity"`
	TTL      time.Duration `yaml:"ttl"`
}

// Redis is a cache shared across processes. Each entry is a hash expiring
// after TTL; a sorted set scored by creation time drives capacity eviction.
type Redis struct {
	client redis.UniversalClient
	cfg    RedisConfig
	logger Logger
	now    func() time.Time
}

// NewRedis creates a Redis cache over client.
func NewRedis(client redis.UniversalClient, cfg RedisConfig, logger Logger) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = DefaultRedisPrefix
	}
	if cfg.Capacity <= 0 {
		cfg.Capacity = DefaultCapacity
	}
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Redis{client: client, cfg: cfg, logger: logger, now: time.Now}
}

func (c *Redis) entryKey(key string) string { return c.cfg.Prefix + "entry:" + key }
func (c *Redis) indexKey() string           { return c.cfg.Prefix + "index" }
func (c *Redis) statKey(name string) string { return c.cfg.Prefix + "stats:" + name }

// Get returns a live entry. Redis errors are logged and reported as misses.
func (c *Redis) Get(ctx context.Context, query, contextKey string) (Entry, bool) {
	key := Key(query, contextKey)

	fields, err := c.client.HGetAll(ctx, c.entryKey(key)).Result()
	if err != nil {
		c.logger.Warn("cache get failed", "key", key, "error", err)
		return Entry{}, false
	}
	if len(fields) == 0 {
		c.miss(ctx, key)
		return Entry{}, false
	}

	e, err := parseEntry(key, fields)
	if err != nil {
		c.logger.Warn("cache entry unreadable", "key", key, "error", err)
		return Entry{}, false
	}

	hits, err := hitScript.Run(ctx, c.client, []string{c.entryKey(key)}).Int64()
	if err != nil {
		c.logger.Warn("cache hit accounting failed", "key", key, "error", err)
		return Entry{}, false
	}
	if hits < 0 {
		// Expired between the read and the hit count.
		c.miss(ctx, key)
		return Entry{}, false
	}

	pipe := c.client.Pipeline()
	pipe.Incr(ctx, c.statKey("hits"))
	pipe.IncrBy(ctx, c.statKey("saved"), int64(e.TokensSaved))
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("cache hit accounting failed", "key", key, "error", err)
	}
	e.HitCount = int(hits)
	return e, true
}

// miss records a lookup of an expired or absent entry and drops its index
// member.
func (c *Redis) miss(ctx context.Context, key string) {
	pipe := c.client.Pipeline()
	pipe.ZRem(ctx, c.indexKey(), key)
	pipe.Incr(ctx, c.statKey("misses"))
	if _, err := pipe.Exec(ctx); err != nil {
		c.logger.Warn("cache miss accounting failed", "key", key, "error", err)
	}
}

// Set stores an entry, evicting the oldest one when the cache is full and
// the key is new.
func (c *Redis) Set(ctx context.Context, query, contextKey, response string, tokensSaved int) error {
	key := Key(query, contextKey)
	now := c.now()

	if _, err := c.prune(ctx, now); err != nil {
		return err
	}

	exists, err := c.client.Exists(ctx, c.entryKey(key)).Result()
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	if exists == 0 {
		size, err := c.client.ZCard(ctx, c.indexKey()).Result()
		if err != nil {
			return fmt.Errorf("cache set: %w", err)
		}
		if size >= int64(c.cfg.Capacity) {
			if err := c.evictOldest(ctx, int(size)-c.cfg.Capacity+1); err != nil {
				return err
			}
		}
	}

	_, err = c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, c.entryKey(key))
		pipe.HSet(ctx, c.entryKey(key),
			"response", response,
			"tokens_saved", tokensSaved,
			"created_at", now.UnixNano(),
			"hit_count", 0,
		)
		pipe.Expire(ctx, c.entryKey(key), c.cfg.TTL)
		pipe.ZAdd(ctx, c.indexKey(), redis.Z{Score: float64(now.UnixNano()), Member: key})
		return nil
	})
	if err != nil {
		return fmt.Errorf("cache set: %w", err)
	}
	return nil
}

// Stats returns cumulative accounting.
func (c *Redis) Stats(ctx context.Context) (Stats, error) {
	if _, err := c.prune(ctx, c.now()); err != nil {
		return Stats{}, err
	}

	pipe := c.client.Pipeline()
	hits := pipe.Get(ctx, c.statKey("hits"))
	misses := pipe.Get(ctx, c.statKey("misses"))
	saved := pipe.Get(ctx, c.statKey("saved"))
	size := pipe.ZCard(ctx, c.indexKey())
	if _, err := pipe.Exec(ctx); err != nil && !errors.Is(err, redis.Nil) {
		return Stats{}, fmt.Errorf("cache stats: %w", err)
	}

	return Stats{
		Hits:        counter(hits),
		Misses:      counter(misses),
		TokensSaved: counter(saved),
		Size:        int(size.Val()),
	}, nil
}

// PruneExpired drops index members whose entries have expired and returns
// how many were dropped. The entry hashes expire through their Redis TTL.
func (c *Redis) PruneExpired(ctx context.Context) (int, error) {
	return c.prune(ctx, c.now())
}

func (c *Redis) prune(ctx context.Context, now time.Time) (int, error) {
	cutoff := now.Add(-c.cfg.TTL).UnixNano()
	n, err := c.client.ZRemRangeByScore(ctx, c.indexKey(), "-inf", "("+strconv.FormatInt(cutoff, 10)).Result()
	if err != nil {
		return 0, fmt.Errorf("cache prune: %w", err)
	}
	return int(n), nil
}

func (c *Redis) evictOldest(ctx context.Context, n int) error {
	victims, err := c.client.ZPopMin(ctx, c.indexKey(), int64(n)).Result()
	if err != nil {
		return fmt.Errorf("cache evict: %w", err)
	}
	keys := make([]string, 0, len(victims))
	for _, v := range victims {
		if member, ok := v.Member.(string); ok {
			keys = append(keys, c.entryKey(member))
		}
	}
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("cache evict: %w", err)
	}
	c.logger.Debug("cache evicted oldest entries", "count", len(keys))
	return nil
}

func parseEntry(key string, fields map[string]string) (Entry, error) {
	saved, err := strconv.Atoi(fields["tokens_saved"])
	if err != nil {
		return Entry{}, fmt.Errorf("tokens_saved: %w", err)
	}
	created, err := strconv.ParseInt(fields["created_at"], 10, 64)
	if err != nil {
		return Entry{}, fmt.Errorf("created_at: %w", err)
	}
	hits, _ := strconv.Atoi(fields["hit_count"])
	return Entry{
		Key:         key,
		Response:    fields["response"],
		TokensSaved: saved,
		CreatedAt:   time.Unix(0, created),
		HitCount:    hits,
	}, nil
}

func counter(cmd *redis.StringCmd) int64 {
	n, err := cmd.Int64()
	if err != nil {
		return 0
	}
	return n
}
