package config

import (
	"context"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"
	"github.com/sony/gobreaker"

	"github.com/youssefsiam38/agentctx/budget"
	"github.com/youssefsiam38/agentctx/cache"
	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/storage"
)

// Logger is satisfied by *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// OpenStore opens the configured store. The returned close function
// releases its connections and is never nil.
func (c *File) OpenStore(ctx context.Context) (storage.Store, func(), error) {
	switch c.Storage.Driver {
	case DriverSQLite:
		s, err := storage.NewSQLiteStore(c.Storage.Path)
		if err != nil {
			return nil, func() {}, err
		}
		return s, func() { _ = s.Close() }, nil

	case DriverPostgres:
		pool, err := pgxpool.New(ctx, c.Storage.DatabaseURL)
		if err != nil {
			return nil, func() {}, fmt.Errorf("connect to postgres: %w", err)
		}
		s := storage.NewPostgresStore(pool)
		if err := s.Migrate(ctx); err != nil {
			pool.Close()
			return nil, func() {}, fmt.Errorf("migrate postgres schema: %w", err)
		}
		return s, pool.Close, nil

	default:
		return storage.NewMemoryStore(), func() {}, nil
	}
}

// OpenCache opens the configured response cache. It returns a nil cache
// when caching is disabled.
func (c *File) OpenCache(logger Logger) (cache.Cache, func(), error) {
	switch c.Cache.Backend {
	case CacheMemory:
		return cache.NewMemory(cache.MemoryConfig{
			Capacity: c.Cache.Capacity,
			TTL:      c.Cache.TTL,
		}), func() {}, nil

	case CacheRedis:
		opts, err := redis.ParseURL(c.Cache.RedisURL)
		if err != nil {
			return nil, func() {}, fmt.Errorf("parse redis url: %w", err)
		}
		client := redis.NewClient(opts)
		rc := cache.NewRedis(client, cache.RedisConfig{
			Prefix:   c.Cache.Prefix,
			Capacity: c.Cache.Capacity,
			TTL:      c.Cache.TTL,
		}, logger)
		return rc, func() { _ = client.Close() }, nil

	default:
		return nil, func() {}, nil
	}
}

// OpenCostGuard returns a cost guard over ledger when budget.cost_guard is
// set, and nil otherwise.
func (c *File) OpenCostGuard(ledger storage.UsageLedger, logger Logger) *budget.CostGuard {
	if !c.Budget.CostGuard || ledger == nil {
		return nil
	}
	return budget.NewCostGuard(ledger, logger)
}

// Summarizer builds the Anthropic summarizer for AI compression, wrapped in
// a circuit breaker when compaction.breaker.max_failures is set.
func (c *File) Summarizer(client *anthropic.Client, logger Logger) compaction.Summarizer {
	if client == nil || c.Compaction.Disabled {
		return nil
	}
	var s compaction.Summarizer = compaction.NewAnthropicSummarizer(client, c.Anthropic.Model, 0)
	if c.Compaction.Breaker.MaxFailures == 0 {
		return s
	}
	return compaction.NewBreakerSummarizer(s, compaction.BreakerSettings{
		MaxFailures: c.Compaction.Breaker.MaxFailures,
		OpenTimeout: c.Compaction.Breaker.OpenTimeout,
		OnStateChange: func(name string, from, to gobreaker.State) {
			if logger == nil {
				return
			}
			logger.Warn("summarizer breaker state changed", "breaker", name, "from", from.String(), "to", to.String())
		},
	})
}
