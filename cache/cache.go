// Package cache stores prior query to response pairs so repeated prompts
// can be answered without a model call.
package cache

import (
	"context"
	"encoding/hex"
	"strings"
	"time"

	"github.com/zeebo/blake3"
)

// Defaults for cache sizing.
const (
	DefaultCapacity = 1000
	DefaultTTL      = time.Hour
)

// Entry is one cached response.
type Entry struct {
	Key         string
	Response    string
	TokensSaved int
	CreatedAt   time.Time
	HitCount    int
}

// Stats reports cumulative cache accounting.
type Stats struct {
	Hits   int64
	Misses int64

	// TokensSaved sums each entry's TokensSaved once per hit, including
	// entries that have since been evicted.
	TokensSaved int64
	Size        int
}

// HitRate returns hits over lookups, or zero before any lookup.
func (s Stats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Cache is a response cache safe for concurrent use.
type Cache interface {
	// Get returns the entry for query and contextKey and counts the hit.
	Get(ctx context.Context, query, contextKey string) (Entry, bool)

	// Set stores response for query and contextKey.
	Set(ctx context.Context, query, contextKey, response string, tokensSaved int) error

	// Stats returns cumulative accounting.
	Stats(ctx context.Context) (Stats, error)
}

// Pruner is implemented by caches that can drop expired entries in bulk.
type Pruner interface {
	PruneExpired(ctx context.Context) (int, error)
}

// Logger is the logging interface used across agentctx.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Key hashes the normalized query and optional context into a cache key.
func Key(query, contextKey string) string {
	h := blake3.New()
	h.Write([]byte(normalize(query)))
	if contextKey != "" {
		h.Write([]byte{0})
		h.Write([]byte(normalize(contextKey)))
	}
	return hex.EncodeToString(h.Sum(nil))
}

func normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
