// Package testutil provides test utilities for agentctx
package testutil

import (
	"context"
	"fmt"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/youssefsiam38/agentctx/types"
)

// TestDB wraps a PostgreSQL connection pool for testing
type TestDB struct {
	Pool *pgxpool.Pool
}

// NewTestDB creates a test database connection from the DATABASE_URL env var.
// The test is skipped when DATABASE_URL is not set.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()

	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		t.Skip("DATABASE_URL not set, skipping integration test")
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		t.Fatalf("Failed to connect to database: %v", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		t.Fatalf("Failed to ping database: %v", err)
	}

	t.Cleanup(pool.Close)
	return &TestDB{Pool: pool}
}

// CleanTables truncates the given tables for test isolation
func (db *TestDB) CleanTables(ctx context.Context, tables ...string) error {
	for _, table := range tables {
		if _, err := db.Pool.Exec(ctx, fmt.Sprintf("TRUNCATE TABLE %s CASCADE", table)); err != nil {
			return fmt.Errorf("failed to truncate %s: %w", table, err)
		}
	}
	return nil
}

// NewTestRedis connects to REDIS_URL and flushes nothing; callers should use
// a unique key prefix. The test is skipped when REDIS_URL is not set.
func NewTestRedis(t *testing.T) *redis.Client {
	t.Helper()

	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set, skipping integration test")
		return nil
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		t.Fatalf("Failed to parse REDIS_URL: %v", err)
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		t.Fatalf("Failed to ping redis: %v", err)
	}
	t.Cleanup(func() { client.Close() })
	return client
}

// UniquePrefix returns a key prefix that isolates one test run.
func UniquePrefix(t *testing.T) string {
	t.Helper()
	return "test:" + uuid.NewString()[:8] + ":"
}

// Conversation builds n alternating user/assistant messages, each costing
// exactly tokensEach estimated tokens, one second apart.
func Conversation(n, tokensEach int) []types.Message {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	msgs := make([]types.Message, n)
	for i := range msgs {
		role := types.RoleUser
		if i%2 == 1 {
			role = types.RoleAssistant
		}
		msgs[i] = types.Message{
			ID:        uuid.New(),
			Role:      role,
			Content:   fmt.Sprintf("message %d: a routine exchange about the weather forecast for the coming week", i),
			Timestamp: base.Add(time.Duration(i) * time.Second),
		}.WithTokenEstimate(tokensEach)
	}
	return msgs
}

// Msg builds a message with a fixed timestamp offset for ordering tests.
func Msg(role types.Role, content string, offset int) types.Message {
	return types.Message{
		ID:        uuid.New(),
		Role:      role,
		Content:   content,
		Timestamp: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(offset) * time.Second),
	}
}

// Long returns text of exactly n characters.
func Long(n int) string {
	return strings.Repeat("lorem ipsum ", n/12+1)[:n]
}

// SameIDs reports whether got and want carry the same message IDs in order.
func SameIDs(got, want []types.Message) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i].ID != want[i].ID {
			return false
		}
	}
	return true
}

// Contains reports whether msgs holds a message with id.
func Contains(msgs []types.Message, id uuid.UUID) bool {
	for _, m := range msgs {
		if m.ID == id {
			return true
		}
	}
	return false
}

// Chronological reports whether msgs are ordered by non-decreasing timestamp.
func Chronological(msgs []types.Message) bool {
	for i := 1; i < len(msgs); i++ {
		if msgs[i].Timestamp.Before(msgs[i-1].Timestamp) {
			return false
		}
	}
	return true
}
