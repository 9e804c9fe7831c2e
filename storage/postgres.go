package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/youssefsiam38/agentctx/types"
)

// PostgresSchema creates the tables used by PostgresStore.
const PostgresSchema = `
CREATE TABLE IF NOT EXISTS agentctx_messages (
	seq             BIGSERIAL PRIMARY KEY,
	id              UUID NOT NULL UNIQUE,
	conversation_id TEXT NOT NULL,
	role            TEXT NOT NULL,
	content         TEXT NOT NULL DEFAULT '',
	blocks          JSONB NOT NULL DEFAULT 'null',
	tools_used      JSONB NOT NULL DEFAULT 'null',
	importance      DOUBLE PRECISION,
	token_estimate  INTEGER,
	compressed      BOOLEAN NOT NULL DEFAULT FALSE,
	summary_of      TEXT NOT NULL DEFAULT '',
	created_at      TIMESTAMPTZ NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_agentctx_messages_conversation ON agentctx_messages (conversation_id, seq);

CREATE TABLE IF NOT EXISTS agentctx_usage (
	id          UUID PRIMARY KEY,
	user_id     TEXT NOT NULL,
	month       TEXT NOT NULL,
	tokens      INTEGER NOT NULL,
	cost_cents  DOUBLE PRECISION NOT NULL,
	recorded_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
CREATE INDEX IF NOT EXISTS idx_agentctx_usage_user_month ON agentctx_usage (user_id, month);

CREATE TABLE IF NOT EXISTS agentctx_user_budgets (
	user_id             TEXT PRIMARY KEY,
	monthly_limit_cents DOUBLE PRECISION NOT NULL,
	updated_at          TIMESTAMPTZ NOT NULL DEFAULT NOW()
);
`

// txContextKey is the context key for storing pgx.Tx
type txContextKey struct{}

// WithTx returns a new context carrying tx. PostgresStore operations run
// inside it, so a caller can append messages and record usage atomically.
func WithTx(ctx context.Context, tx pgx.Tx) context.Context {
	return context.WithValue(ctx, txContextKey{}, tx)
}

// TxFromContext retrieves the transaction from context, or nil if not present
func TxFromContext(ctx context.Context) pgx.Tx {
	if tx, ok := ctx.Value(txContextKey{}).(pgx.Tx); ok {
		return tx
	}
	return nil
}

// querier is a common interface for pgxpool.Pool and pgx.Tx
type querier interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// PostgresStore implements Store using PostgreSQL with pgx
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore creates a new PostgreSQL store
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Migrate creates the schema if it does not exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, PostgresSchema); err != nil {
		return fmt.Errorf("failed to migrate schema: %w", err)
	}
	return nil
}

func (s *PostgresStore) getQuerier(ctx context.Context) querier {
	if tx := TxFromContext(ctx); tx != nil {
		return tx
	}
	return s.pool
}

// ListMessages implements MessageStore.
func (s *PostgresStore) ListMessages(ctx context.Context, conversationID string) ([]types.Message, error) {
	rows, err := s.getQuerier(ctx).Query(ctx, `
		SELECT id, role, content, blocks, tools_used, importance, token_estimate,
		       compressed, summary_of, created_at
		FROM agentctx_messages
		WHERE conversation_id = $1
		ORDER BY seq ASC
	`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []types.Message
	for rows.Next() {
		var r messageRow
		if err := rows.Scan(
			&r.ID, &r.Role, &r.Content, &r.Blocks, &r.ToolsUsed,
			&r.Importance, &r.TokenEstimate, &r.Compressed, &r.SummaryOf, &r.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message: %w", err)
		}
		m, err := r.toMessage()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating messages: %w", err)
	}
	return out, nil
}

// AppendMessages implements MessageStore. Messages are inserted in one batch.
func (s *PostgresStore) AppendMessages(ctx context.Context, conversationID string, msgs []types.Message) error {
	if conversationID == "" {
		return ErrConversationRequired
	}
	if len(msgs) == 0 {
		return nil
	}

	const query = `
		INSERT INTO agentctx_messages (id, conversation_id, role, content, blocks, tools_used,
		                               importance, token_estimate, compressed, summary_of, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		ON CONFLICT (id) DO NOTHING
	`

	batch := &pgx.Batch{}
	for _, m := range msgs {
		r, err := toRow(m)
		if err != nil {
			return err
		}
		batch.Queue(query,
			r.ID, conversationID, r.Role, r.Content, r.Blocks, r.ToolsUsed,
			r.Importance, r.TokenEstimate, r.Compressed, r.SummaryOf, r.CreatedAt,
		)
	}

	results := s.getQuerier(ctx).SendBatch(ctx, batch)
	defer results.Close()

	for range msgs {
		if _, err := results.Exec(); err != nil {
			return fmt.Errorf("failed to save message: %w", err)
		}
	}
	return nil
}

// RecordUsage implements UsageLedger.
func (s *PostgresStore) RecordUsage(ctx context.Context, userID string, tokens int, costCents float64) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate usage record ID: %w", err)
	}
	now := time.Now()
	_, err = s.getQuerier(ctx).Exec(ctx, `
		INSERT INTO agentctx_usage (id, user_id, month, tokens, cost_cents, recorded_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, id, userID, MonthKey(now), tokens, costCents, now)
	if err != nil {
		return fmt.Errorf("failed to record usage: %w", err)
	}
	return nil
}

// GetUserBudget implements UsageLedger.
func (s *PostgresStore) GetUserBudget(ctx context.Context, userID string) (float64, bool, error) {
	var limit float64
	err := s.getQuerier(ctx).QueryRow(ctx,
		`SELECT monthly_limit_cents FROM agentctx_user_budgets WHERE user_id = $1`, userID,
	).Scan(&limit)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("failed to get user budget: %w", err)
	}
	return limit, true, nil
}

// SetUserBudget implements UsageLedger.
func (s *PostgresStore) SetUserBudget(ctx context.Context, userID string, limitCents float64) error {
	_, err := s.getQuerier(ctx).Exec(ctx, `
		INSERT INTO agentctx_user_budgets (user_id, monthly_limit_cents, updated_at)
		VALUES ($1, $2, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			monthly_limit_cents = EXCLUDED.monthly_limit_cents,
			updated_at = NOW()
	`, userID, limitCents)
	if err != nil {
		return fmt.Errorf("failed to set user budget: %w", err)
	}
	return nil
}

// GetMonthlySpend implements UsageLedger.
func (s *PostgresStore) GetMonthlySpend(ctx context.Context, userID string, t time.Time) (float64, error) {
	var spent float64
	err := s.getQuerier(ctx).QueryRow(ctx, `
		SELECT COALESCE(SUM(cost_cents), 0)
		FROM agentctx_usage
		WHERE user_id = $1 AND month = $2
	`, userID, MonthKey(t)).Scan(&spent)
	if err != nil {
		return 0, fmt.Errorf("failed to get monthly spend: %w", err)
	}
	return spent, nil
}
