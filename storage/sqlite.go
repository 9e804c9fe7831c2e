package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"github.com/youssefsiam38/agentctx/types"
)

// SQLiteStore is a file-backed Store for single-node deployments. All
// public methods are safe for concurrent use (SQLite serializes writes).
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (or creates) a store at path. The schema is created
// automatically on first use.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open sqlite database: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate sqlite schema: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
	CREATE TABLE IF NOT EXISTS messages (
		seq             INTEGER PRIMARY KEY AUTOINCREMENT,
		id              TEXT NOT NULL UNIQUE,
		conversation_id TEXT NOT NULL,
		role            TEXT NOT NULL,
		content         TEXT NOT NULL DEFAULT '',
		blocks          TEXT NOT NULL DEFAULT 'null',
		tools_used      TEXT NOT NULL DEFAULT 'null',
		importance      REAL,
		token_estimate  INTEGER,
		compressed      INTEGER NOT NULL DEFAULT 0,
		summary_of      TEXT NOT NULL DEFAULT '',
		created_at      TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_messages_conversation ON messages(conversation_id, seq);

	CREATE TABLE IF NOT EXISTS usage_records (
		id          TEXT PRIMARY KEY,
		user_id     TEXT NOT NULL,
		month       TEXT NOT NULL,
		tokens      INTEGER NOT NULL,
		cost_cents  REAL NOT NULL,
		recorded_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_usage_user_month ON usage_records(user_id, month);

	CREATE TABLE IF NOT EXISTS user_budgets (
		user_id             TEXT PRIMARY KEY,
		monthly_limit_cents REAL NOT NULL
	);
	`)
	return err
}

// ListMessages implements MessageStore.
func (s *SQLiteStore) ListMessages(ctx context.Context, conversationID string) ([]types.Message, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, role, content, blocks, tools_used, importance, token_estimate,
		       compressed, summary_of, created_at
		FROM messages
		WHERE conversation_id = ?
		ORDER BY seq ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query messages: %w", err)
	}
	defer rows.Close()

	var out []types.Message
	for rows.Next() {
		var (
			r          messageRow
			id         string
			blocks     string
			toolsUsed  string
			importance sql.NullFloat64
			estimate   sql.NullInt64
			createdAt  string
		)
		if err := rows.Scan(&id, &r.Role, &r.Content, &blocks, &toolsUsed,
			&importance, &estimate, &r.Compressed, &r.SummaryOf, &createdAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		if r.ID, err = uuid.Parse(id); err != nil {
			return nil, fmt.Errorf("parse message id %q: %w", id, err)
		}
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAt); err != nil {
			return nil, fmt.Errorf("parse created_at %q: %w", createdAt, err)
		}
		r.Blocks = []byte(blocks)
		r.ToolsUsed = []byte(toolsUsed)
		if importance.Valid {
			r.Importance = &importance.Float64
		}
		if estimate.Valid {
			n := int(estimate.Int64)
			r.TokenEstimate = &n
		}
		m, err := r.toMessage()
		if err != nil {
			return nil, err
		}
		out = append(out, m)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate messages: %w", err)
	}
	return out, nil
}

// AppendMessages implements MessageStore. All messages are written in one
// transaction.
func (s *SQLiteStore) AppendMessages(ctx context.Context, conversationID string, msgs []types.Message) error {
	if conversationID == "" {
		return ErrConversationRequired
	}
	if len(msgs) == 0 {
		return nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin append: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt, err := tx.PrepareContext(ctx, `
		INSERT OR IGNORE INTO messages
			(id, conversation_id, role, content, blocks, tools_used,
			 importance, token_estimate, compressed, summary_of, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare append: %w", err)
	}
	defer stmt.Close()

	for _, m := range msgs {
		r, err := toRow(m)
		if err != nil {
			return err
		}
		if _, err := stmt.ExecContext(ctx,
			r.ID.String(), conversationID, r.Role, r.Content, string(r.Blocks), string(r.ToolsUsed),
			r.Importance, r.TokenEstimate, r.Compressed, r.SummaryOf,
			r.CreatedAt.UTC().Format(time.RFC3339Nano),
		); err != nil {
			return fmt.Errorf("insert message: %w", err)
		}
	}
	return tx.Commit()
}

// RecordUsage implements UsageLedger.
func (s *SQLiteStore) RecordUsage(ctx context.Context, userID string, tokens int, costCents float64) error {
	id, err := uuid.NewV7()
	if err != nil {
		return fmt.Errorf("generate usage record ID: %w", err)
	}
	now := time.Now()
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO usage_records (id, user_id, month, tokens, cost_cents, recorded_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		id.String(), userID, MonthKey(now), tokens, costCents, now.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("insert usage record: %w", err)
	}
	return nil
}

// GetUserBudget implements UsageLedger.
func (s *SQLiteStore) GetUserBudget(ctx context.Context, userID string) (float64, bool, error) {
	var limit float64
	err := s.db.QueryRowContext(ctx,
		`SELECT monthly_limit_cents FROM user_budgets WHERE user_id = ?`, userID).Scan(&limit)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, fmt.Errorf("query user budget: %w", err)
	}
	return limit, true, nil
}

// SetUserBudget implements UsageLedger.
func (s *SQLiteStore) SetUserBudget(ctx context.Context, userID string, limitCents float64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_budgets (user_id, monthly_limit_cents) VALUES (?, ?)
		ON CONFLICT(user_id) DO UPDATE SET monthly_limit_cents = excluded.monthly_limit_cents`,
		userID, limitCents)
	if err != nil {
		return fmt.Errorf("upsert user budget: %w", err)
	}
	return nil
}

// GetMonthlySpend implements UsageLedger.
func (s *SQLiteStore) GetMonthlySpend(ctx context.Context, userID string, t time.Time) (float64, error) {
	var spent float64
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(SUM(cost_cents), 0) FROM usage_records WHERE user_id = ? AND month = ?`,
		userID, MonthKey(t)).Scan(&spent)
	if err != nil {
		return 0, fmt.Errorf("query monthly spend: %w", err)
	}
	return spent, nil
}
