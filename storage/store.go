// Package storage defines the persistent store contract used by retrieval
// and the cost ledger, with memory, PostgreSQL and SQLite implementations.
package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/agentctx/types"
)

// ErrConversationRequired is returned when an operation needs a conversation ID.
var ErrConversationRequired = errors.New("conversation id is required")

// MessageStore reads and appends conversation history.
type MessageStore interface {
	// ListMessages returns every message of a conversation in append order.
	ListMessages(ctx context.Context, conversationID string) ([]types.Message, error)

	// AppendMessages adds messages to the end of a conversation.
	AppendMessages(ctx context.Context, conversationID string, msgs []types.Message) error
}

// UsageLedger tracks per-user spend against monthly ceilings.
type UsageLedger interface {
	// RecordUsage adds one request's tokens and cost to the current month.
	RecordUsage(ctx context.Context, userID string, tokens int, costCents float64) error

	// GetUserBudget returns the monthly ceiling in cents. ok is false when
	// the user has no configured ceiling.
	GetUserBudget(ctx context.Context, userID string) (limitCents float64, ok bool, err error)

	// SetUserBudget configures a user's monthly ceiling.
	SetUserBudget(ctx context.Context, userID string, limitCents float64) error

	// GetMonthlySpend returns the cents spent in the month containing t.
	GetMonthlySpend(ctx context.Context, userID string, t time.Time) (float64, error)
}

// Store combines both halves of the persistence contract.
type Store interface {
	MessageStore
	UsageLedger
}

// MonthKey buckets t into a UTC calendar month.
func MonthKey(t time.Time) string {
	return t.UTC().Format("2006-01")
}

// messageRow is the column form shared by the SQL stores.
type messageRow struct {
	ID            uuid.UUID
	Role          string
	Content       string
	Blocks        []byte
	ToolsUsed     []byte
	Importance    *float64
	TokenEstimate *int
	Compressed    bool
	SummaryOf     string
	CreatedAt     time.Time
}

func toRow(m types.Message) (messageRow, error) {
	row := messageRow{
		ID:            m.ID,
		Role:          string(m.Role),
		Content:       m.Content,
		Importance:    m.Importance,
		TokenEstimate: m.TokenEstimate,
		Compressed:    m.Compressed,
		SummaryOf:     m.SummaryOf,
		CreatedAt:     m.Timestamp,
	}
	if row.ID == uuid.Nil {
		id, err := uuid.NewV7()
		if err != nil {
			return row, fmt.Errorf("generate message ID: %w", err)
		}
		row.ID = id
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now()
	}

	var err error
	if row.Blocks, err = json.Marshal(m.Blocks); err != nil {
		return row, fmt.Errorf("failed to marshal blocks: %w", err)
	}
	if row.ToolsUsed, err = json.Marshal(m.ToolsUsed); err != nil {
		return row, fmt.Errorf("failed to marshal tools_used: %w", err)
	}
	return row, nil
}

func (r messageRow) toMessage() (types.Message, error) {
	m := types.Message{
		ID:            r.ID,
		Role:          types.Role(r.Role),
		Content:       r.Content,
		Importance:    r.Importance,
		TokenEstimate: r.TokenEstimate,
		Compressed:    r.Compressed,
		SummaryOf:     r.SummaryOf,
		Timestamp:     r.CreatedAt,
	}
	if len(r.Blocks) > 0 {
		if err := json.Unmarshal(r.Blocks, &m.Blocks); err != nil {
			return m, fmt.Errorf("failed to unmarshal blocks: %w", err)
		}
	}
	if len(r.ToolsUsed) > 0 {
		if err := json.Unmarshal(r.ToolsUsed, &m.ToolsUsed); err != nil {
			return m, fmt.Errorf("failed to unmarshal tools_used: %w", err)
		}
	}
	return m, nil
}
