package storage

import (
	"context"
	"sync"
	"time"

	"github.com/youssefsiam38/agentctx/types"
)

// MemoryStore is an in-process Store. It is safe for concurrent use and is
// meant for tests and single-process deployments.
type MemoryStore struct {
	mu            sync.RWMutex
	conversations map[string][]types.Message
	budgets       map[string]float64
	spend         map[string]map[string]float64 // user -> month -> cents
	tokens        map[string]map[string]int
	now           func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		conversations: make(map[string][]types.Message),
		budgets:       make(map[string]float64),
		spend:         make(map[string]map[string]float64),
		tokens:        make(map[string]map[string]int),
		now:           time.Now,
	}
}

// SetClock overrides the clock used to bucket usage by month.
func (s *MemoryStore) SetClock(now func() time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.now = now
}

// ListMessages implements MessageStore.
func (s *MemoryStore) ListMessages(ctx context.Context, conversationID string) ([]types.Message, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	src := s.conversations[conversationID]
	out := make([]types.Message, len(src))
	for i, m := range src {
		out[i] = m.Clone()
	}
	return out, nil
}

// AppendMessages implements MessageStore.
func (s *MemoryStore) AppendMessages(ctx context.Context, conversationID string, msgs []types.Message) error {
	if conversationID == "" {
		return ErrConversationRequired
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, m := range msgs {
		s.conversations[conversationID] = append(s.conversations[conversationID], m.Clone().WithID())
	}
	return nil
}

// RecordUsage implements UsageLedger.
func (s *MemoryStore) RecordUsage(ctx context.Context, userID string, tokens int, costCents float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	month := MonthKey(s.now())
	if s.spend[userID] == nil {
		s.spend[userID] = make(map[string]float64)
		s.tokens[userID] = make(map[string]int)
	}
	s.spend[userID][month] += costCents
	s.tokens[userID][month] += tokens
	return nil
}

// GetUserBudget implements UsageLedger.
func (s *MemoryStore) GetUserBudget(ctx context.Context, userID string) (float64, bool, error) {
	if err := ctx.Err(); err != nil {
		return 0, false, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	limit, ok := s.budgets[userID]
	return limit, ok, nil
}

// SetUserBudget implements UsageLedger.
func (s *MemoryStore) SetUserBudget(ctx context.Context, userID string, limitCents float64) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.budgets[userID] = limitCents
	return nil
}

// GetMonthlySpend implements UsageLedger.
func (s *MemoryStore) GetMonthlySpend(ctx context.Context, userID string, t time.Time) (float64, error) {
	if err := ctx.Err(); err != nil {
		return 0, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.spend[userID][MonthKey(t)], nil
}

// MonthlyTokens returns the tokens recorded for the month containing t.
func (s *MemoryStore) MonthlyTokens(userID string, t time.Time) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tokens[userID][MonthKey(t)]
}
