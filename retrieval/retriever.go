// Package retrieval selects historically relevant messages from a store
// using keyword relevance, for retrieval-augmented context building.
package retrieval

import (
	"context"
	"sort"
	"strings"

	"github.com/youssefsiam38/agentctx/storage"
	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
)

// Logger mirrors the logging interface used across agentctx.
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

// Default query limits.
const (
	DefaultMaxMessages       = 20
	DefaultMinRelevanceScore = 0.3
)

// Query describes one retrieval request.
type Query struct {
	ConversationID    string
	Query             string
	MaxMessages       int
	MinRelevanceScore float64
	MaxTokens         int

	// Exclude lists messages already in context; they are never returned.
	Exclude []types.Message
}

// Result carries the selected messages in chronological order, their
// scores (parallel to RelevantMessages) and their estimated token cost.
type Result struct {
	RelevantMessages []types.Message
	RelevanceScores  []float64
	EstimatedTokens  int
}

// Retriever ranks stored messages against a query.
type Retriever struct {
	store  storage.MessageStore
	logger Logger
}

// New creates a Retriever over store.
func New(store storage.MessageStore, logger Logger) *Retriever {
	if logger == nil {
		logger = noopLogger{}
	}
	return &Retriever{store: store, logger: logger}
}

type candidate struct {
	index  int
	msg    types.Message
	score  float64
	tokens int
}

// RetrieveRelevantContext returns the stored messages most relevant to
// q.Query. A store failure is logged and yields an empty result.
func (r *Retriever) RetrieveRelevantContext(ctx context.Context, q Query) Result {
	if q.ConversationID == "" || r.store == nil {
		return Result{}
	}
	if q.MaxMessages <= 0 {
		q.MaxMessages = DefaultMaxMessages
	}

	history, err := r.store.ListMessages(ctx, q.ConversationID)
	if err != nil {
		r.logger.Warn("retrieval store unavailable, continuing without retrieved context",
			"conversation_id", q.ConversationID,
			"error", err)
		return Result{}
	}

	excluded := make(map[[32]byte]struct{}, len(q.Exclude))
	for _, m := range q.Exclude {
		if key, ok := m.ContentKey(); ok {
			excluded[key] = struct{}{}
		}
	}

	keywords := Keywords(q.Query)
	phrase := strings.ToLower(strings.TrimSpace(q.Query))

	var candidates []candidate
	for i, m := range history {
		if key, ok := m.ContentKey(); ok {
			if _, skip := excluded[key]; skip {
				continue
			}
		}
		score := Score(m.Text(), keywords, phrase)
		if score < q.MinRelevanceScore || score == 0 {
			continue
		}
		candidates = append(candidates, candidate{index: i, msg: m, score: score, tokens: tokens.Message(m)})
	}

	sort.SliceStable(candidates, func(a, b int) bool {
		return candidates[a].score > candidates[b].score
	})

	var picked []candidate
	used := 0
	for _, c := range candidates {
		if len(picked) >= q.MaxMessages {
			break
		}
		if q.MaxTokens > 0 && used+c.tokens > q.MaxTokens {
			continue
		}
		picked = append(picked, c)
		used += c.tokens
	}

	sort.Slice(picked, func(a, b int) bool { return picked[a].index < picked[b].index })

	res := Result{EstimatedTokens: used}
	for _, c := range picked {
		res.RelevantMessages = append(res.RelevantMessages, c.msg)
		res.RelevanceScores = append(res.RelevanceScores, c.score)
	}
	r.logger.Debug("retrieved relevant context",
		"conversation_id", q.ConversationID,
		"candidates", len(candidates),
		"selected", len(picked),
		"tokens", used)
	return res
}
