// Package strategy turns raw conversation history into a bounded, ordered
// message set for the next model call. It is the only place that decides
// which window, compression or retrieval algorithm runs.
package strategy

import (
	"github.com/youssefsiam38/agentctx/types"
	"github.com/youssefsiam38/agentctx/window"
)

// Kind is the closed set of context strategies.
type Kind = window.Strategy

const (
	SlidingWindow      = window.StrategySlidingWindow
	Summarization      = window.StrategySummarization
	RetrievalAugmented = window.StrategyRetrievalAugmented
	Hybrid             = window.StrategyHybrid
)

// ParseKind resolves a strategy name such as "hybrid".
func ParseKind(name string) (Kind, error) {
	return window.ParseStrategy(name)
}

// ConversationContext is the live history of one request.
type ConversationContext struct {
	// ConversationID enables retrieval when set.
	ConversationID string
	Messages       []types.Message
	Window         window.Config
}

// Options controls one Apply pass.
type Options struct {
	Kind              Kind
	EnableCompression bool
	EnableRetrieval   bool
	ConversationID    string
}

// Outcome is the prepared context.
type Outcome struct {
	Messages   []types.Message
	TokenCount int

	// Applied lists the stages that ran, in order.
	Applied []Kind

	// Dropped counts input messages absent from Messages.
	Dropped int
}
