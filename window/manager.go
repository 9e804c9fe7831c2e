// Package window classifies a conversation against token thresholds and
// truncates it with sliding-window or priority-retention selection.
package window

import (
	"sort"

	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
)

// Result is the outcome of a truncation.
type Result struct {
	Messages        []types.Message
	TokenCount      int
	MessagesDropped int
}

// Analysis classifies a whole conversation.
type Analysis struct {
	TotalTokens      int
	Preserved        []types.Message
	Compressible     []types.Message
	Recommended      Strategy
	NeedsCompression bool
}

// Manager applies window algorithms for a validated Config.
type Manager struct {
	cfg Config
}

// NewManager validates cfg and returns a Manager.
func NewManager(cfg Config) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Manager{cfg: cfg}, nil
}

// Config returns the manager's configuration.
func (m *Manager) Config() Config {
	return m.cfg
}

// SlidingWindow keeps the longest run of newest messages whose total stays
// within TargetTokens.
func (m *Manager) SlidingWindow(msgs []types.Message) Result {
	return SlidingWindow(msgs, m.cfg.TargetTokens)
}

// SlidingWindow walks msgs newest to oldest and stops before the first
// message that would push the total past limit.
func SlidingWindow(msgs []types.Message, limit int) Result {
	used := 0
	start := len(msgs)
	for i := len(msgs) - 1; i >= 0; i-- {
		t := tokens.Message(msgs[i])
		if used+t > limit {
			break
		}
		used += t
		start = i
	}
	kept := make([]types.Message, len(msgs)-start)
	copy(kept, msgs[start:])
	return Result{Messages: kept, TokenCount: used, MessagesDropped: start}
}

type scored struct {
	index  int
	score  float64
	tokens int
}

// PriorityRetention always keeps the newest PreserveMessages, then fills the
// remaining TargetTokens budget with the highest-scoring older messages.
// The returned messages are in their original order.
func (m *Manager) PriorityRetention(msgs []types.Message) Result {
	total := len(msgs)
	split := splitIndex(total, m.cfg.PreserveMessages)

	keep := make([]bool, total)
	used := 0
	for i := split; i < total; i++ {
		keep[i] = true
		used += tokens.Message(msgs[i])
	}

	candidates := make([]scored, 0, split)
	for i := 0; i < split; i++ {
		candidates = append(candidates, scored{
			index:  i,
			score:  Score(msgs[i], i, total),
			tokens: tokens.Message(msgs[i]),
		})
	}
	sort.SliceStable(candidates, func(a, b int) bool {
		if candidates[a].score != candidates[b].score {
			return candidates[a].score > candidates[b].score
		}
		return candidates[a].index > candidates[b].index
	})

	budget := m.cfg.TargetTokens - used
	for _, c := range candidates {
		if c.tokens > budget {
			continue
		}
		keep[c.index] = true
		budget -= c.tokens
		used += c.tokens
	}

	out := make([]types.Message, 0, total)
	for i, ok := range keep {
		if ok {
			out = append(out, msgs[i])
		}
	}
	return Result{Messages: out, TokenCount: used, MessagesDropped: total - len(out)}
}

// AnalyzeContext splits msgs into preserved and compressible parts and
// recommends a strategy from the threshold ladder.
func (m *Manager) AnalyzeContext(msgs []types.Message) Analysis {
	total := tokens.Messages(msgs)
	split := splitIndex(len(msgs), m.cfg.PreserveMessages)

	a := Analysis{
		TotalTokens:      total,
		Compressible:     msgs[:split:split],
		Preserved:        msgs[split:],
		NeedsCompression: total > m.cfg.CompressionThreshold,
	}

	switch {
	case float64(total) >= HybridRatio*float64(m.cfg.MaxTokens):
		a.Recommended = StrategyHybrid
	case total > m.cfg.RetrievalThreshold:
		a.Recommended = StrategyRetrievalAugmented
	case total > m.cfg.CompressionThreshold:
		a.Recommended = StrategySummarization
	default:
		a.Recommended = StrategySlidingWindow
	}
	return a
}

// splitIndex returns the index of the first preserved message.
func splitIndex(n, preserve int) int {
	if preserve >= n {
		return 0
	}
	if preserve < 0 {
		return n
	}
	return n - preserve
}
