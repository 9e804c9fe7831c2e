// Package budget enforces hard token ceilings on a conversation and
// monthly cost ceilings per user.
package budget

import (
	"errors"
	"fmt"

	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
)

// ErrInvalidConfig is returned for an unusable budget configuration.
var ErrInvalidConfig = errors.New("budget: invalid config")

// DefaultWarningThreshold is the fraction of the limit at which a
// conversation is reported as near its limit.
const DefaultWarningThreshold = 0.8

// Recommendations reported by State.Recommendation.
const (
	RecommendOK       = "ok"
	RecommendCompress = "near limit: consider compression"
	RecommendTruncate = "over budget: truncate"
)

// Config holds the per-conversation token ceiling.
type Config struct {
	LimitTokens      int     `yaml:"limit_tokens"`
	WarningThreshold float64 `yaml:"warning_threshold"`
}

// ApplyDefaults fills unset fields.
func (c *Config) ApplyDefaults() {
	if c.WarningThreshold == 0 {
		c.WarningThreshold = DefaultWarningThreshold
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	if c.LimitTokens <= 0 {
		return fmt.Errorf("%w: limit_tokens must be positive, got %d", ErrInvalidConfig, c.LimitTokens)
	}
	if c.WarningThreshold <= 0 || c.WarningThreshold > 1 {
		return fmt.Errorf("%w: warning_threshold must be in (0, 1], got %v", ErrInvalidConfig, c.WarningThreshold)
	}
	return nil
}

// State is a budget snapshot. It is always derived from the messages
// passed in, never stored.
type State struct {
	UsedTokens  int
	LimitTokens int
	Remaining   int
	PercentUsed float64

	warningThreshold float64
}

// IsOverBudget reports whether usage exceeds the limit.
func (s State) IsOverBudget() bool {
	return s.UsedTokens > s.LimitTokens
}

// IsNearLimit reports whether usage reached the warning threshold.
func (s State) IsNearLimit() bool {
	return s.PercentUsed >= s.warningThreshold*100
}

// Recommendation returns a short operator hint.
func (s State) Recommendation() string {
	switch {
	case s.IsOverBudget():
		return RecommendTruncate
	case s.IsNearLimit():
		return RecommendCompress
	default:
		return RecommendOK
	}
}

// Enforcer checks and clamps request size against a token limit.
type Enforcer struct {
	cfg Config
}

// NewEnforcer validates cfg and returns an Enforcer.
func NewEnforcer(cfg Config) (*Enforcer, error) {
	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Enforcer{cfg: cfg}, nil
}

// Limit returns the token ceiling.
func (e *Enforcer) Limit() int {
	return e.cfg.LimitTokens
}

// CanAdd reports whether a request built from the arguments fits the limit.
func (e *Enforcer) CanAdd(msgs []types.Message, tools []types.ToolDefinition, systemPrompt string) bool {
	return tokens.Request(systemPrompt, tools, msgs) <= e.cfg.LimitTokens
}

// Status reports the budget state of a request.
func (e *Enforcer) Status(msgs []types.Message, tools []types.ToolDefinition, systemPrompt string) State {
	used := tokens.Request(systemPrompt, tools, msgs)
	return State{
		UsedTokens:       used,
		LimitTokens:      e.cfg.LimitTokens,
		Remaining:        max(e.cfg.LimitTokens-used, 0),
		PercentUsed:      float64(used) / float64(e.cfg.LimitTokens) * 100,
		warningThreshold: e.cfg.WarningThreshold,
	}
}

// TruncateToFit returns the longest suffix of msgs within the limit. At
// least minMessages are kept even when they alone exceed it.
func (e *Enforcer) TruncateToFit(msgs []types.Message, minMessages int) []types.Message {
	return e.TruncateToFitWithOverhead(msgs, minMessages, 0)
}

// TruncateToFitWithOverhead is TruncateToFit with overhead tokens reserved
// for the system prompt and tool schemas.
func (e *Enforcer) TruncateToFitWithOverhead(msgs []types.Message, minMessages, overhead int) []types.Message {
	n := len(msgs)
	// suffix[k] is the cost of the newest k messages.
	suffix := make([]int, n+1)
	for k := 1; k <= n; k++ {
		suffix[k] = suffix[k-1] + tokens.Message(msgs[n-k])
	}

	limit := e.cfg.LimitTokens - overhead
	lo, hi := 0, n
	for lo < hi {
		mid := (lo + hi + 1) / 2
		if suffix[mid] <= limit {
			lo = mid
		} else {
			hi = mid - 1
		}
	}

	keep := max(lo, min(minMessages, n))
	out := make([]types.Message, keep)
	copy(out, msgs[n-keep:])
	return out
}
