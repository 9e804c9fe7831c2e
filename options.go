package agentctx

import (
	"time"

	"github.com/youssefsiam38/agentctx/budget"
	"github.com/youssefsiam38/agentctx/cache"
	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/hooks"
	"github.com/youssefsiam38/agentctx/storage"
	"github.com/youssefsiam38/agentctx/strategy"
	"github.com/youssefsiam38/agentctx/tool"
	"github.com/youssefsiam38/agentctx/window"
)

// Option is a functional option for configuring an Agent
type Option func(*internalConfig) error

// WithMaxOutputTokens sets the maximum number of tokens to generate per call
func WithMaxOutputTokens(n int) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return NewAgentError("WithMaxOutputTokens", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must be positive")
		}
		c.maxOutputTokens = n
		return nil
	}
}

// WithThinkingBudget enables extended thinking with the given token budget
func WithThinkingBudget(n int) Option {
	return func(c *internalConfig) error {
		if n < 0 {
			return NewAgentError("WithThinkingBudget", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must not be negative")
		}
		c.thinkingBudget = n
		return nil
	}
}

// WithTools registers tools with the agent
func WithTools(tools ...tool.Tool) Option {
	return func(c *internalConfig) error {
		for _, t := range tools {
			if t == nil {
				return NewAgentError("WithTools", tool.ErrInvalidTool).
					WithContext("reason", "tool cannot be nil")
			}
			if schema := t.InputSchema(); schema.Type != "object" {
				return NewAgentError("WithTools", tool.ErrInvalidTool).
					WithContext("tool", t.Name()).
					WithContext("reason", "schema type must be 'object'")
			}
			c.tools = append(c.tools, t)
		}
		return nil
	}
}

// WithToolRegistry uses an existing registry. Tools passed to WithTools are
// added to it.
func WithToolRegistry(r *tool.Registry) Option {
	return func(c *internalConfig) error {
		if r == nil {
			return NewAgentError("WithToolRegistry", ErrInvalidConfig).
				WithContext("reason", "registry cannot be nil")
		}
		c.registry = r
		return nil
	}
}

// WithToolPolicy selects sequential (default) or parallel tool execution
func WithToolPolicy(p tool.Policy) Option {
	return func(c *internalConfig) error {
		c.toolPolicy = p
		return nil
	}
}

// WithToolTimeout sets the timeout for individual tool executions (default 30s)
func WithToolTimeout(timeout time.Duration) Option {
	return func(c *internalConfig) error {
		if timeout <= 0 {
			return NewAgentError("WithToolTimeout", ErrInvalidConfig).
				WithContext("timeout", timeout).
				WithContext("reason", "timeout must be positive")
		}
		c.toolTimeout = timeout
		return nil
	}
}

// WithModelTimeout sets the timeout for one model call (default 60s)
func WithModelTimeout(timeout time.Duration) Option {
	return func(c *internalConfig) error {
		if timeout <= 0 {
			return NewAgentError("WithModelTimeout", ErrInvalidConfig).
				WithContext("timeout", timeout).
				WithContext("reason", "timeout must be positive")
		}
		c.modelTimeout = timeout
		return nil
	}
}

// WithMaxIterations sets the maximum model calls per Run (default 10)
func WithMaxIterations(n int) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return NewAgentError("WithMaxIterations", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must be positive")
		}
		c.maxIterations = n
		return nil
	}
}

// WithStreamBuffer sets the capacity of the event channel (default 64)
func WithStreamBuffer(n int) Option {
	return func(c *internalConfig) error {
		if n <= 0 {
			return NewAgentError("WithStreamBuffer", ErrInvalidConfig).
				WithContext("n", n).
				WithContext("reason", "must be positive")
		}
		c.streamBuffer = n
		return nil
	}
}

// WithWindow sets the context window thresholds. The configuration is
// validated when the agent is created.
func WithWindow(cfg window.Config) Option {
	return func(c *internalConfig) error {
		cfg.ApplyDefaults()
		c.window = cfg
		return nil
	}
}

// WithStrategy sets the context strategy (default hybrid)
func WithStrategy(kind strategy.Kind) Option {
	return func(c *internalConfig) error {
		if !kind.IsValid() {
			return NewAgentError("WithStrategy", ErrInvalidConfig).
				WithContext("strategy", int(kind))
		}
		c.strategy = kind
		return nil
	}
}

// WithCompression enables or disables compression stages (default enabled)
func WithCompression(enabled bool) Option {
	return func(c *internalConfig) error {
		c.enableCompression = enabled
		return nil
	}
}

// WithRetrieval enables or disables retrieval stages (default enabled).
// Retrieval also needs a store.
func WithRetrieval(enabled bool) Option {
	return func(c *internalConfig) error {
		c.enableRetrieval = enabled
		return nil
	}
}

// WithCompaction sets the compressor configuration
func WithCompaction(cfg *compaction.Config) Option {
	return func(c *internalConfig) error {
		if cfg == nil {
			return NewAgentError("WithCompaction", ErrInvalidConfig).
				WithContext("reason", "config cannot be nil")
		}
		c.compaction = cfg
		return nil
	}
}

// WithSummarizer sets the summarizer used by AI summarization
func WithSummarizer(s compaction.Summarizer) Option {
	return func(c *internalConfig) error {
		c.summarizer = s
		return nil
	}
}

// WithBudgetLimit sets the hard token ceiling of a model call, including
// the system prompt and tool schemas. It defaults to the window's MaxTokens.
func WithBudgetLimit(tokens int) Option {
	return func(c *internalConfig) error {
		if tokens <= 0 {
			return NewAgentError("WithBudgetLimit", ErrInvalidConfig).
				WithContext("tokens", tokens).
				WithContext("reason", "must be positive")
		}
		c.budgetLimit = tokens
		return nil
	}
}

// WithStore persists conversations and enables retrieval
func WithStore(s storage.MessageStore) Option {
	return func(c *internalConfig) error {
		c.store = s
		return nil
	}
}

// WithCache enables the response cache
func WithCache(ch cache.Cache) Option {
	return func(c *internalConfig) error {
		c.cache = ch
		return nil
	}
}

// WithCostGuard enforces monthly cost ceilings per user and records usage
func WithCostGuard(g *budget.CostGuard) Option {
	return func(c *internalConfig) error {
		c.costGuard = g
		return nil
	}
}

// WithCostPerMillionTokens overrides the model's price used for cost
// accounting, in dollars per million tokens
func WithCostPerMillionTokens(dollars float64) Option {
	return func(c *internalConfig) error {
		if dollars < 0 {
			return NewAgentError("WithCostPerMillionTokens", ErrInvalidConfig).
				WithContext("dollars", dollars).
				WithContext("reason", "must not be negative")
		}
		c.costPerMillion = dollars
		return nil
	}
}

// WithHooks sets the hook registry
func WithHooks(r *hooks.Registry) Option {
	return func(c *internalConfig) error {
		if r == nil {
			return NewAgentError("WithHooks", ErrInvalidConfig).
				WithContext("reason", "registry cannot be nil")
		}
		c.hooks = r
		return nil
	}
}

// WithLogger sets the logger passed to every component
func WithLogger(l Logger) Option {
	return func(c *internalConfig) error {
		if l == nil {
			return NewAgentError("WithLogger", ErrInvalidConfig).
				WithContext("reason", "logger cannot be nil")
		}
		c.logger = l
		return nil
	}
}
