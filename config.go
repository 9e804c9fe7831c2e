package agentctx

import (
	"fmt"
	"time"

	"github.com/youssefsiam38/agentctx/budget"
	"github.com/youssefsiam38/agentctx/cache"
	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/hooks"
	"github.com/youssefsiam38/agentctx/model"
	"github.com/youssefsiam38/agentctx/storage"
	"github.com/youssefsiam38/agentctx/strategy"
	"github.com/youssefsiam38/agentctx/streaming"
	"github.com/youssefsiam38/agentctx/tool"
	"github.com/youssefsiam38/agentctx/window"
)

// Defaults for the turn loop.
const (
	DefaultMaxIterations = 10
	DefaultModelTimeout  = 60 * time.Second
	DefaultToolTimeout   = tool.DefaultTimeout
	DefaultPreviewChars  = 200

	// persistTimeout bounds the best-effort writes at the end of a run.
	persistTimeout = 10 * time.Second

	// finalSendTimeout bounds delivery of the terminal event after the
	// caller's context is done.
	finalSendTimeout = time.Second
)

// ModelInfo contains model-specific parameters
type ModelInfo struct {
	MaxContextTokens     int
	DefaultMaxTokens     int
	CostPerMillionTokens float64
}

// KnownModels maps model IDs to their capabilities
var KnownModels = map[string]ModelInfo{
	"claude-opus-4-5":            {MaxContextTokens: 200000, DefaultMaxTokens: 16384, CostPerMillionTokens: 5},
	"claude-sonnet-4-5":          {MaxContextTokens: 200000, DefaultMaxTokens: 16384, CostPerMillionTokens: 3},
	"claude-sonnet-4-5-20250929": {MaxContextTokens: 200000, DefaultMaxTokens: 16384, CostPerMillionTokens: 3},
	"claude-haiku-4-5":           {MaxContextTokens: 200000, DefaultMaxTokens: 8192, CostPerMillionTokens: 1},
	"claude-3-5-haiku-20241022":  {MaxContextTokens: 200000, DefaultMaxTokens: 8192, CostPerMillionTokens: 0.8},
}

// GetModelInfo returns model info, using sensible defaults for unknown models
func GetModelInfo(model string) ModelInfo {
	if info, ok := KnownModels[model]; ok {
		return info
	}
	return ModelInfo{MaxContextTokens: 200000, DefaultMaxTokens: 8192, CostPerMillionTokens: 3}
}

// Config holds the required configuration for an agent.
//
// Example:
//
//	client, _ := model.NewAnthropicClient(&sdk, "claude-sonnet-4-5")
//	agent, _ := agentctx.New(agentctx.Config{
//	    Client:       client,
//	    Model:        "claude-sonnet-4-5",
//	    SystemPrompt: "You are a helpful assistant",
//	})
type Config struct {
	// Client streams turns from the reasoning engine (required)
	Client model.Client

	// Model is the model ID, used for defaults and cache scoping (required)
	Model string

	// SystemPrompt is the system prompt for the agent (required)
	SystemPrompt string
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Client == nil {
		return fmt.Errorf("%w: Client is required", ErrInvalidConfig)
	}
	if c.Model == "" {
		return fmt.Errorf("%w: Model is required", ErrInvalidConfig)
	}
	if c.SystemPrompt == "" {
		return fmt.Errorf("%w: SystemPrompt is required", ErrInvalidConfig)
	}
	return nil
}

// internalConfig holds the full agent configuration including optional parameters
type internalConfig struct {
	client       model.Client
	model        string
	systemPrompt string

	// Model call
	maxOutputTokens int
	thinkingBudget  int
	modelTimeout    time.Duration

	// Loop
	maxIterations int
	streamBuffer  int
	previewChars  int

	// Context engine
	window            window.Config
	strategy          strategy.Kind
	enableCompression bool
	enableRetrieval   bool
	compaction        *compaction.Config
	summarizer        compaction.Summarizer
	budgetLimit       int

	// Tools
	tools       []tool.Tool
	registry    *tool.Registry
	toolPolicy  tool.Policy
	toolTimeout time.Duration

	// Collaborators
	store          storage.MessageStore
	cache          cache.Cache
	costGuard      *budget.CostGuard
	costPerMillion float64
	hooks          *hooks.Registry
	logger         Logger
}

// newInternalConfig creates a new internal config from the public Config
func newInternalConfig(cfg Config) *internalConfig {
	info := GetModelInfo(cfg.Model)

	return &internalConfig{
		client:       cfg.Client,
		model:        cfg.Model,
		systemPrompt: cfg.SystemPrompt,

		maxOutputTokens: info.DefaultMaxTokens,
		modelTimeout:    DefaultModelTimeout,

		maxIterations: DefaultMaxIterations,
		streamBuffer:  streaming.DefaultBuffer,
		previewChars:  DefaultPreviewChars,

		window:            window.DefaultConfig(),
		strategy:          strategy.Hybrid,
		enableCompression: true,
		enableRetrieval:   true,

		toolPolicy:  tool.Sequential,
		toolTimeout: DefaultToolTimeout,

		costPerMillion: info.CostPerMillionTokens,
		hooks:          hooks.NewRegistry(),
		logger:         noopLogger{},
	}
}

// validate checks the combination of options once they are all applied.
func (c *internalConfig) validate() error {
	if err := c.window.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if c.maxIterations < 1 {
		return fmt.Errorf("%w: max iterations must be at least 1, got %d", ErrInvalidConfig, c.maxIterations)
	}
	if c.maxOutputTokens < 1 {
		return fmt.Errorf("%w: max output tokens must be positive, got %d", ErrInvalidConfig, c.maxOutputTokens)
	}
	if c.thinkingBudget > 0 && c.thinkingBudget >= c.maxOutputTokens {
		return fmt.Errorf("%w: thinking budget %d must be below max output tokens %d",
			ErrInvalidConfig, c.thinkingBudget, c.maxOutputTokens)
	}
	if c.budgetLimit == 0 {
		c.budgetLimit = c.window.MaxTokens
	}
	return nil
}

// Logger is the logging interface used across agentctx. *slog.Logger
// satisfies it.
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
