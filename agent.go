package agentctx

import (
	"context"
	"fmt"
	"strings"

	"github.com/youssefsiam38/agentctx/budget"
	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/retrieval"
	"github.com/youssefsiam38/agentctx/strategy"
	"github.com/youssefsiam38/agentctx/streaming"
	"github.com/youssefsiam38/agentctx/tool"
	"github.com/youssefsiam38/agentctx/types"
	"github.com/youssefsiam38/agentctx/window"
)

// Agent runs the turn loop over a reasoning engine. An Agent holds no
// per-request state and is safe for concurrent use; every Run owns its
// conversation context.
type Agent struct {
	config       *internalConfig
	orchestrator *strategy.Orchestrator
	enforcer     *budget.Enforcer
	toolRegistry *tool.Registry
	toolExecutor *tool.Executor
}

// Request is one user request.
type Request struct {
	// ConversationID names the stored conversation. It enables history
	// loading, persistence and retrieval when a store is configured.
	ConversationID string

	// UserID enables the cost guard and usage accounting.
	UserID string

	// Messages is the prior history. When empty and a store is configured,
	// the history is loaded from the store.
	Messages []types.Message

	// Prompt is appended as a new user message when not empty.
	Prompt string
}

// Result aggregates a finished run.
type Result = streaming.Result

// New creates a new Agent with the given configuration and options
func New(cfg Config, opts ...Option) (*Agent, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	internal := newInternalConfig(cfg)
	for _, opt := range opts {
		if err := opt(internal); err != nil {
			return nil, fmt.Errorf("failed to apply option: %w", err)
		}
	}
	if err := internal.validate(); err != nil {
		return nil, err
	}

	registry := internal.registry
	if registry == nil {
		registry = tool.NewRegistry()
	}
	if err := registry.RegisterAll(internal.tools...); err != nil {
		return nil, fmt.Errorf("failed to register tools: %w", err)
	}
	executor := tool.NewExecutor(registry,
		tool.WithPolicy(internal.toolPolicy),
		tool.WithTimeout(internal.toolTimeout),
		tool.WithLogger(internal.logger),
	)

	wm, err := window.NewManager(internal.window)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	var compressor *compaction.Compressor
	if internal.enableCompression {
		compressor, err = compaction.New(internal.compaction, internal.summarizer, internal.logger)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
	}

	var retriever *retrieval.Retriever
	if internal.enableRetrieval && internal.store != nil {
		retriever = retrieval.New(internal.store, internal.logger)
	}

	orchestrator, err := strategy.New(wm, compressor, retriever, internal.logger)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	enforcer, err := budget.NewEnforcer(budget.Config{LimitTokens: internal.budgetLimit})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}

	return &Agent{
		config:       internal,
		orchestrator: orchestrator,
		enforcer:     enforcer,
		toolRegistry: registry,
		toolExecutor: executor,
	}, nil
}

// Tools returns the agent's tool registry.
func (a *Agent) Tools() *tool.Registry {
	return a.toolRegistry
}

// Run starts the turn loop and returns its event stream. The stream always
// ends with exactly one DoneEvent or ErrorEvent and is then closed.
//
// Run returns an error only for an invalid request. Cancelling ctx stops
// the loop at the next safe point; in-flight model and tool calls finish
// under their own timeouts.
func (a *Agent) Run(ctx context.Context, req Request) (<-chan streaming.Event, error) {
	if strings.TrimSpace(req.Prompt) == "" && len(req.Messages) == 0 && (req.ConversationID == "" || a.config.store == nil) {
		return nil, NewConversationError("Run", req.ConversationID, ErrEmptyRequest)
	}

	s := streaming.NewStream(a.config.streamBuffer)
	r := newRun(a, req, s)
	go r.loop(ctx)
	return s.Events(), nil
}

// RunSync runs the loop and drains its stream. The error is the run's
// ErrorEvent when it failed.
func (a *Agent) RunSync(ctx context.Context, req Request) (*Result, error) {
	events, err := a.Run(ctx, req)
	if err != nil {
		return nil, err
	}
	return streaming.Collect(events)
}
