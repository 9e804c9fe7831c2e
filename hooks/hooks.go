// Package hooks provides lifecycle callbacks around the agent turn loop,
// with ready-made logging and Prometheus implementations.
package hooks

import (
	"context"
	"sync"
	"time"

	"github.com/youssefsiam38/agentctx/model"
	"github.com/youssefsiam38/agentctx/types"
)

// ModelCall describes one reasoning-engine call.
type ModelCall struct {
	ConversationID string
	Iteration      int
	Messages       int
	ContextTokens  int
}

// StrategyApplied describes one run of the prepare step.
type StrategyApplied struct {
	ConversationID string
	Strategies     []string
	OriginalTokens int
	FinalTokens    int
	Dropped        int
}

// Termination describes how a run ended.
type Termination struct {
	ConversationID string
	Reason         string
	Iterations     int
	ToolCalls      int
	Usage          model.Usage
	Duration       time.Duration
	Err            error
}

// BeforeModelCallHook is called before the reasoning engine is called.
type BeforeModelCallHook func(ctx context.Context, call ModelCall) error

// AfterModelCallHook is called after the call returns. resp is nil when err
// is set.
type AfterModelCallHook func(ctx context.Context, call ModelCall, resp *model.Response, err error) error

// ToolCallHook is called after each tool execution.
type ToolCallHook func(ctx context.Context, req types.ToolInvocationRequest, result types.ToolExecutionResult) error

// StrategyAppliedHook is called after the context is prepared for a call.
type StrategyAppliedHook func(ctx context.Context, event StrategyApplied) error

// TerminatedHook is called once when a run ends.
type TerminatedHook func(ctx context.Context, event Termination) error

// Registry holds all registered hooks
type Registry struct {
	mu              sync.RWMutex
	beforeModelCall []BeforeModelCallHook
	afterModelCall  []AfterModelCallHook
	toolCall        []ToolCallHook
	strategyApplied []StrategyAppliedHook
	terminated      []TerminatedHook
}

// NewRegistry creates a new hook registry
func NewRegistry() *Registry {
	return &Registry{}
}

// OnBeforeModelCall registers a hook to be called before each model call
func (r *Registry) OnBeforeModelCall(hook BeforeModelCallHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.beforeModelCall = append(r.beforeModelCall, hook)
}

// OnAfterModelCall registers a hook to be called after each model call
func (r *Registry) OnAfterModelCall(hook AfterModelCallHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.afterModelCall = append(r.afterModelCall, hook)
}

// OnToolCall registers a hook to be called when a tool is executed
func (r *Registry) OnToolCall(hook ToolCallHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.toolCall = append(r.toolCall, hook)
}

// OnStrategyApplied registers a hook to be called after context preparation
func (r *Registry) OnStrategyApplied(hook StrategyAppliedHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.strategyApplied = append(r.strategyApplied, hook)
}

// OnTerminated registers a hook to be called when a run ends
func (r *Registry) OnTerminated(hook TerminatedHook) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.terminated = append(r.terminated, hook)
}

// snapshot copies a hook slice under the read lock so triggers run without
// holding it.
func snapshot[H any](r *Registry, field func() []H) []H {
	r.mu.RLock()
	defer r.mu.RUnlock()
	hooks := field()
	out := make([]H, len(hooks))
	copy(out, hooks)
	return out
}

// TriggerBeforeModelCall calls the before-model-call hooks in registration
// order, stopping at the first error.
func (r *Registry) TriggerBeforeModelCall(ctx context.Context, call ModelCall) error {
	for _, hook := range snapshot(r, func() []BeforeModelCallHook { return r.beforeModelCall }) {
		if err := hook(ctx, call); err != nil {
			return err
		}
	}
	return nil
}

// TriggerAfterModelCall calls the after-model-call hooks
func (r *Registry) TriggerAfterModelCall(ctx context.Context, call ModelCall, resp *model.Response, callErr error) error {
	for _, hook := range snapshot(r, func() []AfterModelCallHook { return r.afterModelCall }) {
		if err := hook(ctx, call, resp, callErr); err != nil {
			return err
		}
	}
	return nil
}

// TriggerToolCall calls the tool-call hooks
func (r *Registry) TriggerToolCall(ctx context.Context, req types.ToolInvocationRequest, result types.ToolExecutionResult) error {
	for _, hook := range snapshot(r, func() []ToolCallHook { return r.toolCall }) {
		if err := hook(ctx, req, result); err != nil {
			return err
		}
	}
	return nil
}

// TriggerStrategyApplied calls the strategy-applied hooks
func (r *Registry) TriggerStrategyApplied(ctx context.Context, event StrategyApplied) error {
	for _, hook := range snapshot(r, func() []StrategyAppliedHook { return r.strategyApplied }) {
		if err := hook(ctx, event); err != nil {
			return err
		}
	}
	return nil
}

// TriggerTerminated calls the terminated hooks
func (r *Registry) TriggerTerminated(ctx context.Context, event Termination) error {
	for _, hook := range snapshot(r, func() []TerminatedHook { return r.terminated }) {
		if err := hook(ctx, event); err != nil {
			return err
		}
	}
	return nil
}
