package tool

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/youssefsiam38/agentctx/types"
)

// DefaultTimeout bounds a single tool execution.
const DefaultTimeout = 30 * time.Second

// Policy selects how the requests of one turn are executed.
type Policy int

const (
	// Sequential runs requests one at a time in request order.
	Sequential Policy = iota

	// Parallel runs requests concurrently. Results keep request order.
	Parallel
)

func (p Policy) String() string {
	if p == Parallel {
		return "parallel"
	}
	return "sequential"
}

// ParsePolicy resolves "sequential" or "parallel".
func ParsePolicy(s string) (Policy, error) {
	switch s {
	case "", "sequential":
		return Sequential, nil
	case "parallel":
		return Parallel, nil
	default:
		return Sequential, fmt.Errorf("unknown tool execution policy %q", s)
	}
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (p *Policy) UnmarshalText(b []byte) error {
	v, err := ParsePolicy(string(b))
	if err != nil {
		return err
	}
	*p = v
	return nil
}

// Logger is the logging interface used across agentctx.
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

// Executor runs invocation requests against a registry. Every failure,
// including unknown tools, invalid input, panics and timeouts, is returned
// as an unsuccessful result.
type Executor struct {
	registry *Registry
	policy   Policy
	timeout  time.Duration
	logger   Logger
}

// ExecutorOption configures an Executor.
type ExecutorOption func(*Executor)

// WithPolicy sets the execution policy.
func WithPolicy(p Policy) ExecutorOption {
	return func(e *Executor) { e.policy = p }
}

// WithTimeout sets the per-tool timeout.
func WithTimeout(d time.Duration) ExecutorOption {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger.
func WithLogger(l Logger) ExecutorOption {
	return func(e *Executor) {
		if l != nil {
			e.logger = l
		}
	}
}

// NewExecutor creates an executor over registry.
func NewExecutor(registry *Registry, opts ...ExecutorOption) *Executor {
	if registry == nil {
		registry = NewRegistry()
	}
	e := &Executor{
		registry: registry,
		policy:   Sequential,
		timeout:  DefaultTimeout,
		logger:   noopLogger{},
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the configured policy.
func (e *Executor) Policy() Policy {
	return e.policy
}

// Execute runs one request. The call is detached from ctx cancellation so
// an in-flight tool completes; only the timeout bounds it.
func (e *Executor) Execute(ctx context.Context, req types.ToolInvocationRequest) types.ToolExecutionResult {
	start := time.Now()
	result := types.ToolExecutionResult{ID: req.ID, Name: req.Name}

	output, err := e.run(ctx, req)
	result.Duration = time.Since(start)
	if err != nil {
		result.ErrorMessage = err.Error()
		e.logger.Warn("tool execution failed",
			"tool", req.Name,
			"tool_use_id", req.ID,
			"duration", result.Duration,
			"error", err)
		return result
	}

	result.Success = true
	result.Data = output
	e.logger.Debug("tool executed",
		"tool", req.Name,
		"tool_use_id", req.ID,
		"duration", result.Duration)
	return result
}

func (e *Executor) run(ctx context.Context, req types.ToolInvocationRequest) (output string, err error) {
	t, ok := e.registry.Get(req.Name)
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrToolNotFound, req.Name)
	}
	if err := Validate(t.InputSchema(), req.Input); err != nil {
		return "", err
	}

	info, _ := CallInfoFromContext(ctx)
	info.ToolUseID = req.ID
	execCtx, cancel := context.WithTimeout(WithCallInfo(context.WithoutCancel(ctx), info), e.timeout)
	defer cancel()

	type outcome struct {
		out string
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("tool panicked: %v", r)}
			}
		}()
		out, err := t.Execute(execCtx, req.Input)
		done <- outcome{out: out, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil && errors.Is(execCtx.Err(), context.DeadlineExceeded) {
			return "", fmt.Errorf("%w after %v", ErrTimeout, e.timeout)
		}
		return o.out, o.err
	case <-execCtx.Done():
		return "", fmt.Errorf("%w after %v", ErrTimeout, e.timeout)
	}
}

// ExecuteAll runs every request of a turn under the configured policy.
// results[i] always answers reqs[i]. Under the sequential policy a
// cancelled ctx stops the batch between requests, and the requests that
// never ran are answered with ErrCancelled.
func (e *Executor) ExecuteAll(ctx context.Context, reqs []types.ToolInvocationRequest) []types.ToolExecutionResult {
	results := make([]types.ToolExecutionResult, len(reqs))
	if e.policy != Parallel || len(reqs) < 2 {
		for i, req := range reqs {
			if ctx.Err() != nil {
				results[i] = types.ToolExecutionResult{ID: req.ID, Name: req.Name, ErrorMessage: ErrCancelled.Error()}
				continue
			}
			results[i] = e.Execute(ctx, req)
		}
		return results
	}

	var wg sync.WaitGroup
	wg.Add(len(reqs))
	for i, req := range reqs {
		go func(idx int, r types.ToolInvocationRequest) {
			defer wg.Done()
			results[idx] = e.Execute(ctx, r)
		}(i, req)
	}
	wg.Wait()
	return results
}
