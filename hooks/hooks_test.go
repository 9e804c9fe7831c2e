package hooks

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/youssefsiam38/agentctx/model"
	"github.com/youssefsiam38/agentctx/types"
)

func TestNewRegistry(t *testing.T) {
	r := NewRegistry()
	if r == nil {
		t.Fatal("NewRegistry returned nil")
	}
	if err := r.TriggerTerminated(context.Background(), Termination{}); err != nil {
		t.Errorf("empty registry returned error: %v", err)
	}
}

func TestTriggers(t *testing.T) {
	r := NewRegistry()
	var got []string

	r.OnBeforeModelCall(func(_ context.Context, call ModelCall) error {
		got = append(got, "before:"+call.ConversationID)
		return nil
	})
	r.OnAfterModelCall(func(_ context.Context, _ ModelCall, resp *model.Response, err error) error {
		got = append(got, "after:"+string(resp.StopReason))
		return nil
	})
	r.OnToolCall(func(_ context.Context, req types.ToolInvocationRequest, _ types.ToolExecutionResult) error {
		got = append(got, "tool:"+req.Name)
		return nil
	})
	r.OnStrategyApplied(func(_ context.Context, e StrategyApplied) error {
		got = append(got, "strategy:"+e.Strategies[0])
		return nil
	})
	r.OnTerminated(func(_ context.Context, e Termination) error {
		got = append(got, "terminated:"+e.Reason)
		return nil
	})

	ctx := context.Background()
	call := ModelCall{ConversationID: "c1"}
	mustNil(t, r.TriggerBeforeModelCall(ctx, call))
	mustNil(t, r.TriggerAfterModelCall(ctx, call, &model.Response{StopReason: model.StopEndTurn}, nil))
	mustNil(t, r.TriggerToolCall(ctx, types.ToolInvocationRequest{Name: "weather"}, types.ToolExecutionResult{}))
	mustNil(t, r.TriggerStrategyApplied(ctx, StrategyApplied{Strategies: []string{"hybrid"}}))
	mustNil(t, r.TriggerTerminated(ctx, Termination{Reason: "done"}))

	want := []string{"before:c1", "after:end_turn", "tool:weather", "strategy:hybrid", "terminated:done"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func mustNil(t *testing.T, err error) {
	t.Helper()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestHookStopsOnError(t *testing.T) {
	r := NewRegistry()
	called := []int{}
	expectedErr := errors.New("stop here")

	r.OnBeforeModelCall(func(context.Context, ModelCall) error {
		called = append(called, 1)
		return nil
	})
	r.OnBeforeModelCall(func(context.Context, ModelCall) error {
		called = append(called, 2)
		return expectedErr
	})
	r.OnBeforeModelCall(func(context.Context, ModelCall) error {
		called = append(called, 3)
		return nil
	})

	err := r.TriggerBeforeModelCall(context.Background(), ModelCall{})
	if !errors.Is(err, expectedErr) {
		t.Errorf("expected error %v, got %v", expectedErr, err)
	}
	if len(called) != 2 {
		t.Errorf("expected 2 hooks to be called before error, got %d", len(called))
	}
}

func TestConcurrentRegistration(t *testing.T) {
	r := NewRegistry()
	var wg sync.WaitGroup
	var mu sync.Mutex
	count := 0

	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.OnToolCall(func(context.Context, types.ToolInvocationRequest, types.ToolExecutionResult) error {
				mu.Lock()
				count++
				mu.Unlock()
				return nil
			})
		}()
		go func() {
			defer wg.Done()
			_ = r.TriggerToolCall(context.Background(), types.ToolInvocationRequest{}, types.ToolExecutionResult{})
		}()
	}
	wg.Wait()

	mu.Lock()
	count = 0
	mu.Unlock()
	if err := r.TriggerToolCall(context.Background(), types.ToolInvocationRequest{}, types.ToolExecutionResult{}); err != nil {
		t.Fatalf("TriggerToolCall() error = %v", err)
	}
	if count != 50 {
		t.Errorf("count = %d, want 50", count)
	}
}

type recordingLogger struct {
	mu      sync.Mutex
	entries []string
}

func (l *recordingLogger) record(level, msg string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.entries = append(l.entries, level+" "+msg)
}

func (l *recordingLogger) Debug(msg string, _ ...any) { l.record("DEBUG", msg) }
func (l *recordingLogger) Info(msg string, _ ...any)  { l.record("INFO", msg) }
func (l *recordingLogger) Warn(msg string, _ ...any)  { l.record("WARN", msg) }
func (l *recordingLogger) Error(msg string, _ ...any) { l.record("ERROR", msg) }

func TestLoggingHooks(t *testing.T) {
	logger := &recordingLogger{}
	r := NewRegistry()
	Logging(logger).Register(r)

	ctx := context.Background()
	call := ModelCall{ConversationID: "c1", Iteration: 1}
	_ = r.TriggerBeforeModelCall(ctx, call)
	_ = r.TriggerAfterModelCall(ctx, call, nil, errors.New("overloaded"))
	_ = r.TriggerToolCall(ctx, types.ToolInvocationRequest{Name: "weather"}, types.ToolExecutionResult{Success: false, ErrorMessage: "timeout"})
	_ = r.TriggerStrategyApplied(ctx, StrategyApplied{OriginalTokens: 1000, FinalTokens: 400})
	_ = r.TriggerTerminated(ctx, Termination{Reason: "error", Err: errors.New("overloaded")})

	want := []string{
		"DEBUG calling model",
		"ERROR model call failed",
		"WARN tool failed",
		"INFO context prepared",
		"WARN run terminated",
	}
	if len(logger.entries) != len(want) {
		t.Fatalf("entries = %v, want %v", logger.entries, want)
	}
	for i := range want {
		if logger.entries[i] != want[i] {
			t.Errorf("entries[%d] = %q, want %q", i, logger.entries[i], want[i])
		}
	}
}

func TestPrometheusHooks(t *testing.T) {
	reg := prometheus.NewRegistry()
	p, err := NewPrometheus(reg)
	if err != nil {
		t.Fatalf("NewPrometheus() error = %v", err)
	}
	r := NewRegistry()
	p.Register(r)

	ctx := context.Background()
	_ = r.TriggerBeforeModelCall(ctx, ModelCall{ContextTokens: 1200})
	_ = r.TriggerAfterModelCall(ctx, ModelCall{}, &model.Response{Usage: model.Usage{InputTokens: 100, OutputTokens: 20}}, nil)
	_ = r.TriggerAfterModelCall(ctx, ModelCall{}, nil, errors.New("boom"))
	_ = r.TriggerToolCall(ctx, types.ToolInvocationRequest{Name: "weather"}, types.ToolExecutionResult{Success: true, Duration: 20 * time.Millisecond})
	_ = r.TriggerToolCall(ctx, types.ToolInvocationRequest{Name: "weather"}, types.ToolExecutionResult{Success: false})
	_ = r.TriggerTerminated(ctx, Termination{Reason: "done"})
	_ = r.TriggerTerminated(ctx, Termination{Reason: "done"})

	tests := []struct {
		name string
		c    prometheus.Collector
		want float64
	}{
		{"model success", p.modelCalls.WithLabelValues("success"), 1},
		{"model error", p.modelCalls.WithLabelValues("error"), 1},
		{"input tokens", p.modelTokens.WithLabelValues("input"), 100},
		{"output tokens", p.modelTokens.WithLabelValues("output"), 20},
		{"tool success", p.toolCalls.WithLabelValues("weather", "true"), 1},
		{"tool failure", p.toolCalls.WithLabelValues("weather", "false"), 1},
		{"terminations", p.terminations.WithLabelValues("done"), 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := testutil.ToFloat64(tt.c); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}

	if n := testutil.CollectAndCount(p.contextTokens); n != 1 {
		t.Errorf("context histogram series = %d, want 1", n)
	}
}

func TestPrometheusSharedRegisterer(t *testing.T) {
	reg := prometheus.NewRegistry()
	first, err := NewPrometheus(reg)
	if err != nil {
		t.Fatalf("first NewPrometheus() error = %v", err)
	}
	second, err := NewPrometheus(reg)
	if err != nil {
		t.Fatalf("second NewPrometheus() error = %v", err)
	}

	r := NewRegistry()
	second.Register(r)
	_ = r.TriggerTerminated(context.Background(), Termination{Reason: "cached"})

	if got := testutil.ToFloat64(first.terminations.WithLabelValues("cached")); got != 1 {
		t.Errorf("shared counter = %v, want 1", got)
	}
}
