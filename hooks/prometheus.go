package hooks

import (
	"context"
	"errors"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/youssefsiam38/agentctx/model"
	"github.com/youssefsiam38/agentctx/types"
)

const namespace = "agentctx"

// Prometheus records loop metrics.
type Prometheus struct {
	modelCalls    *prometheus.CounterVec
	modelTokens   *prometheus.CounterVec
	toolCalls     *prometheus.CounterVec
	toolDuration  *prometheus.HistogramVec
	terminations  *prometheus.CounterVec
	contextTokens prometheus.Histogram
}

// NewPrometheus creates the collectors and registers them with reg. A
// collector already registered under the same descriptor is reused, so
// several agents may share one registerer.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	p := &Prometheus{
		modelCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "model",
				Name:      "calls_total",
				Help:      "Total number of reasoning engine calls",
			},
			[]string{"outcome"},
		),
		modelTokens: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "model",
				Name:      "tokens_total",
				Help:      "Tokens reported by the reasoning engine",
			},
			[]string{"direction"},
		),
		toolCalls: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "tool",
				Name:      "calls_total",
				Help:      "Total number of tool executions",
			},
			[]string{"tool", "success"},
		),
		toolDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "tool",
				Name:      "duration_seconds",
				Help:      "Tool execution duration in seconds",
				Buckets:   []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"tool"},
		),
		terminations: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Subsystem: "run",
				Name:      "terminations_total",
				Help:      "Total number of finished runs by terminal reason",
			},
			[]string{"reason"},
		),
		contextTokens: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Subsystem: "context",
				Name:      "prepared_tokens",
				Help:      "Estimated tokens of the context sent to the reasoning engine",
				Buckets:   []float64{100, 500, 1000, 2000, 5000, 10000, 20000, 50000, 100000, 200000},
			},
		),
	}

	var err error
	if p.modelCalls, err = register(reg, p.modelCalls); err != nil {
		return nil, err
	}
	if p.modelTokens, err = register(reg, p.modelTokens); err != nil {
		return nil, err
	}
	if p.toolCalls, err = register(reg, p.toolCalls); err != nil {
		return nil, err
	}
	if p.toolDuration, err = register(reg, p.toolDuration); err != nil {
		return nil, err
	}
	if p.terminations, err = register(reg, p.terminations); err != nil {
		return nil, err
	}
	if p.contextTokens, err = register(reg, p.contextTokens); err != nil {
		return nil, err
	}
	return p, nil
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) (C, error) {
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing, nil
			}
		}
		return c, err
	}
	return c, nil
}

// Register attaches the metric hooks to r.
func (p *Prometheus) Register(r *Registry) {
	r.OnBeforeModelCall(p.beforeModelCall)
	r.OnAfterModelCall(p.afterModelCall)
	r.OnToolCall(p.toolCall)
	r.OnTerminated(p.terminated)
}

func (p *Prometheus) beforeModelCall(_ context.Context, call ModelCall) error {
	p.contextTokens.Observe(float64(call.ContextTokens))
	return nil
}

func (p *Prometheus) afterModelCall(_ context.Context, _ ModelCall, resp *model.Response, err error) error {
	if err != nil {
		p.modelCalls.WithLabelValues("error").Inc()
		return nil
	}
	p.modelCalls.WithLabelValues("success").Inc()
	p.modelTokens.WithLabelValues("input").Add(float64(resp.Usage.InputTokens))
	p.modelTokens.WithLabelValues("output").Add(float64(resp.Usage.OutputTokens))
	return nil
}

func (p *Prometheus) toolCall(_ context.Context, req types.ToolInvocationRequest, result types.ToolExecutionResult) error {
	p.toolCalls.WithLabelValues(req.Name, strconv.FormatBool(result.Success)).Inc()
	p.toolDuration.WithLabelValues(req.Name).Observe(result.Duration.Seconds())
	return nil
}

func (p *Prometheus) terminated(_ context.Context, event Termination) error {
	p.terminations.WithLabelValues(event.Reason).Inc()
	return nil
}
