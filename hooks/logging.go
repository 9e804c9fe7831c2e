package hooks

import (
	"context"

	"github.com/youssefsiam38/agentctx/model"
	"github.com/youssefsiam38/agentctx/types"
)

// Logger is the logging interface used across agentctx. *slog.Logger
// satisfies it.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

const previewLength = 100

// LoggingHooks logs every lifecycle event with structured attributes.
type LoggingHooks struct {
	logger Logger
}

// Logging creates logging hooks over logger.
func Logging(logger Logger) *LoggingHooks {
	return &LoggingHooks{logger: logger}
}

// Register attaches the hooks to r.
func (h *LoggingHooks) Register(r *Registry) {
	r.OnBeforeModelCall(h.BeforeModelCall)
	r.OnAfterModelCall(h.AfterModelCall)
	r.OnToolCall(h.ToolCall)
	r.OnStrategyApplied(h.StrategyApplied)
	r.OnTerminated(h.Terminated)
}

// BeforeModelCall logs the size of the prepared context.
func (h *LoggingHooks) BeforeModelCall(_ context.Context, call ModelCall) error {
	h.logger.Debug("calling model",
		"conversation_id", call.ConversationID,
		"iteration", call.Iteration,
		"messages", call.Messages,
		"context_tokens", call.ContextTokens)
	return nil
}

// AfterModelCall logs the stop reason and usage, or the failure.
func (h *LoggingHooks) AfterModelCall(_ context.Context, call ModelCall, resp *model.Response, err error) error {
	if err != nil {
		h.logger.Error("model call failed",
			"conversation_id", call.ConversationID,
			"iteration", call.Iteration,
			"error", err)
		return nil
	}
	h.logger.Debug("model responded",
		"conversation_id", call.ConversationID,
		"iteration", call.Iteration,
		"stop_reason", resp.StopReason,
		"input_tokens", resp.Usage.InputTokens,
		"output_tokens", resp.Usage.OutputTokens)
	return nil
}

// ToolCall logs a tool outcome with a short output preview.
func (h *LoggingHooks) ToolCall(_ context.Context, req types.ToolInvocationRequest, result types.ToolExecutionResult) error {
	if !result.Success {
		h.logger.Warn("tool failed",
			"tool", req.Name,
			"tool_use_id", req.ID,
			"duration", result.Duration,
			"error", result.ErrorMessage)
		return nil
	}

	preview := result.Data
	if len(preview) > previewLength {
		preview = preview[:previewLength] + "..."
	}
	h.logger.Debug("tool succeeded",
		"tool", req.Name,
		"tool_use_id", req.ID,
		"duration", result.Duration,
		"output", preview)
	return nil
}

// StrategyApplied logs the token reduction of the prepare step.
func (h *LoggingHooks) StrategyApplied(_ context.Context, event StrategyApplied) error {
	reduction := float64(0)
	if event.OriginalTokens > 0 {
		reduction = float64(event.OriginalTokens-event.FinalTokens) / float64(event.OriginalTokens) * 100
	}
	h.logger.Info("context prepared",
		"conversation_id", event.ConversationID,
		"strategy", event.Strategies,
		"original_tokens", event.OriginalTokens,
		"final_tokens", event.FinalTokens,
		"reduction_pct", reduction,
		"dropped", event.Dropped)
	return nil
}

// Terminated logs the end of a run.
func (h *LoggingHooks) Terminated(_ context.Context, event Termination) error {
	args := []any{
		"conversation_id", event.ConversationID,
		"reason", event.Reason,
		"iterations", event.Iterations,
		"tool_calls", event.ToolCalls,
		"total_tokens", event.Usage.Total(),
		"duration", event.Duration,
	}
	if event.Err != nil {
		h.logger.Warn("run terminated", append(args, "error", event.Err)...)
		return nil
	}
	h.logger.Info("run terminated", args...)
	return nil
}
