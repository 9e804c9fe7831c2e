package agentctx

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/zeebo/blake3"

	"github.com/youssefsiam38/agentctx/budget"
	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/hooks"
	"github.com/youssefsiam38/agentctx/model"
	"github.com/youssefsiam38/agentctx/runstate"
	"github.com/youssefsiam38/agentctx/streaming"
	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/tool"
	"github.com/youssefsiam38/agentctx/types"
)

// run is the state of one Run call. It is owned by the loop goroutine.
type run struct {
	agent   *Agent
	req     Request
	stream  *streaming.Stream
	machine *runstate.Machine
	started time.Time

	history     []types.Message
	newMessages []types.Message

	iterations int
	toolCalls  int
	usage      model.Usage

	// answer is the text of the latest model turn.
	answer string

	// scope is the cache context, fixed before the prompt is appended.
	scope string
}

func newRun(a *Agent, req Request, s *streaming.Stream) *run {
	return &run{
		agent:   a,
		req:     req,
		stream:  s,
		machine: runstate.NewMachine(),
		started: time.Now(),
	}
}

// loop drives the state machine until it terminates. It always closes the
// stream after exactly one terminal event.
func (r *run) loop(ctx context.Context) {
	defer r.stream.Close()

	if err := r.init(ctx); err != nil {
		r.fail(ctx, err)
		return
	}
	if r.machine.State().IsTerminal() {
		return
	}

	for {
		if err := ctx.Err(); err != nil {
			r.fail(ctx, fmt.Errorf("%w: %w", ErrCancelled, err))
			return
		}
		if r.iterations >= r.agent.config.maxIterations {
			r.finish(ctx, runstate.ReasonMaxIterations)
			return
		}

		r.advance(runstate.StateCallModel)
		r.iterations++

		resp, err := r.callModel(ctx)
		if err != nil {
			r.fail(ctx, err)
			return
		}
		r.usage.Add(resp.Usage)
		r.advance(runstate.StateRoute)

		r.append(resp.Message())
		r.answer = resp.Text()

		reqs := resp.ToolRequests()
		if runstate.Route(string(resp.StopReason), len(reqs)) == runstate.StateTerminated {
			r.finish(ctx, runstate.ReasonDone)
			return
		}

		if err := ctx.Err(); err != nil {
			r.fail(ctx, fmt.Errorf("%w: %w", ErrCancelled, err))
			return
		}
		r.advance(runstate.StateExecuteTools)
		r.executeTools(ctx, reqs)
	}
}

// init is the INIT state: it loads history, appends the prompt, and
// consults the cache and the cost guard.
func (r *run) init(ctx context.Context) error {
	cfg := r.agent.config

	r.history = append(r.history, types.WithIDs(r.req.Messages)...)
	if len(r.history) == 0 && r.req.ConversationID != "" && cfg.store != nil {
		stored, err := cfg.store.ListMessages(ctx, r.req.ConversationID)
		if err != nil {
			return NewConversationError("LoadHistory", r.req.ConversationID, fmt.Errorf("%w: %w", ErrStorageError, err))
		}
		r.history = stored
	}
	r.scope = cacheScope(cfg.model, cfg.systemPrompt, r.history)
	if r.req.Prompt != "" {
		r.append(types.NewUserMessage(r.req.Prompt))
	}
	if len(r.history) == 0 {
		return NewConversationError("Run", r.req.ConversationID, ErrEmptyRequest)
	}

	if r.serveFromCache(ctx) {
		return nil
	}

	if cfg.costGuard != nil && r.req.UserID != "" {
		estimate := budget.EstimateCostCents(
			tokens.Request(cfg.systemPrompt, r.agent.toolRegistry.Definitions(), r.history)+cfg.maxOutputTokens,
			cfg.costPerMillion)
		decision, err := cfg.costGuard.CanUserMakeRequest(ctx, r.req.UserID, estimate)
		if err != nil {
			cfg.logger.Warn("cost guard unavailable, allowing request",
				"user_id", r.req.UserID,
				"error", err)
		}
		if !decision.Allowed {
			return NewConversationError("CostGuard", r.req.ConversationID, fmt.Errorf("%w: %s", ErrBudgetExceeded, decision.Reason)).
				WithContext("spent_cents", decision.SpentCents).
				WithContext("limit_cents", decision.LimitCents)
		}
	}
	return nil
}

// cacheScope is the context half of the cache key. Answers are only shared
// between runs with the same model, system prompt and prior history, so a
// question about earlier turns is never answered from another conversation.
// Message IDs and timestamps do not take part.
func cacheScope(modelName, systemPrompt string, history []types.Message) string {
	h := blake3.New()
	for _, m := range history {
		h.Write([]byte(m.Role))
		h.Write([]byte{0})
		h.Write([]byte(m.Text()))
		h.Write([]byte{0})
		if len(m.Blocks) > 0 {
			if blocks, err := json.Marshal(m.Blocks); err == nil {
				h.Write(blocks)
			}
		}
		h.Write([]byte{0})
	}
	return modelName + "\n" + systemPrompt + "\n" + hex.EncodeToString(h.Sum(nil))
}

func (r *run) serveFromCache(ctx context.Context) bool {
	cfg := r.agent.config
	if cfg.cache == nil || r.req.Prompt == "" {
		return false
	}
	entry, ok := cfg.cache.Get(ctx, r.req.Prompt, r.scope)
	if !ok {
		return false
	}

	cfg.logger.Debug("serving response from cache",
		"conversation_id", r.req.ConversationID,
		"tokens_saved", entry.TokensSaved)
	r.answer = entry.Response
	r.append(types.NewAssistantMessage(entry.Response))
	r.send(ctx, &streaming.TextEvent{Content: entry.Response})
	r.finish(ctx, runstate.ReasonCached)
	return true
}

// callModel is the CALL_MODEL state.
func (r *run) callModel(ctx context.Context) (*model.Response, error) {
	cfg := r.agent.config
	prepared := r.agent.prepare(ctx, r.req.ConversationID, r.history)
	defs := r.agent.toolRegistry.Definitions()

	call := hooks.ModelCall{
		ConversationID: r.req.ConversationID,
		Iteration:      r.iterations,
		Messages:       len(prepared),
		ContextTokens:  tokens.Request(cfg.systemPrompt, defs, prepared),
	}
	if err := cfg.hooks.TriggerBeforeModelCall(ctx, call); err != nil {
		cfg.logger.Warn("before model call hook failed", "conversation_id", r.req.ConversationID, "error", err)
	}

	callCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.modelTimeout)
	defer cancel()

	resp, err := cfg.client.Stream(callCtx, model.Request{
		SystemPrompt:    cfg.systemPrompt,
		Tools:           defs,
		Messages:        prepared,
		MaxOutputTokens: cfg.maxOutputTokens,
		ThinkingBudget:  cfg.thinkingBudget,
	}, func(b model.Block) { r.emitBlock(ctx, b) })
	if err == nil && resp == nil {
		err = errors.New("client returned no response")
	}

	if hookErr := cfg.hooks.TriggerAfterModelCall(ctx, call, resp, err); hookErr != nil {
		cfg.logger.Warn("after model call hook failed", "conversation_id", r.req.ConversationID, "error", hookErr)
	}
	if err != nil {
		if !errors.Is(err, model.ErrModelCall) {
			err = fmt.Errorf("%w: %w", ErrModelCall, err)
		}
		return nil, NewConversationError("CallModel", r.req.ConversationID, err).
			WithContext("iteration", r.iterations)
	}
	return resp, nil
}

func (r *run) emitBlock(ctx context.Context, b model.Block) {
	switch b.Kind {
	case model.BlockText:
		r.send(ctx, &streaming.TextEvent{Content: b.Text})
	case model.BlockThinking:
		r.send(ctx, &streaming.ThinkingEvent{Content: b.Text})
	case model.BlockToolUse:
		if b.ToolUse != nil {
			r.send(ctx, &streaming.ToolEvent{ID: b.ToolUse.ID, Name: b.ToolUse.Name, Input: b.ToolUse.Input})
		}
	}
}

// executeTools is the EXECUTE_TOOLS state.
func (r *run) executeTools(ctx context.Context, reqs []types.ToolInvocationRequest) {
	cfg := r.agent.config
	toolCtx := tool.WithCallInfo(ctx, tool.CallInfo{
		ConversationID: r.req.ConversationID,
		UserID:         r.req.UserID,
		Iteration:      r.iterations,
	})

	results := r.agent.toolExecutor.ExecuteAll(toolCtx, reqs)
	for i, res := range results {
		if err := cfg.hooks.TriggerToolCall(ctx, reqs[i], res); err != nil {
			cfg.logger.Warn("tool hook failed", "tool", res.Name, "error", err)
		}
		r.send(ctx, &streaming.ToolResultEvent{
			ID:      res.ID,
			Name:    res.Name,
			Success: res.Success,
			Preview: compaction.CompressToolResult(res.Content(), cfg.previewChars),
		})
	}
	r.toolCalls += len(results)
	r.append(types.NewToolResultMessage(results))
}

func (r *run) append(m types.Message) {
	r.history = append(r.history, m)
	r.newMessages = append(r.newMessages, m)
}

func (r *run) advance(to runstate.State) {
	if err := r.machine.Advance(to); err != nil {
		r.agent.config.logger.Error("invalid loop transition", "error", err)
	}
}

func (r *run) send(ctx context.Context, e streaming.Event) {
	r.stream.Send(ctx, e)
}

// sendFinal delivers the terminal event even after ctx is done, as long as
// the consumer drains within finalSendTimeout.
func (r *run) sendFinal(ctx context.Context, e streaming.Event) {
	sendCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), finalSendTimeout)
	defer cancel()
	if !r.stream.Send(sendCtx, e) {
		r.agent.config.logger.Warn("terminal event dropped", "conversation_id", r.req.ConversationID, "event", e.Type())
	}
}

// finish terminates a run that produced an answer.
func (r *run) finish(ctx context.Context, reason runstate.Reason) {
	r.terminate(reason)
	r.persist(ctx, reason)
	r.triggerTerminated(ctx, nil)
	r.sendFinal(ctx, &streaming.DoneEvent{
		Response:   r.answer,
		ToolCalls:  r.toolCalls,
		Iterations: r.iterations,
		Reason:     reason.String(),
		Usage:      r.usage,
	})
}

// fail terminates a run with exactly one ErrorEvent. Messages gathered
// before the failure are still persisted.
func (r *run) fail(ctx context.Context, err error) {
	reason := runstate.ReasonError
	msg := err.Error()
	switch {
	case errors.Is(err, ErrCancelled):
		reason = runstate.ReasonCancelled
		msg = "request cancelled"
	case errors.Is(err, ErrBudgetExceeded):
		reason = runstate.ReasonBudgetRejected
	}

	r.terminate(reason)
	if reason != runstate.ReasonBudgetRejected {
		r.persist(ctx, reason)
	}
	r.triggerTerminated(ctx, err)
	r.sendFinal(ctx, &streaming.ErrorEvent{Message: msg, Err: err})
}

func (r *run) terminate(reason runstate.Reason) {
	if err := r.machine.Terminate(reason); err != nil {
		r.agent.config.logger.Error("invalid loop transition", "error", err)
	}
}

func (r *run) triggerTerminated(ctx context.Context, err error) {
	cfg := r.agent.config
	if hookErr := cfg.hooks.TriggerTerminated(ctx, hooks.Termination{
		ConversationID: r.req.ConversationID,
		Reason:         r.machine.Reason().String(),
		Iterations:     r.iterations,
		ToolCalls:      r.toolCalls,
		Usage:          r.usage,
		Duration:       time.Since(r.started),
		Err:            err,
	}); hookErr != nil {
		cfg.logger.Warn("terminated hook failed", "conversation_id", r.req.ConversationID, "error", hookErr)
	}
}

// persist runs the best-effort end-of-request writes. Failures are logged.
func (r *run) persist(ctx context.Context, reason runstate.Reason) {
	cfg := r.agent.config
	pctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), persistTimeout)
	defer cancel()

	if cfg.store != nil && r.req.ConversationID != "" && len(r.newMessages) > 0 {
		if err := cfg.store.AppendMessages(pctx, r.req.ConversationID, r.newMessages); err != nil {
			cfg.logger.Warn("failed to persist messages",
				"conversation_id", r.req.ConversationID,
				"messages", len(r.newMessages),
				"error", err)
		}
	}

	if cfg.costGuard != nil && r.req.UserID != "" && r.usage.Total() > 0 {
		cost := budget.EstimateCostCents(r.usage.Total(), cfg.costPerMillion)
		if err := cfg.costGuard.Record(pctx, r.req.UserID, r.usage.Total(), cost); err != nil {
			cfg.logger.Warn("failed to record usage",
				"user_id", r.req.UserID,
				"tokens", r.usage.Total(),
				"error", err)
		}
	}

	if cfg.cache != nil && reason == runstate.ReasonDone && r.toolCalls == 0 && r.req.Prompt != "" && r.answer != "" {
		if err := cfg.cache.Set(pctx, r.req.Prompt, r.scope, r.answer, r.usage.Total()); err != nil {
			cfg.logger.Warn("failed to cache response",
				"conversation_id", r.req.ConversationID,
				"error", err)
		}
	}
}
