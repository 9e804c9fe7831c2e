package strategy

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"

	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/internal/degrade"
	"github.com/youssefsiam38/agentctx/retrieval"
	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
	"github.com/youssefsiam38/agentctx/window"
)

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

// ErrNoWindow is returned by New without a window manager.
var ErrNoWindow = errors.New("strategy: window manager is required")

var errNothingRetrieved = errors.New("retrieval returned no messages")

// Orchestrator composes the window manager, compressor and retriever.
// The compressor and retriever are optional; stages needing a missing one
// are skipped.
type Orchestrator struct {
	window     *window.Manager
	compressor *compaction.Compressor
	retriever  *retrieval.Retriever
	logger     Logger
}

// New creates an Orchestrator.
func New(w *window.Manager, c *compaction.Compressor, r *retrieval.Retriever, logger Logger) (*Orchestrator, error) {
	if w == nil {
		return nil, ErrNoWindow
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Orchestrator{window: w, compressor: c, retriever: r, logger: logger}, nil
}

// Window returns the window manager.
func (o *Orchestrator) Window() *window.Manager {
	return o.window
}

// Prepare applies opts to a conversation context.
func (o *Orchestrator) Prepare(ctx context.Context, cc ConversationContext, opts Options) Outcome {
	if opts.ConversationID == "" {
		opts.ConversationID = cc.ConversationID
	}
	return o.Apply(ctx, cc.Messages, opts)
}

// Apply runs the strategy named by opts.Kind over msgs.
func (o *Orchestrator) Apply(ctx context.Context, msgs []types.Message, opts Options) Outcome {
	var out Outcome
	switch opts.Kind {
	case Summarization:
		out = o.summarization(ctx, msgs, opts)
	case RetrievalAugmented:
		out = o.retrievalAugmented(ctx, msgs, opts)
	case Hybrid:
		out = o.hybrid(ctx, msgs, opts)
	default:
		out = o.slidingWindow(msgs)
	}
	out.Dropped = dropped(msgs, out.Messages)

	o.logger.Debug("context strategy applied",
		"strategy", opts.Kind.String(),
		"conversation_id", opts.ConversationID,
		"input_messages", len(msgs),
		"output_messages", len(out.Messages),
		"tokens", out.TokenCount,
		"applied", fmt.Sprint(out.Applied))
	return out
}

func (o *Orchestrator) slidingWindow(msgs []types.Message) Outcome {
	res := o.window.SlidingWindow(msgs)
	return Outcome{
		Messages:   res.Messages,
		TokenCount: res.TokenCount,
		Applied:    []Kind{SlidingWindow},
	}
}

func (o *Orchestrator) summarization(ctx context.Context, msgs []types.Message, opts Options) Outcome {
	a := o.window.AnalyzeContext(msgs)
	if !opts.EnableCompression || o.compressor == nil || !a.NeedsCompression {
		return o.slidingWindow(msgs)
	}
	merged := o.compress(ctx, a.Compressible, a.Preserved)
	return Outcome{
		Messages:   merged,
		TokenCount: tokens.Messages(merged),
		Applied:    []Kind{Summarization},
	}
}

func (o *Orchestrator) retrievalAugmented(ctx context.Context, msgs []types.Message, opts Options) Outcome {
	if !o.canRetrieve(opts) {
		return o.slidingWindow(msgs)
	}
	merged, err := o.retrieve(ctx, msgs, opts.ConversationID)
	if err != nil {
		o.logger.Debug("retrieval produced nothing, using sliding window",
			"conversation_id", opts.ConversationID,
			"error", err)
		return o.slidingWindow(msgs)
	}
	return Outcome{
		Messages:   merged,
		TokenCount: tokens.Messages(merged),
		Applied:    []Kind{RetrievalAugmented},
	}
}

// hybrid runs retrieval, then compression while still over the
// compression threshold, then a final sliding window bounded by
// TargetTokens.
func (o *Orchestrator) hybrid(ctx context.Context, msgs []types.Message, opts Options) Outcome {
	cfg := o.window.Config()
	total := tokens.Messages(msgs)
	if total <= cfg.CompressionThreshold {
		out := make([]types.Message, len(msgs))
		copy(out, msgs)
		return Outcome{Messages: out, TokenCount: total}
	}

	var applied []Kind
	current := msgs

	if o.canRetrieve(opts) {
		merged, err := degrade.Or(ctx,
			func(ctx context.Context) ([]types.Message, error) {
				return o.retrieve(ctx, current, opts.ConversationID)
			},
			func() []types.Message { return current },
		)
		if err != nil {
			o.logger.Debug("hybrid retrieval stage skipped",
				"conversation_id", opts.ConversationID,
				"error", err)
		} else {
			applied = append(applied, RetrievalAugmented)
		}
		current = merged
	}

	if opts.EnableCompression && o.compressor != nil && tokens.Messages(current) > cfg.CompressionThreshold {
		split := len(current) - cfg.PreserveMessages
		if split < 0 {
			split = 0
		}
		current = o.compress(ctx, current[:split:split], current[split:])
		applied = append(applied, Summarization)
	}

	res := window.SlidingWindow(current, cfg.TargetTokens)
	applied = append(applied, SlidingWindow)
	return Outcome{
		Messages:   res.Messages,
		TokenCount: res.TokenCount,
		Applied:    applied,
	}
}

func (o *Orchestrator) canRetrieve(opts Options) bool {
	return opts.EnableRetrieval && o.retriever != nil && opts.ConversationID != ""
}

// retrieve keeps the newest PreserveMessages verbatim and fills the rest of
// the TargetTokens budget with stored messages relevant to the latest one.
func (o *Orchestrator) retrieve(ctx context.Context, msgs []types.Message, conversationID string) ([]types.Message, error) {
	if len(msgs) == 0 {
		return nil, errNothingRetrieved
	}
	cfg := o.window.Config()
	split := len(msgs) - cfg.PreserveMessages
	if split < 0 {
		split = 0
	}
	recent := msgs[split:]
	budget := cfg.TargetTokens - tokens.Messages(recent)
	if budget <= 0 {
		return nil, fmt.Errorf("%w: recent messages fill the target", errNothingRetrieved)
	}

	res := o.retriever.RetrieveRelevantContext(ctx, retrieval.Query{
		ConversationID:    conversationID,
		Query:             msgs[len(msgs)-1].Text(),
		MinRelevanceScore: retrieval.DefaultMinRelevanceScore,
		MaxTokens:         budget,
		Exclude:           recent,
	})
	if len(res.RelevantMessages) == 0 {
		return nil, errNothingRetrieved
	}
	return retrieval.Combine(recent, res.RelevantMessages), nil
}

// compress replaces compressible with its compressed form and appends
// preserved unchanged.
func (o *Orchestrator) compress(ctx context.Context, compressible, preserved []types.Message) []types.Message {
	out := make([]types.Message, 0, len(preserved)+1)
	if len(compressible) > 0 {
		res := o.compressor.Compress(ctx, compressible)
		o.logger.Debug("compressed history",
			"compaction", string(res.Strategy),
			"original_tokens", res.OriginalTokens,
			"compressed_tokens", res.CompressedTokens)
		out = append(out, res.Messages...)
	}
	return append(out, preserved...)
}

// dropped counts the messages of in missing from out. Messages without an
// ID are matched by content.
func dropped(in, out []types.Message) int {
	present := make(map[uuid.UUID]struct{}, len(out))
	contents := make(map[[32]byte]int)
	for _, m := range out {
		if m.ID != uuid.Nil {
			present[m.ID] = struct{}{}
		}
		if key, ok := m.ContentKey(); ok {
			contents[key]++
		}
	}
	n := 0
	for _, m := range in {
		if m.ID != uuid.Nil {
			if _, ok := present[m.ID]; !ok {
				n++
			}
			continue
		}
		key, ok := m.ContentKey()
		if !ok || contents[key] == 0 {
			n++
			continue
		}
		contents[key]--
	}
	return n
}
