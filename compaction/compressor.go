package compaction

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/youssefsiam38/agentctx/internal/degrade"
	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
	"github.com/youssefsiam38/agentctx/window"
)

// Logger interface for compaction logging
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Result is the outcome of one compression pass.
type Result struct {
	OriginalTokens   int
	CompressedTokens int
	CompressionRatio float64
	SummaryText      string
	Messages         []types.Message
	Strategy         Strategy
}

// Compressor applies a compression strategy to a batch of messages.
type Compressor struct {
	cfg        Config
	summarizer Summarizer
	logger     Logger
}

// New creates a Compressor. summarizer may be nil, in which case AI
// summarization always degrades to the simple strategy.
func New(cfg *Config, summarizer Summarizer, logger Logger) (*Compressor, error) {
	if cfg == nil {
		cfg = DefaultConfig()
	}
	c := *cfg
	c.ApplyDefaults()
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = noopLogger{}
	}
	return &Compressor{cfg: c, summarizer: summarizer, logger: logger}, nil
}

// HasSummarizer reports whether AI summarization can run.
func (c *Compressor) HasSummarizer() bool {
	return c.summarizer != nil
}

// Compress runs the configured strategy.
func (c *Compressor) Compress(ctx context.Context, msgs []types.Message) Result {
	return c.CompressWith(ctx, c.cfg.Strategy, msgs)
}

// CompressWith runs the given strategy.
func (c *Compressor) CompressWith(ctx context.Context, strategy Strategy, msgs []types.Message) Result {
	switch strategy {
	case StrategyAISummarization:
		return c.Summarize(ctx, msgs)
	case StrategyHybrid:
		return c.Hybrid(ctx, msgs)
	default:
		return c.Simple(msgs)
	}
}

// Simple compresses msgs with rule-based key sentence extraction. The output
// is one summary message followed by every preserved message in order.
func (c *Compressor) Simple(msgs []types.Message) Result {
	original := tokens.Messages(msgs)
	keep, compressible := c.partition(msgs)
	if len(compressible) == 0 {
		return unchanged(msgs, original, StrategySimple)
	}

	summaryText := c.extractKeyPoints(compressible)
	out := make([]types.Message, 0, len(keep)+1)
	out = append(out, c.summaryMessage(summaryText, compressible))
	out = append(out, keep...)

	res := newResult(out, original, summaryText, StrategySimple)
	if res.CompressedTokens >= original {
		return unchanged(msgs, original, StrategySimple)
	}
	return res
}

// Summarize compresses msgs with the Summarizer, falling back to Simple on
// any failure. Failures are logged, never returned.
func (c *Compressor) Summarize(ctx context.Context, msgs []types.Message) Result {
	keep, compressible := c.partition(msgs)
	res, err := degrade.Or(ctx,
		func(ctx context.Context) (Result, error) {
			return c.summarize(ctx, msgs, keep, compressible)
		},
		func() Result { return c.Simple(msgs) },
	)
	if err != nil {
		c.logger.Warn("ai summarization failed, using simple compression",
			"messages", len(msgs),
			"error", err)
	}
	return res
}

// Hybrid runs Simple and escalates to the Summarizer when the simple result
// still holds more than HybridMessageThreshold messages.
func (c *Compressor) Hybrid(ctx context.Context, msgs []types.Message) Result {
	simple := c.Simple(msgs)
	simple.Strategy = StrategyHybrid
	if len(simple.Messages) <= c.cfg.HybridMessageThreshold || c.summarizer == nil {
		return simple
	}

	keep, compressible := c.partition(msgs)
	res, err := degrade.Or(ctx,
		func(ctx context.Context) (Result, error) {
			return c.summarize(ctx, msgs, keep, compressible)
		},
		func() Result { return simple },
	)
	if err != nil {
		c.logger.Warn("hybrid summarization stage failed, keeping simple result",
			"messages", len(msgs),
			"simple_messages", len(simple.Messages),
			"error", err)
		return res
	}
	res.Strategy = StrategyHybrid
	return res
}

func (c *Compressor) summarize(ctx context.Context, all, keep, compressible []types.Message) (Result, error) {
	original := tokens.Messages(all)
	if len(compressible) == 0 {
		return unchanged(all, original, StrategyAISummarization), nil
	}
	if c.summarizer == nil {
		return Result{}, NewCompactionError("Summarize", ErrNoSummarizer)
	}

	callCtx, cancel := context.WithTimeout(ctx, c.cfg.SummarizerTimeout)
	defer cancel()

	summary, err := c.summarizer.Summarize(callCtx, RenderTranscript(compressible))
	if err != nil {
		return Result{}, NewCompactionError("Summarize", err).WithContext("messages", len(compressible))
	}
	summary = strings.TrimSpace(summary)
	if summary == "" {
		return Result{}, NewCompactionError("Summarize", fmt.Errorf("%w: empty summary", ErrSummarizationFailed))
	}

	out := make([]types.Message, 0, len(keep)+1)
	out = append(out, c.summaryMessage(summary, compressible))
	out = append(out, keep...)

	res := newResult(out, original, summary, StrategyAISummarization)
	if res.CompressedTokens > original {
		return Result{}, NewCompactionError("Summarize", ErrNotSmaller).
			WithContext("original_tokens", original).
			WithContext("compressed_tokens", res.CompressedTokens)
	}
	return res, nil
}

// Preserved reports whether the compressor would keep m verbatim.
func (c *Compressor) Preserved(m types.Message) bool {
	if window.Signals(m).Any() {
		return true
	}
	return len([]rune(strings.TrimSpace(m.Text()))) < c.cfg.ShortMessageChars
}

func (c *Compressor) partition(msgs []types.Message) (keep, compressible []types.Message) {
	for _, m := range msgs {
		if c.Preserved(m) {
			keep = append(keep, m)
		} else {
			compressible = append(compressible, m)
		}
	}
	return keep, compressible
}

// summaryMessage builds the synthetic message replacing compressible. Its ID
// is derived from the replaced IDs so the same input always yields the same
// summary message.
func (c *Compressor) summaryMessage(text string, replaced []types.Message) types.Message {
	m := types.NewSummaryMessage(
		text,
		fmt.Sprintf("%d messages", len(replaced)),
		DefaultSummaryImportance,
	)
	var seed []byte
	for _, r := range replaced {
		seed = append(seed, r.ID[:]...)
	}
	m.ID = uuid.NewSHA1(uuid.NameSpaceOID, seed)
	m.Timestamp = replaced[0].Timestamp
	return m
}

func newResult(out []types.Message, original int, summary string, strategy Strategy) Result {
	compressed := tokens.Messages(out)
	ratio := 0.0
	if original > 0 {
		ratio = float64(original-compressed) / float64(original)
	}
	return Result{
		OriginalTokens:   original,
		CompressedTokens: compressed,
		CompressionRatio: ratio,
		SummaryText:      summary,
		Messages:         out,
		Strategy:         strategy,
	}
}

func unchanged(msgs []types.Message, original int, strategy Strategy) Result {
	out := make([]types.Message, len(msgs))
	copy(out, msgs)
	return Result{
		OriginalTokens:   original,
		CompressedTokens: original,
		Messages:         out,
		Strategy:         strategy,
	}
}
