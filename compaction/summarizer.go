package compaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/sony/gobreaker"
)

// SummarizationSystemPrompt instructs the fast model used for compression.
const SummarizationSystemPrompt = `You compress conversation history for an AI agent. Write a summary of 2 to 4 short paragraphs that will replace the transcript you are given.

Preserve, in this order of priority:
- decisions that were made and the reasons given
- errors that occurred and how they were resolved
- tool calls and the results that mattered
- open questions and the user's stated preferences

Write in plain prose. Do not invent details. Do not address the user.`

// Summarizer turns a rendered transcript into a short summary.
type Summarizer interface {
	Summarize(ctx context.Context, transcript string) (string, error)
}

// SummarizerFunc adapts a function to the Summarizer interface.
type SummarizerFunc func(ctx context.Context, transcript string) (string, error)

// Summarize implements Summarizer.
func (f SummarizerFunc) Summarize(ctx context.Context, transcript string) (string, error) {
	return f(ctx, transcript)
}

// AnthropicSummarizer summarizes with the Anthropic Messages streaming API.
type AnthropicSummarizer struct {
	client    *anthropic.Client
	model     string
	maxTokens int
}

// NewAnthropicSummarizer creates a summarizer using the given client and model.
func NewAnthropicSummarizer(client *anthropic.Client, model string, maxTokens int) *AnthropicSummarizer {
	if maxTokens <= 0 {
		maxTokens = DefaultSummarizerMaxTokens
	}
	return &AnthropicSummarizer{client: client, model: model, maxTokens: maxTokens}
}

// Summarize implements Summarizer.
func (s *AnthropicSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	if strings.TrimSpace(transcript) == "" {
		return "", fmt.Errorf("%w: empty transcript", ErrSummarizationFailed)
	}

	stream := s.client.Messages.NewStreaming(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(s.model),
		MaxTokens: int64(s.maxTokens),
		System: []anthropic.TextBlockParam{
			{Text: SummarizationSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(
				"Summarize this conversation:\n\n<transcript>\n" + transcript + "\n</transcript>",
			)),
		},
	})

	message := anthropic.Message{}
	for stream.Next() {
		if err := message.Accumulate(stream.Current()); err != nil {
			return "", fmt.Errorf("%w: failed to accumulate stream: %v", ErrSummarizationFailed, err)
		}
	}
	if err := stream.Err(); err != nil {
		return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
	}

	var summary strings.Builder
	for _, block := range message.Content {
		if text, ok := block.AsAny().(anthropic.TextBlock); ok {
			summary.WriteString(text.Text)
		}
	}
	if summary.Len() == 0 {
		return "", fmt.Errorf("%w: empty response from summarizer", ErrSummarizationFailed)
	}
	return summary.String(), nil
}

// BreakerSettings configures the circuit breaker around a summarizer.
type BreakerSettings struct {
	// Name labels the breaker in state change callbacks.
	// Default: "summarizer"
	Name string

	// MaxFailures is the consecutive failure count that opens the breaker.
	// Default: 3
	MaxFailures uint32

	// OpenTimeout is how long the breaker stays open before probing again.
	// Default: 30s
	OpenTimeout time.Duration

	// OnStateChange is called on every transition.
	OnStateChange func(name string, from, to gobreaker.State)
}

// BreakerSummarizer fails fast while its wrapped summarizer keeps failing,
// so compression drops straight to the simple strategy instead of waiting
// on a timeout for every call.
type BreakerSummarizer struct {
	next Summarizer
	cb   *gobreaker.CircuitBreaker
}

// NewBreakerSummarizer wraps next in a circuit breaker.
func NewBreakerSummarizer(next Summarizer, st BreakerSettings) *BreakerSummarizer {
	if st.Name == "" {
		st.Name = "summarizer"
	}
	if st.MaxFailures == 0 {
		st.MaxFailures = 3
	}
	if st.OpenTimeout == 0 {
		st.OpenTimeout = 30 * time.Second
	}
	maxFailures := st.MaxFailures
	return &BreakerSummarizer{
		next: next,
		cb: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        st.Name,
			MaxRequests: 1,
			Timeout:     st.OpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= maxFailures
			},
			OnStateChange: st.OnStateChange,
		}),
	}
}

// Summarize implements Summarizer.
func (b *BreakerSummarizer) Summarize(ctx context.Context, transcript string) (string, error) {
	out, err := b.cb.Execute(func() (interface{}, error) {
		return b.next.Summarize(ctx, transcript)
	})
	if err != nil {
		if errors.Is(err, gobreaker.ErrOpenState) || errors.Is(err, gobreaker.ErrTooManyRequests) {
			return "", fmt.Errorf("%w: %v", ErrSummarizationFailed, err)
		}
		return "", err
	}
	return out.(string), nil
}

// State returns the breaker state.
func (b *BreakerSummarizer) State() gobreaker.State {
	return b.cb.State()
}
