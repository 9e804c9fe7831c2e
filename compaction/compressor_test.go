package compaction

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/sony/gobreaker"

	"github.com/youssefsiam38/agentctx/internal/testutil"
	"github.com/youssefsiam38/agentctx/types"
)

func routine(i int) types.Message {
	role := types.RoleUser
	if i%2 == 1 {
		role = types.RoleAssistant
	}
	return testutil.Msg(role, fmt.Sprintf("message %d: a routine exchange about the weather forecast for the coming week", i), i)
}

func newCompressor(t *testing.T, strategy Strategy, s Summarizer) *Compressor {
	t.Helper()
	c, err := New(&Config{Strategy: strategy}, s, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return c
}

func failingSummarizer(calls *int32) Summarizer {
	return SummarizerFunc(func(context.Context, string) (string, error) {
		if calls != nil {
			atomic.AddInt32(calls, 1)
		}
		return "", errors.New("summarizer unreachable")
	})
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name    string
		cfg     Config
		wantErr bool
	}{
		{"defaults", *DefaultConfig(), false},
		{"unknown strategy", Config{Strategy: "magic"}, true},
		{"prefix longer than long threshold", Config{Strategy: StrategySimple, LongMessageChars: 10, LongMessagePrefix: 20}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := tt.cfg
			if cfg.Strategy != "magic" {
				cfg.ApplyDefaults()
			}
			err := cfg.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && !errors.Is(err, ErrInvalidConfig) {
				t.Errorf("error should wrap ErrInvalidConfig")
			}
		})
	}
}

func TestSimplePreservesErrorAndShortMessages(t *testing.T) {
	msgs := make([]types.Message, 0, 100)
	for i := 0; i < 100; i++ {
		msgs = append(msgs, routine(i))
	}
	errMsg := testutil.Msg(types.RoleAssistant, "the deploy hit an error on the second server", 40)
	short := testutil.Msg(types.RoleUser, "ok, thanks", 70)
	msgs[40] = errMsg
	msgs[70] = short

	c := newCompressor(t, StrategySimple, nil)
	res := c.Simple(msgs)

	if len(res.Messages) != 3 {
		t.Fatalf("got %d messages, want summary + 2 preserved", len(res.Messages))
	}
	if !res.Messages[0].Compressed {
		t.Errorf("first message should be the synthetic summary")
	}
	if res.Messages[1].ID != errMsg.ID || res.Messages[1].Content != errMsg.Content {
		t.Errorf("error message not preserved verbatim: %+v", res.Messages[1])
	}
	if res.Messages[2].ID != short.ID || res.Messages[2].Content != short.Content {
		t.Errorf("short message not preserved verbatim: %+v", res.Messages[2])
	}
	if res.CompressedTokens > res.OriginalTokens {
		t.Errorf("CompressedTokens %d > OriginalTokens %d", res.CompressedTokens, res.OriginalTokens)
	}
	if res.CompressionRatio <= 0 {
		t.Errorf("CompressionRatio = %v, want > 0", res.CompressionRatio)
	}
	if imp := res.Messages[0].Importance; imp == nil || *imp < 0.8 {
		t.Errorf("summary importance = %v, want high", imp)
	}
}

func TestSimpleExtractsKeySentences(t *testing.T) {
	msgs := []types.Message{
		testutil.Msg(types.RoleAssistant, "We looked at several options for the cache layer. The solution was to shard by user id. Nothing else came up today.", 0),
		routine(1),
		routine(2),
	}
	c := newCompressor(t, StrategySimple, nil)
	res := c.Simple(msgs)

	if !strings.Contains(res.SummaryText, "The solution was to shard by user id.") {
		t.Errorf("summary missing key sentence: %q", res.SummaryText)
	}
	if strings.Contains(res.SummaryText, "Nothing else came up") {
		t.Errorf("summary kept a non-key sentence: %q", res.SummaryText)
	}
}

func TestSimpleNeverGrows(t *testing.T) {
	// One compressible message just over the short threshold costs less than
	// the summary that would replace it.
	msgs := []types.Message{testutil.Msg(types.RoleUser, "a routine exchange about the weather forecast for today", 0)}
	c := newCompressor(t, StrategySimple, nil)
	res := c.Simple(msgs)

	if res.CompressedTokens > res.OriginalTokens {
		t.Errorf("CompressedTokens %d > OriginalTokens %d", res.CompressedTokens, res.OriginalTokens)
	}
	if !testutil.SameIDs(res.Messages, msgs) {
		t.Errorf("a summary that is not smaller should return the original messages")
	}
	if res.CompressionRatio != 0 {
		t.Errorf("CompressionRatio = %v, want 0", res.CompressionRatio)
	}
}

func TestSimpleIsDeterministic(t *testing.T) {
	msgs := []types.Message{routine(0), routine(1), routine(2)}
	c := newCompressor(t, StrategySimple, nil)
	a, b := c.Simple(msgs), c.Simple(msgs)
	if !testutil.SameIDs(a.Messages, b.Messages) || a.SummaryText != b.SummaryText {
		t.Errorf("Simple() output differs between runs")
	}
}

func TestSummarizeFallsBackToSimple(t *testing.T) {
	msgs := []types.Message{routine(0), routine(1), routine(2), testutil.Msg(types.RoleUser, "hi", 3)}

	var calls int32
	c := newCompressor(t, StrategyAISummarization, failingSummarizer(&calls))
	got := c.Compress(context.Background(), msgs)
	want := c.Simple(msgs)

	if calls != 1 {
		t.Errorf("summarizer called %d times, want 1", calls)
	}
	if !testutil.SameIDs(got.Messages, want.Messages) || got.SummaryText != want.SummaryText {
		t.Errorf("fallback output differs from simple output")
	}
}

func TestSummarizeWithoutSummarizer(t *testing.T) {
	msgs := []types.Message{routine(0), routine(1), routine(2)}
	c := newCompressor(t, StrategyAISummarization, nil)
	got := c.Compress(context.Background(), msgs)
	if got.SummaryText != c.Simple(msgs).SummaryText {
		t.Errorf("missing summarizer should degrade to simple")
	}
}

func TestSummarizeUsesSummary(t *testing.T) {
	msgs := []types.Message{routine(0), routine(1), routine(2), testutil.Msg(types.RoleUser, "fix the bug", 3)}
	var transcript string
	s := SummarizerFunc(func(_ context.Context, tr string) (string, error) {
		transcript = tr
		return "  They talked about the weather.  ", nil
	})

	c := newCompressor(t, StrategyAISummarization, s)
	res := c.Compress(context.Background(), msgs)

	if res.SummaryText != "They talked about the weather." {
		t.Errorf("SummaryText = %q", res.SummaryText)
	}
	if len(res.Messages) != 2 || res.Messages[1].ID != msgs[3].ID {
		t.Fatalf("expected [summary, preserved], got %d messages", len(res.Messages))
	}
	if !strings.HasPrefix(transcript, "user: message 0") {
		t.Errorf("transcript = %q", transcript)
	}
	if strings.Contains(transcript, "fix the bug") {
		t.Errorf("preserved message leaked into the transcript")
	}
}

func TestHybrid(t *testing.T) {
	var msgs []types.Message
	for i := 0; i < 10; i++ {
		msgs = append(msgs, routine(i))
		msgs = append(msgs, testutil.Msg(types.RoleUser, fmt.Sprintf("short %d", i), 100+i))
	}

	t.Run("escalates when simple result is long", func(t *testing.T) {
		var calls int32
		s := SummarizerFunc(func(context.Context, string) (string, error) {
			atomic.AddInt32(&calls, 1)
			return "weather talk", nil
		})
		c := newCompressor(t, StrategyHybrid, s)
		res := c.Compress(context.Background(), msgs)
		if calls != 1 {
			t.Errorf("summarizer calls = %d, want 1", calls)
		}
		if res.SummaryText != "weather talk" || res.Strategy != StrategyHybrid {
			t.Errorf("got summary %q strategy %s", res.SummaryText, res.Strategy)
		}
		if len(res.Messages) != 11 {
			t.Errorf("got %d messages, want summary + 10 preserved", len(res.Messages))
		}
	})

	t.Run("keeps simple result on failure", func(t *testing.T) {
		c := newCompressor(t, StrategyHybrid, failingSummarizer(nil))
		res := c.Compress(context.Background(), msgs)
		if res.SummaryText != c.Simple(msgs).SummaryText {
			t.Errorf("hybrid failure should keep the simple summary")
		}
	})

	t.Run("skips summarizer for short results", func(t *testing.T) {
		var calls int32
		c := newCompressor(t, StrategyHybrid, failingSummarizer(&calls))
		c.Compress(context.Background(), []types.Message{routine(0), routine(1), routine(2)})
		if calls != 0 {
			t.Errorf("summarizer called %d times, want 0", calls)
		}
	})
}

func TestBreakerSummarizerOpens(t *testing.T) {
	var calls int32
	b := NewBreakerSummarizer(failingSummarizer(&calls), BreakerSettings{MaxFailures: 2})

	for i := 0; i < 2; i++ {
		if _, err := b.Summarize(context.Background(), "x"); err == nil {
			t.Fatalf("call %d: expected error", i)
		}
	}
	if b.State() != gobreaker.StateOpen {
		t.Fatalf("State() = %s, want open", b.State())
	}

	_, err := b.Summarize(context.Background(), "x")
	if !errors.Is(err, ErrSummarizationFailed) {
		t.Errorf("open breaker error = %v, want ErrSummarizationFailed", err)
	}
	if calls != 2 {
		t.Errorf("wrapped summarizer called %d times, want 2", calls)
	}

	// The compressor still produces the simple result through an open breaker.
	c := newCompressor(t, StrategyAISummarization, b)
	msgs := []types.Message{routine(0), routine(1)}
	if got := c.Compress(context.Background(), msgs); got.SummaryText != c.Simple(msgs).SummaryText {
		t.Errorf("compression through open breaker should match simple")
	}
}
