package strategy

import (
	"context"
	"testing"

	"github.com/google/uuid"

	"github.com/youssefsiam38/agentctx/compaction"
	"github.com/youssefsiam38/agentctx/internal/testutil"
	"github.com/youssefsiam38/agentctx/retrieval"
	"github.com/youssefsiam38/agentctx/storage"
	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
	"github.com/youssefsiam38/agentctx/window"
)

func testWindow() window.Config {
	return window.Config{
		MaxTokens:            2000,
		TargetTokens:         1000,
		PreserveMessages:     3,
		CompressionThreshold: 800,
		RetrievalThreshold:   600,
	}
}

func newOrchestrator(t *testing.T, cfg window.Config, store storage.MessageStore) *Orchestrator {
	t.Helper()
	w, err := window.NewManager(cfg)
	if err != nil {
		t.Fatalf("NewManager() error = %v", err)
	}
	c, err := compaction.New(nil, nil, nil)
	if err != nil {
		t.Fatalf("compaction.New() error = %v", err)
	}
	var r *retrieval.Retriever
	if store != nil {
		r = retrieval.New(store, nil)
	}
	o, err := New(w, c, r, nil)
	if err != nil {
		t.Fatalf("New() error = %v", err)
	}
	return o
}

func assertTailPreserved(t *testing.T, in, out []types.Message, n int) {
	t.Helper()
	if len(out) < n {
		t.Fatalf("output has %d messages, want at least %d", len(out), n)
	}
	tailIn := in[len(in)-n:]
	tailOut := out[len(out)-n:]
	for i := range tailIn {
		if tailIn[i].ID != tailOut[i].ID || tailIn[i].Content != tailOut[i].Content {
			t.Errorf("preserved message %d altered or missing", i)
		}
	}
}

func TestNewRequiresWindow(t *testing.T) {
	if _, err := New(nil, nil, nil, nil); err == nil {
		t.Error("New(nil) should fail")
	}
}

func TestParseKind(t *testing.T) {
	for _, k := range []Kind{SlidingWindow, Summarization, RetrievalAugmented, Hybrid} {
		got, err := ParseKind(k.String())
		if err != nil || got != k {
			t.Errorf("ParseKind(%q) = %v, %v", k.String(), got, err)
		}
	}
	if _, err := ParseKind("magic"); err == nil {
		t.Error("ParseKind(magic) should fail")
	}
}

func TestSlidingWindowKind(t *testing.T) {
	o := newOrchestrator(t, testWindow(), nil)
	msgs := testutil.Conversation(20, 60)

	out := o.Apply(context.Background(), msgs, Options{Kind: SlidingWindow})

	if out.TokenCount > 1000 {
		t.Errorf("TokenCount = %d, want <= 1000", out.TokenCount)
	}
	if len(out.Messages) != 16 || out.Dropped != 4 {
		t.Errorf("kept %d dropped %d, want 16 and 4", len(out.Messages), out.Dropped)
	}
	assertTailPreserved(t, msgs, out.Messages, 3)
}

func TestSummarizationKind(t *testing.T) {
	msgs := testutil.Conversation(20, 60)

	t.Run("compresses when needed", func(t *testing.T) {
		o := newOrchestrator(t, testWindow(), nil)
		out := o.Apply(context.Background(), msgs, Options{Kind: Summarization, EnableCompression: true})

		if len(out.Applied) != 1 || out.Applied[0] != Summarization {
			t.Fatalf("Applied = %v, want [summarization]", out.Applied)
		}
		if out.TokenCount >= tokens.Messages(msgs) {
			t.Errorf("TokenCount = %d, not smaller than input", out.TokenCount)
		}
		if !out.Messages[0].Compressed {
			t.Errorf("first message should be the summary")
		}
		assertTailPreserved(t, msgs, out.Messages, 3)
	})

	t.Run("falls back without compression", func(t *testing.T) {
		o := newOrchestrator(t, testWindow(), nil)
		out := o.Apply(context.Background(), msgs, Options{Kind: Summarization})
		if len(out.Applied) != 1 || out.Applied[0] != SlidingWindow {
			t.Errorf("Applied = %v, want [sliding-window]", out.Applied)
		}
	})

	t.Run("falls back when under threshold", func(t *testing.T) {
		o := newOrchestrator(t, testWindow(), nil)
		short := testutil.Conversation(5, 60)
		out := o.Apply(context.Background(), short, Options{Kind: Summarization, EnableCompression: true})
		if out.Applied[0] != SlidingWindow || len(out.Messages) != 5 {
			t.Errorf("got %v with %d messages", out.Applied, len(out.Messages))
		}
	})
}

func retrievalFixture(t *testing.T) ([]types.Message, *storage.MemoryStore) {
	t.Helper()
	msgs := testutil.Conversation(20, 60)
	msgs[2].Content = "the database migration failed with error 42"
	msgs[19].Content = "why did the database migration fail again?"

	store := storage.NewMemoryStore()
	if err := store.AppendMessages(context.Background(), "conv", msgs); err != nil {
		t.Fatal(err)
	}
	return msgs, store
}

func TestRetrievalAugmentedKind(t *testing.T) {
	msgs, store := retrievalFixture(t)
	o := newOrchestrator(t, testWindow(), store)

	out := o.Apply(context.Background(), msgs, Options{
		Kind:            RetrievalAugmented,
		EnableRetrieval: true,
		ConversationID:  "conv",
	})

	if len(out.Applied) != 1 || out.Applied[0] != RetrievalAugmented {
		t.Fatalf("Applied = %v, want [retrieval-augmented]", out.Applied)
	}
	want := []types.Message{msgs[2], msgs[17], msgs[18], msgs[19]}
	if !testutil.SameIDs(out.Messages, want) {
		t.Errorf("got %d messages, want relevant history plus recent tail", len(out.Messages))
	}
	if !testutil.Chronological(out.Messages) {
		t.Errorf("output not chronological")
	}
	if out.Dropped != 16 {
		t.Errorf("Dropped = %d, want 16", out.Dropped)
	}
}

func TestRetrievalAugmentedWithoutIDs(t *testing.T) {
	msgs := testutil.Conversation(20, 60)
	msgs[2].Content = "the database migration failed with error 42"
	msgs[19].Content = "why did the database migration fail again?"
	for i := range msgs {
		msgs[i].ID = uuid.Nil
	}
	store := storage.NewMemoryStore()
	if err := store.AppendMessages(context.Background(), "conv", msgs); err != nil {
		t.Fatal(err)
	}
	o := newOrchestrator(t, testWindow(), store)

	out := o.Apply(context.Background(), msgs, Options{
		Kind:            RetrievalAugmented,
		EnableRetrieval: true,
		ConversationID:  "conv",
	})

	if len(out.Applied) != 1 || out.Applied[0] != RetrievalAugmented {
		t.Fatalf("Applied = %v, want [retrieval-augmented]", out.Applied)
	}
	if len(out.Messages) != 4 {
		t.Fatalf("got %d messages, want relevant history plus recent tail", len(out.Messages))
	}
	if out.Messages[0].Content != msgs[2].Content {
		t.Errorf("first message = %q, want the relevant history", out.Messages[0].Content)
	}
	assertTailPreserved(t, msgs, out.Messages, 3)
	if out.Dropped != 16 {
		t.Errorf("Dropped = %d, want 16", out.Dropped)
	}
}

func TestRetrievalAugmentedFallsBack(t *testing.T) {
	msgs, store := retrievalFixture(t)
	tests := []struct {
		name  string
		store storage.MessageStore
		opts  Options
	}{
		{"retrieval disabled", store, Options{Kind: RetrievalAugmented, ConversationID: "conv"}},
		{"no conversation", store, Options{Kind: RetrievalAugmented, EnableRetrieval: true}},
		{"no retriever", nil, Options{Kind: RetrievalAugmented, EnableRetrieval: true, ConversationID: "conv"}},
		{"nothing relevant", storage.NewMemoryStore(), Options{Kind: RetrievalAugmented, EnableRetrieval: true, ConversationID: "conv"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrchestrator(t, testWindow(), tt.store)
			out := o.Apply(context.Background(), msgs, tt.opts)
			if len(out.Applied) != 1 || out.Applied[0] != SlidingWindow {
				t.Errorf("Applied = %v, want [sliding-window]", out.Applied)
			}
			assertTailPreserved(t, msgs, out.Messages, 3)
		})
	}
}

func TestHybridUnderThresholdIsUnchanged(t *testing.T) {
	o := newOrchestrator(t, testWindow(), nil)
	msgs := testutil.Conversation(10, 60)

	out := o.Apply(context.Background(), msgs, Options{Kind: Hybrid, EnableCompression: true})

	if !testutil.SameIDs(out.Messages, msgs) {
		t.Errorf("conversation under threshold was modified")
	}
	if len(out.Applied) != 0 || out.Dropped != 0 {
		t.Errorf("Applied = %v Dropped = %d, want nothing", out.Applied, out.Dropped)
	}
}

func TestHybridRetrievalThenWindow(t *testing.T) {
	msgs, store := retrievalFixture(t)
	o := newOrchestrator(t, testWindow(), store)

	out := o.Apply(context.Background(), msgs, Options{
		Kind:              Hybrid,
		EnableCompression: true,
		EnableRetrieval:   true,
		ConversationID:    "conv",
	})

	// Retrieval brings the total under the compression threshold.
	want := []Kind{RetrievalAugmented, SlidingWindow}
	if len(out.Applied) != len(want) || out.Applied[0] != want[0] || out.Applied[1] != want[1] {
		t.Errorf("Applied = %v, want %v", out.Applied, want)
	}
	if !testutil.Contains(out.Messages, msgs[2].ID) {
		t.Errorf("relevant history missing")
	}
	assertTailPreserved(t, msgs, out.Messages, 3)
}

func TestHybridLongConversation(t *testing.T) {
	cfg := window.Config{
		MaxTokens:            60000,
		TargetTokens:         20000,
		PreserveMessages:     10,
		CompressionThreshold: 15000,
		RetrievalThreshold:   10000,
	}
	msgs := testutil.Conversation(500, 100)
	if got := tokens.Messages(msgs); got != 50000 {
		t.Fatalf("fixture tokens = %d, want 50000", got)
	}

	tests := []struct {
		name string
		opts Options
	}{
		{"with compression", Options{Kind: Hybrid, EnableCompression: true}},
		{"window only", Options{Kind: Hybrid}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newOrchestrator(t, cfg, nil)
			out := o.Apply(context.Background(), msgs, tt.opts)

			if got := tokens.Messages(out.Messages); got > cfg.TargetTokens {
				t.Errorf("tokens = %d, want <= %d", got, cfg.TargetTokens)
			}
			if out.TokenCount != tokens.Messages(out.Messages) {
				t.Errorf("TokenCount = %d, recount = %d", out.TokenCount, tokens.Messages(out.Messages))
			}
			assertTailPreserved(t, msgs, out.Messages, cfg.PreserveMessages)
			if !testutil.Chronological(out.Messages) {
				t.Errorf("output not chronological")
			}
		})
	}
}

func TestPrepareUsesContextConversation(t *testing.T) {
	msgs, store := retrievalFixture(t)
	o := newOrchestrator(t, testWindow(), store)

	out := o.Prepare(context.Background(), ConversationContext{
		ConversationID: "conv",
		Messages:       msgs,
		Window:         testWindow(),
	}, Options{Kind: RetrievalAugmented, EnableRetrieval: true})

	if out.Applied[0] != RetrievalAugmented {
		t.Errorf("Applied = %v, want retrieval from context conversation id", out.Applied)
	}
}
