package retrieval

import (
	"context"
	"errors"
	"math"
	"testing"

	"github.com/google/uuid"

	"github.com/youssefsiam38/agentctx/internal/testutil"
	"github.com/youssefsiam38/agentctx/storage"
	"github.com/youssefsiam38/agentctx/types"
)

type failingStore struct{}

func (failingStore) ListMessages(context.Context, string) ([]types.Message, error) {
	return nil, errors.New("connection refused")
}

func (failingStore) AppendMessages(context.Context, string, []types.Message) error {
	return errors.New("connection refused")
}

func TestKeywords(t *testing.T) {
	got := Keywords("Why did the Database migration fail, and the database?")
	want := []string{"database", "migration", "fail"}
	if len(got) != len(want) {
		t.Fatalf("Keywords() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("Keywords()[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestScore(t *testing.T) {
	q := "database migration failed"
	kw := Keywords(q)
	tests := []struct {
		name    string
		content string
		want    float64
	}{
		{"no overlap", "the weather is nice", 0},
		{"one topic keyword", "the database is fine", 1.0/3 + topicBonus},
		{"two topic keywords", "the migration of the database", 2.0/3 + 2*topicBonus},
		{"full phrase is capped", "The database migration failed at step 3", 1.0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Score(tt.content, kw, q)
			if math.Abs(got-tt.want) > 1e-9 {
				t.Errorf("Score() = %v, want %v", got, tt.want)
			}
			if got < 0 || got > 1 {
				t.Errorf("Score() = %v out of [0,1]", got)
			}
		})
	}
}

func TestScorePlainKeyword(t *testing.T) {
	q := "quarterly invoice totals"
	got := Score("the invoice arrived", Keywords(q), q)
	if math.Abs(got-1.0/3) > 1e-9 {
		t.Errorf("Score() = %v, want %v", got, 1.0/3)
	}
}

func seedStore(t *testing.T) (*storage.MemoryStore, []types.Message) {
	t.Helper()
	msgs := []types.Message{
		testutil.Msg(types.RoleUser, "the database migration failed last night", 0),
		testutil.Msg(types.RoleAssistant, "sunny weather expected tomorrow", 1),
		testutil.Msg(types.RoleUser, "we rolled back the database migration", 2),
		testutil.Msg(types.RoleAssistant, "lunch options near the office", 3),
		testutil.Msg(types.RoleUser, "database migration failed again after the fix", 4),
	}
	s := storage.NewMemoryStore()
	if err := s.AppendMessages(context.Background(), "c1", msgs); err != nil {
		t.Fatal(err)
	}
	return s, msgs
}

func TestRetrieveRelevantContext(t *testing.T) {
	s, msgs := seedStore(t)
	r := New(s, nil)

	res := r.RetrieveRelevantContext(context.Background(), Query{
		ConversationID:    "c1",
		Query:             "database migration failed",
		MinRelevanceScore: 0.3,
		MaxTokens:         1000,
	})

	if len(res.RelevantMessages) != 3 {
		t.Fatalf("got %d messages, want 3", len(res.RelevantMessages))
	}
	wantIDs := []types.Message{msgs[0], msgs[2], msgs[4]}
	if !testutil.SameIDs(res.RelevantMessages, wantIDs) {
		t.Errorf("results not in chronological order")
	}
	if len(res.RelevanceScores) != len(res.RelevantMessages) {
		t.Errorf("scores not parallel to messages")
	}
	if res.EstimatedTokens <= 0 {
		t.Errorf("EstimatedTokens = %d, want > 0", res.EstimatedTokens)
	}
}

func TestRetrieveRespectsTokenBudget(t *testing.T) {
	s, msgs := seedStore(t)
	r := New(s, nil)

	// Only one message fits; the highest scoring one must win.
	res := r.RetrieveRelevantContext(context.Background(), Query{
		ConversationID:    "c1",
		Query:             "database migration failed",
		MinRelevanceScore: 0.3,
		MaxTokens:         16,
	})
	if len(res.RelevantMessages) != 1 {
		t.Fatalf("got %d messages, want 1", len(res.RelevantMessages))
	}
	if res.RelevantMessages[0].ID != msgs[0].ID {
		t.Errorf("expected the full-phrase match to be selected")
	}
	if res.EstimatedTokens > 16 {
		t.Errorf("EstimatedTokens = %d exceeds budget", res.EstimatedTokens)
	}
}

func TestRetrieveExcludesMessagesInContext(t *testing.T) {
	s, msgs := seedStore(t)
	r := New(s, nil)
	res := r.RetrieveRelevantContext(context.Background(), Query{
		ConversationID:    "c1",
		Query:             "database migration failed",
		MinRelevanceScore: 0.3,
		Exclude:           []types.Message{msgs[4]},
	})
	if testutil.Contains(res.RelevantMessages, msgs[4].ID) {
		t.Errorf("excluded message was returned")
	}
}

func TestRetrieveStoreFailureIsEmpty(t *testing.T) {
	r := New(failingStore{}, nil)
	res := r.RetrieveRelevantContext(context.Background(), Query{ConversationID: "c1", Query: "anything"})
	if len(res.RelevantMessages) != 0 || res.EstimatedTokens != 0 {
		t.Errorf("store failure should yield an empty result, got %+v", res)
	}
}

func TestRetrieveWithoutConversation(t *testing.T) {
	s, _ := seedStore(t)
	res := New(s, nil).RetrieveRelevantContext(context.Background(), Query{Query: "database"})
	if len(res.RelevantMessages) != 0 {
		t.Errorf("retrieval without conversation id returned %d messages", len(res.RelevantMessages))
	}
}

func TestCombine(t *testing.T) {
	old := testutil.Msg(types.RoleUser, "the database migration failed", 0)
	mid := testutil.Msg(types.RoleAssistant, "we rolled it back", 5)
	recentDup := testutil.Msg(types.RoleUser, "The  database migration FAILED", 10)
	latest := testutil.Msg(types.RoleAssistant, "retrying now", 11)

	got := Combine([]types.Message{recentDup, latest}, []types.Message{old, mid, latest})

	if len(got) != 3 {
		t.Fatalf("got %d messages, want 3", len(got))
	}
	if testutil.Contains(got, old.ID) {
		t.Errorf("retrieved duplicate of a recent message was kept")
	}
	if !testutil.Chronological(got) {
		t.Errorf("combined result is not chronological")
	}
	if got[0].ID != mid.ID || got[1].ID != recentDup.ID || got[2].ID != latest.ID {
		t.Errorf("unexpected order")
	}
}

func TestCombineWithoutIDs(t *testing.T) {
	strip := func(m types.Message) types.Message {
		m.ID = uuid.Nil
		return m
	}
	old := strip(testutil.Msg(types.RoleUser, "the deploy broke the login page", 0))
	first := strip(testutil.Msg(types.RoleUser, "can you check the logs", 10))
	second := strip(testutil.Msg(types.RoleAssistant, "the logs show a timeout", 11))
	third := strip(testutil.Msg(types.RoleUser, "why did the deploy break login?", 12))

	got := Combine([]types.Message{first, second, third}, []types.Message{old, second})

	if len(got) != 4 {
		t.Fatalf("got %d messages, want 4", len(got))
	}
	want := []string{old.Content, first.Content, second.Content, third.Content}
	for i, m := range got {
		if m.Content != want[i] {
			t.Errorf("got[%d] = %q, want %q", i, m.Content, want[i])
		}
	}
}
