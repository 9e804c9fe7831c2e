package storage

import (
	"context"
	"encoding/json"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/youssefsiam38/agentctx/internal/testutil"
	"github.com/youssefsiam38/agentctx/types"
)

// runStoreContract exercises the behaviour every Store must share.
func runStoreContract(t *testing.T, s Store) {
	ctx := context.Background()
	conv := "conv-" + testutil.UniquePrefix(t)

	t.Run("append and list keep order and fields", func(t *testing.T) {
		first := testutil.Msg(types.RoleUser, "look up the weather", 0).WithImportance(0.5)
		second := types.Message{
			ID:        testutil.Msg(types.RoleAssistant, "", 1).ID,
			Role:      types.RoleAssistant,
			Timestamp: first.Timestamp.Add(time.Second),
			Blocks: []types.ContentBlock{
				types.TextBlock("checking"),
				types.ToolUseBlock("tu_1", "weather", json.RawMessage(`{"city":"Paris"}`)),
			},
			ToolsUsed: []string{"weather"},
		}
		summary := types.NewSummaryMessage("earlier chat", "3 messages", 0.9).WithTokenEstimate(12)

		if err := s.AppendMessages(ctx, conv, []types.Message{first, second}); err != nil {
			t.Fatalf("AppendMessages() error = %v", err)
		}
		if err := s.AppendMessages(ctx, conv, []types.Message{summary}); err != nil {
			t.Fatalf("AppendMessages() error = %v", err)
		}

		got, err := s.ListMessages(ctx, conv)
		if err != nil {
			t.Fatalf("ListMessages() error = %v", err)
		}
		if len(got) != 3 {
			t.Fatalf("got %d messages, want 3", len(got))
		}
		if got[0].ID != first.ID || got[1].ID != second.ID || got[2].ID != summary.ID {
			t.Errorf("messages out of append order")
		}
		if got[0].Importance == nil || *got[0].Importance != 0.5 {
			t.Errorf("importance not round-tripped: %v", got[0].Importance)
		}
		if len(got[1].Blocks) != 2 || got[1].Blocks[1].ToolName != "weather" {
			t.Errorf("blocks not round-tripped: %+v", got[1].Blocks)
		}
		if len(got[1].ToolsUsed) != 1 || got[1].ToolsUsed[0] != "weather" {
			t.Errorf("tools_used not round-tripped: %v", got[1].ToolsUsed)
		}
		if !got[2].Compressed || got[2].SummaryOf != "3 messages" {
			t.Errorf("summary flags not round-tripped: %+v", got[2])
		}
		if got[2].TokenEstimate == nil || *got[2].TokenEstimate != 12 {
			t.Errorf("token estimate not round-tripped: %v", got[2].TokenEstimate)
		}
	})

	t.Run("unknown conversation is empty", func(t *testing.T) {
		got, err := s.ListMessages(ctx, conv+"-missing")
		if err != nil {
			t.Fatalf("ListMessages() error = %v", err)
		}
		if len(got) != 0 {
			t.Errorf("got %d messages, want 0", len(got))
		}
	})

	t.Run("append requires conversation", func(t *testing.T) {
		err := s.AppendMessages(ctx, "", []types.Message{types.NewUserMessage("x")})
		if !errors.Is(err, ErrConversationRequired) {
			t.Errorf("error = %v, want ErrConversationRequired", err)
		}
	})

	t.Run("ledger", func(t *testing.T) {
		user := "user-" + conv

		if _, ok, err := s.GetUserBudget(ctx, user); err != nil || ok {
			t.Fatalf("GetUserBudget() = ok %v, err %v; want unset", ok, err)
		}
		if err := s.SetUserBudget(ctx, user, 500); err != nil {
			t.Fatalf("SetUserBudget() error = %v", err)
		}
		if err := s.SetUserBudget(ctx, user, 1000); err != nil {
			t.Fatalf("SetUserBudget() overwrite error = %v", err)
		}
		limit, ok, err := s.GetUserBudget(ctx, user)
		if err != nil || !ok || limit != 1000 {
			t.Errorf("GetUserBudget() = %v, %v, %v; want 1000, true, nil", limit, ok, err)
		}

		if err := s.RecordUsage(ctx, user, 1200, 2.5); err != nil {
			t.Fatalf("RecordUsage() error = %v", err)
		}
		if err := s.RecordUsage(ctx, user, 800, 1.5); err != nil {
			t.Fatalf("RecordUsage() error = %v", err)
		}
		spent, err := s.GetMonthlySpend(ctx, user, time.Now())
		if err != nil {
			t.Fatalf("GetMonthlySpend() error = %v", err)
		}
		if spent != 4 {
			t.Errorf("spent = %v, want 4", spent)
		}
		prev, err := s.GetMonthlySpend(ctx, user, time.Now().AddDate(0, -2, 0))
		if err != nil || prev != 0 {
			t.Errorf("spend for another month = %v, %v; want 0", prev, err)
		}
	})
}

func TestMemoryStore(t *testing.T) {
	runStoreContract(t, NewMemoryStore())
}

func TestMemoryStoreReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	m := types.NewUserMessage("hi")
	m.ToolsUsed = []string{"a"}
	if err := s.AppendMessages(ctx, "c", []types.Message{m}); err != nil {
		t.Fatal(err)
	}
	got, _ := s.ListMessages(ctx, "c")
	got[0].ToolsUsed[0] = "mutated"
	again, _ := s.ListMessages(ctx, "c")
	if again[0].ToolsUsed[0] != "a" {
		t.Errorf("store leaked internal slice")
	}
}

func TestMemoryStoreAssignsIDs(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	msgs := []types.Message{
		{Role: types.RoleUser, Content: "first"},
		{Role: types.RoleAssistant, Content: "second"},
	}
	if err := s.AppendMessages(ctx, "c", msgs); err != nil {
		t.Fatal(err)
	}
	got, _ := s.ListMessages(ctx, "c")
	if len(got) != 2 {
		t.Fatalf("got %d messages, want 2", len(got))
	}
	if got[0].ID == uuid.Nil || got[1].ID == uuid.Nil || got[0].ID == got[1].ID {
		t.Errorf("IDs = %s, %s, want distinct non-nil IDs", got[0].ID, got[1].ID)
	}
}

func TestMemoryStoreMonthBuckets(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	jan := time.Date(2024, 1, 15, 0, 0, 0, 0, time.UTC)
	feb := time.Date(2024, 2, 15, 0, 0, 0, 0, time.UTC)

	s.SetClock(func() time.Time { return jan })
	_ = s.RecordUsage(ctx, "u", 100, 10)
	s.SetClock(func() time.Time { return feb })
	_ = s.RecordUsage(ctx, "u", 50, 3)

	if got, _ := s.GetMonthlySpend(ctx, "u", jan); got != 10 {
		t.Errorf("january spend = %v, want 10", got)
	}
	if got, _ := s.GetMonthlySpend(ctx, "u", feb); got != 3 {
		t.Errorf("february spend = %v, want 3", got)
	}
	if got := s.MonthlyTokens("u", jan); got != 100 {
		t.Errorf("january tokens = %d, want 100", got)
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "agentctx.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()
	runStoreContract(t, s)
}

func TestPostgresStore(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	s := NewPostgresStore(db.Pool)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}
	if err := db.CleanTables(ctx, "agentctx_messages", "agentctx_usage", "agentctx_user_budgets"); err != nil {
		t.Fatalf("CleanTables() error = %v", err)
	}
	runStoreContract(t, s)
}

func TestPostgresStoreTransaction(t *testing.T) {
	db := testutil.NewTestDB(t)
	ctx := context.Background()

	s := NewPostgresStore(db.Pool)
	if err := s.Migrate(ctx); err != nil {
		t.Fatalf("Migrate() error = %v", err)
	}

	tx, err := db.Pool.Begin(ctx)
	if err != nil {
		t.Fatalf("Begin() error = %v", err)
	}
	txCtx := WithTx(ctx, tx)
	conv := "tx-" + testutil.UniquePrefix(t)
	if err := s.AppendMessages(txCtx, conv, []types.Message{types.NewUserMessage("inside tx")}); err != nil {
		t.Fatalf("AppendMessages() error = %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("Rollback() error = %v", err)
	}

	got, err := s.ListMessages(ctx, conv)
	if err != nil {
		t.Fatalf("ListMessages() error = %v", err)
	}
	if len(got) != 0 {
		t.Errorf("rolled back messages are visible: %d", len(got))
	}
}
