package types

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestMessageHelpersReturnCopies(t *testing.T) {
	orig := NewUserMessage("hello")
	withImp := orig.WithImportance(0.7)

	if orig.Importance != nil {
		t.Fatalf("WithImportance mutated the original message")
	}
	if withImp.Importance == nil || *withImp.Importance != 0.7 {
		t.Errorf("Importance = %v, want 0.7", withImp.Importance)
	}
	if withImp.ID != orig.ID {
		t.Errorf("copy should keep the ID")
	}
}

func TestWithIDs(t *testing.T) {
	kept := NewUserMessage("has an id")
	msgs := []Message{{Role: RoleUser, Content: "a"}, kept, {Role: RoleAssistant, Content: "b"}}

	got := WithIDs(msgs)

	if msgs[0].ID != uuid.Nil {
		t.Fatalf("WithIDs mutated the input slice")
	}
	if got[1].ID != kept.ID {
		t.Errorf("existing ID = %s, want %s", got[1].ID, kept.ID)
	}
	if got[0].ID == uuid.Nil || got[2].ID == uuid.Nil || got[0].ID == got[2].ID {
		t.Errorf("IDs = %s, %s, want distinct fresh IDs", got[0].ID, got[2].ID)
	}
	if WithIDs(nil) != nil {
		t.Errorf("WithIDs(nil) should be nil")
	}
}

func TestCloneDoesNotShareSlices(t *testing.T) {
	m := NewAssistantMessage("x")
	m.ToolsUsed = []string{"search"}
	c := m.Clone()
	c.ToolsUsed[0] = "other"
	if m.ToolsUsed[0] != "search" {
		t.Errorf("Clone shares ToolsUsed backing array")
	}
}

func TestHasToolUse(t *testing.T) {
	tests := []struct {
		name string
		msg  Message
		want bool
	}{
		{"plain", NewUserMessage("hi"), false},
		{"tools used", Message{ToolsUsed: []string{"a"}}, true},
		{"tool_use block", Message{Blocks: []ContentBlock{ToolUseBlock("1", "a", json.RawMessage(`{}`))}}, true},
		{"tool_result block", Message{Blocks: []ContentBlock{ToolResultBlock("1", "ok", false)}}, true},
		{"text block", Message{Blocks: []ContentBlock{TextBlock("hi")}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.msg.HasToolUse(); got != tt.want {
				t.Errorf("HasToolUse() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestTextFallsBackToBlocks(t *testing.T) {
	m := Message{Blocks: []ContentBlock{
		TextBlock("first"),
		ThinkingBlock("hidden", "sig"),
		ToolResultBlock("1", "second", false),
	}}
	if got, want := m.Text(), "first\nsecond"; got != want {
		t.Errorf("Text() = %q, want %q", got, want)
	}
}

func TestNewToolResultMessage(t *testing.T) {
	msg := NewToolResultMessage([]ToolExecutionResult{
		{ID: "b", Name: "fetch", Success: false, ErrorMessage: "boom"},
		{ID: "a", Name: "fetch", Success: true, Data: "ok"},
	})

	if msg.Role != RoleUser {
		t.Errorf("Role = %s, want user", msg.Role)
	}
	if len(msg.Blocks) != 2 {
		t.Fatalf("len(Blocks) = %d, want 2", len(msg.Blocks))
	}
	if msg.Blocks[0].ToolResultID != "b" || !msg.Blocks[0].IsError || msg.Blocks[0].ToolContent != "boom" {
		t.Errorf("first block = %+v", msg.Blocks[0])
	}
	if msg.Blocks[1].ToolResultID != "a" || msg.Blocks[1].IsError {
		t.Errorf("second block = %+v", msg.Blocks[1])
	}
	if len(msg.ToolsUsed) != 1 || msg.ToolsUsed[0] != "fetch" {
		t.Errorf("ToolsUsed = %v, want [fetch]", msg.ToolsUsed)
	}
	if !msg.HasToolError() {
		t.Errorf("HasToolError() = false, want true")
	}
}

func TestContentKey(t *testing.T) {
	a := NewUserMessage("  Hello   World ")
	b := NewAssistantMessage("hello world")
	ka, okA := a.ContentKey()
	kb, okB := b.ContentKey()
	if !okA || !okB || ka != kb {
		t.Errorf("normalized keys differ: %x vs %x", ka, kb)
	}

	long1 := NewUserMessage(strings.Repeat("a", 100) + "tail one")
	long2 := NewUserMessage(strings.Repeat("a", 100) + "tail two")
	k1, _ := long1.ContentKey()
	k2, _ := long2.ContentKey()
	if k1 != k2 {
		t.Errorf("keys should only consider the first %d characters", ContentKeyPrefix)
	}

	if _, ok := (Message{Blocks: []ContentBlock{ToolUseBlock("1", "x", nil)}}).ContentKey(); ok {
		t.Errorf("message without text should have no content key")
	}
}
