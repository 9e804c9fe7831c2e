package compaction

import (
	"strings"
	"testing"

	"github.com/youssefsiam38/agentctx/internal/testutil"
	"github.com/youssefsiam38/agentctx/types"
)

func TestCompressToolResult(t *testing.T) {
	tests := []struct {
		name   string
		text   string
		maxLen int
		want   string
	}{
		{
			name:   "short text untouched",
			text:   "ok",
			maxLen: 10,
			want:   "ok",
		},
		{
			name:   "plain text truncated",
			text:   strings.Repeat("a", 20),
			maxLen: 10,
			want:   "aaaaaaa...",
		},
		{
			name:   "array keeps first element",
			text:   `[{"id":1,"name":"a"},{"id":2},{"id":3},{"id":4},{"id":5}]`,
			maxLen: 50,
			want:   `[{"id":1,"name":"a"}, "... +4 more items"]`,
		},
		{
			name:   "object keeps first three keys in order",
			text:   "{\n    \"z\": 1,\n    \"a\": 2,\n    \"m\": 3,\n    \"b\": 4,\n    \"c\": 5,\n    \"d\": 6,\n    \"e\": 7\n}",
			maxLen: 60,
			want:   `{"z": 1, "a": 2, "m": 3, "...": "+4 more keys"}`,
		},
		{
			name:   "invalid json falls back to truncation",
			text:   `{"broken": ` + strings.Repeat("x", 30),
			maxLen: 15,
			want:   `{"broken": x...`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CompressToolResult(tt.text, tt.maxLen)
			if got != tt.want {
				t.Errorf("CompressToolResult() = %q, want %q", got, tt.want)
			}
			if len(got) > tt.maxLen {
				t.Errorf("len = %d exceeds maxLen %d", len(got), tt.maxLen)
			}
		})
	}
}

func TestTruncateKeepsUTF8Valid(t *testing.T) {
	got := truncate("héllo wörld", 5)
	if !strings.HasSuffix(got, "...") || len(got) > 5 {
		t.Errorf("truncate() = %q", got)
	}
	if got != "h..." {
		t.Errorf("truncate() = %q, want %q", got, "h...")
	}
}

func TestRemoveRedundancy(t *testing.T) {
	a := testutil.Msg(types.RoleUser, "How do I reset my password?", 0)
	b := testutil.Msg(types.RoleAssistant, "Use the settings page.", 1)
	dup := testutil.Msg(types.RoleUser, "  how do I reset   my PASSWORD? ", 2)
	tool1 := types.Message{Role: types.RoleUser, Blocks: []types.ContentBlock{types.ToolResultBlock("1", "done", false)}}
	tool2 := types.Message{Role: types.RoleUser, Blocks: []types.ContentBlock{types.ToolResultBlock("2", "done", false)}}

	got := RemoveRedundancy([]types.Message{a, b, dup, tool1, tool2})

	if len(got) != 4 {
		t.Fatalf("got %d messages, want 4", len(got))
	}
	if got[0].ID != a.ID || got[1].ID != b.ID {
		t.Errorf("first occurrences should be kept in order")
	}
	if testutil.Contains(got, dup.ID) {
		t.Errorf("duplicate was not removed")
	}
}
