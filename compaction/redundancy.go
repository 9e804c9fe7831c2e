package compaction

import (
	"github.com/youssefsiam38/agentctx/types"
)

// RemoveRedundancy drops messages whose normalized leading content repeats
// an earlier message. The first occurrence wins and order is preserved.
// Messages without text (pure tool traffic) are always kept.
func RemoveRedundancy(msgs []types.Message) []types.Message {
	seen := make(map[[32]byte]struct{}, len(msgs))
	out := make([]types.Message, 0, len(msgs))
	for _, m := range msgs {
		key, ok := m.ContentKey()
		if !ok || m.HasToolUse() {
			out = append(out, m)
			continue
		}
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		out = append(out, m)
	}
	return out
}
