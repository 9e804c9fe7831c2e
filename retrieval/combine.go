package retrieval

import (
	"sort"

	"github.com/google/uuid"

	"github.com/youssefsiam38/agentctx/types"
)

// Combine merges retrieved history with the always-kept recent messages.
// Duplicates by ID or by normalized content are dropped, with recent
// messages winning, and the result is ordered by timestamp. Messages
// without an ID are only compared by content. Retrieved messages are older
// than recent ones on ties.
func Combine(recent, retrieved []types.Message) []types.Message {
	type entry struct {
		msg    types.Message
		recent bool
		order  int
	}

	seenKeys := make(map[[32]byte]struct{}, len(recent)+len(retrieved))
	seenIDs := make(map[uuid.UUID]struct{}, len(recent)+len(retrieved))
	entries := make([]entry, 0, len(recent)+len(retrieved))

	add := func(m types.Message, isRecent bool, order int) {
		hasID := m.ID != uuid.Nil
		if _, dup := seenIDs[m.ID]; hasID && dup {
			return
		}
		if key, ok := m.ContentKey(); ok && !m.HasToolUse() {
			if _, dup := seenKeys[key]; dup {
				return
			}
			seenKeys[key] = struct{}{}
		}
		if hasID {
			seenIDs[m.ID] = struct{}{}
		}
		entries = append(entries, entry{msg: m, recent: isRecent, order: order})
	}
	for i, m := range recent {
		add(m, true, i)
	}
	for i, m := range retrieved {
		add(m, false, i)
	}

	sort.SliceStable(entries, func(a, b int) bool {
		ea, eb := entries[a], entries[b]
		if !ea.msg.Timestamp.Equal(eb.msg.Timestamp) {
			return ea.msg.Timestamp.Before(eb.msg.Timestamp)
		}
		if ea.recent != eb.recent {
			return !ea.recent
		}
		return ea.order < eb.order
	})

	out := make([]types.Message, len(entries))
	for i, e := range entries {
		out[i] = e.msg
	}
	return out
}
