package agentctx

import (
	"context"

	"github.com/youssefsiam38/agentctx/hooks"
	"github.com/youssefsiam38/agentctx/strategy"
	"github.com/youssefsiam38/agentctx/tokens"
	"github.com/youssefsiam38/agentctx/types"
)

// minKeptMessages is the floor of the final truncation: the newest message
// is always sent.
const minKeptMessages = 1

// prepare turns the live history into the message set of the next model
// call: strategy first, then the hard budget, then pairing repair.
func (a *Agent) prepare(ctx context.Context, conversationID string, history []types.Message) []types.Message {
	cfg := a.config
	original := tokens.Messages(history)

	out := a.orchestrator.Prepare(ctx, strategy.ConversationContext{
		ConversationID: conversationID,
		Messages:       history,
		Window:         cfg.window,
	}, strategy.Options{
		Kind:              cfg.strategy,
		EnableCompression: cfg.enableCompression,
		EnableRetrieval:   cfg.enableRetrieval,
	})

	overhead := tokens.Request(cfg.systemPrompt, a.toolRegistry.Definitions(), nil)
	msgs := a.enforcer.TruncateToFitWithOverhead(out.Messages, minKeptMessages, overhead)
	msgs = repairToolPairs(msgs)

	applied := make([]string, len(out.Applied))
	for i, k := range out.Applied {
		applied[i] = k.String()
	}
	if err := cfg.hooks.TriggerStrategyApplied(ctx, hooks.StrategyApplied{
		ConversationID: conversationID,
		Strategies:     applied,
		OriginalTokens: original,
		FinalTokens:    tokens.Messages(msgs),
		Dropped:        len(history) - len(msgs),
	}); err != nil {
		cfg.logger.Warn("strategy hook failed", "conversation_id", conversationID, "error", err)
	}
	return msgs
}

// repairToolPairs makes a prepared message set acceptable to the engine.
// Window and retrieval stages may separate a tool_use turn from its
// tool_result turn; unpaired tool blocks are removed from copies of the
// affected messages, messages left empty are dropped, and the set is
// trimmed to start with a user turn.
func repairToolPairs(msgs []types.Message) []types.Message {
	out := make([]types.Message, 0, len(msgs))
	for i, m := range msgs {
		switch {
		case m.Role == types.RoleAssistant && len(toolUseIDs(m)) > 0:
			var next *types.Message
			if i+1 < len(msgs) {
				next = &msgs[i+1]
			}
			if !answers(next, toolUseIDs(m)) {
				m = withoutBlocks(m, types.BlockToolUse)
			}
		case m.Role == types.RoleUser && len(toolResultIDs(m)) > 0:
			var prev *types.Message
			if len(out) > 0 {
				prev = &out[len(out)-1]
			}
			if prev == nil || prev.Role != types.RoleAssistant || !answers(&m, toolUseIDs(*prev)) {
				m = withoutBlocks(m, types.BlockToolResult)
			}
		}
		if isEmpty(m) {
			continue
		}
		out = append(out, m)
	}

	for len(out) > 0 && out[0].Role != types.RoleUser {
		out = out[1:]
	}
	return out
}

func toolUseIDs(m types.Message) []string {
	var ids []string
	for _, b := range m.Blocks {
		if b.Type == types.BlockToolUse {
			ids = append(ids, b.ToolUseID)
		}
	}
	return ids
}

func toolResultIDs(m types.Message) []string {
	var ids []string
	for _, b := range m.Blocks {
		if b.Type == types.BlockToolResult {
			ids = append(ids, b.ToolResultID)
		}
	}
	return ids
}

// answers reports whether m carries a tool_result for every id and no
// others.
func answers(m *types.Message, ids []string) bool {
	if m == nil || m.Role != types.RoleUser || len(ids) == 0 {
		return false
	}
	results := toolResultIDs(*m)
	if len(results) != len(ids) {
		return false
	}
	want := make(map[string]bool, len(ids))
	for _, id := range ids {
		want[id] = true
	}
	for _, id := range results {
		if !want[id] {
			return false
		}
	}
	return true
}

func withoutBlocks(m types.Message, drop types.BlockType) types.Message {
	c := m.Clone()
	kept := c.Blocks[:0]
	for _, b := range c.Blocks {
		if b.Type != drop {
			kept = append(kept, b)
		}
	}
	c.Blocks = kept
	return c
}

func isEmpty(m types.Message) bool {
	if m.Content != "" {
		return false
	}
	for _, b := range m.Blocks {
		switch b.Type {
		case types.BlockText:
			if b.Text != "" {
				return false
			}
		case types.BlockThinking:
			// Thinking alone is not a sendable turn.
		default:
			return false
		}
	}
	return true
}
