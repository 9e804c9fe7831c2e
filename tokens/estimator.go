// Package tokens estimates the token cost of text, messages and tool schemas.
//
// The estimate is a deterministic character heuristic (~4 characters per
// token). It never calls out to a tokenizer, so identical input always
// yields identical output.
package tokens

import (
	"github.com/youssefsiam38/agentctx/types"
)

const (
	// CharsPerToken is the prose ratio the heuristic assumes.
	CharsPerToken = 4

	// MessageOverhead covers role framing per message.
	MessageOverhead = 4

	// ToolOverhead is added for every tool reference (tool_use, tool_result
	// or a name in ToolsUsed) and for every tool schema.
	ToolOverhead = 10

	// ImageTokens is charged per image regardless of its size.
	ImageTokens = 1500
)

// Text estimates tokens for a string. Empty text costs nothing; any
// non-empty text costs at least one token.
func Text(s string) int {
	if len(s) == 0 {
		return 0
	}
	n := (len(s) + CharsPerToken - 1) / CharsPerToken
	if n < 1 {
		return 1
	}
	return n
}

// Message estimates tokens for one message, including role overhead.
// A precomputed TokenEstimate on the message takes precedence.
func Message(m types.Message) int {
	if m.TokenEstimate != nil && *m.TokenEstimate >= 0 {
		return *m.TokenEstimate
	}

	total := MessageOverhead
	if len(m.Blocks) == 0 {
		total += Text(m.Content)
		total += ToolOverhead * len(m.ToolsUsed)
		return total
	}

	toolRefs := 0
	for _, b := range m.Blocks {
		total += Block(b)
		if b.Type == types.BlockToolUse || b.Type == types.BlockToolResult {
			toolRefs++
		}
	}
	// ToolsUsed names not already represented by a block still cost framing.
	if extra := len(m.ToolsUsed) - toolRefs; extra > 0 {
		total += ToolOverhead * extra
	}
	return total
}

// Block estimates tokens for a single content block.
func Block(b types.ContentBlock) int {
	switch b.Type {
	case types.BlockText:
		return Text(b.Text)
	case types.BlockToolUse:
		return Text(b.ToolName) + ToolOverhead + Text(string(b.ToolInput))
	case types.BlockToolResult:
		return ToolOverhead + Text(b.ToolContent)
	case types.BlockThinking:
		return Text(b.Thinking)
	case types.BlockImage:
		return ImageTokens
	default:
		return Text(b.Text)
	}
}

// Messages estimates tokens for a sequence of messages.
func Messages(msgs []types.Message) int {
	total := 0
	for _, m := range msgs {
		total += Message(m)
	}
	return total
}

// Tools estimates the prompt cost of exposing the given tool definitions.
func Tools(defs []types.ToolDefinition) int {
	total := 0
	for _, d := range defs {
		total += ToolOverhead + Text(d.Name) + Text(d.Description) + Text(string(d.InputSchema))
	}
	return total
}

// Request estimates the full prompt: system prompt, tool schemas and history.
func Request(systemPrompt string, defs []types.ToolDefinition, msgs []types.Message) int {
	return Text(systemPrompt) + Tools(defs) + Messages(msgs)
}
