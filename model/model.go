// Package model defines the reasoning engine contract the agent loop calls,
// plus an Anthropic streaming implementation.
package model

import (
	"context"
	"errors"
	"strings"

	"github.com/youssefsiam38/agentctx/types"
)

// ErrModelCall wraps every failure of a model call.
var ErrModelCall = errors.New("model call failed")

// DefaultMaxOutputTokens is used when a Request leaves MaxOutputTokens unset.
const DefaultMaxOutputTokens = 4096

// StopReason explains why the engine ended its turn.
type StopReason string

const (
	StopEndTurn   StopReason = "end_turn"
	StopToolUse   StopReason = "tool_use"
	StopMaxTokens StopReason = "max_tokens"
	StopSequence  StopReason = "stop_sequence"
	StopPauseTurn StopReason = "pause_turn"
	StopRefusal   StopReason = "refusal"
)

// Request is one call to the engine.
type Request struct {
	SystemPrompt    string
	Tools           []types.ToolDefinition
	Messages        []types.Message
	MaxOutputTokens int

	// ThinkingBudget enables extended thinking when positive.
	ThinkingBudget int
}

// BlockKind identifies a streamed fragment.
type BlockKind int

const (
	BlockText BlockKind = iota
	BlockThinking
	BlockToolUse
)

func (k BlockKind) String() string {
	switch k {
	case BlockText:
		return "text"
	case BlockThinking:
		return "thinking"
	case BlockToolUse:
		return "tool_use"
	default:
		return "unknown"
	}
}

// Block is a fragment emitted while the engine streams. Text and thinking
// arrive as deltas; a tool invocation is emitted once, when complete.
type Block struct {
	Kind    BlockKind
	Text    string
	ToolUse *types.ToolInvocationRequest
}

// Usage counts engine-reported tokens.
type Usage struct {
	InputTokens         int
	OutputTokens        int
	CacheCreationTokens int
	CacheReadTokens     int
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.InputTokens += other.InputTokens
	u.OutputTokens += other.OutputTokens
	u.CacheCreationTokens += other.CacheCreationTokens
	u.CacheReadTokens += other.CacheReadTokens
}

// Total returns input plus output tokens.
func (u Usage) Total() int {
	return u.InputTokens + u.OutputTokens
}

// Response is the complete engine turn.
type Response struct {
	ID         string
	Model      string
	Blocks     []types.ContentBlock
	StopReason StopReason
	Usage      Usage
}

// Text concatenates the text blocks.
func (r *Response) Text() string {
	var b strings.Builder
	for _, block := range r.Blocks {
		if block.Type == types.BlockText {
			b.WriteString(block.Text)
		}
	}
	return b.String()
}

// ToolRequests returns the tool invocations in emission order.
func (r *Response) ToolRequests() []types.ToolInvocationRequest {
	var reqs []types.ToolInvocationRequest
	for _, block := range r.Blocks {
		if block.Type == types.BlockToolUse {
			reqs = append(reqs, types.ToolInvocationRequest{
				ID:    block.ToolUseID,
				Name:  block.ToolName,
				Input: block.ToolInput,
			})
		}
	}
	return reqs
}

// Message converts the response into an assistant message carrying the raw
// blocks.
func (r *Response) Message() types.Message {
	m := types.NewAssistantMessage(r.Text())
	m.Blocks = append([]types.ContentBlock(nil), r.Blocks...)
	for _, req := range r.ToolRequests() {
		m.ToolsUsed = appendUnique(m.ToolsUsed, req.Name)
	}
	return m
}

// Client is the reasoning engine. Stream calls emit for every fragment in
// the order received and returns the assembled response.
type Client interface {
	Stream(ctx context.Context, req Request, emit func(Block)) (*Response, error)
}

// ClientFunc adapts a function to Client.
type ClientFunc func(ctx context.Context, req Request, emit func(Block)) (*Response, error)

// Stream calls f.
func (f ClientFunc) Stream(ctx context.Context, req Request, emit func(Block)) (*Response, error) {
	return f(ctx, req, emit)
}

func appendUnique(list []string, s string) []string {
	for _, v := range list {
		if v == s {
			return list
		}
	}
	return append(list, s)
}
