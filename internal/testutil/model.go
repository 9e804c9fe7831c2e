package testutil

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/youssefsiam38/agentctx/model"
	"github.com/youssefsiam38/agentctx/types"
)

// ErrScriptExhausted is returned when a ScriptedModel runs out of turns.
var ErrScriptExhausted = errors.New("scripted model: no turns left")

// Turn is one scripted model response.
type Turn struct {
	Blocks     []types.ContentBlock
	StopReason model.StopReason
	Usage      model.Usage

	// Err fails the call instead of responding.
	Err error

	// Delay holds the response back. The call returns early when its
	// context ends.
	Delay time.Duration
}

// TextTurn is a final answer.
func TextTurn(text string) Turn {
	return Turn{
		Blocks:     []types.ContentBlock{types.TextBlock(text)},
		StopReason: model.StopEndTurn,
		Usage:      model.Usage{InputTokens: 10, OutputTokens: 5},
	}
}

// ToolTurn is a turn requesting tools, with optional leading text.
func ToolTurn(text string, reqs ...types.ToolInvocationRequest) Turn {
	var blocks []types.ContentBlock
	if text != "" {
		blocks = append(blocks, types.TextBlock(text))
	}
	for _, r := range reqs {
		input := r.Input
		if input == nil {
			input = json.RawMessage(`{}`)
		}
		blocks = append(blocks, types.ToolUseBlock(r.ID, r.Name, input))
	}
	return Turn{
		Blocks:     blocks,
		StopReason: model.StopToolUse,
		Usage:      model.Usage{InputTokens: 10, OutputTokens: 5},
	}
}

// ScriptedModel is a model.Client that replays turns in order and records
// every request. It is safe for concurrent use.
type ScriptedModel struct {
	mu    sync.Mutex
	turns []Turn
	calls []model.Request
}

// NewScriptedModel creates a client replaying turns.
func NewScriptedModel(turns ...Turn) *ScriptedModel {
	return &ScriptedModel{turns: turns}
}

// Stream implements model.Client.
func (m *ScriptedModel) Stream(ctx context.Context, req model.Request, emit func(model.Block)) (*model.Response, error) {
	m.mu.Lock()
	m.calls = append(m.calls, req)
	if len(m.turns) == 0 {
		m.mu.Unlock()
		return nil, ErrScriptExhausted
	}
	turn := m.turns[0]
	m.turns = m.turns[1:]
	m.mu.Unlock()

	if turn.Delay > 0 {
		select {
		case <-time.After(turn.Delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if turn.Err != nil {
		return nil, turn.Err
	}

	for _, b := range turn.Blocks {
		switch b.Type {
		case types.BlockText:
			emit(model.Block{Kind: model.BlockText, Text: b.Text})
		case types.BlockThinking:
			emit(model.Block{Kind: model.BlockThinking, Text: b.Thinking})
		case types.BlockToolUse:
			emit(model.Block{Kind: model.BlockToolUse, ToolUse: &types.ToolInvocationRequest{
				ID:    b.ToolUseID,
				Name:  b.ToolName,
				Input: b.ToolInput,
			}})
		}
	}

	return &model.Response{
		ID:         "msg_scripted",
		Model:      "scripted",
		Blocks:     turn.Blocks,
		StopReason: turn.StopReason,
		Usage:      turn.Usage,
	}, nil
}

// Calls returns the requests received so far.
func (m *ScriptedModel) Calls() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.calls...)
}
