package model

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/anthropics/anthropic-sdk-go"

	ianthropic "github.com/youssefsiam38/agentctx/internal/anthropic"
	"github.com/youssefsiam38/agentctx/types"
)

// ErrNoClient is returned by NewAnthropicClient without an SDK client.
var ErrNoClient = errors.New("anthropic client is required")

// AnthropicClient streams turns from the Anthropic Messages API.
type AnthropicClient struct {
	client *anthropic.Client
	model  string
}

// NewAnthropicClient creates a Client for the given model.
func NewAnthropicClient(client *anthropic.Client, model string) (*AnthropicClient, error) {
	if client == nil {
		return nil, ErrNoClient
	}
	if model == "" {
		return nil, errors.New("model is required")
	}
	return &AnthropicClient{client: client, model: model}, nil
}

// Model returns the configured model name.
func (c *AnthropicClient) Model() string {
	return c.model
}

// Stream implements Client.
func (c *AnthropicClient) Stream(ctx context.Context, req Request, emit func(Block)) (*Response, error) {
	maxTokens := req.MaxOutputTokens
	if maxTokens <= 0 {
		maxTokens = DefaultMaxOutputTokens
	}

	params := anthropic.MessageNewParams{
		Model:     anthropic.Model(c.model),
		MaxTokens: int64(maxTokens),
		Messages:  ianthropic.ConvertMessages(req.Messages),
		System:    ianthropic.BuildSystemPrompt(req.SystemPrompt),
	}
	if len(req.Tools) > 0 {
		params.Tools = ianthropic.ConvertTools(req.Tools)
	}
	if req.ThinkingBudget > 0 {
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(int64(req.ThinkingBudget))
	}

	if emit == nil {
		emit = func(Block) {}
	}
	acc := &ianthropic.Accumulator{
		OnText:     func(s string) { emit(Block{Kind: BlockText, Text: s}) },
		OnThinking: func(s string) { emit(Block{Kind: BlockThinking, Text: s}) },
		OnToolUse: func(id, name string, input json.RawMessage) {
			emit(Block{Kind: BlockToolUse, ToolUse: &types.ToolInvocationRequest{ID: id, Name: name, Input: input}})
		},
	}

	stream := c.client.Messages.NewStreaming(ctx, params)
	defer stream.Close()

	for stream.Next() {
		if err := acc.Process(stream.Current()); err != nil {
			return nil, fmt.Errorf("%w: accumulate stream: %w", ErrModelCall, err)
		}
	}
	if err := stream.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrModelCall, err)
	}

	msg := acc.Message()
	return &Response{
		ID:         msg.ID,
		Model:      string(msg.Model),
		Blocks:     ianthropic.ConvertContent(msg.Content),
		StopReason: StopReason(msg.StopReason),
		Usage: Usage{
			InputTokens:         int(msg.Usage.InputTokens),
			OutputTokens:        int(msg.Usage.OutputTokens),
			CacheCreationTokens: int(msg.Usage.CacheCreationInputTokens),
			CacheReadTokens:     int(msg.Usage.CacheReadInputTokens),
		},
	}, nil
}
