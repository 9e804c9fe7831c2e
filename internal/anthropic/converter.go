// Package anthropic converts between agentctx types and the Anthropic SDK.
package anthropic

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/shared/constant"

	"github.com/youssefsiam38/agentctx/types"
)

// ConvertMessages converts history to Anthropic message parameters.
// Consecutive messages with the same role are merged, since the API
// requires alternating turns. Messages with no sendable content are
// skipped.
func ConvertMessages(msgs []types.Message) []anthropic.MessageParam {
	params := make([]anthropic.MessageParam, 0, len(msgs))

	for _, msg := range msgs {
		blocks := convertBlocks(msg)
		if len(blocks) == 0 {
			continue
		}

		role := anthropic.MessageParamRoleUser
		if msg.Role == types.RoleAssistant {
			role = anthropic.MessageParamRoleAssistant
		}

		if n := len(params); n > 0 && params[n-1].Role == role {
			params[n-1].Content = append(params[n-1].Content, blocks...)
			continue
		}
		params = append(params, anthropic.MessageParam{Role: role, Content: blocks})
	}

	return params
}

func convertBlocks(msg types.Message) []anthropic.ContentBlockParamUnion {
	if len(msg.Blocks) == 0 {
		if msg.Content == "" {
			return nil
		}
		return []anthropic.ContentBlockParamUnion{anthropic.NewTextBlock(msg.Content)}
	}

	out := make([]anthropic.ContentBlockParamUnion, 0, len(msg.Blocks))
	for _, block := range msg.Blocks {
		if param, ok := convertContentBlock(block); ok {
			out = append(out, param)
		}
	}
	return out
}

// convertContentBlock converts a single content block. ok is false for
// blocks the API would reject, such as empty text or unsigned thinking.
func convertContentBlock(block types.ContentBlock) (anthropic.ContentBlockParamUnion, bool) {
	switch block.Type {
	case types.BlockText:
		if block.Text == "" {
			return anthropic.ContentBlockParamUnion{}, false
		}
		return anthropic.NewTextBlock(block.Text), true

	case types.BlockToolUse:
		var input any
		if len(block.ToolInput) > 0 {
			_ = json.Unmarshal(block.ToolInput, &input)
		}
		// The API requires a dictionary, not null.
		if input == nil {
			input = map[string]any{}
		}
		return anthropic.NewToolUseBlock(block.ToolUseID, input, block.ToolName), true

	case types.BlockToolResult:
		return anthropic.NewToolResultBlock(block.ToolResultID, block.ToolContent, block.IsError), true

	case types.BlockThinking:
		if block.Signature == "" {
			return anthropic.ContentBlockParamUnion{}, false
		}
		return anthropic.NewThinkingBlock(block.Signature, block.Thinking), true

	case types.BlockImage:
		if block.Image == nil {
			return anthropic.ContentBlockParamUnion{}, false
		}
		return anthropic.NewImageBlockBase64(block.Image.MediaType, block.Image.Data), true
	}

	return anthropic.ContentBlockParamUnion{}, false
}

// schemaDoc is the subset of a JSON schema the tool parameter carries.
type schemaDoc struct {
	Properties any      `json:"properties"`
	Required   []string `json:"required"`
}

// ConvertTools converts tool definitions to Anthropic tool parameters.
func ConvertTools(defs []types.ToolDefinition) []anthropic.ToolUnionParam {
	unions := make([]anthropic.ToolUnionParam, 0, len(defs))
	for _, def := range defs {
		var doc schemaDoc
		if len(def.InputSchema) > 0 {
			_ = json.Unmarshal(def.InputSchema, &doc)
		}
		if doc.Properties == nil {
			doc.Properties = map[string]any{}
		}

		inputSchema := anthropic.ToolInputSchemaParam{
			Type:       constant.Object("object"),
			Properties: doc.Properties,
		}
		if len(doc.Required) > 0 {
			inputSchema.Required = doc.Required
		}

		param := anthropic.ToolParam{
			Name:        def.Name,
			InputSchema: inputSchema,
		}
		if def.Description != "" {
			param.Description = anthropic.String(def.Description)
		}
		unions = append(unions, anthropic.ToolUnionParam{OfTool: &param})
	}
	return unions
}

// BuildSystemPrompt creates system prompt blocks.
func BuildSystemPrompt(systemPrompt string) []anthropic.TextBlockParam {
	if systemPrompt == "" {
		return nil
	}
	return []anthropic.TextBlockParam{{Text: systemPrompt}}
}

// ConvertContent converts a response's content blocks. Redacted thinking
// and unknown block types are dropped.
func ConvertContent(content []anthropic.ContentBlockUnion) []types.ContentBlock {
	blocks := make([]types.ContentBlock, 0, len(content))
	for _, block := range content {
		switch variant := block.AsAny().(type) {
		case anthropic.TextBlock:
			blocks = append(blocks, types.TextBlock(variant.Text))
		case anthropic.ToolUseBlock:
			blocks = append(blocks, types.ToolUseBlock(variant.ID, variant.Name, toolInput(variant.Input)))
		case anthropic.ThinkingBlock:
			blocks = append(blocks, types.ThinkingBlock(variant.Thinking, variant.Signature))
		}
	}
	return blocks
}

func toolInput(input any) json.RawMessage {
	raw, err := json.Marshal(input)
	if err != nil || len(raw) == 0 || string(raw) == "null" {
		return json.RawMessage(`{}`)
	}
	return raw
}
