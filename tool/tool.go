// Package tool defines the tool provider contract, a registry of tools, and
// an executor that turns invocation requests into execution results.
package tool

import (
	"context"
	"encoding/json"

	"github.com/youssefsiam38/agentctx/types"
)

// Tool is one callable provider exposed to the reasoning engine.
type Tool interface {
	// Name is the identifier the engine uses to request the tool.
	Name() string

	// Description tells the engine when to use the tool.
	Description() string

	// InputSchema describes the accepted input. Its Type must be "object".
	InputSchema() ToolSchema

	// Execute runs the tool. A returned error becomes a failed result fed
	// back to the engine, never a loop failure.
	Execute(ctx context.Context, input json.RawMessage) (string, error)
}

// ToolSchema is the JSON schema of a tool's input object.
type ToolSchema struct {
	Type       string                 `json:"type"`
	Properties map[string]PropertyDef `json:"properties"`
	Required   []string               `json:"required,omitempty"`
}

// PropertyDef is the schema of one input property.
type PropertyDef struct {
	Type        string                 `json:"type"`
	Description string                 `json:"description,omitempty"`
	Enum        []string               `json:"enum,omitempty"`
	Items       *PropertyDef           `json:"items,omitempty"`
	Properties  map[string]PropertyDef `json:"properties,omitempty"`
	Required    []string               `json:"required,omitempty"`
	Minimum     *float64               `json:"minimum,omitempty"`
	Maximum     *float64               `json:"maximum,omitempty"`
	MinLength   *int                   `json:"minLength,omitempty"`
	MaxLength   *int                   `json:"maxLength,omitempty"`
}

// Definition returns the engine-facing description of t.
func Definition(t Tool) types.ToolDefinition {
	schema := t.InputSchema()
	if schema.Properties == nil {
		schema.Properties = map[string]PropertyDef{}
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		raw = json.RawMessage(`{"type":"object","properties":{}}`)
	}
	return types.ToolDefinition{
		Name:        t.Name(),
		Description: t.Description(),
		InputSchema: raw,
	}
}

// Func is the signature of a function-backed tool.
type Func func(ctx context.Context, input json.RawMessage) (string, error)

type funcTool struct {
	name        string
	description string
	schema      ToolSchema
	fn          Func
}

func (t *funcTool) Name() string            { return t.name }
func (t *funcTool) Description() string     { return t.description }
func (t *funcTool) InputSchema() ToolSchema { return t.schema }

func (t *funcTool) Execute(ctx context.Context, input json.RawMessage) (string, error) {
	return t.fn(ctx, input)
}

// NewFuncTool creates a Tool from a function.
func NewFuncTool(name, description string, schema ToolSchema, fn Func) Tool {
	return &funcTool{
		name:        name,
		description: description,
		schema:      schema,
		fn:          fn,
	}
}
