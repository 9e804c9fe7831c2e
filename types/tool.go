package types

import (
	"encoding/json"
	"time"
)

// ToolInvocationRequest is a tool call requested by the reasoning engine
// inside one assistant turn.
type ToolInvocationRequest struct {
	ID    string          `json:"id"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// ToolExecutionResult is the outcome of one ToolInvocationRequest. It is
// paired with its request by ID, never by position.
type ToolExecutionResult struct {
	ID           string        `json:"id"`
	Name         string        `json:"name"`
	Success      bool          `json:"success"`
	Data         string        `json:"data,omitempty"`
	ErrorMessage string        `json:"error,omitempty"`
	Duration     time.Duration `json:"duration"`
}

// Content returns what is fed back to the engine for this result.
func (r ToolExecutionResult) Content() string {
	if r.Success {
		return r.Data
	}
	return r.ErrorMessage
}

// ToolDefinition is the engine-facing description of a tool.
type ToolDefinition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	InputSchema json.RawMessage `json:"input_schema"`
}

// NewToolResultMessage builds the single user message that carries every
// result of one turn, in the order given.
func NewToolResultMessage(results []ToolExecutionResult) Message {
	m := NewUserMessage("")
	m.Blocks = make([]ContentBlock, 0, len(results))
	for _, r := range results {
		m.Blocks = append(m.Blocks, ToolResultBlock(r.ID, r.Content(), !r.Success))
		m.ToolsUsed = appendUnique(m.ToolsUsed, r.Name)
	}
	return m
}

func appendUnique(set []string, name string) []string {
	if name == "" {
		return set
	}
	for _, s := range set {
		if s == name {
			return set
		}
	}
	return append(set, name)
}
