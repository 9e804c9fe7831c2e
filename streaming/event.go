// Package streaming defines the events an agent run delivers to its caller
// and the bounded, ordered stream that carries them.
package streaming

import (
	"encoding/json"

	"github.com/youssefsiam38/agentctx/model"
)

// EventType identifies the kind of an Event.
type EventType string

const (
	// EventTypeText carries an incremental piece of assistant text.
	EventTypeText EventType = "text"

	// EventTypeThinking carries an incremental piece of model reasoning.
	EventTypeThinking EventType = "thinking"

	// EventTypeTool is emitted when the model finishes a tool request,
	// before the tool runs.
	EventTypeTool EventType = "tool"

	// EventTypeToolResult is emitted once per executed tool.
	EventTypeToolResult EventType = "tool_result"

	// EventTypeDone terminates a successful run.
	EventTypeDone EventType = "done"

	// EventTypeError terminates a failed run.
	EventTypeError EventType = "error"
)

// Event is one item of an agent run. The set of implementations is closed.
type Event interface {
	Type() EventType
	isEvent()
}

// TextEvent is a text delta.
type TextEvent struct {
	Content string
}

func (*TextEvent) Type() EventType { return EventTypeText }
func (*TextEvent) isEvent()        {}

// ThinkingEvent is a thinking delta.
type ThinkingEvent struct {
	Content string
}

func (*ThinkingEvent) Type() EventType { return EventTypeThinking }
func (*ThinkingEvent) isEvent()        {}

// ToolEvent announces a completed tool request.
type ToolEvent struct {
	ID    string
	Name  string
	Input json.RawMessage
}

func (*ToolEvent) Type() EventType { return EventTypeTool }
func (*ToolEvent) isEvent()        {}

// ToolResultEvent reports one tool outcome. Preview is a compressed view of
// the output, not the full data.
type ToolResultEvent struct {
	ID      string
	Name    string
	Success bool
	Preview string
}

func (*ToolResultEvent) Type() EventType { return EventTypeToolResult }
func (*ToolResultEvent) isEvent()        {}

// DoneEvent ends a run. Response is the final answer text, ToolCalls the
// number of tools executed, and Reason the terminal reason.
type DoneEvent struct {
	Response   string
	ToolCalls  int
	Iterations int
	Reason     string
	Usage      model.Usage
}

func (*DoneEvent) Type() EventType { return EventTypeDone }
func (*DoneEvent) isEvent()        {}

// ErrorEvent ends a failed run. Err is the underlying error when one is
// available.
type ErrorEvent struct {
	Message string
	Err     error
}

func (*ErrorEvent) Type() EventType { return EventTypeError }
func (*ErrorEvent) isEvent()        {}

// Error implements error so an ErrorEvent can be returned directly.
func (e *ErrorEvent) Error() string { return e.Message }

// Unwrap returns the underlying error.
func (e *ErrorEvent) Unwrap() error { return e.Err }

// IsTerminal reports whether e ends a run.
func IsTerminal(e Event) bool {
	switch e.(type) {
	case *DoneEvent, *ErrorEvent:
		return true
	default:
		return false
	}
}
