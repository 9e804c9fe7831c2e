package agentctx

import (
	"errors"
	"fmt"
)

// Common errors
var (
	// ErrInvalidConfig is returned when the agent configuration is invalid
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrEmptyRequest is returned by Run for a request without a prompt or
	// history
	ErrEmptyRequest = errors.New("request has no prompt and no messages")

	// ErrModelCall is returned when the reasoning engine call fails
	ErrModelCall = errors.New("model call failed")

	// ErrBudgetExceeded is returned when the cost guard rejects a request
	ErrBudgetExceeded = errors.New("monthly budget exceeded")

	// ErrCancelled is returned when the caller cancels a run
	ErrCancelled = errors.New("request cancelled")

	// ErrStorageError is returned when a storage operation failed
	ErrStorageError = errors.New("storage operation failed")
)

// AgentError represents an error with additional context
type AgentError struct {
	Op             string         // Operation that failed
	Err            error          // Underlying error
	ConversationID string         // Conversation ID if applicable
	Context        map[string]any // Additional context
}

// Error implements the error interface
func (e *AgentError) Error() string {
	if e.ConversationID != "" {
		return fmt.Sprintf("%s (conversation=%s): %v", e.Op, e.ConversationID, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

// Unwrap returns the underlying error
func (e *AgentError) Unwrap() error {
	return e.Err
}

// WithContext adds additional context to the error
func (e *AgentError) WithContext(key string, value any) *AgentError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}

// NewAgentError creates a new AgentError
func NewAgentError(op string, err error) *AgentError {
	return &AgentError{
		Op:  op,
		Err: err,
	}
}

// NewConversationError creates a new AgentError bound to a conversation
func NewConversationError(op, conversationID string, err error) *AgentError {
	return &AgentError{
		Op:             op,
		Err:            err,
		ConversationID: conversationID,
	}
}
