package compaction

import (
	"errors"
	"fmt"
)

// Sentinel errors for compaction operations.
var (
	// ErrInvalidConfig indicates invalid compaction configuration.
	ErrInvalidConfig = errors.New("invalid compaction configuration")

	// ErrNoSummarizer indicates AI summarization was requested without a Summarizer.
	ErrNoSummarizer = errors.New("no summarizer configured")

	// ErrSummarizationFailed indicates the summarizer call failed or returned nothing.
	ErrSummarizationFailed = errors.New("summarization failed")

	// ErrNotSmaller indicates a summary would not reduce the token count.
	ErrNotSmaller = errors.New("summary is not smaller than its input")
)

// CompactionError provides structured error context for compaction operations.
type CompactionError struct {
	// Op is the operation that failed (e.g., "Summarize", "Hybrid")
	Op string

	// Err is the underlying error
	Err error

	// Context holds additional key-value pairs for debugging
	Context map[string]any
}

// Error returns a formatted error message.
func (e *CompactionError) Error() string {
	msg := fmt.Sprintf("compaction %s failed", e.Op)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

// Unwrap returns the underlying error for errors.Is/errors.As support.
func (e *CompactionError) Unwrap() error {
	return e.Err
}

// NewCompactionError creates a new CompactionError.
func NewCompactionError(op string, err error) *CompactionError {
	return &CompactionError{Op: op, Err: err, Context: make(map[string]any)}
}

// WithContext adds a key-value pair to the error context and returns the error for chaining.
func (e *CompactionError) WithContext(key string, value any) *CompactionError {
	if e.Context == nil {
		e.Context = make(map[string]any)
	}
	e.Context[key] = value
	return e
}
