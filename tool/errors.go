package tool

import (
	"errors"
	"fmt"
)

var (
	// ErrToolNotFound is returned for a request naming an unregistered tool.
	ErrToolNotFound = errors.New("tool not found")

	// ErrInvalidTool is returned when registering an unusable tool.
	ErrInvalidTool = errors.New("invalid tool")

	// ErrDuplicateTool is returned when a name is registered twice.
	ErrDuplicateTool = errors.New("tool already registered")

	// ErrInvalidInput is returned when input fails schema validation.
	ErrInvalidInput = errors.New("invalid tool input")

	// ErrTimeout is returned when a tool exceeds its execution timeout.
	ErrTimeout = errors.New("tool execution timed out")

	// ErrCancelled marks a request skipped because the caller cancelled
	// before it started.
	ErrCancelled = errors.New("cancelled")
)

// ValidationError reports the first schema violation in a tool input.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return fmt.Sprintf("%s: %s", ErrInvalidInput, e.Reason)
	}
	return fmt.Sprintf("%s: field %q: %s", ErrInvalidInput, e.Field, e.Reason)
}

// Is makes errors.Is(err, ErrInvalidInput) match.
func (e *ValidationError) Is(target error) bool {
	return target == ErrInvalidInput
}
