package anthropic

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
)

// Accumulator builds a complete message from streaming events and reports
// fragments as they arrive. Text and thinking are reported per delta; a
// tool invocation is reported once its block stops.
type Accumulator struct {
	message anthropic.Message

	OnText     func(text string)
	OnThinking func(thinking string)
	OnToolUse  func(id, name string, input json.RawMessage)
}

// Process folds one event into the message.
func (a *Accumulator) Process(event anthropic.MessageStreamEventUnion) error {
	if err := a.message.Accumulate(event); err != nil {
		return err
	}

	switch e := event.AsAny().(type) {
	case anthropic.ContentBlockDeltaEvent:
		switch delta := e.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			if a.OnText != nil && delta.Text != "" {
				a.OnText(delta.Text)
			}
		case anthropic.ThinkingDelta:
			if a.OnThinking != nil && delta.Thinking != "" {
				a.OnThinking(delta.Thinking)
			}
		}

	case anthropic.ContentBlockStopEvent:
		idx := int(e.Index)
		if idx < 0 || idx >= len(a.message.Content) || a.OnToolUse == nil {
			return nil
		}
		if tu, ok := a.message.Content[idx].AsAny().(anthropic.ToolUseBlock); ok {
			a.OnToolUse(tu.ID, tu.Name, toolInput(tu.Input))
		}
	}
	return nil
}

// Message returns the accumulated message. It can be called at any time.
func (a *Accumulator) Message() *anthropic.Message {
	return &a.message
}
