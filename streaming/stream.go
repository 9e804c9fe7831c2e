package streaming

import (
	"context"
	"strings"
	"sync"

	"github.com/youssefsiam38/agentctx/model"
)

// DefaultBuffer is the channel capacity used when none is configured.
const DefaultBuffer = 64

// Stream is the producer side of a bounded event channel. It is owned by a
// single goroutine, which both sends and closes.
type Stream struct {
	ch     chan Event
	once   sync.Once
	closed bool
}

// NewStream creates a stream with the given capacity. Non-positive
// capacities fall back to DefaultBuffer.
func NewStream(buffer int) *Stream {
	if buffer <= 0 {
		buffer = DefaultBuffer
	}
	return &Stream{ch: make(chan Event, buffer)}
}

// Events returns the consumer side.
func (s *Stream) Events() <-chan Event {
	return s.ch
}

// Send enqueues e, blocking while the buffer is full. It returns false when
// ctx is done first or the stream is closed; the event is then dropped.
func (s *Stream) Send(ctx context.Context, e Event) bool {
	if s.closed {
		return false
	}
	select {
	case s.ch <- e:
		return true
	case <-ctx.Done():
		return false
	}
}

// Close closes the consumer channel.
func (s *Stream) Close() {
	s.once.Do(func() {
		s.closed = true
		close(s.ch)
	})
}

// Result aggregates a drained stream.
type Result struct {
	Text       string
	Thinking   string
	ToolCalls  []ToolEvent
	Results    []ToolResultEvent
	Iterations int
	Reason     string
	Usage      model.Usage
	Events     int
}

// Collect drains events until the channel closes. It returns the
// aggregation and, when the run ended with an ErrorEvent, that event as the
// error.
func Collect(events <-chan Event) (*Result, error) {
	var (
		res      Result
		text     strings.Builder
		thinking strings.Builder
		final    string
		done     bool
		runErr   error
	)

	for e := range events {
		res.Events++
		switch ev := e.(type) {
		case *TextEvent:
			text.WriteString(ev.Content)
		case *ThinkingEvent:
			thinking.WriteString(ev.Content)
		case *ToolEvent:
			res.ToolCalls = append(res.ToolCalls, *ev)
		case *ToolResultEvent:
			res.Results = append(res.Results, *ev)
		case *DoneEvent:
			done = true
			final = ev.Response
			res.Iterations = ev.Iterations
			res.Reason = ev.Reason
			res.Usage = ev.Usage
		case *ErrorEvent:
			runErr = ev
		}
	}

	res.Text = text.String()
	if done && final != "" {
		res.Text = final
	}
	res.Thinking = thinking.String()
	return &res, runErr
}
