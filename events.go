package edgeview

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// EventKind tags a message from the sink pipeline.
type EventKind int

const (
	// EventOther is any message the supervisor only logs
	EventOther EventKind = iota
	// EventStateChanged reports an element state transition
	EventStateChanged
	// EventError reports a pipeline error; it terminates the process
	EventError
	// EventEndOfStream reports that the sink consumed end-of-stream
	EventEndOfStream
)

// String returns a human-readable name for the kind
func (k EventKind) String() string {
	switch k {
	case EventStateChanged:
		return "state-changed"
	case EventError:
		return "error"
	case EventEndOfStream:
		return "eos"
	default:
		return "other"
	}
}

// Event is one message from the sink's message stream.
type Event struct {
	Kind EventKind
	// Source names the element that posted the message
	Source string
	// OldState and NewState are set for EventStateChanged
	OldState string
	NewState string
	// Message, Detail and Category are set for EventError
	Message  string
	Detail   string
	Category string
	// Type is the raw message type name for EventOther
	Type string
}

// EventStream is the sink's message stream.
type EventStream interface {
	// Next waits up to timeout for the next event; ok is false on timeout.
	Next(timeout time.Duration) (ev Event, ok bool)
}

// PipelineError is returned by Supervise when the sink reports an error.
type PipelineError struct {
	Source   string
	Message  string
	Detail   string
	Category string
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error [%s] from %s: %s", e.Category, e.Source, e.Message)
}

// supervisePollInterval bounds how long Supervise waits between ctx checks.
const supervisePollInterval = 50 * time.Millisecond

// Supervise consumes the message stream until it ends the process.
//
// Returns:
//   - nil on EventEndOfStream (from the sink, or the loop's own signal)
//   - *PipelineError on EventError, after logging source, message and detail
//   - nil if ctx is cancelled (process signal)
//
// StateChanged and Other events are logged and otherwise ignored.
func Supervise(ctx context.Context, events EventStream) error {
	if events == nil {
		return fmt.Errorf("edgeview: event stream is required")
	}

	for {
		select {
		case <-ctx.Done():
			slog.Debug("edgeview: context cancelled, stopping supervision")
			return nil
		default:
		}

		ev, ok := events.Next(supervisePollInterval)
		if !ok {
			continue
		}

		switch ev.Kind {
		case EventStateChanged:
			slog.Debug("edgeview: element state changed",
				"element", ev.Source,
				"from", ev.OldState,
				"to", ev.NewState,
			)

		case EventError:
			slog.Error("edgeview: error message from pipeline, quitting",
				"element", ev.Source,
				"error", ev.Message,
				"debug", ev.Detail,
				"category", ev.Category,
			)
			return &PipelineError{
				Source:   ev.Source,
				Message:  ev.Message,
				Detail:   ev.Detail,
				Category: ev.Category,
			}

		case EventEndOfStream:
			slog.Info("edgeview: end of stream received, quitting", "element", ev.Source)
			return nil

		default:
			slog.Debug("edgeview: pipeline message",
				"type", ev.Type,
				"element", ev.Source,
			)
		}
	}
}

// EventQueue is an in-process EventStream for sinks without a native bus.
type EventQueue struct {
	ch chan Event
}

// NewEventQueue creates a queue holding up to size undelivered events.
func NewEventQueue(size int) *EventQueue {
	if size < 1 {
		size = 1
	}
	return &EventQueue{ch: make(chan Event, size)}
}

// Post enqueues ev without blocking; it reports false if the queue is full.
func (q *EventQueue) Post(ev Event) bool {
	select {
	case q.ch <- ev:
		return true
	default:
		return false
	}
}

// Next implements EventStream.
func (q *EventQueue) Next(timeout time.Duration) (Event, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case ev := <-q.ch:
		return ev, true
	case <-timer.C:
		return Event{}, false
	}
}
