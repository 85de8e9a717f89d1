package telemetry

import (
	"log/slog"
	"time"

	edgeview "github.com/e7canasta/orion-edgeview"
)

// EventPublisher is the subset of Emitter used by Tee.
type EventPublisher interface {
	PublishEvent(ev edgeview.Event) error
}

// teeStream forwards events unchanged and publishes the interesting ones.
type teeStream struct {
	events edgeview.EventStream
	pub    EventPublisher
}

// Tee wraps events so that state changes, errors and end-of-stream are also
// published. Publish failures are logged and never alter the event.
func Tee(events edgeview.EventStream, pub EventPublisher) edgeview.EventStream {
	return &teeStream{events: events, pub: pub}
}

func (t *teeStream) Next(timeout time.Duration) (edgeview.Event, bool) {
	ev, ok := t.events.Next(timeout)
	if !ok || ev.Kind == edgeview.EventOther {
		return ev, ok
	}
	if err := t.pub.PublishEvent(ev); err != nil {
		slog.Warn("telemetry: failed to publish event", "kind", ev.Kind.String(), "error", err)
	}
	return ev, true
}
