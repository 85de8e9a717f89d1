package gstsink

import (
	"time"

	"github.com/tinyzimmer/go-gst/gst"

	edgeview "github.com/e7canasta/orion-edgeview"
)

// Next implements edgeview.EventStream over the pipeline bus.
func (d *Display) Next(timeout time.Duration) (edgeview.Event, bool) {
	msg := d.bus.TimedPop(timeout)
	if msg == nil {
		return edgeview.Event{}, false
	}
	return eventFromMessage(msg), true
}

// eventFromMessage translates a bus message into the edgeview event model.
func eventFromMessage(msg *gst.Message) edgeview.Event {
	source := msg.Source()

	switch msg.Type() {
	case gst.MessageEOS:
		return edgeview.Event{Kind: edgeview.EventEndOfStream, Source: source}

	case gst.MessageError:
		gerr := msg.ParseError()
		if gerr == nil {
			return edgeview.Event{
				Kind:     edgeview.EventError,
				Source:   source,
				Message:  "unparseable error message",
				Category: ErrCategoryUnknown.String(),
			}
		}
		return edgeview.Event{
			Kind:     edgeview.EventError,
			Source:   source,
			Message:  gerr.Error(),
			Detail:   gerr.DebugString(),
			Category: ClassifyGStreamerError(gerr).String(),
		}

	case gst.MessageStateChanged:
		old, new := msg.ParseStateChanged()
		return edgeview.Event{
			Kind:     edgeview.EventStateChanged,
			Source:   source,
			OldState: old.String(),
			NewState: new.String(),
		}

	default:
		return edgeview.Event{
			Kind:   edgeview.EventOther,
			Source: source,
			Type:   msg.Type().String(),
		}
	}
}
