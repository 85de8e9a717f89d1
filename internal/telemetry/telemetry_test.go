package telemetry

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	edgeview "github.com/e7canasta/orion-edgeview"
)

func TestTopics(t *testing.T) {
	e := NewEmitter(Config{TopicPrefix: "edgeview/cam0"})
	assert.Equal(t, "edgeview/cam0/stats", e.StatsTopic())
	assert.Equal(t, "edgeview/cam0/events", e.EventsTopic())
}

func TestPublish_NotConnected(t *testing.T) {
	e := NewEmitter(Config{TopicPrefix: "edgeview"})

	assert.ErrorIs(t, e.PublishStats(edgeview.Stats{}), ErrNotConnected)
	assert.ErrorIs(t, e.PublishEvent(edgeview.Event{Kind: edgeview.EventEndOfStream}), ErrNotConnected)

	stats := e.Stats()
	assert.False(t, stats.Connected)
	assert.Equal(t, uint64(2), stats.Errors)
	assert.Empty(t, stats.Published)

	// Disconnect without a client is a no-op
	e.Disconnect()
}

func TestStatsMessage(t *testing.T) {
	msg := newStatsMessage(edgeview.Stats{
		State:           edgeview.StateDelivering,
		Uptime:          1500 * time.Millisecond,
		FramesCaptured:  46,
		FramesMalformed: 1,
		FramesDelivered: 45,
		FPSReal:         29.97,
		IsStable:        true,
	})

	data, err := json.Marshal(msg)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, "delivering", decoded["state"])
	assert.Equal(t, 1.5, decoded["uptime_s"])
	assert.Equal(t, float64(45), decoded["frames_delivered"])
	assert.Equal(t, true, decoded["stable"])
	assert.Equal(t, false, decoded["eos_sent"])
}

func TestEventMessage(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	msg := newEventMessage(edgeview.Event{
		Kind:     edgeview.EventError,
		Source:   "autovideosink0",
		Message:  "Could not open display",
		Category: "display",
	}, at)

	data, err := json.Marshal(msg)
	require.NoError(t, err)
	assert.JSONEq(t, `{
		"kind": "error",
		"source": "autovideosink0",
		"message": "Could not open display",
		"category": "display",
		"timestamp": "2026-01-02T03:04:05Z"
	}`, string(data))
}

type recordingPublisher struct {
	events []edgeview.Event
	err    error
}

func (p *recordingPublisher) PublishEvent(ev edgeview.Event) error {
	p.events = append(p.events, ev)
	return p.err
}

func TestTee(t *testing.T) {
	q := edgeview.NewEventQueue(4)
	q.Post(edgeview.Event{Kind: edgeview.EventOther, Type: "latency"})
	q.Post(edgeview.Event{Kind: edgeview.EventStateChanged, OldState: "paused", NewState: "playing"})
	q.Post(edgeview.Event{Kind: edgeview.EventEndOfStream, Source: "recorder"})

	pub := &recordingPublisher{err: errors.New("broker down")}
	stream := Tee(q, pub)

	var kinds []edgeview.EventKind
	for {
		ev, ok := stream.Next(10 * time.Millisecond)
		if !ok {
			break
		}
		kinds = append(kinds, ev.Kind)
	}

	// Every event passes through, publish errors notwithstanding
	assert.Equal(t, []edgeview.EventKind{
		edgeview.EventOther, edgeview.EventStateChanged, edgeview.EventEndOfStream,
	}, kinds)

	// Only non-Other events are published
	require.Len(t, pub.events, 2)
	assert.Equal(t, edgeview.EventStateChanged, pub.events[0].Kind)
	assert.Equal(t, edgeview.EventEndOfStream, pub.events[1].Kind)
}
