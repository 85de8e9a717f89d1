package edgeview

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSupervise_EndOfStreamReturnsNil(t *testing.T) {
	q := NewEventQueue(8)
	require.True(t, q.Post(Event{Kind: EventStateChanged, Source: "pipeline0", OldState: "paused", NewState: "playing"}))
	require.True(t, q.Post(Event{Kind: EventOther, Source: "appsrc", Type: "stream-start"}))
	require.True(t, q.Post(Event{Kind: EventEndOfStream, Source: "pipeline0"}))

	require.NoError(t, Supervise(context.Background(), q))
}

func TestSupervise_ErrorTerminates(t *testing.T) {
	q := NewEventQueue(8)
	q.Post(Event{Kind: EventStateChanged, Source: "sink", OldState: "ready", NewState: "paused"})
	q.Post(Event{
		Kind:     EventError,
		Source:   "autovideosink0",
		Message:  "Could not open display",
		Detail:   "xvimagesink.c(123): no DISPLAY",
		Category: "display",
	})
	// Never reached: the error ends supervision first.
	q.Post(Event{Kind: EventEndOfStream, Source: "pipeline0"})

	err := Supervise(context.Background(), q)
	require.Error(t, err)

	var perr *PipelineError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, "autovideosink0", perr.Source)
	assert.Equal(t, "Could not open display", perr.Message)
	assert.Equal(t, "xvimagesink.c(123): no DISPLAY", perr.Detail)
	assert.Contains(t, err.Error(), "[display]")
}

func TestSupervise_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- Supervise(ctx, NewEventQueue(1)) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("Supervise did not return after cancellation")
	}
}

func TestSupervise_NilStream(t *testing.T) {
	require.Error(t, Supervise(context.Background(), nil))
}

func TestEventQueue_PostWhenFull(t *testing.T) {
	q := NewEventQueue(1)
	assert.True(t, q.Post(Event{Kind: EventOther}))
	assert.False(t, q.Post(Event{Kind: EventOther}))

	_, ok := q.Next(time.Millisecond)
	assert.True(t, ok)
	_, ok = q.Next(time.Millisecond)
	assert.False(t, ok)
}

func TestEventKind_String(t *testing.T) {
	assert.Equal(t, "state-changed", EventStateChanged.String())
	assert.Equal(t, "error", EventError.String())
	assert.Equal(t, "eos", EventEndOfStream.String())
	assert.Equal(t, "other", EventOther.String())
}
