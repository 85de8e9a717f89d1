package edgeview

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// scriptedSource returns the queued captures in order, then errNoMoreFrames.
type scriptedSource struct {
	frames [][]byte
	calls  int
}

var errNoMoreFrames = errors.New("no more frames")

func (s *scriptedSource) Capture() ([]byte, error) {
	if s.calls >= len(s.frames) {
		return nil, errNoMoreFrames
	}
	f := s.frames[s.calls]
	s.calls++
	return f, nil
}

type memBuffer struct {
	data      []byte
	discarded bool
	failFill  bool
}

func (b *memBuffer) Fill(src []byte) error {
	if b.failFill {
		return errors.New("map failed")
	}
	if len(src) != len(b.data) {
		return ErrFrameSize
	}
	copy(b.data, src)
	return nil
}

func (b *memBuffer) Discard() { b.discarded = true }

// countedPool hands out capacity buffers, then reports exhaustion forever.
type countedPool struct {
	capacity int
	acquired int
	empties  int
	failFill bool
	last     *memBuffer
}

func (p *countedPool) Acquire() (Buffer, bool) {
	if p.acquired >= p.capacity {
		p.empties++
		return nil, false
	}
	p.acquired++
	p.last = &memBuffer{data: make([]byte, FrameSize), failFill: p.failFill}
	return p.last, true
}

type recordingSink struct {
	mu         sync.Mutex
	delivered  [][]byte
	eosCalls   int
	deliverErr error
}

func (s *recordingSink) Deliver(buf Buffer) error {
	if s.deliverErr != nil {
		return s.deliverErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.delivered = append(s.delivered, buf.(*memBuffer).data)
	return nil
}

func (s *recordingSink) EndOfStream() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.eosCalls++
	return nil
}

// lumaFrame returns a valid frame with uniform luma v.
func lumaFrame(v byte) []byte {
	f := make([]byte, FrameSize)
	for i := 0; i < len(f); i += 2 {
		f[i] = v
		f[i+1] = 0x11
	}
	return f
}

func TestNewLoop_FailFast(t *testing.T) {
	src := &scriptedSource{}
	pool := &countedPool{}
	sink := &recordingSink{}

	_, err := NewLoop(LoopConfig{}, nil, pool, sink)
	assert.Error(t, err)
	_, err = NewLoop(LoopConfig{}, src, nil, sink)
	assert.Error(t, err)
	_, err = NewLoop(LoopConfig{}, src, pool, nil)
	assert.Error(t, err)
	_, err = NewLoop(LoopConfig{Mode: FilterMode(99)}, src, pool, sink)
	assert.Error(t, err)

	l, err := NewLoop(LoopConfig{}, src, pool, sink)
	require.NoError(t, err)
	assert.Equal(t, StateIdle, l.State())
}

func TestLoop_StopsOnPoolExhaustionWithSingleEOS(t *testing.T) {
	src := &scriptedSource{frames: [][]byte{lumaFrame(1), lumaFrame(2), lumaFrame(3), lumaFrame(4)}}
	pool := &countedPool{capacity: 2}
	sink := &recordingSink{}

	l, err := NewLoop(LoopConfig{Mode: FilterPassthrough}, src, pool, sink)
	require.NoError(t, err)

	require.NoError(t, l.Run())

	assert.Equal(t, StateStopped, l.State())
	assert.Equal(t, 1, sink.eosCalls, "end-of-stream must be signalled exactly once")
	assert.Equal(t, 1, pool.empties, "loop must stop at the first empty acquire")
	assert.Equal(t, 3, src.calls, "no capture after the pool ran dry")
	require.Len(t, sink.delivered, 2)

	stats := l.Stats()
	assert.Equal(t, uint64(3), stats.FramesCaptured)
	assert.Equal(t, uint64(2), stats.FramesDelivered)
	assert.Zero(t, stats.FramesMalformed)
	assert.True(t, stats.EndOfStreamSent)
	assert.Equal(t, StateStopped, stats.State)
}

func TestLoop_DiscardsMalformedCaptures(t *testing.T) {
	short := lumaFrame(200)[:FrameSize-2]
	long := append(lumaFrame(200), 0, 0)

	src := &scriptedSource{frames: [][]byte{short, lumaFrame(7), nil, long, {}, lumaFrame(9)}}
	pool := &countedPool{capacity: 2}
	sink := &recordingSink{}

	l, err := NewLoop(LoopConfig{Mode: FilterPassthrough}, src, pool, sink)
	require.NoError(t, err)

	// Two good frames fill the pool; the source runs dry before a third
	// acquire, so the run ends with the source error.
	err = l.Run()
	require.ErrorIs(t, err, errNoMoreFrames)

	require.Len(t, sink.delivered, 2)
	assert.Zero(t, sink.eosCalls)
	assert.Equal(t, byte(7), sink.delivered[0][0])
	assert.Equal(t, byte(9), sink.delivered[1][0])
	for _, frame := range sink.delivered {
		require.Len(t, frame, FrameSize)
		for i := 0; i < len(frame); i += 2 {
			require.NotEqual(t, byte(200), frame[i], "malformed capture leaked into a delivery")
		}
	}

	stats := l.Stats()
	assert.Equal(t, uint64(4), stats.FramesMalformed)
	assert.Equal(t, uint64(6), stats.FramesCaptured)
}

func TestLoop_DeliversFilteredFramesInCaptureOrder(t *testing.T) {
	var frames [][]byte
	for v := byte(10); v < 15; v++ {
		frames = append(frames, lumaFrame(v))
	}
	src := &scriptedSource{frames: frames}
	pool := &countedPool{capacity: len(frames)}
	sink := &recordingSink{}

	var tapped []uint64
	l, err := NewLoop(LoopConfig{
		Mode: FilterPassthrough,
		Tap: func(seq uint64, filtered []byte) {
			require.Len(t, filtered, FrameSize)
			tapped = append(tapped, seq)
		},
	}, src, pool, sink)
	require.NoError(t, err)

	// Source ends before the pool does.
	require.ErrorIs(t, l.Run(), errNoMoreFrames)

	require.Len(t, sink.delivered, len(frames))
	for i, frame := range sink.delivered {
		assert.Equal(t, byte(10+i), frame[0], "delivery %d out of order", i)
		assert.Equal(t, byte(NeutralChroma), frame[1])
	}
	assert.Equal(t, []uint64{1, 2, 3, 4, 5}, tapped)
}

func TestLoop_EdgeModeOutput(t *testing.T) {
	src := &scriptedSource{frames: [][]byte{lumaFrame(100)}}
	pool := &countedPool{capacity: 1}
	sink := &recordingSink{}

	l, err := NewLoop(LoopConfig{Mode: FilterEdgeMagnitude}, src, pool, sink)
	require.NoError(t, err)
	require.ErrorIs(t, l.Run(), errNoMoreFrames)

	require.Len(t, sink.delivered, 1)
	out := sink.delivered[0]
	center := (Width/2 + (Height/2)*Width) * 2
	assert.Zero(t, out[center], "flat interior has no gradient")
	assert.Equal(t, byte(255), out[0], "bright corner against zero padding clips")
}

func TestLoop_FillFailureDiscardsBuffer(t *testing.T) {
	src := &scriptedSource{frames: [][]byte{lumaFrame(1)}}
	pool := &countedPool{capacity: 1, failFill: true}
	sink := &recordingSink{}

	l, err := NewLoop(LoopConfig{}, src, pool, sink)
	require.NoError(t, err)

	err = l.Run()
	require.Error(t, err)
	assert.True(t, pool.last.discarded)
	assert.Empty(t, sink.delivered, "no partial frame may reach the sink")
	assert.Equal(t, StateStopped, l.State())
}

func TestLoop_DeliveryErrorIsFatal(t *testing.T) {
	deliverErr := errors.New("flushing")
	src := &scriptedSource{frames: [][]byte{lumaFrame(1), lumaFrame(2)}}
	pool := &countedPool{capacity: 5}
	sink := &recordingSink{deliverErr: deliverErr}

	l, err := NewLoop(LoopConfig{}, src, pool, sink)
	require.NoError(t, err)

	require.ErrorIs(t, l.Run(), deliverErr)
	assert.Equal(t, 1, src.calls, "no retry after a delivery failure")
	assert.Zero(t, sink.eosCalls)
}

func TestLoop_RunOnlyOnce(t *testing.T) {
	src := &scriptedSource{frames: [][]byte{lumaFrame(1)}}
	pool := &countedPool{capacity: 0}
	sink := &recordingSink{}

	l, err := NewLoop(LoopConfig{}, src, pool, sink)
	require.NoError(t, err)

	require.NoError(t, l.Run())
	require.Error(t, l.Run())
	assert.Equal(t, 1, sink.eosCalls)
}

func TestLoop_ScratchBufferReused(t *testing.T) {
	src := &scriptedSource{frames: [][]byte{lumaFrame(1), lumaFrame(2), lumaFrame(3)}}
	pool := &countedPool{capacity: 3}
	sink := &recordingSink{}

	var seen []*byte
	l, err := NewLoop(LoopConfig{
		Tap: func(_ uint64, filtered []byte) { seen = append(seen, &filtered[0]) },
	}, src, pool, sink)
	require.NoError(t, err)
	require.ErrorIs(t, l.Run(), errNoMoreFrames)

	require.Len(t, seen, 3)
	assert.Same(t, seen[0], seen[1])
	assert.Same(t, seen[1], seen[2])

	// Deliveries are copies, not aliases of the scratch buffer.
	assert.NotSame(t, &sink.delivered[0][0], seen[0])
}

func TestState_String(t *testing.T) {
	names := map[State]string{
		StateIdle:       "idle",
		StateCapturing:  "capturing",
		StateFiltering:  "filtering",
		StateAcquiring:  "acquiring",
		StateDelivering: "delivering",
		StateDraining:   "draining",
		StateStopped:    "stopped",
		State(100):      "unknown",
	}
	for s, want := range names {
		assert.Equal(t, want, s.String())
	}
}
