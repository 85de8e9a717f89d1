package recorder

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	edgeview "github.com/e7canasta/orion-edgeview"
	"github.com/e7canasta/orion-edgeview/internal/pattern"
)

func TestRecord_FramingRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	in := Frame{Seq: 7, Timestamp: time.Unix(1700000000, 0).UTC(), TraceID: "t", Data: []byte{1, 2, 3}}
	require.NoError(t, writeRecord(&buf, in))

	var out Frame
	require.NoError(t, readRecord(&buf, &out))
	assert.Equal(t, in.Seq, out.Seq)
	assert.Equal(t, in.Data, out.Data)
	assert.True(t, in.Timestamp.Equal(out.Timestamp))

	assert.ErrorIs(t, readRecord(&buf, &out), io.EOF)
}

func TestRecord_Truncated(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, writeRecord(&buf, Frame{Seq: 1, Data: make([]byte, 64)}))
	truncated := bytes.NewReader(buf.Bytes()[:buf.Len()-10])

	var out Frame
	err := readRecord(truncated, &out)
	require.Error(t, err)
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
}

func TestRecord_OversizedLength(t *testing.T) {
	r := bytes.NewReader([]byte{0xff, 0xff, 0xff, 0xff})
	var out Frame
	assert.ErrorContains(t, readRecord(r, &out), "exceeds limit")
}

func TestNewWriter_FailFast(t *testing.T) {
	_, err := NewWriter(WriterConfig{})
	assert.Error(t, err)

	_, err = NewWriter(WriterConfig{Path: filepath.Join(t.TempDir(), "a.rec"), MaxFrames: -1})
	assert.Error(t, err)
}

func TestWriter_MaxFramesEndsLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.rec")

	w, err := NewWriter(WriterConfig{Path: path, SessionID: "session-1", Mode: "edge", MaxFrames: 3})
	require.NoError(t, err)

	src := pattern.New(pattern.Config{Kind: pattern.VerticalEdge, Interval: pattern.NoPacing, Frames: 100})
	loop, err := edgeview.NewLoop(edgeview.LoopConfig{Mode: edgeview.FilterEdgeMagnitude}, src, w, w)
	require.NoError(t, err)

	require.NoError(t, loop.Run())

	stats := loop.Stats()
	assert.Equal(t, uint64(3), stats.FramesDelivered)
	assert.True(t, stats.EndOfStreamSent)
	assert.Equal(t, uint64(3), w.Written())

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, edgeview.Supervise(ctx, w))

	// Closing after end-of-stream is a no-op
	assert.NoError(t, w.Close())

	rd, err := OpenReader(ReaderConfig{Path: path})
	require.NoError(t, err)
	defer rd.Close()

	h := rd.Header()
	assert.Equal(t, Magic, h.Magic)
	assert.Equal(t, "session-1", h.SessionID)
	assert.Equal(t, edgeview.PixelFormat, h.Format)
	assert.Equal(t, edgeview.Width, h.Width)
	assert.Equal(t, edgeview.Height, h.Height)
	assert.Equal(t, "edge", h.Mode)

	for i := 0; i < 3; i++ {
		frame, err := rd.Capture()
		require.NoError(t, err)
		require.Len(t, frame, edgeview.FrameSize)

		// Vertical edge lands on columns 319 and 320 of every interior row
		row := 100 * edgeview.Width * 2
		assert.Equal(t, uint8(0), frame[row+2*100])
		assert.Equal(t, uint8(255), frame[row+2*319])
		assert.Equal(t, uint8(255), frame[row+2*320])
		assert.Equal(t, uint8(edgeview.NeutralChroma), frame[row+1])
	}

	_, err = rd.Capture()
	assert.ErrorIs(t, err, io.EOF)
}

func TestWriter_AcquireAfterClose(t *testing.T) {
	w, err := NewWriter(WriterConfig{Path: filepath.Join(t.TempDir(), "c.rec")})
	require.NoError(t, err)

	require.NoError(t, w.Close())
	_, ok := w.Acquire()
	assert.False(t, ok)
}

func TestWriter_DeliverUnfilled(t *testing.T) {
	w, err := NewWriter(WriterConfig{Path: filepath.Join(t.TempDir(), "u.rec")})
	require.NoError(t, err)
	defer w.Close()

	b, ok := w.Acquire()
	require.True(t, ok)
	assert.Error(t, w.Deliver(b))

	assert.ErrorIs(t, b.Fill(make([]byte, 10)), edgeview.ErrFrameSize)
}

func TestReader_LoopRewinds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "loop.rec")
	w, err := NewWriter(WriterConfig{Path: path})
	require.NoError(t, err)

	for i := byte(1); i <= 2; i++ {
		b, ok := w.Acquire()
		require.True(t, ok)
		require.NoError(t, b.Fill(bytes.Repeat([]byte{i}, edgeview.FrameSize)))
		require.NoError(t, w.Deliver(b))
	}
	require.NoError(t, w.EndOfStream())

	rd, err := OpenReader(ReaderConfig{Path: path, Loop: true})
	require.NoError(t, err)
	defer rd.Close()

	want := []byte{1, 2, 1, 2, 1}
	for i, v := range want {
		frame, err := rd.Capture()
		require.NoError(t, err, "capture %d", i)
		assert.Equal(t, v, frame[0], "capture %d", i)
	}
}

func TestReader_EmptyLoopEnds(t *testing.T) {
	path := filepath.Join(t.TempDir(), "empty.rec")
	w, err := NewWriter(WriterConfig{Path: path})
	require.NoError(t, err)
	require.NoError(t, w.EndOfStream())

	rd, err := OpenReader(ReaderConfig{Path: path, Loop: true})
	require.NoError(t, err)
	defer rd.Close()

	_, err = rd.Capture()
	assert.ErrorIs(t, err, io.EOF)
}

func TestOpenReader_BadHeader(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.rec")

	var buf bytes.Buffer
	require.NoError(t, writeRecord(&buf, Header{Magic: "something-else"}))
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0o644))

	_, err := OpenReader(ReaderConfig{Path: path})
	assert.ErrorIs(t, err, ErrBadHeader)

	require.NoError(t, os.WriteFile(path, []byte("junk"), 0o644))
	_, err = OpenReader(ReaderConfig{Path: path})
	assert.ErrorIs(t, err, ErrBadHeader)
}

func TestWriter_StopDrainsLoop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop.rec")
	w, err := NewWriter(WriterConfig{Path: path})
	require.NoError(t, err)

	src := pattern.New(pattern.Config{Interval: pattern.NoPacing})
	loop, err := edgeview.NewLoop(edgeview.LoopConfig{
		Mode: edgeview.FilterPassthrough,
		Tap: func(seq uint64, _ []byte) {
			if seq == 5 {
				w.Stop()
			}
		},
	}, src, w, w)
	require.NoError(t, err)

	require.NoError(t, loop.Run())
	assert.Equal(t, uint64(4), w.Written())
	assert.True(t, loop.Stats().EndOfStreamSent)

	ev, ok := w.Next(time.Second)
	require.True(t, ok)
	assert.Equal(t, edgeview.EventEndOfStream, ev.Kind)
}
