package recorder

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/google/uuid"

	edgeview "github.com/e7canasta/orion-edgeview"
)

// eventSource names the writer in the events it posts
const eventSource = "recorder"

// WriterConfig contains configuration for a recording sink
type WriterConfig struct {
	// Path of the recording file (created or truncated)
	Path string
	// SessionID is stored in the header
	SessionID string
	// Mode is the filter mode name stored in the header
	Mode string
	// MaxFrames bounds how many buffers the pool hands out (0 = unlimited)
	MaxFrames int
}

// Writer is a BufferPool, Sink and EventStream that records to a file.
type Writer struct {
	cfg    WriterConfig
	file   *os.File
	w      *bufio.Writer
	events *edgeview.EventQueue

	mu      sync.Mutex
	handed  int
	written uint64
	stopped bool
	closed  bool
	backing []byte
}

// frameBuffer is the writer's single reusable buffer.
type frameBuffer struct {
	data   []byte
	filled bool
}

// Fill implements edgeview.Buffer.
func (b *frameBuffer) Fill(src []byte) error {
	if len(src) != len(b.data) {
		return fmt.Errorf("recorder: buffer is %d bytes, frame is %d: %w",
			len(b.data), len(src), edgeview.ErrFrameSize)
	}
	copy(b.data, src)
	b.filled = true
	return nil
}

// Discard implements edgeview.Buffer.
func (b *frameBuffer) Discard() {
	b.filled = false
}

// NewWriter creates the recording file and writes its header.
func NewWriter(cfg WriterConfig) (*Writer, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("recorder: path is required")
	}
	if cfg.MaxFrames < 0 {
		return nil, fmt.Errorf("recorder: max_frames must be >= 0, got %d", cfg.MaxFrames)
	}

	file, err := os.Create(cfg.Path)
	if err != nil {
		return nil, fmt.Errorf("recorder: failed to create %s: %w", cfg.Path, err)
	}

	w := &Writer{
		cfg:     cfg,
		file:    file,
		w:       bufio.NewWriterSize(file, edgeview.FrameSize+64),
		events:  edgeview.NewEventQueue(4),
		backing: make([]byte, edgeview.FrameSize),
	}

	header := Header{
		Magic:     Magic,
		Version:   Version,
		SessionID: cfg.SessionID,
		Format:    edgeview.PixelFormat,
		Width:     edgeview.Width,
		Height:    edgeview.Height,
		Mode:      cfg.Mode,
		Created:   time.Now().UTC(),
	}
	if err := writeRecord(w.w, header); err != nil {
		file.Close()
		return nil, fmt.Errorf("recorder: header: %w", err)
	}

	slog.Info("recorder: recording started",
		"path", cfg.Path,
		"session_id", cfg.SessionID,
		"max_frames", cfg.MaxFrames,
	)

	return w, nil
}

// Acquire implements edgeview.BufferPool. It returns no buffer once
// MaxFrames buffers have been handed out or the writer is closed.
func (w *Writer) Acquire() (edgeview.Buffer, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed || w.stopped {
		return nil, false
	}
	if w.cfg.MaxFrames > 0 && w.handed >= w.cfg.MaxFrames {
		return nil, false
	}
	w.handed++
	return &frameBuffer{data: w.backing}, true
}

// Deliver implements edgeview.Sink by appending one frame record.
func (w *Writer) Deliver(b edgeview.Buffer) error {
	fb, ok := b.(*frameBuffer)
	if !ok {
		return fmt.Errorf("recorder: foreign buffer type %T", b)
	}
	if !fb.filled {
		return fmt.Errorf("recorder: delivered buffer was never filled")
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return fmt.Errorf("recorder: deliver after end of stream")
	}

	w.written++
	rec := Frame{
		Seq:       w.written,
		Timestamp: time.Now().UTC(),
		TraceID:   uuid.NewString(),
		Data:      fb.data,
	}
	if err := writeRecord(w.w, rec); err != nil {
		return fmt.Errorf("recorder: frame %d: %w", rec.Seq, err)
	}

	slog.Debug("recorder: frame written", "seq", rec.Seq, "trace_id", rec.TraceID)
	return nil
}

// EndOfStream implements edgeview.Sink. It flushes and closes the file,
// then posts EventEndOfStream on the writer's event stream.
func (w *Writer) EndOfStream() error {
	if err := w.finish(); err != nil {
		return err
	}

	w.events.Post(edgeview.Event{Kind: edgeview.EventEndOfStream, Source: eventSource})
	return nil
}

// Stop makes Acquire return no buffer from now on, so the loop drains and
// ends the recording through EndOfStream.
func (w *Writer) Stop() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.stopped = true
}

// Next implements edgeview.EventStream.
func (w *Writer) Next(timeout time.Duration) (edgeview.Event, bool) {
	return w.events.Next(timeout)
}

// Written returns the number of frames recorded so far.
func (w *Writer) Written() uint64 {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Close flushes and closes the file if end-of-stream was never reached.
// Idempotent.
func (w *Writer) Close() error {
	return w.finish()
}

func (w *Writer) finish() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.closed {
		return nil
	}
	w.closed = true

	if err := w.w.Flush(); err != nil {
		w.file.Close()
		return fmt.Errorf("recorder: flush %s: %w", w.cfg.Path, err)
	}
	if err := w.file.Close(); err != nil {
		return fmt.Errorf("recorder: close %s: %w", w.cfg.Path, err)
	}

	slog.Info("recorder: recording closed", "path", w.cfg.Path, "frames", w.written)
	return nil
}
