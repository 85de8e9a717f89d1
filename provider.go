package edgeview

// CaptureSource yields raw YUY2 frames.
//
// Implementations must guarantee:
//   - Capture() blocks until a frame is available (bounded by hardware frame timing)
//   - The returned slice is only valid until the next Capture() call; the
//     source may reuse its backing storage
//   - A length other than FrameSize is a malformed capture, not an error
//   - A non-nil error is a device-level failure and ends the loop
type CaptureSource interface {
	Capture() ([]byte, error)
}

// Buffer is one writable destination handed out by a BufferPool.
type Buffer interface {
	// Fill copies src into the buffer's memory. src is exactly FrameSize bytes.
	Fill(src []byte) error
	// Discard returns an unfilled or undelivered buffer to its pool.
	Discard()
}

// BufferPool supplies destination buffers for the sink.
//
// Acquire must not block indefinitely: once the pool is exhausted or
// deactivated it returns ok == false. That result is the only backpressure
// signal the loop observes and ends the loop.
type BufferPool interface {
	Acquire() (buf Buffer, ok bool)
}

// Sink displays filled buffers.
type Sink interface {
	// Deliver takes ownership of a filled buffer.
	Deliver(buf Buffer) error
	// EndOfStream tells the sink no further buffers will arrive.
	EndOfStream() error
}
