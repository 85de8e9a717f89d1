package filter

import "fmt"

// Engine runs one kernel over whole frames of a fixed geometry.
// An Engine holds no per-frame state and is safe for concurrent use on
// distinct output buffers.
type Engine struct {
	width  int
	height int
	kernel Kernel
}

// NewEngine creates an engine for width x height frames using mode.
func NewEngine(width, height int, mode Mode) (*Engine, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("filter: invalid geometry %dx%d", width, height)
	}
	if width%2 != 0 {
		return nil, fmt.Errorf("filter: YUY2 width must be even, got %d", width)
	}

	kernel, err := KernelFor(mode)
	if err != nil {
		return nil, err
	}

	return &Engine{width: width, height: height, kernel: kernel}, nil
}

// FrameSize is the byte length Run expects for both src and dst.
func (e *Engine) FrameSize() int {
	return FrameSize(e.width, e.height)
}

// Kernel returns the kernel the engine applies.
func (e *Engine) Kernel() Kernel {
	return e.kernel
}

// Run filters src into dst. Both must be exactly FrameSize bytes long.
//
// Every byte of dst is written exactly once: the luma byte of each pixel gets
// the kernel output and the following byte gets NeutralChroma. A reused dst
// therefore never carries data from a previous frame. src is only read.
func (e *Engine) Run(src, dst []byte) error {
	size := e.FrameSize()
	if len(src) != size {
		return fmt.Errorf("filter: source is %d bytes, want %d", len(src), size)
	}
	if len(dst) != size {
		return fmt.Errorf("filter: destination is %d bytes, want %d", len(dst), size)
	}

	frame := Frame{Data: src, Width: e.width, Height: e.height}
	for idx, n := range frame.Neighborhoods() {
		off := idx * BytesPerPixel
		dst[off] = e.kernel.Apply(n)
		dst[off+1] = NeutralChroma
	}

	return nil
}
