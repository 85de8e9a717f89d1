package edgeview

import (
	"fmt"

	"github.com/e7canasta/orion-edgeview/internal/filter"
)

// FrameFilter applies one FilterMode to full 640x480 YUY2 frames.
type FrameFilter struct {
	engine *filter.Engine
}

// NewFrameFilter creates a filter for the fixed stream geometry.
func NewFrameFilter(mode FilterMode) (*FrameFilter, error) {
	engine, err := filter.NewEngine(Width, Height, mode)
	if err != nil {
		return nil, fmt.Errorf("edgeview: %w", err)
	}
	return &FrameFilter{engine: engine}, nil
}

// Run filters src into the caller-owned dst. Both must be FrameSize bytes;
// otherwise ErrFrameSize is returned and dst is untouched. Every byte of dst
// is overwritten.
func (f *FrameFilter) Run(src, dst []byte) error {
	if len(src) != FrameSize || len(dst) != FrameSize {
		return fmt.Errorf("%w: src=%d dst=%d want=%d", ErrFrameSize, len(src), len(dst), FrameSize)
	}
	return f.engine.Run(src, dst)
}

// Apply filters src into a newly allocated output frame.
func (f *FrameFilter) Apply(src []byte) ([]byte, error) {
	dst := make([]byte, FrameSize)
	if err := f.Run(src, dst); err != nil {
		return nil, err
	}
	return dst, nil
}

// KernelName identifies the kernel in logs.
func (f *FrameFilter) KernelName() string {
	return f.engine.Kernel().Name()
}
