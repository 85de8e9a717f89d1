// Package pattern provides a synthetic YUY2 capture source for running the
// pipeline without a camera.
package pattern

import (
	"fmt"
	"io"
	"log/slog"
	"sync/atomic"
	"time"

	edgeview "github.com/e7canasta/orion-edgeview"
)

// Kind selects the luma pattern painted into every frame.
type Kind int

const (
	// VerticalEdge is black on the left half and white on the right half
	VerticalEdge Kind = iota
	// Gradient ramps luma from 0 to 255 left to right
	Gradient
	// Checker alternates 32x32 black and white squares
	Checker
	// Flat is uniform mid-grey
	Flat
)

// checkerSize is the side of one checker square in pixels
const checkerSize = 32

// NoPacing disables frame pacing: Capture returns immediately.
const NoPacing time.Duration = -1

// String returns the configuration name of the kind
func (k Kind) String() string {
	switch k {
	case VerticalEdge:
		return "vertical-edge"
	case Gradient:
		return "gradient"
	case Checker:
		return "checker"
	case Flat:
		return "flat"
	default:
		return "unknown"
	}
}

// ParseKind maps a configuration name to a Kind.
func ParseKind(s string) (Kind, error) {
	switch s {
	case "vertical-edge", "edge", "":
		return VerticalEdge, nil
	case "gradient":
		return Gradient, nil
	case "checker":
		return Checker, nil
	case "flat":
		return Flat, nil
	default:
		return 0, fmt.Errorf("pattern: unknown pattern %q", s)
	}
}

// Config contains configuration for the synthetic source
type Config struct {
	Kind Kind
	// Interval between frames (0 = nominal frame interval, NoPacing = unpaced)
	Interval time.Duration
	// MalformedEvery makes every Nth capture return a truncated frame (0 = never)
	MalformedEvery int
	// Frames limits the number of captures before io.EOF (0 = unlimited)
	Frames int
}

// Source generates frames into one reused backing buffer.
type Source struct {
	cfg    Config
	frame  []byte
	ticker *time.Ticker

	captures  atomic.Uint64
	malformed atomic.Uint64
}

// New creates a synthetic source and paints its frame once.
func New(cfg Config) *Source {
	if cfg.Interval == 0 {
		cfg.Interval = edgeview.FrameInterval
	}

	s := &Source{
		cfg:   cfg,
		frame: make([]byte, edgeview.FrameSize),
	}
	Paint(s.frame, cfg.Kind)

	slog.Info("pattern: source created",
		"pattern", cfg.Kind.String(),
		"interval", cfg.Interval,
		"malformed_every", cfg.MalformedEvery,
		"frames", cfg.Frames,
	)

	return s
}

// Capture implements edgeview.CaptureSource.
//
// It blocks until the next frame interval elapses, then returns the shared
// frame buffer. The caller must not retain the slice across captures.
func (s *Source) Capture() ([]byte, error) {
	n := s.captures.Add(1)
	if s.cfg.Frames > 0 && n > uint64(s.cfg.Frames) {
		return nil, io.EOF
	}

	s.pace()

	if s.cfg.MalformedEvery > 0 && n%uint64(s.cfg.MalformedEvery) == 0 {
		s.malformed.Add(1)
		return s.frame[:len(s.frame)-edgeview.FrameSize/2], nil
	}
	return s.frame, nil
}

func (s *Source) pace() {
	if s.cfg.Interval < 0 {
		return
	}
	if s.ticker == nil {
		s.ticker = time.NewTicker(s.cfg.Interval)
		return
	}
	<-s.ticker.C
}

// Malformed returns how many truncated frames were injected.
func (s *Source) Malformed() uint64 {
	return s.malformed.Load()
}

// Close stops pacing.
func (s *Source) Close() error {
	if s.ticker != nil {
		s.ticker.Stop()
	}
	return nil
}

// Paint fills a packed YUY2 frame with the pattern and neutral chroma.
func Paint(frame []byte, kind Kind) {
	w, h := edgeview.Width, edgeview.Height
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			i := (x + y*w) * 2
			frame[i] = lumaAt(kind, x, y)
			frame[i+1] = edgeview.NeutralChroma
		}
	}
}

func lumaAt(kind Kind, x, y int) uint8 {
	switch kind {
	case VerticalEdge:
		if x >= edgeview.Width/2 {
			return 255
		}
		return 0
	case Gradient:
		return uint8(x * 255 / (edgeview.Width - 1))
	case Checker:
		if (x/checkerSize+y/checkerSize)%2 == 0 {
			return 0
		}
		return 255
	default:
		return 128
	}
}
