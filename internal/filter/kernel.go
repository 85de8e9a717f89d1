package filter

import (
	"fmt"
	"math"
	"strings"
)

// Mode selects the kernel applied to every neighborhood.
type Mode int

const (
	// ModeEdgeMagnitude outputs the 3x3 gradient magnitude of the luma plane.
	ModeEdgeMagnitude Mode = iota
	// ModePassthrough outputs the center luma unchanged.
	ModePassthrough
)

// String returns the configuration name of the mode.
func (m Mode) String() string {
	switch m {
	case ModeEdgeMagnitude:
		return "edge"
	case ModePassthrough:
		return "passthrough"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseMode maps a configuration name to a Mode.
func ParseMode(s string) (Mode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "edge", "sobel", "edge-magnitude":
		return ModeEdgeMagnitude, nil
	case "passthrough", "identity":
		return ModePassthrough, nil
	default:
		return 0, fmt.Errorf("filter: unknown mode %q (must be edge or passthrough)", s)
	}
}

// Kernel turns one neighborhood into one output luma sample.
// Implementations are pure.
type Kernel interface {
	Apply(n Neighborhood) uint8
	Name() string
}

// KernelFor returns the kernel implementing mode.
func KernelFor(mode Mode) (Kernel, error) {
	switch mode {
	case ModeEdgeMagnitude:
		return EdgeMagnitude{}, nil
	case ModePassthrough:
		return Passthrough{}, nil
	default:
		return nil, fmt.Errorf("filter: unsupported mode %v", mode)
	}
}

// EdgeMagnitude is the classic 3x3 Sobel operator on luma.
type EdgeMagnitude struct{}

// Gradients returns the horizontal and vertical Sobel responses of n.
//
//	dx = (n0 + 2*n3 + n6) - (n2 + 2*n5 + n8)
//	dy = (n0 + 2*n1 + n2) - (n6 + 2*n7 + n8)
func (EdgeMagnitude) Gradients(n Neighborhood) (dx, dy int32) {
	dx = (n[0] + 2*n[3] + n[6]) - (n[2] + 2*n[5] + n[8])
	dy = (n[0] + 2*n[1] + n[2]) - (n[6] + 2*n[7] + n[8])
	return dx, dy
}

// Apply returns round(sqrt(dx^2 + dy^2)) clipped to 255.
// With 8-bit inputs |dx|, |dy| <= 1020, so the squares fit an int32 sum.
func (k EdgeMagnitude) Apply(n Neighborhood) uint8 {
	dx, dy := k.Gradients(n)
	return Saturate(math.Sqrt(float64(dx*dx + dy*dy)))
}

// Name identifies the kernel in logs.
func (EdgeMagnitude) Name() string { return "edge-magnitude" }

// Passthrough copies the center luma, leaving the addressing machinery as the
// only thing under test.
type Passthrough struct{}

// Apply returns the center sample.
func (Passthrough) Apply(n Neighborhood) uint8 { return uint8(n.Center()) }

// Name identifies the kernel in logs.
func (Passthrough) Name() string { return "passthrough" }

// Saturate rounds v to the nearest integer and clips it into [0, 255].
// Values above 255 become 255; they never wrap.
func Saturate(v float64) uint8 {
	r := math.Round(v)
	switch {
	case math.IsNaN(r) || r <= 0:
		return 0
	case r >= 255:
		return 255
	default:
		return uint8(r)
	}
}
