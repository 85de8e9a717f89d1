package edgeview

import (
	"errors"
	"time"

	"github.com/e7canasta/orion-edgeview/internal/filter"
)

// Fixed stream geometry. Format negotiation is out of scope: every
// collaborator is configured with these values at startup.
const (
	// Width in pixels
	Width = 640
	// Height in pixels
	Height = 480
	// FrameRate is the nominal capture and display rate in Hz
	FrameRate = 30
	// PixelFormat is the packed 4:2:2 layout used end to end
	PixelFormat = "YUY2"
	// FrameSize is the byte length of every captured and delivered frame
	FrameSize = Width * Height * filter.BytesPerPixel
	// FrameInterval is the nominal time between two frames
	FrameInterval = time.Second / FrameRate
	// NeutralChroma is written into every chroma byte of a filtered frame
	NeutralChroma = filter.NeutralChroma
)

// ErrFrameSize reports a buffer whose length is not FrameSize.
var ErrFrameSize = errors.New("edgeview: frame size mismatch")

// FilterMode selects the kernel the loop applies to every frame.
type FilterMode = filter.Mode

const (
	// FilterEdgeMagnitude outputs the 3x3 gradient magnitude of luma
	FilterEdgeMagnitude = filter.ModeEdgeMagnitude
	// FilterPassthrough outputs luma unchanged
	FilterPassthrough = filter.ModePassthrough
)

// ParseFilterMode maps "edge" or "passthrough" to a FilterMode.
func ParseFilterMode(s string) (FilterMode, error) {
	return filter.ParseMode(s)
}

// State is the position of the capture/delivery loop in its cycle.
type State int32

const (
	// StateIdle means Run has not been called yet
	StateIdle State = iota
	// StateCapturing means the loop is blocked on the capture source
	StateCapturing
	// StateFiltering means the loop is running the filter engine
	StateFiltering
	// StateAcquiring means the loop is requesting a buffer from the pool
	StateAcquiring
	// StateDelivering means the loop is handing a filled buffer to the sink
	StateDelivering
	// StateDraining means the pool is exhausted and end-of-stream is being signalled
	StateDraining
	// StateStopped is terminal
	StateStopped
)

// String returns a human-readable name for the state
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateCapturing:
		return "capturing"
	case StateFiltering:
		return "filtering"
	case StateAcquiring:
		return "acquiring"
	case StateDelivering:
		return "delivering"
	case StateDraining:
		return "draining"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats is a snapshot of loop counters and delivery cadence.
type Stats struct {
	// State is the loop state at snapshot time
	State State
	// FramesCaptured counts every capture call that returned data
	FramesCaptured uint64
	// FramesMalformed counts captures discarded for a wrong length
	FramesMalformed uint64
	// FramesDelivered counts buffers handed to the sink
	FramesDelivered uint64
	// EndOfStreamSent is true once the loop has signalled end-of-stream
	EndOfStreamSent bool
	// Uptime is the time since Run started
	Uptime time.Duration
	// FPSReal is the mean delivery rate over the cadence window
	FPSReal float64
	// FPSStdDev is the standard deviation of the instantaneous delivery rate
	FPSStdDev float64
	// FPSMin and FPSMax bound the instantaneous delivery rate
	FPSMin float64
	FPSMax float64
	// JitterMeanMS is the mean deviation from the expected interval in milliseconds
	JitterMeanMS float64
	// IsStable is true if FPS stddev < 15% of mean and jitter < 20% of interval
	IsStable bool
}
