package edgeview

import (
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/e7canasta/orion-edgeview/internal/cadence"
)

// TapFunc observes a filtered frame after filtering and before delivery.
// filtered is the loop's scratch buffer: read it, never retain or modify it.
type TapFunc func(seq uint64, filtered []byte)

// LoopConfig contains configuration for the capture/delivery loop
type LoopConfig struct {
	// Mode selects the filter kernel (fixed for the loop's lifetime)
	Mode FilterMode
	// Tap is optional; it runs on the loop goroutine and must be fast
	Tap TapFunc
	// CadenceWindow is the number of delivery timestamps kept for FPS stats
	// (0 = cadence.DefaultWindowSize)
	CadenceWindow int
}

// Loop moves frames from a CaptureSource through the filter into a Sink.
//
// One frame is in flight at a time and frames are delivered in capture
// order. The loop owns a single scratch buffer that is reused for every
// frame and never shared. The only normal way out is pool exhaustion, after
// which end-of-stream is signalled exactly once.
type Loop struct {
	source CaptureSource
	pool   BufferPool
	sink   Sink
	filter *FrameFilter
	tap    TapFunc

	scratch []byte

	state     atomic.Int32
	running   atomic.Bool
	startedAt atomic.Int64 // unix nanos, 0 until Run

	framesCaptured  atomic.Uint64
	framesMalformed atomic.Uint64
	framesDelivered atomic.Uint64
	eosSent         atomic.Bool

	cadence *cadence.Window
}

// NewLoop creates a loop with fail-fast validation of its collaborators.
func NewLoop(cfg LoopConfig, source CaptureSource, pool BufferPool, sink Sink) (*Loop, error) {
	if source == nil {
		return nil, fmt.Errorf("edgeview: capture source is required")
	}
	if pool == nil {
		return nil, fmt.Errorf("edgeview: buffer pool is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("edgeview: sink is required")
	}

	ff, err := NewFrameFilter(cfg.Mode)
	if err != nil {
		return nil, err
	}

	window := cfg.CadenceWindow
	if window <= 0 {
		window = cadence.DefaultWindowSize
	}

	l := &Loop{
		source:  source,
		pool:    pool,
		sink:    sink,
		filter:  ff,
		tap:     cfg.Tap,
		scratch: make([]byte, FrameSize),
		cadence: cadence.NewWindow(window),
	}

	slog.Info("edgeview: loop created",
		"resolution", fmt.Sprintf("%dx%d", Width, Height),
		"format", PixelFormat,
		"kernel", ff.KernelName(),
	)

	return l, nil
}

// Run executes the capture → filter → acquire → deliver cycle until the
// buffer pool is exhausted, then signals end-of-stream and returns nil.
//
// Malformed captures (wrong length) are discarded and the loop captures
// again. Any other failure (capture error, fill error, delivery error,
// end-of-stream error) is returned wrapped and ends the loop without retry.
//
// Run blocks the calling goroutine and may be called only once.
func (l *Loop) Run() error {
	if !l.running.CompareAndSwap(false, true) {
		return fmt.Errorf("edgeview: loop already started")
	}
	l.startedAt.Store(time.Now().UnixNano())

	slog.Info("edgeview: loop running")

	for {
		l.setState(StateCapturing)
		raw, err := l.source.Capture()
		if err != nil {
			l.setState(StateStopped)
			return fmt.Errorf("edgeview: capture failed: %w", err)
		}
		seq := l.framesCaptured.Add(1)

		if len(raw) != FrameSize {
			l.framesMalformed.Add(1)
			slog.Debug("edgeview: discarding malformed capture",
				"seq", seq,
				"size_bytes", len(raw),
				"want_bytes", FrameSize,
			)
			continue
		}

		l.setState(StateFiltering)
		if err := l.filter.Run(raw, l.scratch); err != nil {
			l.setState(StateStopped)
			return err
		}
		if l.tap != nil {
			l.tap(seq, l.scratch)
		}

		l.setState(StateAcquiring)
		buf, ok := l.pool.Acquire()
		if !ok {
			return l.drain(seq)
		}

		if err := buf.Fill(l.scratch); err != nil {
			buf.Discard()
			l.setState(StateStopped)
			return fmt.Errorf("edgeview: failed to fill sink buffer: %w", err)
		}

		l.setState(StateDelivering)
		if err := l.sink.Deliver(buf); err != nil {
			l.setState(StateStopped)
			return fmt.Errorf("edgeview: delivery failed: %w", err)
		}

		l.framesDelivered.Add(1)
		l.cadence.Add(time.Now())

		slog.Debug("edgeview: frame delivered", "seq", seq)
	}
}

// drain signals end-of-stream after the pool stopped supplying buffers.
func (l *Loop) drain(seq uint64) error {
	l.setState(StateDraining)

	slog.Info("edgeview: buffer pool exhausted, sending end of stream",
		"seq", seq,
		"frames_delivered", l.framesDelivered.Load(),
	)

	err := l.sink.EndOfStream()
	l.eosSent.Store(true)
	l.setState(StateStopped)

	if err != nil {
		return fmt.Errorf("edgeview: end of stream failed: %w", err)
	}

	slog.Info("edgeview: loop stopped",
		"frames_captured", l.framesCaptured.Load(),
		"frames_malformed", l.framesMalformed.Load(),
		"frames_delivered", l.framesDelivered.Load(),
		"uptime", l.uptime(),
	)
	return nil
}

// State returns the current loop state. Safe from any goroutine.
func (l *Loop) State() State {
	return State(l.state.Load())
}

func (l *Loop) setState(s State) {
	l.state.Store(int32(s))
}

func (l *Loop) uptime() time.Duration {
	started := l.startedAt.Load()
	if started == 0 {
		return 0
	}
	return time.Since(time.Unix(0, started))
}

// Stats returns current loop statistics
//
// Thread-safe - counters are atomic and the cadence window is locked.
func (l *Loop) Stats() Stats {
	c := l.cadence.Stats()

	return Stats{
		State:           l.State(),
		FramesCaptured:  l.framesCaptured.Load(),
		FramesMalformed: l.framesMalformed.Load(),
		FramesDelivered: l.framesDelivered.Load(),
		EndOfStreamSent: l.eosSent.Load(),
		Uptime:          l.uptime(),
		FPSReal:         c.FPSMean,
		FPSStdDev:       c.FPSStdDev,
		FPSMin:          c.FPSMin,
		FPSMax:          c.FPSMax,
		JitterMeanMS:    c.JitterMean * 1000,
		IsStable:        c.IsStable,
	}
}
