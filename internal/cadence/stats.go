// Package cadence measures how regularly frames leave the delivery loop.
package cadence

import (
	"math"
	"sync"
	"time"
)

const (
	// fpsStabilityThreshold is the maximum allowed FPS standard deviation as a
	// fraction of mean FPS.
	// Example: 30 FPS mean → stable if stddev < 4.5 FPS
	fpsStabilityThreshold = 0.15

	// jitterStabilityThreshold is the maximum allowed mean jitter as a
	// fraction of the expected inter-frame interval.
	// Example: 30 FPS (33ms interval) → stable if jitter < 6.6ms
	jitterStabilityThreshold = 0.20

	// DefaultWindowSize holds ~4 seconds of timestamps at 30 FPS.
	DefaultWindowSize = 128
)

// Stats summarizes a series of frame timestamps.
type Stats struct {
	Frames       int
	Duration     time.Duration
	FPSMean      float64
	FPSStdDev    float64
	FPSMin       float64
	FPSMax       float64
	JitterMean   float64 // seconds
	JitterStdDev float64 // seconds
	JitterMax    float64 // seconds
	IsStable     bool
}

// Calculate computes cadence statistics from frame timestamps.
//
// Stability threshold:
//   - FPS: stddev < 15% of mean FPS
//   - Jitter: mean jitter < 20% of expected interval
//
// Fewer than two timestamps, or a non-positive duration, yields a
// zero-rate, unstable result.
func Calculate(frameTimes []time.Time, totalDuration time.Duration) Stats {
	n := len(frameTimes)
	if n == 0 || totalDuration <= 0 {
		return Stats{Frames: n, Duration: totalDuration}
	}

	fpsMean := float64(n) / totalDuration.Seconds()

	instantaneousFPS := make([]float64, 0, n-1)
	for i := 1; i < n; i++ {
		interval := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		if interval > 0 {
			instantaneousFPS = append(instantaneousFPS, 1.0/interval)
		}
	}

	if len(instantaneousFPS) == 0 {
		return Stats{Frames: n, Duration: totalDuration, FPSMean: fpsMean}
	}

	fpsMin := instantaneousFPS[0]
	fpsMax := instantaneousFPS[0]
	var sumSquares float64
	for _, fps := range instantaneousFPS {
		fpsMin = math.Min(fpsMin, fps)
		fpsMax = math.Max(fpsMax, fps)
		diff := fps - fpsMean
		sumSquares += diff * diff
	}
	fpsStdDev := math.Sqrt(sumSquares / float64(len(instantaneousFPS)))

	// Jitter = deviation from the expected inter-frame interval
	expectedInterval := 1.0 / fpsMean

	jitters := make([]float64, 0, n-1)
	var jitterSum, jitterMax float64
	for i := 1; i < n; i++ {
		actual := frameTimes[i].Sub(frameTimes[i-1]).Seconds()
		j := math.Abs(actual - expectedInterval)
		jitters = append(jitters, j)
		jitterSum += j
		jitterMax = math.Max(jitterMax, j)
	}
	jitterMean := jitterSum / float64(len(jitters))

	var jitterSumSquares float64
	for _, j := range jitters {
		diff := j - jitterMean
		jitterSumSquares += diff * diff
	}
	jitterStdDev := math.Sqrt(jitterSumSquares / float64(len(jitters)))

	fpsStable := fpsStdDev < fpsMean*fpsStabilityThreshold
	jitterStable := jitterMean < expectedInterval*jitterStabilityThreshold

	return Stats{
		Frames:       n,
		Duration:     totalDuration,
		FPSMean:      fpsMean,
		FPSStdDev:    fpsStdDev,
		FPSMin:       fpsMin,
		FPSMax:       fpsMax,
		JitterMean:   jitterMean,
		JitterStdDev: jitterStdDev,
		JitterMax:    jitterMax,
		IsStable:     fpsStable && jitterStable,
	}
}

// Window is a bounded ring of recent frame timestamps.
// Safe for one writer and any number of concurrent readers.
type Window struct {
	mu      sync.Mutex
	samples []time.Time
	next    int
	count   int
}

// NewWindow creates a window holding at most size timestamps.
func NewWindow(size int) *Window {
	if size < 2 {
		size = 2
	}
	return &Window{samples: make([]time.Time, size)}
}

// Add records one timestamp, evicting the oldest when full.
func (w *Window) Add(ts time.Time) {
	w.mu.Lock()
	w.samples[w.next] = ts
	w.next = (w.next + 1) % len(w.samples)
	if w.count < len(w.samples) {
		w.count++
	}
	w.mu.Unlock()
}

// Len returns the number of timestamps held.
func (w *Window) Len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.count
}

// Snapshot returns the held timestamps oldest first.
func (w *Window) Snapshot() []time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()

	out := make([]time.Time, 0, w.count)
	start := (w.next - w.count + len(w.samples)) % len(w.samples)
	for i := 0; i < w.count; i++ {
		out = append(out, w.samples[(start+i)%len(w.samples)])
	}
	return out
}

// Stats computes cadence over the window. The duration spans the first to
// the last timestamp plus one mean interval, so n evenly spaced frames at
// rate r report FPSMean == r.
func (w *Window) Stats() Stats {
	times := w.Snapshot()
	if len(times) < 2 {
		return Stats{Frames: len(times)}
	}

	span := times[len(times)-1].Sub(times[0])
	if span <= 0 {
		return Stats{Frames: len(times)}
	}
	meanInterval := span / time.Duration(len(times)-1)

	return Calculate(times, span+meanInterval)
}
