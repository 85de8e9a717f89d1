package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/pflag"

	edgeview "github.com/e7canasta/orion-edgeview"
	"github.com/e7canasta/orion-edgeview/internal/config"
	"github.com/e7canasta/orion-edgeview/internal/gstsink"
	"github.com/e7canasta/orion-edgeview/internal/pattern"
	"github.com/e7canasta/orion-edgeview/internal/recorder"
	"github.com/e7canasta/orion-edgeview/internal/snapshot"
	"github.com/e7canasta/orion-edgeview/internal/tapbus"
	"github.com/e7canasta/orion-edgeview/internal/telemetry"
	"github.com/e7canasta/orion-edgeview/internal/v4l2cam"
)

// Version information
const version = "v0.1.0"

// drainTimeout bounds how long shutdown waits for the loop after a signal
const drainTimeout = 2 * time.Second

func main() {
	os.Exit(run())
}

func run() int {
	// Parse command-line flags
	configPath := pflag.StringP("config", "c", "", "Path to YAML configuration file")
	mode := pflag.StringP("mode", "m", "", "Filter mode: edge, passthrough")
	sourceKind := pflag.String("source", "", "Frame source: v4l2, pattern, replay")
	device := pflag.String("device", "", "V4L2 device node")
	patternName := pflag.String("pattern", "", "Synthetic pattern: vertical-edge, gradient, checker, flat")
	input := pflag.String("input", "", "Recording to replay (implies --source replay)")
	sinkKind := pflag.String("sink", "", "Frame sink: display, record")
	record := pflag.String("record", "", "Record filtered frames to file (implies --sink record)")
	maxFrames := pflag.Int("max-frames", 0, "Record pool capacity (0 = unlimited)")
	debug := pflag.Bool("debug", false, "Enable debug logging")
	showVersion := pflag.Bool("version", false, "Show version and exit")
	pflag.Parse()

	// Show version
	if *showVersion {
		fmt.Printf("edgeview %s\n", version)
		return 0
	}

	cfg := config.Default()
	if *configPath != "" {
		loaded, err := config.Load(*configPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			return 1
		}
		cfg = loaded
	}

	// Command-line overrides
	changed := pflag.CommandLine.Changed
	if changed("mode") {
		cfg.Filter.Mode = *mode
	}
	if changed("source") {
		cfg.Source.Kind = *sourceKind
	}
	if changed("device") {
		cfg.Source.Device = *device
	}
	if changed("pattern") {
		cfg.Source.Pattern = *patternName
	}
	if changed("input") {
		cfg.Source.Kind = config.SourceReplay
		cfg.Source.Path = *input
	}
	if changed("sink") {
		cfg.Sink.Kind = *sinkKind
	}
	if changed("record") {
		cfg.Sink.Kind = config.SinkRecord
		cfg.Sink.Path = *record
	}
	if changed("max-frames") {
		cfg.Sink.MaxFrames = *maxFrames
	}
	if *debug {
		cfg.Log.Level = "debug"
	}
	if err := config.Validate(cfg); err != nil {
		fmt.Fprintf(os.Stderr, "Error: invalid configuration: %v\n\n", err)
		pflag.PrintDefaults()
		return 1
	}

	// Set up logging
	sessionID := uuid.NewString()
	slog.SetDefault(newLogger(cfg.Log).With("session_id", sessionID))

	slog.Info("edgeview starting",
		"version", version,
		"source", cfg.Source.Kind,
		"filter", cfg.Filter.Mode,
		"sink", cfg.Sink.Kind,
		"resolution", fmt.Sprintf("%dx%d", edgeview.Width, edgeview.Height),
		"format", edgeview.PixelFormat,
	)

	filterMode, err := edgeview.ParseFilterMode(cfg.Filter.Mode)
	if err != nil {
		slog.Error("invalid filter mode", "error", err)
		return 1
	}

	// Graceful shutdown on SIGINT/SIGTERM
	sigCtx, stopSignals := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stopSignals()

	source, closeSource, err := openSource(cfg.Source)
	if err != nil {
		slog.Error("failed to open frame source", "error", err)
		return 1
	}
	defer closeSource()

	out, err := openSink(cfg.Sink, sessionID, filterMode.String())
	if err != nil {
		slog.Error("failed to open frame sink", "error", err)
		return 1
	}
	defer func() {
		if err := out.close(); err != nil {
			slog.Warn("error closing sink", "error", err)
		}
	}()

	// Observers get frames through the tap bus so slow ones never stall the loop
	taps := tapbus.New()
	defer taps.Close()
	observersCtx, stopObservers := context.WithCancel(context.Background())
	defer stopObservers()

	if cfg.Snapshot.Dir != "" {
		snaps, err := snapshot.NewWriter(snapshot.Config{
			Dir:    cfg.Snapshot.Dir,
			Every:  uint64(cfg.Snapshot.Every),
			Format: cfg.Snapshot.Format,
		})
		if err != nil {
			slog.Error("failed to set up snapshots", "error", err)
			return 1
		}
		frames := make(chan tapbus.Frame, 2)
		if err := taps.Subscribe("snapshot", frames, tapbus.EveryNth(uint64(cfg.Snapshot.Every))); err != nil {
			slog.Error("failed to subscribe snapshots", "error", err)
			return 1
		}
		go snaps.Run(observersCtx, frames)
		defer func() {
			sub := taps.Stats().Subscribers["snapshot"]
			slog.Info("snapshots written",
				"saved", snaps.Saved(),
				"failed", snaps.Failed(),
				"dropped", sub.Dropped,
			)
		}()
	}

	loopCfg := edgeview.LoopConfig{Mode: filterMode, Tap: taps.Publish}
	loop, err := edgeview.NewLoop(loopCfg, source, out.pool, out.sink)
	if err != nil {
		slog.Error("failed to create loop", "error", err)
		return 1
	}

	events := out.events
	var emitter *telemetry.Emitter
	if cfg.Telemetry.Broker != "" {
		clientID := cfg.Telemetry.ClientID
		if clientID == "" {
			clientID = "edgeview-" + sessionID[:8]
		}
		emitter = telemetry.NewEmitter(telemetry.Config{
			Broker:      cfg.Telemetry.Broker,
			ClientID:    clientID,
			TopicPrefix: cfg.Telemetry.TopicPrefix,
		})
		if err := emitter.Connect(sigCtx); err != nil {
			slog.Error("failed to connect telemetry", "error", err)
			return 1
		}
		defer emitter.Disconnect()
		events = telemetry.Tee(events, emitter)
	}

	// Supervision ends on end-of-stream, pipeline error, signal, or loop failure
	superCtx, stopSupervision := context.WithCancel(sigCtx)
	defer stopSupervision()

	loopDone := make(chan error, 1)
	go func() {
		err := loop.Run()
		if errors.Is(err, io.EOF) {
			// Finite source ended: close the stream the way pool exhaustion does
			slog.Info("frame source exhausted, sending end of stream")
			err = out.sink.EndOfStream()
		}
		loopDone <- err
		if err != nil {
			stopSupervision()
		}
	}()

	if cfg.StatsIntervalS > 0 {
		go reportStats(superCtx, loop, emitter, time.Duration(cfg.StatsIntervalS)*time.Second)
	}

	superErr := edgeview.Supervise(superCtx, events)

	exitCode := 0
	switch {
	case superErr != nil:
		slog.Error("pipeline failed", "error", superErr)
		exitCode = 1
		out.stop()

	case sigCtx.Err() != nil:
		slog.Info("received interrupt signal, shutting down")
		out.stop()
	}

	select {
	case err := <-loopDone:
		if err != nil {
			slog.Error("loop failed", "error", err)
			exitCode = 1
		}
	case <-time.After(drainTimeout):
		slog.Warn("loop did not stop in time", "state", loop.State().String())
	}

	logFinalStats(loop.Stats())
	return exitCode
}

// sinkSet bundles the pool, sink and event stream of one output.
type sinkSet struct {
	pool   edgeview.BufferPool
	sink   edgeview.Sink
	events edgeview.EventStream
	// stop makes the pool stop supplying buffers so the loop drains
	stop  func()
	close func() error
}

func openSink(cfg config.SinkConfig, sessionID, mode string) (*sinkSet, error) {
	switch cfg.Kind {
	case config.SinkRecord:
		w, err := recorder.NewWriter(recorder.WriterConfig{
			Path:      cfg.Path,
			SessionID: sessionID,
			Mode:      mode,
			MaxFrames: cfg.MaxFrames,
		})
		if err != nil {
			return nil, err
		}
		return &sinkSet{
			pool:   w,
			sink:   w,
			events: w,
			stop:   w.Stop,
			close:  w.Close,
		}, nil

	default:
		d, err := gstsink.NewDisplay(gstsink.Config{VideoSink: cfg.VideoSink})
		if err != nil {
			return nil, err
		}
		return &sinkSet{
			pool:   d,
			sink:   d,
			events: d,
			stop:   d.Deactivate,
			close:  d.Close,
		}, nil
	}
}

func openSource(cfg config.SourceConfig) (edgeview.CaptureSource, func(), error) {
	switch cfg.Kind {
	case config.SourcePattern:
		kind, err := pattern.ParseKind(cfg.Pattern)
		if err != nil {
			return nil, nil, err
		}
		src := pattern.New(pattern.Config{Kind: kind})
		return src, func() { src.Close() }, nil

	case config.SourceReplay:
		rd, err := recorder.OpenReader(recorder.ReaderConfig{Path: cfg.Path, Loop: cfg.Loop})
		if err != nil {
			return nil, nil, err
		}
		return rd, func() { rd.Close() }, nil

	default:
		// Streaming outlives the signal context so the loop can drain after Ctrl+C
		cam, err := v4l2cam.Open(context.Background(), v4l2cam.Config{Device: cfg.Device})
		if err != nil {
			return nil, nil, err
		}
		return cam, func() { cam.Close() }, nil
	}
}

func newLogger(cfg config.LogConfig) *slog.Logger {
	var level slog.Level
	if err := level.UnmarshalText([]byte(cfg.Level)); err != nil {
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	if cfg.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// reportStats logs loop statistics every interval until ctx is done, and
// publishes them when telemetry is enabled.
func reportStats(ctx context.Context, loop *edgeview.Loop, emitter *telemetry.Emitter, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			stats := loop.Stats()
			slog.Info("loop stats",
				"state", stats.State.String(),
				"uptime", stats.Uptime.Round(time.Second),
				"frames_captured", stats.FramesCaptured,
				"frames_malformed", stats.FramesMalformed,
				"frames_delivered", stats.FramesDelivered,
				"fps_real", fmt.Sprintf("%.2f", stats.FPSReal),
				"fps_stddev", fmt.Sprintf("%.2f", stats.FPSStdDev),
				"jitter_mean_ms", fmt.Sprintf("%.2f", stats.JitterMeanMS),
				"stable", stats.IsStable,
			)
			if emitter != nil {
				if err := emitter.PublishStats(stats); err != nil {
					slog.Warn("failed to publish stats", "error", err)
				}
			}
		}
	}
}

func logFinalStats(stats edgeview.Stats) {
	slog.Info("edgeview stopped",
		"uptime", stats.Uptime.Round(time.Millisecond),
		"frames_captured", stats.FramesCaptured,
		"frames_malformed", stats.FramesMalformed,
		"frames_delivered", stats.FramesDelivered,
		"eos_sent", stats.EndOfStreamSent,
		"fps_min", fmt.Sprintf("%.2f", stats.FPSMin),
		"fps_max", fmt.Sprintf("%.2f", stats.FPSMax),
	)
}
