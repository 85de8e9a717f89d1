package config

import (
	"fmt"
	"slices"
)

// Source, sink and filter names accepted by Validate
const (
	SourceV4L2    = "v4l2"
	SourcePattern = "pattern"
	SourceReplay  = "replay"

	SinkDisplay = "display"
	SinkRecord  = "record"

	FilterEdge        = "edge"
	FilterPassthrough = "passthrough"
)

var (
	patterns      = []string{"vertical-edge", "gradient", "checker", "flat"}
	logLevels     = []string{"debug", "info", "warn", "error"}
	logFormats    = []string{"text", "json"}
	snapshotTypes = []string{"png", "jpeg"}
)

// Validate checks if the configuration is valid and fills in defaults
func Validate(cfg *Config) error {
	// Source
	if cfg.Source.Kind == "" {
		cfg.Source.Kind = SourceV4L2
	}
	switch cfg.Source.Kind {
	case SourceV4L2:
		if cfg.Source.Device == "" {
			cfg.Source.Device = "/dev/video0"
		}
	case SourcePattern:
		if cfg.Source.Pattern == "" {
			cfg.Source.Pattern = "vertical-edge"
		}
		if !slices.Contains(patterns, cfg.Source.Pattern) {
			return fmt.Errorf("source.pattern must be one of %v, got %q", patterns, cfg.Source.Pattern)
		}
	case SourceReplay:
		if cfg.Source.Path == "" {
			return fmt.Errorf("source.path is required for replay")
		}
	default:
		return fmt.Errorf("source.kind must be v4l2, pattern or replay, got %q", cfg.Source.Kind)
	}

	// Filter
	if cfg.Filter.Mode == "" {
		cfg.Filter.Mode = FilterEdge
	}
	if cfg.Filter.Mode != FilterEdge && cfg.Filter.Mode != FilterPassthrough {
		return fmt.Errorf("filter.mode must be edge or passthrough, got %q", cfg.Filter.Mode)
	}

	// Sink
	if cfg.Sink.Kind == "" {
		cfg.Sink.Kind = SinkDisplay
	}
	switch cfg.Sink.Kind {
	case SinkDisplay:
		if cfg.Sink.VideoSink == "" {
			cfg.Sink.VideoSink = "autovideosink"
		}
	case SinkRecord:
		if cfg.Sink.Path == "" {
			return fmt.Errorf("sink.path is required for record")
		}
	default:
		return fmt.Errorf("sink.kind must be display or record, got %q", cfg.Sink.Kind)
	}
	if cfg.Sink.MaxFrames < 0 {
		return fmt.Errorf("sink.max_frames must be >= 0")
	}

	// Snapshot (disabled when dir is empty)
	if cfg.Snapshot.Dir != "" {
		if cfg.Snapshot.Every <= 0 {
			cfg.Snapshot.Every = 30 // default: once per second at nominal rate
		}
		if cfg.Snapshot.Format == "" {
			cfg.Snapshot.Format = "png"
		}
		if !slices.Contains(snapshotTypes, cfg.Snapshot.Format) {
			return fmt.Errorf("snapshot.format must be one of %v, got %q", snapshotTypes, cfg.Snapshot.Format)
		}
	}

	// Log
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if !slices.Contains(logLevels, cfg.Log.Level) {
		return fmt.Errorf("log.level must be one of %v, got %q", logLevels, cfg.Log.Level)
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	if !slices.Contains(logFormats, cfg.Log.Format) {
		return fmt.Errorf("log.format must be one of %v, got %q", logFormats, cfg.Log.Format)
	}

	// Telemetry (disabled when broker is empty)
	if cfg.Telemetry.Broker != "" && cfg.Telemetry.TopicPrefix == "" {
		cfg.Telemetry.TopicPrefix = "edgeview"
	}

	if cfg.StatsIntervalS < 0 {
		return fmt.Errorf("stats_interval_s must be >= 0")
	}

	return nil
}
