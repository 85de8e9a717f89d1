// Package config loads the edgeview YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Config represents the complete edgeview configuration
type Config struct {
	Source         SourceConfig    `yaml:"source"`
	Filter         FilterConfig    `yaml:"filter"`
	Sink           SinkConfig      `yaml:"sink"`
	Snapshot       SnapshotConfig  `yaml:"snapshot"`
	Log            LogConfig       `yaml:"log"`
	Telemetry      TelemetryConfig `yaml:"telemetry"`
	StatsIntervalS int             `yaml:"stats_interval_s"` // Periodic stats log interval in seconds (0 = off)
}

// SourceConfig selects where frames come from
type SourceConfig struct {
	Kind    string `yaml:"kind"`    // v4l2, pattern, replay
	Device  string `yaml:"device"`  // V4L2 device node
	Pattern string `yaml:"pattern"` // vertical-edge, gradient, checker, flat
	Path    string `yaml:"path"`    // recording to replay
	Loop    bool   `yaml:"loop"`    // rewind the replay at end of file
}

// FilterConfig selects the per-pixel kernel
type FilterConfig struct {
	Mode string `yaml:"mode"` // edge, passthrough
}

// SinkConfig selects where filtered frames go
type SinkConfig struct {
	Kind      string `yaml:"kind"`       // display, record
	VideoSink string `yaml:"video_sink"` // GStreamer sink element for display
	Path      string `yaml:"path"`       // recording output file
	MaxFrames int    `yaml:"max_frames"` // record pool capacity (0 = unlimited)
}

// SnapshotConfig enables periodic image snapshots of filtered frames
type SnapshotConfig struct {
	Dir    string `yaml:"dir"`    // empty disables snapshots
	Every  int    `yaml:"every"`  // save one frame out of every N
	Format string `yaml:"format"` // png, jpeg
}

// LogConfig contains logger settings
type LogConfig struct {
	Level  string `yaml:"level"`  // debug, info, warn, error
	Format string `yaml:"format"` // text, json
}

// TelemetryConfig enables MQTT publishing of stats and pipeline events
type TelemetryConfig struct {
	Broker      string `yaml:"broker"`       // host:port, empty disables telemetry
	ClientID    string `yaml:"client_id"`    // defaults to edgeview-<session>
	TopicPrefix string `yaml:"topic_prefix"` // default: edgeview
}

// Default returns the configuration used when no file is given
func Default() *Config {
	cfg := &Config{}
	if err := Validate(cfg); err != nil {
		panic(fmt.Sprintf("config: default configuration is invalid: %v", err))
	}
	return cfg
}

// Load reads and parses a YAML configuration file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	// Validate configuration
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}
