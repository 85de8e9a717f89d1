// Package v4l2cam captures YUYV frames from a Video4Linux2 device.
package v4l2cam

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/vladimirvivien/go4vl/device"
	"github.com/vladimirvivien/go4vl/v4l2"

	edgeview "github.com/e7canasta/orion-edgeview"
)

// DefaultDevice is opened when Config.Device is empty
const DefaultDevice = "/dev/video0"

// ErrStreamClosed is returned by Capture after the device stops streaming.
var ErrStreamClosed = errors.New("v4l2cam: capture stream closed")

// Config contains configuration for the camera source
type Config struct {
	// Device is the V4L2 device node (e.g. /dev/video0)
	Device string
}

// Camera is a streaming V4L2 device delivering packed YUYV frames.
type Camera struct {
	path   string
	dev    *device.Device
	output <-chan []byte
	cancel context.CancelFunc

	closeOnce sync.Once
}

// Open opens the device with the fixed 640x480 YUYV @30 format and starts
// streaming. A device that negotiates a different format is rejected.
func Open(ctx context.Context, cfg Config) (*Camera, error) {
	path := cfg.Device
	if path == "" {
		path = DefaultDevice
	}

	dev, err := device.Open(path,
		device.WithPixFormat(v4l2.PixFormat{
			PixelFormat: v4l2.PixelFmtYUYV,
			Width:       edgeview.Width,
			Height:      edgeview.Height,
			Field:       v4l2.FieldNone,
		}),
		device.WithFPS(edgeview.FrameRate),
	)
	if err != nil {
		return nil, fmt.Errorf("v4l2cam: failed to open %s: %w", path, err)
	}

	pixFmt, err := dev.GetPixFormat()
	if err != nil {
		dev.Close()
		return nil, fmt.Errorf("v4l2cam: failed to read format of %s: %w", path, err)
	}
	if err := checkFormat(pixFmt); err != nil {
		dev.Close()
		return nil, fmt.Errorf("v4l2cam: %s: %w", path, err)
	}

	streamCtx, cancel := context.WithCancel(ctx)
	if err := dev.Start(streamCtx); err != nil {
		cancel()
		dev.Close()
		return nil, fmt.Errorf("v4l2cam: failed to start streaming on %s: %w", path, err)
	}

	slog.Info("v4l2cam: streaming started",
		"device", path,
		"width", pixFmt.Width,
		"height", pixFmt.Height,
		"format", v4l2.PixelFormats[pixFmt.PixelFormat],
	)

	return &Camera{
		path:   path,
		dev:    dev,
		output: dev.GetOutput(),
		cancel: cancel,
	}, nil
}

// checkFormat rejects formats the filter cannot consume.
func checkFormat(f v4l2.PixFormat) error {
	if f.PixelFormat != v4l2.PixelFmtYUYV {
		return fmt.Errorf("pixel format %q, want YUYV", v4l2.PixelFormats[f.PixelFormat])
	}
	if f.Width != edgeview.Width || f.Height != edgeview.Height {
		return fmt.Errorf("resolution %dx%d, want %dx%d",
			f.Width, f.Height, edgeview.Width, edgeview.Height)
	}
	return nil
}

// Capture implements edgeview.CaptureSource. It blocks until the driver
// delivers the next frame.
func (c *Camera) Capture() ([]byte, error) {
	frame, ok := <-c.output
	if !ok {
		return nil, ErrStreamClosed
	}
	return frame, nil
}

// Close stops streaming and releases the device. Idempotent.
func (c *Camera) Close() error {
	var err error
	c.closeOnce.Do(func() {
		c.cancel()
		if closeErr := c.dev.Close(); closeErr != nil {
			err = fmt.Errorf("v4l2cam: failed to close %s: %w", c.path, closeErr)
		}
		slog.Info("v4l2cam: device closed", "device", c.path)
	})
	return err
}
