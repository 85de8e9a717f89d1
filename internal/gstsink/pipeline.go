// Package gstsink displays filtered frames through a GStreamer pipeline fed
// by an appsrc and a fixed-size buffer pool.
//
// Pipeline structure:
//
//	appsrc (YUY2 640x480@30) → videoconvert → <video sink>
//
// The Display type is the edgeview BufferPool, Sink and EventStream at once.
package gstsink

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/tinyzimmer/go-glib/glib"
	"github.com/tinyzimmer/go-gst/gst"
	"github.com/tinyzimmer/go-gst/gst/app"

	edgeview "github.com/e7canasta/orion-edgeview"
)

const (
	// DefaultVideoSink is used when Config.VideoSink is empty
	DefaultVideoSink = "autovideosink"
	// appSrcName is the element name the pipeline is looked up by
	appSrcName = "edgeview"
)

// Config contains configuration for the display pipeline
type Config struct {
	// VideoSink is the GStreamer sink element (e.g. autovideosink, xvimagesink, fakesink)
	VideoSink string
}

// Display owns the playback pipeline, its appsrc and the buffer pool.
type Display struct {
	pipeline *gst.Pipeline
	appsrc   *app.Source
	pool     *gst.BufferPool
	bus      *gst.Bus
	mainLoop *glib.MainLoop

	pushed    atomic.Uint64
	closeOnce sync.Once
}

// LaunchDescription builds the gst-launch description for cfg.
//
// The caps declare the nominal rate as 30/1 frames per second.
func LaunchDescription(cfg Config) string {
	sink := cfg.VideoSink
	if sink == "" {
		sink = DefaultVideoSink
	}
	return fmt.Sprintf("appsrc name=%s caps=\"%s\" format=time is-live=true do-timestamp=true ! videoconvert ! %s",
		appSrcName, CapsString(), sink)
}

// CapsString returns the raw video caps shared by appsrc and the buffer pool.
func CapsString() string {
	return fmt.Sprintf("video/x-raw,format=%s,width=%d,height=%d,framerate=%d/1",
		edgeview.PixelFormat, edgeview.Width, edgeview.Height, edgeview.FrameRate)
}

// NewDisplay creates the pipeline, activates its buffer pool, starts the
// GLib main loop and sets the pipeline to PLAYING.
//
// Every failure here is a setup failure: the caller should abort before the
// capture loop starts.
func NewDisplay(cfg Config) (*Display, error) {
	// Initialize GStreamer (safe to call multiple times)
	gst.Init(nil)

	launch := LaunchDescription(cfg)
	pipeline, err := gst.NewPipelineFromString(launch)
	if err != nil {
		return nil, fmt.Errorf("gstsink: failed to create pipeline %q: %w", launch, err)
	}

	elem, err := pipeline.GetElementByName(appSrcName)
	if err != nil || elem == nil {
		return nil, fmt.Errorf("gstsink: couldn't get appsrc from pipeline: %v", err)
	}
	appsrc := app.SrcFromElement(elem)

	caps := appsrc.GetCaps()
	if caps == nil {
		caps = gst.NewCapsFromString(CapsString())
	}

	pool := gst.NewBufferPool()
	poolCfg := pool.GetConfig()
	poolCfg.SetParams(caps, uint(edgeview.FrameSize), 0, 0)
	if !pool.SetConfig(poolCfg) {
		return nil, fmt.Errorf("gstsink: buffer pool rejected config")
	}
	if !pool.SetActive(true) {
		return nil, fmt.Errorf("gstsink: couldn't activate buffer pool")
	}

	d := &Display{
		pipeline: pipeline,
		appsrc:   appsrc,
		pool:     pool,
		bus:      pipeline.GetPipelineBus(),
		mainLoop: glib.NewMainLoop(glib.MainContextDefault(), false),
	}

	go d.mainLoop.Run()

	if err := pipeline.SetState(gst.StatePlaying); err != nil {
		d.Close()
		return nil, fmt.Errorf("gstsink: failed to start pipeline: %w", err)
	}

	slog.Info("gstsink: display pipeline started",
		"launch", launch,
		"buffer_size", edgeview.FrameSize,
	)

	return d, nil
}

// Deactivate stops the buffer pool. The next Acquire reports exhaustion, so
// the capture loop drains and signals end-of-stream.
func (d *Display) Deactivate() {
	if d.pool.IsActive() {
		d.pool.SetActive(false)
		slog.Info("gstsink: buffer pool deactivated")
	}
}

// Close deactivates the pool, sets the pipeline to NULL and quits the GLib
// main loop. Idempotent.
func (d *Display) Close() error {
	var err error
	d.closeOnce.Do(func() {
		d.Deactivate()

		if stateErr := d.pipeline.SetState(gst.StateNull); stateErr != nil {
			err = fmt.Errorf("gstsink: failed to set pipeline to NULL: %w", stateErr)
		}
		d.mainLoop.Quit()

		slog.Info("gstsink: display pipeline closed", "buffers_pushed", d.pushed.Load())
	})
	return err
}
