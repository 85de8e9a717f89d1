// Package edgeview captures 640x480 YUY2 frames, filters them per pixel and
// forwards the result to a flow-controlled display sink.
//
// # Quick Start
//
//	source := pattern.New(pattern.Config{Kind: pattern.VerticalEdge})
//	display, err := gstsink.NewDisplay(gstsink.Config{VideoSink: "autovideosink"})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer display.Close()
//
//	loop, err := edgeview.NewLoop(edgeview.LoopConfig{Mode: edgeview.FilterEdgeMagnitude},
//	    source, display, display)
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	go func() {
//	    if err := loop.Run(); err != nil {
//	        slog.Error("loop failed", "error", err)
//	    }
//	}()
//
//	// Blocks until end-of-stream or a pipeline error
//	if err := edgeview.Supervise(ctx, display); err != nil {
//	    log.Fatal(err)
//	}
//
// # Frame Layout
//
// Frames are packed 4:2:2 (YUY2): every pixel owns one luma byte, and each
// horizontal pixel pair shares one U/V chroma pair. A frame is always
// Width*Height*2 bytes; captures of any other length are discarded.
//
// # Filter Modes
//
//   - FilterEdgeMagnitude: 3x3 Sobel gradient magnitude on luma, clipped to 255
//   - FilterPassthrough: luma copied unchanged
//
// Both modes write NeutralChroma (0x80) into every chroma byte, so the output
// is monochrome. Pixels outside the image read as zero, which makes a bright
// image border show up as a one-pixel edge.
//
// # Loop States
//
//	Capturing → Filtering → Acquiring → Delivering → Capturing ...
//	                             └→ Draining → Stopped
//
// The loop stops only when the sink's buffer pool stops supplying buffers; it
// then signals end-of-stream exactly once. Malformed captures loop back to
// Capturing without touching the sink.
//
// # Concurrency
//
// The loop runs on its own goroutine. Supervise runs on another and returns
// when the sink reports an error or end-of-stream. State and Stats are safe
// to call from any goroutine.
package edgeview
