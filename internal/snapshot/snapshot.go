// Package snapshot saves the luma plane of filtered frames as image files.
package snapshot

import (
	"context"
	"fmt"
	"image"
	"log/slog"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/anthonynsimon/bild/imgio"

	edgeview "github.com/e7canasta/orion-edgeview"
	"github.com/e7canasta/orion-edgeview/internal/tapbus"
)

// jpegQuality is used for Format "jpeg"
const jpegQuality = 90

// Config contains configuration for the snapshot writer
type Config struct {
	// Dir receives the image files (created if missing)
	Dir string
	// Every saves one frame out of Every (must be > 0)
	Every uint64
	// Format is "png" (default) or "jpeg"
	Format string
}

// Writer saves every Nth filtered frame. Tap plugs straight into
// edgeview.LoopConfig and saves on the loop goroutine; Run consumes a tapbus
// subscription and keeps disk I/O off the loop.
type Writer struct {
	cfg     Config
	ext     string
	encoder imgio.Encoder

	saved  atomic.Uint64
	failed atomic.Uint64
}

// NewWriter validates cfg and creates the output directory.
func NewWriter(cfg Config) (*Writer, error) {
	if cfg.Dir == "" {
		return nil, fmt.Errorf("snapshot: dir is required")
	}
	if cfg.Every == 0 {
		return nil, fmt.Errorf("snapshot: every must be > 0")
	}

	w := &Writer{cfg: cfg}
	switch cfg.Format {
	case "", "png":
		w.ext, w.encoder = "png", imgio.PNGEncoder()
	case "jpeg", "jpg":
		w.ext, w.encoder = "jpg", imgio.JPEGEncoder(jpegQuality)
	default:
		return nil, fmt.Errorf("snapshot: unsupported format %q", cfg.Format)
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("snapshot: failed to create %s: %w", cfg.Dir, err)
	}

	return w, nil
}

// Tap saves the frame when seq is a multiple of Every. Save failures are
// logged and counted and never stop the loop.
func (w *Writer) Tap(seq uint64, filtered []byte) {
	if seq%w.cfg.Every != 0 {
		return
	}
	w.Save(seq, filtered)
}

// Run saves every frame received on frames until ctx is done or frames is
// closed. Subscribe it with tapbus.EveryNth(cfg.Every).
func (w *Writer) Run(ctx context.Context, frames <-chan tapbus.Frame) {
	for {
		select {
		case <-ctx.Done():
			return
		case frame, ok := <-frames:
			if !ok {
				return
			}
			w.Save(frame.Seq, frame.Data)
		}
	}
}

// Save writes one frame as an image named after seq.
func (w *Writer) Save(seq uint64, filtered []byte) {
	path := filepath.Join(w.cfg.Dir, fmt.Sprintf("frame-%08d.%s", seq, w.ext))
	if err := imgio.Save(path, Luma(filtered), w.encoder); err != nil {
		w.failed.Add(1)
		slog.Warn("snapshot: failed to save frame", "seq", seq, "path", path, "error", err)
		return
	}

	w.saved.Add(1)
	slog.Debug("snapshot: frame saved", "seq", seq, "path", path)
}

// Saved returns how many snapshots were written.
func (w *Writer) Saved() uint64 {
	return w.saved.Load()
}

// Failed returns how many snapshots could not be written.
func (w *Writer) Failed() uint64 {
	return w.failed.Load()
}

// Luma extracts the luma plane of a packed YUY2 frame into a new image.
// Short frames leave the missing pixels black.
func Luma(frame []byte) *image.Gray {
	img := image.NewGray(image.Rect(0, 0, edgeview.Width, edgeview.Height))
	n := min(len(img.Pix), len(frame)/2)
	for i := 0; i < n; i++ {
		img.Pix[i] = frame[2*i]
	}
	return img
}
