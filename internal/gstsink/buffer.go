package gstsink

import (
	"fmt"
	"log/slog"

	"github.com/tinyzimmer/go-gst/gst"

	edgeview "github.com/e7canasta/orion-edgeview"
)

// poolBuffer is a gst.Buffer borrowed from the display's pool.
type poolBuffer struct {
	buf *gst.Buffer
}

// Fill maps the buffer for writing and copies src into it.
func (b *poolBuffer) Fill(src []byte) error {
	if size := b.buf.GetSize(); size != int64(len(src)) {
		return fmt.Errorf("gstsink: pool buffer is %d bytes, frame is %d", size, len(src))
	}

	mapInfo := b.buf.Map(gst.MapWrite)
	if mapInfo == nil {
		return fmt.Errorf("gstsink: failed to map pool buffer for writing")
	}
	mapInfo.WriteData(src)
	b.buf.Unmap()

	return nil
}

// Discard drops the buffer without pushing it. The wrapper's finalizer
// releases the last reference, which returns the memory to the pool.
func (b *poolBuffer) Discard() {
	b.buf = nil
}

// Acquire implements edgeview.BufferPool.
//
// The pool is configured without a buffer limit, so acquisition only fails
// once the pool is inactive or flushing. It never waits for a free buffer.
func (d *Display) Acquire() (edgeview.Buffer, bool) {
	buf, ret := d.pool.AcquireBuffer(nil)
	if ret != gst.FlowOK || buf == nil {
		slog.Debug("gstsink: buffer pool returned no buffer", "flow", ret)
		return nil, false
	}
	return &poolBuffer{buf: buf}, true
}

// Deliver implements edgeview.Sink by pushing the buffer into appsrc.
func (d *Display) Deliver(b edgeview.Buffer) error {
	pb, ok := b.(*poolBuffer)
	if !ok {
		return fmt.Errorf("gstsink: foreign buffer type %T", b)
	}

	if ret := d.appsrc.PushBuffer(pb.buf); ret != gst.FlowOK {
		return fmt.Errorf("gstsink: appsrc push returned %v", ret)
	}
	d.pushed.Add(1)
	return nil
}

// EndOfStream implements edgeview.Sink.
func (d *Display) EndOfStream() error {
	if ret := d.appsrc.EndStream(); ret != gst.FlowOK {
		return fmt.Errorf("gstsink: appsrc end-of-stream returned %v", ret)
	}
	slog.Info("gstsink: end of stream sent to appsrc", "buffers_pushed", d.pushed.Load())
	return nil
}
