// Package filter implements the per-pixel spatial filtering engine for packed
// 4:2:2 (YUY2) frames.
//
// Layout of one row in YUY2 (two pixels per 4-byte macropixel):
//
//	Y0 U0 Y1 V0 | Y2 U2 Y3 V2 | ...
//
// Every pixel owns one luma byte at offset 2*(x + y*width). Pixels 2k and
// 2k+1 share the chroma pair at offsets 4k+1 (U) and 4k+3 (V) of their row.
//
// The package never indexes outside the backing slice: coordinates outside
// the image resolve to a zero sample.
package filter

// BytesPerPixel is the packed size of one pixel in YUY2.
const BytesPerPixel = 2

// NeutralChroma is the chroma value written next to every output luma sample.
const NeutralChroma = 0x80

// Frame is a read-only view over one packed YUY2 image.
type Frame struct {
	Data   []byte
	Width  int
	Height int
}

// FrameSize returns the packed byte length of a width x height YUY2 image.
func FrameSize(width, height int) int {
	return width * height * BytesPerPixel
}

// inBounds reports whether (x, y) addresses a pixel of the frame.
func (f Frame) inBounds(x, y int) bool {
	return x >= 0 && y >= 0 && x < f.Width && y < f.Height
}

// LumaAt returns the luma sample of pixel (x, y), or 0 when the coordinate is
// outside the image. Total over all integer coordinates; never panics for a
// frame whose Data holds at least FrameSize(Width, Height) bytes.
func (f Frame) LumaAt(x, y int) uint8 {
	if !f.inBounds(x, y) {
		return 0
	}
	// Even x lands on Y0 of its macropixel, odd x on Y1; both are 2*x.
	return f.Data[(x+y*f.Width)*BytesPerPixel]
}

// ChromaAt returns the chroma pair shared by pixel (x, y) and its horizontal
// partner, or (0, 0) outside the image.
func (f Frame) ChromaAt(x, y int) (u, v uint8) {
	if !f.inBounds(x, y) {
		return 0, 0
	}
	base := ((x &^ 1) + y*f.Width) * BytesPerPixel
	return f.Data[base+1], f.Data[base+3]
}
