package filter

import "iter"

// Neighborhood is the 3x3 luma window around one pixel, row-major:
//
//	0 1 2
//	3 4 5
//	6 7 8
//
// Index 4 is the center pixel.
type Neighborhood [9]int32

// Center returns the luma of the pixel the window is built around.
func (n Neighborhood) Center() int32 {
	return n[4]
}

// NeighborhoodAt builds the window around (x, y) with zero padding outside
// the image.
func (f Frame) NeighborhoodAt(x, y int) Neighborhood {
	return Neighborhood{
		int32(f.LumaAt(x-1, y-1)), int32(f.LumaAt(x, y-1)), int32(f.LumaAt(x+1, y-1)),
		int32(f.LumaAt(x-1, y)), int32(f.LumaAt(x, y)), int32(f.LumaAt(x+1, y)),
		int32(f.LumaAt(x-1, y+1)), int32(f.LumaAt(x, y+1)), int32(f.LumaAt(x+1, y+1)),
	}
}

// Neighborhoods yields one window per pixel in raster order (y outer, x
// inner) together with the pixel's linear index y*Width + x. The sequence has
// exactly Width*Height elements, borrows the frame for the duration of the
// range loop, and allocates nothing per pixel. Ranging again restarts from
// (0, 0).
func (f Frame) Neighborhoods() iter.Seq2[int, Neighborhood] {
	return func(yield func(int, Neighborhood) bool) {
		idx := 0
		for y := 0; y < f.Height; y++ {
			for x := 0; x < f.Width; x++ {
				if !yield(idx, f.NeighborhoodAt(x, y)) {
					return
				}
				idx++
			}
		}
	}
}
