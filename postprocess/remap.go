package postprocess

import (
	"image"
	"math"
)

// Remap translates a tile local detection into the coordinate space of the
// source image by shifting its center by the tiles offset.  The input is
// passed by value and never modified.
func Remap(d Detection, offset image.Point) Detection {
	d.X += float64(offset.X)
	d.Y += float64(offset.Y)
	return d
}

// RemapAll remaps every detection returned for a tile
func RemapAll(dets []Detection, offset image.Point) []Detection {

	out := make([]Detection, len(dets))

	for i, d := range dets {
		out[i] = Remap(d, offset)
	}

	return out
}

// Clamp restricts the bounding box of the detection to the given bounds.
// The second return value is false when the box lies entirely outside the
// bounds.  Zero width or height boxes inside the bounds are kept.
func Clamp(d Detection, bounds image.Rectangle) (Detection, bool) {

	b := d.Box()

	minX, maxX := float64(bounds.Min.X), float64(bounds.Max.X)
	minY, maxY := float64(bounds.Min.Y), float64(bounds.Max.Y)

	if b.Right < minX || b.Left > maxX || b.Bottom < minY || b.Top > maxY {
		return d, false
	}

	b.Left = clampf(b.Left, float64(bounds.Min.X), float64(bounds.Max.X))
	b.Right = clampf(b.Right, float64(bounds.Min.X), float64(bounds.Max.X))
	b.Top = clampf(b.Top, float64(bounds.Min.Y), float64(bounds.Max.Y))
	b.Bottom = clampf(b.Bottom, float64(bounds.Min.Y), float64(bounds.Max.Y))

	// a box touching the bounds only along an edge collapses to a line
	if (b.Right-b.Left <= 0 && d.Width > 0) || (b.Bottom-b.Top <= 0 && d.Height > 0) {
		return d, false
	}

	return d.FromBox(b), true
}

// ClampAll clamps all detections to the bounds and drops those that fall
// entirely outside of it
func ClampAll(dets []Detection, bounds image.Rectangle) []Detection {

	out := make([]Detection, 0, len(dets))

	for _, d := range dets {
		if c, ok := Clamp(d, bounds); ok {
			out = append(out, c)
		}
	}

	return out
}

// clampf restricts the value to be within the range min and max
func clampf(val, min, max float64) float64 {
	return math.Min(math.Max(val, min), max)
}
