package postprocess

import (
	"image"
	"math"
)

// BoxRect are the corner coordinates of a detections bounding box
type BoxRect struct {
	Left   float64
	Top    float64
	Right  float64
	Bottom float64
}

// Width returns the width of the box, zero if the box is inverted
func (b BoxRect) Width() float64 {
	return math.Max(0, b.Right-b.Left)
}

// Height returns the height of the box, zero if the box is inverted
func (b BoxRect) Height() float64 {
	return math.Max(0, b.Bottom-b.Top)
}

// Area returns the area of the box
func (b BoxRect) Area() float64 {
	return b.Width() * b.Height()
}

// Rect returns the box rounded to integer pixel coordinates for drawing
func (b BoxRect) Rect() image.Rectangle {
	return image.Rect(
		int(math.Round(b.Left)), int(math.Round(b.Top)),
		int(math.Round(b.Right)), int(math.Round(b.Bottom)),
	)
}

// Detection defines the attributes of a single object detected.  Spatial
// fields are either tile local, as returned by a Detector, or frame global
// after being passed through Remap.
type Detection struct {
	// X is the horizontal center of the bounding box
	X float64 `json:"x"`
	// Y is the vertical center of the bounding box
	Y float64 `json:"y"`
	// Width of the bounding box
	Width float64 `json:"width"`
	// Height of the bounding box
	Height float64 `json:"height"`
	// Confidence is the probability score of the object detected in the
	// range 0.0 to 1.0
	Confidence float64 `json:"confidence"`
	// Class is the label of the detected object
	Class string `json:"class"`
	// ID is a unique ID assigned to the detection once merged into a frame
	// result, zero until then
	ID int64 `json:"detection_id,omitempty"`
}

// Box returns the corner coordinates of the detection
func (d Detection) Box() BoxRect {
	return BoxRect{
		Left:   d.X - d.Width/2,
		Top:    d.Y - d.Height/2,
		Right:  d.X + d.Width/2,
		Bottom: d.Y + d.Height/2,
	}
}

// FromBox returns a copy of the detection with its center and size taken
// from the given box
func (d Detection) FromBox(b BoxRect) Detection {
	d.X = (b.Left + b.Right) / 2
	d.Y = (b.Top + b.Bottom) / 2
	d.Width = b.Width()
	d.Height = b.Height()
	return d
}
