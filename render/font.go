package render

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

type Alignment int

const (
	Left   Alignment = 1
	Center Alignment = 2
	Right  Alignment = 3
)

// Font defines the parameters for rendering text on an image.  Text is drawn
// with the GoCV Hershey font unless TTF is set.
type Font struct {
	Face      gocv.HersheyFont
	Scale     float64
	Color     color.RGBA
	Thickness int
	LineType  gocv.LineType
	// TTF renders labels with a TrueType face instead of the Hershey face,
	// needed for characters outside of ASCII
	TTF *TTFFace
	// Padding to place around text
	LeftPad   int
	RightPad  int
	TopPad    int
	BottomPad int
	// Alignment of the text label to the bounding box
	Alignment Alignment
}

// DefaultFont returns default font settings
func DefaultFont() Font {
	return Font{
		Face:      gocv.FontHersheySimplex,
		Scale:     0.5,
		Color:     White,
		Thickness: 1,
		LineType:  gocv.LineAA,
		LeftPad:   4,
		RightPad:  4,
		TopPad:    4,
		BottomPad: 6,
		Alignment: Left,
	}
}

// measure returns the width and height above the baseline of the text
func (f Font) measure(text string) image.Point {
	if f.TTF != nil {
		return f.TTF.Measure(text)
	}

	return gocv.GetTextSize(text, f.Face, f.Scale, f.Thickness)
}

// draw writes text with its baseline starting at pos
func (f Font) draw(img *gocv.Mat, text string, pos image.Point) error {
	if f.TTF != nil {
		return f.TTF.Draw(img, text, pos, f.Color)
	}

	gocv.PutTextWithParams(img, text, pos, f.Face, f.Scale, f.Color,
		f.Thickness, f.LineType, false)

	return nil
}
