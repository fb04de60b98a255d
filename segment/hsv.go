package segment

import (
	"math"

	"gocv.io/x/gocv"
)

// OpenCV 8 bit HSV limits
const (
	MaxHue        = 180
	MaxSaturation = 255
	MaxValue      = 255
)

// HSV is a colour on the OpenCV 8 bit scale, H 0-180, S and V 0-255
type HSV struct {
	H, S, V float64
}

// RGBToHSV converts an RGB colour, such as one taken from a colour picker,
// to OpenCV HSV scale
func RGBToHSV(r, g, b uint8) HSV {

	rf := float64(r) / 255
	gf := float64(g) / 255
	bf := float64(b) / 255

	mx := math.Max(rf, math.Max(gf, bf))
	mn := math.Min(rf, math.Min(gf, bf))
	diff := mx - mn

	var h float64

	switch {
	case diff == 0:
		h = 0
	case mx == rf:
		h = math.Mod(60*((gf-bf)/diff)+360, 360)
	case mx == gf:
		h = math.Mod(60*((bf-rf)/diff)+120, 360)
	default:
		h = math.Mod(60*((rf-gf)/diff)+240, 360)
	}

	var s float64

	if mx > 0 {
		s = diff / mx
	}

	return HSV{
		H: h / 2,
		S: s * MaxSaturation,
		V: mx * MaxValue,
	}
}

// Tolerance is the distance either side of a colour that still matches it
type Tolerance struct {
	H, S, V float64
}

var (
	// DefaultTolerance suits matte surfaces
	DefaultTolerance = Tolerance{H: 10, S: 50, V: 50}
	// ToolTolerance is narrower for reflective metal instruments
	ToolTolerance = Tolerance{H: 10, S: 20, V: 20}
)

// Range is an inclusive band of HSV colours
type Range struct {
	Lower, Upper HSV
}

// NewRange returns the band of colours within the tolerance of c, clamped to
// the OpenCV limits
func NewRange(c HSV, tol Tolerance) Range {
	return Range{
		Lower: HSV{
			H: math.Max(0, c.H-tol.H),
			S: math.Max(0, c.S-tol.S),
			V: math.Max(0, c.V-tol.V),
		},
		Upper: HSV{
			H: math.Min(MaxHue, c.H+tol.H),
			S: math.Min(MaxSaturation, c.S+tol.S),
			V: math.Min(MaxValue, c.V+tol.V),
		},
	}
}

// Contains reports whether the colour lies inside the range
func (r Range) Contains(c HSV) bool {
	return c.H >= r.Lower.H && c.H <= r.Upper.H &&
		c.S >= r.Lower.S && c.S <= r.Upper.S &&
		c.V >= r.Lower.V && c.V <= r.Upper.V
}

func (c HSV) scalar() gocv.Scalar {
	return gocv.NewScalar(c.H, c.S, c.V, 0)
}
