package segment

import (
	"image/color"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// Class is a kind of surface in the scene identified by colour
type Class struct {
	Name string
	// Ranges are combined, a pixel in any of them belongs to the class
	Ranges []Range
	// Paint is the colour the class is filled with in the output
	Paint color.RGBA
}

// DefaultClasses returns the surfaces of a suturing scene.  The order
// matters as later classes paint over earlier ones where ranges overlap.
func DefaultClasses() []Class {
	return []Class{
		{
			Name:   "gloves",
			Ranges: []Range{NewRange(RGBToHSV(197, 204, 192), DefaultTolerance)},
			Paint:  color.RGBA{R: 0, G: 255, B: 255, A: 255},
		},
		{
			Name:   "clothes",
			Ranges: []Range{NewRange(RGBToHSV(87, 128, 189), DefaultTolerance)},
			Paint:  color.RGBA{R: 0, G: 0, B: 255, A: 255},
		},
		{
			Name:   "cut",
			Ranges: []Range{NewRange(RGBToHSV(204, 128, 132), DefaultTolerance)},
			Paint:  color.RGBA{R: 255, G: 0, B: 0, A: 255},
		},
		{
			// light and dark ranges catch reflections on the metal
			Name: "tools",
			Ranges: []Range{
				NewRange(RGBToHSV(205, 252, 252), ToolTolerance),
				NewRange(RGBToHSV(70, 76, 75), ToolTolerance),
			},
			Paint: color.RGBA{R: 0, G: 255, B: 0, A: 255},
		},
		{
			Name:   "skin",
			Ranges: []Range{NewRange(RGBToHSV(205, 182, 157), DefaultTolerance)},
			Paint:  color.RGBA{R: 255, G: 0, B: 255, A: 255},
		},
	}
}

// Segmenter paints each class of surface in a frame a solid colour
type Segmenter struct {
	classes []Class
}

// NewSegmenter returns a Segmenter for the given classes
func NewSegmenter(classes []Class) (*Segmenter, error) {

	if len(classes) == 0 {
		return nil, errors.New("segmenter needs at least one class")
	}

	for _, c := range classes {
		if len(c.Ranges) == 0 {
			return nil, errors.Errorf("class %q has no colour ranges", c.Name)
		}
	}

	return &Segmenter{classes: classes}, nil
}

// Classes returns the classes in paint order
func (s *Segmenter) Classes() []Class {
	return s.classes
}

// Mask sets dst to a binary mask of the pixels of hsv belonging to class
func (s *Segmenter) Mask(hsv gocv.Mat, class Class, dst *gocv.Mat) {

	part := gocv.NewMat()
	defer part.Close()

	for i, r := range class.Ranges {
		if i == 0 {
			gocv.InRangeWithScalar(hsv, r.Lower.scalar(), r.Upper.scalar(), dst)
			continue
		}

		gocv.InRangeWithScalar(hsv, r.Lower.scalar(), r.Upper.scalar(), &part)
		gocv.BitwiseOr(*dst, part, dst)
	}
}

// Segment writes the segmented image of the BGR frame to dst.  Pixels not
// belonging to any class are black.
func (s *Segmenter) Segment(frame gocv.Mat, dst *gocv.Mat) error {

	if frame.Empty() {
		return errors.New("frame is empty")
	}

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	black := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0),
		frame.Rows(), frame.Cols(), gocv.MatTypeCV8UC3)
	defer black.Close()

	if err := black.CopyTo(dst); err != nil {
		return errors.Wrap(err, "error clearing output")
	}

	mask := gocv.NewMat()
	defer mask.Close()

	for _, class := range s.classes {
		s.Mask(hsv, class, &mask)

		paint := gocv.NewMatWithSizeFromScalar(
			gocv.NewScalar(float64(class.Paint.B), float64(class.Paint.G), float64(class.Paint.R), 0),
			frame.Rows(), frame.Cols(), gocv.MatTypeCV8UC3)

		err := paint.CopyToWithMask(dst, mask)
		paint.Close()

		if err != nil {
			return errors.Wrapf(err, "error painting class %s", class.Name)
		}
	}

	return nil
}
