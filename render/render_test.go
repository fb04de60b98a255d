package render

import (
	"image"
	"image/color"
	"testing"

	"go.viam.com/test"
	"gocv.io/x/gocv"

	"github.com/swdee/go-surgtile/postprocess"
)

// pixelSum returns the sum of all channel values in the region
func pixelSum(img gocv.Mat, rect image.Rectangle) float64 {
	region := img.Region(rect)
	defer region.Close()

	s := region.Sum()
	return s.Val1 + s.Val2 + s.Val3
}

func TestLabelText(t *testing.T) {
	det := postprocess.Detection{Class: "cut", Confidence: 0.876}
	test.That(t, LabelText(det), test.ShouldEqual, "cut 0.88")
}

func TestClassColorStable(t *testing.T) {
	test.That(t, ClassColor("cut"), test.ShouldResemble, ClassColor("cut"))
	test.That(t, ClassColor("").A, test.ShouldEqual, uint8(255))
}

func TestDetectionBoxes(t *testing.T) {
	img := gocv.NewMatWithSize(200, 300, gocv.MatTypeCV8UC3)
	defer img.Close()

	dets := []postprocess.Detection{
		{X: 150, Y: 120, Width: 100, Height: 60, Confidence: 0.9, Class: "cut"},
		// touches the top of the frame so its label goes inside
		{X: 40, Y: 20, Width: 40, Height: 40, Confidence: 0.5, Class: "wound"},
	}

	err := DetectionBoxes(&img, dets, DefaultFont(), 2)
	test.That(t, err, test.ShouldBeNil)

	// box outline and label are drawn, the box interior below the label is not
	test.That(t, pixelSum(img, image.Rect(99, 89, 202, 92)), test.ShouldBeGreaterThan, 0.0)
	test.That(t, pixelSum(img, image.Rect(0, 0, 80, 40)), test.ShouldBeGreaterThan, 0.0)
	test.That(t, pixelSum(img, image.Rect(120, 120, 180, 140)), test.ShouldEqual, 0.0)
	test.That(t, pixelSum(img, image.Rect(250, 180, 300, 200)), test.ShouldEqual, 0.0)
}

func TestTTFFace(t *testing.T) {
	face, err := DefaultTTFFace(16)
	test.That(t, err, test.ShouldBeNil)
	defer face.Close()

	size := face.Measure("cut 0.90")
	test.That(t, size.X, test.ShouldBeGreaterThan, 0)
	test.That(t, size.Y, test.ShouldBeGreaterThan, 0)

	img := gocv.NewMatWithSize(40, 120, gocv.MatTypeCV8UC3)
	defer img.Close()

	err = face.Draw(&img, "cut 0.90", image.Pt(2, 20), color.RGBA{R: 255, G: 255, B: 255, A: 255})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pixelSum(img, image.Rect(0, 0, 120, 40)), test.ShouldBeGreaterThan, 0.0)

	// text entirely outside the image is ignored
	err = face.Draw(&img, "cut", image.Pt(500, 500), White)
	test.That(t, err, test.ShouldBeNil)

	// text partly outside the image is clipped
	err = face.Draw(&img, "wound", image.Pt(100, 10), White)
	test.That(t, err, test.ShouldBeNil)
}

func TestNewTTFFaceInvalid(t *testing.T) {
	_, err := NewTTFFace([]byte("not a font"), 12)
	test.That(t, err, test.ShouldNotBeNil)
}

func TestDetectionBoxesTTF(t *testing.T) {
	face, err := DefaultTTFFace(14)
	test.That(t, err, test.ShouldBeNil)
	defer face.Close()

	font := DefaultFont()
	font.TTF = face

	img := gocv.NewMatWithSize(200, 300, gocv.MatTypeCV8UC3)
	defer img.Close()

	dets := []postprocess.Detection{{X: 150, Y: 120, Width: 100, Height: 60, Confidence: 0.9, Class: "cut"}}

	err = DetectionBoxes(&img, dets, font, 1)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, pixelSum(img, image.Rect(100, 60, 200, 90)), test.ShouldBeGreaterThan, 0.0)
}

func TestTraceContours(t *testing.T) {
	mask := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8U)
	defer mask.Close()

	gocv.Rectangle(&mask, image.Rect(10, 10, 40, 40), color.RGBA{R: 255, G: 255, B: 255}, -1)
	gocv.Rectangle(&mask, image.Rect(60, 60, 90, 90), color.RGBA{R: 255, G: 255, B: 255}, -1)
	// speck of noise
	gocv.Rectangle(&mask, image.Rect(80, 5, 81, 6), color.RGBA{R: 255, G: 255, B: 255}, -1)

	contours := TraceContours(mask, 10)
	test.That(t, contours, test.ShouldHaveLength, 2)

	for _, c := range contours {
		// simple chain approximation of a rectangle keeps its corners
		test.That(t, c, test.ShouldHaveLength, 4)
	}

	all := TraceContours(mask, 0)
	test.That(t, all, test.ShouldHaveLength, 3)
}

func TestTraceContoursColourMask(t *testing.T) {
	mask := gocv.NewMatWithSize(50, 50, gocv.MatTypeCV8UC3)
	defer mask.Close()

	gocv.Rectangle(&mask, image.Rect(5, 5, 25, 25), color.RGBA{R: 10, G: 0, B: 0}, -1)

	test.That(t, TraceContours(mask, 1), test.ShouldHaveLength, 1)
}

func TestOffsetContour(t *testing.T) {
	square := []image.Point{{10, 10}, {30, 10}, {30, 30}, {10, 30}}

	same := OffsetContour(square, 0)
	test.That(t, same, test.ShouldResemble, [][]image.Point{square})

	grown := OffsetContour(square, 5)
	test.That(t, grown, test.ShouldHaveLength, 1)

	bounds := image.Rectangle{Min: grown[0][0], Max: grown[0][0]}

	for _, pt := range grown[0] {
		bounds = bounds.Union(image.Rectangle{Min: pt, Max: pt.Add(image.Pt(1, 1))})
	}

	test.That(t, bounds.Min.X, test.ShouldBeLessThanOrEqualTo, 6)
	test.That(t, bounds.Min.Y, test.ShouldBeLessThanOrEqualTo, 6)
	test.That(t, bounds.Max.X, test.ShouldBeGreaterThanOrEqualTo, 34)

	// shrinking by more than half the width removes it
	test.That(t, OffsetContour(square, -15), test.ShouldBeEmpty)

	test.That(t, OffsetContours([][]image.Point{square, square}, 2), test.ShouldHaveLength, 2)
}

func TestContourOutline(t *testing.T) {
	img := gocv.NewMatWithSize(50, 50, gocv.MatTypeCV8UC3)
	defer img.Close()

	ContourOutline(&img, nil, Green, 1)
	test.That(t, pixelSum(img, image.Rect(0, 0, 50, 50)), test.ShouldEqual, 0.0)

	ContourOutline(&img, [][]image.Point{{{10, 10}, {40, 10}, {40, 40}, {10, 40}}}, Green, 1)
	test.That(t, pixelSum(img, image.Rect(10, 10, 41, 11)), test.ShouldBeGreaterThan, 0.0)
	test.That(t, pixelSum(img, image.Rect(20, 20, 30, 30)), test.ShouldEqual, 0.0)
}
