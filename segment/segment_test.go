package segment

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"io"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap/zaptest"
	"go.viam.com/test"
	"gocv.io/x/gocv"

	"github.com/swdee/go-surgtile"
)

func TestRGBToHSV(t *testing.T) {

	tests := []struct {
		name    string
		r, g, b uint8
		want    HSV
	}{
		{"black", 0, 0, 0, HSV{0, 0, 0}},
		{"white", 255, 255, 255, HSV{0, 0, 255}},
		{"red", 255, 0, 0, HSV{0, 255, 255}},
		{"green", 0, 255, 0, HSV{60, 255, 255}},
		{"blue", 0, 0, 255, HSV{120, 255, 255}},
		{"dark cyan", 0, 128, 128, HSV{90, 255, 128}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			got := RGBToHSV(tc.r, tc.g, tc.b)
			test.That(t, got.H, test.ShouldAlmostEqual, tc.want.H, 1e-9)
			test.That(t, got.S, test.ShouldAlmostEqual, tc.want.S, 1e-9)
			test.That(t, got.V, test.ShouldAlmostEqual, tc.want.V, 1e-9)
		})
	}
}

func TestRGBToHSVMatchesOpenCV(t *testing.T) {
	for _, c := range [][3]uint8{{204, 128, 132}, {87, 128, 189}, {205, 182, 157}} {
		px := gocv.NewMatWithSizeFromScalar(
			gocv.NewScalar(float64(c[2]), float64(c[1]), float64(c[0]), 0), 1, 1, gocv.MatTypeCV8UC3)

		hsv := gocv.NewMat()
		gocv.CvtColor(px, &hsv, gocv.ColorBGRToHSV)

		want := RGBToHSV(c[0], c[1], c[2])

		// opencv rounds to whole numbers
		got := hsv.GetVecbAt(0, 0)
		test.That(t, float64(got[0]), test.ShouldAlmostEqual, want.H, 1)
		test.That(t, float64(got[1]), test.ShouldAlmostEqual, want.S, 1)
		test.That(t, float64(got[2]), test.ShouldAlmostEqual, want.V, 1)

		px.Close()
		hsv.Close()
	}
}

func TestNewRangeClamps(t *testing.T) {
	r := NewRange(HSV{H: 175, S: 10, V: 250}, DefaultTolerance)

	test.That(t, r.Lower, test.ShouldResemble, HSV{H: 165, S: 0, V: 200})
	test.That(t, r.Upper, test.ShouldResemble, HSV{H: 180, S: 60, V: 255})

	test.That(t, r.Contains(HSV{H: 170, S: 30, V: 255}), test.ShouldBeTrue)
	test.That(t, r.Contains(HSV{H: 160, S: 30, V: 255}), test.ShouldBeFalse)
}

func TestNewSegmenterInvalid(t *testing.T) {
	_, err := NewSegmenter(nil)
	test.That(t, err, test.ShouldNotBeNil)

	_, err = NewSegmenter([]Class{{Name: "empty"}})
	test.That(t, err, test.ShouldNotBeNil)
}

// rgb returns an opaque colour
func rgb(r, g, b uint8) color.RGBA {
	return color.RGBA{R: r, G: g, B: b, A: 255}
}

func TestSegment(t *testing.T) {
	seg, err := NewSegmenter(DefaultClasses())
	test.That(t, err, test.ShouldBeNil)

	// left half is a cut coloured surface, right half matches nothing
	frame := gocv.NewMatWithSize(20, 40, gocv.MatTypeCV8UC3)
	defer frame.Close()

	gocv.Rectangle(&frame, image.Rect(0, 0, 20, 20), rgb(204, 128, 132), -1)

	out := gocv.NewMat()
	defer out.Close()

	test.That(t, seg.Segment(frame, &out), test.ShouldBeNil)
	test.That(t, out.Rows(), test.ShouldEqual, 20)
	test.That(t, out.Cols(), test.ShouldEqual, 40)

	// cut is painted red in BGR order
	pix := out.GetVecbAt(10, 5)
	test.That(t, []uint8(pix), test.ShouldResemble, []uint8{0, 0, 255})

	pix = out.GetVecbAt(10, 30)
	test.That(t, []uint8(pix), test.ShouldResemble, []uint8{0, 0, 0})
}

func TestSegmentToolsUnion(t *testing.T) {
	seg, err := NewSegmenter(DefaultClasses())
	test.That(t, err, test.ShouldBeNil)

	tools := seg.Classes()[3]
	test.That(t, tools.Name, test.ShouldEqual, "tools")

	frame := gocv.NewMatWithSize(10, 20, gocv.MatTypeCV8UC3)
	defer frame.Close()

	gocv.Rectangle(&frame, image.Rect(0, 0, 10, 10), rgb(205, 252, 252), -1)
	gocv.Rectangle(&frame, image.Rect(10, 0, 20, 10), rgb(70, 76, 75), -1)

	hsv := gocv.NewMat()
	defer hsv.Close()
	gocv.CvtColor(frame, &hsv, gocv.ColorBGRToHSV)

	mask := gocv.NewMat()
	defer mask.Close()

	seg.Mask(hsv, tools, &mask)

	// both the light and dark halves belong to the tools class
	test.That(t, gocv.CountNonZero(mask), test.ShouldEqual, 200)
}

func TestSegmentEmptyFrame(t *testing.T) {
	seg, err := NewSegmenter(DefaultClasses())
	test.That(t, err, test.ShouldBeNil)

	out := gocv.NewMat()
	defer out.Close()

	empty := gocv.NewMat()
	defer empty.Close()

	test.That(t, seg.Segment(empty, &out), test.ShouldNotBeNil)
}

func TestSchedule(t *testing.T) {
	s := DefaultSchedule()

	test.That(t, s.Segmented(0), test.ShouldBeTrue)
	test.That(t, s.Segmented(5), test.ShouldBeFalse)
	test.That(t, s.Segmented(20), test.ShouldBeTrue)
	test.That(t, s.Original(99), test.ShouldBeTrue)
	test.That(t, s.Original(100), test.ShouldBeFalse)

	test.That(t, Schedule{}.Segmented(0), test.ShouldBeFalse)
}

// blankSource yields blank frames
type blankSource struct {
	count, next int
}

func (s *blankSource) Next() (surgtile.Frame, error) {
	if s.next >= s.count {
		return surgtile.Frame{}, io.EOF
	}

	f := surgtile.Frame{
		Index: s.next,
		Name:  fmt.Sprintf("frame_%04d.jpg", s.next),
		Image: gocv.NewMatWithSize(16, 16, gocv.MatTypeCV8UC3),
	}
	s.next++

	return f, nil
}

func (s *blankSource) Close() error {
	return nil
}

func TestRunnerSavesPerSchedule(t *testing.T) {
	seg, err := NewSegmenter(DefaultClasses())
	test.That(t, err, test.ShouldBeNil)

	dir := t.TempDir()
	segDir := filepath.Join(dir, "segmented")
	origDir := filepath.Join(dir, "original")

	r, err := NewRunner(seg, Schedule{SegmentedEvery: 3, Originals: 2}, segDir, origDir,
		zaptest.NewLogger(t))
	test.That(t, err, test.ShouldBeNil)

	n, err := r.Run(context.Background(), &blankSource{count: 7})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, n, test.ShouldEqual, 7)

	segFiles, err := os.ReadDir(segDir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, segFiles, test.ShouldHaveLength, 3)
	test.That(t, segFiles[1].Name(), test.ShouldEqual, "frame_0003.jpg")

	origFiles, err := os.ReadDir(origDir)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, origFiles, test.ShouldHaveLength, 2)
}
