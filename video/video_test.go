package video

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.viam.com/test"
	"gocv.io/x/gocv"

	"github.com/swdee/go-surgtile"
	"github.com/swdee/go-surgtile/postprocess"
	"github.com/swdee/go-surgtile/render"
)

// writeImage saves a blank image of the given size
func writeImage(t *testing.T, path string, width, height int) {
	t.Helper()

	img := gocv.NewMatWithSize(height, width, gocv.MatTypeCV8UC3)
	defer img.Close()

	test.That(t, gocv.IMWrite(path, img), test.ShouldBeTrue)
}

func TestImageDirSource(t *testing.T) {
	dir := t.TempDir()

	writeImage(t, filepath.Join(dir, "b.jpg"), 32, 16)
	writeImage(t, filepath.Join(dir, "a.png"), 16, 16)
	test.That(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o644), test.ShouldBeNil)
	test.That(t, os.Mkdir(filepath.Join(dir, "sub.jpg"), 0o755), test.ShouldBeNil)

	src, err := OpenImageDir(dir)
	test.That(t, err, test.ShouldBeNil)
	defer src.Close()

	test.That(t, src.Len(), test.ShouldEqual, 2)

	f, err := src.Next()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Index, test.ShouldEqual, 0)
	test.That(t, f.Name, test.ShouldEqual, "a.png")
	f.Image.Close()

	f, err = src.Next()
	test.That(t, err, test.ShouldBeNil)
	test.That(t, f.Name, test.ShouldEqual, "b.jpg")
	test.That(t, f.Image.Cols(), test.ShouldEqual, 32)
	f.Image.Close()

	_, err = src.Next()
	test.That(t, err, test.ShouldEqual, io.EOF)
}

func TestImageDirSourceUnreadable(t *testing.T) {
	dir := t.TempDir()
	test.That(t, os.WriteFile(filepath.Join(dir, "bad.jpg"), []byte("not an image"), 0o644), test.ShouldBeNil)

	src, err := OpenImageDir(dir)
	test.That(t, err, test.ShouldBeNil)

	_, err = src.Next()
	test.That(t, err, test.ShouldNotBeNil)

	_, err = OpenImageDir(filepath.Join(dir, "missing"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestVideoSource(t *testing.T) {
	file := filepath.Join(t.TempDir(), "clip.avi")

	w, err := gocv.VideoWriterFile(file, "MJPG", 25, 64, 48, true)
	test.That(t, err, test.ShouldBeNil)

	if !w.IsOpened() {
		w.Close()
		t.Skip("opencv build has no MJPG writer")
	}

	img := gocv.NewMatWithSize(48, 64, gocv.MatTypeCV8UC3)
	defer img.Close()

	for i := 0; i < 5; i++ {
		test.That(t, w.Write(img), test.ShouldBeNil)
	}

	test.That(t, w.Close(), test.ShouldBeNil)

	src, err := OpenVideo(file)
	test.That(t, err, test.ShouldBeNil)
	defer src.Close()

	test.That(t, src.FPS(), test.ShouldAlmostEqual, 25.0, 0.5)
	test.That(t, src.FramesFor(0.1), test.ShouldEqual, 2)

	count := 0

	for {
		f, err := src.Next()
		if err == io.EOF {
			break
		}

		test.That(t, err, test.ShouldBeNil)
		test.That(t, f.Index, test.ShouldEqual, count)
		f.Image.Close()
		count++
	}

	test.That(t, count, test.ShouldEqual, 5)
}

func TestOpenVideoMissing(t *testing.T) {
	_, err := OpenVideo(filepath.Join(t.TempDir(), "missing.mp4"))
	test.That(t, err, test.ShouldNotBeNil)
}

func TestFramesFor(t *testing.T) {
	test.That(t, FramesFor(5, 30), test.ShouldEqual, 150)
	test.That(t, FramesFor(5, 0), test.ShouldEqual, 0)
	test.That(t, FramesFor(0, 30), test.ShouldEqual, 0)
}

func TestAnnotatedSink(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "out")

	sink, err := NewAnnotatedSink(SinkConfig{Dir: dir, Font: render.DefaultFont()})
	test.That(t, err, test.ShouldBeNil)

	img := gocv.NewMatWithSize(100, 100, gocv.MatTypeCV8UC3)
	defer img.Close()

	frame := surgtile.Frame{Index: 0, Name: "frame_0000.jpg", Image: img}

	// frames without detections are skipped
	err = sink.WriteFrame(frame, surgtile.FrameResult{})
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sink.Saved(), test.ShouldEqual, 0)

	res := surgtile.FrameResult{Detections: []postprocess.Detection{
		{X: 50, Y: 50, Width: 20, Height: 20, Confidence: 0.9, Class: "cut"},
	}}

	err = sink.WriteFrame(frame, res)
	test.That(t, err, test.ShouldBeNil)
	test.That(t, sink.Saved(), test.ShouldEqual, 1)

	// the source frame is left untouched
	test.That(t, gocv.CountNonZero(grayOf(t, img)), test.ShouldEqual, 0)

	saved := gocv.IMRead(filepath.Join(dir, "frame_0000.jpg"), gocv.IMReadColor)
	defer saved.Close()
	test.That(t, saved.Empty(), test.ShouldBeFalse)
	test.That(t, saved.Size(), test.ShouldResemble, []int{100, 100})
}

func TestAnnotatedSinkSaveEmpty(t *testing.T) {
	dir := t.TempDir()

	sink, err := NewAnnotatedSink(SinkConfig{Dir: dir, Font: render.DefaultFont(), SaveEmpty: true})
	test.That(t, err, test.ShouldBeNil)

	img := gocv.NewMatWithSize(10, 10, gocv.MatTypeCV8UC3)
	defer img.Close()

	err = sink.WriteFrame(surgtile.Frame{Name: "empty.jpg", Image: img}, surgtile.FrameResult{})
	test.That(t, err, test.ShouldBeNil)

	_, err = os.Stat(filepath.Join(dir, "empty.jpg"))
	test.That(t, err, test.ShouldBeNil)
}

// grayOf returns a single channel copy of img
func grayOf(t *testing.T, img gocv.Mat) gocv.Mat {
	t.Helper()

	gray := gocv.NewMat()
	t.Cleanup(func() { gray.Close() })

	gocv.CvtColor(img, &gray, gocv.ColorBGRToGray)

	return gray
}

func TestResultLog(t *testing.T) {
	results := NewResultLog()

	dets := []postprocess.Detection{
		{X: 10, Y: 20, Width: 5, Height: 6, Confidence: 0.75, Class: "cut", ID: 1},
	}

	results.Append(surgtile.FrameResult{Index: 0, Name: "frame_0000.jpg", Detections: dets, Elapsed: time.Second})
	results.Append(surgtile.FrameResult{Index: 1, Name: "frame_0001.jpg", FailedTiles: 2})

	// later changes to the caller's slice do not leak into the log
	dets[0].X = 99

	test.That(t, results.Detections(), test.ShouldEqual, 1)

	file := filepath.Join(t.TempDir(), "results.json")
	test.That(t, results.Flush(file), test.ShouldBeNil)

	data, err := os.ReadFile(file)
	test.That(t, err, test.ShouldBeNil)

	var got []map[string]interface{}
	test.That(t, json.Unmarshal(data, &got), test.ShouldBeNil)

	want := []map[string]interface{}{
		{
			"frame":        0.0,
			"name":         "frame_0000.jpg",
			"failed_tiles": 0.0,
			"predictions": []interface{}{
				map[string]interface{}{
					"x": 10.0, "y": 20.0, "width": 5.0, "height": 6.0,
					"confidence": 0.75, "class": "cut", "detection_id": 1.0,
				},
			},
		},
		{
			"frame":        1.0,
			"name":         "frame_0001.jpg",
			"failed_tiles": 2.0,
			"predictions":  []interface{}{},
		},
	}

	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("result document mismatch (-want +got):\n%s", diff)
	}
}

func TestResultLogFlushError(t *testing.T) {
	results := NewResultLog()
	err := results.Flush(filepath.Join(t.TempDir(), "missing", "results.json"))
	test.That(t, err, test.ShouldNotBeNil)
}

var (
	_ surgtile.Sink        = &AnnotatedSink{}
	_ surgtile.Recorder    = &ResultLog{}
	_ surgtile.FrameSource = &ImageDirSource{}
	_ surgtile.FrameSource = &VideoSource{}
)
