package video

import (
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"gocv.io/x/gocv"

	"github.com/swdee/go-surgtile"
)

// VideoSource reads frames from a video file
type VideoSource struct {
	cap   *gocv.VideoCapture
	path  string
	fps   float64
	index int
}

// OpenVideo opens the video file for reading
func OpenVideo(path string) (*VideoSource, error) {

	vc, err := gocv.VideoCaptureFile(path)

	if err != nil {
		return nil, errors.Wrapf(err, "error opening video %s", path)
	}

	if !vc.IsOpened() {
		vc.Close()
		return nil, errors.Errorf("error opening video %s", path)
	}

	return &VideoSource{
		cap:  vc,
		path: path,
		fps:  vc.Get(gocv.VideoCaptureFPS),
	}, nil
}

// FPS returns the frame rate reported by the video container
func (v *VideoSource) FPS() float64 {
	return v.fps
}

// FramesFor returns the number of frames covering the first seconds of the
// video, or 0 if the frame rate is unknown
func (v *VideoSource) FramesFor(seconds float64) int {
	return FramesFor(seconds, v.fps)
}

// FramesFor converts a duration in seconds to a frame count at the given
// frame rate
func FramesFor(seconds, fps float64) int {
	if seconds <= 0 || fps <= 0 || math.IsNaN(fps) {
		return 0
	}

	return int(seconds * fps)
}

// Next reads the next frame, returning io.EOF at the end of the video
func (v *VideoSource) Next() (surgtile.Frame, error) {

	img := gocv.NewMat()

	if ok := v.cap.Read(&img); !ok || img.Empty() {
		img.Close()
		return surgtile.Frame{}, io.EOF
	}

	f := surgtile.Frame{
		Index: v.index,
		Name:  fmt.Sprintf("frame_%04d.jpg", v.index),
		Image: img,
	}

	v.index++

	return f, nil
}

// Close releases the video capture
func (v *VideoSource) Close() error {
	return v.cap.Close()
}

// imageExts are the file types read from an image directory
var imageExts = []string{".jpg", ".jpeg", ".png", ".bmp"}

// ImageDirSource reads every image file in a directory in name order
type ImageDirSource struct {
	dir   string
	files []string
	index int
}

// OpenImageDir lists the images in the directory
func OpenImageDir(dir string) (*ImageDirSource, error) {

	entries, err := os.ReadDir(dir)

	if err != nil {
		return nil, errors.Wrapf(err, "error reading directory %s", dir)
	}

	images := lo.Filter(entries, func(e os.DirEntry, _ int) bool {
		ext := strings.ToLower(filepath.Ext(e.Name()))
		return !e.IsDir() && lo.Contains(imageExts, ext)
	})

	return &ImageDirSource{
		dir: dir,
		files: lo.Map(images, func(e os.DirEntry, _ int) string {
			return e.Name()
		}),
	}, nil
}

// Len returns the number of images in the directory
func (s *ImageDirSource) Len() int {
	return len(s.files)
}

// Next reads the next image, returning io.EOF once all have been read
func (s *ImageDirSource) Next() (surgtile.Frame, error) {

	if s.index >= len(s.files) {
		return surgtile.Frame{}, io.EOF
	}

	name := s.files[s.index]
	path := filepath.Join(s.dir, name)

	img := gocv.IMRead(path, gocv.IMReadColor)

	if img.Empty() {
		img.Close()
		return surgtile.Frame{}, errors.Errorf("error reading image %s", path)
	}

	f := surgtile.Frame{
		Index: s.index,
		Name:  name,
		Image: img,
	}

	s.index++

	return f, nil
}

// Close is a no-op, images are read one at a time
func (s *ImageDirSource) Close() error {
	return nil
}
