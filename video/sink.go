package video

import (
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/swdee/go-surgtile"
	"github.com/swdee/go-surgtile/render"
)

// SinkConfig defines how annotated frames are saved
type SinkConfig struct {
	// Dir is the directory images are written to
	Dir string
	// Font used for the detection labels
	Font render.Font
	// LineThickness of the bounding boxes
	LineThickness int
	// SaveEmpty saves frames that have no detections
	SaveEmpty bool
}

// AnnotatedSink draws the detections onto each frame and saves it as an
// image named after the frame
type AnnotatedSink struct {
	cfg   SinkConfig
	saved int
}

// NewAnnotatedSink creates the output directory and returns the sink
func NewAnnotatedSink(cfg SinkConfig) (*AnnotatedSink, error) {

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, errors.Wrapf(err, "error creating output directory %s", cfg.Dir)
	}

	if cfg.LineThickness <= 0 {
		cfg.LineThickness = 2
	}

	return &AnnotatedSink{cfg: cfg}, nil
}

// WriteFrame draws the frame's detections on a copy of the frame and saves
// it
func (s *AnnotatedSink) WriteFrame(frame surgtile.Frame, res surgtile.FrameResult) error {

	if !s.cfg.SaveEmpty && len(res.Detections) == 0 {
		return nil
	}

	img := frame.Image.Clone()
	defer img.Close()

	if err := render.DetectionBoxes(&img, res.Detections, s.cfg.Font, s.cfg.LineThickness); err != nil {
		return errors.Wrap(err, "error drawing detections")
	}

	file := filepath.Join(s.cfg.Dir, frame.Name)

	if ok := gocv.IMWrite(file, img); !ok {
		return errors.Errorf("error writing image %s", file)
	}

	s.saved++

	return nil
}

// Saved returns the number of images written
func (s *AnnotatedSink) Saved() int {
	return s.saved
}
