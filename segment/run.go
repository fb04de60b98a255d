package segment

import (
	"context"
	"io"
	"os"
	"path/filepath"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/swdee/go-surgtile"
)

// Schedule decides which frames of a run are written to disk
type Schedule struct {
	// SegmentedEvery saves every Nth segmented frame, 0 saves none
	SegmentedEvery int
	// Originals saves the first N unmodified frames
	Originals int
}

// DefaultSchedule saves every 10th segmented frame and the first 100
// original frames
func DefaultSchedule() Schedule {
	return Schedule{SegmentedEvery: 10, Originals: 100}
}

// Segmented reports whether the segmented frame at index should be saved
func (s Schedule) Segmented(index int) bool {
	return s.SegmentedEvery > 0 && index%s.SegmentedEvery == 0
}

// Original reports whether the original frame at index should be saved
func (s Schedule) Original(index int) bool {
	return index < s.Originals
}

// Runner segments every frame of a source and saves them per its Schedule
type Runner struct {
	seg          *Segmenter
	schedule     Schedule
	segmentedDir string
	originalDir  string
	logger       *zap.Logger
}

// NewRunner creates the output directories and returns a Runner
func NewRunner(seg *Segmenter, schedule Schedule, segmentedDir, originalDir string,
	logger *zap.Logger) (*Runner, error) {

	for _, dir := range []string{segmentedDir, originalDir} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, errors.Wrapf(err, "error creating directory %s", dir)
		}
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Runner{
		seg:          seg,
		schedule:     schedule,
		segmentedDir: segmentedDir,
		originalDir:  originalDir,
		logger:       logger,
	}, nil
}

// Run processes frames until the source is exhausted or the context is
// cancelled and returns the number of frames processed
func (r *Runner) Run(ctx context.Context, src surgtile.FrameSource) (int, error) {

	out := gocv.NewMat()
	defer out.Close()

	count := 0

	for {
		if err := ctx.Err(); err != nil {
			return count, err
		}

		frame, err := src.Next()

		if errors.Is(err, io.EOF) {
			return count, nil
		}

		if err != nil {
			return count, errors.Wrap(err, "error reading frame")
		}

		err = r.processFrame(frame, &out)
		frame.Image.Close()

		if err != nil {
			return count, err
		}

		count++
	}
}

func (r *Runner) processFrame(frame surgtile.Frame, out *gocv.Mat) error {

	if err := r.seg.Segment(frame.Image, out); err != nil {
		return errors.Wrapf(err, "error segmenting frame %d", frame.Index)
	}

	if r.schedule.Segmented(frame.Index) {
		file := filepath.Join(r.segmentedDir, frame.Name)

		if !gocv.IMWrite(file, *out) {
			return errors.Wrapf(surgtile.ErrIOFailure, "writing %s", file)
		}

		r.logger.Debug("saved segmented frame", zap.String("file", file))
	}

	if r.schedule.Original(frame.Index) {
		file := filepath.Join(r.originalDir, frame.Name)

		if !gocv.IMWrite(file, frame.Image) {
			return errors.Wrapf(surgtile.ErrIOFailure, "writing %s", file)
		}
	}

	return nil
}
