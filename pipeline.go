package surgtile

import (
	"context"
	"image"
	"io"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/swdee/go-surgtile/detector"
	"github.com/swdee/go-surgtile/postprocess"
	"github.com/swdee/go-surgtile/postprocess/result"
	"github.com/swdee/go-surgtile/preprocess"
)

// Frame is a single decoded image from a FrameSource
type Frame struct {
	// Index is the frames position in the source, starting at 0
	Index int
	// Name is the file name output for this frame should be saved under
	Name string
	// Image is the frame pixel data in BGR order, owned by the Pipeline
	// once returned from a FrameSource
	Image gocv.Mat
}

// FrameSource provides frames in order.  Next returns io.EOF once the
// source is exhausted.
type FrameSource interface {
	Next() (Frame, error)
	Close() error
}

// FrameResult is the merged detections for one frame
type FrameResult struct {
	Index int
	Name  string
	// Detections in frame coordinates, deduplicated
	Detections []postprocess.Detection
	// Tiles is the number of tiles the frame was split into
	Tiles int
	// FailedTiles is the number of tiles that returned no detections due
	// to a detector failure
	FailedTiles int
	// Elapsed is the time taken to process the frame
	Elapsed time.Duration
}

// Sink receives each processed frame for output, eg: drawing and saving
// the annotated image
type Sink interface {
	WriteFrame(frame Frame, res FrameResult) error
}

// Recorder collects frame results, eg: for writing a result document at
// the end of a run
type Recorder interface {
	Append(res FrameResult)
}

// Pipeline runs tiled detection over every frame of a source
type Pipeline struct {
	tiler      *preprocess.Tiler
	dispatcher *Dispatcher
	merger     *postprocess.Merger
	filters    []postprocess.Filter
	maxFrames  int
	ids        *result.IDGenerator
	logger     *zap.Logger
}

// NewPipeline validates the config and returns a Pipeline using the given
// detector.  Close must be called to release the worker pool.
func NewPipeline(det detector.Detector, cfg Config, logger *zap.Logger) (*Pipeline, error) {

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	var tiler *preprocess.Tiler

	if cfg.NoTile {
		tiler = preprocess.NewWholeImageTiler()
	} else {
		var err error
		tiler, err = preprocess.NewTiler(cfg.TileWidth, cfg.TileHeight, cfg.Overlap)

		if err != nil {
			return nil, err
		}
	}

	dispatcher, err := NewDispatcher(det, DispatchConfig{
		Workers:     cfg.Workers,
		QueueSize:   cfg.QueueSize,
		TileTimeout: cfg.TileTimeout,
	}, logger.Named("dispatch"))

	if err != nil {
		return nil, err
	}

	return &Pipeline{
		tiler:      tiler,
		dispatcher: dispatcher,
		merger:     postprocess.NewMerger(cfg.IoUThreshold, cfg.ContainmentThreshold),
		filters: []postprocess.Filter{
			// the remote threshold is rounded to a whole percent
			postprocess.NewScoreFilter(cfg.Confidence),
			postprocess.NewClassFilter(cfg.Classes),
		},
		maxFrames: cfg.MaxFrames,
		ids:       result.NewIDGenerator(),
		logger:    logger,
	}, nil
}

// ProcessFrame tiles the frame, detects objects on each tile in parallel
// and merges the results into frame coordinates
func (p *Pipeline) ProcessFrame(ctx context.Context, frame Frame) FrameResult {

	start := time.Now()

	tiles := p.tiler.Slice(frame.Image)

	defer func() {
		if err := preprocess.FreeTiles(tiles); err != nil {
			p.logger.Debug("error freeing tiles", zap.Error(err))
		}
	}()

	results := p.dispatcher.Dispatch(ctx, tiles)

	bounds := image.Rect(0, 0, frame.Image.Cols(), frame.Image.Rows())
	global := make([]postprocess.Detection, 0)
	failed := 0

	for _, res := range results {
		if res.Err != nil {
			failed++
			continue
		}

		remapped := postprocess.RemapAll(res.Detections, res.Tile.Offset())
		global = append(global, postprocess.ClampAll(remapped, bounds)...)
	}

	global = postprocess.ApplyFilters(global, p.filters...)
	merged := p.merger.Merge(global)

	for i := range merged {
		merged[i].ID = p.ids.GetNext()
	}

	return FrameResult{
		Index:       frame.Index,
		Name:        frame.Name,
		Detections:  merged,
		Tiles:       len(tiles),
		FailedTiles: failed,
		Elapsed:     time.Since(start),
	}
}

// Run processes frames from the source in order until it is exhausted,
// MaxFrames is reached or the context is cancelled.  Output failures from
// the sink are logged and counted but do not stop the run.  A frame in
// flight when the context is cancelled is not passed to sink or rec.  sink
// and rec may be nil.
func (p *Pipeline) Run(ctx context.Context, src FrameSource, sink Sink, rec Recorder) (Summary, error) {

	stats := newSummaryBuilder()
	processed := 0

	for {
		if err := ctx.Err(); err != nil {
			return stats.summary(p.dispatcher.Stats()), err
		}

		if p.maxFrames > 0 && processed >= p.maxFrames {
			break
		}

		frame, err := src.Next()

		if errors.Is(err, io.EOF) {
			break
		}

		if err != nil {
			return stats.summary(p.dispatcher.Stats()), errors.Wrap(err, "error reading frame")
		}

		res := p.ProcessFrame(ctx, frame)

		// tiles failed because of the cancel, the frame result is partial
		if err := ctx.Err(); err != nil {
			if cerr := frame.Image.Close(); cerr != nil {
				p.logger.Debug("error closing frame", zap.Int("frame", frame.Index), zap.Error(cerr))
			}

			return stats.summary(p.dispatcher.Stats()), err
		}

		if sink != nil {
			if werr := sink.WriteFrame(frame, res); werr != nil {
				ioErr := errors.Wrapf(ErrIOFailure, "frame %d: %v", frame.Index, werr)
				stats.outputErr = multierr.Append(stats.outputErr, ioErr)
				p.logger.Error("error writing frame output",
					zap.Int("frame", frame.Index), zap.Error(ioErr))
			}
		}

		if err := frame.Image.Close(); err != nil {
			p.logger.Debug("error closing frame", zap.Int("frame", frame.Index), zap.Error(err))
		}

		if rec != nil {
			rec.Append(res)
		}

		stats.add(res)
		processed++

		p.logger.Info("processed frame",
			zap.Int("frame", res.Index),
			zap.Int("tiles", res.Tiles),
			zap.Int("failed_tiles", res.FailedTiles),
			zap.Int("detections", len(res.Detections)),
			zap.Duration("elapsed", res.Elapsed),
		)
	}

	return stats.summary(p.dispatcher.Stats()), nil
}

// Close releases the worker pool and closes the given sources
func (p *Pipeline) Close(closers ...io.Closer) error {

	p.dispatcher.Close()

	var err error

	for _, c := range closers {
		if c != nil {
			err = multierr.Append(err, c.Close())
		}
	}

	return err
}
