package main

import (
	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"github.com/swdee/go-surgtile"
	"github.com/swdee/go-surgtile/detector"
	"github.com/swdee/go-surgtile/render"
	"github.com/swdee/go-surgtile/video"
)

// pipelineConfig builds the pipeline settings from the detector flags and,
// for tiled commands, the tile flags
func pipelineConfig(c *cli.Context, tiled bool) (surgtile.Config, error) {

	cfg := surgtile.DefaultConfig()

	cfg.Confidence = c.Float64(flagConf)
	cfg.ModelOverlap = c.Float64(flagModelOvlp)
	cfg.IoUThreshold = c.Float64(flagIoU)
	cfg.ContainmentThreshold = c.Float64(flagContain)
	cfg.Workers = c.Int(flagWorkers)
	cfg.QueueSize = c.Int(flagQueue)
	cfg.TileTimeout = c.Duration(flagTimeout)
	cfg.RateLimit = c.Float64(flagRateLimit)
	cfg.MaxFrames = c.Int(flagMaxFrames)

	if tiled {
		cfg.TileWidth = c.Int(flagTileW)
		cfg.TileHeight = c.Int(flagTileH)
		cfg.Overlap = c.Float64(flagOverlap)
		cfg.NoTile = c.Bool(flagNoTile)
	} else {
		cfg.NoTile = true
	}

	if file := c.String(flagClasses); file != "" {
		classes, err := surgtile.LoadClasses(file)

		if err != nil {
			return cfg, errors.Wrapf(err, "error loading classes %s", file)
		}

		cfg.Classes = classes
	}

	return cfg, cfg.Validate()
}

// newDetector returns the hosted model client
func newDetector(c *cli.Context, cfg surgtile.Config) (*detector.Roboflow, error) {
	return detector.NewRoboflow(detector.RoboflowConfig{
		Endpoint:   c.String(flagEndpoint),
		Model:      c.String(flagModel),
		APIKey:     c.String(flagAPIKey),
		Confidence: cfg.Confidence,
		Overlap:    cfg.ModelOverlap,
		Timeout:    cfg.TileTimeout,
		RateLimit:  cfg.RateLimit,
		Burst:      c.Int(flagBurst),
	})
}

// labelFont returns the font for detection labels and a function to release
// it
func labelFont(c *cli.Context) (render.Font, func(), error) {

	font := render.DefaultFont()
	path := c.String(flagFont)

	if path == "" {
		return font, func() {}, nil
	}

	var (
		face *render.TTFFace
		err  error
	)

	if path == "go" {
		face, err = render.DefaultTTFFace(c.Float64(flagFontSize))
	} else {
		face, err = render.LoadTTFFace(path, c.Float64(flagFontSize))
	}

	if err != nil {
		return font, nil, errors.Wrapf(err, "error loading font %s", path)
	}

	font.TTF = face

	return font, func() { face.Close() }, nil
}

// runPipeline processes every frame of src, saves annotated frames and
// writes the result document
func runPipeline(c *cli.Context, logger *zap.Logger, cfg surgtile.Config,
	src surgtile.FrameSource, saveEmpty bool) (err error) {

	defer func() {
		if cerr := src.Close(); cerr != nil {
			err = multierr.Append(err, errors.Wrap(cerr, "error closing source"))
		}
	}()

	det, err := newDetector(c, cfg)

	if err != nil {
		return err
	}

	pipeline, err := surgtile.NewPipeline(det, cfg, logger)

	if err != nil {
		return err
	}

	defer pipeline.Close()

	font, closeFont, err := labelFont(c)

	if err != nil {
		return err
	}

	defer closeFont()

	sink, err := video.NewAnnotatedSink(video.SinkConfig{
		Dir:       c.String(flagOutput),
		Font:      font,
		SaveEmpty: saveEmpty,
	})

	if err != nil {
		return err
	}

	results := video.NewResultLog()

	logger.Info("starting run",
		zap.String("model", det.Endpoint()),
		zap.Int("workers", cfg.Workers),
		zap.Bool("no_tile", cfg.NoTile),
		zap.Int("tile_width", cfg.TileWidth),
		zap.Int("tile_height", cfg.TileHeight),
		zap.Float64("overlap", cfg.Overlap),
		zap.Int("max_frames", cfg.MaxFrames),
	)

	summary, runErr := pipeline.Run(c.Context, src, sink, results)

	// results so far are kept even if the run was interrupted
	flushErr := results.Flush(c.String(flagResults))

	logger.Info("run complete", append(summary.Fields(),
		zap.Int("saved_images", sink.Saved()),
		zap.String("results", c.String(flagResults)))...)

	return multierr.Combine(runErr, flushErr)
}

func videoAction(c *cli.Context, logger *zap.Logger) error {

	cfg, err := pipelineConfig(c, true)

	if err != nil {
		return err
	}

	src, err := video.OpenVideo(c.String(flagInput))

	if err != nil {
		return err
	}

	if secs := c.Float64(flagSeconds); secs > 0 {
		n := src.FramesFor(secs)

		if n == 0 {
			logger.Warn("video frame rate unknown, ignoring seconds limit", zap.Float64("seconds", secs))
		} else if cfg.MaxFrames == 0 || n < cfg.MaxFrames {
			cfg.MaxFrames = n
		}
	}

	logger.Debug("opened video", zap.String("file", c.String(flagInput)), zap.Float64("fps", src.FPS()))

	return runPipeline(c, logger, cfg, src, c.Bool(flagSaveEmpty))
}

func detectAction(c *cli.Context, logger *zap.Logger) error {

	cfg, err := pipelineConfig(c, false)

	if err != nil {
		return err
	}

	src, err := video.OpenImageDir(c.String(flagInput))

	if err != nil {
		return err
	}

	logger.Debug("found images", zap.String("dir", c.String(flagInput)), zap.Int("count", src.Len()))

	return runPipeline(c, logger, cfg, src, c.Bool(flagSaveEmpty))
}
