package main

import (
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"

	"github.com/swdee/go-surgtile"
	"github.com/swdee/go-surgtile/detector"
)

const (
	// Flags.
	flagDebug     = "debug"
	flagLogFile   = "log-file"
	flagInput     = "input"
	flagOutput    = "output"
	flagResults   = "results"
	flagModel     = "model"
	flagEndpoint  = "endpoint"
	flagAPIKey    = "api-key"
	flagConf      = "confidence"
	flagModelOvlp = "model-overlap"
	flagIoU       = "iou"
	flagContain   = "containment"
	flagWorkers   = "workers"
	flagQueue     = "queue"
	flagTimeout   = "timeout"
	flagRateLimit = "rate-limit"
	flagBurst     = "burst"
	flagClasses   = "classes"
	flagFont      = "font"
	flagFontSize  = "font-size"
	flagTileW     = "tile-width"
	flagTileH     = "tile-height"
	flagOverlap   = "overlap"
	flagNoTile    = "no-tile"
	flagMaxFrames = "max-frames"
	flagSeconds   = "seconds"
	flagSaveEmpty = "save-empty"

	defaultModel = "wound-detector-bc8ds/1"
)

func newApp() *cli.App {

	logger := zap.NewNop()

	return &cli.App{
		Name:            "surgtile",
		Usage:           "tiled object detection for surgical video",
		HideHelpCommand: true,
		Flags: []cli.Flag{
			&cli.BoolFlag{
				Name:  flagDebug,
				Usage: "enable debug logging",
			},
			&cli.StringFlag{
				Name:  flagLogFile,
				Usage: "also write JSON logs to rotating `FILE`",
			},
		},
		Before: func(c *cli.Context) error {
			var err error
			logger, err = newLogger(c.Bool(flagDebug), c.String(flagLogFile))
			return err
		},
		After: func(c *cli.Context) error {
			// stderr sync fails on some terminals
			_ = logger.Sync()
			return nil
		},
		Commands: []*cli.Command{
			{
				Name:      "video",
				Usage:     "detect objects on every frame of a video by tiling each frame",
				ArgsUsage: " ",
				Flags: append(append(detectorFlags(0.3, 0.5), tileFlags()...),
					&cli.StringFlag{
						Name:     flagInput,
						Aliases:  []string{"i"},
						Required: true,
						Usage:    "video `FILE` to process",
					},
					&cli.StringFlag{
						Name:    flagOutput,
						Aliases: []string{"o"},
						Value:   "output_frames",
						Usage:   "directory annotated frames are saved to",
					},
					&cli.Float64Flag{
						Name:  flagSeconds,
						Usage: "only process the first `SECONDS` of video, 0 for all",
					},
					&cli.BoolFlag{
						Name:  flagSaveEmpty,
						Value: true,
						Usage: "save frames that have no detections",
					},
				),
				Action: func(c *cli.Context) error {
					return videoAction(c, logger)
				},
			},
			{
				Name:  "detect",
				Usage: "detect objects on each whole image in a directory",
				Flags: append(detectorFlags(0.5, 0.3),
					&cli.StringFlag{
						Name:     flagInput,
						Aliases:  []string{"i"},
						Required: true,
						Usage:    "`DIR` of images to process",
					},
					&cli.StringFlag{
						Name:    flagOutput,
						Aliases: []string{"o"},
						Value:   "detected",
						Usage:   "directory images with detections are saved to",
					},
					&cli.IntFlag{
						Name:  flagMaxFrames,
						Usage: "stop after `N` images, 0 for all",
					},
					&cli.BoolFlag{
						Name:  flagSaveEmpty,
						Usage: "save images that have no detections",
					},
				),
				Action: func(c *cli.Context) error {
					return detectAction(c, logger)
				},
			},
			{
				Name:   "segment",
				Usage:  "colour segment the surfaces in a video",
				Flags:  segmentFlags(),
				Action: func(c *cli.Context) error { return segmentAction(c, logger) },
			},
			{
				Name:   "trace",
				Usage:  "outline the regions of training masks on their images",
				Flags:  traceFlags(),
				Action: func(c *cli.Context) error { return traceAction(c, logger) },
			},
		},
	}
}

// detectorFlags are the flags of commands that call the hosted model
func detectorFlags(confidence, modelOverlap float64) []cli.Flag {

	def := surgtile.DefaultConfig()

	return []cli.Flag{
		&cli.StringFlag{
			Name:  flagModel,
			Value: defaultModel,
			Usage: "hosted model as `project/version`",
		},
		&cli.StringFlag{
			Name:  flagEndpoint,
			Value: detector.DefaultEndpoint,
			Usage: "inference API base `URL`",
		},
		&cli.StringFlag{
			Name:     flagAPIKey,
			EnvVars:  []string{"ROBOFLOW_API_KEY", "API_KEY"},
			Required: true,
			Usage:    "inference API key",
		},
		&cli.Float64Flag{
			Name:  flagConf,
			Value: confidence,
			Usage: "minimum detection confidence, 0.0 to 1.0",
		},
		&cli.Float64Flag{
			Name:  flagModelOvlp,
			Value: modelOverlap,
			Usage: "IoU threshold of the model's own NMS, 0.0 to 1.0",
		},
		&cli.Float64Flag{
			Name:  flagIoU,
			Value: def.IoUThreshold,
			Usage: "IoU above which detections from overlapping tiles are merged",
		},
		&cli.Float64Flag{
			Name:  flagContain,
			Value: def.ContainmentThreshold,
			Usage: "fraction of a box covered by another above which it is merged, 0 disables (default)",
		},
		&cli.IntFlag{
			Name:  flagWorkers,
			Value: def.Workers,
			Usage: "number of concurrent requests",
		},
		&cli.IntFlag{
			Name:  flagQueue,
			Usage: "number of tiles waiting for a worker, 0 matches workers",
		},
		&cli.DurationFlag{
			Name:  flagTimeout,
			Value: def.TileTimeout,
			Usage: "timeout of each request",
		},
		&cli.Float64Flag{
			Name:  flagRateLimit,
			Usage: "maximum requests per second, 0 for unlimited",
		},
		&cli.IntFlag{
			Name:  flagBurst,
			Value: 1,
			Usage: "requests allowed over the rate limit at once",
		},
		&cli.StringFlag{
			Name:  flagResults,
			Value: "inference_result.json",
			Usage: "`FILE` the JSON result document is written to",
		},
		&cli.StringFlag{
			Name:  flagClasses,
			Usage: "text `FILE` of class labels to keep, one per line",
		},
		&cli.StringFlag{
			Name:  flagFont,
			Usage: "TrueType font `FILE` for labels, \"go\" uses the built in Go font",
		},
		&cli.Float64Flag{
			Name:  flagFontSize,
			Value: 16,
			Usage: "TrueType label font size in points",
		},
	}
}

// tileFlags set the tile geometry
func tileFlags() []cli.Flag {

	def := surgtile.DefaultConfig()

	return []cli.Flag{
		&cli.IntFlag{
			Name:  flagTileW,
			Value: def.TileWidth,
			Usage: "tile width in pixels",
		},
		&cli.IntFlag{
			Name:  flagTileH,
			Value: def.TileHeight,
			Usage: "tile height in pixels",
		},
		&cli.Float64Flag{
			Name:  flagOverlap,
			Value: def.Overlap,
			Usage: "fraction each tile overlaps its neighbour, 0.0 to <1.0",
		},
		&cli.BoolFlag{
			Name:  flagNoTile,
			Usage: "send each whole frame as a single image",
		},
		&cli.IntFlag{
			Name:  flagMaxFrames,
			Usage: "stop after `N` frames, 0 for all",
		},
	}
}
