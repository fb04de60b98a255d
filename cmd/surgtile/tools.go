package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
	"github.com/urfave/cli/v2"
	"go.uber.org/zap"
	"gocv.io/x/gocv"

	"github.com/swdee/go-surgtile/render"
	"github.com/swdee/go-surgtile/segment"
	"github.com/swdee/go-surgtile/video"
)

const (
	flagSegmentedDir = "segmented-dir"
	flagOriginalDir  = "original-dir"
	flagEvery        = "every"
	flagOriginals    = "originals"
	flagMasks        = "masks"
	flagImages       = "images"
	flagMargin       = "margin"
	flagMinArea      = "min-area"
	flagThickness    = "thickness"
)

func segmentFlags() []cli.Flag {

	def := segment.DefaultSchedule()

	return []cli.Flag{
		&cli.StringFlag{
			Name:     flagInput,
			Aliases:  []string{"i"},
			Required: true,
			Usage:    "video `FILE` to segment",
		},
		&cli.StringFlag{
			Name:  flagSegmentedDir,
			Value: "segmented_frames",
			Usage: "directory segmented frames are saved to",
		},
		&cli.StringFlag{
			Name:  flagOriginalDir,
			Value: "original_frames",
			Usage: "directory original frames are saved to",
		},
		&cli.IntFlag{
			Name:  flagEvery,
			Value: def.SegmentedEvery,
			Usage: "save every `N`th segmented frame",
		},
		&cli.IntFlag{
			Name:  flagOriginals,
			Value: def.Originals,
			Usage: "save the first `N` original frames",
		},
	}
}

func segmentAction(c *cli.Context, logger *zap.Logger) error {

	seg, err := segment.NewSegmenter(segment.DefaultClasses())

	if err != nil {
		return err
	}

	runner, err := segment.NewRunner(seg,
		segment.Schedule{SegmentedEvery: c.Int(flagEvery), Originals: c.Int(flagOriginals)},
		c.String(flagSegmentedDir), c.String(flagOriginalDir), logger)

	if err != nil {
		return err
	}

	src, err := video.OpenVideo(c.String(flagInput))

	if err != nil {
		return err
	}

	defer src.Close()

	n, err := runner.Run(c.Context, src)

	logger.Info("segmentation complete", zap.Int("frames", n))

	return err
}

func traceFlags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:     flagMasks,
			Required: true,
			Usage:    "`DIR` of binary mask images",
		},
		&cli.StringFlag{
			Name:     flagImages,
			Required: true,
			Usage:    "`DIR` of images named the same as their masks",
		},
		&cli.StringFlag{
			Name:    flagOutput,
			Aliases: []string{"o"},
			Value:   "edge_trace",
			Usage:   "directory outlined images are saved to",
		},
		&cli.Float64Flag{
			Name:  flagMargin,
			Usage: "grow each outline outwards by `PX` pixels",
		},
		&cli.Float64Flag{
			Name:  flagMinArea,
			Usage: "ignore regions smaller than this area in pixels",
		},
		&cli.IntFlag{
			Name:  flagThickness,
			Value: 2,
			Usage: "outline thickness",
		},
	}
}

func traceAction(c *cli.Context, logger *zap.Logger) error {

	masks, err := video.OpenImageDir(c.String(flagMasks))

	if err != nil {
		return err
	}

	defer masks.Close()

	outDir := c.String(flagOutput)

	if err := os.MkdirAll(outDir, 0o755); err != nil {
		return errors.Wrapf(err, "error creating output directory %s", outDir)
	}

	for i := 0; i < masks.Len(); i++ {
		if err := c.Context.Err(); err != nil {
			return err
		}

		mask, err := masks.Next()

		if err != nil {
			return err
		}

		err = traceMask(c, logger, mask.Name, mask.Image)
		mask.Image.Close()

		if err != nil {
			return err
		}
	}

	return nil
}

// traceMask outlines the regions of one mask on the image of the same name
func traceMask(c *cli.Context, logger *zap.Logger, name string, mask gocv.Mat) error {

	imgFile := filepath.Join(c.String(flagImages), name)
	img := gocv.IMRead(imgFile, gocv.IMReadColor)

	if img.Empty() {
		return errors.Errorf("error reading image %s", imgFile)
	}

	defer img.Close()

	contours := render.TraceContours(mask, c.Float64(flagMinArea))
	contours = render.OffsetContours(contours, c.Float64(flagMargin))

	render.ContourOutline(&img, contours, render.Green, c.Int(flagThickness))

	outFile := filepath.Join(c.String(flagOutput), name)

	if !gocv.IMWrite(outFile, img) {
		return errors.Errorf("error writing image %s", outFile)
	}

	for i, contour := range contours {
		coords := make([]string, 0, len(contour))

		for _, pt := range contour {
			coords = append(coords, fmt.Sprintf("(%d, %d)", pt.X, pt.Y))
		}

		logger.Info("contour coordinates",
			zap.String("mask", name),
			zap.Int("contour", i),
			zap.String("points", strings.Join(coords, " ")),
		)
	}

	return nil
}
