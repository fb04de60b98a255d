package render

import (
	"image"
	"image/color"

	clipper "github.com/ctessum/go.clipper"
	"gocv.io/x/gocv"
)

// TraceContours finds the outer contours of the white regions in a mask
// image.  Colour masks are converted to gray and any non black pixel is
// treated as foreground.  Contours with an area smaller than minArea are
// dropped as noise.
func TraceContours(mask gocv.Mat, minArea float64) [][]image.Point {

	bin := gocv.NewMat()
	defer bin.Close()

	if mask.Channels() > 1 {
		gocv.CvtColor(mask, &bin, gocv.ColorBGRToGray)
	} else {
		mask.CopyTo(&bin)
	}

	gocv.Threshold(bin, &bin, 0, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(bin, gocv.RetrievalExternal, gocv.ChainApproxSimple)
	defer contours.Close()

	res := make([][]image.Point, 0, contours.Size())

	for i := 0; i < contours.Size(); i++ {
		contour := contours.At(i)

		if gocv.ContourArea(contour) < minArea {
			continue
		}

		res = append(res, contour.ToPoints())
	}

	return res
}

// OffsetContour grows a closed contour outwards by margin pixels with
// rounded corners, a negative margin shrinks it.  Shrinking a contour away
// entirely returns no paths.
func OffsetContour(contour []image.Point, margin float64) [][]image.Point {

	if margin == 0 {
		return [][]image.Point{contour}
	}

	var path clipper.Path

	for _, pt := range contour {
		path = append(path, &clipper.IntPoint{X: clipper.CInt(pt.X), Y: clipper.CInt(pt.Y)})
	}

	co := clipper.NewClipperOffset()
	co.AddPath(path, clipper.JtRound, clipper.EtClosedPolygon)

	solution := co.Execute(margin)

	res := make([][]image.Point, 0, len(solution))

	for _, sol := range solution {
		points := make([]image.Point, 0, len(sol))

		for _, pt := range sol {
			points = append(points, image.Pt(int(pt.X), int(pt.Y)))
		}

		res = append(res, points)
	}

	return res
}

// OffsetContours applies OffsetContour to every contour
func OffsetContours(contours [][]image.Point, margin float64) [][]image.Point {

	res := make([][]image.Point, 0, len(contours))

	for _, c := range contours {
		res = append(res, OffsetContour(c, margin)...)
	}

	return res
}

// ContourOutline draws the contours onto the image
func ContourOutline(img *gocv.Mat, contours [][]image.Point, clr color.RGBA, thickness int) {

	if len(contours) == 0 {
		return
	}

	ptsVec := gocv.NewPointsVectorFromPoints(contours)
	defer ptsVec.Close()

	gocv.DrawContours(img, ptsVec, -1, clr, thickness)
}
