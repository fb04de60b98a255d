package render

import (
	"fmt"
	"image"
	"image/color"

	"go.uber.org/multierr"
	"gocv.io/x/gocv"

	"github.com/swdee/go-surgtile/postprocess"
)

// boxLabel is a precalculated label drawn after all boxes
type boxLabel struct {
	rect    image.Rectangle
	clr     color.RGBA
	text    string
	textPos image.Point
}

// LabelText returns the "<class> <confidence>" label drawn for a detection
func LabelText(det postprocess.Detection) string {
	return fmt.Sprintf("%s %.2f", det.Class, det.Confidence)
}

// DetectionBoxes renders the bounding boxes around the objects detected
// along with their class and confidence label
func DetectionBoxes(img *gocv.Mat, dets []postprocess.Detection,
	font Font, lineThickness int) error {

	// keep a record of all box labels for later rendering
	boxLabels := make([]boxLabel, 0, len(dets))

	for _, det := range dets {

		useClr := ClassColor(det.Class)

		rect := det.Box().Rect()
		gocv.Rectangle(img, rect, useClr, lineThickness)

		text := LabelText(det)
		textSize := font.measure(text)

		// Calculate the alignment of text label
		var centerX int

		switch font.Alignment {
		case Center:
			centerX = (rect.Min.X + rect.Max.X) / 2

		case Right:
			centerX = rect.Max.X - (textSize.X / 2) - font.RightPad + (lineThickness / 2)

		case Left:
			fallthrough
		default:
			centerX = rect.Min.X + (textSize.X / 2) + font.LeftPad - (lineThickness / 2)
		}

		// labels of boxes touching the top of the frame go inside the box
		top := rect.Min.Y
		if top-textSize.Y-font.TopPad-font.BottomPad < 0 {
			top = rect.Min.Y + textSize.Y + font.TopPad + font.BottomPad
		}

		boxLabels = append(boxLabels, boxLabel{
			rect: image.Rect(centerX-textSize.X/2-font.LeftPad,
				top-textSize.Y-font.TopPad-font.BottomPad,
				centerX+textSize.X/2+font.RightPad, top),
			clr:     useClr,
			text:    text,
			textPos: image.Pt(centerX-textSize.X/2, top-font.BottomPad),
		})
	}

	// draw all labels last so they are the top most layer on the image and
	// don't get overlapped by neighbouring boxes
	var err error

	for _, box := range boxLabels {
		gocv.Rectangle(img, box.rect, box.clr, -1)
		err = multierr.Append(err, font.draw(img, box.text, box.textPos))
	}

	return err
}
