package render

import (
	"image"
	"image/color"
	"image/draw"
	"os"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/goregular"
	"golang.org/x/image/font/opentype"
	"golang.org/x/image/math/fixed"
)

// TTFFace renders text using a TrueType or OpenType font
type TTFFace struct {
	face    font.Face
	ascent  int
	descent int
}

// NewTTFFace parses the font data and returns a face of the given point
// size
func NewTTFFace(data []byte, size float64) (*TTFFace, error) {

	f, err := opentype.Parse(data)

	if err != nil {
		return nil, errors.Wrap(err, "failed to parse font")
	}

	face, err := opentype.NewFace(f, &opentype.FaceOptions{
		Size:    size,
		DPI:     72,
		Hinting: font.HintingFull,
	})

	if err != nil {
		return nil, errors.Wrap(err, "failed to create type face")
	}

	metrics := face.Metrics()

	return &TTFFace{
		face:    face,
		ascent:  metrics.Ascent.Ceil(),
		descent: metrics.Descent.Ceil(),
	}, nil
}

// LoadTTFFace reads a font file from disk
func LoadTTFFace(path string, size float64) (*TTFFace, error) {

	data, err := os.ReadFile(path)

	if err != nil {
		return nil, errors.Wrap(err, "failed to load font")
	}

	return NewTTFFace(data, size)
}

// DefaultTTFFace returns the Go Regular font which is compiled in
func DefaultTTFFace(size float64) (*TTFFace, error) {
	return NewTTFFace(goregular.TTF, size)
}

// Measure returns the advance width of the text and the face ascent
func (t *TTFFace) Measure(text string) image.Point {
	return image.Pt(font.MeasureString(t.face, text).Ceil(), t.ascent)
}

// Draw writes text onto the image with its baseline starting at pos.  Only
// the glyph pixels are written, the background is left untouched.
func (t *TTFFace) Draw(img *gocv.Mat, text string, pos image.Point, clr color.RGBA) error {

	size := t.Measure(text)
	textRect := image.Rect(pos.X, pos.Y-t.ascent, pos.X+size.X, pos.Y+t.descent)
	clipped := textRect.Intersect(image.Rect(0, 0, img.Cols(), img.Rows()))

	if clipped.Empty() {
		return nil
	}

	// render glyphs onto a transparent canvas the size of the text
	rgba := image.NewRGBA(image.Rect(0, 0, textRect.Dx(), textRect.Dy()))
	draw.Draw(rgba, rgba.Bounds(), image.Transparent, image.Point{}, draw.Src)

	dr := &font.Drawer{
		Dst:  rgba,
		Src:  image.NewUniform(clr),
		Face: t.face,
		Dot:  fixed.P(0, t.ascent),
	}
	dr.DrawString(text)

	canvas, err := gocv.NewMatFromBytes(rgba.Bounds().Dy(), rgba.Bounds().Dx(),
		gocv.MatTypeCV8UC4, rgba.Pix)

	if err != nil {
		return errors.Wrap(err, "error creating Mat from RGBA")
	}

	defer canvas.Close()

	// part of the canvas that lands inside the image
	src := canvas.Region(clipped.Sub(textRect.Min))
	defer src.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(src, &bgr, gocv.ColorRGBAToBGR)

	channels := gocv.Split(src)

	defer func() {
		for _, c := range channels {
			c.Close()
		}
	}()

	dst := img.Region(clipped)
	defer dst.Close()

	// alpha channel masks the glyphs
	return bgr.CopyToWithMask(&dst, channels[3])
}

// Close releases the font face
func (t *TTFFace) Close() error {
	return t.face.Close()
}
