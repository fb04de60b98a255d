package preprocess

import (
	"image"

	"github.com/pkg/errors"
	"go.uber.org/multierr"
	"gocv.io/x/gocv"
)

// ErrInvalidConfig is returned when tiling parameters would produce a
// degenerate or infinite tiling
var ErrInvalidConfig = errors.New("invalid tiling configuration")

// Tiler defines the struct used for slicing a source image into a series of
// overlapping fixed size tiles
type Tiler struct {
	// tileWidth is the width of each tile
	tileWidth int
	// tileHeight is the height of each tile
	tileHeight int
	// overlap is a ratio from 0.0 to less than 1.0 representing how much of
	// a tile overlaps the previous one.  A value of 0.2 represents 20% of
	// the tiles pixels
	overlap float64
	// stepX is the horizontal stride between tile offsets
	stepX int
	// stepY is the vertical stride between tile offsets
	stepY int
	// whole disables tiling so the full image is a single tile
	whole bool
}

// Tile defines the struct used to store the coordinates of a tile within the
// source image
type Tile struct {
	// Index is the position of the tile in row-major order
	Index int
	// X is the coordinate of the tiles left edge in the source image
	X int
	// Y is the coordinate of the tiles top edge in the source image
	Y int
	// Width of the tile, may be smaller than the configured tile width
	// for tiles clipped at the image edge
	Width int
	// Height of the tile
	Height int
	// region is a view into the source image Mat
	region gocv.Mat
}

// NewTiler returns a Tiler for slicing images into tiles of tileWidth x
// tileHeight pixels stepping by tileWidth*(1-overlap) and
// tileHeight*(1-overlap)
func NewTiler(tileWidth, tileHeight int, overlap float64) (*Tiler, error) {

	if tileWidth <= 0 || tileHeight <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig,
			"tile size must be positive, got %dx%d", tileWidth, tileHeight)
	}

	if overlap < 0 || overlap >= 1 {
		return nil, errors.Wrapf(ErrInvalidConfig,
			"overlap must be in range [0,1), got %v", overlap)
	}

	t := &Tiler{
		tileWidth:  tileWidth,
		tileHeight: tileHeight,
		overlap:    overlap,
		stepX:      int(float64(tileWidth) * (1 - overlap)),
		stepY:      int(float64(tileHeight) * (1 - overlap)),
	}

	if t.stepX <= 0 || t.stepY <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig,
			"tile %dx%d with overlap %v gives a zero step", tileWidth, tileHeight, overlap)
	}

	return t, nil
}

// NewWholeImageTiler returns a Tiler that does not slice, the whole image
// is returned as a single tile
func NewWholeImageTiler() *Tiler {
	return &Tiler{whole: true}
}

// Step returns the horizontal and vertical stride between tiles
func (t *Tiler) Step() (int, int) {
	return t.stepX, t.stepY
}

// positions returns the start coordinates of each tile along one axis.
// Tiles start at 0 and advance by step until a tile reaches the end of the
// axis, giving the smallest fixed stride set that covers srcLen.
func positions(srcLen, tileLen, step int) []int {

	if srcLen <= 0 {
		return nil
	}

	pos := []int{0}

	for p := 0; p+tileLen < srcLen; {
		p += step
		pos = append(pos, p)
	}

	return pos
}

// Layout returns the tile rectangles for an image of the given dimensions
// in row-major order.  Tiles on the right and bottom edge are clipped to
// the image.
func (t *Tiler) Layout(width, height int) []image.Rectangle {

	if width <= 0 || height <= 0 {
		return nil
	}

	if t.whole {
		return []image.Rectangle{image.Rect(0, 0, width, height)}
	}

	xs := positions(width, t.tileWidth, t.stepX)
	ys := positions(height, t.tileHeight, t.stepY)

	bounds := image.Rect(0, 0, width, height)
	rects := make([]image.Rectangle, 0, len(xs)*len(ys))

	for _, y := range ys {
		for _, x := range xs {
			rect := image.Rect(x, y, x+t.tileWidth, y+t.tileHeight).Intersect(bounds)
			rects = append(rects, rect)
		}
	}

	return rects
}

// Slice slices the given source image into tiles.  Each tile references
// the source image memory, so the source must outlive the tiles and tiles
// must be released with Free.
func (t *Tiler) Slice(src gocv.Mat) []Tile {

	rects := t.Layout(src.Cols(), src.Rows())
	tiles := make([]Tile, 0, len(rects))

	for i, rect := range rects {
		tiles = append(tiles, Tile{
			Index:  i,
			X:      rect.Min.X,
			Y:      rect.Min.Y,
			Width:  rect.Dx(),
			Height: rect.Dy(),
			region: src.Region(rect),
		})
	}

	return tiles
}

// Offset returns the tiles position in the source image
func (t *Tile) Offset() image.Point {
	return image.Pt(t.X, t.Y)
}

// Rect returns the area of the source image the tile covers
func (t *Tile) Rect() image.Rectangle {
	return image.Rect(t.X, t.Y, t.X+t.Width, t.Y+t.Height)
}

// Mat returns the tiles image data
func (t *Tile) Mat() gocv.Mat {
	return t.region
}

// Free releases the tile region
func (t *Tile) Free() error {
	return t.region.Close()
}

// FreeTiles releases all the given tiles
func FreeTiles(tiles []Tile) error {

	var err error

	for i := range tiles {
		err = multierr.Append(err, tiles[i].Free())
	}

	return err
}
