package preprocess

import (
	"github.com/pkg/errors"
	"gocv.io/x/gocv"
)

// DefaultJPEGQuality is the JPEG quality used when encoding tiles for
// upload
const DefaultJPEGQuality = 95

// EncodeJPEG encodes the image to JPEG bytes in memory.  The returned slice
// is owned by the caller and remains valid after the Mat is closed.
func EncodeJPEG(img gocv.Mat, quality int) ([]byte, error) {

	if img.Empty() {
		return nil, errors.New("cannot encode empty image")
	}

	if quality <= 0 || quality > 100 {
		quality = DefaultJPEGQuality
	}

	buf, err := gocv.IMEncodeWithParams(gocv.JPEGFileExt, img,
		[]int{gocv.IMWriteJpegQuality, quality})

	if err != nil {
		return nil, errors.Wrap(err, "error encoding jpeg")
	}

	defer buf.Close()

	// copy out of C memory before the buffer is released
	src := buf.GetBytes()
	out := make([]byte, len(src))
	copy(out, src)

	return out, nil
}
