// Package detector defines the object detection capability used by the tile
// pipeline and a client for hosted detection models served over HTTP.
package detector

import (
	"context"

	"github.com/pkg/errors"
	"gocv.io/x/gocv"

	"github.com/swdee/go-surgtile/postprocess"
)

var (
	// ErrDetectorUnavailable is returned when the remote model could not be
	// reached, timed out, or answered with a non 2xx status
	ErrDetectorUnavailable = errors.New("detector unavailable")
	// ErrDetectorMalformedResponse is returned when the remote model answered
	// but the payload is missing expected fields
	ErrDetectorMalformedResponse = errors.New("detector returned malformed response")
)

// Detector finds objects in a single image.  Returned detections are in the
// coordinate space of the given image.
type Detector interface {
	Detect(ctx context.Context, img gocv.Mat) ([]postprocess.Detection, error)
}

// Func adapts an ordinary function to the Detector interface
type Func func(ctx context.Context, img gocv.Mat) ([]postprocess.Detection, error)

// Detect calls f(ctx, img)
func (f Func) Detect(ctx context.Context, img gocv.Mat) ([]postprocess.Detection, error) {
	return f(ctx, img)
}

// IsUnavailable reports whether err is a transport level detector failure
func IsUnavailable(err error) bool {
	return errors.Is(err, ErrDetectorUnavailable)
}

// IsMalformed reports whether err is caused by an unexpected response payload
func IsMalformed(err error) bool {
	return errors.Is(err, ErrDetectorMalformedResponse)
}
