package surgtile

import (
	"github.com/pkg/errors"

	"github.com/swdee/go-surgtile/preprocess"
)

var (
	// ErrInvalidConfig is returned for configuration that cannot be run,
	// it is fatal and reported before any frame is processed
	ErrInvalidConfig = preprocess.ErrInvalidConfig
	// ErrIOFailure wraps a failure writing a frame's output.  It aborts that
	// frame's output but not the run.
	ErrIOFailure = errors.New("output write failed")
)
