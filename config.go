package surgtile

import (
	"time"

	"github.com/pkg/errors"
)

// Config holds the tunable parameters of the tiled inference pipeline
type Config struct {
	// TileWidth and TileHeight are the tile dimensions in pixels, they should
	// match the input size the hosted model was trained on
	TileWidth  int
	TileHeight int
	// Overlap is the fraction (0.0 to <1.0) each tile overlaps the previous
	Overlap float64
	// NoTile sends the whole frame as a single tile
	NoTile bool
	// Confidence is the minimum detection confidence, 0.0 to 1.0
	Confidence float64
	// ModelOverlap is the NMS IoU threshold, 0.0 to 1.0, the hosted model
	// applies to a single tile
	ModelOverlap float64
	// IoUThreshold is the IoU above which two detections of the same class
	// from different tiles are merged
	IoUThreshold float64
	// ContainmentThreshold is the fraction of a smaller box covered by a
	// larger one above which it is merged, 0 (the default) disables
	ContainmentThreshold float64
	// Workers is the number of tiles sent concurrently
	Workers int
	// QueueSize is the number of tiles waiting for a worker
	QueueSize int
	// TileTimeout bounds each remote request
	TileTimeout time.Duration
	// RateLimit caps requests per second to the remote service, 0 is
	// unlimited
	RateLimit float64
	// MaxFrames stops the run after this many frames, 0 processes all
	MaxFrames int
	// Classes restricts results to these labels, empty keeps all
	Classes []string
}

// DefaultConfig returns the settings used for wound detection on surgical
// video
func DefaultConfig() Config {
	return Config{
		TileWidth:            640,
		TileHeight:           640,
		Overlap:              0.2,
		Confidence:           0.3,
		ModelOverlap:         0.5,
		IoUThreshold:         0.5,
		ContainmentThreshold: 0,
		Workers:              DefaultWorkers(),
		QueueSize:            0,
		TileTimeout:          20 * time.Second,
	}
}

// Validate checks the configuration, errors wrap ErrInvalidConfig
func (c Config) Validate() error {

	if !c.NoTile {
		if c.TileWidth <= 0 || c.TileHeight <= 0 {
			return errors.Wrapf(ErrInvalidConfig, "tile size must be positive, got %dx%d",
				c.TileWidth, c.TileHeight)
		}

		if c.Overlap < 0 || c.Overlap >= 1 {
			return errors.Wrapf(ErrInvalidConfig, "overlap must be in range [0,1), got %v", c.Overlap)
		}
	}

	checks := []struct {
		name string
		val  float64
	}{
		{"confidence", c.Confidence},
		{"model overlap", c.ModelOverlap},
		{"iou threshold", c.IoUThreshold},
		{"containment threshold", c.ContainmentThreshold},
	}

	for _, chk := range checks {
		if chk.val < 0 || chk.val > 1 {
			return errors.Wrapf(ErrInvalidConfig, "%s must be in range [0,1], got %v", chk.name, chk.val)
		}
	}

	if c.Workers <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "workers must be positive, got %d", c.Workers)
	}

	if c.TileTimeout <= 0 {
		return errors.Wrapf(ErrInvalidConfig, "tile timeout must be positive, got %v", c.TileTimeout)
	}

	if c.RateLimit < 0 || c.MaxFrames < 0 {
		return errors.Wrap(ErrInvalidConfig, "rate limit and max frames cannot be negative")
	}

	return nil
}
