package surgtile

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"
	"go.uber.org/zap"

	"github.com/swdee/go-surgtile/detector"
	"github.com/swdee/go-surgtile/postprocess"
	"github.com/swdee/go-surgtile/preprocess"
)

// DispatchConfig defines the concurrency settings of a Dispatcher
type DispatchConfig struct {
	// Workers is the number of tiles in flight at once
	Workers int
	// QueueSize is the number of tiles waiting for a free worker
	QueueSize int
	// TileTimeout bounds the detection of a single tile
	TileTimeout time.Duration
}

// TileResult pairs a tile with the outcome of its detection
type TileResult struct {
	// Tile the detections were made on
	Tile preprocess.Tile
	// Detections in tile local coordinates, empty if Err is set
	Detections []postprocess.Detection
	// Err is the reason the tile fell back to zero detections
	Err error
	// Elapsed is the time taken by the detector
	Elapsed time.Duration
}

// DispatchStats are running totals across all Dispatch calls
type DispatchStats struct {
	Tiles       int64
	Failed      int64
	Unavailable int64
	Malformed   int64
	Detections  int64
}

// Dispatcher sends tiles to a Detector through a bounded worker pool
type Dispatcher struct {
	detector detector.Detector
	pool     *Pool
	timeout  time.Duration
	logger   *zap.Logger

	tiles       atomic.Int64
	failed      atomic.Int64
	unavailable atomic.Int64
	malformed   atomic.Int64
	detections  atomic.Int64
}

// NewDispatcher returns a Dispatcher and starts its worker pool
func NewDispatcher(det detector.Detector, cfg DispatchConfig, logger *zap.Logger) (*Dispatcher, error) {

	if det == nil {
		return nil, errors.Wrap(ErrInvalidConfig, "dispatcher must have a detector")
	}

	if cfg.TileTimeout <= 0 {
		return nil, errors.Wrapf(ErrInvalidConfig, "tile timeout must be positive, got %v", cfg.TileTimeout)
	}

	pool, err := NewPool(cfg.Workers, cfg.QueueSize)

	if err != nil {
		return nil, err
	}

	if logger == nil {
		logger = zap.NewNop()
	}

	return &Dispatcher{
		detector: det,
		pool:     pool,
		timeout:  cfg.TileTimeout,
		logger:   logger,
	}, nil
}

// Dispatch runs detection on every tile and waits for all of them to
// finish.  The returned slice is in the same order as tiles, regardless of
// the order detections completed in.  A tile that fails contributes no
// detections and has its Err set, it does not fail the other tiles.
func (d *Dispatcher) Dispatch(ctx context.Context, tiles []preprocess.Tile) []TileResult {

	results := make([]TileResult, len(tiles))

	var wg sync.WaitGroup

	for i := range tiles {
		// pin index for the closure
		idx := i

		wg.Add(1)

		err := d.pool.Submit(func() {
			defer wg.Done()
			results[idx] = d.detectTile(ctx, tiles[idx])
		})

		if err != nil {
			wg.Done()
			results[idx] = TileResult{Tile: tiles[idx], Err: err}
			d.record(results[idx])
		}
	}

	wg.Wait()

	return results
}

// detectTile runs the detector on a single tile under its own timeout
func (d *Dispatcher) detectTile(ctx context.Context, tile preprocess.Tile) TileResult {

	tctx, cancel := context.WithTimeout(ctx, d.timeout)
	defer cancel()

	start := time.Now()
	dets, err := d.detector.Detect(tctx, tile.Mat())

	res := TileResult{
		Tile:    tile,
		Elapsed: time.Since(start),
	}

	if err != nil {
		// detectors that ignore the context still get their timeout
		// classified as the service being unavailable
		if !detector.IsUnavailable(err) && !detector.IsMalformed(err) &&
			errors.Is(tctx.Err(), context.DeadlineExceeded) {
			err = errors.Wrapf(detector.ErrDetectorUnavailable, "tile timeout after %v: %v", d.timeout, err)
		}

		res.Err = err
	} else {
		res.Detections = dets
	}

	d.record(res)

	return res
}

// record updates counters and logs tile failures at a severity matching
// their cause
func (d *Dispatcher) record(res TileResult) {

	d.tiles.Inc()

	if res.Err == nil {
		d.detections.Add(int64(len(res.Detections)))
		return
	}

	d.failed.Inc()

	fields := []zap.Field{
		zap.Int("tile", res.Tile.Index),
		zap.Int("x", res.Tile.X),
		zap.Int("y", res.Tile.Y),
		zap.Duration("elapsed", res.Elapsed),
		zap.Error(res.Err),
	}

	switch {
	case detector.IsUnavailable(res.Err):
		d.unavailable.Inc()
		d.logger.Warn("detector unavailable, tile skipped", fields...)

	case detector.IsMalformed(res.Err):
		// may indicate a change in the remote API contract
		d.malformed.Inc()
		d.logger.Error("detector response malformed, tile skipped", fields...)

	default:
		d.logger.Error("tile detection failed, tile skipped", fields...)
	}
}

// Stats returns the running totals
func (d *Dispatcher) Stats() DispatchStats {
	return DispatchStats{
		Tiles:       d.tiles.Load(),
		Failed:      d.failed.Load(),
		Unavailable: d.unavailable.Load(),
		Malformed:   d.malformed.Load(),
		Detections:  d.detections.Load(),
	}
}

// Workers returns the size of the worker pool
func (d *Dispatcher) Workers() int {
	return d.pool.Size()
}

// Close stops the worker pool
func (d *Dispatcher) Close() {
	d.pool.Close()
}
