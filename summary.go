package surgtile

import (
	"sort"
	"time"

	"go.uber.org/multierr"
	"go.uber.org/zap"
	"gonum.org/v1/gonum/stat"
)

// Summary describes a completed pipeline run
type Summary struct {
	Frames      int
	Detections  int
	Tiles       int64
	FailedTiles int64
	// Unavailable and Malformed break FailedTiles down by cause
	Unavailable int64
	Malformed   int64
	// MeanDetections and StdDetections are per frame
	MeanDetections float64
	StdDetections  float64
	// frame processing latency
	MeanLatency time.Duration
	StdLatency  time.Duration
	P95Latency  time.Duration
	MaxLatency  time.Duration
	// OutputErr combines every frame output failure, each wrapping
	// ErrIOFailure
	OutputErr error
}

// WriteFailures returns the number of frames whose output failed
func (s Summary) WriteFailures() int {
	return len(multierr.Errors(s.OutputErr))
}

// Fields returns the summary as structured log fields
func (s Summary) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("frames", s.Frames),
		zap.Int("detections", s.Detections),
		zap.Int64("tiles", s.Tiles),
		zap.Int64("failed_tiles", s.FailedTiles),
		zap.Int64("unavailable", s.Unavailable),
		zap.Int64("malformed", s.Malformed),
		zap.Float64("mean_detections", s.MeanDetections),
		zap.Float64("std_detections", s.StdDetections),
		zap.Duration("mean_latency", s.MeanLatency),
		zap.Duration("std_latency", s.StdLatency),
		zap.Duration("p95_latency", s.P95Latency),
		zap.Duration("max_latency", s.MaxLatency),
		zap.Int("write_failures", s.WriteFailures()),
	}
}

// summaryBuilder accumulates per frame samples during a run
type summaryBuilder struct {
	latencies  []float64
	counts     []float64
	detections int
	outputErr  error
}

func newSummaryBuilder() *summaryBuilder {
	return &summaryBuilder{}
}

// add records a processed frame
func (b *summaryBuilder) add(res FrameResult) {
	b.latencies = append(b.latencies, float64(res.Elapsed))
	b.counts = append(b.counts, float64(len(res.Detections)))
	b.detections += len(res.Detections)
}

// summary computes the statistics of the samples so far
func (b *summaryBuilder) summary(ds DispatchStats) Summary {

	s := Summary{
		Frames:      len(b.latencies),
		Detections:  b.detections,
		Tiles:       ds.Tiles,
		FailedTiles: ds.Failed,
		Unavailable: ds.Unavailable,
		Malformed:   ds.Malformed,
		OutputErr:   b.outputErr,
	}

	if len(b.latencies) == 0 {
		return s
	}

	s.MeanDetections, s.StdDetections = meanStdDev(b.counts)

	mean, std := meanStdDev(b.latencies)
	s.MeanLatency = time.Duration(mean)
	s.StdLatency = time.Duration(std)

	// quantile requires sorted data
	sorted := make([]float64, len(b.latencies))
	copy(sorted, b.latencies)
	sort.Float64s(sorted)

	s.P95Latency = time.Duration(stat.Quantile(0.95, stat.Empirical, sorted, nil))
	s.MaxLatency = time.Duration(sorted[len(sorted)-1])

	return s
}

// meanStdDev returns the mean and sample standard deviation, the deviation
// of a single sample is 0
func meanStdDev(x []float64) (float64, float64) {

	if len(x) == 1 {
		return x[0], 0
	}

	return stat.MeanStdDev(x, nil)
}
