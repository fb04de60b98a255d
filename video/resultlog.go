package video

import (
	"encoding/json"
	"os"
	"sync"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/swdee/go-surgtile"
	"github.com/swdee/go-surgtile/postprocess"
)

// FrameRecord is one frame's entry in the result document
type FrameRecord struct {
	Frame       int                     `json:"frame"`
	Name        string                  `json:"name"`
	FailedTiles int                     `json:"failed_tiles"`
	Predictions []postprocess.Detection `json:"predictions"`
}

// ResultLog collects the detections of every frame of a run and writes
// them as a single JSON document
type ResultLog struct {
	mu      sync.Mutex
	records []FrameRecord
}

// NewResultLog returns an empty ResultLog
func NewResultLog() *ResultLog {
	return &ResultLog{
		records: make([]FrameRecord, 0),
	}
}

// Append records the frame result
func (r *ResultLog) Append(res surgtile.FrameResult) {

	preds := make([]postprocess.Detection, len(res.Detections))
	copy(preds, res.Detections)

	r.mu.Lock()
	defer r.mu.Unlock()

	r.records = append(r.records, FrameRecord{
		Frame:       res.Index,
		Name:        res.Name,
		FailedTiles: res.FailedTiles,
		Predictions: preds,
	})
}

// Records returns a copy of the frames recorded so far
func (r *ResultLog) Records() []FrameRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]FrameRecord, len(r.records))
	copy(out, r.records)

	return out
}

// Detections returns the total number of predictions recorded
func (r *ResultLog) Detections() int {
	return lo.SumBy(r.Records(), func(rec FrameRecord) int {
		return len(rec.Predictions)
	})
}

// Flush writes the result document to path
func (r *ResultLog) Flush(path string) error {

	data, err := json.MarshalIndent(r.Records(), "", "    ")

	if err != nil {
		return errors.Wrap(err, "error encoding results")
	}

	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "error writing results %s", path)
	}

	return nil
}
