package postprocess

import (
	"math"
	"sort"
)

// Merger combines the remapped detections of all tiles of a frame and
// suppresses the duplicates produced where tiles overlap
type Merger struct {
	// iouThreshold is the intersection-over-union value above which two
	// detections of the same class are considered the same object
	iouThreshold float64
	// containmentThreshold is the fraction of the smaller box's area that
	// must be covered by a kept box for it to be discarded.  This catches
	// objects sitting on the tile overlap boundary where one tile only sees
	// part of the object.  A value of 0 disables the check.
	containmentThreshold float64
}

// NewMerger returns a Merger.
//   - iouThreshold is the IoU cutoff for duplicates (e.g. 0.5)
//   - containmentThreshold is the small box overlap cutoff (e.g. 0.7), or 0
//     to only use IoU
func NewMerger(iouThreshold, containmentThreshold float64) *Merger {
	return &Merger{
		iouThreshold:         iouThreshold,
		containmentThreshold: containmentThreshold,
	}
}

// Merge returns the deduplicated detections sorted by descending
// confidence.  The input slice is not modified.
func (m *Merger) Merge(dets []Detection) []Detection {

	sorted := make([]Detection, len(dets))
	copy(sorted, dets)
	sortByConfidence(sorted)

	keep := make([]Detection, 0, len(sorted))

	// track by class, so we don't suppress across different classes
	for _, det := range sorted {
		if !m.isDuplicate(det, keep) {
			keep = append(keep, det)
		}
	}

	return keep
}

// isDuplicate checks the detection against those already kept
func (m *Merger) isDuplicate(det Detection, keep []Detection) bool {

	box := det.Box()

	for _, kept := range keep {
		if det.Class != kept.Class {
			continue
		}

		keptBox := kept.Box()

		if IoU(box, keptBox) > m.iouThreshold {
			return true
		}

		// partial box check, if the intersection covers most of the small box
		if m.containmentThreshold > 0 {
			area := box.Area()

			if area > 0 && IntersectionArea(box, keptBox)/area > m.containmentThreshold {
				return true
			}
		}
	}

	return false
}

// sortByConfidence orders detections by descending confidence.  Ties are
// broken on class and geometry so the order does not depend on the order
// tiles finished in.
func sortByConfidence(dets []Detection) {
	sort.SliceStable(dets, func(i, j int) bool {
		a, b := dets[i], dets[j]

		switch {
		case a.Confidence != b.Confidence:
			return a.Confidence > b.Confidence
		case a.Class != b.Class:
			return a.Class < b.Class
		case a.X != b.X:
			return a.X < b.X
		case a.Y != b.Y:
			return a.Y < b.Y
		case a.Width != b.Width:
			return a.Width > b.Width
		default:
			return a.Height > b.Height
		}
	})
}

// IoU computes the Intersection-over-Union of two boxes
func IoU(a, b BoxRect) float64 {

	inter := IntersectionArea(a, b)
	union := a.Area() + b.Area() - inter

	if union <= 0 {
		return 0
	}

	return inter / union
}

// IntersectionArea returns the area of overlap between two boxes
func IntersectionArea(a, b BoxRect) float64 {
	x1 := math.Max(a.Left, b.Left)
	y1 := math.Max(a.Top, b.Top)
	x2 := math.Min(a.Right, b.Right)
	y2 := math.Min(a.Bottom, b.Bottom)

	if x2 <= x1 || y2 <= y1 {
		return 0
	}

	return (x2 - x1) * (y2 - y1)
}
