package postprocess

import (
	"github.com/samber/lo"
)

// Filter defines a function that filters an incoming slice of Detections
type Filter func([]Detection) []Detection

// NewScoreFilter returns a Filter that drops detections below the given
// confidence
func NewScoreFilter(conf float64) Filter {
	return func(in []Detection) []Detection {
		return lo.Filter(in, func(d Detection, _ int) bool {
			return d.Confidence >= conf
		})
	}
}

// NewClassFilter returns a Filter that keeps only detections whose class is
// in the given list.  An empty list keeps everything.
func NewClassFilter(classes []string) Filter {

	allowed := lo.SliceToMap(classes, func(c string) (string, struct{}) {
		return c, struct{}{}
	})

	return func(in []Detection) []Detection {
		if len(allowed) == 0 {
			return in
		}

		return lo.Filter(in, func(d Detection, _ int) bool {
			_, ok := allowed[d.Class]
			return ok
		})
	}
}

// ApplyFilters runs each filter in order
func ApplyFilters(dets []Detection, filters ...Filter) []Detection {
	for _, f := range filters {
		if f != nil {
			dets = f(dets)
		}
	}
	return dets
}
