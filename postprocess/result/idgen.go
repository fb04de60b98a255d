package result

import "go.uber.org/atomic"

// IDGenerator hands out incrementing detection IDs that stay unique across
// all frames of a run.  It is safe for concurrent use.
type IDGenerator struct {
	last atomic.Int64
}

func NewIDGenerator() *IDGenerator {
	return &IDGenerator{}
}

// GetNext returns the next incremental number, starting at 1
func (g *IDGenerator) GetNext() int64 {
	return g.last.Inc()
}

// Last returns the most recently issued ID, or zero if none were issued
func (g *IDGenerator) Last() int64 {
	return g.last.Load()
}
