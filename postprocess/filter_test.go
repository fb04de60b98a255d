package postprocess

import (
	"testing"

	"go.viam.com/test"
)

func TestFilters(t *testing.T) {
	dets := []Detection{
		{Confidence: 0.2, Class: "cut"},
		{Confidence: 0.5, Class: "cut"},
		{Confidence: 0.9, Class: "glove"},
	}

	got := ApplyFilters(dets, NewScoreFilter(0.5))
	test.That(t, got, test.ShouldHaveLength, 2)

	got = ApplyFilters(dets, NewClassFilter([]string{"cut"}))
	test.That(t, got, test.ShouldHaveLength, 2)

	got = ApplyFilters(dets, NewClassFilter(nil), NewScoreFilter(0.5), nil)
	test.That(t, got, test.ShouldHaveLength, 2)

	got = ApplyFilters(dets, NewClassFilter([]string{"cut"}), NewScoreFilter(0.5))
	test.That(t, got, test.ShouldHaveLength, 1)
	test.That(t, got[0].Confidence, test.ShouldEqual, 0.5)
}
