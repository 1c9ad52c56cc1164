// Package ensemble groups the t-tests of one measurement try: a test on the
// raw execution times, one test per cropping percentile, and a second-order
// test on squared centred times that targets variance differences.
package ensemble

import (
	"fmt"

	"github.com/agucova/dudect/internal/ttest"
)

// Params fixes the shape of an Ensemble.
type Params struct {
	// Percentiles is the number of cropped tests.
	Percentiles int
	// Warmup is the number of leading trials of every batch that are ignored.
	Warmup int
	// SecondOrderAfter is the class-0 raw sample count that must be exceeded
	// before the second-order test starts receiving samples.
	SecondOrderAfter float64
}

// Ensemble is the set of t-tests owned by a single try.
type Ensemble struct {
	params  Params
	raw     ttest.Context
	cropped []ttest.Context
	second  ttest.Context
}

// New returns an empty ensemble.
func New(p Params) *Ensemble {
	return &Ensemble{
		params:  p,
		cropped: make([]ttest.Context, p.Percentiles),
	}
}

// Update folds one batch into every test.
//
// Trials before params.Warmup are skipped. A non-positive execution time is
// a wrapped or interrupted counter reading and is dropped from every test.
// thresholds holds one cutoff per cropped test; a trial feeds cropped test k
// only when it is strictly below thresholds[k]. It returns how many trials
// were folded in and how many were discarded as invalid.
func (e *Ensemble) Update(deltas []int64, classes []uint8, thresholds []int64) (used, invalid int) {
	if len(classes) != len(deltas) || len(thresholds) != len(e.cropped) {
		panic(fmt.Sprintf("ensemble: got %d deltas, %d classes, %d thresholds for %d cropped tests",
			len(deltas), len(classes), len(thresholds), len(e.cropped)))
	}
	for i := e.params.Warmup; i < len(deltas); i++ {
		d := deltas[i]
		if d <= 0 {
			invalid++
			continue
		}
		class := classes[i]
		x := float64(d)

		e.raw.Push(x, class)
		for k := range e.cropped {
			if d < thresholds[k] {
				e.cropped[k].Push(x, class)
			}
		}
		if e.raw.N(0) > e.params.SecondOrderAfter {
			centered := x - e.raw.Mean(class)
			e.second.Push(centered*centered, class)
		}
		used++
	}
	return used, invalid
}

// Raw returns the test on uncropped execution times.
func (e *Ensemble) Raw() *ttest.Context {
	return &e.raw
}

// Cropped returns the k-th cropped test.
func (e *Ensemble) Cropped(k int) *ttest.Context {
	return &e.cropped[k]
}

// SecondOrder returns the variance-targeting test.
func (e *Ensemble) SecondOrder() *ttest.Context {
	return &e.second
}

// Percentiles returns the number of cropped tests.
func (e *Ensemble) Percentiles() int {
	return len(e.cropped)
}
