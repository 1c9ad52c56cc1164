package dudect

import (
	"fmt"
	"math"

	"github.com/agucova/dudect/internal/timing"
)

// batch holds the buffers of one batch. They are allocated once per session
// and refilled for every batch, so a batch is always measured in full before
// any of it reaches the statistics.
type batch struct {
	width int
	drop  int

	inputs     []byte
	classes    []uint8
	before     []int64
	after      []int64
	deltas     []int64
	scratch    []int64
	thresholds []int64
}

// batchBytes returns the memory needed by a batch of n trials of width bytes
// with k cropping thresholds. ok is false on overflow.
func batchBytes(n, width, k int) (total int, ok bool) {
	if n < 0 || width < 0 || k < 0 {
		return 0, false
	}
	// inputs, classes, then before, after, deltas and scratch.
	perTrial := width + 1 + 4*8
	if width > math.MaxInt-33 || (n > 0 && perTrial > math.MaxInt/n) {
		return 0, false
	}
	total = n * perTrial
	if k > (math.MaxInt-total)/8 {
		return 0, false
	}
	return total + 8*k, true
}

func newBatch(n, width, drop, k, maxBytes int) (*batch, error) {
	need, ok := batchBytes(n, width, k)
	if !ok {
		return nil, fmt.Errorf("%w: %d trials of %d bytes overflow", ErrResourceExhausted, n, width)
	}
	if need > maxBytes {
		return nil, fmt.Errorf("%w: need %d bytes, budget is %d", ErrResourceExhausted, need, maxBytes)
	}
	return &batch{
		width:      width,
		drop:       drop,
		inputs:     make([]byte, n*width),
		classes:    make([]uint8, n),
		before:     make([]int64, n),
		after:      make([]int64, n),
		deltas:     make([]int64, n),
		scratch:    make([]int64, n),
		thresholds: make([]int64, k),
	}, nil
}

// fill prepares and measures one batch for t, then derives the execution
// times and the cropping thresholds.
func (b *batch) fill(t Target) error {
	t.Classifier.Prepare(b.inputs, b.width, b.classes)
	for i, c := range b.classes {
		if c > 1 {
			return fmt.Errorf("%w: %s: trial %d labelled with class %d", ErrInvalidTarget, t.Name, i, c)
		}
	}
	if err := t.Measurer.Measure(t.Selector, b.inputs, b.width, b.before, b.after); err != nil {
		return fmt.Errorf("%w: %s: %w", ErrMeasurementFailed, t.Name, err)
	}
	timing.Differentiate(b.deltas, b.before, b.after)
	timing.Percentiles(b.thresholds, b.deltas, b.drop, b.scratch)
	return nil
}
