// Package timing turns raw cycle-counter readings into execution times and
// derives the per-batch cropping thresholds used to discard slow outliers.
package timing

import "slices"

// Differentiate stores after[i] - before[i] into dst[i].
// All three slices must have the same length.
func Differentiate(dst, before, after []int64) {
	if len(before) != len(dst) || len(after) != len(dst) {
		panic("timing: mismatched buffer lengths")
	}
	for i := range dst {
		dst[i] = after[i] - before[i]
	}
}

// Percentiles fills dst with len(dst) ascending cropping thresholds taken
// from one batch of execution times.
//
// The first and last drop entries of deltas (by position) are ignored; the
// remaining window is copied into scratch and sorted, and threshold i is the
// value at (i+1)*valid/(len(dst)+1) in that order. deltas is left untouched,
// so its alignment with class labels survives. scratch must hold at least
// len(deltas) entries. With an empty window every threshold is zero.
//
// Thresholds describe the current batch only. They are not merged across
// batches, so the cutoffs a cropped test integrates against move from batch
// to batch.
func Percentiles(dst, deltas []int64, drop int, scratch []int64) {
	valid := len(deltas) - 2*drop
	if valid <= 0 {
		clear(dst)
		return
	}
	window := scratch[:valid]
	copy(window, deltas[drop:drop+valid])
	slices.Sort(window)

	for i := range dst {
		pos := (i + 1) * valid / (len(dst) + 1)
		if pos >= valid {
			pos = valid - 1
		}
		dst[i] = window[pos]
	}
}
