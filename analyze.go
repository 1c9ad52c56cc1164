package dudect

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/agucova/dudect/internal/ensemble"
	"github.com/agucova/dudect/internal/timing"
)

// Analyze runs a single try on execution times collected elsewhere, such as
// a hardware trace or another harness. class0 and class1 are in timer ticks.
//
// The two classes are interleaved alternately and cut into batches of the
// configured size, which then go through the same cropping, warm-up and
// verdict rules as a live try. The batch budget does not apply.
func Analyze(class0, class1 []int64, opts ...Option) (*Result, error) {
	cfg := newConfig(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	if len(class0) < 2 || len(class1) < 2 {
		return nil, fmt.Errorf("%w: got %d and %d", ErrInsufficientSamples, len(class0), len(class1))
	}
	start := time.Now()

	n := len(class0) + len(class1)
	deltas := make([]int64, 0, n)
	classes := make([]uint8, 0, n)
	for i := 0; i < max(len(class0), len(class1)); i++ {
		if i < len(class0) {
			deltas = append(deltas, class0[i])
			classes = append(classes, 0)
		}
		if i < len(class1) {
			deltas = append(deltas, class1[i])
			classes = append(classes, 1)
		}
	}

	ens := ensemble.New(cfg.ensembleParams())
	th := cfg.thresholds()
	thresholds := make([]int64, cfg.percentiles)
	scratch := make([]int64, cfg.batchSize)

	tr := TryResult{}
	for off := 0; off < n; off += cfg.batchSize {
		end := min(off+cfg.batchSize, n)
		timing.Percentiles(thresholds, deltas[off:end], cfg.dropSize, scratch)
		_, invalid := ens.Update(deltas[off:end], classes[off:end], thresholds)
		tr.Invalid += invalid
		tr.Batches++
		if cfg.sink != nil {
			cfg.sink.Progress(Progress{Target: "analyze", Batch: tr.Batches, Tries: 1, Report: ens.Evaluate(th)})
		}
	}
	tr.Report = ens.Evaluate(th)
	tr.Verdict = tr.Report.Verdict
	if tr.Verdict == VerdictInconclusive {
		tr.InconclusiveReason = ReasonNotEnoughMeasurements
	}
	tr.ElapsedTime = time.Since(start)

	res := &Result{ID: uuid.New(), Target: "analyze", Tries: []TryResult{tr}}
	res.conclude()
	res.ElapsedTime = tr.ElapsedTime

	cfg.logger.WithField("outcome", res.Outcome.String()).
		WithField("max_t", res.MaxT).
		Debug("analysis finished")
	return res, nil
}
