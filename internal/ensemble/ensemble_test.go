package ensemble

import (
	"math"
	"math/rand/v2"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var defaultThresholds = Thresholds{
	EnoughMeasurements: 10_000,
	Moderate:           10,
	Overwhelming:       500,
	MinTestSamples:     1000,
}

func newTestEnsemble(k, warmup int, secondAfter float64) *Ensemble {
	return New(Params{Percentiles: k, Warmup: warmup, SecondOrderAfter: secondAfter})
}

// noCrop returns thresholds that never admit a sample.
func noCrop(k int) []int64 {
	return make([]int64, k)
}

func TestUpdateSkipsWarmupAndInvalid(t *testing.T) {
	e := newTestEnsemble(2, 3, math.Inf(1))
	deltas := []int64{5, 5, 5, 10, 0, -7, 20, 30, -1, 40}
	classes := []uint8{0, 1, 0, 0, 1, 0, 1, 0, 1, 1}
	thresholds := []int64{25, 1000}

	used, invalid := e.Update(deltas, classes, thresholds)

	assert.Equal(t, 4, used)
	assert.Equal(t, 3, invalid)

	raw := e.Raw()
	assert.Equal(t, 2.0, raw.N(0), "10 and 30")
	assert.Equal(t, 2.0, raw.N(1), "20 and 40")
	assert.Equal(t, 20.0, raw.Mean(0))
	assert.Equal(t, 30.0, raw.Mean(1))

	// crop[0] admits values strictly below 25.
	assert.Equal(t, 1.0, e.Cropped(0).N(0))
	assert.Equal(t, 1.0, e.Cropped(0).N(1))
	assert.Equal(t, 4.0, e.Cropped(1).Total())
	assert.Zero(t, e.SecondOrder().Total())
}

// TestInvalidDeltasNeverReachAnyTest builds batches where every odd trial
// carries a non-positive delta and checks the counts of every test.
func TestInvalidDeltasNeverReachAnyTest(t *testing.T) {
	e := newTestEnsemble(3, 0, 10)
	rng := rand.New(rand.NewPCG(11, 11^0xDEADBEEF))

	const batches, n = 20, 100
	wantValid := 0
	for b := 0; b < batches; b++ {
		deltas := make([]int64, n)
		classes := make([]uint8, n)
		for i := range deltas {
			classes[i] = uint8(i % 2)
			if i%4 < 2 {
				deltas[i] = 100 + rng.Int64N(20)
				wantValid++
			} else {
				deltas[i] = -rng.Int64N(1000)
			}
		}
		_, invalid := e.Update(deltas, classes, []int64{1 << 40, 1 << 40, 1 << 40})
		require.Equal(t, n/2, invalid)
	}

	assert.Equal(t, float64(wantValid), e.Raw().Total())
	for k := 0; k < e.Percentiles(); k++ {
		assert.Equal(t, float64(wantValid), e.Cropped(k).Total())
	}
	// Second order starts with the 11th class-0 sample, the 21st valid trial.
	assert.Equal(t, float64(wantValid-20), e.SecondOrder().Total())
	assert.GreaterOrEqual(t, e.Raw().Mean(0), 100.0)
}

func TestSecondOrderActivation(t *testing.T) {
	e := newTestEnsemble(1, 0, 4)
	deltas := []int64{10, 10, 10, 10, 10, 12, 14}
	classes := []uint8{0, 0, 0, 0, 0, 0, 1}

	e.Update(deltas, classes, noCrop(1))

	so := e.SecondOrder()
	// Activated after the 5th class-0 sample: the 5th, 6th and 7th trials.
	assert.Equal(t, 2.0, so.N(0))
	assert.Equal(t, 1.0, so.N(1))
	// The class-1 raw mean is the sample itself when it is pushed.
	assert.Equal(t, 0.0, so.Mean(1))
}

func TestUpdatePanicsOnShapeMismatch(t *testing.T) {
	e := newTestEnsemble(2, 0, 0)
	assert.Panics(t, func() {
		e.Update([]int64{1, 2}, []uint8{0}, noCrop(2))
	})
	assert.Panics(t, func() {
		e.Update([]int64{1}, []uint8{0}, noCrop(3))
	})
}

func TestEvaluateInconclusive(t *testing.T) {
	e := newTestEnsemble(1, 0, math.Inf(1))
	deltas := make([]int64, 4000)
	classes := make([]uint8, 4000)
	for i := range deltas {
		deltas[i] = 100
		classes[i] = uint8(i % 2)
	}
	e.Update(deltas, classes, noCrop(1))

	r := e.Evaluate(defaultThresholds)
	assert.Equal(t, Inconclusive, r.Verdict)
	assert.Equal(t, 4000.0, r.Samples)
	assert.Equal(t, 6000.0, r.Remaining)
	assert.Zero(t, r.MaxT)
}

func TestEvaluateConstantShiftIsOverwhelming(t *testing.T) {
	e := newTestEnsemble(5, 0, 10_000)
	const c = 5000
	deltas := make([]int64, 20_000)
	classes := make([]uint8, 20_000)
	for i := range deltas {
		classes[i] = uint8(i % 2)
		deltas[i] = c + 1000*int64(classes[i])
	}
	e.Update(deltas, classes, []int64{c + 1, c + 1, c + 1, c + 1, c + 1001})

	r := e.Evaluate(defaultThresholds)
	t.Logf("verdict=%s test=%s max_t=%v tau=%v", r.Verdict, r.Test, r.MaxT, r.Tau)
	assert.Equal(t, LeakOverwhelming, r.Verdict)
	assert.Greater(t, r.MaxT, defaultThresholds.Overwhelming)
	assert.Equal(t, 1000.0, r.MeanDiff)
	assert.Equal(t, 0.0, r.PValue)
	assert.Zero(t, r.EstimatedSamples)
}

func TestEvaluateThresholdBands(t *testing.T) {
	rng := rand.New(rand.NewPCG(5, 5^0xDEADBEEF))
	tests := []struct {
		name  string
		shift float64
		want  Verdict
	}{
		{"same distribution", 0, NoLeak},
		// 20000 samples, sd 50: a 4 tick shift gives |t| of about 5.7
		{"small shift", 4, NoLeak},
		// 40 ticks: |t| of about 57
		{"moderate shift", 40, Leak},
		// 500 ticks: |t| of about 700
		{"large shift", 500, LeakOverwhelming},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := newTestEnsemble(5, 0, math.Inf(1))
			deltas := make([]int64, 20_000)
			classes := make([]uint8, 20_000)
			for i := range deltas {
				classes[i] = uint8(i % 2)
				mean := 10_000 + tc.shift*float64(classes[i])
				deltas[i] = int64(math.Round(mean + 50*rng.NormFloat64()))
			}
			e.Update(deltas, classes, noCrop(5))

			r := e.Evaluate(defaultThresholds)
			t.Logf("max_t=%.2f tau=%.3g (5/tau)^2=%.3g p=%.3g", r.MaxT, r.Tau, r.EstimatedSamples, r.PValue)
			assert.Equal(t, tc.want, r.Verdict)
			assert.Equal(t, TestRaw, r.Test)
			assert.InDelta(t, r.MaxT/math.Sqrt(20_000), r.Tau, 1e-12)
		})
	}
}

// TestEvaluateConsidersPopulatedCroppedTests checks that a cropped test with
// enough samples can carry the verdict while a thin one cannot.
func TestEvaluateConsidersPopulatedCroppedTests(t *testing.T) {
	e := newTestEnsemble(2, 0, math.Inf(1))
	rng := rand.New(rand.NewPCG(8, 8^0xDEADBEEF))

	// Both classes have rare huge outliers that mask a small shift in the raw test
	// but are removed by crop[1].
	const n = 40_000
	deltas := make([]int64, n)
	classes := make([]uint8, n)
	for i := range deltas {
		classes[i] = uint8(i % 2)
		v := 1000 + 20*rng.NormFloat64() + 5*float64(classes[i])
		if rng.IntN(50) == 0 {
			v += 1_000_000 * rng.Float64()
		}
		deltas[i] = int64(v)
	}
	// crop[0] only admits a sliver; crop[1] admits the bulk.
	e.Update(deltas, classes, []int64{940, 2000})

	require.Less(t, e.Cropped(0).Total(), defaultThresholds.MinTestSamples)
	require.GreaterOrEqual(t, e.Cropped(1).Total(), defaultThresholds.MinTestSamples)

	r := e.Evaluate(defaultThresholds)
	t.Logf("raw |t|=%.2f crop[1] |t|=%.2f -> %s via %s",
		math.Abs(e.Raw().Compute()), math.Abs(e.Cropped(1).Compute()), r.Verdict, r.Test)
	assert.Equal(t, CroppedTestName(1), r.Test)
	assert.True(t, r.Verdict.IsLeak())
	assert.InDelta(t, r.MaxT/math.Sqrt(n), r.Tau, 1e-12, "tau uses the raw total")
}

func TestEvaluateCroppedBelowRawFloor(t *testing.T) {
	e := newTestEnsemble(1, 0, math.Inf(1))
	const n = 10_000
	deltas := make([]int64, n)
	classes := make([]uint8, n)
	for i := range deltas {
		classes[i] = uint8(i % 2)
		// Every third trial is fast and leaks 50 ticks; the rest are slow
		// and noisy enough to hide it from the raw test.
		if i%6 < 2 {
			deltas[i] = 100 + 50*int64(classes[i]) + int64(i%5)
		} else {
			deltas[i] = 10_000 + int64((i*7919)%20_000)
		}
	}
	e.Update(deltas, classes, []int64{1000})

	crop := e.Cropped(0)
	require.Less(t, crop.Total(), defaultThresholds.EnoughMeasurements)
	require.GreaterOrEqual(t, crop.Total(), defaultThresholds.MinTestSamples)

	r := e.Evaluate(defaultThresholds)
	t.Logf("raw |t|=%.2f crop |t|=%.2f", math.Abs(e.Raw().Compute()), math.Abs(crop.Compute()))
	assert.Equal(t, CroppedTestName(0), r.Test)
	assert.Equal(t, LeakOverwhelming, r.Verdict)

	strict := defaultThresholds
	strict.MinTestSamples = n
	r = e.Evaluate(strict)
	assert.Equal(t, TestRaw, r.Test)
}

func TestEvaluateSkipsOneSidedTests(t *testing.T) {
	e := newTestEnsemble(1, 0, math.Inf(1))
	const n = 4000
	deltas := make([]int64, n)
	classes := make([]uint8, n)
	for i := range deltas {
		classes[i] = uint8(i % 2)
		deltas[i] = 1000 + 500*int64(classes[i]) + int64(i%7)
	}
	// Only class 0 falls below the cutoff.
	e.Update(deltas, classes, []int64{1200})
	require.Zero(t, e.Cropped(0).N(1))

	th := defaultThresholds
	th.EnoughMeasurements = n
	r := e.Evaluate(th)
	assert.Equal(t, TestRaw, r.Test)
	assert.Equal(t, LeakOverwhelming, r.Verdict)
}

func TestVerdictString(t *testing.T) {
	assert.Equal(t, "Inconclusive", Inconclusive.String())
	assert.Equal(t, "NoLeak", NoLeak.String())
	assert.Equal(t, "Leak", Leak.String())
	assert.Equal(t, "LeakOverwhelming", LeakOverwhelming.String())
	assert.Equal(t, "Unknown", Verdict(42).String())
	assert.False(t, NoLeak.IsLeak())
}
