package dudect

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func try(v Verdict, maxT float64) TryResult {
	tr := TryResult{Verdict: v, Report: Report{Verdict: v, MaxT: maxT, Samples: 10_000, MeanDiff: maxT}}
	if v == VerdictInconclusive {
		tr.InconclusiveReason = ReasonBatchBudgetExceeded
	}
	return tr
}

func TestConclude(t *testing.T) {
	tests := []struct {
		name     string
		tries    []TryResult
		want     Outcome
		reason   InconclusiveReason
		decisive int
	}{
		{"first try clean", []TryResult{try(VerdictNoLeak, 1)}, Pass, ReasonNone, 0},
		{"clean after leaks", []TryResult{try(VerdictLeak, 20), try(VerdictLeakOverwhelming, 900), try(VerdictNoLeak, 3)}, Pass, ReasonNone, 2},
		{"all leak", []TryResult{try(VerdictLeak, 20), try(VerdictLeakOverwhelming, 900), try(VerdictLeak, 15)}, Fail, ReasonNone, 1},
		{"leak and budget", []TryResult{try(VerdictInconclusive, 0), try(VerdictLeak, 12)}, Fail, ReasonNone, 1},
		{"only budget", []TryResult{try(VerdictInconclusive, 0), try(VerdictInconclusive, 0)}, Inconclusive, ReasonBatchBudgetExceeded, 0},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			r := &Result{Tries: tc.tries, TimerFrequencyHz: 1_000_000_000}
			r.conclude()
			assert.Equal(t, tc.want, r.Outcome)
			assert.Equal(t, tc.reason, r.InconclusiveReason)
			assert.Equal(t, tc.decisive, r.Decisive)
			require.NotNil(t, r.Deciding())
			assert.Equal(t, tc.tries[tc.decisive].Report.MaxT, r.MaxT)
		})
	}
}

func TestConcludeWithoutTries(t *testing.T) {
	r := &Result{}
	r.conclude()
	assert.Equal(t, Inconclusive, r.Outcome)
	assert.Nil(t, r.Deciding())
}

func TestEffectAndClassification(t *testing.T) {
	// 2 GHz: one tick is half a nanosecond.
	e := effectFrom(Report{MeanDiff: 300, StdErr: 4}, 2_000_000_000)
	assert.Equal(t, 150.0, e.ShiftNs)
	assert.Equal(t, 10.0, e.MDENs)
	assert.Equal(t, StandardRemote, exploitabilityFor(e.ShiftNs))
	assert.Equal(t, Good, qualityFor(e.MDENs))

	e = effectFrom(Report{MeanDiff: 300, StdErr: 4}, 0)
	assert.True(t, math.IsNaN(e.ShiftNs))
	assert.Equal(t, UnknownExploitability, exploitabilityFor(e.ShiftNs))
	assert.Equal(t, UnknownQuality, qualityFor(e.MDENs))

	assert.Equal(t, SharedHardwareOnly, exploitabilityFor(-3))
	assert.Equal(t, HTTP2Multiplexing, exploitabilityFor(50))
	assert.Equal(t, ObviousLeak, exploitabilityFor(20_000))
	assert.Equal(t, Excellent, qualityFor(1))
	assert.Equal(t, Poor, qualityFor(50))
	assert.Equal(t, TooNoisy, qualityFor(500))
}

func TestStrings(t *testing.T) {
	assert.Equal(t, "Pass", Pass.String())
	assert.Equal(t, "Fail", Fail.String())
	assert.Equal(t, "Inconclusive", Inconclusive.String())
	assert.Equal(t, "BatchBudgetExceeded", ReasonBatchBudgetExceeded.String())
	assert.Equal(t, "NotEnoughMeasurements", ReasonNotEnoughMeasurements.String())
	assert.Equal(t, "Unknown", Exploitability(99).String())
	assert.Equal(t, "Unknown", UnknownQuality.String())

	r := &Result{Outcome: Fail, MaxT: 42, Exploitability: ObviousLeak, Tries: make([]TryResult, 2)}
	assert.Contains(t, r.String(), "FAIL")
	assert.Contains(t, r.String(), "ObviousLeak")
	r = &Result{Outcome: Inconclusive, InconclusiveReason: ReasonBatchBudgetExceeded}
	assert.Contains(t, r.String(), "BatchBudgetExceeded")
}
