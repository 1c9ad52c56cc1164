package ensemble

import (
	"fmt"
	"math"

	"github.com/aclements/go-moremath/stats"

	"github.com/agucova/dudect/internal/ttest"
)

// Verdict is the provisional outcome of evaluating an ensemble.
type Verdict int

const (
	// Inconclusive means the raw test has not yet reached the sample floor.
	Inconclusive Verdict = iota
	// NoLeak means no test exceeded the moderate threshold. It is not a proof
	// of constant-time behaviour.
	NoLeak
	// Leak means some test exceeded the moderate threshold.
	Leak
	// LeakOverwhelming means some test exceeded the overwhelming threshold.
	LeakOverwhelming
)

// String returns the string representation of the verdict.
func (v Verdict) String() string {
	switch v {
	case Inconclusive:
		return "Inconclusive"
	case NoLeak:
		return "NoLeak"
	case Leak:
		return "Leak"
	case LeakOverwhelming:
		return "LeakOverwhelming"
	default:
		return "Unknown"
	}
}

// IsLeak reports whether v is one of the leak verdicts.
func (v Verdict) IsLeak() bool {
	return v == Leak || v == LeakOverwhelming
}

// Thresholds are the fixed decision bounds applied by Evaluate.
type Thresholds struct {
	// EnoughMeasurements is the raw sample total below which no verdict is given.
	EnoughMeasurements float64
	// Moderate is the |t| above which a leak is reported.
	Moderate float64
	// Overwhelming is the |t| above which a leak is beyond reasonable doubt.
	Overwhelming float64
	// MinTestSamples is the sample total a cropped or second-order test needs
	// before it can carry the verdict. Each class also needs two samples.
	MinTestSamples float64
}

// Names of the tests a Report can point at.
const (
	TestRaw         = "raw"
	TestSecondOrder = "second-order"
)

// CroppedTestName returns the name of the k-th cropped test.
func CroppedTestName(k int) string {
	return fmt.Sprintf("crop[%d]", k)
}

// Report is the diagnostic snapshot produced by Evaluate.
type Report struct {
	Verdict Verdict

	// Samples is the number of samples in the raw test.
	Samples float64
	// Remaining is how many raw samples are still missing before a verdict.
	Remaining float64

	// Test names the test with the largest |t|.
	Test string
	// MaxT is the largest |t| among eligible tests.
	MaxT float64
	// Tau is MaxT normalised by the square root of Samples.
	Tau float64
	// EstimatedSamples is (5/Tau)^2, the number of samples needed for |t| to
	// reach 5 at the current leakage rate.
	EstimatedSamples float64
	// DegreesOfFreedom is the Welch–Satterthwaite estimate for Test.
	DegreesOfFreedom float64
	// PValue is the two-sided Student t p-value of Test.
	PValue float64

	// MeanDiff is raw mean(class 1) - mean(class 0), in timer ticks.
	MeanDiff float64
	// StdErr is the standard error of MeanDiff.
	StdErr float64
}

// Evaluate applies th to the current state of the ensemble.
//
// Nothing is decided before the raw test reaches th.EnoughMeasurements. From
// then on the raw test is always considered, and a cropped or second-order
// test joins once it holds th.MinTestSamples samples and two per class.
// A cropped test holds only the trials below its percentile, so it could
// rarely reach the raw floor in a try that stops there.
func (e *Ensemble) Evaluate(th Thresholds) Report {
	s := e.raw.Total()
	r := Report{
		Samples:  s,
		MeanDiff: e.raw.Mean(1) - e.raw.Mean(0),
		StdErr:   e.raw.StdErr(),
	}
	if s < th.EnoughMeasurements {
		r.Verdict = Inconclusive
		r.Remaining = th.EnoughMeasurements - s
		return r
	}

	best, name := &e.raw, TestRaw
	maxT := math.Abs(e.raw.Compute())
	consider := func(c *ttest.Context, n string) {
		if c.Total() < th.MinTestSamples || c.N(0) < 2 || c.N(1) < 2 {
			return
		}
		if t := math.Abs(c.Compute()); t > maxT {
			best, name, maxT = c, n, t
		}
	}
	for k := range e.cropped {
		consider(&e.cropped[k], CroppedTestName(k))
	}
	consider(&e.second, TestSecondOrder)

	r.Test = name
	r.MaxT = maxT
	r.Tau = maxT / math.Sqrt(s)
	if r.Tau == 0 {
		r.EstimatedSamples = math.Inf(1)
	} else {
		r.EstimatedSamples = 25 / (r.Tau * r.Tau)
	}
	r.DegreesOfFreedom = best.DegreesOfFreedom()
	r.PValue = twoSidedP(maxT, r.DegreesOfFreedom)

	switch {
	case maxT > th.Overwhelming:
		r.Verdict = LeakOverwhelming
	case maxT > th.Moderate:
		r.Verdict = Leak
	default:
		r.Verdict = NoLeak
	}
	return r
}

func twoSidedP(absT, dof float64) float64 {
	switch {
	case math.IsInf(absT, 1):
		return 0
	case dof <= 0:
		if absT == 0 {
			return 1
		}
		return 0
	}
	p := 2 * (1 - stats.TDist{V: dof}.CDF(absT))
	return math.Max(0, math.Min(1, p))
}
