package dudect

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/agucova/dudect/internal/ensemble"
)

// Verdict is the provisional verdict of one try.
type Verdict = ensemble.Verdict

// Try verdicts.
const (
	VerdictInconclusive     = ensemble.Inconclusive
	VerdictNoLeak           = ensemble.NoLeak
	VerdictLeak             = ensemble.Leak
	VerdictLeakOverwhelming = ensemble.LeakOverwhelming
)

// Report is the diagnostic snapshot of a try after a batch.
type Report = ensemble.Report

// Outcome represents the test result.
type Outcome int

const (
	// Pass indicates that some try detected no leak. It is statistical
	// evidence within the sample and try budget, not a proof of
	// constant-time behaviour.
	Pass Outcome = iota
	// Fail indicates that no try passed and at least one detected a leak.
	Fail
	// Inconclusive indicates that no try reached a verdict.
	Inconclusive
)

// String returns the string representation of the outcome.
func (o Outcome) String() string {
	switch o {
	case Pass:
		return "Pass"
	case Fail:
		return "Fail"
	case Inconclusive:
		return "Inconclusive"
	default:
		return "Unknown"
	}
}

// InconclusiveReason explains why a try or session was inconclusive.
type InconclusiveReason int

const (
	ReasonNone InconclusiveReason = iota
	ReasonNotEnoughMeasurements
	ReasonBatchBudgetExceeded
)

// String returns the string representation of the reason.
func (r InconclusiveReason) String() string {
	switch r {
	case ReasonNone:
		return ""
	case ReasonNotEnoughMeasurements:
		return "NotEnoughMeasurements"
	case ReasonBatchBudgetExceeded:
		return "BatchBudgetExceeded"
	default:
		return "Unknown"
	}
}

// Exploitability assesses the practical exploitability of a detected leak
// from the size of the raw mean difference.
type Exploitability int

const (
	// SharedHardwareOnly: < 10 ns - requires shared hardware (SGX, containers) to exploit.
	SharedHardwareOnly Exploitability = iota
	// HTTP2Multiplexing: 10-100 ns - exploitable via HTTP/2 request multiplexing.
	HTTP2Multiplexing
	// StandardRemote: 100 ns - 10 us - exploitable with standard remote timing.
	StandardRemote
	// ObviousLeak: > 10 us - obvious leak, trivially exploitable.
	ObviousLeak
	// UnknownExploitability: the timer frequency is unknown.
	UnknownExploitability
)

// String returns the string representation of exploitability.
func (e Exploitability) String() string {
	switch e {
	case SharedHardwareOnly:
		return "SharedHardwareOnly"
	case HTTP2Multiplexing:
		return "HTTP2Multiplexing"
	case StandardRemote:
		return "StandardRemote"
	case ObviousLeak:
		return "ObviousLeak"
	default:
		return "Unknown"
	}
}

func exploitabilityFor(shiftNs float64) Exploitability {
	switch d := math.Abs(shiftNs); {
	case math.IsNaN(d):
		return UnknownExploitability
	case d < 10:
		return SharedHardwareOnly
	case d < 100:
		return HTTP2Multiplexing
	case d < 10_000:
		return StandardRemote
	default:
		return ObviousLeak
	}
}

// Quality assesses the measurement precision from the minimum detectable
// effect (five standard errors of the raw mean difference).
type Quality int

const (
	// Excellent: MDE < 5 ns - excellent measurement precision.
	Excellent Quality = iota
	// Good: MDE 5-20 ns - good precision for most use cases.
	Good
	// Poor: MDE 20-100 ns - limited precision.
	Poor
	// TooNoisy: MDE > 100 ns - too noisy for reliable detection.
	TooNoisy
	// UnknownQuality: the timer frequency is unknown.
	UnknownQuality
)

// String returns the string representation of quality.
func (q Quality) String() string {
	switch q {
	case Excellent:
		return "Excellent"
	case Good:
		return "Good"
	case Poor:
		return "Poor"
	case TooNoisy:
		return "TooNoisy"
	default:
		return "Unknown"
	}
}

func qualityFor(mdeNs float64) Quality {
	switch {
	case math.IsNaN(mdeNs):
		return UnknownQuality
	case mdeNs < 5:
		return Excellent
	case mdeNs < 20:
		return Good
	case mdeNs < 100:
		return Poor
	default:
		return TooNoisy
	}
}

// Effect holds the raw mean difference between the classes.
type Effect struct {
	// ShiftTicks is mean(class 1) - mean(class 0) in timer ticks.
	ShiftTicks float64
	// StdErrTicks is the standard error of ShiftTicks.
	StdErrTicks float64
	// ShiftNs is ShiftTicks in nanoseconds, NaN when the tick rate is unknown.
	ShiftNs float64
	// MDENs is the minimum detectable effect (5 standard errors) in
	// nanoseconds, NaN when the tick rate is unknown.
	MDENs float64
}

func effectFrom(r Report, ticksPerSecond uint64) Effect {
	e := Effect{
		ShiftTicks:  r.MeanDiff,
		StdErrTicks: r.StdErr,
		ShiftNs:     math.NaN(),
		MDENs:       math.NaN(),
	}
	if ticksPerSecond > 0 {
		nsPerTick := 1e9 / float64(ticksPerSecond)
		e.ShiftNs = r.MeanDiff * nsPerTick
		e.MDENs = 5 * r.StdErr * nsPerTick
	}
	return e
}

// TryResult is the outcome of one try.
type TryResult struct {
	// Index is the zero-based position of the try in its session.
	Index int
	// Verdict is the last verdict of the try.
	Verdict Verdict
	// Report is the last report of the try.
	Report Report
	// Batches is the number of batches the try ran.
	Batches int
	// Invalid is the number of trials discarded for a non-positive delta.
	Invalid int
	// InconclusiveReason is set when Verdict is Inconclusive.
	InconclusiveReason InconclusiveReason
	// ElapsedTime is how long the try took.
	ElapsedTime time.Duration
}

// Result holds the complete result of a session.
type Result struct {
	// ID identifies the session that produced the result.
	ID uuid.UUID

	// Target is the name of the tested target.
	Target string

	// Outcome is the session result.
	Outcome Outcome

	// InconclusiveReason explains an Inconclusive outcome.
	InconclusiveReason InconclusiveReason

	// Tries holds every try that ran, in order.
	Tries []TryResult

	// Decisive is the index in Tries of the try the summary fields describe:
	// the passing try, or else the try with the largest |t|.
	Decisive int

	// MaxT is the largest |t| of the deciding try.
	MaxT float64

	// Tau is MaxT normalised by the square root of its sample count.
	Tau float64

	// Samples is the raw sample count of the deciding try.
	Samples int

	// Effect is the raw timing difference of the deciding try.
	Effect Effect

	// Quality is the measurement quality of the deciding try.
	Quality Quality

	// Exploitability assesses practical exploitability (only meaningful for Fail).
	Exploitability Exploitability

	// TimerFrequencyHz is the tick rate of the measurement, 0 if unknown.
	TimerFrequencyHz uint64

	// ElapsedTime is how long the session took.
	ElapsedTime time.Duration
}

// Passed reports whether the target passed, i.e. some try detected no leak.
func (r *Result) Passed() bool {
	return r.Outcome == Pass
}

// IsConclusive returns true if the result is Pass or Fail.
func (r *Result) IsConclusive() bool {
	return r.Outcome == Pass || r.Outcome == Fail
}

// Deciding returns the try the summary fields describe, or nil when no try ran.
func (r *Result) Deciding() *TryResult {
	if r.Decisive < 0 || r.Decisive >= len(r.Tries) {
		return nil
	}
	return &r.Tries[r.Decisive]
}

// conclude derives the outcome and summary fields from the tries.
func (r *Result) conclude() {
	r.Outcome = Inconclusive
	r.InconclusiveReason = ReasonNotEnoughMeasurements
	r.Decisive = -1
	sawLeak := false
	for i, tr := range r.Tries {
		switch {
		case tr.Verdict == VerdictNoLeak:
			r.Outcome = Pass
			r.InconclusiveReason = ReasonNone
			r.Decisive = i
		case tr.Verdict.IsLeak():
			sawLeak = true
		case tr.InconclusiveReason != ReasonNone:
			r.InconclusiveReason = tr.InconclusiveReason
		}
		if r.Outcome == Pass {
			break
		}
		if r.Decisive < 0 || tr.Report.MaxT > r.Tries[r.Decisive].Report.MaxT {
			r.Decisive = i
		}
	}
	if r.Outcome != Pass && sawLeak {
		r.Outcome = Fail
		r.InconclusiveReason = ReasonNone
	}

	d := r.Deciding()
	if d == nil {
		return
	}
	r.MaxT = d.Report.MaxT
	r.Tau = d.Report.Tau
	r.Samples = int(d.Report.Samples)
	r.Effect = effectFrom(d.Report, r.TimerFrequencyHz)
	r.Quality = qualityFor(r.Effect.MDENs)
	r.Exploitability = exploitabilityFor(r.Effect.ShiftNs)
}

// String returns a human-readable summary of the result.
func (r *Result) String() string {
	switch r.Outcome {
	case Pass:
		return fmt.Sprintf("Pass: no leak detected (not a proof of constant time), max_t=%.2f, tau=%.2e, samples=%d, tries=%d",
			r.MaxT, r.Tau, r.Samples, len(r.Tries))
	case Fail:
		return fmt.Sprintf("FAIL: leak detected, max_t=%.2f, tau=%.2e, shift=%.1f ticks, exploitability=%s, tries=%d",
			r.MaxT, r.Tau, r.Effect.ShiftTicks, r.Exploitability, len(r.Tries))
	case Inconclusive:
		return fmt.Sprintf("Inconclusive (%s): samples=%d, tries=%d",
			r.InconclusiveReason, r.Samples, len(r.Tries))
	default:
		return "Unknown result"
	}
}
