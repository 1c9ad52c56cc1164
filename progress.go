package dudect

import (
	"github.com/sirupsen/logrus"
)

// Progress is emitted after every batch of a try.
type Progress struct {
	// Target is the name of the target being tested.
	Target string
	// Try is the zero-based index of the running try.
	Try int
	// Tries is the maximum number of tries of the session.
	Tries int
	// Batch is the one-based number of batches the try has folded in.
	Batch int
	// Report is the evaluation after this batch.
	Report Report
}

// ProgressSink receives progress reports. Progress is called from the
// measuring goroutine between batches and should return quickly.
type ProgressSink interface {
	Progress(p Progress)
}

// ProgressFunc adapts a function to the ProgressSink interface.
type ProgressFunc func(p Progress)

// Progress implements ProgressSink.
func (f ProgressFunc) Progress(p Progress) {
	f(p)
}

// MultiSink forwards every report to each of its sinks in order.
type MultiSink []ProgressSink

// Progress implements ProgressSink.
func (m MultiSink) Progress(p Progress) {
	for _, s := range m {
		if s != nil {
			s.Progress(p)
		}
	}
}

// LogSink writes progress reports to a logrus logger. Batches that are still
// short of the sample floor are logged at debug level, verdicts at info.
type LogSink struct {
	Logger logrus.FieldLogger
}

// NewLogSink returns a LogSink writing to l.
func NewLogSink(l logrus.FieldLogger) *LogSink {
	return &LogSink{Logger: l}
}

// Progress implements ProgressSink.
func (s *LogSink) Progress(p Progress) {
	r := p.Report
	log := s.Logger.WithFields(logrus.Fields{
		"target":  p.Target,
		"try":     p.Try + 1,
		"batch":   p.Batch,
		"samples": int64(r.Samples),
	})
	if r.Verdict == VerdictInconclusive {
		log.WithField("remaining", int64(r.Remaining)).Debug("not enough measurements yet")
		return
	}
	log = log.WithFields(logrus.Fields{
		"test":        r.Test,
		"max_t":       r.MaxT,
		"tau":         r.Tau,
		"est_samples": r.EstimatedSamples,
		"p_value":     r.PValue,
		"mean_diff":   r.MeanDiff,
		"verdict":     r.Verdict.String(),
	})
	switch r.Verdict {
	case VerdictLeakOverwhelming:
		log.Warn("definitely not constant time")
	case VerdictLeak:
		log.Warn("probably not constant time")
	default:
		log.Info("maybe constant time (no leak detected so far)")
	}
}
