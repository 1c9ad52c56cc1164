package dudect

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/agucova/dudect/internal/ensemble"
)

// Session tests one target under one configuration.
type Session struct {
	id     uuid.UUID
	target Target
	cfg    *Config
	log    logrus.FieldLogger
}

// NewSession validates the target and the options and returns a session
// ready to run.
func NewSession(t Target, opts ...Option) (*Session, error) {
	t, err := t.normalize()
	if err != nil {
		return nil, err
	}
	cfg := newConfig(opts)
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	id := uuid.New()
	return &Session{
		id:     id,
		target: t,
		cfg:    cfg,
		log: cfg.logger.WithFields(logrus.Fields{
			"session": id.String(),
			"target":  t.Name,
		}),
	}, nil
}

// ID returns the unique identifier of the session.
func (s *Session) ID() uuid.UUID {
	return s.id
}

// Target returns the target under test.
func (s *Session) Target() Target {
	return s.target
}

// Run runs up to Policy.Tries tries and returns as soon as one of them
// detects no leak. A leak verdict is reported through Result.Outcome, never
// as an error.
func (s *Session) Run() (*Result, error) {
	cfg := s.cfg
	start := time.Now()

	// Phase 0: allocate the batch and prepare the machine
	b, err := newBatch(cfg.batchSize, s.target.InputSize, cfg.dropSize, cfg.percentiles, cfg.maxBatchBytes)
	if err != nil {
		s.log.WithError(err).Error("cannot allocate batch buffers")
		return nil, err
	}

	if cfg.cpu >= 0 {
		release, err := pinThread(cfg.cpu)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
		}
		defer release()
	}

	if w, ok := s.target.Measurer.(warmer); ok && cfg.warmupIterations > 0 {
		w.warmup(s.target.Selector, s.target.InputSize, cfg.warmupIterations)
	}

	res := &Result{ID: s.id, Target: s.target.Name}
	if tr, ok := s.target.Measurer.(TickRater); ok {
		res.TimerFrequencyHz = tr.TicksPerSecond()
	}

	s.log.WithFields(logrus.Fields{
		"tries":      cfg.policy.Tries,
		"batch_size": cfg.batchSize,
		"input_size": s.target.InputSize,
		"floor":      cfg.policy.EnoughMeasurements,
	}).Info("session started")

	// Phase 1: tries, first clean one wins
	for i := 0; i < cfg.policy.Tries; i++ {
		tr, err := s.runTry(i, b)
		if err != nil {
			s.log.WithError(err).WithField("try", i+1).Error("try aborted")
			return nil, err
		}
		res.Tries = append(res.Tries, tr)
		if tr.Verdict == VerdictNoLeak {
			break
		}
	}

	// Phase 2: aggregate
	res.conclude()
	res.ElapsedTime = time.Since(start)

	s.log.WithFields(logrus.Fields{
		"outcome": res.Outcome.String(),
		"tries":   len(res.Tries),
		"max_t":   res.MaxT,
		"elapsed": res.ElapsedTime,
	}).Info("session finished")
	return res, nil
}

// runTry measures batches into a fresh ensemble until it reaches a verdict
// or exhausts the batch budget.
func (s *Session) runTry(index int, b *batch) (TryResult, error) {
	cfg := s.cfg
	th := cfg.thresholds()
	budget := cfg.batchesPerTry()
	ens := ensemble.New(cfg.ensembleParams())
	log := s.log.WithField("try", index+1)

	tr := TryResult{Index: index}
	start := time.Now()
	log.WithField("batch_budget", budget).Debug("try started")

	for tr.Batches < budget {
		if err := b.fill(s.target); err != nil {
			return tr, err
		}
		_, invalid := ens.Update(b.deltas, b.classes, b.thresholds)
		tr.Invalid += invalid
		tr.Batches++

		tr.Report = ens.Evaluate(th)
		tr.Verdict = tr.Report.Verdict
		if cfg.sink != nil {
			cfg.sink.Progress(Progress{
				Target: s.target.Name,
				Try:    index,
				Tries:  cfg.policy.Tries,
				Batch:  tr.Batches,
				Report: tr.Report,
			})
		}
		if tr.Verdict != VerdictInconclusive {
			break
		}
	}
	if tr.Verdict == VerdictInconclusive {
		tr.InconclusiveReason = ReasonBatchBudgetExceeded
	}
	tr.ElapsedTime = time.Since(start)

	log.WithFields(logrus.Fields{
		"verdict": tr.Verdict.String(),
		"test":    tr.Report.Test,
		"max_t":   tr.Report.MaxT,
		"samples": int64(tr.Report.Samples),
		"batches": tr.Batches,
		"invalid": tr.Invalid,
	}).Info("try finished")
	return tr, nil
}

// Test runs a session on t.
func Test(t Target, opts ...Option) (*Result, error) {
	s, err := NewSession(t, opts...)
	if err != nil {
		return nil, err
	}
	return s.Run()
}

// TestOperation runs a session on op, timed with the platform timer, with
// inputs drawn from gen. The class schedule is seeded from WithSeed.
//
//	result, err := dudect.TestOperation(
//	    dudect.NewZeroGenerator(0),
//	    dudect.FuncOperation(func(input []byte) {
//	        myCompare(input, secret)
//	    }),
//	    32,
//	)
func TestOperation(gen Generator, op Operation, inputSize int, opts ...Option) (*Result, error) {
	if gen == nil || op == nil {
		return nil, fmt.Errorf("%w: nil generator or operation", ErrInvalidTarget)
	}
	if inputSize <= 0 {
		return nil, fmt.Errorf("%w: input size must be positive, got %d", ErrInvalidConfig, inputSize)
	}
	cfg := newConfig(opts)
	return Test(NewOperationTarget("operation", op, gen, inputSize, cfg.seed), opts...)
}

// RunAll tests every target of reg in registration order. It stops at the
// first error and returns the results gathered so far along with it.
func RunAll(reg *Registry, opts ...Option) ([]*Result, error) {
	targets := reg.Targets()
	if len(targets) == 0 {
		return nil, errors.New("dudect: no targets registered")
	}
	results := make([]*Result, 0, len(targets))
	for _, t := range targets {
		res, err := Test(t, opts...)
		if err != nil {
			return results, fmt.Errorf("target %s: %w", t.Name, err)
		}
		results = append(results, res)
	}
	return results, nil
}
