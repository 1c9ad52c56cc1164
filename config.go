package dudect

import (
	"fmt"
	"io"

	"github.com/sirupsen/logrus"

	"github.com/agucova/dudect/internal/ensemble"
)

// Policy is the retry and decision policy of a session.
//
// A session runs up to Tries independent tries and passes as soon as one of
// them reports no leak; it fails only when no try passes. One clean try
// outweighs any number of leaky ones. This keeps environmental noise from
// failing constant-time code, at the price of missing leaks that only show
// up intermittently.
type Policy struct {
	// Tries is the maximum number of tries in a session.
	Tries int
	// EnoughMeasurements is the raw sample count a try needs before a verdict.
	EnoughMeasurements int
	// ThresholdModerate is the |t| above which a try reports a leak.
	ThresholdModerate float64
	// ThresholdOverwhelming is the |t| above which the leak is beyond doubt.
	ThresholdOverwhelming float64
	// MaxBatchesPerTry caps the batches of one try. Zero derives the cap from
	// EnoughMeasurements and the batch shape.
	MaxBatchesPerTry int
	// MinTestMeasurements is the sample count a cropped or second-order test
	// needs before its |t| counts towards a verdict. Zero derives it as
	// EnoughMeasurements/(2*(percentiles+1)).
	MinTestMeasurements int
}

// DefaultPolicy returns the default policy: 10 tries, 10 000 samples,
// thresholds 10 and 500.
func DefaultPolicy() Policy {
	return Policy{
		Tries:                 10,
		EnoughMeasurements:    10_000,
		ThresholdModerate:     10,
		ThresholdOverwhelming: 500,
	}
}


// Defaults of the batch shape and runtime options.
const (
	DefaultBatchSize        = 150
	DefaultDropSize         = 20
	DefaultBatchWarmup      = 10
	DefaultPercentiles      = 5
	DefaultSecondOrderAfter = 10_000
	DefaultMaxBatchBytes    = 64 << 20
	DefaultWarmupIterations = 100
)

// Config holds the configuration of a session.
type Config struct {
	policy           Policy
	batchSize        int
	dropSize         int
	batchWarmup      int
	percentiles      int
	secondOrderAfter int
	maxBatchBytes    int
	warmupIterations int
	seed             uint64
	cpu              int
	logger           logrus.FieldLogger
	sink             ProgressSink
}

// Option is a functional option for configuring a session.
type Option func(*Config)

// defaultConfig returns the default configuration.
func defaultConfig() *Config {
	return &Config{
		policy:           DefaultPolicy(),
		batchSize:        DefaultBatchSize,
		dropSize:         DefaultDropSize,
		batchWarmup:      DefaultBatchWarmup,
		percentiles:      DefaultPercentiles,
		secondOrderAfter: DefaultSecondOrderAfter,
		maxBatchBytes:    DefaultMaxBatchBytes,
		warmupIterations: DefaultWarmupIterations,
		cpu:              -1,
		logger:           discardLogger,
	}
}

var discardLogger logrus.FieldLogger = &logrus.Logger{
	Out:       io.Discard,
	Formatter: new(logrus.TextFormatter),
	Hooks:     make(logrus.LevelHooks),
	Level:     logrus.PanicLevel,
}

// NewConfig returns the configuration opts describe on top of the defaults.
// Sessions build their own; it is useful to inspect the effective settings.
func NewConfig(opts ...Option) *Config {
	return newConfig(opts)
}

func newConfig(opts []Option) *Config {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(cfg)
	}
	return cfg
}

// WithPolicy replaces the whole policy.
func WithPolicy(p Policy) Option {
	return func(c *Config) {
		c.policy = p
	}
}

// WithTries sets the maximum number of tries per session.
func WithTries(n int) Option {
	return func(c *Config) {
		c.policy.Tries = n
	}
}

// WithEnoughMeasurements sets the raw sample floor a try must reach.
func WithEnoughMeasurements(n int) Option {
	return func(c *Config) {
		c.policy.EnoughMeasurements = n
	}
}

// WithThresholds sets the moderate and overwhelming |t| thresholds.
func WithThresholds(moderate, overwhelming float64) Option {
	return func(c *Config) {
		c.policy.ThresholdModerate = moderate
		c.policy.ThresholdOverwhelming = overwhelming
	}
}

// WithMaxBatchesPerTry caps the number of batches a try may run.
func WithMaxBatchesPerTry(n int) Option {
	return func(c *Config) {
		c.policy.MaxBatchesPerTry = n
	}
}

// WithMinTestMeasurements sets the sample count a cropped or second-order
// test needs before it can carry a verdict.
func WithMinTestMeasurements(n int) Option {
	return func(c *Config) {
		c.policy.MinTestMeasurements = n
	}
}

// WithBatchSize sets the number of trials per batch.
// Default is 150.
func WithBatchSize(n int) Option {
	return func(c *Config) {
		c.batchSize = n
	}
}

// WithDropSize sets how many trials at each end of a batch are left out of
// the percentile computation.
// Default is 20.
func WithDropSize(n int) Option {
	return func(c *Config) {
		c.dropSize = n
	}
}

// WithBatchWarmup sets how many leading trials of every batch are ignored.
// Default is 10.
func WithBatchWarmup(n int) Option {
	return func(c *Config) {
		c.batchWarmup = n
	}
}

// WithPercentiles sets the number of cropped tests.
// Default is 5.
func WithPercentiles(k int) Option {
	return func(c *Config) {
		c.percentiles = k
	}
}

// WithSecondOrderAfter sets the class-0 sample count after which the
// second-order test starts.
// Default is 10 000.
func WithSecondOrderAfter(n int) Option {
	return func(c *Config) {
		c.secondOrderAfter = n
	}
}

// WithMaxBatchBytes bounds the memory of the per-batch buffers.
// Default is 64 MiB.
func WithMaxBatchBytes(n int) Option {
	return func(c *Config) {
		c.maxBatchBytes = n
	}
}

// WithWarmupIterations sets how many times the operation runs before the
// first try when the target measures an Operation. Zero disables warm-up.
func WithWarmupIterations(n int) Option {
	return func(c *Config) {
		c.warmupIterations = n
	}
}

// WithSeed sets the seed of the class schedule built by TestOperation.
// Default (0) uses system entropy.
func WithSeed(seed uint64) Option {
	return func(c *Config) {
		c.seed = seed
	}
}

// WithCPU pins the measuring thread to the given CPU (Linux only).
func WithCPU(cpu int) Option {
	return func(c *Config) {
		c.cpu = cpu
	}
}

// WithLogger sets the logger for session lifecycle events.
func WithLogger(l logrus.FieldLogger) Option {
	return func(c *Config) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithProgress sets the sink that receives a Progress after every batch.
func WithProgress(s ProgressSink) Option {
	return func(c *Config) {
		c.sink = s
	}
}

// Policy returns the effective policy.
func (c *Config) Policy() Policy {
	return c.policy
}

func (c *Config) validate() error {
	p := c.policy
	switch {
	case p.Tries < 1:
		return fmt.Errorf("%w: tries must be >= 1, got %d", ErrInvalidConfig, p.Tries)
	case p.EnoughMeasurements < 2:
		return fmt.Errorf("%w: enough measurements must be >= 2, got %d", ErrInvalidConfig, p.EnoughMeasurements)
	case p.ThresholdModerate <= 0 || p.ThresholdOverwhelming < p.ThresholdModerate:
		return fmt.Errorf("%w: thresholds must satisfy 0 < moderate <= overwhelming, got %g and %g",
			ErrInvalidConfig, p.ThresholdModerate, p.ThresholdOverwhelming)
	case p.MaxBatchesPerTry < 0:
		return fmt.Errorf("%w: batch budget must not be negative", ErrInvalidConfig)
	case p.MinTestMeasurements < 0:
		return fmt.Errorf("%w: per-test minimum must not be negative", ErrInvalidConfig)
	case c.percentiles < 1:
		return fmt.Errorf("%w: percentiles must be >= 1, got %d", ErrInvalidConfig, c.percentiles)
	case c.dropSize < 0 || c.batchWarmup < 0 || c.secondOrderAfter < 0:
		return fmt.Errorf("%w: drop size, batch warm-up and second-order start must not be negative", ErrInvalidConfig)
	case c.batchSize <= 2*c.dropSize:
		return fmt.Errorf("%w: batch size %d leaves no samples after dropping %d at each end",
			ErrInvalidConfig, c.batchSize, c.dropSize)
	case c.batchSize <= c.batchWarmup:
		return fmt.Errorf("%w: batch size %d does not exceed the batch warm-up %d",
			ErrInvalidConfig, c.batchSize, c.batchWarmup)
	}
	return nil
}

// batchesPerTry returns the batch budget of one try.
func (c *Config) batchesPerTry() int {
	if c.policy.MaxBatchesPerTry > 0 {
		return c.policy.MaxBatchesPerTry
	}
	perBatch := min(c.batchSize-2*c.dropSize, c.batchSize-c.batchWarmup)
	return 4 * (c.policy.EnoughMeasurements/perBatch + 1)
}

// minTestMeasurements returns the sample count a cropped or second-order
// test needs to join the verdict.
func (c *Config) minTestMeasurements() int {
	if c.policy.MinTestMeasurements > 0 {
		return c.policy.MinTestMeasurements
	}
	return c.policy.EnoughMeasurements / (2 * (c.percentiles + 1))
}

func (c *Config) thresholds() ensemble.Thresholds {
	return ensemble.Thresholds{
		EnoughMeasurements: float64(c.policy.EnoughMeasurements),
		Moderate:           c.policy.ThresholdModerate,
		Overwhelming:       c.policy.ThresholdOverwhelming,
		MinTestSamples:     float64(c.minTestMeasurements()),
	}
}

func (c *Config) ensembleParams() ensemble.Params {
	return ensemble.Params{
		Percentiles:      c.percentiles,
		Warmup:           c.batchWarmup,
		SecondOrderAfter: float64(c.secondOrderAfter),
	}
}
