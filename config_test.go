package dudect

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultConfig(t *testing.T) {
	cfg := newConfig(nil)
	require.NoError(t, cfg.validate())

	assert.Equal(t, DefaultPolicy(), cfg.Policy())
	assert.Equal(t, 150, cfg.batchSize)
	assert.Equal(t, 20, cfg.dropSize)
	assert.Equal(t, 10, cfg.batchWarmup)
	assert.Equal(t, 5, cfg.percentiles)
	assert.Equal(t, 10_000, cfg.secondOrderAfter)
	assert.Equal(t, 64<<20, cfg.maxBatchBytes)
	assert.Equal(t, 100, cfg.warmupIterations)
	// Cropping leaves 110 trials per batch.
	assert.Equal(t, 4*(10_000/110+1), cfg.batchesPerTry())
	// crop[0] keeps about a sixth of the raw samples.
	assert.Equal(t, 833, cfg.minTestMeasurements())
	assert.Equal(t, 833.0, cfg.thresholds().MinTestSamples)
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name string
		opts []Option
	}{
		{"zero tries", []Option{WithTries(0)}},
		{"floor below two", []Option{WithEnoughMeasurements(1)}},
		{"zero moderate", []Option{WithThresholds(0, 500)}},
		{"overwhelming below moderate", []Option{WithThresholds(10, 5)}},
		{"negative batch budget", []Option{WithMaxBatchesPerTry(-1)}},
		{"negative per-test minimum", []Option{WithMinTestMeasurements(-1)}},
		{"no percentiles", []Option{WithPercentiles(0)}},
		{"negative drop", []Option{WithDropSize(-1)}},
		{"negative warmup", []Option{WithBatchWarmup(-1)}},
		{"drop eats batch", []Option{WithBatchSize(40), WithDropSize(20)}},
		{"warmup eats batch", []Option{WithBatchSize(50), WithDropSize(5), WithBatchWarmup(50)}},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			err := newConfig(tc.opts).validate()
			assert.ErrorIs(t, err, ErrInvalidConfig)
		})
	}
}

func TestConfigOptions(t *testing.T) {
	cfg := newConfig([]Option{
		WithPolicy(Policy{Tries: 3, EnoughMeasurements: 500, ThresholdModerate: 4, ThresholdOverwhelming: 40}),
		WithBatchSize(100),
		WithDropSize(10),
		WithBatchWarmup(30),
		WithMaxBatchesPerTry(0),
		WithLogger(nil),
	})
	require.NoError(t, cfg.validate())
	assert.Equal(t, 3, cfg.policy.Tries)
	assert.NotNil(t, cfg.logger)
	// The warm-up leaves fewer trials than cropping does.
	assert.Equal(t, 4*(500/70+1), cfg.batchesPerTry())

	th := cfg.thresholds()
	assert.Equal(t, 500.0, th.EnoughMeasurements)
	assert.Equal(t, 4.0, th.Moderate)
	assert.Equal(t, 40.0, th.Overwhelming)
	assert.Equal(t, 41.0, th.MinTestSamples)

	cfg = newConfig([]Option{WithMaxBatchesPerTry(7), WithMinTestMeasurements(250)})
	assert.Equal(t, 7, cfg.batchesPerTry())
	assert.Equal(t, 250, cfg.minTestMeasurements())
}
