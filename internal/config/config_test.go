package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agucova/dudect"
)

func TestDefaultMatchesLibrary(t *testing.T) {
	f := Default()
	assert.Equal(t, dudect.DefaultPolicy().Tries, f.Policy.Tries)
	assert.Equal(t, 10_000, f.Policy.EnoughMeasurements)
	assert.Equal(t, -1, f.Runtime.CPU)
	assert.Len(t, f.Options(), 10)

	// Applying the default file must leave every library default in place.
	assert.Equal(t, dudect.NewConfig(), dudect.NewConfig(f.Options()...))
}

func TestOptionsOverrideLibrary(t *testing.T) {
	f := Default()
	f.Batch.Size = 300
	f.Policy.MinTestMeasurements = 400
	assert.NotEqual(t, dudect.NewConfig(), dudect.NewConfig(f.Options()...))
	assert.Equal(t, 400, dudect.NewConfig(f.Options()...).Policy().MinTestMeasurements)
}

func TestParsePartialKeepsDefaults(t *testing.T) {
	f, err := Parse([]byte(`
policy:
  tries: 3
  threshold_moderate: 4.5
batch:
  size: 300
runtime:
  cpu: 2
  db: results.db
targets: [xor, memcmp]
`))
	require.NoError(t, err)

	assert.Equal(t, 3, f.Policy.Tries)
	assert.Equal(t, 4.5, f.Policy.ThresholdModerate)
	assert.Equal(t, 500.0, f.Policy.ThresholdOverwhelming)
	assert.Equal(t, 300, f.Batch.Size)
	assert.Equal(t, 20, f.Batch.Drop)
	assert.Equal(t, 2, f.Runtime.CPU)
	assert.Equal(t, "results.db", f.Runtime.DB)
	assert.Equal(t, []string{"xor", "memcmp"}, f.Targets)
}

func TestParseEmpty(t *testing.T) {
	f, err := Parse(nil)
	require.NoError(t, err)
	assert.Equal(t, Default(), f)
}

func TestParseRejectsUnknownKeys(t *testing.T) {
	_, err := Parse([]byte("policy:\n  trys: 3\n"))
	assert.Error(t, err)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "dudect.yaml")
	want := Default()
	want.Policy.Tries = 7
	want.Runtime.MetricsAddr = ":9100"

	require.NoError(t, Save(path, want))
	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, want, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "enough_measurements: 10000")
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestOptionsDriveASession(t *testing.T) {
	f := Default()
	f.Policy.Tries = 0
	_, err := dudect.NewSession(dudect.Target{
		Name:       "noop",
		Measurer:   dudect.OperationMeasurer{Op: dudect.FuncOperation(func([]byte) {})},
		Classifier: dudect.NewGeneratorClassifier(dudect.NewZeroGenerator(1), 1),
	}, f.Options()...)
	assert.ErrorIs(t, err, dudect.ErrInvalidConfig)
}
