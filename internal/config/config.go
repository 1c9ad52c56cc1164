// Package config reads and writes the YAML policy file of the dudect CLI.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/agucova/dudect"
)

// File is the on-disk configuration.
type File struct {
	Policy  Policy  `yaml:"policy"`
	Batch   Batch   `yaml:"batch"`
	Runtime Runtime `yaml:"runtime"`
	// Targets restricts `dudect run` to these names when none are given on
	// the command line.
	Targets []string `yaml:"targets,omitempty"`
}

// Policy mirrors dudect.Policy.
type Policy struct {
	Tries                 int     `yaml:"tries"`
	EnoughMeasurements    int     `yaml:"enough_measurements"`
	ThresholdModerate     float64 `yaml:"threshold_moderate"`
	ThresholdOverwhelming float64 `yaml:"threshold_overwhelming"`
	MaxBatchesPerTry      int     `yaml:"max_batches_per_try"`
	MinTestMeasurements   int     `yaml:"min_test_measurements"`
}

// Batch holds the batch shape.
type Batch struct {
	Size             int `yaml:"size"`
	Drop             int `yaml:"drop"`
	Warmup           int `yaml:"warmup"`
	Percentiles      int `yaml:"percentiles"`
	SecondOrderAfter int `yaml:"second_order_after"`
	MaxBytes         int `yaml:"max_bytes"`
}

// Runtime holds host-side settings.
type Runtime struct {
	// CPU is the CPU to pin the measuring thread to, -1 for none.
	CPU              int    `yaml:"cpu"`
	Seed             uint64 `yaml:"seed"`
	WarmupIterations int    `yaml:"warmup_iterations"`
	// DB is the path of the SQLite result store. Empty disables it.
	DB string `yaml:"db,omitempty"`
	// MetricsAddr is the listen address of the Prometheus endpoint. Empty
	// disables it.
	MetricsAddr string `yaml:"metrics_addr,omitempty"`
}

// Default returns the configuration matching the library defaults.
func Default() File {
	p := dudect.DefaultPolicy()
	return File{
		Policy: Policy{
			Tries:                 p.Tries,
			EnoughMeasurements:    p.EnoughMeasurements,
			ThresholdModerate:     p.ThresholdModerate,
			ThresholdOverwhelming: p.ThresholdOverwhelming,
			MaxBatchesPerTry:      p.MaxBatchesPerTry,
			MinTestMeasurements:   p.MinTestMeasurements,
		},
		Batch: Batch{
			Size:             dudect.DefaultBatchSize,
			Drop:             dudect.DefaultDropSize,
			Warmup:           dudect.DefaultBatchWarmup,
			Percentiles:      dudect.DefaultPercentiles,
			SecondOrderAfter: dudect.DefaultSecondOrderAfter,
			MaxBytes:         dudect.DefaultMaxBatchBytes,
		},
		Runtime: Runtime{
			CPU:              -1,
			WarmupIterations: dudect.DefaultWarmupIterations,
		},
	}
}

// Load reads path on top of Default. Unknown keys are rejected.
func Load(path string) (File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return File{}, fmt.Errorf("failed to read config %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes a YAML document on top of Default.
func Parse(data []byte) (File, error) {
	f := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil && !errors.Is(err, io.EOF) {
		return File{}, fmt.Errorf("failed to parse config: %w", err)
	}
	return f, nil
}

// Save writes f to path, creating the parent directory if needed.
func Save(path string, f File) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create the config directory %w", err)
	}
	data, err := yaml.Marshal(f)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// Options converts f into session options.
func (f File) Options() []dudect.Option {
	return []dudect.Option{
		dudect.WithPolicy(dudect.Policy{
			Tries:                 f.Policy.Tries,
			EnoughMeasurements:    f.Policy.EnoughMeasurements,
			ThresholdModerate:     f.Policy.ThresholdModerate,
			ThresholdOverwhelming: f.Policy.ThresholdOverwhelming,
			MaxBatchesPerTry:      f.Policy.MaxBatchesPerTry,
			MinTestMeasurements:   f.Policy.MinTestMeasurements,
		}),
		dudect.WithBatchSize(f.Batch.Size),
		dudect.WithDropSize(f.Batch.Drop),
		dudect.WithBatchWarmup(f.Batch.Warmup),
		dudect.WithPercentiles(f.Batch.Percentiles),
		dudect.WithSecondOrderAfter(f.Batch.SecondOrderAfter),
		dudect.WithMaxBatchBytes(f.Batch.MaxBytes),
		dudect.WithWarmupIterations(f.Runtime.WarmupIterations),
		dudect.WithSeed(f.Runtime.Seed),
		dudect.WithCPU(f.Runtime.CPU),
	}
}
