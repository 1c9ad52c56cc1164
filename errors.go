package dudect

import "errors"

// Errors that can be returned by a session. Leak verdicts are never errors:
// a non-nil error means no verdict was reached.
var (
	// ErrInvalidConfig is returned when the configuration is inconsistent.
	ErrInvalidConfig = errors.New("dudect: invalid configuration")

	// ErrInvalidTarget is returned when a target is missing its name or one
	// of its providers, or when a name is registered twice.
	ErrInvalidTarget = errors.New("dudect: invalid target")

	// ErrResourceExhausted is returned when the per-batch buffers cannot be
	// allocated within the configured budget. It is never retried.
	ErrResourceExhausted = errors.New("dudect: cannot allocate measurement buffers")

	// ErrMeasurementFailed is returned when the measurement provider reports
	// a failure for a batch.
	ErrMeasurementFailed = errors.New("dudect: measurement failed")

	// ErrInsufficientSamples is returned by Analyze when a class has fewer
	// than two samples.
	ErrInsufficientSamples = errors.New("dudect: insufficient samples for analysis (need >= 2 per class)")

	// ErrUnknownTarget is returned by Registry lookups for unregistered names.
	ErrUnknownTarget = errors.New("dudect: unknown target")
)
