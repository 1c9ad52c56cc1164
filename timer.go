package dudect

// TimerName names the timer that timestamps trials on this platform,
// e.g. "rdtsc" or "cntvct_el0".
func TimerName() string {
	return timerName()
}

// TimerFrequency returns the number of timer ticks per second.
func TimerFrequency() uint64 {
	return timerFrequency()
}

// TimerResolutionNs estimates the smallest interval the timer can
// distinguish, in nanoseconds.
func TimerResolutionNs() float64 {
	return timerResolutionNs()
}

// ReadTimer returns the current value of the platform timer, for Measurer
// implementations that time their own trials.
func ReadTimer() int64 {
	return int64(readTimer())
}
