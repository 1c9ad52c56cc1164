//go:build arm64

package dudect

import "sync"

// Implemented in timer_arm64.s.
func cntvct() uint64
func cntfrq() uint64

// readTimer reads the virtual counter CNTVCT_EL0. The ISB in front of the
// read keeps it from being hoisted above the operation under test.
func readTimer() uint64 {
	return cntvct()
}

func timerName() string {
	return "cntvct_el0"
}

var (
	cntfrqOnce sync.Once
	cntfrqHz   uint64
)

// timerFrequency returns CNTFRQ_EL0, read once.
func timerFrequency() uint64 {
	cntfrqOnce.Do(func() {
		cntfrqHz = cntfrq()
	})
	return cntfrqHz
}

// timerResolutionNs is one counter period: about 41.7 ns for the 24 MHz
// counter of Apple silicon, 1 ns for a 1 GHz counter.
func timerResolutionNs() float64 {
	freq := timerFrequency()
	if freq == 0 {
		// Firmware left CNTFRQ_EL0 unset; assume the 24 MHz counter.
		return 1e9 / 24e6
	}
	return 1e9 / float64(freq)
}
