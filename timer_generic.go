//go:build !amd64 && !arm64

package dudect

import (
	"sync"
	"time"
)

// Without a readable cycle counter, trials are timed with the monotonic
// clock. Its resolution is platform dependent and may be far coarser than
// the operations being measured.

// clockBase anchors readings so they stay small and positive.
var clockBase = time.Now()

func readTimer() uint64 {
	return uint64(time.Since(clockBase))
}

func timerName() string {
	return "monotonic clock"
}

// timerFrequency is fixed: readings are nanoseconds.
func timerFrequency() uint64 {
	return uint64(time.Second)
}

var (
	clockStepOnce sync.Once
	clockStep     time.Duration
)

// timerResolutionNs returns the smallest non-zero step between consecutive
// clock readings, measured once.
func timerResolutionNs() float64 {
	clockStepOnce.Do(func() {
		clockStep = time.Hour
		for i := 0; i < 1000; i++ {
			a := time.Since(clockBase)
			b := time.Since(clockBase)
			for b == a {
				b = time.Since(clockBase)
			}
			clockStep = min(clockStep, b-a)
		}
	})
	return float64(clockStep.Nanoseconds())
}
