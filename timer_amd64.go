//go:build amd64

package dudect

import (
	"slices"
	"sync"
	"time"
)

// rdtsc executes LFENCE; RDTSC so the read is not reordered before earlier
// instructions. Implemented in timer_amd64.s.
func rdtsc() uint64

func readTimer() uint64 {
	return rdtsc()
}

func timerName() string {
	return "rdtsc"
}

var (
	tscOnce      sync.Once
	tscFrequency uint64
)

// timerFrequency returns the TSC frequency in Hz, calibrated on first use.
// Only the conversion of results to nanoseconds depends on it.
func timerFrequency() uint64 {
	tscOnce.Do(func() {
		tscFrequency = calibrateTSC(5, 10*time.Millisecond)
	})
	return tscFrequency
}

// calibrateTSC counts TSC ticks across rounds sleeps of d against the
// monotonic clock and returns the median rate.
func calibrateTSC(rounds int, d time.Duration) uint64 {
	rates := make([]uint64, rounds)
	for i := range rates {
		t0 := time.Now()
		c0 := rdtsc()
		time.Sleep(d)
		c1 := rdtsc()
		rates[i] = uint64(float64(c1-c0) / time.Since(t0).Seconds())
	}
	slices.Sort(rates)
	return rates[rounds/2]
}

// timerResolutionNs is one TSC period, well under a nanosecond on current
// hardware.
func timerResolutionNs() float64 {
	freq := timerFrequency()
	if freq == 0 {
		return 1
	}
	return 1e9 / float64(freq)
}
