package dudect

import (
	"math"
	"math/rand/v2"
)

// synthetic is a Target whose classifier stores the class in the first input
// byte and whose measurer draws execution times from a normal distribution,
// shifted by Shift ticks for class 1 while Leaking is set. One trial in
// OutlierEvery, of either class, gets up to OutlierScale extra ticks.
type synthetic struct {
	rng          *rand.Rand
	Mean         float64
	StdDev       float64
	Shift        float64
	Leaking      bool
	OutlierEvery int
	OutlierScale float64
	Calls        int
}

func newSynthetic(seed uint64, shift float64) *synthetic {
	return &synthetic{
		rng:     rand.New(rand.NewPCG(seed, seed^0xDEADBEEF)),
		Mean:    10_000,
		StdDev:  50,
		Shift:   shift,
		Leaking: shift != 0,
	}
}

func (s *synthetic) Prepare(inputs []byte, width int, classes []uint8) {
	fillSchedule(classes, s.rng)
	for i, c := range classes {
		inputs[i*width] = c
	}
}

func (s *synthetic) Measure(_ Selector, inputs []byte, width int, before, after []int64) error {
	s.Calls++
	var clock int64 = 1 << 20
	for i := range before {
		d := s.Mean + s.StdDev*s.rng.NormFloat64()
		if s.Leaking && inputs[i*width] == 1 {
			d += s.Shift
		}
		if s.OutlierEvery > 0 && s.rng.IntN(s.OutlierEvery) == 0 {
			d += s.OutlierScale * s.rng.Float64()
		}
		before[i] = clock
		clock += int64(math.Max(1, math.Round(d)))
		after[i] = clock
		clock += 7
	}
	return nil
}

func (s *synthetic) target(name string) Target {
	return Target{Name: name, Measurer: s, Classifier: s}
}
