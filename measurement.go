package dudect

import (
	"fmt"
	"math/rand/v2"
)

// Selector identifies which variant of a device under test a Measurer
// exercises, for measurers that serve several operations.
type Selector int

// Measurer runs the device under test once per trial and records the timer
// before and after each run.
//
// inputs holds len(before) trials of width bytes each. before and after have
// one entry per trial and are owned by the caller. A returned error is a hard
// failure of the whole batch.
type Measurer interface {
	Measure(sel Selector, inputs []byte, width int, before, after []int64) error
}

// MeasureFunc adapts a function to the Measurer interface.
type MeasureFunc func(sel Selector, inputs []byte, width int, before, after []int64) error

// Measure implements Measurer.
func (f MeasureFunc) Measure(sel Selector, inputs []byte, width int, before, after []int64) error {
	return f(sel, inputs, width, before, after)
}

// TickRater is implemented by measurers that know the frequency of the
// timestamps they produce. It lets results be expressed in nanoseconds.
type TickRater interface {
	TicksPerSecond() uint64
}

// Classifier fills a batch of inputs and labels every trial with its class
// (0 or 1). inputs holds len(classes) trials of width bytes each.
type Classifier interface {
	Prepare(inputs []byte, width int, classes []uint8)
}

// ClassifierFunc adapts a function to the Classifier interface.
type ClassifierFunc func(inputs []byte, width int, classes []uint8)

// Prepare implements Classifier.
func (f ClassifierFunc) Prepare(inputs []byte, width int, classes []uint8) {
	f(inputs, width, classes)
}

// Generator fills the input of one trial. isBaseline selects class 0,
// usually a fixed input; otherwise the input is for class 1, usually random.
type Generator interface {
	Generate(isBaseline bool, output []byte)
}

// Operation is the code under test, run once per trial.
type Operation interface {
	Execute(input []byte)
}

// GeneratorClassifier is a Classifier that balances the classes of every
// batch, shuffles their order, and lets a Generator fill each trial.
type GeneratorClassifier struct {
	gen Generator
	rng *rand.Rand
}

// NewGeneratorClassifier returns a classifier driven by gen. A zero seed
// draws the schedule from system entropy.
func NewGeneratorClassifier(gen Generator, seed uint64) *GeneratorClassifier {
	return &GeneratorClassifier{gen: gen, rng: newRand(seed)}
}

// Prepare implements Classifier.
func (g *GeneratorClassifier) Prepare(inputs []byte, width int, classes []uint8) {
	fillSchedule(classes, g.rng)
	for i, class := range classes {
		g.gen.Generate(class == 0, inputs[i*width:(i+1)*width])
	}
}

// fillSchedule assigns class 0 to the first half and class 1 to the rest,
// then applies a Fisher-Yates shuffle.
func fillSchedule(classes []uint8, rng *rand.Rand) {
	half := len(classes) / 2
	for i := range classes {
		if i < half {
			classes[i] = 0
		} else {
			classes[i] = 1
		}
	}
	for i := len(classes) - 1; i > 0; i-- {
		j := rng.IntN(i + 1)
		classes[i], classes[j] = classes[j], classes[i]
	}
}

// OperationMeasurer times a single Operation with the platform timer.
// The selector is ignored.
type OperationMeasurer struct {
	Op Operation
}

// Measure implements Measurer.
func (m OperationMeasurer) Measure(_ Selector, inputs []byte, width int, before, after []int64) error {
	timeOperation(m.Op, inputs, width, before, after)
	return nil
}

// TicksPerSecond implements TickRater.
func (m OperationMeasurer) TicksPerSecond() uint64 {
	return timerFrequency()
}

// OperationTable times the Operation at index sel, so one table can serve
// several registered targets.
type OperationTable []Operation

// Measure implements Measurer.
func (t OperationTable) Measure(sel Selector, inputs []byte, width int, before, after []int64) error {
	if sel < 0 || int(sel) >= len(t) || t[sel] == nil {
		return fmt.Errorf("no operation for selector %d", sel)
	}
	timeOperation(t[sel], inputs, width, before, after)
	return nil
}

// TicksPerSecond implements TickRater.
func (t OperationTable) TicksPerSecond() uint64 {
	return timerFrequency()
}

// timeOperation is the timed region. Inputs are prepared beforehand so only
// the operation itself runs between the two timer reads.
func timeOperation(op Operation, inputs []byte, width int, before, after []int64) {
	for i := range before {
		input := inputs[i*width : (i+1)*width]
		before[i] = int64(readTimer())
		op.Execute(input)
		after[i] = int64(readTimer())
	}
}

// warmer is implemented by measurers that can run their operation outside
// any measurement before the first try.
type warmer interface {
	warmup(sel Selector, inputSize, iterations int)
}

func (m OperationMeasurer) warmup(_ Selector, inputSize, iterations int) {
	warmupOperation(m.Op, inputSize, iterations)
}

func (t OperationTable) warmup(sel Selector, inputSize, iterations int) {
	if sel < 0 || int(sel) >= len(t) || t[sel] == nil {
		return
	}
	warmupOperation(t[sel], inputSize, iterations)
}

// warmupOperation runs op on a zero input so that caches, branch predictors
// and the CPU clock settle before the first timed batch.
func warmupOperation(op Operation, inputSize int, iterations int) {
	input := make([]byte, inputSize)
	for i := 0; i < iterations; i++ {
		op.Execute(input)
	}
}

// FuncGenerator builds a Generator from one function per class.
type FuncGenerator struct {
	BaselineFunc func(output []byte)
	SampleFunc   func(output []byte)
}

// Generate implements Generator.
func (g *FuncGenerator) Generate(isBaseline bool, output []byte) {
	if isBaseline {
		g.BaselineFunc(output)
	} else {
		g.SampleFunc(output)
	}
}

// FuncOperation adapts a function to the Operation interface.
type FuncOperation func(input []byte)

// Execute implements Operation.
func (f FuncOperation) Execute(input []byte) {
	f(input)
}

// ZeroGenerator fills class 0 inputs with zeros and class 1 inputs with
// random bytes.
type ZeroGenerator struct {
	rng *rand.Rand
}

// NewZeroGenerator returns a ZeroGenerator. A zero seed draws from system
// entropy.
func NewZeroGenerator(seed uint64) *ZeroGenerator {
	return &ZeroGenerator{rng: newRand(seed)}
}

// Generate implements Generator.
func (g *ZeroGenerator) Generate(isBaseline bool, output []byte) {
	if isBaseline {
		clear(output)
		return
	}
	for i := range output {
		output[i] = byte(g.rng.UintN(256))
	}
}

func newRand(seed uint64) *rand.Rand {
	if seed == 0 {
		return rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return rand.New(rand.NewPCG(seed, seed^0xDEADBEEF))
}
