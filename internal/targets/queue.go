package targets

import (
	"container/list"
	"encoding/binary"
	"fmt"

	"github.com/agucova/dudect"
)

// Queue selectors served by QueueMeasurer.
const (
	InsertHead dudect.Selector = iota
	InsertTail
	RemoveHead
	RemoveTail
)

// maxQueueLen bounds the queue length drawn from an input.
const maxQueueLen = 10_000

// queueInputSize is the per-trial input width of the queue targets. Only the
// first two bytes are used, as the queue length.
const queueInputSize = 16

var queueOps = []struct {
	Spec
	sel dudect.Selector
}{
	{Spec{"queue-insert-head", false, queueInputSize, "insert at the head of a linked-list queue"}, InsertHead},
	{Spec{"queue-insert-tail", false, queueInputSize, "insert at the tail of a linked-list queue"}, InsertTail},
	{Spec{"queue-remove-head", false, queueInputSize, "remove from the head of a linked-list queue"}, RemoveHead},
	{Spec{"queue-remove-tail", false, queueInputSize, "remove from the tail of a linked-list queue"}, RemoveTail},
}

// QueueMeasurer times one queue operation per trial. Before each trial the
// queue is resized to the length encoded in the first two input bytes, so
// class 0 (zero inputs) runs on an empty queue and class 1 on a queue of
// random length. Removals always find at least one element.
type QueueMeasurer struct {
	q     *list.List
	value string
}

// NewQueueMeasurer returns a measurer with an empty queue.
func NewQueueMeasurer() *QueueMeasurer {
	return &QueueMeasurer{q: list.New(), value: "dudect-queue-element"}
}

func queueLen(input []byte) int {
	return int(binary.LittleEndian.Uint16(input) % maxQueueLen)
}

func (m *QueueMeasurer) resize(n int) {
	for m.q.Len() > n {
		m.q.Remove(m.q.Back())
	}
	for m.q.Len() < n {
		m.q.PushBack(m.value)
	}
}

// Measure implements dudect.Measurer.
func (m *QueueMeasurer) Measure(sel dudect.Selector, inputs []byte, width int, before, after []int64) error {
	if width < 2 {
		return fmt.Errorf("queue inputs need at least 2 bytes, got %d", width)
	}
	for i := range before {
		n := queueLen(inputs[i*width : (i+1)*width])
		switch sel {
		case InsertHead:
			m.resize(n)
			before[i] = dudect.ReadTimer()
			m.q.PushFront(m.value)
			after[i] = dudect.ReadTimer()
		case InsertTail:
			m.resize(n)
			before[i] = dudect.ReadTimer()
			m.q.PushBack(m.value)
			after[i] = dudect.ReadTimer()
		case RemoveHead:
			m.resize(n + 1)
			before[i] = dudect.ReadTimer()
			sink = byte(len(m.q.Remove(m.q.Front()).(string)))
			after[i] = dudect.ReadTimer()
		case RemoveTail:
			m.resize(n + 1)
			before[i] = dudect.ReadTimer()
			sink = byte(len(m.q.Remove(m.q.Back()).(string)))
			after[i] = dudect.ReadTimer()
		default:
			return fmt.Errorf("unknown queue selector %d", sel)
		}
	}
	return nil
}

// TicksPerSecond implements dudect.TickRater.
func (m *QueueMeasurer) TicksPerSecond() uint64 {
	return dudect.TimerFrequency()
}

// Len returns the current queue length.
func (m *QueueMeasurer) Len() int {
	return m.q.Len()
}

func registerQueue(reg *dudect.Registry, seed uint64) error {
	for i, q := range queueOps {
		s := seed
		if s != 0 {
			s += uint64(len(operations) + i)
		}
		err := reg.Register(dudect.Target{
			Name:       q.Name,
			Selector:   q.sel,
			InputSize:  q.InputSize,
			Measurer:   NewQueueMeasurer(),
			Classifier: dudect.NewGeneratorClassifier(dudect.NewZeroGenerator(s), s),
		})
		if err != nil {
			return err
		}
	}
	return nil
}
