// Package targets holds the built-in devices under test of the dudect CLI:
// reference operations that are known to be constant time or known to leak,
// and the queue operations of a linked-list queue.
package targets

import (
	"crypto/subtle"

	"golang.org/x/crypto/curve25519"

	"github.com/agucova/dudect"
)

// secret is the value compared against. Class 0 inputs are all zero, so the
// comparisons below see equal data for class 0 and differing data for class 1.
var secret = make([]byte, 32)

var sink byte

func xorBytes(input []byte) {
	var acc byte
	for i := range input {
		acc |= input[i] ^ secret[i%len(secret)]
	}
	sink = acc
}

func earlyExitCompare(input []byte) {
	for i := range input {
		if input[i] != secret[i%len(secret)] {
			sink = 0
			return
		}
	}
	sink = 1
}

func subtleCompare(input []byte) {
	sink = byte(subtle.ConstantTimeCompare(input, secret[:len(input)]))
}

// artificialDelay spins in proportion to the number of non-zero bytes.
func artificialDelay(input []byte) {
	count := 0
	for _, b := range input {
		if b != 0 {
			count++
		}
	}
	x := uint64(count)
	for i := 0; i < count*100; i++ {
		x = x*6364136223846793005 + 1
	}
	sink = byte(x)
}

func x25519(input []byte) {
	out, err := curve25519.X25519(input, curve25519.Basepoint)
	if err == nil {
		sink = out[0]
	}
}

// Spec describes a built-in target.
type Spec struct {
	Name string
	// Leaky is true for targets whose execution time depends on the input.
	Leaky     bool
	InputSize int
	Summary   string
}

var operations = []struct {
	Spec
	op dudect.FuncOperation
}{
	{Spec{"xor", false, 32, "xor with a fixed secret"}, xorBytes},
	{Spec{"subtle-compare", false, 32, "crypto/subtle.ConstantTimeCompare"}, subtleCompare},
	{Spec{"early-exit-compare", true, 32, "byte comparison returning at the first mismatch"}, earlyExitCompare},
	{Spec{"artificial-delay", true, 32, "busy loop proportional to the non-zero bytes"}, artificialDelay},
	{Spec{"x25519", false, curve25519.ScalarSize, "X25519 scalar multiplication of the base point"}, x25519},
}

// Specs returns the descriptions of every built-in target.
func Specs() []Spec {
	out := make([]Spec, 0, len(operations)+len(queueOps))
	for _, o := range operations {
		out = append(out, o.Spec)
	}
	for _, q := range queueOps {
		out = append(out, q.Spec)
	}
	return out
}

// Register adds every built-in target to reg. seed drives the class
// schedules and the random inputs; zero uses system entropy.
func Register(reg *dudect.Registry, seed uint64) error {
	for i, o := range operations {
		s := seed
		if s != 0 {
			s += uint64(i)
		}
		t := dudect.NewOperationTarget(o.Name, o.op, dudect.NewZeroGenerator(s), o.InputSize, s)
		if err := reg.Register(t); err != nil {
			return err
		}
	}
	return registerQueue(reg, seed)
}

// NewRegistry returns a registry holding every built-in target.
func NewRegistry(seed uint64) (*dudect.Registry, error) {
	reg := dudect.NewRegistry()
	if err := Register(reg, seed); err != nil {
		return nil, err
	}
	return reg, nil
}
