package dudect

import (
	"fmt"
	"sort"
	"sync"
)

// DefaultInputSize is the per-trial input width used when a target leaves
// InputSize at zero.
const DefaultInputSize = 16

// Target is a device under test together with the providers that feed and
// time it.
type Target struct {
	// Name identifies the target in a Registry and in results.
	Name string
	// Selector is passed to the Measurer unchanged.
	Selector Selector
	// InputSize is the per-trial input width in bytes. Zero means
	// DefaultInputSize.
	InputSize int
	// Measurer times the target.
	Measurer Measurer
	// Classifier prepares inputs and assigns classes.
	Classifier Classifier
}

// NewOperationTarget returns a target that times op with the platform timer
// and draws its inputs from gen.
func NewOperationTarget(name string, op Operation, gen Generator, inputSize int, seed uint64) Target {
	return Target{
		Name:       name,
		InputSize:  inputSize,
		Measurer:   OperationMeasurer{Op: op},
		Classifier: NewGeneratorClassifier(gen, seed),
	}
}

func (t Target) normalize() (Target, error) {
	switch {
	case t.Name == "":
		return t, fmt.Errorf("%w: empty name", ErrInvalidTarget)
	case t.Measurer == nil:
		return t, fmt.Errorf("%w: %s: no measurer", ErrInvalidTarget, t.Name)
	case t.Classifier == nil:
		return t, fmt.Errorf("%w: %s: no classifier", ErrInvalidTarget, t.Name)
	case t.InputSize < 0:
		return t, fmt.Errorf("%w: %s: negative input size %d", ErrInvalidTarget, t.Name, t.InputSize)
	}
	if t.InputSize == 0 {
		t.InputSize = DefaultInputSize
	}
	return t, nil
}

// Registry is a named set of targets. It is safe for concurrent use.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]Target
	order   []string
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{targets: make(map[string]Target)}
}

// Register adds t. Names must be unique.
func (r *Registry) Register(t Target) error {
	t, err := t.normalize()
	if err != nil {
		return err
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, dup := r.targets[t.Name]; dup {
		return fmt.Errorf("%w: %s is already registered", ErrInvalidTarget, t.Name)
	}
	r.targets[t.Name] = t
	r.order = append(r.order, t.Name)
	return nil
}

// MustRegister is like Register but panics on error.
func (r *Registry) MustRegister(t Target) {
	if err := r.Register(t); err != nil {
		panic(err)
	}
}

// Lookup returns the target registered under name.
func (r *Registry) Lookup(name string) (Target, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.targets[name]
	if !ok {
		return Target{}, fmt.Errorf("%w: %q", ErrUnknownTarget, name)
	}
	return t, nil
}

// Names returns the registered names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	sort.Strings(names)
	return names
}

// Targets returns the targets in registration order.
func (r *Registry) Targets() []Target {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Target, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.targets[name])
	}
	return out
}

// Len returns the number of registered targets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.order)
}
