package workspace

import (
	"context"
	"sort"

	"github.com/roach88/planverify/internal/blob"
	"github.com/roach88/planverify/internal/device"
	"github.com/roach88/planverify/internal/plan"
)

// OpContext is what a kernel sees: the op, its resolved inputs, and where
// its outputs must be placed.
type OpContext struct {
	Op     plan.Op
	Inputs []*blob.Blob

	// Target is the backend outputs must reside on.
	Target blob.Backend

	// Device is the accelerator, nil when none is configured.
	Device device.Device
}

// Kernel executes one op and returns its outputs, one per name in
// Op.Outputs, in order. Kernels must not modify their inputs.
type Kernel func(ctx context.Context, oc *OpContext) ([]*blob.Blob, error)

// Registry maps op type names to kernels.
type Registry struct {
	kernels map[string]Kernel
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{kernels: make(map[string]Kernel)}
}

// Register adds or replaces the kernel for name.
func (r *Registry) Register(name string, k Kernel) {
	r.kernels[name] = k
}

// Lookup returns the kernel for name.
func (r *Registry) Lookup(name string) (Kernel, bool) {
	k, ok := r.kernels[name]
	return k, ok
}

// Names returns the registered op types, sorted.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.kernels))
	for name := range r.kernels {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// DefaultRegistry returns a registry holding the built-in operators.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	r.Register("GivenTensorFill", givenTensorFill)
	r.Register("ConstantFill", constantFill)
	r.Register("CreateBlob", createBlob)
	r.Register("Copy", copyBlob)
	r.Register("CopyHostToAccelerator", copyTo(blob.Host, blob.Accelerator))
	r.Register("CopyAcceleratorToHost", copyTo(blob.Accelerator, blob.Host))
	r.Register("Add", arithmetic)
	r.Register("Sub", arithmetic)
	r.Register("Mul", arithmetic)
	r.Register("Scale", scale)
	r.Register("WeightedSum", weightedSum)
	r.Register("Accuracy", accuracy)
	r.Register("AveragedLoss", averagedLoss)
	return r
}
