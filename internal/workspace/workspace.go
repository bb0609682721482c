// Package workspace is the execution context a plan runs in.
//
// A Workspace owns a set of named blobs. RunPlan executes a plan's operators
// against them; GetBlob retrieves results afterwards. A workspace is created
// for one scenario and closed when the scenario ends. Nothing is shared
// between workspaces except, optionally, the accelerator device the caller
// passes in.
package workspace

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sort"

	"golang.org/x/text/unicode/norm"

	"github.com/roach88/planverify/internal/blob"
	"github.com/roach88/planverify/internal/device"
	"github.com/roach88/planverify/internal/plan"
)

// Workspace owns named blobs and executes plans against them.
//
// A Workspace is not safe for concurrent use.
type Workspace struct {
	blobs    map[string]*blob.Blob
	dev      device.Device
	registry *Registry
	logger   *slog.Logger
	closed   bool
}

// Option configures a Workspace.
type Option func(*Workspace)

// WithDevice attaches the accelerator backend. The workspace uses it but
// does not close it; the caller owns the device.
func WithDevice(dev device.Device) Option {
	return func(w *Workspace) { w.dev = dev }
}

// WithLogger sets the logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(w *Workspace) { w.logger = logger }
}

// WithRegistry replaces the default operator set.
func WithRegistry(r *Registry) Option {
	return func(w *Workspace) { w.registry = r }
}

// New creates an empty workspace.
func New(opts ...Option) *Workspace {
	w := &Workspace{
		blobs:    make(map[string]*blob.Blob),
		registry: DefaultRegistry(),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// RunPlan executes p's steps in order, each for its iteration count.
//
// On failure it returns a *RunError locating the failing op. Blobs written
// before the failure remain in the workspace; callers that get an error
// should not inspect them.
func (w *Workspace) RunPlan(ctx context.Context, p *plan.Plan) error {
	if w.closed {
		return &RunError{Plan: p.Name, Err: ErrClosed}
	}

	w.logger.Debug("running plan", "plan", p.Name, "steps", len(p.Steps), "ops", p.NumOps())

	for _, step := range p.Steps {
		for iter := 0; iter < step.Iterations; iter++ {
			for i, op := range step.Ops {
				if err := ctx.Err(); err != nil {
					return &RunError{Plan: p.Name, Step: step.Name, Iteration: iter, Index: i, Op: op.Type, Err: err}
				}

				if err := w.runOp(ctx, op); err != nil {
					return &RunError{Plan: p.Name, Step: step.Name, Iteration: iter, Index: i, Op: op.Type, Err: err}
				}
			}
		}
		w.logger.Debug("step completed", "plan", p.Name, "step", step.Name, "iterations", step.Iterations)
	}

	return nil
}

// runOp resolves inputs, invokes the kernel, and stores its outputs.
func (w *Workspace) runOp(ctx context.Context, op plan.Op) error {
	kernel, ok := w.registry.Lookup(op.Type)
	if !ok {
		return fmt.Errorf("%w %q", ErrUnknownOp, op.Type)
	}

	inputs := make([]*blob.Blob, len(op.Inputs))
	for i, name := range op.Inputs {
		b, ok := w.GetBlob(name)
		if !ok {
			return fmt.Errorf("%w %q", ErrMissingInput, name)
		}
		inputs[i] = b
	}

	target := blob.Host
	switch {
	case op.HasBackend:
		target = op.Backend
	case len(inputs) > 0:
		target = inputs[0].Backend()
	}
	if target == blob.Accelerator && w.dev == nil {
		return ErrNoDevice
	}

	oc := &OpContext{Op: op, Inputs: inputs, Target: target, Device: w.dev}
	outputs, err := invoke(ctx, kernel, oc)
	if err != nil {
		return err
	}

	if len(outputs) != len(op.Outputs) {
		// Release what the kernel allocated before reporting.
		for _, b := range outputs {
			_ = b.Release(ctx)
		}
		return opErrorf(op.Type, "kernel produced %d outputs, plan names %d", len(outputs), len(op.Outputs))
	}

	for i, name := range op.Outputs {
		if err := w.put(ctx, name, outputs[i]); err != nil {
			return err
		}
	}
	return nil
}

// invoke calls kernel and reports a panic as an *OpError.
func invoke(ctx context.Context, kernel Kernel, oc *OpContext) (outputs []*blob.Blob, err error) {
	defer func() {
		if r := recover(); r != nil {
			outputs = nil
			err = opErrorf(oc.Op.Type, "panic: %v", r)
		}
	}()
	return kernel(ctx, oc)
}

// put stores b under name, releasing any blob it replaces.
func (w *Workspace) put(ctx context.Context, name string, b *blob.Blob) error {
	if old, ok := w.blobs[name]; ok && old != b {
		if err := old.Release(ctx); err != nil {
			return fmt.Errorf("replace blob %q: %w", name, err)
		}
	}
	w.blobs[name] = b
	return nil
}

// GetBlob returns the blob stored under name. A missing blob is reported
// with ok == false, never as an error.
func (w *Workspace) GetBlob(name string) (*blob.Blob, bool) {
	b, ok := w.blobs[norm.NFC.String(name)]
	return b, ok
}

// Blobs returns the names of all blobs, sorted.
func (w *Workspace) Blobs() []string {
	names := make([]string, 0, len(w.blobs))
	for name := range w.blobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Close releases every blob, returning device buffers to their device.
// It is safe to call more than once.
func (w *Workspace) Close() error {
	if w.closed {
		return nil
	}
	w.closed = true

	var errs []error
	for _, name := range w.Blobs() {
		if err := w.blobs[name].Release(context.Background()); err != nil {
			errs = append(errs, err)
		}
	}
	w.blobs = map[string]*blob.Blob{}
	return errors.Join(errs...)
}
