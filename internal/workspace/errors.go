package workspace

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOp indicates an op type with no registered kernel.
	ErrUnknownOp = errors.New("unknown op")

	// ErrMissingInput indicates an op input that no earlier op produced.
	ErrMissingInput = errors.New("missing input blob")

	// ErrClosed is returned by RunPlan on a closed workspace.
	ErrClosed = errors.New("workspace closed")

	// ErrNoDevice indicates accelerator placement in a workspace created
	// without a device.
	ErrNoDevice = errors.New("accelerator placement requested but no device configured")
)

// RunError is returned when a plan fails to execute. It locates the failing
// operator: step name, iteration, and op index within the step.
type RunError struct {
	Plan      string
	Step      string
	Iteration int
	Index     int
	Op        string
	Err       error
}

func (e *RunError) Error() string {
	if e.Op == "" {
		return fmt.Sprintf("run plan %s: %v", e.Plan, e.Err)
	}
	return fmt.Sprintf("run plan %s: step %s (iter %d) op[%d] %s: %v",
		e.Plan, e.Step, e.Iteration, e.Index, e.Op, e.Err)
}

func (e *RunError) Unwrap() error {
	return e.Err
}

// OpError describes an operator rejecting its inputs or parameters.
type OpError struct {
	Op      string
	Message string
}

func (e *OpError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Message)
}

func opErrorf(op, format string, args ...any) *OpError {
	return &OpError{Op: op, Message: fmt.Sprintf(format, args...)}
}
