// Package plan loads computation-plan descriptions from disk.
//
// A plan is an ordered list of steps. Each step runs its operators a fixed
// number of times, in order. The harness treats a plan as opaque: it hands
// it to a workspace and only inspects the blobs that come out.
//
// # File Formats
//
// The format is chosen by file extension. All three encode the same model:
//
//	# toy_regression.yaml
//	name: toy_regression
//	steps:
//	  - name: init
//	    ops:
//	      - type: GivenTensorFill
//	        outputs: [W_gt]
//	        shape: [3]
//	        values: [1.003, 1.998, 3.004]
//	  - name: train
//	    iterations: 100
//	    ops:
//	      - type: Sub
//	        inputs: [W, W_gt]
//	        outputs: [grad]
//
// CUE (.cue) files use the same field names; HCL (.hcl) files express steps
// and ops as labelled blocks:
//
//	step "init" {
//	  op "GivenTensorFill" {
//	    outputs = ["W_gt"]
//	    shape   = [3]
//	    values  = [1.003, 1.998, 3.004]
//	  }
//	}
package plan

import (
	"fmt"

	"github.com/roach88/planverify/internal/blob"
)

// MaxElements caps the element count of a single shape (256Mi elements,
// 1 GiB of float32).
const MaxElements = 1 << 28

// Plan is an immutable, backend-independent computation description.
type Plan struct {
	Name  string
	Steps []Step
}

// Step runs Ops, in order, Iterations times.
type Step struct {
	Name       string
	Iterations int
	Ops        []Op
}

// Op is one operator invocation. Which fields matter depends on Type; the
// workspace's operator registry interprets them.
type Op struct {
	Type    string
	Inputs  []string
	Outputs []string

	// Backend is where the op places its outputs. When HasBackend is false
	// the outputs follow the first input (or the host, for fill ops).
	Backend    blob.Backend
	HasBackend bool

	// DType, Shape, Values and Value parameterize fill operators.
	DType  blob.DType
	Shape  []int
	Values []float64
	Value  float64

	// Scale is the factor for Scale (defaults to 1).
	Scale float64
}

// NumOps returns the number of operator invocations the plan performs,
// counting step iterations.
func (p *Plan) NumOps() int {
	total := 0
	for _, s := range p.Steps {
		total += s.Iterations * len(s.Ops)
	}
	return total
}

// ShapeSize returns the element count implied by shape. An empty shape is a
// scalar (one element). The shape must already have passed CheckShape.
func ShapeSize(shape []int) int {
	n := 1
	for _, d := range shape {
		n *= d
	}
	return n
}

// CheckShape returns the element count implied by shape.
//
// Returns an error if any dimension is negative or the count exceeds
// MaxElements. The product is bounded before each multiplication, so
// dimensions whose product would overflow int are rejected rather than
// wrapped.
func CheckShape(shape []int) (int, error) {
	// Negative dimensions first: a zero elsewhere must not hide them.
	for _, d := range shape {
		if d < 0 {
			return 0, fmt.Errorf("negative dimension in shape %v", shape)
		}
	}

	// Any zero dimension makes the shape empty, however large the rest.
	for _, d := range shape {
		if d == 0 {
			return 0, nil
		}
	}

	n := 1
	for _, d := range shape {
		if n > MaxElements/d {
			return 0, fmt.Errorf("shape %v exceeds %d elements", shape, MaxElements)
		}
		n *= d
	}
	return n, nil
}
