package plan

import (
	"fmt"
)

// fillOps produce data from parameters alone and take no inputs.
var fillOps = map[string]bool{
	"GivenTensorFill": true,
	"ConstantFill":    true,
	"CreateBlob":      true,
}

// Validate checks the structural rules every plan must satisfy. Operator
// semantics (known types, input arity, dtypes) are checked by the workspace
// when the plan runs.
func Validate(p *Plan) error {
	if len(p.Steps) == 0 {
		return fmt.Errorf("plan has no steps")
	}

	for i, step := range p.Steps {
		if step.Iterations < 0 {
			return fmt.Errorf("steps[%d] (%s): iterations must be non-negative, got %d", i, step.Name, step.Iterations)
		}
		if len(step.Ops) == 0 {
			return fmt.Errorf("steps[%d] (%s): ops list is required and must be non-empty", i, step.Name)
		}

		for j, op := range step.Ops {
			if err := validateOp(op); err != nil {
				return fmt.Errorf("steps[%d] (%s).ops[%d]: %w", i, step.Name, j, err)
			}
		}
	}

	return nil
}

func validateOp(op Op) error {
	if op.Type == "" {
		return fmt.Errorf("type is required")
	}

	if len(op.Outputs) == 0 {
		return fmt.Errorf("%s: at least one output is required", op.Type)
	}
	for _, name := range append(append([]string{}, op.Inputs...), op.Outputs...) {
		if name == "" {
			return fmt.Errorf("%s: blob names must be non-empty", op.Type)
		}
	}

	if fillOps[op.Type] && len(op.Inputs) > 0 {
		return fmt.Errorf("%s takes no inputs, got %d", op.Type, len(op.Inputs))
	}

	// Bound the shape before any kernel allocates from it
	size, err := CheckShape(op.Shape)
	if err != nil {
		return fmt.Errorf("%s: %w", op.Type, err)
	}

	if op.Type == "GivenTensorFill" {
		want := len(op.Values)
		if len(op.Shape) > 0 {
			want = size
		}
		if len(op.Values) != want {
			return fmt.Errorf("GivenTensorFill: %d values do not fill shape %v (%d elements)", len(op.Values), op.Shape, want)
		}
	}

	return nil
}
