package harness

import (
	"context"
	"fmt"

	"github.com/roach88/planverify/internal/blob"
	"github.com/roach88/planverify/internal/check"
	"github.com/roach88/planverify/internal/materialize"
)

// evaluate materializes outputs to host and applies the scenario assertion.
// outputs have already been checked against s.DType.
func evaluate(ctx context.Context, s Scenario, outputs []*blob.Blob) error {
	switch s.DType {
	case blob.Float32:
		return evaluateT[float32](ctx, s, outputs)
	case blob.Float64:
		return evaluateT[float64](ctx, s, outputs)
	case blob.Int32:
		return evaluateT[int32](ctx, s, outputs)
	case blob.Int64:
		return evaluateT[int64](ctx, s, outputs)
	default:
		return &InvalidScenarioError{Scenario: s.Name, Err: fmt.Errorf("unsupported dtype %s", s.DType)}
	}
}

func evaluateT[T blob.Number](ctx context.Context, s Scenario, outputs []*blob.Blob) error {
	host := make([][]T, len(outputs))
	for i, b := range outputs {
		buf, err := materialize.ToHost[T](ctx, b)
		if err != nil {
			return fmt.Errorf("output %q: %w", s.Outputs[i].Blob, err)
		}
		host[i] = buf.Values()
	}

	switch s.Assertion {
	case AssertTolerance:
		eps, err := check.Param[T](s.Tolerance)
		if err != nil {
			return &InvalidScenarioError{Scenario: s.Name, Err: fmt.Errorf("tolerance: %w", err)}
		}
		return check.Within(host[0], host[1], eps)
	case AssertThreshold:
		theta, err := check.Param[T](s.Threshold)
		if err != nil {
			return &InvalidScenarioError{Scenario: s.Name, Err: fmt.Errorf("threshold: %w", err)}
		}
		return check.Above(host[0], theta)
	default:
		return &InvalidScenarioError{Scenario: s.Name, Err: fmt.Errorf("unknown assertion kind %q", s.Assertion)}
	}
}
