// Package check holds the numeric assertions applied to materialized blobs.
//
// Both assertions compare in the sequence's own element type T. Tolerances
// and thresholds arrive already converted to T; nothing is widened or
// narrowed here.
package check

import (
	"fmt"
	"strings"

	"github.com/roach88/planverify/internal/blob"
)

// maxReported caps how many mismatches ToleranceExceededError prints.
// All of them stay available in Failures.
const maxReported = 8

// Mismatch is one element that violated the tolerance.
type Mismatch struct {
	Index int     `json:"index"`
	Got   float64 `json:"got"`
	Want  float64 `json:"want"`
	Diff  float64 `json:"diff"`
}

// InvalidToleranceError is returned for a negative tolerance.
type InvalidToleranceError struct {
	Tolerance float64
}

func (e *InvalidToleranceError) Error() string {
	return fmt.Sprintf("invalid tolerance %v: must be >= 0", e.Tolerance)
}

// Kind implements Failure.
func (e *InvalidToleranceError) Kind() string { return "invalid_tolerance" }

// LengthMismatchError is returned when the sequences differ in length.
// No element has been compared when it is returned.
type LengthMismatchError struct {
	Got  int
	Want int
}

func (e *LengthMismatchError) Error() string {
	return fmt.Sprintf("length mismatch: got %d elements, want %d", e.Got, e.Want)
}

// Kind implements Failure.
func (e *LengthMismatchError) Kind() string { return "length_mismatch" }

// ToleranceExceededError lists every index where |got-want| > tolerance,
// in ascending index order.
type ToleranceExceededError struct {
	Tolerance float64
	Failures  []Mismatch
}

func (e *ToleranceExceededError) Error() string {
	var buf strings.Builder
	fmt.Fprintf(&buf, "tolerance %v exceeded at %d index(es):", e.Tolerance, len(e.Failures))
	for i, m := range e.Failures {
		if i == maxReported {
			fmt.Fprintf(&buf, " ... (%d more)", len(e.Failures)-maxReported)
			break
		}
		fmt.Fprintf(&buf, " [%d] got %v want %v (diff %v)", m.Index, m.Got, m.Want, m.Diff)
	}
	return buf.String()
}

// Kind implements Failure.
func (e *ToleranceExceededError) Kind() string { return "tolerance_exceeded" }

// First returns the lowest failing index.
func (e *ToleranceExceededError) First() Mismatch {
	return e.Failures[0]
}

// Indices returns the failing indices.
func (e *ToleranceExceededError) Indices() []int {
	out := make([]int, len(e.Failures))
	for i, m := range e.Failures {
		out[i] = m.Index
	}
	return out
}

// SizeError is returned by Above when the sequence is not a single element.
type SizeError struct {
	Got int
}

func (e *SizeError) Error() string {
	return fmt.Sprintf("size mismatch: expected exactly 1 element, got %d", e.Got)
}

// Kind implements Failure.
func (e *SizeError) Kind() string { return "size" }

// ThresholdNotMetError is returned when the value is not strictly above the
// threshold.
type ThresholdNotMetError struct {
	Value     float64
	Threshold float64
}

func (e *ThresholdNotMetError) Error() string {
	return fmt.Sprintf("threshold not met: %v is not > %v", e.Value, e.Threshold)
}

// Kind implements Failure.
func (e *ThresholdNotMetError) Kind() string { return "threshold_not_met" }

// Failure is implemented by every error this package returns.
type Failure interface {
	error
	Kind() string
}

// Within asserts |a[i] - b[i]| <= eps for every i.
//
// a is the computed sequence and b the reference. Lengths are checked before
// any element; every failing index is collected, not just the first.
// NaN on either side never satisfies the bound.
func Within[T blob.Number](a, b []T, eps T) error {
	if eps < 0 {
		return &InvalidToleranceError{Tolerance: float64(eps)}
	}

	if len(a) != len(b) {
		return &LengthMismatchError{Got: len(a), Want: len(b)}
	}

	var failures []Mismatch
	for i := range a {
		diff := absDiff(a[i], b[i])
		// Written as !(diff <= eps) so NaN fails. A negative diff is integer
		// overflow, which is never within tolerance.
		if !(diff <= eps) || diff < 0 {
			failures = append(failures, Mismatch{
				Index: i,
				Got:   float64(a[i]),
				Want:  float64(b[i]),
				Diff:  float64(diff),
			})
		}
	}

	if len(failures) > 0 {
		return &ToleranceExceededError{Tolerance: float64(eps), Failures: failures}
	}
	return nil
}

// Above asserts values holds exactly one element and that it is strictly
// greater than theta.
func Above[T blob.Number](values []T, theta T) error {
	if len(values) != 1 {
		return &SizeError{Got: len(values)}
	}

	if !(values[0] > theta) {
		return &ThresholdNotMetError{Value: float64(values[0]), Threshold: float64(theta)}
	}
	return nil
}

// absDiff computes |x - y| in T. Subtracting the smaller from the larger
// keeps integer types from going negative.
func absDiff[T blob.Number](x, y T) T {
	if x > y {
		return x - y
	}
	if y > x {
		return y - x
	}
	if x == y {
		return 0
	}
	// Unordered: at least one NaN. x - y propagates it.
	return x - y
}
