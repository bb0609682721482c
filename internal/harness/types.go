package harness

import (
	"errors"
	"fmt"
	"strings"

	"github.com/roach88/planverify/internal/blob"
	"github.com/roach88/planverify/internal/check"
	"github.com/roach88/planverify/internal/materialize"
	"github.com/roach88/planverify/internal/plan"
	"github.com/roach88/planverify/internal/workspace"
)

// FailureKind classifies why a scenario failed.
type FailureKind string

// Failure kinds, one per error in the taxonomy.
const (
	KindNone              FailureKind = ""
	KindInvalidScenario   FailureKind = "invalid_scenario"
	KindLoad              FailureKind = "load"
	KindRun               FailureKind = "run"
	KindBlobAbsent        FailureKind = "blob_absent"
	KindTypeMismatch      FailureKind = "type_mismatch"
	KindBackendMismatch   FailureKind = "backend_mismatch"
	KindTransfer          FailureKind = "transfer"
	KindLengthMismatch    FailureKind = "length_mismatch"
	KindToleranceExceeded FailureKind = "tolerance_exceeded"
	KindSize              FailureKind = "size"
	KindThresholdNotMet   FailureKind = "threshold_not_met"
)

// BlobAbsentError is returned when a scenario output was never produced.
type BlobAbsentError struct {
	Blob      string
	Available []string
}

func (e *BlobAbsentError) Error() string {
	if len(e.Available) == 0 {
		return fmt.Sprintf("blob %q absent: workspace is empty", e.Blob)
	}
	return fmt.Sprintf("blob %q absent (workspace has: %s)", e.Blob, strings.Join(e.Available, ", "))
}

// InvalidScenarioError is returned when a scenario definition is unusable.
type InvalidScenarioError struct {
	Scenario string
	Err      error
}

func (e *InvalidScenarioError) Error() string {
	return fmt.Sprintf("invalid scenario %q: %v", e.Scenario, e.Err)
}

func (e *InvalidScenarioError) Unwrap() error {
	return e.Err
}

// Classify maps an error from a scenario run to its FailureKind.
//
// Load and run errors are matched first: a run error may wrap a type
// mismatch raised inside an operator, and that is still a run failure.
func Classify(err error) FailureKind {
	if err == nil {
		return KindNone
	}

	var (
		loadErr      *plan.LoadError
		runErr       *workspace.RunError
		absentErr    *BlobAbsentError
		invalidErr   *InvalidScenarioError
		transferErr  *materialize.TransferError
		typeErr      *blob.TypeMismatchError
		backendErr   *blob.BackendMismatchError
		lengthErr    *check.LengthMismatchError
		toleranceErr *check.ToleranceExceededError
		sizeErr      *check.SizeError
		thresholdErr *check.ThresholdNotMetError
	)

	switch {
	case errors.As(err, &loadErr):
		return KindLoad
	case errors.As(err, &runErr):
		return KindRun
	case errors.As(err, &invalidErr):
		return KindInvalidScenario
	case errors.As(err, &absentErr):
		return KindBlobAbsent
	case errors.As(err, &transferErr):
		return KindTransfer
	case errors.As(err, &typeErr):
		return KindTypeMismatch
	case errors.As(err, &backendErr):
		return KindBackendMismatch
	case errors.As(err, &lengthErr):
		return KindLengthMismatch
	case errors.As(err, &toleranceErr):
		return KindToleranceExceeded
	case errors.As(err, &sizeErr):
		return KindSize
	case errors.As(err, &thresholdErr):
		return KindThresholdNotMet
	default:
		return KindRun
	}
}

// Result is the outcome of one scenario run.
type Result struct {
	// Scenario is the scenario name.
	Scenario string `json:"scenario"`

	// RunID uniquely identifies this execution (UUIDv7).
	RunID string `json:"run_id"`

	// Pass is true only if every step and the assertion succeeded.
	Pass bool `json:"pass"`

	// Kind classifies the failure. Empty when Pass is true.
	Kind FailureKind `json:"kind,omitempty"`

	// Message is the human-readable cause. Empty when Pass is true.
	Message string `json:"message,omitempty"`

	// Cause is the underlying error, for errors.As by callers.
	Cause error `json:"-"`
}

// fail records err as the result's cause.
func (r *Result) fail(err error) {
	r.Pass = false
	r.Cause = err
	r.Kind = Classify(err)
	r.Message = err.Error()
}

// Report aggregates results from RunAll, in execution order.
type Report struct {
	Results []Result `json:"results"`
	Passed  int      `json:"passed"`
	Failed  int      `json:"failed"`
	Total   int      `json:"total"`
}

// Add appends a result and updates the counters.
func (r *Report) Add(res Result) {
	r.Results = append(r.Results, res)
	r.Total++
	if res.Pass {
		r.Passed++
	} else {
		r.Failed++
	}
}

// OK reports whether every scenario passed.
func (r *Report) OK() bool {
	return r.Failed == 0
}
