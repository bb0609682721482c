package harness

import (
	"bytes"
	"fmt"
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/roach88/planverify/internal/blob"
)

// AssertionKind selects how a scenario's outputs are judged.
type AssertionKind string

// Assertion kinds.
const (
	// AssertTolerance compares Outputs[0] against Outputs[1] element-wise.
	AssertTolerance AssertionKind = "tolerance"

	// AssertThreshold requires Outputs[0] to be one element > Threshold.
	AssertThreshold AssertionKind = "threshold"
)

// Output names a blob the scenario inspects and where it must reside.
type Output struct {
	// Blob is the blob name in the workspace.
	Blob string `yaml:"blob" json:"blob"`

	// Backend is where the blob is expected. Defaults to host.
	Backend blob.Backend `yaml:"backend,omitempty" json:"backend"`
}

// Scenario is one self-contained validation case: a plan, the outputs to
// inspect, and the assertion to apply to them.
type Scenario struct {
	// Name uniquely identifies the scenario.
	Name string `yaml:"name" json:"name"`

	// Description explains what the scenario validates.
	Description string `yaml:"description,omitempty" json:"description,omitempty"`

	// Plan is the plan file path, relative to the runner's root unless
	// absolute.
	Plan string `yaml:"plan" json:"plan"`

	// DType is the element type every output must hold. Defaults to float32.
	DType blob.DType `yaml:"dtype,omitempty" json:"dtype"`

	// Assertion selects tolerance or threshold.
	Assertion AssertionKind `yaml:"assertion" json:"assertion"`

	// Outputs lists the inspected blobs: (computed, reference) for
	// tolerance, a single scalar for threshold.
	Outputs []Output `yaml:"outputs" json:"outputs"`

	// Tolerance is the absolute bound for tolerance assertions.
	Tolerance float64 `yaml:"tolerance,omitempty" json:"tolerance,omitempty"`

	// Threshold is the exclusive lower bound for threshold assertions.
	Threshold float64 `yaml:"threshold,omitempty" json:"threshold,omitempty"`

	// Large marks long-running scenarios, which only run when selected
	// explicitly.
	Large bool `yaml:"large,omitempty" json:"large,omitempty"`
}

// Validate checks that the scenario is internally consistent. It does not
// touch the filesystem.
func (s *Scenario) Validate() error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}

	if s.Plan == "" {
		return fmt.Errorf("plan is required")
	}

	if s.DType == blob.Undefined {
		return fmt.Errorf("dtype is required")
	}

	for i, out := range s.Outputs {
		if out.Blob == "" {
			return fmt.Errorf("outputs[%d]: blob is required", i)
		}
	}

	switch s.Assertion {
	case AssertTolerance:
		if len(s.Outputs) != 2 {
			return fmt.Errorf("tolerance assertion needs exactly 2 outputs (computed, reference), got %d", len(s.Outputs))
		}
		if s.Tolerance < 0 || math.IsNaN(s.Tolerance) {
			return fmt.Errorf("tolerance must be >= 0, got %v", s.Tolerance)
		}
	case AssertThreshold:
		if len(s.Outputs) != 1 {
			return fmt.Errorf("threshold assertion needs exactly 1 output, got %d", len(s.Outputs))
		}
		if math.IsNaN(s.Threshold) {
			return fmt.Errorf("threshold must be a number")
		}
	case "":
		return fmt.Errorf("assertion is required")
	default:
		return fmt.Errorf("unknown assertion kind %q", s.Assertion)
	}

	return nil
}

// scenarioFile is the top-level shape of a scenario table file.
type scenarioFile struct {
	Scenarios []Scenario `yaml:"scenarios"`
}

// LoadScenarios reads a YAML scenario table.
// Returns an error if the file doesn't exist, is malformed, contains unknown
// fields (typos), repeats a name, or holds an invalid scenario.
func LoadScenarios(path string) ([]Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}

	var file scenarioFile
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	if err := decoder.Decode(&file); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if len(file.Scenarios) == 0 {
		return nil, fmt.Errorf("invalid scenario file: scenarios list is required and must be non-empty")
	}

	seen := make(map[string]bool, len(file.Scenarios))
	for i := range file.Scenarios {
		s := &file.Scenarios[i]
		if s.DType == blob.Undefined {
			s.DType = blob.Float32
		}
		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("invalid scenario: scenarios[%d]: %w", i, err)
		}
		if seen[s.Name] {
			return nil, fmt.Errorf("invalid scenario: scenarios[%d]: duplicate name %q", i, s.Name)
		}
		seen[s.Name] = true
	}

	return file.Scenarios, nil
}
