package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"
)

// reportSnapshot is the run-independent part of a Report. Run IDs and
// messages are left out so golden files stay stable across runs.
type reportSnapshot struct {
	Results []resultSnapshot `json:"results"`
	Passed  int              `json:"passed"`
	Failed  int              `json:"failed"`
	Total   int              `json:"total"`
}

type resultSnapshot struct {
	Scenario string      `json:"scenario"`
	Pass     bool        `json:"pass"`
	Kind     FailureKind `json:"kind,omitempty"`
}

// Snapshot renders the stable fields of report as indented JSON.
func Snapshot(report Report) ([]byte, error) {
	snap := reportSnapshot{
		Results: make([]resultSnapshot, len(report.Results)),
		Passed:  report.Passed,
		Failed:  report.Failed,
		Total:   report.Total,
	}
	for i, r := range report.Results {
		snap.Results[i] = resultSnapshot{Scenario: r.Scenario, Pass: r.Pass, Kind: r.Kind}
	}
	return json.MarshalIndent(snap, "", "  ")
}

// AssertGolden compares report against testdata/golden/{name}.golden.
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
func AssertGolden(t *testing.T, name string, report Report) {
	t.Helper()

	data, err := Snapshot(report)
	if err != nil {
		t.Fatalf("snapshot report: %v", err)
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
}
