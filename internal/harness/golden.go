package harness

import (
	"encoding/json"
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/shopcart/internal/testutil"
)

// TraceSnapshot captures the complete trace for a scenario execution.
// encoding/json sorts map keys, so body fields serialize deterministically.
type TraceSnapshot struct {
	ScenarioName string       `json:"scenario_name"`
	AttemptID    string       `json:"attempt_id"`
	Trace        []TraceEvent `json:"trace"`
}

// Marshal renders the snapshot as indented JSON with a trailing newline.
func (s TraceSnapshot) Marshal() ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(data, '\n'), nil
}

// RunWithGolden executes a scenario and compares the trace against a golden file.
// The golden file is stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if trace doesn't match golden file.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}

	return result, assertSnapshot(t, scenario.Name, Snapshot(scenario, result))
}

// Snapshot builds the golden-file view of a scenario run.
func Snapshot(scenario *Scenario, result *Result) TraceSnapshot {
	attemptID := scenario.AttemptID
	if attemptID == "" {
		attemptID = testutil.DefaultAttemptID
	}
	return TraceSnapshot{
		ScenarioName: scenario.Name,
		AttemptID:    attemptID,
		Trace:        result.Trace,
	}
}

// AssertGolden compares the given result's trace against a golden file
// without re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()
	return assertSnapshot(t, scenarioName, TraceSnapshot{ScenarioName: scenarioName, Trace: result.Trace})
}

func assertSnapshot(t *testing.T, name string, snapshot TraceSnapshot) error {
	t.Helper()

	data, err := snapshot.Marshal()
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, name, data)
	return nil
}
