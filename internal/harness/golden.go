package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/formula/internal/ir"
)

// GoldenDir is where golden traces live, relative to the test package.
const GoldenDir = "testdata/golden"

// snapshotMap converts a result into a map for canonical JSON serialization.
// ir.MarshalCanonical only handles primitives, slices and string-keyed maps.
func snapshotMap(scenarioName string, result *Result) map[string]any {
	trace := make([]any, len(result.Trace))
	for i, ev := range result.Trace {
		m := map[string]any{
			"seq":     ev.Seq,
			"kind":    string(ev.Kind),
			"command": ev.Command,
			"state":   string(ev.State),
			"depth":   ev.Depth,
		}
		if ev.Error != "" {
			m["error"] = ev.Error
		}
		trace[i] = m
	}

	budget := make([]any, len(result.Final.Budget))
	for i, inc := range result.Final.Budget {
		budget[i] = map[string]any{
			"symbol": inc.Symbol.Name,
			"count":  inc.Count,
		}
	}

	snap := map[string]any{
		"scenario_name": scenarioName,
		"status":        string(result.Status),
		"steps":         result.Steps,
		"trace":         trace,
		"final": map[string]any{
			"state":  string(result.Final.State),
			"depth":  result.Final.Depth,
			"budget": budget,
		},
	}
	if result.RunID != "" {
		snap["run_id"] = result.RunID
	}
	return snap
}

// Snapshot returns the canonical JSON golden form of a result.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	return ir.MarshalCanonical(snapshotMap(scenarioName, result))
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
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares the given result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir(GoldenDir),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
