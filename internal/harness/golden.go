package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/zkslice/internal/trace"
)

// Snapshot captures the slicing outcome of a scenario.
// All fields use canonical JSON serialization for deterministic comparison.
type Snapshot struct {
	ScenarioName string         `json:"scenario_name"`
	RunID        string         `json:"run_id"`
	ErrorCode    string         `json:"error,omitempty"`
	Slices       []SliceSummary `json:"slices"`
}

// toCanonicalMap converts a Snapshot to a map[string]any for canonical JSON serialization.
// This is required because trace.MarshalCanonical only handles entries and primitives.
func (s *Snapshot) toCanonicalMap() map[string]any {
	slices := make([]any, len(s.Slices))
	for i, sl := range s.Slices {
		slices[i] = map[string]any{
			"index":      sl.Index,
			"size":       sl.Size,
			"first_eid":  sl.FirstEID,
			"last_eid":   sl.LastEID,
			"host_calls": sl.HostCalls,
			"frames":     sl.Frames,
		}
	}

	result := map[string]any{
		"scenario_name": s.ScenarioName,
		"run_id":        s.RunID,
		"slices":        slices,
	}
	if s.ErrorCode != "" {
		result["error"] = s.ErrorCode
	}
	return result
}

// SnapshotOf builds the snapshot of a result.
func SnapshotOf(name string, r *Result) Snapshot {
	return Snapshot{
		ScenarioName: name,
		RunID:        r.RunID,
		ErrorCode:    r.ErrorCode,
		Slices:       r.Slices,
	}
}

// MarshalSnapshot renders a snapshot as canonical JSON.
func MarshalSnapshot(s Snapshot) ([]byte, error) {
	return trace.MarshalCanonical(s.toCanonicalMap())
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns the result so callers can inspect Pass and Errors.
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

	data, err := MarshalSnapshot(SnapshotOf(scenarioName, result))
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)
	return nil
}
