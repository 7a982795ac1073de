package harness

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/roach88/zkslice/internal/engine"
	"github.com/roach88/zkslice/internal/policy"
	"github.com/roach88/zkslice/internal/slice"
	"github.com/roach88/zkslice/internal/testutil"
	"github.com/roach88/zkslice/internal/trace"
)

// DefaultK is the circuit size used when a scenario sets none.
const DefaultK = 18

// Harness runs one scenario against a fresh engine.
type Harness struct {
	scenario *Scenario
	families []policy.Family
	runIDs   *testutil.FixedRunIDGenerator
	logger   *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs against a fresh in-memory sink for isolation, with a
// fixed run id so results are reproducible.
//
// Execution flow:
// 1. Build the input trace from the steps
// 2. Build the flush policy from the families
// 3. Insert every entry, then finalize
// 4. Check the round-trip and capacity laws
// 5. Evaluate the assertions
func Run(scenario *Scenario) (*Result, error) {
	h := &Harness{
		scenario: scenario,
		runIDs:   testutil.NewFixedRunIDGenerator(scenario.RunID),
		logger:   slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}
	for i, spec := range scenario.Families {
		f, err := spec.Family()
		if err != nil {
			return nil, fmt.Errorf("families[%d]: %w", i, err)
		}
		h.families = append(h.families, f)
	}

	p, err := h.policy()
	if err != nil {
		return nil, err
	}
	input := BuildTrace(scenario.Steps)

	sink := slice.NewMemorySink()
	eng, err := engine.New(scenario.Capacity, p, sink,
		engine.WithRunIDGenerator(h.runIDs),
		engine.WithLogger(h.logger))
	if err != nil {
		return nil, fmt.Errorf("failed to create engine: %w", err)
	}

	runErr := h.execute(eng, input)

	result := NewResult()
	result.RunID = eng.RunID()
	result.Stats = eng.Stats()
	result.input = input
	result.sealed = sink.Slices()
	for _, s := range result.sealed {
		result.Slices = append(result.Slices, summarize(s))
	}

	if runErr != nil {
		code := engine.ContractCode(runErr)
		if code == "" {
			return nil, fmt.Errorf("scenario %s: %w", scenario.Name, runErr)
		}
		result.ErrorCode = string(code)
		if !expectsError(scenario.Assertions) {
			result.AddError(fmt.Sprintf("unexpected error: %v", runErr))
		}
	} else {
		for _, msg := range checkLaws(result, scenario.Capacity) {
			result.AddError(msg)
		}
	}

	actx := &AssertionContext{Families: h.families}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}
	return result, nil
}

func (h *Harness) policy() (policy.Policy, error) {
	if len(h.families) == 0 {
		return policy.NoopPolicy{}, nil
	}
	k := h.scenario.K
	if k == 0 {
		k = DefaultK
	}
	return policy.NewRoundPolicy(k, h.families, policy.WithLogger(h.logger))
}

// execute feeds every entry and finalizes, stopping at the first error.
func (h *Harness) execute(eng *engine.HostTransaction, input []trace.Entry) error {
	for _, e := range input {
		if err := eng.Insert(e); err != nil {
			return err
		}
	}
	_, err := eng.Finalize()
	return err
}

// BuildTrace records the entries described by steps.
func BuildTrace(steps []Step) []trace.Entry {
	r := trace.NewRecorder()
	var out []trace.Entry
	for _, st := range steps {
		switch {
		case st.Plain > 0:
			out = append(out, testutil.PlainSteps(r, st.Plain)...)
		case st.Host != nil:
			n := st.Repeat
			if n == 0 {
				n = 1
			}
			out = append(out, testutil.HostSteps(r, *st.Host, n)...)
		case st.Call != nil:
			out = append(out, r.Call(*st.Call))
		case st.Return:
			out = append(out, r.Return())
		}
	}
	return out
}

func expectsError(assertions []Assertion) bool {
	for _, a := range assertions {
		if a.Type == AssertError {
			return true
		}
	}
	return false
}

// checkLaws verifies the properties every successful run must have: the
// slices concatenate to the input, none is empty, and none exceeds the
// capacity unless a seal had to be deferred.
func checkLaws(r *Result, capacity int) []string {
	var errs []string
	var flat []trace.Entry
	for _, s := range r.sealed {
		if s.Len() == 0 {
			errs = append(errs, fmt.Sprintf("slice %d is empty", s.Index))
		}
		if s.Len() > capacity && r.Stats.Deferred == 0 {
			errs = append(errs, fmt.Sprintf("slice %d holds %d entries, capacity %d", s.Index, s.Len(), capacity))
		}
		flat = append(flat, s.Entries...)
	}
	if len(flat) != len(r.input) {
		errs = append(errs, fmt.Sprintf("round trip: slices hold %d entries, input has %d", len(flat), len(r.input)))
		return errs
	}
	for i := range flat {
		if flat[i].EID != r.input[i].EID {
			errs = append(errs, fmt.Sprintf("round trip: position %d holds eid %d, want %d", i, flat[i].EID, r.input[i].EID))
			break
		}
	}
	return errs
}
