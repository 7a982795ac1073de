package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/zkslice/internal/trace"
)

func TestRun_TestdataScenarios(t *testing.T) {
	scenarios, err := LoadScenarios("testdata/scenarios")
	require.NoError(t, err)
	require.NotEmpty(t, scenarios)

	for _, s := range scenarios {
		t.Run(s.Name, func(t *testing.T) {
			result, err := RunWithGolden(t, s)
			require.NoError(t, err)
			assert.True(t, result.Pass, "errors: %v", result.Errors)
		})
	}
}

func TestRun_FixedRunID(t *testing.T) {
	s := &Scenario{
		Name:       "ids",
		Capacity:   2,
		Steps:      []Step{{Plain: 3}},
		Assertions: []Assertion{{Type: AssertSliceSizes, Sizes: []int{2, 1}}},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.True(t, result.Pass, "errors: %v", result.Errors)
	assert.Equal(t, "test-run-default", result.RunID)
	for _, sl := range result.Sealed() {
		assert.Equal(t, "test-run-default", sl.RunID)
	}
}

func TestRun_FailingAssertion(t *testing.T) {
	s := &Scenario{
		Name:       "wrong",
		Capacity:   4,
		Steps:      []Step{{Plain: 5}},
		Assertions: []Assertion{{Type: AssertSliceSizes, Sizes: []int{5}}},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "Expected: [5]")
	assert.Contains(t, result.Errors[0], "Actual: [4 1]")
}

func TestRun_UnexpectedContractError(t *testing.T) {
	op := 9
	s := &Scenario{
		Name:       "open",
		Capacity:   4,
		Families:   []FamilySpec{{Name: "f", ID: 1, Ops: []int{9}, GroupSize: 3}},
		Steps:      []Step{{Host: &op}},
		Assertions: []Assertion{{Type: AssertAtomic}},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Equal(t, "INCOMPLETE_GROUP", result.ErrorCode)
	assert.Contains(t, result.Errors[0], "unexpected error")
}

func TestRun_ExpectedErrorMissing(t *testing.T) {
	s := &Scenario{
		Name:       "clean",
		Capacity:   4,
		Steps:      []Step{{Plain: 1}},
		Assertions: []Assertion{{Type: AssertError, Code: "INCOMPLETE_GROUP"}},
	}
	result, err := Run(s)
	require.NoError(t, err)
	assert.False(t, result.Pass)
	assert.Contains(t, result.Errors[0], "no error")
}

func TestBuildTrace(t *testing.T) {
	op := 16
	callee := uint32(3)
	entries := BuildTrace([]Step{
		{Plain: 2},
		{Host: &op, Repeat: 3},
		{Call: &callee},
		{Return: true},
		{Host: &op},
	})
	require.Len(t, entries, 8)

	kinds := make([]trace.StepKind, len(entries))
	for i, e := range entries {
		kinds[i] = e.Step.Kind()
		assert.Equal(t, uint64(i+1), e.EID)
	}
	assert.Equal(t, []trace.StepKind{
		trace.KindPlain, trace.KindPlain,
		trace.KindHostCall, trace.KindHostCall, trace.KindHostCall,
		trace.KindCall, trace.KindReturn,
		trace.KindHostCall,
	}, kinds)
	assert.Equal(t, uint32(3), entries[6].FID, "return is recorded inside the callee")
}
