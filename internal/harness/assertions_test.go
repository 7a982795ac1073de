package harness

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/zkslice/internal/policy"
	"github.com/roach88/zkslice/internal/slice"
	"github.com/roach88/zkslice/internal/testutil"
	"github.com/roach88/zkslice/internal/trace"
)

var testFamilies = []policy.Family{
	{Name: "a", ID: 1, Ops: []int{1}, GroupSize: 2},
	{Name: "b", ID: 2, Ops: []int{2}, GroupSize: 3},
}

func TestGroupSpans_Interleaved(t *testing.T) {
	r := trace.NewRecorder()
	entries := []trace.Entry{
		r.Plain("x"), // 0
		r.Host(1),    // 1 a
		r.Host(2),    // 2 b
		r.Host(1),    // 3 a closes
		r.Host(2),    // 4
		r.Host(2),    // 5 b closes
		r.Host(1),    // 6 a incomplete
		r.Host(42),   // 7 unknown op
	}
	spans := GroupSpans(entries, testFamilies)
	assert.Equal(t, []Span{
		{Family: "a", First: 1, Last: 3},
		{Family: "b", First: 2, Last: 5},
	}, spans)
}

func TestAssertAtomic_DetectsSplit(t *testing.T) {
	r := trace.NewRecorder()
	input := testutil.Concat(testutil.PlainSteps(r, 1), testutil.HostSteps(r, 1, 2))

	split := &Result{
		input: input,
		sealed: []slice.Slice{
			slice.TableBuilder{}.Build(input[:2]),
			slice.TableBuilder{}.Build(input[2:]),
		},
	}
	err := assertAtomic(split, &AssertionContext{Families: testFamilies})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "split between slices 0 and 1")

	whole := &Result{
		input:  input,
		sealed: []slice.Slice{slice.TableBuilder{}.Build(input)},
	}
	assert.NoError(t, assertAtomic(whole, &AssertionContext{Families: testFamilies}))
}

func TestAssertAtomic_IgnoresUnsealedTail(t *testing.T) {
	r := trace.NewRecorder()
	input := testutil.Concat(testutil.PlainSteps(r, 1), testutil.HostSteps(r, 1, 2))

	partial := &Result{
		input:  input,
		sealed: []slice.Slice{slice.TableBuilder{}.Build(input[:1])},
	}
	assert.NoError(t, assertAtomic(partial, &AssertionContext{Families: testFamilies}))
}

func TestAssertStats_SubsetMatch(t *testing.T) {
	r := NewResult()
	r.Stats.Sealed = 3
	r.Stats.Deferred = 1

	assert.NoError(t, assertStats(r, Assertion{Stats: map[string]int{"sealed": 3}}))

	err := assertStats(r, Assertion{Stats: map[string]int{"sealed": 3, "deferred": 0}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "deferred = 0")
}

func TestMarshalSnapshot_Canonical(t *testing.T) {
	data, err := MarshalSnapshot(Snapshot{
		ScenarioName: "s",
		RunID:        "r",
		Slices:       []SliceSummary{{Index: 0, Size: 2, FirstEID: 1, LastEID: 2, HostCalls: 1}},
	})
	require.NoError(t, err)
	assert.Equal(t,
		`{"run_id":"r","scenario_name":"s","slices":[{"first_eid":1,"frames":0,"host_calls":1,"index":0,"last_eid":2,"size":2}]}`,
		string(data))
}
