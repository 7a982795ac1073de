package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testFamily(groupSize, rounds int) Family {
	return Family{Name: "hash", ID: 7, Ops: []int{100, 101}, GroupSize: groupSize, Rounds: rounds}
}

func TestRoundCounter_Phases(t *testing.T) {
	c := NewRoundCounter(3, 2)

	phase, exhausted := c.Step()
	assert.Equal(t, PhaseFirst, phase)
	assert.False(t, exhausted)

	phase, _ = c.Step()
	assert.Equal(t, PhaseInside, phase)

	phase, exhausted = c.Step()
	assert.Equal(t, PhaseLast, phase)
	assert.False(t, exhausted)
	assert.Equal(t, 1, c.Completed())

	c.Step()
	c.Step()
	_, exhausted = c.Step()
	assert.True(t, exhausted)
	assert.Equal(t, 2, c.Completed())
	assert.Equal(t, 2, c.MaxRounds())

	// A reset mid-group starts the next step as a fresh group.
	c.Step()
	c.Reset()
	assert.Equal(t, 0, c.Completed())
	phase, _ = c.Step()
	assert.Equal(t, PhaseFirst, phase)
}

func TestRoundPolicy_GroupLifecycle(t *testing.T) {
	p := MustRoundPolicy(18, []Family{testFamily(3, 2)})

	assert.Equal(t, Start(7), p.Notify(HostCallEvent(100)))
	assert.Equal(t, Noop(), p.Notify(HostCallEvent(101)))
	assert.Equal(t, Commit(7, false), p.Notify(HostCallEvent(101)))

	assert.Equal(t, Start(7), p.Notify(HostCallEvent(100)))
	assert.Equal(t, Noop(), p.Notify(HostCallEvent(101)))
	assert.Equal(t, CommitAndAbort(7, false), p.Notify(HostCallEvent(101)))
	assert.Equal(t, map[string]int{"hash": 2}, p.Rounds())
}

func TestRoundPolicy_ResetClearsCounters(t *testing.T) {
	p := MustRoundPolicy(18, []Family{testFamily(3, 1)})

	p.Notify(HostCallEvent(100))
	p.Notify(HostCallEvent(100))
	assert.Equal(t, CommitAndAbort(7, false), p.Notify(HostCallEvent(100)))

	assert.Equal(t, Noop(), p.Notify(ResetEvent()))
	assert.Equal(t, map[string]int{"hash": 0}, p.Rounds())
	assert.Equal(t, Start(7), p.Notify(HostCallEvent(100)))
}

func TestRoundPolicy_UnknownOpIsNoop(t *testing.T) {
	p := MustRoundPolicy(18, []Family{testFamily(3, 1)})
	assert.Equal(t, Noop(), p.Notify(HostCallEvent(5)))
	assert.Equal(t, map[string]int{"hash": 0}, p.Rounds())
}

func TestRoundPolicy_LazyFamily(t *testing.T) {
	f := testFamily(2, 4)
	f.Lazy = true
	p := MustRoundPolicy(18, []Family{f})

	p.Notify(HostCallEvent(100))
	cmd := p.Notify(HostCallEvent(100))
	assert.Equal(t, CommandCommit, cmd.Kind)
	assert.True(t, cmd.Lazy)
}

func TestRoundPolicy_FamiliesAreIndependent(t *testing.T) {
	a := Family{Name: "a", ID: 1, Ops: []int{1}, GroupSize: 2, Rounds: 5}
	b := Family{Name: "b", ID: 2, Ops: []int{2}, GroupSize: 3, Rounds: 5}
	p := MustRoundPolicy(18, []Family{a, b})

	assert.Equal(t, Start(1), p.Notify(HostCallEvent(1)))
	assert.Equal(t, Start(2), p.Notify(HostCallEvent(2)))
	assert.Equal(t, Commit(1, false), p.Notify(HostCallEvent(1)))
	assert.Equal(t, Noop(), p.Notify(HostCallEvent(2)))
	assert.Equal(t, Commit(2, false), p.Notify(HostCallEvent(2)))
}

func TestNewRoundPolicy_RejectsBadTables(t *testing.T) {
	tests := []struct {
		name string
		fams []Family
		want string
	}{
		{
			name: "group size below two",
			fams: []Family{testFamily(1, 1)},
			want: "group size",
		},
		{
			name: "shared op code",
			fams: []Family{
				{Name: "a", ID: 1, Ops: []int{9}, GroupSize: 2, Rounds: 1},
				{Name: "b", ID: 2, Ops: []int{9}, GroupSize: 2, Rounds: 1},
			},
			want: "already claimed",
		},
		{
			name: "shared id",
			fams: []Family{
				{Name: "a", ID: 1, Ops: []int{1}, GroupSize: 2, Rounds: 1},
				{Name: "b", ID: 1, Ops: []int{2}, GroupSize: 2, Rounds: 1},
			},
			want: "already used",
		},
		{
			name: "no ops",
			fams: []Family{{Name: "a", ID: 1, GroupSize: 2}},
			want: "op code",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewRoundPolicy(18, tt.fams)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFamily_RoundBound(t *testing.T) {
	f := Family{Name: "x", RowsPerRound: 1 << 11}
	assert.Equal(t, 128, f.RoundBound(18))
	assert.Equal(t, 1, f.RoundBound(10))

	f.Rounds = 3
	assert.Equal(t, 3, f.RoundBound(18))

	assert.Equal(t, 1, Family{Name: "y"}.RoundBound(18))
}

func TestStandardFamilies(t *testing.T) {
	fams := StandardFamilies()
	_, err := NewRoundPolicy(18, fams)
	require.NoError(t, err)

	merkle, ok := FamilyByName(fams, "merkle")
	require.True(t, ok)
	assert.Equal(t, 13, merkle.GroupSize)
	assert.True(t, merkle.Lazy)

	jubjub, _ := FamilyByName(fams, "jubjub_sum")
	assert.Equal(t, 21, jubjub.GroupSize)

	poseidon, _ := FamilyByName(fams, "poseidon")
	assert.Equal(t, 37, poseidon.GroupSize)

	assert.Equal(t, []string{"jubjub_sum", "merkle", "poseidon"}, FamilyNames(fams))
}

func TestNoopPolicy(t *testing.T) {
	var p Policy = NoopPolicy{}
	assert.Equal(t, Noop(), p.Notify(HostCallEvent(OpPoseidonNew)))
	assert.Equal(t, Noop(), p.Notify(ResetEvent()))
}

func TestCommand_String(t *testing.T) {
	assert.Equal(t, "Start(3)", Start(3).String())
	assert.Equal(t, "Commit(3, lazy=true)", Commit(3, true).String())
	assert.Equal(t, "Abort", Abort().String())
	assert.Equal(t, "HostCall(4)", HostCallEvent(4).String())
}
