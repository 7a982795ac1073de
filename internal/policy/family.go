package policy

import (
	"fmt"
	"sort"
)

// Host operation codes of the standard host environment.
const (
	OpMerkleSetRoot    = 16
	OpMerkleGetRoot    = 17
	OpMerkleAddress    = 18
	OpMerkleSet        = 19
	OpMerkleGet        = 20
	OpPoseidonNew      = 23
	OpPoseidonPush     = 24
	OpPoseidonFinalize = 25
	OpJubjubSumNew     = 26
	OpJubjubSumPush    = 27
	OpJubjubSumResult  = 28
)

// Family is one operation family: the op codes that belong to it, how many
// host-call steps make up one group, and how many groups one circuit of
// size k admits.
type Family struct {
	Name string
	// ID doubles as the transaction id the policy reports for this family.
	ID  TransactionID
	Ops []int
	// GroupSize is the number of host-call steps in one semantic operation.
	GroupSize int
	// RowsPerRound is the circuit cost of one group. Used when Rounds is 0.
	RowsPerRound int
	// Rounds fixes the per-slice bound regardless of k.
	Rounds int
	// Lazy families report their commits as provisional.
	Lazy bool
}

// RoundBound returns the maximum number of groups of this family that fit
// one circuit of size k. It is never below 1.
func (f Family) RoundBound(k int) int {
	if f.Rounds > 0 {
		return f.Rounds
	}
	if f.RowsPerRound <= 0 || k < 0 || k > 62 {
		return 1
	}
	return max(1, (1<<k)/f.RowsPerRound)
}

// Validate checks the family in isolation.
func (f Family) Validate() error {
	if f.Name == "" {
		return fmt.Errorf("family %d: name is required", f.ID)
	}
	if f.GroupSize < 2 {
		return fmt.Errorf("family %s: group size must be at least 2, got %d", f.Name, f.GroupSize)
	}
	if len(f.Ops) == 0 {
		return fmt.Errorf("family %s: at least one op code is required", f.Name)
	}
	if f.Rounds < 0 || f.RowsPerRound < 0 {
		return fmt.Errorf("family %s: negative round configuration", f.Name)
	}
	return nil
}

// StandardFamilies returns the host families of the standard host
// environment. The returned slice is a fresh copy on every call.
func StandardFamilies() []Family {
	return []Family{
		{
			Name: "merkle",
			ID:   1,
			Ops: []int{
				OpMerkleSetRoot, OpMerkleGetRoot, OpMerkleAddress,
				OpMerkleSet, OpMerkleGet,
			},
			// address + set_root + get/set + get_root
			GroupSize:    1 + 4 + 4 + 4,
			RowsPerRound: 1 << 13,
			Lazy:         true,
		},
		{
			Name: "jubjub_sum",
			ID:   2,
			Ops:  []int{OpJubjubSumNew, OpJubjubSumPush, OpJubjubSumResult},
			// new + scalar + point + result point
			GroupSize:    1 + 4 + 8 + 8,
			RowsPerRound: 1 << 12,
		},
		{
			Name: "poseidon",
			ID:   3,
			Ops:  []int{OpPoseidonNew, OpPoseidonPush, OpPoseidonFinalize},
			// new + push + result
			GroupSize:    1 + 4*8 + 4,
			RowsPerRound: 1 << 11,
		},
	}
}

// FamilyByName looks up a family in fams.
func FamilyByName(fams []Family, name string) (Family, bool) {
	for _, f := range fams {
		if f.Name == name {
			return f, true
		}
	}
	return Family{}, false
}

// FamilyNames returns the sorted names of fams.
func FamilyNames(fams []Family) []string {
	names := make([]string, 0, len(fams))
	for _, f := range fams {
		names = append(names, f.Name)
	}
	sort.Strings(names)
	return names
}
