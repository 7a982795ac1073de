package harness

import (
	"fmt"
	"sort"
	"strings"

	"github.com/roach88/zkslice/internal/policy"
	"github.com/roach88/zkslice/internal/trace"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string         // Assertion type for categorization
	Expected string         // Human-readable expected outcome
	Actual   string         // Human-readable actual outcome
	Slices   []SliceSummary // Sealed slices for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if len(e.Slices) > 0 {
		fmt.Fprintf(&buf, "\nSlices:\n")
		for _, s := range e.Slices {
			fmt.Fprintf(&buf, "  [%d] %d entries, eid %d..%d\n", s.Index, s.Size, s.FirstEID, s.LastEID)
		}
	}
	return buf.String()
}

// AssertionContext carries what assertions need beyond the result.
type AssertionContext struct {
	// Families are the host-call families of the scenario, used to find
	// group boundaries.
	Families []policy.Family
}

// EvaluateAssertions runs every assertion and returns the failure messages.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errs []string
	for i, a := range assertions {
		var err error
		switch a.Type {
		case AssertSliceSizes:
			err = assertSliceSizes(result, a)
		case AssertError:
			err = assertErrorCode(result, a)
		case AssertAtomic:
			err = assertAtomic(result, actx)
		case AssertStats:
			err = assertStats(result, a)
		default:
			err = fmt.Errorf("unknown assertion type %q", a.Type)
		}
		if err != nil {
			errs = append(errs, fmt.Sprintf("assertion %d: %v", i, err))
		}
	}
	return errs
}

func assertSliceSizes(r *Result, a Assertion) error {
	got := r.Sizes()
	if fmt.Sprint(got) == fmt.Sprint(a.Sizes) {
		return nil
	}
	return &AssertionError{
		Type:     AssertSliceSizes,
		Expected: fmt.Sprint(a.Sizes),
		Actual:   fmt.Sprint(got),
		Slices:   r.Slices,
	}
}

func assertErrorCode(r *Result, a Assertion) error {
	if r.ErrorCode == a.Code {
		return nil
	}
	actual := r.ErrorCode
	if actual == "" {
		actual = "no error"
	}
	return &AssertionError{
		Type:     AssertError,
		Expected: a.Code,
		Actual:   actual,
		Slices:   r.Slices,
	}
}

// assertStats checks the named counters (subset match).
func assertStats(r *Result, a Assertion) error {
	got := map[string]int{
		"inserted": r.Stats.Inserted,
		"sealed":   r.Stats.Sealed,
		"replayed": r.Stats.Replayed,
		"deferred": r.Stats.Deferred,
		"settled":  r.Stats.Settled,
		"aborts":   r.Stats.Aborts,
		"skipped":  r.Stats.Skipped,
	}
	names := make([]string, 0, len(a.Stats))
	for name := range a.Stats {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if got[name] != a.Stats[name] {
			return &AssertionError{
				Type:     AssertStats,
				Expected: fmt.Sprintf("%s = %d", name, a.Stats[name]),
				Actual:   fmt.Sprintf("%s = %d", name, got[name]),
			}
		}
	}
	return nil
}

// Span is the input positions [First, Last] of one complete host-call group.
type Span struct {
	Family string
	First  int
	Last   int
}

// GroupSpans splits the host calls of entries into complete groups. Each
// family counts its own calls; every GroupSize consecutive calls of a
// family form one group. A trailing incomplete group is not reported.
func GroupSpans(entries []trace.Entry, fams []policy.Family) []Span {
	byOp := make(map[int]int)
	for i, f := range fams {
		for _, op := range f.Ops {
			byOp[op] = i
		}
	}

	counts := make([]int, len(fams))
	starts := make([]int, len(fams))
	var spans []Span
	for pos, e := range entries {
		op, ok := e.HostCallOp()
		if !ok {
			continue
		}
		fi, ok := byOp[op]
		if !ok {
			continue
		}
		if counts[fi] == 0 {
			starts[fi] = pos
		}
		counts[fi]++
		if counts[fi] == fams[fi].GroupSize {
			spans = append(spans, Span{Family: fams[fi].Name, First: starts[fi], Last: pos})
			counts[fi] = 0
		}
	}
	sort.SliceStable(spans, func(i, j int) bool { return spans[i].First < spans[j].First })
	return spans
}

// assertAtomic checks that every complete group lies inside one slice.
// Groups past the last sealed entry are ignored.
func assertAtomic(r *Result, actx *AssertionContext) error {
	var fams []policy.Family
	if actx != nil {
		fams = actx.Families
	}

	// owner[pos] is the slice index holding input position pos.
	var owner []int
	for i, s := range r.sealed {
		for range s.Entries {
			owner = append(owner, i)
		}
	}

	for _, sp := range GroupSpans(r.input, fams) {
		if sp.Last >= len(owner) {
			continue
		}
		if owner[sp.First] != owner[sp.Last] {
			return &AssertionError{
				Type:     AssertAtomic,
				Expected: fmt.Sprintf("%s group at positions %d..%d in one slice", sp.Family, sp.First, sp.Last),
				Actual:   fmt.Sprintf("split between slices %d and %d", owner[sp.First], owner[sp.Last]),
				Slices:   r.Slices,
			}
		}
	}
	return nil
}
