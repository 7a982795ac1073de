package harness

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/roach88/zkslice/internal/policy"
)

// Scenario defines a slicing scenario: an engine configuration, a trace to
// feed it and the properties the resulting slices must have.
type Scenario struct {
	// Name uniquely identifies this scenario. It also names the golden file.
	Name string `yaml:"name"`

	// Description explains what this scenario validates.
	Description string `yaml:"description"`

	// Capacity is the slice capacity in entries.
	Capacity int `yaml:"capacity"`

	// K is log2 of the circuit row count. Defaults to 18.
	K int `yaml:"k,omitempty"`

	// Families configures the flush policy. Empty runs with the no-op policy.
	Families []FamilySpec `yaml:"families,omitempty"`

	// Steps build the input trace in order.
	Steps []Step `yaml:"steps"`

	// Assertions validate the run.
	Assertions []Assertion `yaml:"assertions"`

	// RunID is an optional fixed run id for deterministic tests.
	// If empty, defaults to "test-run-default".
	RunID string `yaml:"run_id,omitempty"`
}

// FamilySpec declares one host-call family. Either Standard names a
// standard family or the remaining fields define a custom one.
type FamilySpec struct {
	Standard     string `yaml:"standard,omitempty"`
	Name         string `yaml:"name,omitempty"`
	ID           int    `yaml:"id,omitempty"`
	Ops          []int  `yaml:"ops,omitempty"`
	GroupSize    int    `yaml:"group_size,omitempty"`
	Rounds       int    `yaml:"rounds,omitempty"`
	RowsPerRound int    `yaml:"rows_per_round,omitempty"`
	Lazy         bool   `yaml:"lazy,omitempty"`
}

// Family resolves f into a policy family, filling a standard family by name.
func (f FamilySpec) Family() (policy.Family, error) {
	if f.Standard != "" {
		std := policy.StandardFamilies()
		fam, ok := policy.FamilyByName(std, f.Standard)
		if !ok {
			return policy.Family{}, fmt.Errorf("unknown standard family %q", f.Standard)
		}
		if f.Rounds != 0 {
			fam.Rounds = f.Rounds
		}
		return fam, nil
	}
	fam := policy.Family{
		Name:         f.Name,
		ID:           policy.TransactionID(f.ID),
		Ops:          f.Ops,
		GroupSize:    f.GroupSize,
		Rounds:       f.Rounds,
		RowsPerRound: f.RowsPerRound,
		Lazy:         f.Lazy,
	}
	return fam, fam.Validate()
}

// Step appends entries to the input trace. Exactly one of Plain, Host, Call
// or Return is set.
type Step struct {
	// Plain records this many ordinary instructions.
	Plain int `yaml:"plain,omitempty"`

	// Host records host-call steps of this op code.
	Host *int `yaml:"host,omitempty"`

	// Repeat is the number of host-call steps. Defaults to 1.
	Repeat int `yaml:"repeat,omitempty"`

	// Call enters the function with this id.
	Call *uint32 `yaml:"call,omitempty"`

	// Return leaves the current function.
	Return bool `yaml:"return,omitempty"`
}

// Assertion validates the outcome of a run.
type Assertion struct {
	// Type specifies the assertion type:
	// - "slice_sizes": sealed slice entry counts
	// - "error": contract error code the run stops with
	// - "atomic": no slice splits a host-call group
	// - "stats": engine counters (subset match)
	Type string `yaml:"type"`

	// Sizes are the expected slice sizes (used by slice_sizes).
	Sizes []int `yaml:"sizes,omitempty"`

	// Code is the expected contract error code (used by error).
	Code string `yaml:"code,omitempty"`

	// Stats are the expected engine counters (used by stats).
	Stats map[string]int `yaml:"stats,omitempty"`
}

// Assertion type constants.
const (
	AssertSliceSizes = "slice_sizes"
	AssertError      = "error"
	AssertAtomic     = "atomic"
	AssertStats      = "stats"
)

// statNames lists the counters a stats assertion may name.
var statNames = map[string]bool{
	"inserted": true,
	"sealed":   true,
	"replayed": true,
	"deferred": true,
	"settled":  true,
	"aborts":   true,
	"skipped":  true,
}

// LoadScenario reads and parses a scenario YAML file.
// Returns an error if the file doesn't exist, is malformed,
// contains unknown fields (typos), or is missing required fields.
func LoadScenario(path string) (*Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario file: %w", err)
	}
	return ParseScenario(data)
}

// ParseScenario parses scenario YAML with strict field validation.
func ParseScenario(data []byte) (*Scenario, error) {
	var scenario Scenario
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true) // Reject unknown fields
	if err := decoder.Decode(&scenario); err != nil {
		return nil, fmt.Errorf("failed to parse YAML: %w", err)
	}

	if err := validateScenario(&scenario); err != nil {
		return nil, fmt.Errorf("invalid scenario: %w", err)
	}
	return &scenario, nil
}

// LoadScenarios loads every *.yaml file in dir, sorted by file name.
func LoadScenarios(dir string) ([]*Scenario, error) {
	paths, err := filepath.Glob(filepath.Join(dir, "*.yaml"))
	if err != nil {
		return nil, err
	}
	sort.Strings(paths)

	out := make([]*Scenario, 0, len(paths))
	for _, p := range paths {
		s, err := LoadScenario(p)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", filepath.Base(p), err)
		}
		out = append(out, s)
	}
	return out, nil
}

// validateScenario checks that required fields are present and valid.
func validateScenario(s *Scenario) error {
	if s.Name == "" {
		return fmt.Errorf("name is required")
	}
	if s.Description == "" {
		return fmt.Errorf("description is required")
	}
	if s.Capacity <= 0 {
		return fmt.Errorf("capacity must be positive")
	}
	if s.K < 0 {
		return fmt.Errorf("k must be non-negative")
	}
	if len(s.Steps) == 0 {
		return fmt.Errorf("steps list is required and must be non-empty")
	}
	if len(s.Assertions) == 0 {
		return fmt.Errorf("assertions list is required and must be non-empty")
	}

	for i, f := range s.Families {
		if _, err := f.Family(); err != nil {
			return fmt.Errorf("families[%d]: %w", i, err)
		}
	}

	for i, step := range s.Steps {
		if err := validateStep(i, step); err != nil {
			return err
		}
	}

	for i, assertion := range s.Assertions {
		if err := validateAssertion(i, &assertion); err != nil {
			return err
		}
	}
	return nil
}

func validateStep(index int, st Step) error {
	set := 0
	if st.Plain != 0 {
		set++
	}
	if st.Host != nil {
		set++
	}
	if st.Call != nil {
		set++
	}
	if st.Return {
		set++
	}
	if set != 1 {
		return fmt.Errorf("steps[%d]: exactly one of plain, host, call, return is required", index)
	}
	if st.Plain < 0 {
		return fmt.Errorf("steps[%d]: plain must be positive", index)
	}
	if st.Repeat < 0 || (st.Repeat != 0 && st.Host == nil) {
		return fmt.Errorf("steps[%d]: repeat applies only to host steps and must be positive", index)
	}
	return nil
}

// validateAssertion validates a single assertion based on its type.
func validateAssertion(index int, a *Assertion) error {
	if a.Type == "" {
		return fmt.Errorf("assertions[%d]: type is required", index)
	}

	switch a.Type {
	case AssertSliceSizes:
		if len(a.Sizes) == 0 {
			return fmt.Errorf("assertions[%d]: sizes is required for slice_sizes", index)
		}
	case AssertError:
		if a.Code == "" {
			return fmt.Errorf("assertions[%d]: code is required for error", index)
		}
	case AssertAtomic:
	case AssertStats:
		if len(a.Stats) == 0 {
			return fmt.Errorf("assertions[%d]: stats is required for stats", index)
		}
		for name := range a.Stats {
			if !statNames[name] {
				return fmt.Errorf("assertions[%d]: unknown stat %q", index, name)
			}
		}
	default:
		return fmt.Errorf("assertions[%d]: unknown assertion type %q", index, a.Type)
	}
	return nil
}
