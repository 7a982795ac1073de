package harness

import (
	"github.com/roach88/zkslice/internal/engine"
	"github.com/roach88/zkslice/internal/slice"
	"github.com/roach88/zkslice/internal/trace"
)

// SliceSummary describes one sealed slice.
type SliceSummary struct {
	Index     int    `json:"index"`
	Size      int    `json:"size"`
	FirstEID  uint64 `json:"first_eid"`
	LastEID   uint64 `json:"last_eid"`
	HostCalls int    `json:"host_calls"`
	Frames    int    `json:"frames"`
}

func summarize(s slice.Slice) SliceSummary {
	return SliceSummary{
		Index:     s.Index,
		Size:      s.Len(),
		FirstEID:  s.FirstEID(),
		LastEID:   s.LastEID(),
		HostCalls: len(s.HostCalls),
		Frames:    len(s.Frames),
	}
}

// Result is the outcome of a scenario run.
type Result struct {
	// Pass indicates overall test success.
	// True if every assertion and built-in law holds.
	Pass bool `json:"pass"`

	// RunID is the id stamped on every slice.
	RunID string `json:"run_id"`

	// Slices summarizes the sealed slices in order.
	Slices []SliceSummary `json:"slices"`

	// ErrorCode is the contract error code the run stopped with, if any.
	ErrorCode string `json:"error_code,omitempty"`

	// Stats are the engine counters at the end of the run.
	Stats engine.Stats `json:"stats"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	input  []trace.Entry
	sealed []slice.Slice
}

// NewResult creates a new passing result.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Slices: []SliceSummary{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// Sizes returns the entry count of each slice.
func (r *Result) Sizes() []int {
	out := make([]int, len(r.Slices))
	for i, s := range r.Slices {
		out[i] = s.Size
	}
	return out
}

// Input returns the trace the scenario fed to the engine.
func (r *Result) Input() []trace.Entry { return r.input }

// Sealed returns the sealed slices.
func (r *Result) Sealed() []slice.Slice { return r.sealed }
