package engine

import (
	"fmt"

	"github.com/roach88/zkslice/internal/slice"
)

// Resuming an interrupted run
//
// Every seal drops the checkpoint, the ledger and the policy counters and
// re-inserts the retained suffix into that fresh state. The state after
// slice i is sealed is therefore a function of the entries that follow it
// and nothing else. A new engine that numbers its first slice i and skips
// every entry up to the last EID of slice i-1 seals exactly the slices the
// uninterrupted run would have sealed.
//
// Crash safety comes from the sinks: a slice is either fully pushed or not
// at all (one SQLite transaction, one Pebble batch, one file plus manifest
// rename), so the last slice a sink reports is always complete.

// ResumePoint marks where an interrupted run stopped.
type ResumePoint struct {
	// Sealed is the number of slices already in the sink.
	Sealed int `json:"sealed"`
	// LastEID is the last entry of the last sealed slice, 0 when none.
	LastEID uint64 `json:"last_eid"`
}

// ResumePointOf reads the resume point of a partially written sink.
func ResumePointOf(sink slice.Sink) (ResumePoint, error) {
	n := sink.Len()
	if n == 0 {
		return ResumePoint{}, nil
	}
	last, err := sink.Slice(n - 1)
	if err != nil {
		return ResumePoint{}, fmt.Errorf("resume point: %w", err)
	}
	if last.Len() == 0 {
		return ResumePoint{}, fmt.Errorf("resume point: slice %d is empty", n-1)
	}
	return ResumePoint{Sealed: n, LastEID: last.LastEID()}, nil
}

// WithResume continues a run from p. Slice indexes start at p.Sealed and
// entries at or before p.LastEID are counted as skipped and dropped. A point
// with no sealed slices skips nothing.
func WithResume(p ResumePoint) Option {
	return func(t *HostTransaction) {
		t.sealed = p.Sealed
		t.skipping = p.Sealed > 0
		t.skipThrough = p.LastEID
	}
}
