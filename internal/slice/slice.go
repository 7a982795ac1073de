// Package slice holds sealed trace slices, the builder that derives their
// side tables, and the sinks that collect them.
package slice

import "github.com/roach88/zkslice/internal/trace"

// Slice is one bounded segment of a trace, sized to fit a single circuit.
//
// Entries is the ordered event table. HostCalls and Frames are derived from
// it by the Builder and never carry information Entries does not.
type Slice struct {
	RunID     string          `json:"run_id"`
	Index     int             `json:"index"`
	Entries   []trace.Entry   `json:"entries"`
	HostCalls []HostCallEntry `json:"host_calls"`
	Frames    []FrameEntry    `json:"frames"`
}

// HostCallEntry projects one host-call step.
type HostCallEntry struct {
	EID   uint64  `json:"eid"`
	Op    int     `json:"op"`
	Value *uint64 `json:"value,omitempty"`
	IsRet bool    `json:"is_ret"`
}

// FrameEntry pairs a call with its return. Returned is false when the
// return falls into a later slice.
type FrameEntry struct {
	CallEID   uint64 `json:"call_eid"`
	ReturnEID uint64 `json:"return_eid,omitempty"`
	CallerFID uint32 `json:"caller_fid"`
	CalleeFID uint32 `json:"callee_fid"`
	IID       uint32 `json:"iid"`
	Returned  bool   `json:"returned"`
}

// Len returns the number of trace entries.
func (s Slice) Len() int {
	return len(s.Entries)
}

// FirstEID returns the EID of the first entry, 0 for an empty slice.
func (s Slice) FirstEID() uint64 {
	if len(s.Entries) == 0 {
		return 0
	}
	return s.Entries[0].EID
}

// LastEID returns the EID of the last entry, 0 for an empty slice.
func (s Slice) LastEID() uint64 {
	if len(s.Entries) == 0 {
		return 0
	}
	return s.Entries[len(s.Entries)-1].EID
}
