package testutil

import "github.com/roach88/zkslice/internal/trace"

// PlainSteps records n ordinary instructions.
func PlainSteps(r *trace.Recorder, n int) []trace.Entry {
	out := make([]trace.Entry, 0, n)
	for i := 0; i < n; i++ {
		out = append(out, r.Plain("nop"))
	}
	return out
}

// HostSteps records n host-call steps of op. Step i carries value i, and the
// last step returns a value the way a multi-step host operation does.
func HostSteps(r *trace.Recorder, op, n int) []trace.Entry {
	out := make([]trace.Entry, 0, n)
	for i := 0; i < n; i++ {
		if i == n-1 {
			out = append(out, r.HostRet(op, uint64(i)))
			continue
		}
		out = append(out, r.HostArg(op, uint64(i)))
	}
	return out
}

// Groups records count back-to-back host groups of op, each groupSize steps.
func Groups(r *trace.Recorder, op, groupSize, count int) []trace.Entry {
	out := make([]trace.Entry, 0, groupSize*count)
	for i := 0; i < count; i++ {
		out = append(out, HostSteps(r, op, groupSize)...)
	}
	return out
}

// Concat joins entry runs into one trace.
func Concat(parts ...[]trace.Entry) []trace.Entry {
	var n int
	for _, p := range parts {
		n += len(p)
	}
	out := make([]trace.Entry, 0, n)
	for _, p := range parts {
		out = append(out, p...)
	}
	return out
}

// EIDs returns the EIDs of entries in order.
func EIDs(entries []trace.Entry) []uint64 {
	out := make([]uint64, len(entries))
	for i, e := range entries {
		out[i] = e.EID
	}
	return out
}
