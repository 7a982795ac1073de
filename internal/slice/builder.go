package slice

import "github.com/roach88/zkslice/internal/trace"

// Builder materializes a Slice from an ordered run of entries.
//
// Build must be a pure function of its input and must not retain entries
// after returning. The engine stamps RunID and Index afterwards.
type Builder interface {
	Build(entries []trace.Entry) Slice
}

// TableBuilder is the default Builder. It copies the entries and derives
// the host-call and frame tables.
type TableBuilder struct{}

// Build implements Builder.
func (TableBuilder) Build(entries []trace.Entry) Slice {
	out := Slice{
		Entries:   make([]trace.Entry, len(entries)),
		HostCalls: []HostCallEntry{},
		Frames:    []FrameEntry{},
	}
	copy(out.Entries, entries)

	var open []int // indexes into out.Frames, innermost last
	for _, e := range out.Entries {
		switch st := e.Step.(type) {
		case trace.HostCall:
			hc := HostCallEntry{EID: e.EID, Op: st.Op, IsRet: st.Sig.IsRet()}
			if st.Value != nil {
				v := *st.Value
				hc.Value = &v
			}
			out.HostCalls = append(out.HostCalls, hc)
		case trace.Call:
			out.Frames = append(out.Frames, FrameEntry{
				CallEID:   e.EID,
				CallerFID: e.FID,
				CalleeFID: st.Callee,
				IID:       e.IID,
			})
			open = append(open, len(out.Frames)-1)
		case trace.Return:
			// A return whose call sealed into an earlier slice has no row here.
			if n := len(open); n > 0 {
				f := &out.Frames[open[n-1]]
				f.ReturnEID = e.EID
				f.Returned = true
				open = open[:n-1]
			}
		}
	}
	return out
}
