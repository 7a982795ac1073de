package trace

// Recorder stamps entries with a monotonic logical clock.
//
// EIDs start at 1 and never repeat within a recorder. The recorder also
// keeps the call stack so Call and Return entries carry consistent frame
// ids and LastJumpEID values, mirroring what the interpreter emits.
//
// Recorder is not safe for concurrent use; the interpreter drives it from
// a single goroutine in program order.
type Recorder struct {
	eid    uint64
	iid    uint32
	fid    uint32
	frames []frame
	pages  uint32
}

type frame struct {
	fid     uint32
	callEID uint64
}

// NewRecorder creates a recorder whose first entry gets EID 1, executing
// in function 0.
func NewRecorder() *Recorder {
	return &Recorder{pages: 1}
}

// NewRecorderAt creates a recorder that resumes after the given EID.
func NewRecorderAt(lastEID uint64) *Recorder {
	return &Recorder{eid: lastEID, pages: 1}
}

// Current returns the last EID handed out (0 before the first entry).
func (r *Recorder) Current() uint64 {
	return r.eid
}

// Plain records an ordinary instruction.
func (r *Recorder) Plain(opcode string) Entry {
	return r.next(Plain{Opcode: opcode})
}

// Call records a call into callee and pushes a frame.
func (r *Recorder) Call(callee uint32) Entry {
	e := r.next(Call{Callee: callee})
	r.frames = append(r.frames, frame{fid: r.fid, callEID: e.EID})
	r.fid = callee
	r.iid = 0
	return e
}

// Return records a return and pops the current frame. Returning from the
// outermost frame keeps the recorder in function 0.
func (r *Recorder) Return() Entry {
	e := r.next(Return{})
	if n := len(r.frames); n > 0 {
		r.fid = r.frames[n-1].fid
		r.frames = r.frames[:n-1]
	}
	return e
}

// HostArg records an argument-taking host-call step.
func (r *Recorder) HostArg(op int, value uint64) Entry {
	return r.next(HostCall{Op: op, Value: Uint64(value), Sig: SigArgument})
}

// HostRet records a value-returning host-call step.
func (r *Recorder) HostRet(op int, value uint64) Entry {
	return r.next(HostCall{Op: op, Value: Uint64(value), Sig: SigReturn})
}

// Host records a host-call step without a value.
func (r *Recorder) Host(op int) Entry {
	return r.next(HostCall{Op: op, Sig: SigArgument})
}

func (r *Recorder) next(step Step) Entry {
	r.eid++
	r.iid++
	var lastJump uint64
	if n := len(r.frames); n > 0 {
		lastJump = r.frames[n-1].callEID
	}
	return Entry{
		EID:            r.eid,
		FID:            r.fid,
		IID:            r.iid,
		SP:             uint32(len(r.frames)),
		AllocatedPages: r.pages,
		LastJumpEID:    lastJump,
		Step:           step,
	}
}
