package trace

import "fmt"

// Entry is one executed VM step as recorded by the interpreter.
//
// Entries are immutable once recorded. EID is strictly increasing across a
// run and is the only ordering key consumers may rely on.
type Entry struct {
	EID            uint64
	FID            uint32
	IID            uint32
	SP             uint32
	AllocatedPages uint32
	LastJumpEID    uint64
	Step           Step
}

// IsHostCall reports whether the entry is an external host-call step.
func (e Entry) IsHostCall() bool {
	_, ok := e.Step.(HostCall)
	return ok
}

// HostCallOp returns the operation code of a host-call entry.
// ok is false for every other step kind.
func (e Entry) HostCallOp() (op int, ok bool) {
	hc, ok := e.Step.(HostCall)
	if !ok {
		return 0, false
	}
	return hc.Op, true
}

// Step is the tagged variant describing what an entry did.
//
// The set of variants is closed: Plain, Call, Return and HostCall.
type Step interface {
	Kind() StepKind
	isStep()
}

// StepKind names a Step variant. The string form is the wire tag.
type StepKind string

const (
	KindPlain    StepKind = "plain"
	KindCall     StepKind = "call"
	KindReturn   StepKind = "return"
	KindHostCall StepKind = "host_call"
)

// Plain is an ordinary VM instruction.
type Plain struct {
	Opcode string
}

// Call enters a new frame.
type Call struct {
	Callee uint32
}

// Return leaves the current frame.
type Return struct{}

// HostCall is one step of an external host call. Multi-step host
// operations (hash, curve sum, Merkle access) are sequences of these.
type HostCall struct {
	Op    int
	Value *uint64
	Sig   Signature
}

func (Plain) Kind() StepKind    { return KindPlain }
func (Call) Kind() StepKind     { return KindCall }
func (Return) Kind() StepKind   { return KindReturn }
func (HostCall) Kind() StepKind { return KindHostCall }

func (Plain) isStep()    {}
func (Call) isStep()     {}
func (Return) isStep()   {}
func (HostCall) isStep() {}

// Signature distinguishes host calls that consume an argument from those
// that produce a return value.
type Signature int

const (
	SigArgument Signature = iota
	SigReturn
)

// IsRet reports whether the host call returns a value.
func (s Signature) IsRet() bool {
	return s == SigReturn
}

func (s Signature) String() string {
	switch s {
	case SigArgument:
		return "argument"
	case SigReturn:
		return "return"
	default:
		return fmt.Sprintf("Signature(%d)", int(s))
	}
}

// Uint64 returns a pointer to v, for building HostCall values.
func Uint64(v uint64) *uint64 {
	return &v
}
