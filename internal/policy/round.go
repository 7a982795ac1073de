package policy

import (
	"fmt"
	"log/slog"
)

// RoundPolicy is the reference Flush Policy. Every registered family has
// its own RoundCounter; op codes map to their family.
//
// Step handling for a family op:
//   - first step of a group: Start(family.ID)
//   - step completing a group: Commit, or CommitAndAbort once the family
//     used every round the circuit admits
//   - anything else: Noop
//
// Ops that belong to no family are admitted with Noop.
type RoundPolicy struct {
	k        int
	families map[TransactionID]*familyState
	byOp     map[int]*familyState
	logger   *slog.Logger
}

type familyState struct {
	family  Family
	counter *RoundCounter
}

// RoundOption configures a RoundPolicy.
type RoundOption func(*RoundPolicy)

// WithLogger sets the logger used for round bookkeeping at Debug level.
func WithLogger(l *slog.Logger) RoundOption {
	return func(p *RoundPolicy) {
		if l != nil {
			p.logger = l
		}
	}
}

// NewRoundPolicy builds a policy for circuit size k over fams.
//
// Returns an error if a family is invalid, if two families share an id or
// if an op code is claimed twice.
func NewRoundPolicy(k int, fams []Family, opts ...RoundOption) (*RoundPolicy, error) {
	p := &RoundPolicy{
		k:        k,
		families: make(map[TransactionID]*familyState, len(fams)),
		byOp:     make(map[int]*familyState),
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}

	for _, f := range fams {
		if err := f.Validate(); err != nil {
			return nil, err
		}
		if prev, ok := p.families[f.ID]; ok {
			return nil, fmt.Errorf("family %s: id %d already used by %s", f.Name, f.ID, prev.family.Name)
		}
		st := &familyState{
			family:  f,
			counter: NewRoundCounter(f.GroupSize, f.RoundBound(k)),
		}
		p.families[f.ID] = st
		for _, op := range f.Ops {
			if prev, ok := p.byOp[op]; ok {
				return nil, fmt.Errorf("family %s: op code %d already claimed by %s", f.Name, op, prev.family.Name)
			}
			p.byOp[op] = st
		}
	}
	return p, nil
}

// MustRoundPolicy is NewRoundPolicy for static family tables.
func MustRoundPolicy(k int, fams []Family, opts ...RoundOption) *RoundPolicy {
	p, err := NewRoundPolicy(k, fams, opts...)
	if err != nil {
		panic(err)
	}
	return p
}

// K returns the circuit size the round bounds were computed for.
func (p *RoundPolicy) K() int {
	return p.k
}

// Notify implements Policy.
func (p *RoundPolicy) Notify(ev Event) Command {
	switch ev.Kind {
	case EventReset:
		for _, st := range p.families {
			st.counter.Reset()
		}
		return Noop()
	case EventHostCall:
		st, ok := p.byOp[ev.Op]
		if !ok {
			return Noop()
		}
		return p.step(st)
	default:
		return Noop()
	}
}

func (p *RoundPolicy) step(st *familyState) Command {
	f := st.family
	phase, exhausted := st.counter.Step()
	switch phase {
	case PhaseFirst:
		return Start(f.ID)
	case PhaseLast:
		p.logger.Debug("group completed",
			"family", f.Name,
			"rounds", st.counter.Completed(),
			"max_rounds", st.counter.MaxRounds())
		if exhausted {
			return CommitAndAbort(f.ID, f.Lazy)
		}
		return Commit(f.ID, f.Lazy)
	default:
		return Noop()
	}
}

// Rounds returns the completed group count per family name since the last
// reset.
func (p *RoundPolicy) Rounds() map[string]int {
	out := make(map[string]int, len(p.families))
	for _, st := range p.families {
		out[st.family.Name] = st.counter.Completed()
	}
	return out
}

// Bounds returns the round bound per family name.
func (p *RoundPolicy) Bounds() map[string]int {
	out := make(map[string]int, len(p.families))
	for _, st := range p.families {
		out[st.family.Name] = st.counter.MaxRounds()
	}
	return out
}
