package engine

import "fmt"

// abortPosition is the safe-cut cursor: the highest buffer offset known to
// contain no incomplete group before it.
//
// Once set, the cursor only moves forward until reset. Before it is ever
// set, nothing constrained the buffer and the whole capacity is safe.
type abortPosition struct {
	capacity int
	cursor   int
	set      bool
}

func newAbortPosition(capacity int) abortPosition {
	return abortPosition{capacity: capacity}
}

// update moves the cursor to pos. Moving it backward is a contract error.
func (p *abortPosition) update(pos int) error {
	if p.set && pos < p.cursor {
		return &ContractError{
			Code:    ErrCodeCursorRegression,
			Message: fmt.Sprintf("safe cut would move backward from %d to %d", p.cursor, pos),
		}
	}
	p.cursor = pos
	p.set = true
	return nil
}

// advance moves the cursor to pos if that is forward of the current one.
func (p *abortPosition) advance(pos int) {
	if !p.set || pos > p.cursor {
		p.cursor = pos
		p.set = true
	}
}

func (p *abortPosition) reset() {
	p.cursor = 0
	p.set = false
}

// finalize returns the offset to cut at.
func (p *abortPosition) finalize() int {
	if p.set {
		return p.cursor
	}
	return p.capacity
}
