package engine

import (
	"fmt"

	"github.com/roach88/zkslice/internal/policy"
)

// checkpoint records where a transaction began in the buffer.
type checkpoint struct {
	start int
}

// lazyClosure is a group that committed provisionally. start is where the
// group began; at is the offset the closure currently vouches for and is
// pushed forward while nothing is open.
type lazyClosure struct {
	start int
	at    int
}

// ledger tracks open transactions and lazy closures, both keyed by id.
// A single lazy slot is the special case of one lazy family.
type ledger struct {
	open map[policy.TransactionID]checkpoint
	lazy map[policy.TransactionID]lazyClosure
}

func newLedger() ledger {
	return ledger{
		open: make(map[policy.TransactionID]checkpoint),
		lazy: make(map[policy.TransactionID]lazyClosure),
	}
}

func (l *ledger) inTransaction() bool { return len(l.open) > 0 }

func (l *ledger) inLazy() bool { return len(l.lazy) > 0 }

func (l *ledger) start(id policy.TransactionID, pos int) error {
	if _, ok := l.open[id]; ok {
		return &ContractError{
			Code:    ErrCodeAlreadyOpen,
			ID:      id,
			Message: fmt.Sprintf("transaction %d started at offset %d while already open", id, pos),
		}
	}
	l.open[id] = checkpoint{start: pos}
	return nil
}

// close drops the open record of id and returns where it started.
func (l *ledger) close(id policy.TransactionID) (checkpoint, error) {
	cp, ok := l.open[id]
	if !ok {
		return checkpoint{}, &ContractError{
			Code:    ErrCodeNotOpen,
			ID:      id,
			Message: fmt.Sprintf("transaction %d committed without being started", id),
		}
	}
	delete(l.open, id)
	return cp, nil
}

// retire removes the lazy closure of id, if any.
func (l *ledger) retire(id policy.TransactionID) (lazyClosure, bool) {
	lc, ok := l.lazy[id]
	if ok {
		delete(l.lazy, id)
	}
	return lc, ok
}

// extendLazy pushes every lazy closure forward to pos.
func (l *ledger) extendLazy(pos int) {
	for id, lc := range l.lazy {
		lc.at = pos
		l.lazy[id] = lc
	}
}

// floor returns the smallest offset a cut may not cross: the start of any
// open group and the start of any unconfirmed lazy group. ok is false when
// the ledger constrains nothing.
func (l *ledger) floor() (pos int, ok bool) {
	for _, cp := range l.open {
		if !ok || cp.start < pos {
			pos, ok = cp.start, true
		}
	}
	for _, lc := range l.lazy {
		if !ok || lc.start < pos {
			pos, ok = lc.start, true
		}
	}
	return pos, ok
}

func (l *ledger) settleLazy() {
	clear(l.lazy)
}

func (l *ledger) reset() {
	clear(l.open)
	clear(l.lazy)
}
