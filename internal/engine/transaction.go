package engine

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/zkslice/internal/policy"
	"github.com/roach88/zkslice/internal/slice"
	"github.com/roach88/zkslice/internal/trace"
)

// HostTransaction buffers trace entries and seals them into slices of at
// most capacity entries without ever cutting inside a host-call group.
//
// INVARIANTS:
//   - Before an entry is appended the buffer holds fewer than capacity
//     entries, or a seal was deferred because one open group starts at
//     offset 0.
//   - The safe cut never exceeds the start of an open group or of an
//     unconfirmed lazy group.
//   - Concatenating every sealed slice yields the inserted entries in
//     insertion order.
//
// HostTransaction is single-threaded. Insert and Finalize must be called
// from one goroutine in trace order.
type HostTransaction struct {
	capacity   int
	buf        []trace.Entry
	pos        abortPosition
	ledger     ledger
	hostIsFull bool

	policy  policy.Policy
	builder slice.Builder
	sink    slice.Sink
	logger  *slog.Logger
	runID   string

	sealed      int
	skipping    bool
	skipThrough uint64
	deferring   bool
	stats       Stats
	err         error
	finalized   bool
}

// Stats counts what the engine did during a run.
type Stats struct {
	Inserted int `json:"inserted"`
	Sealed   int `json:"sealed"`
	Replayed int `json:"replayed"`
	Deferred int `json:"deferred"`
	Settled  int `json:"settled"`
	Aborts   int `json:"aborts"`
	Skipped  int `json:"skipped"`
}

// Option configures a HostTransaction.
type Option func(*HostTransaction)

// WithBuilder replaces the default TableBuilder.
func WithBuilder(b slice.Builder) Option {
	return func(t *HostTransaction) {
		if b != nil {
			t.builder = b
		}
	}
}

// WithLogger sets the logger. Seals are logged at Debug, deferred seals at
// Warn.
func WithLogger(l *slog.Logger) Option {
	return func(t *HostTransaction) {
		if l != nil {
			t.logger = l
		}
	}
}

// WithRunID stamps slices with a fixed run id.
func WithRunID(id string) Option {
	return func(t *HostTransaction) {
		t.runID = id
	}
}

// WithRunIDGenerator draws the run id from gen.
func WithRunIDGenerator(gen RunIDGenerator) Option {
	return func(t *HostTransaction) {
		t.runID = gen.Generate()
	}
}

// New creates an engine that seals slices of at most capacity entries into
// sink, asking p about every host-call step.
func New(capacity int, p policy.Policy, sink slice.Sink, opts ...Option) (*HostTransaction, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("capacity must be positive, got %d", capacity)
	}
	if p == nil {
		return nil, fmt.Errorf("policy is required")
	}
	if sink == nil {
		return nil, fmt.Errorf("sink is required")
	}

	t := &HostTransaction{
		capacity: capacity,
		buf:      make([]trace.Entry, 0, capacity),
		pos:      newAbortPosition(capacity),
		ledger:   newLedger(),
		policy:   p,
		builder:  slice.TableBuilder{},
		sink:     sink,
		logger:   slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	if t.runID == "" {
		t.runID = UUIDv7Generator{}.Generate()
	}
	if n := sink.Len(); n != t.sealed {
		return nil, fmt.Errorf("sink holds %d slices, run starts at slice %d", n, t.sealed)
	}
	t.logger = t.logger.With("run_id", t.runID)
	return t, nil
}

// RunID returns the id stamped on this run's slices.
func (t *HostTransaction) RunID() string { return t.runID }

// Len returns the number of buffered, not yet sealed entries.
func (t *HostTransaction) Len() int { return len(t.buf) }

// Capacity returns the slice capacity.
func (t *HostTransaction) Capacity() int { return t.capacity }

// Stats returns the counters collected so far.
func (t *HostTransaction) Stats() Stats { return t.stats }

// Err returns the sticky error, if any.
func (t *HostTransaction) Err() error { return t.err }

// Insert admits one trace entry. It is the only ingestion point.
//
// A returned error is fatal: the engine keeps returning it from every
// later call.
func (t *HostTransaction) Insert(e trace.Entry) error {
	if t.err != nil {
		return t.err
	}
	if t.finalized {
		t.err = &ContractError{Code: ErrCodeFinalized, Message: "insert after finalize", EID: e.EID}
		return t.err
	}
	if t.skipping && e.EID <= t.skipThrough {
		t.stats.Skipped++
		return nil
	}
	t.stats.Inserted++
	if err := t.insert(e); err != nil {
		var ce *ContractError
		if errors.As(err, &ce) && ce.EID == 0 {
			ce.EID = e.EID
		}
		t.err = err
		return err
	}
	return nil
}

// Finalize seals everything that remains and returns the sink.
//
// Lazy closures are settled first: no later entry can roll them back. A
// group still open at this point fails with INCOMPLETE_GROUP. Calling
// Finalize again is a no-op.
func (t *HostTransaction) Finalize() (slice.Sink, error) {
	if t.err != nil {
		return t.sink, t.err
	}
	if t.finalized {
		return t.sink, nil
	}
	t.finalized = true

	if !t.ledger.inTransaction() && t.ledger.inLazy() {
		t.ledger.settleLazy()
		t.stats.Settled++
	}
	if err := t.seal(); err != nil {
		t.err = err
		return t.sink, err
	}
	if len(t.buf) != 0 {
		t.err = &ContractError{
			Code:    ErrCodeIncompleteGroup,
			Message: fmt.Sprintf("%d entries remain in an open group at finalize", len(t.buf)),
		}
		return t.sink, t.err
	}
	return t.sink, nil
}

func (t *HostTransaction) insert(e trace.Entry) error {
	// Replay after a seal may leave the buffer full again.
	if err := t.sealWhile(func() bool { return len(t.buf) >= t.capacity }); err != nil {
		return err
	}

	op, ok := e.HostCallOp()
	if !ok {
		t.buf = append(t.buf, e)
		return nil
	}

	if err := t.sealWhile(func() bool { return t.hostIsFull }); err != nil {
		return err
	}

	cmd := t.policy.Notify(policy.HostCallEvent(op))
	if cmd.Kind == policy.CommandAbort {
		t.stats.Aborts++
		if err := t.seal(); err != nil {
			return err
		}
		cmd = t.policy.Notify(policy.HostCallEvent(op))
		if cmd.Kind == policy.CommandAbort {
			return &ContractError{
				Code:    ErrCodeRepeatedAbort,
				Message: fmt.Sprintf("policy aborted op %d again after a seal", op),
			}
		}
		if err := t.apply(cmd, e); err != nil {
			return err
		}
		t.hostIsFull = true
		return nil
	}
	return t.apply(cmd, e)
}

func (t *HostTransaction) apply(cmd policy.Command, e trace.Entry) error {
	switch cmd.Kind {
	case policy.CommandNoop:
		t.buf = append(t.buf, e)
		return nil

	case policy.CommandStart:
		if err := t.tryUpdate(len(t.buf)); err != nil {
			return err
		}
		if err := t.ledger.start(cmd.ID, len(t.buf)); err != nil {
			return err
		}
		t.buf = append(t.buf, e)
		return nil

	case policy.CommandCommit:
		t.buf = append(t.buf, e)
		return t.commit(cmd.ID, cmd.Lazy)

	case policy.CommandCommitAndAbort:
		t.buf = append(t.buf, e)
		if err := t.commit(cmd.ID, cmd.Lazy); err != nil {
			return err
		}
		t.hostIsFull = true
		return nil

	default:
		return &ContractError{
			Code:    ErrCodeUnknownCommand,
			Message: fmt.Sprintf("unexpected command %s", cmd),
		}
	}
}

// tryUpdate records that pos is a group boundary. Inside an open group it
// changes nothing. With lazy closures outstanding it extends them;
// otherwise it advances the safe cut.
func (t *HostTransaction) tryUpdate(pos int) error {
	switch {
	case t.ledger.inTransaction():
		return nil
	case t.ledger.inLazy():
		t.ledger.extendLazy(pos)
		return nil
	default:
		return t.pos.update(pos)
	}
}

func (t *HostTransaction) commit(id policy.TransactionID, lazy bool) error {
	cp, err := t.ledger.close(id)
	if err != nil {
		return err
	}
	now := len(t.buf)

	// A later commit of the same id confirms the previous lazy group.
	if prev, ok := t.ledger.retire(id); ok {
		target := prev.at
		if floor, ok := t.ledger.floor(); ok && floor < target {
			target = floor
		}
		t.pos.advance(target)
	}
	if lazy {
		t.ledger.lazy[id] = lazyClosure{start: cp.start, at: now}
	}
	return t.tryUpdate(now)
}

// sealWhile seals as long as cond holds and each seal emits a slice.
func (t *HostTransaction) sealWhile(cond func() bool) error {
	for cond() {
		before := t.sealed
		if err := t.seal(); err != nil {
			return err
		}
		if t.sealed == before {
			return nil
		}
	}
	return nil
}

// seal cuts the buffer at the safe position, pushes the prefix to the sink
// and replays the suffix into a fresh state.
func (t *HostTransaction) seal() error {
	if len(t.buf) == 0 {
		return nil
	}
	if !t.ledger.inTransaction() && !t.ledger.inLazy() {
		if err := t.pos.update(len(t.buf)); err != nil {
			return err
		}
	}

	cut := min(t.pos.finalize(), len(t.buf))
	if cut == 0 {
		if t.ledger.inTransaction() {
			t.stats.Deferred++
			if !t.deferring {
				t.deferring = true
				t.logger.Warn("seal deferred: open group starts at offset 0",
					"buffered", len(t.buf),
					"capacity", t.capacity)
			}
			return nil
		}
		// Only lazy closures hold the cut back. Confirm them rather than
		// letting the buffer grow without bound.
		t.ledger.settleLazy()
		t.stats.Settled++
		cut = len(t.buf)
	}

	s := t.builder.Build(t.buf[:cut])
	s.RunID = t.runID
	s.Index = t.sealed
	if err := t.sink.Push(s); err != nil {
		return &SinkError{Index: t.sealed, Err: err}
	}
	t.sealed++
	t.stats.Sealed++
	t.deferring = false

	rest := append([]trace.Entry(nil), t.buf[cut:]...)
	t.logger.Debug("slice sealed",
		"index", s.Index,
		"entries", cut,
		"first_eid", s.FirstEID(),
		"last_eid", s.LastEID(),
		"retained", len(rest))

	t.buf = make([]trace.Entry, 0, t.capacity)
	t.hostIsFull = false
	t.pos.reset()
	t.ledger.reset()

	if cmd := t.policy.Notify(policy.ResetEvent()); cmd.Kind != policy.CommandNoop {
		return &ContractError{
			Code:    ErrCodeResetNotNoop,
			Message: fmt.Sprintf("policy answered Reset with %s", cmd),
		}
	}

	t.stats.Replayed += len(rest)
	for _, e := range rest {
		if err := t.insert(e); err != nil {
			return err
		}
	}
	return nil
}
