package store

import (
	"context"
	"fmt"

	"github.com/roach88/zkslice/internal/slice"
)

// Sink adapts a Store to slice.Sink for one run. The context is bound at
// construction because the engine's sink contract has no context.
type Sink struct {
	ctx   context.Context
	store *Store
	runID string
	n     int
}

// NewSink returns a sink writing slices of runID. The run must have been
// written with WriteRun; slices already stored for it count toward Len.
func (s *Store) NewSink(ctx context.Context, runID string) (*Sink, error) {
	if _, err := s.ReadRun(ctx, runID); err != nil {
		return nil, err
	}
	n, err := s.CountSlices(ctx, runID)
	if err != nil {
		return nil, err
	}
	return &Sink{ctx: ctx, store: s, runID: runID, n: n}, nil
}

// Push implements slice.Sink.
func (k *Sink) Push(sl slice.Slice) error {
	if sl.RunID != k.runID {
		return fmt.Errorf("sink for run %s got slice of run %s", k.runID, sl.RunID)
	}
	if _, err := k.store.WriteSlice(k.ctx, sl); err != nil {
		return err
	}
	k.n++
	return nil
}

// Len implements slice.Sink.
func (k *Sink) Len() int { return k.n }

// IsEmpty implements slice.Sink.
func (k *Sink) IsEmpty() bool { return k.n == 0 }

// Slice implements slice.Sink.
func (k *Sink) Slice(i int) (slice.Slice, error) {
	if i < 0 || i >= k.n {
		return slice.Slice{}, fmt.Errorf("%w: %d (have %d)", slice.ErrOutOfRange, i, k.n)
	}
	return k.store.ReadSlice(k.ctx, k.runID, i)
}

// RunID returns the run the sink writes to.
func (k *Sink) RunID() string { return k.runID }
