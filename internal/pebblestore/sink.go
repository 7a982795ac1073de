package pebblestore

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"

	"github.com/roach88/zkslice/internal/slice"
)

// Sink stores the slices of one run. It implements slice.Sink.
type Sink struct {
	db    *DB
	runID string
	n     int
}

// Sink returns a sink for runID. Slices already stored for the run count
// toward Len, so a reopened database resumes where it stopped.
func (db *DB) Sink(runID string) (*Sink, error) {
	if runID == "" {
		return nil, errors.New("pebblestore: run id is required")
	}
	n, err := db.countSlices(runID)
	if err != nil {
		return nil, fmt.Errorf("open sink for run %s: %w", runID, err)
	}
	return &Sink{db: db, runID: runID, n: n}, nil
}

// Push implements slice.Sink.
func (s *Sink) Push(sl slice.Slice) error {
	if sl.RunID != s.runID {
		return fmt.Errorf("sink for run %s got slice of run %s", s.runID, sl.RunID)
	}
	if sl.Index != s.n {
		return fmt.Errorf("sink for run %s expects index %d, got %d", s.runID, s.n, sl.Index)
	}
	data, err := json.Marshal(sl)
	if err != nil {
		return fmt.Errorf("marshal slice %d: %w", sl.Index, err)
	}

	b := s.db.inner.NewBatch()
	defer b.Close()
	if err := b.Set(keySlice(s.runID, uint64(sl.Index)), data, nil); err != nil {
		return err
	}
	if err := b.Commit(s.db.sync); err != nil {
		return fmt.Errorf("commit slice %d: %w", sl.Index, err)
	}
	s.n++
	return nil
}

// Len implements slice.Sink.
func (s *Sink) Len() int { return s.n }

// IsEmpty implements slice.Sink.
func (s *Sink) IsEmpty() bool { return s.n == 0 }

// Slice implements slice.Sink.
func (s *Sink) Slice(i int) (slice.Slice, error) {
	if i < 0 || i >= s.n {
		return slice.Slice{}, fmt.Errorf("%w: %d (have %d)", slice.ErrOutOfRange, i, s.n)
	}
	data, err := s.db.get(keySlice(s.runID, uint64(i)))
	if errors.Is(err, pebble.ErrNotFound) {
		return slice.Slice{}, fmt.Errorf("%w: %d (missing)", slice.ErrOutOfRange, i)
	}
	if err != nil {
		return slice.Slice{}, err
	}
	var out slice.Slice
	if err := json.Unmarshal(data, &out); err != nil {
		return slice.Slice{}, fmt.Errorf("decode slice %d: %w", i, err)
	}
	return out, nil
}

// RunID returns the run the sink writes to.
func (s *Sink) RunID() string { return s.runID }
