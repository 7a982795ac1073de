package slice

import (
	"errors"
	"fmt"
)

// Sink is an append-only, order-preserving collection of sealed slices.
//
// The engine pushes slices in seal order; Slice(i) returns the i-th one.
type Sink interface {
	Push(s Slice) error
	Len() int
	IsEmpty() bool
	Slice(i int) (Slice, error)
}

// ErrOutOfRange is returned by Sink.Slice for an index past the end.
var ErrOutOfRange = errors.New("slice index out of range")

func outOfRange(i, n int) error {
	return fmt.Errorf("%w: %d (have %d)", ErrOutOfRange, i, n)
}

// Collect materializes every slice held by sink, in order.
func Collect(sink Sink) ([]Slice, error) {
	out := make([]Slice, 0, sink.Len())
	for i := 0; i < sink.Len(); i++ {
		s, err := sink.Slice(i)
		if err != nil {
			return nil, fmt.Errorf("slice %d: %w", i, err)
		}
		out = append(out, s)
	}
	return out, nil
}

// MemorySink keeps slices in memory.
type MemorySink struct {
	slices []Slice
}

// NewMemorySink creates an empty in-memory sink.
func NewMemorySink() *MemorySink {
	return &MemorySink{}
}

// Push implements Sink.
func (m *MemorySink) Push(s Slice) error {
	m.slices = append(m.slices, s)
	return nil
}

// Len implements Sink.
func (m *MemorySink) Len() int { return len(m.slices) }

// IsEmpty implements Sink.
func (m *MemorySink) IsEmpty() bool { return len(m.slices) == 0 }

// Slice implements Sink.
func (m *MemorySink) Slice(i int) (Slice, error) {
	if i < 0 || i >= len(m.slices) {
		return Slice{}, outOfRange(i, len(m.slices))
	}
	return m.slices[i], nil
}

// Slices returns the held slices. The returned slice must not be modified.
func (m *MemorySink) Slices() []Slice {
	return m.slices
}
