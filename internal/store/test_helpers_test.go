package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/roach88/zkslice/internal/slice"
	"github.com/roach88/zkslice/internal/trace"
)

// createTestStore creates a new on-disk store in a temp dir for testing.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestRun writes a running run with small parameters.
func createTestRun(t *testing.T, s *Store, id string) {
	t.Helper()
	if err := s.WriteRun(context.Background(), Run{ID: id, K: 18, Capacity: 4}); err != nil {
		t.Fatalf("WriteRun() failed: %v", err)
	}
}

// createTestSlices cuts a small trace with calls and host calls into
// slices of at most size entries.
func createTestSlices(runID string, size int) []slice.Slice {
	r := trace.NewRecorder()
	entries := []trace.Entry{
		r.Plain("i32.const"),
		r.Call(3),
		r.HostArg(24, 7),
		r.HostRet(25, 9),
		r.Return(),
		r.Host(18),
		r.Plain("drop"),
	}

	var out []slice.Slice
	for start := 0; start < len(entries); start += size {
		end := min(start+size, len(entries))
		s := slice.TableBuilder{}.Build(entries[start:end])
		s.RunID = runID
		s.Index = len(out)
		out = append(out, s)
	}
	return out
}
