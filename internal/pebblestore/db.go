package pebblestore

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/cockroachdb/pebble"
)

// Options configures the Pebble store.
type Options struct {
	// DataDir is the path to the Pebble database directory.
	DataDir string
	// NoSync skips the WAL fsync on each pushed slice.
	NoSync bool
	// PebbleOptions allows advanced tuning of Pebble. If nil, defaults are used.
	PebbleOptions *pebble.Options
}

// DB wraps a Pebble database holding slices of any number of runs.
type DB struct {
	inner *pebble.DB
	sync  *pebble.WriteOptions
}

// Open creates or opens a Pebble database with the provided options.
func Open(opts Options) (*DB, error) {
	if opts.DataDir == "" {
		return nil, errors.New("pebblestore: Options.DataDir is required")
	}
	po := opts.PebbleOptions
	if po == nil {
		po = &pebble.Options{}
	}
	inner, err := pebble.Open(opts.DataDir, po)
	if err != nil {
		return nil, fmt.Errorf("open pebble %s: %w", opts.DataDir, err)
	}
	wo := pebble.Sync
	if opts.NoSync {
		wo = pebble.NoSync
	}
	return &DB{inner: inner, sync: wo}, nil
}

// Close closes the Pebble database.
func (db *DB) Close() error {
	if db == nil || db.inner == nil {
		return nil
	}
	return db.inner.Close()
}

// get copies the value for key.
func (db *DB) get(key []byte) ([]byte, error) {
	val, closer, err := db.inner.Get(key)
	if err != nil {
		return nil, err
	}
	defer closer.Close()
	return append([]byte(nil), val...), nil
}

// countSlices counts the stored slices of a run and checks that their
// indexes are dense from zero.
func (db *DB) countSlices(runID string) (int, error) {
	prefix := keySlicePrefix(runID)
	iter, err := db.inner.NewIter(&pebble.IterOptions{
		LowerBound: prefix,
		UpperBound: prefixUpperBound(prefix),
	})
	if err != nil {
		return 0, err
	}
	defer iter.Close()

	n := 0
	for valid := iter.First(); valid; valid = iter.Next() {
		idx, err := sliceIndex(runID, iter.Key())
		if err != nil {
			return 0, err
		}
		if idx != uint64(n) {
			return 0, fmt.Errorf("pebblestore: run %s has a gap at slice %d", runID, n)
		}
		n++
	}
	return n, iter.Error()
}

// Runs returns the ids of every run with at least one slice, in key order.
func (db *DB) Runs() ([]string, error) {
	iter, err := db.inner.NewIter(&pebble.IterOptions{
		LowerBound: runPrefix,
		UpperBound: prefixUpperBound(runPrefix),
	})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	runs := []string{}
	for valid := iter.First(); valid; {
		key := iter.Key()
		rest := key[len(runPrefix):]
		end := bytes.Index(rest, sliceSeg)
		if end < 0 {
			valid = iter.Next()
			continue
		}
		id := string(rest[:end])
		runs = append(runs, id)
		// Skip the rest of this run.
		valid = iter.SeekGE(prefixUpperBound(keySlicePrefix(id)))
	}
	return runs, iter.Error()
}
