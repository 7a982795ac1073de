package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/roach88/zkslice/internal/slice"
	"github.com/roach88/zkslice/internal/trace"
)

// ErrRunNotFound is returned when a run id is unknown.
var ErrRunNotFound = errors.New("run not found")

// ErrRunComplete is returned when a finished run is reopened.
var ErrRunComplete = errors.New("run already complete")

// ErrSliceNotFound is returned when a run has no slice at an index.
var ErrSliceNotFound = errors.New("slice not found")

// SliceRecord is the stored summary of one slice.
type SliceRecord struct {
	RunID      string `json:"run_id"`
	Index      int    `json:"index"`
	ID         string `json:"id"`
	Keccak     string `json:"keccak"`
	MiMC       string `json:"mimc"`
	EntryCount int    `json:"entry_count"`
	FirstEID   uint64 `json:"first_eid"`
	LastEID    uint64 `json:"last_eid"`
}

// Commitment returns the stored commitment.
func (r SliceRecord) Commitment() slice.Commitment {
	return slice.Commitment{ID: r.ID, Keccak: r.Keccak, MiMC: r.MiMC}
}

// ReadRun returns one run.
func (s *Store) ReadRun(ctx context.Context, runID string) (Run, error) {
	var r Run
	err := s.db.QueryRowContext(ctx, `
		SELECT id, k, capacity, status, slices, error
		FROM runs
		WHERE id = ?
	`, runID).Scan(&r.ID, &r.K, &r.Capacity, &r.Status, &r.Slices, &r.Error)
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if err != nil {
		return Run{}, fmt.Errorf("read run: %w", err)
	}
	return r, nil
}

// ListRuns returns every run ordered by id. Run ids are UUIDv7, so this is
// also creation order.
//
// Returns an empty slice (not nil) if no runs exist.
func (s *Store) ListRuns(ctx context.Context) ([]Run, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, k, capacity, status, slices, error
		FROM runs
		ORDER BY id COLLATE BINARY ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	runs := []Run{}
	for rows.Next() {
		var r Run
		if err := rows.Scan(&r.ID, &r.K, &r.Capacity, &r.Status, &r.Slices, &r.Error); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate runs: %w", err)
	}
	return runs, nil
}

// ListSlices returns the slice summaries of a run in index order.
//
// Returns an empty slice (not nil) if the run has no slices.
func (s *Store) ListSlices(ctx context.Context, runID string) ([]SliceRecord, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT run_id, idx, id, keccak, mimc, entry_count, first_eid, last_eid
		FROM slices
		WHERE run_id = ?
		ORDER BY idx ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("query slices: %w", err)
	}
	defer rows.Close()

	records := []SliceRecord{}
	for rows.Next() {
		rec, err := scanSliceRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate slices: %w", err)
	}
	return records, nil
}

// FindSliceByKeccak looks up a slice by its Keccak commitment.
func (s *Store) FindSliceByKeccak(ctx context.Context, keccak string) (SliceRecord, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT run_id, idx, id, keccak, mimc, entry_count, first_eid, last_eid
		FROM slices
		WHERE keccak = ?
		ORDER BY run_id COLLATE BINARY ASC, idx ASC
		LIMIT 1
	`, keccak)
	rec, err := scanSliceRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return SliceRecord{}, fmt.Errorf("%w: keccak %s", ErrSliceNotFound, keccak)
	}
	return rec, err
}

// CountSlices returns the number of slices stored for a run.
func (s *Store) CountSlices(ctx context.Context, runID string) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM slices WHERE run_id = ?`, runID,
	).Scan(&n); err != nil {
		return 0, fmt.Errorf("count slices: %w", err)
	}
	return n, nil
}

// ReadSlice rebuilds slice idx of a run from its stored entries. The side
// tables are derived again with slice.TableBuilder.
func (s *Store) ReadSlice(ctx context.Context, runID string, idx int) (slice.Slice, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entry
		FROM entries
		WHERE run_id = ? AND slice_idx = ?
		ORDER BY pos ASC
	`, runID, idx)
	if err != nil {
		return slice.Slice{}, fmt.Errorf("query entries: %w", err)
	}
	defer rows.Close()

	var entries []trace.Entry
	for rows.Next() {
		var text string
		if err := rows.Scan(&text); err != nil {
			return slice.Slice{}, fmt.Errorf("scan entry: %w", err)
		}
		e, err := unmarshalEntry(text)
		if err != nil {
			return slice.Slice{}, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return slice.Slice{}, fmt.Errorf("iterate entries: %w", err)
	}
	if len(entries) == 0 {
		return slice.Slice{}, fmt.Errorf("%w: run %s index %d", ErrSliceNotFound, runID, idx)
	}

	out := slice.TableBuilder{}.Build(entries)
	out.RunID = runID
	out.Index = idx
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSliceRecord(row rowScanner) (SliceRecord, error) {
	var r SliceRecord
	err := row.Scan(&r.RunID, &r.Index, &r.ID, &r.Keccak, &r.MiMC, &r.EntryCount, &r.FirstEID, &r.LastEID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return SliceRecord{}, err
		}
		return SliceRecord{}, fmt.Errorf("scan slice: %w", err)
	}
	return r, nil
}
