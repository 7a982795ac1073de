package store

import (
	"context"
	"fmt"

	"github.com/roach88/zkslice/internal/slice"
)

// Run status values.
const (
	RunStatusRunning  = "running"
	RunStatusComplete = "complete"
	RunStatusFailed   = "failed"
)

// Run describes one engine run.
type Run struct {
	ID       string `json:"id"`
	K        int    `json:"k"`
	Capacity int    `json:"capacity"`
	Status   string `json:"status"`
	Slices   int    `json:"slices"`
	Error    string `json:"error,omitempty"`
}

// WriteRun inserts a run record in the running state.
// Uses ON CONFLICT(id) DO NOTHING for idempotency - writing the same run
// twice is silently ignored.
func (s *Store) WriteRun(ctx context.Context, run Run) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO runs (id, k, capacity, status)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`, run.ID, run.K, run.Capacity, RunStatusRunning)
	if err != nil {
		return fmt.Errorf("write run: %w", err)
	}
	return nil
}

// FinishRun records the final status of a run. runErr is stored as text
// when the run failed.
func (s *Store) FinishRun(ctx context.Context, runID string, runErr error) error {
	status, msg := RunStatusComplete, ""
	if runErr != nil {
		status, msg = RunStatusFailed, runErr.Error()
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, error = ?,
		    slices = (SELECT COUNT(*) FROM slices WHERE run_id = ?)
		WHERE id = ?
	`, status, msg, runID, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("finish run: %w: %s", ErrRunNotFound, runID)
	}
	return nil
}

// WriteSlice stores a sealed slice, its commitment and its entries in one
// transaction. The slice index must be the next one for the run.
func (s *Store) WriteSlice(ctx context.Context, sl slice.Slice) (slice.Commitment, error) {
	c, err := slice.Commit(sl)
	if err != nil {
		return slice.Commitment{}, fmt.Errorf("write slice %d: %w", sl.Index, err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return slice.Commitment{}, fmt.Errorf("write slice %d: begin tx: %w", sl.Index, err)
	}
	defer tx.Rollback() // No-op if committed

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM slices WHERE run_id = ?`, sl.RunID,
	).Scan(&next); err != nil {
		return slice.Commitment{}, fmt.Errorf("write slice %d: %w", sl.Index, err)
	}
	if sl.Index != next {
		return slice.Commitment{}, fmt.Errorf("write slice %d: run %s expects index %d", sl.Index, sl.RunID, next)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO slices
		(run_id, idx, id, keccak, mimc, entry_count, first_eid, last_eid)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`,
		sl.RunID,
		sl.Index,
		c.ID,
		c.Keccak,
		c.MiMC,
		len(sl.Entries),
		sl.FirstEID(),
		sl.LastEID(),
	)
	if err != nil {
		return slice.Commitment{}, fmt.Errorf("write slice %d: %w", sl.Index, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entries (run_id, slice_idx, pos, eid, kind, entry)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return slice.Commitment{}, fmt.Errorf("write slice %d: prepare: %w", sl.Index, err)
	}
	defer stmt.Close()

	for pos, e := range sl.Entries {
		text, err := marshalEntry(e)
		if err != nil {
			return slice.Commitment{}, fmt.Errorf("write slice %d: %w", sl.Index, err)
		}
		if _, err := stmt.ExecContext(ctx, sl.RunID, sl.Index, pos, e.EID, string(e.Step.Kind()), text); err != nil {
			return slice.Commitment{}, fmt.Errorf("write slice %d: entry %d: %w", sl.Index, e.EID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return slice.Commitment{}, fmt.Errorf("write slice %d: commit: %w", sl.Index, err)
	}
	return c, nil
}
