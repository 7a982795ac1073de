package store

import (
	"context"
	"fmt"
)

// RunState is what a resumed run needs to know about an interrupted one.
type RunState struct {
	Run Run `json:"run"`
	// Sealed counts the slices stored so far.
	Sealed int `json:"sealed"`
	// LastEID is the last entry of the last stored slice, 0 when none.
	LastEID uint64 `json:"last_eid"`
}

// Complete reports whether the run finished without error.
func (s RunState) Complete() bool {
	return s.Run.Status == RunStatusComplete
}

// GetRunState reads the run record and how far its slices got. The count
// comes from the slices table, not the runs row, since a crashed run never
// reached FinishRun.
func (s *Store) GetRunState(ctx context.Context, runID string) (RunState, error) {
	run, err := s.ReadRun(ctx, runID)
	if err != nil {
		return RunState{}, err
	}
	state := RunState{Run: run}
	err = s.db.QueryRowContext(ctx, `
		SELECT COUNT(*), COALESCE(MAX(last_eid), 0)
		FROM slices
		WHERE run_id = ?
	`, runID).Scan(&state.Sealed, &state.LastEID)
	if err != nil {
		return RunState{}, fmt.Errorf("get run state: %w", err)
	}
	return state, nil
}

// FindIncompleteRuns returns every run that is still running or failed,
// ordered by id. These are the runs a resume can pick up.
//
// Returns an empty slice (not nil) if every run completed.
func (s *Store) FindIncompleteRuns(ctx context.Context) ([]RunState, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id
		FROM runs
		WHERE status != ?
		ORDER BY id COLLATE BINARY ASC
	`, RunStatusComplete)
	if err != nil {
		return nil, fmt.Errorf("find incomplete runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run ids: %w", err)
	}

	states := []RunState{}
	for _, id := range ids {
		st, err := s.GetRunState(ctx, id)
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}

// ReopenRun puts an interrupted run back into the running state so more
// slices can be written for it. A completed run cannot be reopened.
func (s *Store) ReopenRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE runs
		SET status = ?, error = ''
		WHERE id = ? AND status != ?
	`, RunStatusRunning, runID, RunStatusComplete)
	if err != nil {
		return fmt.Errorf("reopen run: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("reopen run: %w", err)
	}
	if n == 0 {
		if _, err := s.ReadRun(ctx, runID); err != nil {
			return fmt.Errorf("reopen run: %w", err)
		}
		return fmt.Errorf("reopen run %s: %w", runID, ErrRunComplete)
	}
	return nil
}
