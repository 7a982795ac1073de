package cli

import (
	"context"
	"errors"
	"fmt"

	"github.com/roach88/zkslice/internal/config"
	"github.com/roach88/zkslice/internal/pebblestore"
	"github.com/roach88/zkslice/internal/slice"
	"github.com/roach88/zkslice/internal/store"
)

// RunInfo describes the run a sink is opened for.
type RunInfo struct {
	ID       string
	K        int
	Capacity int
	// Resume reopens the slices already written for ID instead of
	// starting an empty run.
	Resume bool
}

// openedSink is a sink plus what must happen when the run ends.
type openedSink struct {
	slice.Sink

	// finish records the run outcome and releases the backing store.
	finish func(ctx context.Context, runErr error) error
}

// openSink opens the configured sink for writing the slices of run.
func openSink(ctx context.Context, sc config.SinkConfig, run RunInfo) (*openedSink, error) {
	switch sc.Kind {
	case config.SinkMemory:
		if run.Resume {
			return nil, errors.New("a memory sink keeps nothing to resume")
		}
		return &openedSink{
			Sink:   slice.NewMemorySink(),
			finish: func(context.Context, error) error { return nil },
		}, nil

	case config.SinkFile:
		open := slice.NewFileSink
		if run.Resume {
			open = slice.OpenFileSink
		}
		fs, err := open(sc.Path, run.ID)
		if err != nil {
			return nil, err
		}
		return &openedSink{
			Sink:   fs,
			finish: func(context.Context, error) error { return nil },
		}, nil

	case config.SinkSQLite:
		st, err := store.Open(sc.Path)
		if err != nil {
			return nil, err
		}
		if err := prepareRun(ctx, st, run); err != nil {
			_ = st.Close()
			return nil, err
		}
		sink, err := st.NewSink(ctx, run.ID)
		if err != nil {
			_ = st.Close()
			return nil, err
		}
		return &openedSink{
			Sink: sink,
			finish: func(ctx context.Context, runErr error) error {
				return errors.Join(st.FinishRun(ctx, run.ID, runErr), st.Close())
			},
		}, nil

	case config.SinkPebble:
		db, err := pebblestore.Open(pebblestore.Options{DataDir: sc.Path})
		if err != nil {
			return nil, err
		}
		sink, err := db.Sink(run.ID)
		if err != nil {
			_ = db.Close()
			return nil, err
		}
		return &openedSink{
			Sink:   sink,
			finish: func(context.Context, error) error { return db.Close() },
		}, nil

	default:
		return nil, fmt.Errorf("unknown sink kind %q", sc.Kind)
	}
}

// prepareRun records a new run, or checks that an interrupted one can be
// continued with the same capacity and reopens it.
func prepareRun(ctx context.Context, st *store.Store, run RunInfo) error {
	if !run.Resume {
		return st.WriteRun(ctx, store.Run{ID: run.ID, K: run.K, Capacity: run.Capacity})
	}
	state, err := st.GetRunState(ctx, run.ID)
	if err != nil {
		return err
	}
	if state.Complete() {
		return fmt.Errorf("resume %s: %w", run.ID, store.ErrRunComplete)
	}
	if state.Run.Capacity != run.Capacity {
		return fmt.Errorf("resume %s: run was sliced with capacity %d, not %d", run.ID, state.Run.Capacity, run.Capacity)
	}
	return st.ReopenRun(ctx, run.ID)
}

// readSink opens the slices of an existing run for reading. close releases
// the backing store.
func readSink(ctx context.Context, sc config.SinkConfig, runID string) (slice.Sink, func() error, error) {
	noop := func() error { return nil }
	switch sc.Kind {
	case config.SinkFile:
		fs, err := slice.OpenFileSink(sc.Path, runID)
		if err != nil {
			return nil, nil, err
		}
		return fs, noop, nil

	case config.SinkSQLite:
		st, err := store.Open(sc.Path)
		if err != nil {
			return nil, nil, err
		}
		sink, err := st.NewSink(ctx, runID)
		if err != nil {
			_ = st.Close()
			return nil, nil, err
		}
		return sink, st.Close, nil

	case config.SinkPebble:
		db, err := pebblestore.Open(pebblestore.Options{DataDir: sc.Path})
		if err != nil {
			return nil, nil, err
		}
		sink, err := db.Sink(runID)
		if err != nil {
			_ = db.Close()
			return nil, nil, err
		}
		return sink, db.Close, nil

	default:
		return nil, nil, fmt.Errorf("sink kind %q keeps no slices to read", sc.Kind)
	}
}
