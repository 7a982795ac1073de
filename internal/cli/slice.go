package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/roach88/zkslice/internal/config"
	"github.com/roach88/zkslice/internal/engine"
	"github.com/roach88/zkslice/internal/policy"
	"github.com/roach88/zkslice/internal/slice"
	"github.com/roach88/zkslice/internal/trace"
)

// SliceOptions holds flags for the slice command.
type SliceOptions struct {
	*RootOptions
	Resume string // run id to continue
}

// SliceResult summarizes one slicing run.
type SliceResult struct {
	RunID    string         `json:"run_id"`
	K        int            `json:"k"`
	Capacity int            `json:"capacity"`
	Sink     string         `json:"sink"`
	Entries  int            `json:"entries"`
	Slices   []SliceSummary `json:"slices"`
	Stats    engine.Stats   `json:"stats"`
	// Resumed is set when the run continued an interrupted one.
	Resumed *engine.ResumePoint `json:"resumed,omitempty"`
}

// SliceSummary describes one sealed slice and its commitment.
type SliceSummary struct {
	Index    int    `json:"index"`
	Size     int    `json:"size"`
	FirstEID uint64 `json:"first_eid"`
	LastEID  uint64 `json:"last_eid"`
	Keccak   string `json:"keccak"`
}

// RenderText implements TextRenderer.
func (r SliceResult) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Run %s: %d entries into %d slices (k=%d, capacity=%d, sink=%s)\n",
		r.RunID, r.Entries, len(r.Slices), r.K, r.Capacity, r.Sink)
	switch {
	case r.Resumed == nil:
	case r.Resumed.Sealed == 0:
		fmt.Fprintln(w, "  resumed a run with no sealed slices")
	default:
		fmt.Fprintf(w, "  resumed after slice %d (eid %d), %d entries skipped\n",
			r.Resumed.Sealed-1, r.Resumed.LastEID, r.Stats.Skipped)
	}
	for _, s := range r.Slices {
		fmt.Fprintf(w, "  [%d] %d entries, eid %d..%d  %s\n", s.Index, s.Size, s.FirstEID, s.LastEID, s.Keccak)
	}
	if r.Stats.Deferred > 0 {
		fmt.Fprintf(w, "  %d seals deferred by groups longer than the capacity\n", r.Stats.Deferred)
	}
}

// NewSliceCommand creates the slice command.
func NewSliceCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &SliceOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "slice <trace.jsonl>",
		Short: "Cut a trace into slices",
		Long: `Read a JSON-lines execution trace, cut it into slices of at most the
configured capacity without splitting host-call groups, and write them
to the configured sink.

Use "-" to read the trace from stdin.

With --resume, the slices already stored for an interrupted run are kept
and the trace is fed again from the start; entries that are already sealed
are skipped. The resumed run seals the same slices an uninterrupted run
would have.

Examples:
  zkslice slice trace.jsonl
  zkslice slice trace.jsonl --k 20 --families merkle,poseidon
  zkslice slice trace.jsonl --sink sqlite --sink-path slices.db
  zkslice slice - --sink pebble --sink-path ./slices < trace.jsonl
  zkslice slice trace.jsonl --sink sqlite --sink-path slices.db --resume <run-id>`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSlice(opts, args[0], cmd)
		},
	}

	cmd.Flags().Int("k", config.DefaultK, "log2 of the circuit row count")
	cmd.Flags().Int("capacity", 0, "slice capacity in entries (default 2^k/16)")
	cmd.Flags().StringSlice("families", nil, "host-call families to track (default all)")
	cmd.Flags().String("sink", config.SinkMemory, "sink kind (memory|file|sqlite|pebble)")
	cmd.Flags().String("sink-path", "", "directory or database path for the sink")
	cmd.Flags().StringVar(&opts.Resume, "resume", "", "continue the interrupted run with this id")

	return cmd
}

func runSlice(opts *SliceOptions, tracePath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	cfg, err := config.Load(config.Options{File: opts.ConfigFile, Flags: cmd.Flags()})
	if err != nil {
		_ = out.Error(ErrCodeConfig, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}
	slog.SetDefault(NewLogger(cmd.ErrOrStderr(), opts.Format, cfg.LogLevel, opts.Verbose))
	logger := slog.Default()

	in, closeIn, err := openTrace(tracePath, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace", err)
	}
	defer closeIn()

	p, err := cfg.Policy(policy.WithLogger(logger))
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to build policy", err)
	}

	run := RunInfo{K: cfg.K, Capacity: cfg.EffectiveCapacity()}
	if opts.Resume != "" {
		run.ID, run.Resume = opts.Resume, true
	} else {
		gen := opts.RunIDGenerator
		if gen == nil {
			gen = engine.UUIDv7Generator{}
		}
		run.ID = gen.Generate()
	}

	sink, err := openSink(ctx, cfg.Sink, run)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open sink", err)
	}

	engOpts := []engine.Option{engine.WithRunID(run.ID), engine.WithLogger(logger)}
	var resumed *engine.ResumePoint
	if run.Resume {
		point, err := engine.ResumePointOf(sink)
		if err != nil {
			_ = sink.finish(ctx, err)
			return WrapExitError(ExitCommandError, "failed to read resume point", err)
		}
		resumed = &point
		engOpts = append(engOpts, engine.WithResume(point))
		logger.Info("resuming run", "run_id", run.ID, "sealed", point.Sealed, "last_eid", point.LastEID)
	}

	eng, err := engine.New(run.Capacity, p, sink, engOpts...)
	if err != nil {
		_ = sink.finish(ctx, err)
		return WrapExitError(ExitCommandError, "failed to create engine", err)
	}

	logger.Info("slicing trace",
		"run_id", run.ID,
		"trace", tracePath,
		"k", run.K,
		"capacity", run.Capacity,
		"sink", cfg.Sink.Kind)

	entries, runErr := feed(ctx, eng, trace.NewReader(in))
	if runErr == nil {
		_, runErr = eng.Finalize()
	}
	var summaries []SliceSummary
	if runErr == nil {
		if summaries, err = summarizeSink(sink); err != nil {
			runErr = fmt.Errorf("read back slices: %w", err)
		}
	}
	if err := sink.finish(ctx, runErr); err != nil {
		logger.Error("failed to close sink", "error", err)
	}

	result := SliceResult{
		RunID:    run.ID,
		K:        run.K,
		Capacity: run.Capacity,
		Sink:     cfg.Sink.Kind,
		Entries:  entries,
		Stats:    eng.Stats(),
		Slices:   []SliceSummary{},
		Resumed:  resumed,
	}

	if runErr != nil {
		var ce *engine.ContractError
		if errors.As(runErr, &ce) {
			_ = out.Error(ErrCodeEngine, runErr.Error(), map[string]any{"code": string(ce.Code), "eid": ce.EID})
			return WrapExitError(ExitFailure, "engine stopped", runErr)
		}
		_ = out.Error(ErrCodeInput, runErr.Error(), nil)
		return WrapExitError(ExitCommandError, "slicing failed", runErr)
	}

	result.Slices = summaries

	logger.Info("trace sliced",
		"run_id", run.ID,
		"entries", entries,
		"slices", len(summaries))
	return out.Success(result)
}

// feed inserts every entry of the trace, stopping at the first error or
// when ctx is cancelled. It returns the number of entries read.
func feed(ctx context.Context, eng *engine.HostTransaction, r *trace.Reader) (int, error) {
	n := 0
	for {
		if err := ctx.Err(); err != nil {
			return n, err
		}
		e, err := r.Next()
		if errors.Is(err, io.EOF) {
			return n, nil
		}
		if err != nil {
			return n, err
		}
		n++
		if err := eng.Insert(e); err != nil {
			return n, err
		}
	}
}

// summarizeSink reads every slice back and computes its commitment.
func summarizeSink(sink slice.Sink) ([]SliceSummary, error) {
	out := make([]SliceSummary, 0, sink.Len())
	for i := 0; i < sink.Len(); i++ {
		s, err := sink.Slice(i)
		if err != nil {
			return nil, err
		}
		c, err := slice.Commit(s)
		if err != nil {
			return nil, err
		}
		out = append(out, SliceSummary{
			Index:    s.Index,
			Size:     s.Len(),
			FirstEID: s.FirstEID(),
			LastEID:  s.LastEID(),
			Keccak:   c.Keccak,
		})
	}
	return out, nil
}

// openTrace opens path, or the command's stdin for "-".
func openTrace(path string, cmd *cobra.Command) (io.Reader, func(), error) {
	if path == "-" {
		return cmd.InOrStdin(), func() {}, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, nil, err
	}
	return f, func() { _ = f.Close() }, nil
}
