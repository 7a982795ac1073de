package cli

import (
	"bytes"
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/zkslice/internal/config"
	"github.com/roach88/zkslice/internal/slice"
	"github.com/roach88/zkslice/internal/store"
	"github.com/roach88/zkslice/internal/trace"
)

// VerifyOptions holds flags for the verify command.
type VerifyOptions struct {
	*RootOptions
	RunID string
}

// VerifyResult reports whether a stored run reproduces its source trace.
type VerifyResult struct {
	RunID       string   `json:"run_id"`
	Entries     int      `json:"entries"`
	Slices      int      `json:"slices"`
	Commitments int      `json:"commitments_checked"`
	OK          bool     `json:"ok"`
	Problems    []string `json:"problems,omitempty"`
}

// RenderText implements TextRenderer.
func (r VerifyResult) RenderText(w io.Writer) {
	if r.OK {
		fmt.Fprintf(w, "✓ run %s: %d slices reproduce %d entries", r.RunID, r.Slices, r.Entries)
		if r.Commitments > 0 {
			fmt.Fprintf(w, " (%d commitments match)", r.Commitments)
		}
		fmt.Fprintln(w)
		return
	}
	fmt.Fprintf(w, "✗ run %s\n", r.RunID)
	for _, p := range r.Problems {
		fmt.Fprintf(w, "  %s\n", p)
	}
}

func (r *VerifyResult) problem(format string, args ...any) {
	r.Problems = append(r.Problems, fmt.Sprintf(format, args...))
	r.OK = false
}

// NewVerifyCommand creates the verify command.
func NewVerifyCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &VerifyOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "verify <trace.jsonl>",
		Short: "Check a stored run against its source trace",
		Long: `Check that the slices stored for a run concatenate to the source
trace, entry for entry, and that every stored commitment matches the
commitment recomputed from the slice.

Exit codes:
  0 - The run reproduces the trace
  1 - A mismatch was found
  2 - Command error (missing run, unreadable trace, etc.)

Examples:
  zkslice verify trace.jsonl --run <id> --sink sqlite --sink-path slices.db
  zkslice verify trace.jsonl --run <id> --sink file --sink-path ./out`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runVerify(opts, args[0], cmd)
		},
	}

	cmd.Flags().StringVar(&opts.RunID, "run", "", "run id to verify (required)")
	_ = cmd.MarkFlagRequired("run")
	cmd.Flags().String("sink", "", "sink kind holding the run (file|sqlite|pebble, default from config)")
	cmd.Flags().String("sink-path", "", "directory or database path of the sink")

	return cmd
}

func runVerify(opts *VerifyOptions, tracePath string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	cfg, err := config.Load(config.Options{File: opts.ConfigFile, Flags: cmd.Flags()})
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load config", err)
	}

	in, closeIn, err := openTrace(tracePath, cmd)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open trace", err)
	}
	defer closeIn()
	entries, err := trace.ReadAll(in)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read trace", err)
	}

	sink, closeSink, err := readSink(ctx, cfg.Sink, opts.RunID)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open run", err)
	}
	defer closeSink()

	result := VerifyResult{RunID: opts.RunID, Entries: len(entries), OK: true}
	slices, err := slice.Collect(sink)
	if err != nil {
		result.problem("read slices: %v", err)
	}
	result.Slices = len(slices)
	checkRoundTrip(&result, entries, slices)

	if cfg.Sink.Kind == config.SinkSQLite && err == nil {
		if err := checkCommitments(ctx, &result, cfg.Sink.Path, slices); err != nil {
			return WrapExitError(ExitCommandError, "failed to read commitments", err)
		}
	}

	if !result.OK {
		_ = out.Failure(ErrCodeVerify, fmt.Sprintf("run %s does not reproduce the trace", opts.RunID), result)
		return NewExitError(ExitFailure, "verification failed")
	}
	return out.Success(result)
}

// checkRoundTrip compares the concatenated slices with the trace entry by
// entry, using canonical JSON so every field takes part.
func checkRoundTrip(r *VerifyResult, entries []trace.Entry, slices []slice.Slice) {
	pos := 0
	for i, s := range slices {
		if s.Index != i {
			r.problem("slice %d carries index %d", i, s.Index)
		}
		if s.RunID != r.RunID {
			r.problem("slice %d belongs to run %q", i, s.RunID)
		}
		if s.Len() == 0 {
			r.problem("slice %d is empty", i)
		}
		for _, got := range s.Entries {
			if pos >= len(entries) {
				r.problem("slice %d holds eid %d past the end of the trace", i, got.EID)
				return
			}
			if !sameEntry(got, entries[pos]) {
				r.problem("slice %d: position %d holds eid %d, trace has eid %d", i, pos, got.EID, entries[pos].EID)
				return
			}
			pos++
		}
	}
	if pos != len(entries) {
		r.problem("slices hold %d entries, trace has %d", pos, len(entries))
	}
}

func sameEntry(a, b trace.Entry) bool {
	ca, errA := trace.MarshalCanonical(a)
	cb, errB := trace.MarshalCanonical(b)
	return errA == nil && errB == nil && bytes.Equal(ca, cb)
}

// checkCommitments recomputes every slice commitment and compares it with
// the one stored at write time.
func checkCommitments(ctx context.Context, r *VerifyResult, dbPath string, slices []slice.Slice) error {
	st, err := store.Open(dbPath)
	if err != nil {
		return err
	}
	defer st.Close()

	records, err := st.ListSlices(ctx, r.RunID)
	if err != nil {
		return err
	}
	if len(records) != len(slices) {
		r.problem("store lists %d slices, read %d", len(records), len(slices))
		return nil
	}
	for i, rec := range records {
		got, err := slice.Commit(slices[i])
		if err != nil {
			r.problem("slice %d: %v", i, err)
			continue
		}
		if got != rec.Commitment() {
			r.problem("slice %d: commitment %s does not match stored %s", i, got.Keccak, rec.Keccak)
			continue
		}
		r.Commitments++
	}
	return nil
}
