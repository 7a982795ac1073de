package cli

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/zkslice/internal/store"
)

// InspectOptions holds flags for the inspect command.
type InspectOptions struct {
	*RootOptions
	Database   string
	Keccak     string
	Incomplete bool
}

// RunList is the output of inspect without a run id.
type RunList struct {
	Runs []store.Run `json:"runs"`
}

// RenderText implements TextRenderer.
func (l RunList) RenderText(w io.Writer) {
	if len(l.Runs) == 0 {
		fmt.Fprintln(w, "No runs found.")
		return
	}
	for _, r := range l.Runs {
		fmt.Fprintf(w, "%s  %-8s  k=%d capacity=%d slices=%d", r.ID, r.Status, r.K, r.Capacity, r.Slices)
		if r.Error != "" {
			fmt.Fprintf(w, "  error: %s", r.Error)
		}
		fmt.Fprintln(w)
	}
}

// IncompleteRuns is the output of inspect --incomplete.
type IncompleteRuns struct {
	Runs []store.RunState `json:"runs"`
}

// RenderText implements TextRenderer.
func (l IncompleteRuns) RenderText(w io.Writer) {
	if len(l.Runs) == 0 {
		fmt.Fprintln(w, "No incomplete runs.")
		return
	}
	for _, st := range l.Runs {
		fmt.Fprintf(w, "%s  %-8s  %d slices sealed through eid %d", st.Run.ID, st.Run.Status, st.Sealed, st.LastEID)
		if st.Run.Error != "" {
			fmt.Fprintf(w, "  error: %s", st.Run.Error)
		}
		fmt.Fprintln(w)
	}
}

// RunDetail is the output of inspect for one run.
type RunDetail struct {
	Run    store.Run           `json:"run"`
	Slices []store.SliceRecord `json:"slices"`
}

// RenderText implements TextRenderer.
func (d RunDetail) RenderText(w io.Writer) {
	fmt.Fprintf(w, "Run %s (%s): k=%d capacity=%d\n", d.Run.ID, d.Run.Status, d.Run.K, d.Run.Capacity)
	if d.Run.Error != "" {
		fmt.Fprintf(w, "  error: %s\n", d.Run.Error)
	}
	for _, s := range d.Slices {
		fmt.Fprintf(w, "  [%d] %d entries, eid %d..%d\n", s.Index, s.EntryCount, s.FirstEID, s.LastEID)
		fmt.Fprintf(w, "      id     %s\n", s.ID)
		fmt.Fprintf(w, "      keccak %s\n", s.Keccak)
		fmt.Fprintf(w, "      mimc   %s\n", s.MiMC)
	}
}

// NewInspectCommand creates the inspect command.
func NewInspectCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &InspectOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "inspect [run-id]",
		Short: "List runs and slices in a slice store",
		Long: `List the runs recorded in a SQLite slice store, or the slices and
commitments of one run.

Examples:
  zkslice inspect --db slices.db
  zkslice inspect --db slices.db 01890a5d-ac96-774b-bcce-b302099a8057
  zkslice inspect --db slices.db --keccak 9f2c...
  zkslice inspect --db slices.db --incomplete`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			runID := ""
			if len(args) == 1 {
				runID = args[0]
			}
			return runInspect(opts, runID, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite slice store (required)")
	_ = cmd.MarkFlagRequired("db")
	cmd.Flags().StringVar(&opts.Keccak, "keccak", "", "find the slice with this Keccak commitment")
	cmd.Flags().BoolVar(&opts.Incomplete, "incomplete", false, "list runs that can be resumed")

	return cmd
}

func runInspect(opts *InspectOptions, runID string, cmd *cobra.Command) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	out := opts.formatter(cmd)

	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	if opts.Incomplete {
		runs, err := st.FindIncompleteRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list incomplete runs", err)
		}
		return out.Success(IncompleteRuns{Runs: runs})
	}

	match := -1
	if opts.Keccak != "" {
		rec, err := st.FindSliceByKeccak(ctx, opts.Keccak)
		if errors.Is(err, store.ErrSliceNotFound) {
			_ = out.Error(ErrCodeStore, err.Error(), nil)
			return WrapExitError(ExitFailure, "slice not found", err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to query slices", err)
		}
		runID, match = rec.RunID, rec.Index
	}

	if runID == "" {
		runs, err := st.ListRuns(ctx)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		return out.Success(RunList{Runs: runs})
	}

	detail, err := loadRunDetail(ctx, st, runID)
	if errors.Is(err, store.ErrRunNotFound) {
		_ = out.Error(ErrCodeStore, err.Error(), nil)
		return WrapExitError(ExitFailure, "run not found", err)
	}
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to read run", err)
	}
	if match >= 0 {
		for _, rec := range detail.Slices {
			if rec.Index == match {
				detail.Slices = []store.SliceRecord{rec}
				break
			}
		}
	}
	return out.Success(detail)
}

func loadRunDetail(ctx context.Context, st *store.Store, runID string) (RunDetail, error) {
	run, err := st.ReadRun(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	slices, err := st.ListSlices(ctx, runID)
	if err != nil {
		return RunDetail{}, err
	}
	return RunDetail{Run: run, Slices: slices}, nil
}
