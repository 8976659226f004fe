package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/graphspec/internal/loader"
	"github.com/roach88/graphspec/internal/outcome"
	"github.com/roach88/graphspec/internal/store"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Database string
	Spec     string // show one spec's outcomes across runs
	Limit    int
}

// RunReport is the JSON payload for a single stored run.
type RunReport struct {
	Run      *store.Run       `json:"run"`
	Outcomes []outcome.Record `json:"outcomes"`
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history [run-id|latest]",
		Short: "Show recorded runs",
		Long: `Show runs recorded with "graphspec run --db".

With no argument, lists recent runs. With a run ID (or "latest"), prints
that run's outcomes. With --spec, lists one spec's outcomes across runs.

Examples:
  graphspec history --db history.db
  graphspec history --db history.db latest
  graphspec history --db history.db --spec https://example.org/specs/person-count`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, args, cmd)
		},
	}

	cmd.Flags().StringVar(&opts.Database, "db", "", "path to SQLite database (required)")
	cmd.Flags().StringVar(&opts.Spec, "spec", "", "spec URI to trace across runs")
	cmd.Flags().IntVar(&opts.Limit, "limit", 20, "maximum number of entries (0 for all)")
	_ = cmd.MarkFlagRequired("db")

	return cmd
}

func runHistory(opts *HistoryOptions, args []string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	if opts.Spec != "" && len(args) > 0 {
		return NewExitError(ExitCommandError, "--spec cannot be combined with a run ID")
	}

	if _, err := os.Stat(opts.Database); err != nil {
		_ = formatter.Error(loader.ErrCodeNotFound, fmt.Sprintf("database not found: %s", opts.Database), nil)
		return WrapExitError(ExitCommandError, "database not found", err)
	}
	st, err := store.Open(opts.Database)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	ctx, cancel := signalContext(cmd)
	defer cancel()

	switch {
	case opts.Spec != "":
		entries, err := st.History(ctx, opts.Spec, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read history", err)
		}
		return formatter.Report("", entries, func(w io.Writer) { writeSpecHistory(w, opts.Spec, entries) })

	case len(args) == 1:
		var run *store.Run
		if args[0] == "latest" {
			run, err = st.LatestRun(ctx)
		} else {
			run, err = st.GetRun(ctx, args[0])
		}
		if errors.Is(err, store.ErrRunNotFound) {
			_ = formatter.Error(loader.ErrCodeNotFound, fmt.Sprintf("run %s not found", args[0]), nil)
			return WrapExitError(ExitCommandError, "run not found", err)
		}
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read run", err)
		}
		recs, err := st.Outcomes(ctx, run.ID)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to read outcomes", err)
		}
		report := RunReport{Run: run, Outcomes: recs}
		return formatter.Report(run.ID, report, func(w io.Writer) { writeRunReport(w, report) })

	default:
		runs, err := st.ListRuns(ctx, opts.Limit)
		if err != nil {
			return WrapExitError(ExitCommandError, "failed to list runs", err)
		}
		if runs == nil {
			runs = []store.Run{}
		}
		return formatter.Report("", runs, func(w io.Writer) { writeRunList(w, runs) })
	}
}

func stamp(t time.Time) string {
	return t.UTC().Format(time.RFC3339)
}

func writeRunList(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		fmt.Fprintln(w, "No runs recorded.")
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tBACKENDS\tTOTAL\tFAILED")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%d\n", r.ID, stamp(r.StartedAt), strings.Join(r.Backends, ","), r.Total, r.Failed)
	}
	tw.Flush()
}

func writeRunReport(w io.Writer, report RunReport) {
	fmt.Fprintf(w, "Run %s (started %s, backends %s)\n\n", report.Run.ID, stamp(report.Run.StartedAt), strings.Join(report.Run.Backends, ","))
	for _, r := range report.Outcomes {
		fmt.Fprintln(w, r.Render())
	}
	if len(report.Outcomes) > 0 {
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, outcome.Summarize(report.Outcomes).String())
}

func writeSpecHistory(w io.Writer, uri string, entries []store.HistoryEntry) {
	if len(entries) == 0 {
		fmt.Fprintf(w, "No recorded outcomes for %s.\n", uri)
		return
	}
	tw := tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "RUN\tSTARTED\tBACKEND\tSTATUS")
	for _, e := range entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.RunID, stamp(e.StartedAt), e.Backend, e.Status)
	}
	tw.Flush()
}
