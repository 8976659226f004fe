package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/graphspec/internal/backend"
	"github.com/roach88/graphspec/internal/harness"
	"github.com/roach88/graphspec/internal/loader"
	"github.com/roach88/graphspec/internal/outcome"
	"github.com/roach88/graphspec/internal/spec"
	"github.com/roach88/graphspec/internal/store"
	"github.com/roach88/graphspec/internal/verify"
)

// RunOptions holds flags for the run command.
type RunOptions struct {
	*RootOptions
	SourceOptions
	Backends string // backend configuration file; empty runs the in-memory backend
	Database string // SQLite run history; empty disables recording
	Parallel int
}

// RunResult is the JSON payload of the run command.
type RunResult struct {
	Backends []string         `json:"backends"`
	Summary  outcome.Summary  `json:"summary"`
	Outcomes []outcome.Record `json:"outcomes"`
}

// NewRunCommand creates the run command.
func NewRunCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &RunOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "run <specs-path>",
		Short: "Run specs against the configured backends",
		Long: `Load every spec under <specs-path>, execute each one against every
configured backend and verify the result against its expectation.

Without --backends the built-in in-memory backend is used.

Exit codes:
  0 - All specs passed (or were skipped)
  1 - One or more specs failed or were invalid
  2 - Command error (missing path, bad backend config, etc.)

Examples:
  graphspec run ./specs
  graphspec run ./specs --backends backends.yaml --credentials .env
  graphspec run ./specs --filter "person-*" --db history.db --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSpecs(opts, args[0], cmd)
		},
	}

	addSourceFlags(cmd, &opts.SourceOptions)
	cmd.Flags().StringVar(&opts.Backends, "backends", "", "backend configuration file (YAML)")
	cmd.Flags().StringVar(&opts.Database, "db", "", "record the run in this SQLite database")
	cmd.Flags().IntVar(&opts.Parallel, "parallel", harness.DefaultParallel, "concurrent specs per stateless backend")

	return cmd
}

func runSpecs(opts *RunOptions, specsPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

	if opts.Parallel < 1 {
		return NewExitError(ExitCommandError, fmt.Sprintf("--parallel must be at least 1, got %d", opts.Parallel))
	}

	backends, err := loader.LoadBackends(opts.Backends)
	if err != nil {
		_ = formatter.Error(toFailure(err).Code, err.Error(), nil)
		return WrapExitError(ExitCommandError, "failed to load backends", err)
	}
	records, err := loadSpecs(formatter, specsPath, opts.Filter)
	if err != nil {
		return err
	}

	creds, err := newCredentials(opts.Credentials)
	if err != nil {
		return WrapExitError(ExitCommandError, "failed to load credentials", err)
	}

	ctx, cancel := signalContext(cmd)
	defer cancel()

	res, err := newResolver(ctx, &opts.SourceOptions, creds, logger)
	if err != nil {
		return err
	}
	runner := harness.New(
		res,
		backend.NewDispatcher(newBackends(creds, logger), logger),
		verify.New(logger),
		harness.WithLogger(logger),
		harness.WithParallel(opts.Parallel),
	)

	labels := backendLabels(backends)
	formatter.VerboseLog("Running %d spec(s) against %v", len(records), labels)

	started := time.Now()
	outcomes := runner.Run(ctx, records, backends)
	recs := make([]outcome.Record, len(outcomes))
	for i, o := range outcomes {
		recs[i] = outcome.ToRecord(o)
	}
	summary := outcome.Summarize(recs)

	var runID string
	if opts.Database != "" {
		runID, err = recordRun(ctx, opts, started, labels, recs)
		if err != nil {
			return err
		}
		logger.Info("run recorded", "run", runID, "db", opts.Database)
	}

	result := RunResult{Backends: labels, Summary: summary, Outcomes: recs}
	if err := formatter.Report(runID, result, func(w io.Writer) { writeRunText(w, runID, result) }); err != nil {
		return err
	}

	if summary.Failed > 0 {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d spec(s) failed", summary.Failed, summary.Total))
	}
	return nil
}

func recordRun(ctx context.Context, opts *RunOptions, started time.Time, labels []string, recs []outcome.Record) (string, error) {
	st, err := store.Open(opts.Database)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to open database", err)
	}
	defer st.Close()

	run, err := st.RecordRun(ctx, started, labels, recs)
	if err != nil {
		return "", WrapExitError(ExitCommandError, "failed to record run", err)
	}
	return run.ID, nil
}

func backendLabels(backends []spec.Descriptor) []string {
	labels := make([]string, len(backends))
	for i, b := range backends {
		labels[i] = b.Label()
	}
	return labels
}

func writeRunText(w io.Writer, runID string, result RunResult) {
	for _, r := range result.Outcomes {
		fmt.Fprintln(w, r.Render())
	}
	if len(result.Outcomes) > 0 {
		fmt.Fprintln(w)
	}
	fmt.Fprintln(w, result.Summary.String())
	if runID != "" {
		fmt.Fprintf(w, "Run %s recorded.\n", runID)
	}
}

// signalContext derives a context from the command's, cancelled on SIGINT
// or SIGTERM.
func signalContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	parent := cmd.Context()
	if parent == nil {
		parent = context.Background()
	}
	return signal.NotifyContext(parent, os.Interrupt, syscall.SIGTERM)
}
