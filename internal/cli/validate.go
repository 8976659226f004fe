package cli

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/roach88/graphspec/internal/backend"
	"github.com/roach88/graphspec/internal/harness"
	"github.com/roach88/graphspec/internal/outcome"
	"github.com/roach88/graphspec/internal/verify"
)

// ValidateOptions holds flags for the validate command.
type ValidateOptions struct {
	*RootOptions
	SourceOptions
}

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid   bool             `json:"valid"`
	Total   int              `json:"total"`
	Invalid []outcome.Record `json:"invalid,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ValidateOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "validate <specs-path>",
		Short: "Validate specs without running them",
		Long: `Load and resolve every spec under <specs-path> without executing it.

Reports duplicate URIs, missing or unregistered components, unreadable
payloads and query/expectation mismatches. Payloads are read and fetched
exactly as a run would; no backend is contacted.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			return runValidate(opts, args[0], cmd)
		},
	}

	addSourceFlags(cmd, &opts.SourceOptions)

	return cmd
}

func runValidate(opts *ValidateOptions, specsPath string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}
	logger := newLogger(opts.RootOptions, cmd.ErrOrStderr())

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
	// Validate does not dispatch; no backend types are registered.
	runner := harness.New(res, backend.NewDispatcher(backend.NewRegistry(), logger), verify.New(logger), harness.WithLogger(logger))

	result := ValidationResult{Total: len(records)}
	for _, o := range runner.Validate(ctx, records) {
		if o.Status() == outcome.StatusPassed {
			continue
		}
		result.Invalid = append(result.Invalid, outcome.ToRecord(o))
	}
	result.Valid = countFailures(result.Invalid) == 0

	if err := formatter.Report("", result, func(w io.Writer) { writeValidateText(w, result) }); err != nil {
		return err
	}
	if !result.Valid {
		return NewExitError(ExitFailure, fmt.Sprintf("%d of %d spec(s) invalid", countFailures(result.Invalid), result.Total))
	}
	return nil
}

// countFailures ignores skipped specs, which are valid but would not run.
func countFailures(recs []outcome.Record) int {
	n := 0
	for _, r := range recs {
		if r.Status.IsFailure() {
			n++
		}
	}
	return n
}

func writeValidateText(w io.Writer, result ValidationResult) {
	for _, r := range result.Invalid {
		mark := "✗"
		if !r.Status.IsFailure() {
			mark = "-"
		}
		fmt.Fprintf(w, "%s %s\n  %s: %s\n", mark, r.SpecURI, r.Status, r.Message)
	}
	if result.Valid {
		fmt.Fprintf(w, "✓ All %d spec(s) valid\n", result.Total)
		return
	}
	fmt.Fprintf(w, "%d of %d spec(s) invalid\n", countFailures(result.Invalid), result.Total)
}
