package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/spf13/cobra"

	"github.com/roach88/graphspec/internal/backend"
	"github.com/roach88/graphspec/internal/backend/memory"
	"github.com/roach88/graphspec/internal/backend/remote"
	"github.com/roach88/graphspec/internal/credentials"
	"github.com/roach88/graphspec/internal/fetch"
	"github.com/roach88/graphspec/internal/loader"
	"github.com/roach88/graphspec/internal/resolve"
	"github.com/roach88/graphspec/internal/spec"
)

// SourceOptions holds the flags shared by every command that resolves specs.
type SourceOptions struct {
	BaseDir      string        // base directory for relative payload paths
	Filter       string        // glob on the last URI segment
	Credentials  []string      // dotenv files consulted before the environment
	FetchTimeout time.Duration // per-request timeout for http(s) payloads
	S3Endpoint   string        // S3-compatible endpoint (MinIO etc.)
	S3Region     string
	S3PathStyle  bool
}

// loadFailure is one file that could not be loaded, as reported to the user.
type loadFailure struct {
	Code    string `json:"code"`
	Path    string `json:"path,omitempty"`
	Message string `json:"message"`
}

func toFailure(err error) loadFailure {
	var le *loader.LoadError
	if errors.As(err, &le) {
		msg := le.Message
		if le.Err != nil {
			msg += ": " + le.Err.Error()
		}
		return loadFailure{Code: le.Code, Path: le.Path, Message: msg}
	}
	return loadFailure{Code: loader.ErrCodeGeneric, Message: err.Error()}
}

// loadSpecs loads and filters the records under path. Any load error is
// written through formatter and returned as a command error.
func loadSpecs(formatter *OutputFormatter, path, filter string) ([]*spec.Record, error) {
	recs, errs := loader.LoadDir(path, loader.LoadModeCollectAll)
	if len(errs) > 0 {
		failures := make([]loadFailure, len(errs))
		for i, err := range errs {
			failures[i] = toFailure(err)
		}
		first := failures[0]
		msg := first.Message
		if first.Path != "" {
			msg = first.Path + ": " + msg
		}
		if len(failures) > 1 {
			msg = fmt.Sprintf("%s (and %d more)", msg, len(failures)-1)
		}
		if err := formatter.Error(first.Code, msg, failures); err != nil {
			return nil, err
		}
		return nil, WrapExitError(ExitCommandError, "failed to load specs", errs[0])
	}

	recs, err := loader.Filter(recs, filter)
	if err != nil {
		_ = formatter.Error(loader.ErrCodeGeneric, err.Error(), nil)
		return nil, WrapExitError(ExitCommandError, "invalid filter", err)
	}
	formatter.VerboseLog("Loaded %d spec(s) from %s", len(recs), path)
	return recs, nil
}

// newLogger returns the command logger: text on w at Info, Debug when verbose.
func newLogger(opts *RootOptions, w io.Writer) *slog.Logger {
	level := slog.LevelInfo
	if opts.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newCredentials chains the dotenv files ahead of the process environment.
func newCredentials(paths []string) (credentials.Lookup, error) {
	if len(paths) == 0 {
		return credentials.Env{}, nil
	}
	d, err := credentials.LoadDotenv(paths...)
	if err != nil {
		return nil, err
	}
	return credentials.Chain{d, credentials.Env{}}, nil
}

// lookupOptional returns the secret for key or "" when none is configured.
func lookupOptional(creds credentials.Lookup, key string) string {
	v, err := creds.Lookup(key)
	if err != nil {
		return ""
	}
	return v
}

// newFetcher routes http, https and s3 payload URLs.
func newFetcher(ctx context.Context, opts *SourceOptions, creds credentials.Lookup) (*fetch.Router, error) {
	httpFetcher := fetch.NewHTTP(opts.FetchTimeout)
	s3Fetcher, err := fetch.NewS3FromConfig(ctx, fetch.S3Config{
		Region:          opts.S3Region,
		Endpoint:        opts.S3Endpoint,
		PathStyle:       opts.S3PathStyle,
		AccessKeyID:     lookupOptional(creds, "AWS_ACCESS_KEY_ID"),
		SecretAccessKey: lookupOptional(creds, "AWS_SECRET_ACCESS_KEY"),
		SessionToken:    lookupOptional(creds, "AWS_SESSION_TOKEN"),
	})
	if err != nil {
		return nil, err
	}
	return fetch.NewRouter().
		Handle("http", httpFetcher).
		Handle("https", httpFetcher).
		Handle("s3", s3Fetcher), nil
}

// newResolver wires the default kind registry to the payload fetcher.
func newResolver(ctx context.Context, opts *SourceOptions, creds credentials.Lookup, logger *slog.Logger) (*resolve.Resolver, error) {
	f, err := newFetcher(ctx, opts, creds)
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "failed to configure payload fetcher", err)
	}
	resOpts := []resolve.Option{resolve.WithFetcher(f), resolve.WithLogger(logger)}
	if opts.BaseDir != "" {
		resOpts = append(resOpts, resolve.WithBaseDir(opts.BaseDir))
	}
	return resolve.New(resolve.DefaultRegistry(), resOpts...), nil
}

// newBackends registers every built-in backend type.
func newBackends(creds credentials.Lookup, logger *slog.Logger) *backend.Registry {
	reg := backend.NewRegistry()
	reg.Register(memory.Type, memory.New())
	reg.Register(remote.Type, remote.New(creds, remote.WithLogger(logger)))
	return reg
}

func addSourceFlags(cmd *cobra.Command, opts *SourceOptions) {
	flags := cmd.Flags()
	flags.StringVar(&opts.BaseDir, "base-dir", "", "base directory for relative payload paths (default: each spec file's directory)")
	flags.StringVar(&opts.Filter, "filter", "", "only specs whose URI's last segment matches this glob")
	flags.StringSliceVar(&opts.Credentials, "credentials", nil, "dotenv file(s) holding backend and S3 secrets")
	flags.DurationVar(&opts.FetchTimeout, "fetch-timeout", 30*time.Second, "timeout for fetching http(s) payloads")
	flags.StringVar(&opts.S3Endpoint, "s3-endpoint", "", "S3-compatible endpoint for s3:// payloads")
	flags.StringVar(&opts.S3Region, "s3-region", "", "S3 region (default us-east-1)")
	flags.BoolVar(&opts.S3PathStyle, "s3-path-style", false, "use path-style S3 addressing")
}
