package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/graphspec/internal/backend"
	"github.com/roach88/graphspec/internal/outcome"
	"github.com/roach88/graphspec/internal/resolve"
	"github.com/roach88/graphspec/internal/spec"
	"github.com/roach88/graphspec/internal/verify"
)

// DefaultParallel bounds concurrent executions per stateless backend.
const DefaultParallel = 4

// Runner executes specification batches.
type Runner struct {
	resolver   *resolve.Resolver
	dispatcher *backend.Dispatcher
	verifier   *verify.Verifier
	logger     *slog.Logger
	parallel   int
}

// Option configures a Runner.
type Option func(*Runner)

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(r *Runner) { r.logger = l }
}

// WithParallel bounds concurrent executions per stateless backend. Values
// below 1 mean one at a time.
func WithParallel(n int) Option {
	return func(r *Runner) {
		if n < 1 {
			n = 1
		}
		r.parallel = n
	}
}

// New creates a Runner from its collaborators.
func New(res *resolve.Resolver, d *backend.Dispatcher, v *verify.Verifier, opts ...Option) *Runner {
	r := &Runner{
		resolver:   res,
		dispatcher: d,
		verifier:   v,
		logger:     slog.New(slog.NewTextHandler(io.Discard, nil)),
		parallel:   DefaultParallel,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// prepared is the per-record result of the pre-dispatch phases. Exactly one
// of resolved and fail is set.
type prepared struct {
	resolved *resolve.Resolved
	fail     func(id outcome.Identity) outcome.Outcome
}

// Run executes every record against every backend. The result has
// len(records)*len(backends) entries; the outcome for record i on backend j
// is at i*len(backends)+j.
func (r *Runner) Run(ctx context.Context, records []*spec.Record, backends []spec.Descriptor) []outcome.Outcome {
	preps := r.prepare(ctx, records)
	out := make([]outcome.Outcome, len(records)*len(backends))

	var g errgroup.Group
	for j, desc := range backends {
		g.Go(func() error {
			r.runBackend(ctx, records, preps, j, len(backends), desc, out)
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range out {
		r.logger.Info("outcome", "spec", o.ID().SpecURI, "backend", o.ID().Backend, "status", o.Status())
	}
	return out
}

func (r *Runner) runBackend(ctx context.Context, records []*spec.Record, preps []prepared, j, width int, desc spec.Descriptor, out []outcome.Outcome) {
	var g errgroup.Group
	if r.dispatcher.Serialized(desc) {
		g.SetLimit(1)
	} else {
		g.SetLimit(r.parallel)
	}
	for i, rec := range records {
		p := preps[i]
		idx := i*width + j
		if p.fail != nil {
			out[idx] = p.fail(outcome.Identity{SpecURI: rec.URI, Backend: desc.Label()})
			continue
		}
		g.Go(func() error {
			out[idx] = r.RunOne(ctx, p.resolved.Assemble(desc))
			return nil
		})
	}
	_ = g.Wait()
}

// RunOne dispatches and verifies a single assembled specification.
func (r *Runner) RunOne(ctx context.Context, s *spec.Specification) outcome.Outcome {
	resp, o := r.dispatcher.Dispatch(ctx, s)
	if o != nil {
		return o
	}
	return r.verifier.Verify(s, resp.Rows, resp.Graph)
}

// prepare runs duplicate detection and resolution for records.
func (r *Runner) prepare(ctx context.Context, records []*spec.Record) []prepared {
	counts := make(map[string]int, len(records))
	for _, rec := range records {
		counts[rec.URI]++
	}

	preps := make([]prepared, len(records))
	for i, rec := range records {
		if n := counts[rec.URI]; n > 1 {
			cause := fmt.Errorf("duplicate specification %s: defined %d times", rec.URI, n)
			r.logger.Warn("duplicate specification", "spec", rec.URI, "count", n)
			preps[i].fail = func(id outcome.Identity) outcome.Outcome {
				return outcome.SpecificationError{Identity: id, Cause: cause}
			}
			continue
		}
		res, err := r.resolver.ResolveRecord(ctx, rec)
		if err != nil {
			r.logger.Warn("resolution failed", "spec", rec.URI, "error", err)
			if resolve.IsInternalError(err) {
				preps[i].fail = func(id outcome.Identity) outcome.Outcome {
					return outcome.InternalError{Identity: id, Cause: err}
				}
			} else {
				preps[i].fail = func(id outcome.Identity) outcome.Outcome {
					return outcome.SpecificationError{Identity: id, Cause: err}
				}
			}
			continue
		}
		if res.Given.Inherited && res.When.QueryKind == spec.QueryUpdate {
			preps[i].fail = func(id outcome.Identity) outcome.Outcome {
				return outcome.Skipped{Identity: id, Reason: "update against an inherited given would modify existing backend state"}
			}
			continue
		}
		preps[i].resolved = res
	}
	return preps
}

// Validate resolves every record without dispatching. Records that would
// run yield Passed; the rest yield the outcome they would short-circuit to.
// Outcomes carry an empty backend label.
func (r *Runner) Validate(ctx context.Context, records []*spec.Record) []outcome.Outcome {
	preps := r.prepare(ctx, records)
	out := make([]outcome.Outcome, len(records))
	for i, rec := range records {
		id := outcome.Identity{SpecURI: rec.URI}
		if preps[i].fail != nil {
			out[i] = preps[i].fail(id)
			continue
		}
		out[i] = outcome.Passed{Identity: id}
	}
	return out
}
