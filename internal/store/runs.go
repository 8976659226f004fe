package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/roach88/graphspec/internal/outcome"
)

// timeFormat has a fixed width so stored timestamps sort lexically.
const timeFormat = "2006-01-02T15:04:05.000000000Z07:00"

// ErrRunNotFound is returned when a run ID is unknown.
var ErrRunNotFound = errors.New("run not found")

// Run is one stored batch.
type Run struct {
	ID         string    `json:"id"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Backends   []string  `json:"backends"`
	Total      int       `json:"total"`
	Failed     int       `json:"failed"`
}

// RecordRun stores a finished batch and its outcomes in one transaction
// and returns the stored run.
func (s *Store) RecordRun(ctx context.Context, started time.Time, backends []string, records []outcome.Record) (*Run, error) {
	summary := outcome.Summarize(records)
	if backends == nil {
		backends = []string{}
	}
	run := &Run{
		ID:         s.ids.NewRunID(),
		StartedAt:  started.UTC(),
		FinishedAt: s.clock().UTC(),
		Backends:   backends,
		Total:      summary.Total,
		Failed:     summary.Failed,
	}
	backendsJSON, err := marshalBackends(backends)
	if err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (id, started_at, finished_at, backends, total, failed)
		VALUES (?, ?, ?, ?, ?, ?)
	`,
		run.ID,
		run.StartedAt.Format(timeFormat),
		run.FinishedAt.Format(timeFormat),
		backendsJSON,
		run.Total,
		run.Failed,
	)
	if err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outcomes (run_id, seq, spec_uri, backend, status, message, detail)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}
	defer stmt.Close()

	for i, r := range records {
		d, err := marshalDetail(r)
		if err != nil {
			return nil, fmt.Errorf("record run: outcome %d: %w", i, err)
		}
		if _, err := stmt.ExecContext(ctx, run.ID, i, r.SpecURI, r.Backend, string(r.Status), r.Message, d); err != nil {
			return nil, fmt.Errorf("record run: outcome %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("record run: %w", err)
	}
	return run, nil
}

const runColumns = `id, started_at, finished_at, backends, total, failed`

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	var r Run
	var started, finished, backends string
	if err := row.Scan(&r.ID, &started, &finished, &backends, &r.Total, &r.Failed); err != nil {
		return nil, err
	}
	var err error
	if r.StartedAt, err = time.Parse(timeFormat, started); err != nil {
		return nil, fmt.Errorf("parse started_at: %w", err)
	}
	if r.FinishedAt, err = time.Parse(timeFormat, finished); err != nil {
		return nil, fmt.Errorf("parse finished_at: %w", err)
	}
	if r.Backends, err = unmarshalBackends(backends); err != nil {
		return nil, err
	}
	return &r, nil
}

// GetRun returns the run with the given ID.
func (s *Store) GetRun(ctx context.Context, id string) (*Run, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, id)
	r, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get run: %w", err)
	}
	return r, nil
}

// LatestRun returns the most recently started run.
func (s *Store) LatestRun(ctx context.Context) (*Run, error) {
	runs, err := s.ListRuns(ctx, 1)
	if err != nil {
		return nil, err
	}
	if len(runs) == 0 {
		return nil, ErrRunNotFound
	}
	return &runs[0], nil
}

// ListRuns returns up to limit runs, newest first. A limit of zero or less
// returns every run.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	q := `SELECT ` + runColumns + ` FROM runs ORDER BY started_at DESC, id DESC`
	args := []any{}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("list runs: %w", err)
		}
		runs = append(runs, *r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	return runs, nil
}

// Outcomes returns the stored outcome records of a run in report order.
func (s *Store) Outcomes(ctx context.Context, runID string) ([]outcome.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT spec_uri, backend, status, message, detail
		FROM outcomes
		WHERE run_id = ?
		ORDER BY seq ASC
	`, runID)
	if err != nil {
		return nil, fmt.Errorf("outcomes: %w", err)
	}
	defer rows.Close()

	var out []outcome.Record
	for rows.Next() {
		var r outcome.Record
		var status, d string
		if err := rows.Scan(&r.SpecURI, &r.Backend, &status, &r.Message, &d); err != nil {
			return nil, fmt.Errorf("outcomes: %w", err)
		}
		r.Status = outcome.Status(status)
		if err := unmarshalDetail(d, &r); err != nil {
			return nil, fmt.Errorf("outcomes: %w", err)
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("outcomes: %w", err)
	}
	return out, nil
}

// History returns the stored outcomes of one spec across runs, newest
// run first.
func (s *Store) History(ctx context.Context, specURI string, limit int) ([]HistoryEntry, error) {
	q := `
		SELECT o.run_id, r.started_at, o.backend, o.status, o.message
		FROM outcomes o JOIN runs r ON r.id = o.run_id
		WHERE o.spec_uri = ?
		ORDER BY r.started_at DESC, o.run_id DESC, o.seq ASC`
	args := []any{specURI}
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	defer rows.Close()

	var out []HistoryEntry
	for rows.Next() {
		var e HistoryEntry
		var started, status string
		if err := rows.Scan(&e.RunID, &started, &e.Backend, &status, &e.Message); err != nil {
			return nil, fmt.Errorf("history: %w", err)
		}
		if e.StartedAt, err = time.Parse(timeFormat, started); err != nil {
			return nil, fmt.Errorf("history: parse started_at: %w", err)
		}
		e.Status = outcome.Status(status)
		out = append(out, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: %w", err)
	}
	return out, nil
}

// HistoryEntry is one stored outcome of a spec.
type HistoryEntry struct {
	RunID     string         `json:"run_id"`
	StartedAt time.Time      `json:"started_at"`
	Backend   string         `json:"backend"`
	Status    outcome.Status `json:"status"`
	Message   string         `json:"message,omitempty"`
}
