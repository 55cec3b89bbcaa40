// Package store keeps a history of benchmark reports in SQLite.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/itohio/mlbench/pkg/harness"
	"github.com/itohio/mlbench/pkg/stats"
)

// ErrNotFound is returned by Get for an unknown id.
var ErrNotFound = errors.New("run not found")

// Source tells where a report came from.
type Source string

const (
	SourceHost   Source = "host"   // Harness ran in this process
	SourceSerial Source = "serial" // Parsed from a board's console
)

// Run is one stored benchmark result.
type Run struct {
	ID        int64     `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Source    Source    `json:"source"`
	Target    string    `json:"target"`
	Scenario  string    `json:"scenario"`
	Quantized bool      `json:"quantized"`

	Trials     int `json:"trials"`
	Attempts   int `json:"attempts"`
	Successful int `json:"successful"`
	Failed     int `json:"failed"`

	DSP            int64 `json:"dsp_us"`
	Classification int64 `json:"classification_us"`
	Anomaly        int64 `json:"anomaly_us"`
	Total          int64 `json:"total_us"`

	// Latency percentiles of the total, zero when unknown (serial).
	P50 int64 `json:"p50_us"`
	P90 int64 `json:"p90_us"`
	P99 int64 `json:"p99_us"`
}

// FromReport builds a Run from a harness report and an optional latency summary.
func FromReport(src Source, r *harness.Report, latency *stats.Summary) Run {
	run := Run{
		Source:         src,
		Target:         r.Target,
		Scenario:       r.Scenario,
		Quantized:      r.Quantized,
		Trials:         r.Trials,
		Attempts:       r.Attempts,
		Successful:     r.Successful,
		Failed:         r.Failed,
		DSP:            r.Means.DSP,
		Classification: r.Means.Classification,
		Anomaly:        r.Means.Anomaly,
		Total:          r.MeanTotal,
	}
	if latency != nil {
		run.P50 = latency.P50
		run.P90 = latency.P90
		run.P99 = latency.P99
	}
	return run
}

// Store is a SQLite-backed run history.
type Store struct {
	db *sql.DB
}

// Open opens or creates the database at path.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open store: %w", err)
	}

	db.SetMaxOpenConns(1)
	db.SetConnMaxLifetime(5 * time.Minute)

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to migrate store: %w", err)
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
CREATE TABLE IF NOT EXISTS runs (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  created_at INTEGER NOT NULL,
  source TEXT NOT NULL,
  target TEXT NOT NULL,
  scenario TEXT NOT NULL,
  quantized INTEGER NOT NULL DEFAULT 0,
  trials INTEGER NOT NULL,
  attempts INTEGER NOT NULL,
  successful INTEGER NOT NULL,
  failed INTEGER NOT NULL,
  dsp_us INTEGER NOT NULL,
  classification_us INTEGER NOT NULL,
  anomaly_us INTEGER NOT NULL,
  total_us INTEGER NOT NULL,
  p50_us INTEGER NOT NULL DEFAULT 0,
  p90_us INTEGER NOT NULL DEFAULT 0,
  p99_us INTEGER NOT NULL DEFAULT 0
);

CREATE INDEX IF NOT EXISTS runs_scenario ON runs(scenario, created_at);
`)
	return err
}

// Save inserts r and returns its id. A zero CreatedAt is set to now.
func (s *Store) Save(ctx context.Context, r Run) (int64, error) {
	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now()
	}
	res, err := s.db.ExecContext(ctx, `
INSERT INTO runs (created_at, source, target, scenario, quantized, trials, attempts, successful, failed,
  dsp_us, classification_us, anomaly_us, total_us, p50_us, p90_us, p99_us)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?);`,
		r.CreatedAt.UnixMicro(), string(r.Source), r.Target, r.Scenario, boolToInt(r.Quantized),
		r.Trials, r.Attempts, r.Successful, r.Failed,
		r.DSP, r.Classification, r.Anomaly, r.Total, r.P50, r.P90, r.P99,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save run: %w", err)
	}
	return res.LastInsertId()
}

const selectRuns = `SELECT id, created_at, source, target, scenario, quantized, trials, attempts, successful, failed,
  dsp_us, classification_us, anomaly_us, total_us, p50_us, p90_us, p99_us FROM runs`

// Get returns the run with the given id.
func (s *Store) Get(ctx context.Context, id int64) (Run, error) {
	r, err := scanRun(s.db.QueryRowContext(ctx, selectRuns+` WHERE id=?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return Run{}, fmt.Errorf("%w: %d", ErrNotFound, id)
	}
	if err != nil {
		return Run{}, fmt.Errorf("failed to get run: %w", err)
	}
	return r, nil
}

// List returns stored runs, newest first. An empty scenario lists all of them.
func (s *Store) List(ctx context.Context, scenario string, limit int) ([]Run, error) {
	q := selectRuns
	var args []any
	if scenario != "" {
		q += ` WHERE scenario=?`
		args = append(args, scenario)
	}
	q += ` ORDER BY created_at DESC, id DESC`
	if limit > 0 {
		q += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	var out []Run
	for rows.Next() {
		r, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(sc scanner) (Run, error) {
	var (
		r         Run
		createdAt int64
		source    string
		quantized int
	)
	if err := sc.Scan(&r.ID, &createdAt, &source, &r.Target, &r.Scenario, &quantized,
		&r.Trials, &r.Attempts, &r.Successful, &r.Failed,
		&r.DSP, &r.Classification, &r.Anomaly, &r.Total, &r.P50, &r.P90, &r.P99); err != nil {
		return Run{}, err
	}
	r.CreatedAt = time.UnixMicro(createdAt)
	r.Source = Source(source)
	r.Quantized = quantized != 0
	return r, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
