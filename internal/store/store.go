// Authors: Rohan Adla, Arrio Gonsalves, Shreyan Nalwad, Dylan Setiawan
// Date: Dec 12th 2025
// Project: A Monte Carlo Calibration of Arellano-Bond Estimates of Democracy and Growth
// Class: 02-613 at Caregie Mellon University

// Package store persists Monte Carlo runs in SQLite: run metadata, the full
// trial matrix and the summary tables, so reports can be rebuilt later.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite" // SQLite driver (pure Go)

	"github.com/shuowencs/Crossover-Jackknife/internal/aggregate"
	"github.com/shuowencs/Crossover-Jackknife/internal/montecarlo"
)

var errNotOpen = errors.New("database not opened")

// ErrRunNotFound is returned when no run has the requested ID.
var ErrRunNotFound = errors.New("run not found")

// RunStatus is the lifecycle state of a run.
type RunStatus string

const (
	RunStatusRunning   RunStatus = "running"
	RunStatusCompleted RunStatus = "completed"
	RunStatusFailed    RunStatus = "failed"
)

// Run is one simulation study.
type Run struct {
	ID     string
	Status RunStatus
	// Config is the YAML snapshot of the configuration the run used
	Config             string
	Trials             int
	Replications       int
	FailedTrials       int
	FailedReplications int
	StartedAt          time.Time
	CompletedAt        *time.Time
	Error              string
}

// SQLiteStore stores runs in a SQLite database.
type SQLiteStore struct {
	db   *sql.DB
	path string
}

// Open opens (creating if needed) the database at path and migrates it.
// Use ":memory:" for an in-memory database.
func Open(path string) (*SQLiteStore, error) {
	dsn := path + "?_pragma=foreign_keys(1)"
	if path != ":memory:" {
		dsn += "&_pragma=journal_mode(WAL)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open sqlite database: %w", err)
	}
	// A single connection keeps in-memory databases alive and serializes writers
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping sqlite database: %w", err)
	}

	s := &SQLiteStore{db: db, path: path}
	if err := s.Migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// CreateRun records the start of a run.
func (s *SQLiteStore) CreateRun(ctx context.Context, config string, trials, replications int) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	run := &Run{
		ID:           uuid.New().String(),
		Status:       RunStatusRunning,
		Config:       config,
		Trials:       trials,
		Replications: replications,
		StartedAt:    time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, status, config, trials, replications, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID, string(run.Status), run.Config, run.Trials, run.Replications, formatTime(run.StartedAt),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create run: %w", err)
	}
	return run, nil
}

// CompleteRun marks a run finished with the given status.
func (s *SQLiteStore) CompleteRun(ctx context.Context, id string, status RunStatus, errMsg string) error {
	if s.db == nil {
		return errNotOpen
	}

	var errValue sql.NullString
	if errMsg != "" {
		errValue = sql.NullString{String: errMsg, Valid: true}
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE runs SET status = ?, completed_at = ?, error = ? WHERE id = ?`,
		string(status), formatTime(time.Now().UTC()), errValue, id,
	)
	if err != nil {
		return fmt.Errorf("failed to complete run: %w", err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	return nil
}

// GetRun returns the run with the given ID.
func (s *SQLiteStore) GetRun(ctx context.Context, id string) (*Run, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	row := s.db.QueryRowContext(ctx,
		`SELECT id, status, config, trials, replications, failed_trials, failed_replications,
		        started_at, completed_at, error
		 FROM runs WHERE id = ?`, id)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}
	return run, nil
}

// ListRuns returns all runs, newest first.
func (s *SQLiteStore) ListRuns(ctx context.Context) ([]*Run, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, config, trials, replications, failed_trials, failed_replications,
		        started_at, completed_at, error
		 FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var runs []*Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (*Run, error) {
	run := &Run{}
	var status, startedAt string
	var completedAt, errMsg sql.NullString

	if err := row.Scan(&run.ID, &status, &run.Config, &run.Trials, &run.Replications,
		&run.FailedTrials, &run.FailedReplications, &startedAt, &completedAt, &errMsg); err != nil {
		return nil, err
	}
	run.Status = RunStatus(status)

	t, err := parseTime(startedAt)
	if err != nil {
		return nil, err
	}
	run.StartedAt = t
	if completedAt.Valid {
		t, err := parseTime(completedAt.String)
		if err != nil {
			return nil, err
		}
		run.CompletedAt = &t
	}
	if errMsg.Valid {
		run.Error = errMsg.String
	}
	return run, nil
}

// --- Trial matrix ---

// SaveMatrix stores every trial record of a run and its failure counts.
func (s *SQLiteStore) SaveMatrix(ctx context.Context, runID string, m *montecarlo.Matrix) error {
	if s.db == nil {
		return errNotOpen
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx, `INSERT INTO trial_values (run_id, trial, col, value) VALUES (?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for i, r := range m.Records {
		for j, v := range r {
			if _, err := stmt.ExecContext(ctx, runID, i, j, nullable(v)); err != nil {
				return fmt.Errorf("failed to save trial %d: %w", i, err)
			}
		}
	}

	result, err := tx.ExecContext(ctx,
		`UPDATE runs SET trials = ?, failed_trials = ?, failed_replications = ? WHERE id = ?`,
		m.Len(), m.Failed(), m.BootstrapFailed, runID)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	if n, _ := result.RowsAffected(); n == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	return tx.Commit()
}

// LoadMatrix reads back the trial matrix of a run.
func (s *SQLiteStore) LoadMatrix(ctx context.Context, runID string) (*montecarlo.Matrix, error) {
	run, err := s.GetRun(ctx, runID)
	if err != nil {
		return nil, err
	}

	m := &montecarlo.Matrix{
		Records:         make([]montecarlo.Record, run.Trials),
		BootstrapFailed: run.FailedReplications,
	}
	for i := range m.Records {
		m.Records[i] = montecarlo.MissingRecord()
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT trial, col, value FROM trial_values WHERE run_id = ? ORDER BY trial, col`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load trial matrix: %w", err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var trial, col int
		var value sql.NullFloat64
		if err := rows.Scan(&trial, &col, &value); err != nil {
			return nil, fmt.Errorf("failed to scan trial value: %w", err)
		}
		if trial < 0 || trial >= len(m.Records) || col < 0 || col >= montecarlo.RecordLen {
			return nil, fmt.Errorf("trial value (%d, %d) out of range", trial, col)
		}
		if value.Valid {
			m.Records[trial][col] = value.Float64
		}
	}
	return m, rows.Err()
}

// --- Summary tables ---

// SaveTables stores the summary tables of a run, replacing earlier ones.
func (s *SQLiteStore) SaveTables(ctx context.Context, runID string, tables []aggregate.Table) error {
	if s.db == nil {
		return errNotOpen
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM summary_stats WHERE run_id = ?`, runID); err != nil {
		return fmt.Errorf("failed to clear summary tables: %w", err)
	}

	for pos, tab := range tables {
		args := []any{runID, pos, tab.Name, tab.Truth, tab.N, tab.Skipped}
		for _, v := range tab.Stats {
			args = append(args, nullable(v))
		}
		_, err := tx.ExecContext(ctx,
			`INSERT INTO summary_stats (run_id, position, stat, truth, n, skipped,
			     bias, sd, rmse, bse_sd, ase_sd, cp_bse, cp_ase, length_bse, length_ase)
			 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, args...)
		if err != nil {
			return fmt.Errorf("failed to save table %s: %w", tab.Name, err)
		}
	}

	return tx.Commit()
}

// LoadTables reads back the summary tables of a run in their saved order.
func (s *SQLiteStore) LoadTables(ctx context.Context, runID string) ([]aggregate.Table, error) {
	if s.db == nil {
		return nil, errNotOpen
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT stat, truth, n, skipped,
		        bias, sd, rmse, bse_sd, ase_sd, cp_bse, cp_ase, length_bse, length_ase
		 FROM summary_stats WHERE run_id = ? ORDER BY position`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load summary tables: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var tables []aggregate.Table
	for rows.Next() {
		var tab aggregate.Table
		var stats [aggregate.NumStats]sql.NullFloat64
		dest := []any{&tab.Name, &tab.Truth, &tab.N, &tab.Skipped}
		for i := range stats {
			dest = append(dest, &stats[i])
		}
		if err := rows.Scan(dest...); err != nil {
			return nil, fmt.Errorf("failed to scan summary table: %w", err)
		}
		for i, v := range stats {
			tab.Stats[i] = math.NaN()
			if v.Valid {
				tab.Stats[i] = v.Float64
			}
		}
		tables = append(tables, tab)
	}
	return tables, rows.Err()
}

// nullable maps missing values to NULL.
func nullable(x float64) sql.NullFloat64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: x, Valid: true}
}

// timeLayout is fixed width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(timeLayout, s)
}
