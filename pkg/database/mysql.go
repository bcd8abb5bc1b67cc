package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/go-sql-driver/mysql"

	"dev/bravebird/ui-smokecheck/pkg/models"
)

// DefaultListLimit caps ListRuns when no limit is given
const DefaultListLimit = 50

// DB represents the database connection
type DB struct {
	conn *sql.DB
}

// New creates a new database connection. parseTime is forced on so DATETIME
// columns scan into time.Time.
func New(dsn string) (*DB, error) {
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse dsn: %w", err)
	}
	cfg.ParseTime = true

	conn, err := sql.Open("mysql", cfg.FormatDSN())
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// Configure connection pool
	conn.SetMaxOpenConns(25)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &DB{conn: conn}, nil
}

// NewWithConn wraps an existing connection
func NewWithConn(conn *sql.DB) *DB {
	return &DB{conn: conn}
}

// Close closes the database connection
func (db *DB) Close() error {
	return db.conn.Close()
}

var schema = []string{
	`CREATE TABLE IF NOT EXISTS smoke_runs (
		id VARCHAR(36) PRIMARY KEY,
		scenario VARCHAR(255) NOT NULL,
		driver VARCHAR(32) NOT NULL DEFAULT '',
		base_url VARCHAR(1024) NOT NULL DEFAULT '',
		temporal_workflow_id VARCHAR(255) NOT NULL DEFAULT '',
		temporal_run_id VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(32) NOT NULL,
		route_url VARCHAR(1024) NOT NULL DEFAULT '',
		screenshot_path VARCHAR(1024) NOT NULL DEFAULT '',
		error_message TEXT,
		started_at DATETIME(3) NULL,
		completed_at DATETIME(3) NULL,
		created_at DATETIME(3) NOT NULL DEFAULT CURRENT_TIMESTAMP(3),
		INDEX idx_smoke_runs_scenario (scenario, created_at)
	)`,
	`CREATE TABLE IF NOT EXISTS step_results (
		run_id VARCHAR(36) NOT NULL,
		seq INT NOT NULL,
		name VARCHAR(255) NOT NULL,
		step_type VARCHAR(32) NOT NULL,
		target VARCHAR(255) NOT NULL DEFAULT '',
		status VARCHAR(32) NOT NULL,
		error_message TEXT,
		duration_ms BIGINT NOT NULL DEFAULT 0,
		executed_at DATETIME(3) NULL,
		PRIMARY KEY (run_id, seq),
		CONSTRAINT fk_step_results_run FOREIGN KEY (run_id) REFERENCES smoke_runs (id) ON DELETE CASCADE
	)`,
}

// Migrate creates the tables if they do not exist
func (db *DB) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := db.conn.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to migrate: %w", err)
		}
	}
	return nil
}

// ==================== Runs ====================

// CreateRun creates a new run record
func (db *DB) CreateRun(ctx context.Context, run *models.RunRecord) error {
	query := `
		INSERT INTO smoke_runs (id, scenario, driver, base_url, temporal_workflow_id, temporal_run_id, status, error_message, started_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := db.conn.ExecContext(ctx, query,
		run.ID,
		run.Scenario,
		run.Driver,
		run.BaseURL,
		run.TemporalWorkflowID,
		run.TemporalRunID,
		run.Status,
		run.ErrorMessage,
		run.StartedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create run: %w", err)
	}
	return nil
}

// SetTemporalIDs records the workflow that executes a run and marks it running
func (db *DB) SetTemporalIDs(ctx context.Context, id, workflowID, runID string) error {
	query := `
		UPDATE smoke_runs
		SET temporal_workflow_id = ?, temporal_run_id = ?, status = ?
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query, workflowID, runID, models.StatusRunning, id)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}
	return nil
}

// UpdateRunStatus updates the status of a run
func (db *DB) UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error {
	query := `
		UPDATE smoke_runs
		SET status = ?, error_message = ?,
		    completed_at = CASE WHEN ? IN ('success', 'failed', 'canceled') THEN NOW(3) ELSE completed_at END
		WHERE id = ?
	`

	_, err := db.conn.ExecContext(ctx, query, status, errorMsg, status, id)
	if err != nil {
		return fmt.Errorf("failed to update run status: %w", err)
	}
	return nil
}

// SaveRunResult stores the final outcome of a run and replaces its step results
func (db *DB) SaveRunResult(ctx context.Context, result models.RunResult) error {
	tx, err := db.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		UPDATE smoke_runs
		SET status = ?, route_url = ?, screenshot_path = ?, error_message = ?, started_at = ?, completed_at = ?
		WHERE id = ?
	`,
		result.Status,
		result.Route.URL,
		result.ScreenshotPath,
		result.ErrorMessage,
		result.StartedAt,
		result.CompletedAt,
		result.RunID,
	)
	if err != nil {
		return fmt.Errorf("failed to update run: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM step_results WHERE run_id = ?`, result.RunID); err != nil {
		return fmt.Errorf("failed to clear step results: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO step_results (run_id, seq, name, step_type, target, status, error_message, duration_ms, executed_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`)
	if err != nil {
		return fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	for _, step := range result.Steps {
		_, err := stmt.ExecContext(ctx,
			result.RunID,
			step.Sequence,
			step.Name,
			step.Type,
			step.Target,
			step.Status,
			step.ErrorMessage,
			step.Duration,
			step.ExecutedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert step result: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit run result: %w", err)
	}
	return nil
}

const runColumns = `
	id, scenario, driver, base_url, temporal_workflow_id, temporal_run_id, status,
	route_url, screenshot_path, COALESCE(error_message, ''), started_at, completed_at
`

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanRun(s scanner) (models.RunRecord, error) {
	var run models.RunRecord
	err := s.Scan(
		&run.ID,
		&run.Scenario,
		&run.Driver,
		&run.BaseURL,
		&run.TemporalWorkflowID,
		&run.TemporalRunID,
		&run.Status,
		&run.RouteURL,
		&run.ScreenshotPath,
		&run.ErrorMessage,
		&run.StartedAt,
		&run.CompletedAt,
	)
	return run, err
}

// GetRun retrieves a run by ID. It returns nil, nil when the run does not exist.
func (db *DB) GetRun(ctx context.Context, id string) (*models.RunRecord, error) {
	query := `SELECT ` + runColumns + ` FROM smoke_runs WHERE id = ?`

	run, err := scanRun(db.conn.QueryRowContext(ctx, query, id))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run: %w", err)
	}

	return &run, nil
}

// ListRuns returns the most recent runs, optionally for one scenario only
func (db *DB) ListRuns(ctx context.Context, scenario string, limit int) ([]models.RunRecord, error) {
	if limit <= 0 {
		limit = DefaultListLimit
	}

	query := `SELECT ` + runColumns + ` FROM smoke_runs`
	args := []interface{}{}
	if scenario != "" {
		query += ` WHERE scenario = ?`
		args = append(args, scenario)
	}
	query += ` ORDER BY created_at DESC LIMIT ?`
	args = append(args, limit)

	rows, err := db.conn.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	defer rows.Close()

	runs := []models.RunRecord{}
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		runs = append(runs, run)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

// ==================== Step Results ====================

// GetStepResults retrieves step results for a run, in execution order
func (db *DB) GetStepResults(ctx context.Context, runID string) ([]models.StepResult, error) {
	query := `
		SELECT run_id, seq, name, step_type, target, status, COALESCE(error_message, ''), duration_ms, executed_at
		FROM step_results
		WHERE run_id = ?
		ORDER BY seq
	`

	rows, err := db.conn.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}
	defer rows.Close()

	results := []models.StepResult{}
	for rows.Next() {
		var result models.StepResult
		err := rows.Scan(
			&result.RunID,
			&result.Sequence,
			&result.Name,
			&result.Type,
			&result.Target,
			&result.Status,
			&result.ErrorMessage,
			&result.Duration,
			&result.ExecutedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}
		results = append(results, result)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to get results: %w", err)
	}

	return results, nil
}
