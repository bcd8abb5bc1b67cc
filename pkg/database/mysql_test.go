package database

import (
	"context"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/ui-smokecheck/pkg/models"
)

func newMock(t *testing.T) (*DB, sqlmock.Sqlmock) {
	t.Helper()
	conn, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("failed to create mock: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return NewWithConn(conn), mock
}

var runRowColumns = []string{
	"id", "scenario", "driver", "base_url", "temporal_workflow_id", "temporal_run_id", "status",
	"route_url", "screenshot_path", "error_message", "started_at", "completed_at",
}

func TestMigrate(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS smoke_runs").WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("CREATE TABLE IF NOT EXISTS step_results").WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, db.Migrate(context.Background()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMigrateError(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec("CREATE TABLE IF NOT EXISTS smoke_runs").WillReturnError(errors.New("access denied"))

	err := db.Migrate(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "access denied")
}

func TestCreateRun(t *testing.T) {
	db, mock := newMock(t)
	now := time.Now()

	mock.ExpectExec("INSERT INTO smoke_runs").
		WithArgs("run-1", "recipe-portions", "rod", "http://localhost:5173", "", "", "pending", "", now).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := db.CreateRun(context.Background(), &models.RunRecord{
		ID:        "run-1",
		Scenario:  "recipe-portions",
		Driver:    "rod",
		BaseURL:   "http://localhost:5173",
		Status:    models.StatusPending,
		StartedAt: &now,
	})
	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSetTemporalIDs(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec("UPDATE smoke_runs").
		WithArgs("smoke-check-run-1", "temporal-run", "running", "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.SetTemporalIDs(context.Background(), "run-1", "smoke-check-run-1", "temporal-run"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateRunStatus(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectExec("UPDATE smoke_runs").
		WithArgs("canceled", "Cancelled by user", "canceled", "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, db.UpdateRunStatus(context.Background(), "run-1", models.StatusCanceled, "Cancelled by user"))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunResult(t *testing.T) {
	db, mock := newMock(t)
	executed := time.Now()

	result := models.RunResult{
		RunID:          "run-1",
		Status:         models.StatusFailed,
		Route:          models.RouteResult{Found: true, URL: "http://localhost:5173/foods"},
		ScreenshotPath: "",
		ErrorMessage:   "step failed",
		StartedAt:      executed,
		CompletedAt:    executed.Add(time.Second),
		Steps: []models.StepResult{
			{Sequence: 1, Name: "open-recipe-form", Type: models.StepClick, Target: "new_recipe", Status: models.StatusFailed, ErrorMessage: "timeout", Duration: 30000, ExecutedAt: &executed},
			{Sequence: 2, Name: "capture", Type: models.StepScreenshot, Status: models.StatusSkipped, ErrorMessage: "step failed"},
		},
	}

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE smoke_runs").
		WithArgs("failed", "http://localhost:5173/foods", "", "step failed", sqlmock.AnyArg(), sqlmock.AnyArg(), "run-1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta("DELETE FROM step_results WHERE run_id = ?")).
		WithArgs("run-1").
		WillReturnResult(sqlmock.NewResult(0, 0))
	prep := mock.ExpectPrepare("INSERT INTO step_results")
	prep.ExpectExec().
		WithArgs("run-1", 1, "open-recipe-form", "click", "new_recipe", "failed", "timeout", 30000, sqlmock.AnyArg()).
		WillReturnResult(sqlmock.NewResult(0, 1))
	prep.ExpectExec().
		WithArgs("run-1", 2, "capture", "screenshot", "", "skipped", "step failed", 0, nil).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	require.NoError(t, db.SaveRunResult(context.Background(), result))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaveRunResultRollsBack(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectBegin()
	mock.ExpectExec("UPDATE smoke_runs").WillReturnError(errors.New("deadlock"))
	mock.ExpectRollback()

	err := db.SaveRunResult(context.Background(), models.RunResult{RunID: "run-1", Status: models.StatusSuccess})
	require.Error(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRun(t *testing.T) {
	db, mock := newMock(t)
	started := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT (.+) FROM smoke_runs WHERE id = ?").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows(runRowColumns).
			AddRow("run-1", "recipe-portions", "rod", "http://localhost:5173", "wf", "trun", "success",
				"http://localhost:5173/foods", "/tmp/screenshots/run-1.png", "", started, nil))

	run, err := db.GetRun(context.Background(), "run-1")
	require.NoError(t, err)
	require.NotNil(t, run)
	assert.Equal(t, models.StatusSuccess, run.Status)
	assert.Equal(t, "http://localhost:5173/foods", run.RouteURL)
	require.NotNil(t, run.StartedAt)
	assert.True(t, run.StartedAt.Equal(started))
	assert.Nil(t, run.CompletedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetRunNotFound(t *testing.T) {
	db, mock := newMock(t)

	mock.ExpectQuery("SELECT (.+) FROM smoke_runs").
		WithArgs("missing").
		WillReturnRows(sqlmock.NewRows(runRowColumns))

	run, err := db.GetRun(context.Background(), "missing")
	require.NoError(t, err)
	assert.Nil(t, run)
}

func TestListRuns(t *testing.T) {
	tests := []struct {
		name     string
		scenario string
		limit    int
		query    string
		args     []driver.Value
	}{
		{"all", "", 0, "FROM smoke_runs ORDER BY created_at DESC LIMIT ?", []driver.Value{DefaultListLimit}},
		{"by scenario", "recipe-portions", 5, "FROM smoke_runs WHERE scenario = ? ORDER BY created_at DESC LIMIT ?", []driver.Value{"recipe-portions", 5}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			db, mock := newMock(t)

			rows := sqlmock.NewRows(runRowColumns).
				AddRow("run-2", "recipe-portions", "rod", "", "", "", "running", "", "", "", nil, nil).
				AddRow("run-1", "recipe-portions", "playwright", "", "", "", "failed", "", "", "route not found", nil, nil)

			mock.ExpectQuery(regexp.QuoteMeta(tt.query)).
				WithArgs(tt.args...).
				WillReturnRows(rows)

			runs, err := db.ListRuns(context.Background(), tt.scenario, tt.limit)
			require.NoError(t, err)
			require.Len(t, runs, 2)
			assert.Equal(t, "run-2", runs[0].ID)
			assert.Equal(t, "route not found", runs[1].ErrorMessage)
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestGetStepResults(t *testing.T) {
	db, mock := newMock(t)
	executed := time.Date(2024, 5, 1, 10, 0, 1, 0, time.UTC)

	mock.ExpectQuery("FROM step_results").
		WithArgs("run-1").
		WillReturnRows(sqlmock.NewRows([]string{"run_id", "seq", "name", "step_type", "target", "status", "error_message", "duration_ms", "executed_at"}).
			AddRow("run-1", 1, "open-recipe-form", "click", "new_recipe", "success", "", 120, executed).
			AddRow("run-1", 2, "capture", "screenshot", "", "skipped", "route not found", 0, nil))

	results, err := db.GetStepResults(context.Background(), "run-1")
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, models.StepClick, results[0].Type)
	assert.Equal(t, int64(120), results[0].Duration)
	require.NotNil(t, results[0].ExecutedAt)
	assert.Equal(t, models.StatusSkipped, results[1].Status)
	assert.Nil(t, results[1].ExecutedAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}
