package workflows

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/testsuite"

	"dev/bravebird/ui-smokecheck/pkg/models"
)

type fakeActivities struct {
	result   models.RunResult
	err      error
	runs     int
	recorded []models.RunResult
}

func (f *fakeActivities) run(ctx context.Context, req models.RunRequest) (models.RunResult, error) {
	f.runs++
	return f.result, f.err
}

func (f *fakeActivities) record(ctx context.Context, result models.RunResult) error {
	f.recorded = append(f.recorded, result)
	return nil
}

func newEnv(f *fakeActivities) *testsuite.TestWorkflowEnvironment {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterWorkflow(SmokeCheckWorkflow)
	env.RegisterActivityWithOptions(f.run, activity.RegisterOptions{Name: RunScenarioActivityName})
	env.RegisterActivityWithOptions(f.record, activity.RegisterOptions{Name: RecordRunActivityName})
	return env
}

func TestSmokeCheckWorkflowSuccess(t *testing.T) {
	f := &fakeActivities{result: models.RunResult{
		RunID:          "run-1",
		Scenario:       "recipe-portions",
		Status:         models.StatusSuccess,
		ScreenshotPath: "/tmp/screenshots/run-1.png",
	}}
	env := newEnv(f)

	env.ExecuteWorkflow(SmokeCheckWorkflow, models.RunRequest{RunID: "run-1", Scenario: "recipe-portions", Headless: true})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result models.RunResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, models.StatusSuccess, result.Status)
	assert.Equal(t, "/tmp/screenshots/run-1.png", result.ScreenshotPath)

	require.Len(t, f.recorded, 1)
	assert.Equal(t, models.StatusSuccess, f.recorded[0].Status)
}

func TestSmokeCheckWorkflowFailedScenarioIsData(t *testing.T) {
	f := &fakeActivities{result: models.RunResult{
		RunID:        "run-2",
		Status:       models.StatusFailed,
		ErrorMessage: "route not found",
	}}
	env := newEnv(f)

	env.ExecuteWorkflow(SmokeCheckWorkflow, models.RunRequest{RunID: "run-2", Scenario: "recipe-portions"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result models.RunResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Equal(t, "route not found", result.ErrorMessage)
}

func TestSmokeCheckWorkflowActivityErrorIsNotRetried(t *testing.T) {
	f := &fakeActivities{err: errors.New("worker lost the browser")}
	env := newEnv(f)

	env.ExecuteWorkflow(SmokeCheckWorkflow, models.RunRequest{RunID: "run-3", Scenario: "recipe-portions"})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	var result models.RunResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, models.StatusFailed, result.Status)
	assert.Contains(t, result.ErrorMessage, "worker lost the browser")
	assert.Equal(t, "run-3", result.RunID)
	assert.Equal(t, 1, f.runs)

	require.Len(t, f.recorded, 1)
	assert.Equal(t, models.StatusFailed, f.recorded[0].Status)
}

func TestSmokeCheckWorkflowProgressQuery(t *testing.T) {
	f := &fakeActivities{result: models.RunResult{RunID: "run-4", Status: models.StatusSuccess}}
	env := newEnv(f)

	env.ExecuteWorkflow(SmokeCheckWorkflow, models.RunRequest{RunID: "run-4", Scenario: "recipe-portions"})
	require.True(t, env.IsWorkflowCompleted())

	value, err := env.QueryWorkflow(ProgressQuery)
	require.NoError(t, err)

	var progress models.RunResult
	require.NoError(t, value.Get(&progress))
	assert.Equal(t, models.StatusSuccess, progress.Status)
}

func TestSmokeCheckWorkflowProgressDuringRun(t *testing.T) {
	final := models.RunResult{
		RunID:  "run-5",
		Status: models.StatusSuccess,
		Steps: []models.StepResult{
			{Sequence: 1, Name: "open-recipe-form", Status: models.StatusSuccess},
			{Sequence: 2, Name: "fill-recipe-name", Status: models.StatusSuccess},
		},
	}
	env := newEnv(&fakeActivities{})
	env.OnActivity(RunScenarioActivityName, mock.Anything, mock.Anything).After(time.Minute).Return(final, nil)

	env.RegisterDelayedCallback(func() {
		env.SignalWorkflow(StepSignal, models.StepResult{Sequence: 1, Name: "open-recipe-form", Status: models.StatusSuccess})
		env.SignalWorkflow(StepSignal, models.StepResult{Sequence: 2, Name: "fill-recipe-name", Status: models.StatusRunning})
	}, 10*time.Second)

	var midRun models.RunResult
	var queryErr error
	env.RegisterDelayedCallback(func() {
		value, err := env.QueryWorkflow(ProgressQuery)
		if err != nil {
			queryErr = err
			return
		}
		queryErr = value.Get(&midRun)
	}, 20*time.Second)

	env.ExecuteWorkflow(SmokeCheckWorkflow, models.RunRequest{RunID: "run-5", Scenario: "recipe-portions"})
	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())

	require.NoError(t, queryErr)
	assert.Equal(t, models.StatusRunning, midRun.Status)
	require.Len(t, midRun.Steps, 2)
	assert.Equal(t, models.StatusSuccess, midRun.Steps[0].Status)
	assert.Equal(t, models.StatusRunning, midRun.Steps[1].Status)

	// Late updates never overwrite the final result
	var result models.RunResult
	require.NoError(t, env.GetWorkflowResult(&result))
	assert.Equal(t, final.Steps, result.Steps)
}

func TestApplyStep(t *testing.T) {
	result := models.RunResult{RunID: "run-6"}
	applyStep(&result, models.StepResult{Sequence: 3, Name: "capture", Status: models.StatusRunning})
	applyStep(&result, models.StepResult{Sequence: 0, Name: "ignored"})

	require.Len(t, result.Steps, 3)
	assert.Equal(t, models.StatusPending, result.Steps[0].Status)
	assert.Equal(t, 2, result.Steps[1].Sequence)
	assert.Equal(t, "capture", result.Steps[2].Name)
}

func TestWorkflowID(t *testing.T) {
	assert.Equal(t, "smoke-check-abc", WorkflowID("abc"))
}
