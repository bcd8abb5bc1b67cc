package workflows

import (
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"dev/bravebird/ui-smokecheck/pkg/models"
)

const (
	// TaskQueue is the queue smoke-check workers poll
	TaskQueue = "ui-smokecheck"
	// ProgressQuery returns the run result as known so far
	ProgressQuery = "getProgress"
	// StepSignal carries a models.StepResult each time a step changes status
	StepSignal = "stepProgress"

	RunScenarioActivityName = "RunScenarioActivity"
	RecordRunActivityName   = "RecordRunActivity"

	DefaultRunTimeout = 5 * time.Minute
)

// WorkflowID derives the Temporal workflow ID from a run ID
func WorkflowID(runID string) string {
	return "smoke-check-" + runID
}

// SmokeCheckWorkflow runs one scenario and records its outcome. A failing
// scenario completes the workflow with a failed result, not a workflow error.
func SmokeCheckWorkflow(ctx workflow.Context, input models.RunRequest) (models.RunResult, error) {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting smoke check workflow", "runID", input.RunID, "scenario", input.Scenario)

	result := models.RunResult{
		RunID:     input.RunID,
		Scenario:  input.Scenario,
		Driver:    input.Driver,
		Status:    models.StatusRunning,
		StartedAt: workflow.Now(ctx),
	}

	// Register query handler for real-time progress
	err := workflow.SetQueryHandler(ctx, ProgressQuery, func() (models.RunResult, error) {
		return result, nil
	})
	if err != nil {
		logger.Error("Failed to register query handler", "error", err)
	}

	// Step updates arrive as signals from the running activity
	finished := false
	stepCh := workflow.GetSignalChannel(ctx, StepSignal)
	workflow.Go(ctx, func(ctx workflow.Context) {
		for {
			var sr models.StepResult
			if more := stepCh.Receive(ctx, &sr); !more {
				return
			}
			if !finished {
				applyStep(&result, sr)
			}
		}
	})

	timeout := DefaultRunTimeout
	if input.TimeoutSeconds > 0 {
		timeout = time.Duration(input.TimeoutSeconds) * time.Second
	}

	// Single attempt: scenario steps are never retried
	runCtx := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: timeout,
		HeartbeatTimeout:    2 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 1,
		},
	})

	var runResult models.RunResult
	err = workflow.ExecuteActivity(runCtx, RunScenarioActivityName, input).Get(runCtx, &runResult)
	if err != nil {
		result.Status = models.StatusFailed
		if temporal.IsCanceledError(err) {
			result.Status = models.StatusCanceled
		}
		result.ErrorMessage = "Failed to run scenario: " + err.Error()
		result.CompletedAt = workflow.Now(ctx)
		result.TotalDuration = result.CompletedAt.Sub(result.StartedAt).Milliseconds()
	} else {
		result = runResult
	}
	finished = true

	// Recording must happen even when the workflow was canceled
	recordCtx, cancel := workflow.NewDisconnectedContext(ctx)
	defer cancel()
	recordCtx = workflow.WithActivityOptions(recordCtx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval:    time.Second,
			BackoffCoefficient: 2.0,
			MaximumAttempts:    3,
		},
	})
	if err := workflow.ExecuteActivity(recordCtx, RecordRunActivityName, result).Get(recordCtx, nil); err != nil {
		logger.Warn("Failed to record run", "runID", result.RunID, "error", err)
	}

	logger.Info("Workflow completed", "status", result.Status, "duration", result.TotalDuration)
	return result, nil
}

func applyStep(result *models.RunResult, sr models.StepResult) {
	if sr.Sequence < 1 {
		return
	}
	for len(result.Steps) < sr.Sequence {
		result.Steps = append(result.Steps, models.StepResult{
			RunID:    result.RunID,
			Sequence: len(result.Steps) + 1,
			Status:   models.StatusPending,
		})
	}
	result.Steps[sr.Sequence-1] = sr
}
