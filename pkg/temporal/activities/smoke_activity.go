package activities

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"go.temporal.io/sdk/activity"

	"dev/bravebird/ui-smokecheck/pkg/browser"
	"dev/bravebird/ui-smokecheck/pkg/models"
	"dev/bravebird/ui-smokecheck/pkg/runner"
	"dev/bravebird/ui-smokecheck/pkg/scenario"
	"dev/bravebird/ui-smokecheck/pkg/temporal/workflows"
)

// DefaultHeartbeatInterval paces heartbeats while a run is between step updates
const DefaultHeartbeatInterval = 10 * time.Second

// RunRecorder persists run outcomes
type RunRecorder interface {
	SaveRunResult(ctx context.Context, result models.RunResult) error
}

// ProgressReporter forwards step updates to the running workflow; client.Client satisfies it
type ProgressReporter interface {
	SignalWorkflow(ctx context.Context, workflowID string, runID string, signalName string, arg interface{}) error
}

// Activities holds activity implementations
type Activities struct {
	Catalog       scenario.Catalog
	ScreenshotDir string
	ChromeBin     string
	// InstallBrowsers lets the playwright driver download Chromium on first use
	InstallBrowsers bool
	Store           RunRecorder
	// DefaultDriver serves requests that name no driver
	DefaultDriver string
	// Progress may be nil, in which case step updates only go to heartbeats
	Progress          ProgressReporter
	HeartbeatInterval time.Duration

	// NewDriver defaults to browser.NewDriver
	NewDriver func(name string) (browser.Driver, error)
}

// NewActivities creates new activities. store may be nil.
func NewActivities(catalog scenario.Catalog, screenshotDir, chromeBin string, store RunRecorder) *Activities {
	return &Activities{
		Catalog:       catalog,
		ScreenshotDir: screenshotDir,
		ChromeBin:     chromeBin,
		Store:         store,
		NewDriver:     browser.NewDriver,

		HeartbeatInterval: DefaultHeartbeatInterval,
	}
}

// ScreenshotPath is where a worker run stores its final screenshot
func (a *Activities) ScreenshotPath(runID string) string {
	return filepath.Join(a.ScreenshotDir, runID+".png")
}

// RunScenarioActivity loads the requested scenario and runs it in a fresh browser.
// Scenario failures are reported in the result; the returned error is always nil.
func (a *Activities) RunScenarioActivity(ctx context.Context, req models.RunRequest) (models.RunResult, error) {
	logger := activity.GetLogger(ctx)
	logger.Info("Running scenario", "runID", req.RunID, "scenario", req.Scenario, "driver", req.Driver, "headless", req.Headless)

	fail := func(err error) (models.RunResult, error) {
		now := time.Now()
		logger.Error("Scenario could not start", "runID", req.RunID, "error", err)
		return models.RunResult{
			RunID:        req.RunID,
			Scenario:     req.Scenario,
			Driver:       req.Driver,
			Status:       models.StatusFailed,
			ErrorMessage: err.Error(),
			StartedAt:    now,
			CompletedAt:  now,
		}, nil
	}

	sc, err := a.Catalog.Load(req.Scenario)
	if err != nil {
		return fail(fmt.Errorf("failed to load scenario: %w", err))
	}
	sc = scenario.WithBaseURL(sc, req.BaseURL)

	newDriver := a.NewDriver
	if newDriver == nil {
		newDriver = browser.NewDriver
	}
	if req.Driver == "" {
		req.Driver = a.DefaultDriver
	}
	driver, err := newDriver(req.Driver)
	if err != nil {
		return fail(err)
	}

	hb := &heartbeat{}
	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go hb.keepAlive(hbCtx, a.HeartbeatInterval)

	info := activity.GetInfo(ctx)
	r := runner.New(runner.Options{
		Driver:         driver,
		Headless:       req.Headless,
		Bin:            a.ChromeBin,
		Install:        a.InstallBrowsers,
		ScreenshotPath: a.ScreenshotPath(req.RunID),
		FailureDir:     a.ScreenshotDir,
		Logger:         logger,
		RunID:          req.RunID,
		OnStep: func(sr models.StepResult) {
			hb.record(ctx, sr)
			if a.Progress == nil {
				return
			}
			err := a.Progress.SignalWorkflow(ctx, info.WorkflowExecution.ID, info.WorkflowExecution.RunID, workflows.StepSignal, sr)
			if err != nil {
				logger.Warn("Failed to report step progress", "runID", req.RunID, "step", sr.Name, "error", err)
			}
		},
	})

	result, err := r.Run(ctx, sc)
	if err != nil {
		logger.Warn("Scenario did not pass", "runID", req.RunID, "status", result.Status, "error", err)
	}
	return result, nil
}

// RecordRunActivity stores the run result when a store is configured
func (a *Activities) RecordRunActivity(ctx context.Context, result models.RunResult) error {
	logger := activity.GetLogger(ctx)

	if a.Store == nil {
		logger.Info("No run store configured, skipping record", "runID", result.RunID)
		return nil
	}

	if err := a.Store.SaveRunResult(ctx, result); err != nil {
		return fmt.Errorf("failed to record run %s: %w", result.RunID, err)
	}
	logger.Info("Run recorded", "runID", result.RunID, "status", result.Status)
	return nil
}

// heartbeat carries the latest step into every heartbeat, including the ones
// sent while the browser launches or routes are probed
type heartbeat struct {
	mu   sync.Mutex
	last *models.StepResult
}

func (h *heartbeat) record(ctx context.Context, sr models.StepResult) {
	h.mu.Lock()
	h.last = &sr
	h.mu.Unlock()
	activity.RecordHeartbeat(ctx, sr)
}

func (h *heartbeat) keepAlive(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultHeartbeatInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			h.mu.Lock()
			last := h.last
			h.mu.Unlock()
			if last != nil {
				activity.RecordHeartbeat(ctx, *last)
			} else {
				activity.RecordHeartbeat(ctx)
			}
		}
	}
}
