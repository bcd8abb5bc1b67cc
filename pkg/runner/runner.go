// Package runner executes a scenario against a live browser session.
package runner

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"go.temporal.io/sdk/log"

	"dev/bravebird/ui-smokecheck/pkg/browser"
	"dev/bravebird/ui-smokecheck/pkg/models"
	"dev/bravebird/ui-smokecheck/pkg/scenario"
)

// failureCaptureTimeout bounds the screenshot taken after a failed step
const failureCaptureTimeout = 10 * time.Second

// Options configures a Runner
type Options struct {
	Driver   browser.Driver // defaults to rod
	Headless bool
	Bin      string
	Install  bool

	// ScreenshotPath replaces the output of every screenshot step
	ScreenshotPath string
	// FailureDir receives <run id>_failure.png when a run fails after launch; empty disables it
	FailureDir string

	Logger log.Logger
	// OnStep is called on every step status change
	OnStep func(models.StepResult)
	RunID  string
}

// Runner runs scenarios one step at a time
type Runner struct {
	opts   Options
	driver browser.Driver
	logger log.Logger
}

// New creates a runner
func New(opts Options) *Runner {
	r := &Runner{opts: opts, driver: opts.Driver, logger: opts.Logger}
	if r.driver == nil {
		r.driver = browser.NewRodDriver()
	}
	if r.logger == nil {
		r.logger = log.NewStructuredLogger(slog.Default())
	}
	return r
}

// Run executes sc and returns its result. The error is nil only when every step succeeded.
// The browser is closed before Run returns.
//
// When the scenario declares route discovery and no candidate shows the marker,
// Run stops with ErrRouteNotFound and every step is reported skipped; steps are
// never executed against a page that failed discovery.
func (r *Runner) Run(ctx context.Context, sc *models.Scenario) (models.RunResult, error) {
	runID := r.opts.RunID
	if runID == "" {
		runID = uuid.New().String()
	}

	result := models.RunResult{
		RunID:     runID,
		Scenario:  sc.Name,
		Driver:    r.driver.Name(),
		Status:    models.StatusRunning,
		Steps:     make([]models.StepResult, len(sc.Steps)),
		StartedAt: time.Now(),
	}
	for i, step := range sc.Steps {
		result.Steps[i] = models.StepResult{
			RunID:    runID,
			Sequence: i + 1,
			Name:     step.Name,
			Type:     step.Type,
			Target:   step.Target,
			Status:   models.StatusPending,
		}
	}

	r.logger.Info("Starting scenario", "runID", runID, "scenario", sc.Name, "driver", r.driver.Name(), "baseURL", sc.BaseURL)

	err := scenario.Validate(sc)
	if err == nil {
		err = r.run(ctx, sc, &result)
	}

	result.CompletedAt = time.Now()
	result.TotalDuration = result.CompletedAt.Sub(result.StartedAt).Milliseconds()

	if err != nil {
		result.Status = models.StatusFailed
		if errors.Is(err, context.Canceled) {
			result.Status = models.StatusCanceled
		}
		result.ErrorMessage = err.Error()
		r.skipPending(&result, err)
		r.logger.Error("Scenario failed", "runID", runID, "scenario", sc.Name, "error", err, "duration", result.TotalDuration)
		return result, err
	}

	result.Status = models.StatusSuccess
	r.logger.Info("Scenario completed", "runID", runID, "scenario", sc.Name, "screenshot", result.ScreenshotPath, "duration", result.TotalDuration)
	return result, nil
}

// run owns the browser session; it is closed on every path, panics included
func (r *Runner) run(ctx context.Context, sc *models.Scenario, result *models.RunResult) (err error) {
	var session browser.Session
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("browser driver panicked: %v", rec)
			r.failRunning(result, err)
			if session != nil {
				r.captureFailure(ctx, session, result)
			}
		}
		if session != nil {
			if cerr := session.Close(); cerr != nil {
				r.logger.Warn("Failed to close browser", "runID", result.RunID, "error", cerr)
			}
		}
	}()

	session, err = r.driver.Launch(ctx, browser.LaunchOptions{
		Headless: r.opts.Headless,
		Bin:      r.opts.Bin,
		Viewport: sc.Viewport,
		Install:  r.opts.Install,
	})
	if err != nil {
		return fmt.Errorf("failed to start browser: %w", err)
	}

	if err = r.execute(ctx, sc, session, result); err != nil {
		r.captureFailure(ctx, session, result)
	}
	return err
}

func (r *Runner) execute(ctx context.Context, sc *models.Scenario, session browser.Session, result *models.RunResult) error {
	entry := scenario.ResolveURL(sc.BaseURL, sc.EntryPath)
	r.logger.Info("Opening application", "url", entry)

	navCtx, cancel := context.WithTimeout(ctx, sc.DefaultTimeout)
	err := session.Navigate(navCtx, entry, sc.IdleWindow)
	cancel()
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", entry, err)
	}

	if d := sc.Discovery; d != nil {
		result.Route = r.discoverRoute(ctx, sc, session)
		if !result.Route.Found {
			if err := ctx.Err(); err != nil {
				return err
			}
			return routeNotFound(sc.Elements[d.Marker], result.Route)
		}
		r.logger.Info("Route found", "url", result.Route.URL)
	} else {
		result.Route = models.RouteResult{Found: true, URL: session.URL()}
	}

	for i := range sc.Steps {
		if err := r.runStep(ctx, sc, session, result, i); err != nil {
			return err
		}
	}
	return nil
}

// discoverRoute visits each candidate once, in order, until the marker shows up
func (r *Runner) discoverRoute(ctx context.Context, sc *models.Scenario, session browser.Session) models.RouteResult {
	d := sc.Discovery
	marker := sc.Elements[d.Marker]

	var route models.RouteResult
	for _, candidate := range d.Candidates {
		if ctx.Err() != nil {
			break
		}

		url := scenario.ResolveURL(sc.BaseURL, candidate)
		start := time.Now()
		err := r.probeRoute(ctx, sc, session, url, marker, d.Timeout)

		attempt := models.RouteAttempt{
			URL:      url,
			Found:    err == nil,
			Duration: time.Since(start).Milliseconds(),
		}
		if err != nil {
			attempt.ErrorMessage = err.Error()
			r.logger.Warn("Route candidate rejected", "url", url, "marker", marker.String(), "error", err)
		}
		route.Attempts = append(route.Attempts, attempt)

		if attempt.Found {
			route.Found = true
			route.URL = url
			return route
		}
	}
	return route
}

func (r *Runner) probeRoute(ctx context.Context, sc *models.Scenario, session browser.Session, url string, marker models.Locator, wait time.Duration) error {
	navCtx, cancel := context.WithTimeout(ctx, sc.DefaultTimeout)
	defer cancel()
	if err := session.Navigate(navCtx, url, sc.IdleWindow); err != nil {
		return err
	}

	waitCtx, cancelWait := context.WithTimeout(ctx, wait)
	defer cancelWait()
	return session.WaitVisible(waitCtx, marker)
}

func (r *Runner) runStep(ctx context.Context, sc *models.Scenario, session browser.Session, result *models.RunResult, i int) error {
	step := sc.Steps[i]
	sr := &result.Steps[i]

	timeout := step.Timeout
	if timeout <= 0 {
		timeout = sc.DefaultTimeout
	}
	if timeout <= 0 {
		timeout = scenario.DefaultStepTimeout
	}

	var loc *models.Locator
	if step.Type.NeedsTarget() {
		l := sc.Elements[step.Target]
		loc = &l
	}

	r.logger.Info("Executing step", "sequence", sr.Sequence, "name", step.Name, "type", step.Type, "target", step.Target)

	startTime := time.Now()
	sr.ExecutedAt = &startTime
	sr.Status = models.StatusRunning
	r.notify(*sr)

	stepCtx, cancel := context.WithTimeout(ctx, timeout)
	err := r.perform(stepCtx, sc, session, step, loc, result)
	cancel()

	sr.Duration = time.Since(startTime).Milliseconds()
	if err != nil {
		sr.Status = models.StatusFailed
		sr.ErrorMessage = err.Error()
		r.notify(*sr)
		return &StepError{Step: step.Name, Type: step.Type, Locator: loc, Err: err}
	}

	sr.Status = models.StatusSuccess
	r.notify(*sr)
	return nil
}

func (r *Runner) perform(ctx context.Context, sc *models.Scenario, session browser.Session, step models.Step, loc *models.Locator, result *models.RunResult) error {
	switch step.Type {
	case models.StepNavigate:
		return session.Navigate(ctx, scenario.ResolveURL(sc.BaseURL, step.Path), sc.IdleWindow)

	case models.StepWaitIdle:
		return session.WaitNetworkIdle(ctx, sc.IdleWindow)

	case models.StepWaitFor:
		return session.WaitVisible(ctx, *loc)

	case models.StepClick:
		return session.Click(ctx, *loc)

	case models.StepFill:
		return session.Fill(ctx, *loc, step.Value)

	case models.StepScreenshot:
		path := step.Output
		if r.opts.ScreenshotPath != "" {
			path = r.opts.ScreenshotPath
		}
		data, err := session.Screenshot(ctx, step.FullPage)
		if err != nil {
			return err
		}
		written, err := WriteScreenshot(path, data)
		if err != nil {
			return err
		}
		result.ScreenshotPath = written
		r.logger.Info("Screenshot saved", "path", written, "bytes", len(data))
		return nil

	default:
		return fmt.Errorf("unsupported step type: %s", step.Type)
	}
}

// captureFailure stores a screenshot of the page as it was when the run failed
func (r *Runner) captureFailure(ctx context.Context, session browser.Session, result *models.RunResult) {
	if r.opts.FailureDir == "" {
		return
	}
	defer func() {
		if rec := recover(); rec != nil {
			r.logger.Warn("Failure screenshot panicked", "runID", result.RunID, "panic", rec)
		}
	}()

	// The run context may already be expired.
	captureCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), failureCaptureTimeout)
	defer cancel()

	data, err := session.Screenshot(captureCtx, true)
	if err != nil {
		r.logger.Warn("Failed to capture failure screenshot", "runID", result.RunID, "error", err)
		return
	}
	path, err := WriteScreenshot(filepath.Join(r.opts.FailureDir, result.RunID+"_failure.png"), data)
	if err != nil {
		r.logger.Warn("Failed to save failure screenshot", "runID", result.RunID, "error", err)
		return
	}
	result.FailureScreenshot = path
}

// failRunning closes out a step interrupted without returning, e.g. by a driver panic
func (r *Runner) failRunning(result *models.RunResult, cause error) {
	for i := range result.Steps {
		sr := &result.Steps[i]
		if sr.Status != models.StatusRunning {
			continue
		}
		if sr.ExecutedAt != nil {
			sr.Duration = time.Since(*sr.ExecutedAt).Milliseconds()
		}
		sr.Status = models.StatusFailed
		sr.ErrorMessage = cause.Error()
		r.notify(*sr)
	}
}

func (r *Runner) skipPending(result *models.RunResult, cause error) {
	for i := range result.Steps {
		sr := &result.Steps[i]
		if sr.Status != models.StatusPending {
			continue
		}
		sr.Status = models.StatusSkipped
		sr.ErrorMessage = cause.Error()
		r.notify(*sr)
	}
}

func (r *Runner) notify(sr models.StepResult) {
	if r.opts.OnStep != nil {
		r.opts.OnStep(sr)
	}
}

// WriteScreenshot stores image data at path, creating parent directories and
// replacing any existing file. It returns the absolute path written.
func WriteScreenshot(path string, data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrEmptyScreenshot
	}
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create screenshot dir: %w", err)
		}
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to save screenshot: %w", err)
	}
	if abs, err := filepath.Abs(path); err == nil {
		return abs, nil
	}
	return path, nil
}
