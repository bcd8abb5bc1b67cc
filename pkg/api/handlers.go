package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.temporal.io/sdk/client"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/log"

	"dev/bravebird/ui-smokecheck/pkg/browser"
	"dev/bravebird/ui-smokecheck/pkg/models"
	"dev/bravebird/ui-smokecheck/pkg/scenario"
	"dev/bravebird/ui-smokecheck/pkg/temporal/workflows"
)

// RunStore is the part of the run database the API needs
type RunStore interface {
	CreateRun(ctx context.Context, run *models.RunRecord) error
	SetTemporalIDs(ctx context.Context, id, workflowID, runID string) error
	UpdateRunStatus(ctx context.Context, id string, status models.RunStatus, errorMsg string) error
	GetRun(ctx context.Context, id string) (*models.RunRecord, error)
	ListRuns(ctx context.Context, scenario string, limit int) ([]models.RunRecord, error)
	GetStepResults(ctx context.Context, runID string) ([]models.StepResult, error)
}

// WorkflowClient is the part of client.Client the API needs
type WorkflowClient interface {
	ExecuteWorkflow(ctx context.Context, options client.StartWorkflowOptions, workflow interface{}, args ...interface{}) (client.WorkflowRun, error)
	CancelWorkflow(ctx context.Context, workflowID string, runID string) error
	QueryWorkflow(ctx context.Context, workflowID string, runID string, queryType string, args ...interface{}) (converter.EncodedValue, error)
}

// Settings holds run defaults applied to requests that leave them out
type Settings struct {
	ScreenshotDir string
	BaseURL       string
	Driver        string
	Headless      bool
	RunTimeout    time.Duration
	// PollInterval paces the run stream; defaults to 500ms
	PollInterval time.Duration
	Logger       log.Logger
}

// Handlers contains API handlers
type Handlers struct {
	store          RunStore
	temporalClient WorkflowClient
	catalog        scenario.Catalog
	settings       Settings
	logger         log.Logger
	upgrader       websocket.Upgrader
}

// NewHandlers creates new API handlers. store and temporalClient may be nil.
func NewHandlers(store RunStore, temporalClient WorkflowClient, catalog scenario.Catalog, settings Settings) *Handlers {
	if settings.PollInterval <= 0 {
		settings.PollInterval = 500 * time.Millisecond
	}
	if settings.RunTimeout <= 0 {
		settings.RunTimeout = workflows.DefaultRunTimeout
	}
	logger := settings.Logger
	if logger == nil {
		logger = log.NewStructuredLogger(slog.Default())
	}
	return &Handlers{
		store:          store,
		temporalClient: temporalClient,
		catalog:        catalog,
		settings:       settings,
		logger:         logger,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// NewRouter wires the handlers under /health and /api
func NewRouter(h *Handlers) *mux.Router {
	router := mux.NewRouter()
	router.HandleFunc("/health", h.Health).Methods("GET")

	apiRouter := router.PathPrefix("/api").Subrouter()

	// Scenarios
	apiRouter.HandleFunc("/scenarios", h.ListScenarios).Methods("GET")
	apiRouter.HandleFunc("/scenarios/{name}", h.GetScenario).Methods("GET")

	// Runs
	apiRouter.HandleFunc("/runs", h.ExecuteRun).Methods("POST")
	apiRouter.HandleFunc("/runs", h.ListRuns).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}", h.GetRun).Methods("GET")
	apiRouter.HandleFunc("/runs/{id}/cancel", h.CancelRun).Methods("POST")

	// WebSocket for real-time updates
	apiRouter.HandleFunc("/runs/{id}/stream", h.StreamRunUpdates).Methods("GET")

	// Screenshots
	apiRouter.HandleFunc("/screenshots/{filename}", h.ServeScreenshot).Methods("GET")

	return router
}

// Health reports which backends are wired
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	respondJSON(w, map[string]interface{}{
		"status":   "ok",
		"database": h.store != nil,
		"temporal": h.temporalClient != nil,
	})
}

// ==================== Scenario Handlers ====================

// ScenarioSummary describes a runnable scenario
type ScenarioSummary struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	BaseURL     string `json:"base_url"`
	Steps       int    `json:"steps"`
	Error       string `json:"error,omitempty"`
}

// ListScenarios lists built-in and file-based scenarios. Files that fail
// validation are listed with their error.
func (h *Handlers) ListScenarios(w http.ResponseWriter, r *http.Request) {
	names, err := h.catalog.List()
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	summaries := make([]ScenarioSummary, 0, len(names))
	for _, name := range names {
		sc, err := h.catalog.Load(name)
		if err != nil {
			summaries = append(summaries, ScenarioSummary{Name: name, Error: err.Error()})
			continue
		}
		summaries = append(summaries, ScenarioSummary{
			Name:        name,
			Description: sc.Description,
			BaseURL:     sc.BaseURL,
			Steps:       len(sc.Steps),
		})
	}

	respondJSON(w, summaries)
}

// GetScenario returns a scenario definition
func (h *Handlers) GetScenario(w http.ResponseWriter, r *http.Request) {
	name := mux.Vars(r)["name"]

	sc, err := h.catalog.Load(name)
	if errors.Is(err, scenario.ErrNotFound) {
		http.Error(w, "Scenario not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	respondJSON(w, sc)
}

// ==================== Run Handlers ====================

// ExecuteRun starts a smoke-check workflow
func (h *Handlers) ExecuteRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	var req models.ExecuteRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}

	if h.temporalClient == nil {
		http.Error(w, "Temporal not available", http.StatusServiceUnavailable)
		return
	}

	if req.Scenario == "" {
		req.Scenario = scenario.DefaultName
	}
	sc, err := h.catalog.Load(req.Scenario)
	if errors.Is(err, scenario.ErrNotFound) {
		http.Error(w, "Scenario not found", http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, "Invalid scenario: "+err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if req.Driver == "" {
		req.Driver = h.settings.Driver
	}
	if _, err := browser.NewDriver(req.Driver); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	if req.BaseURL == "" {
		req.BaseURL = h.settings.BaseURL
	}
	headless := h.settings.Headless
	if req.Headless != nil {
		headless = *req.Headless
	}

	runID := uuid.New().String()
	now := time.Now()

	if h.store != nil {
		run := &models.RunRecord{
			ID:        runID,
			Scenario:  req.Scenario,
			Driver:    req.Driver,
			BaseURL:   scenario.WithBaseURL(sc, req.BaseURL).BaseURL,
			Status:    models.StatusPending,
			StartedAt: &now,
		}
		if err := h.store.CreateRun(ctx, run); err != nil {
			http.Error(w, "Failed to create run: "+err.Error(), http.StatusInternalServerError)
			return
		}
	}

	input := models.RunRequest{
		RunID:          runID,
		Scenario:       req.Scenario,
		BaseURL:        req.BaseURL,
		Driver:         req.Driver,
		Headless:       headless,
		TimeoutSeconds: int(h.settings.RunTimeout / time.Second),
	}

	workflowOptions := client.StartWorkflowOptions{
		ID:        workflows.WorkflowID(runID),
		TaskQueue: workflows.TaskQueue,
	}

	we, err := h.temporalClient.ExecuteWorkflow(ctx, workflowOptions, workflows.SmokeCheckWorkflow, input)
	if err != nil {
		if h.store != nil {
			if uerr := h.store.UpdateRunStatus(ctx, runID, models.StatusFailed, err.Error()); uerr != nil {
				h.logger.Warn("Failed to mark run failed", "runID", runID, "error", uerr)
			}
		}
		http.Error(w, "Failed to start workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}

	// Update run with Temporal IDs
	if h.store != nil {
		if err := h.store.SetTemporalIDs(ctx, runID, we.GetID(), we.GetRunID()); err != nil {
			h.logger.Warn("Failed to store Temporal IDs", "runID", runID, "error", err)
		}
	}

	respondJSONStatus(w, http.StatusAccepted, map[string]interface{}{
		"run_id":               runID,
		"scenario":             req.Scenario,
		"temporal_workflow_id": we.GetID(),
		"temporal_run_id":      we.GetRunID(),
		"status":               models.StatusRunning,
	})
}

// ListRuns lists recent runs, optionally filtered by scenario
func (h *Handlers) ListRuns(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	query := r.URL.Query()

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	limit := 0
	if s := query.Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 0 {
			http.Error(w, "Invalid limit", http.StatusBadRequest)
			return
		}
		limit = n
	}

	runs, err := h.store.ListRuns(ctx, query.Get("scenario"), limit)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if runs == nil {
		runs = []models.RunRecord{}
	}

	respondJSON(w, runs)
}

// GetRun retrieves a run with its step results
func (h *Handlers) GetRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if h.store == nil {
		http.Error(w, "Database not available", http.StatusServiceUnavailable)
		return
	}

	run, err := h.store.GetRun(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if run == nil {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	steps, err := h.store.GetStepResults(ctx, id)
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	run.Steps = steps

	respondJSON(w, run)
}

// CancelRun cancels a running smoke check
func (h *Handlers) CancelRun(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	id := mux.Vars(r)["id"]

	if h.temporalClient == nil {
		http.Error(w, "Temporal not available", http.StatusServiceUnavailable)
		return
	}

	workflowID, temporalRunID := workflows.WorkflowID(id), ""
	if h.store != nil {
		run, err := h.store.GetRun(ctx, id)
		if err != nil || run == nil {
			http.Error(w, "Run not found", http.StatusNotFound)
			return
		}
		if run.Status.Terminal() {
			http.Error(w, "Run already finished", http.StatusConflict)
			return
		}
		if run.TemporalWorkflowID != "" {
			workflowID, temporalRunID = run.TemporalWorkflowID, run.TemporalRunID
		}
	}

	if err := h.temporalClient.CancelWorkflow(ctx, workflowID, temporalRunID); err != nil {
		http.Error(w, "Failed to cancel workflow: "+err.Error(), http.StatusInternalServerError)
		return
	}

	if h.store != nil {
		if err := h.store.UpdateRunStatus(ctx, id, models.StatusCanceled, "Cancelled by user"); err != nil {
			h.logger.Warn("Failed to mark run canceled", "runID", id, "error", err)
		}
	}

	respondJSON(w, map[string]string{"status": string(models.StatusCanceled)})
}

// runSnapshot is the latest known state of a run
type runSnapshot struct {
	Status         models.RunStatus    `json:"status"`
	Route          *models.RouteResult `json:"route,omitempty"`
	Steps          []models.StepResult `json:"steps"`
	ScreenshotPath string              `json:"screenshot_path,omitempty"`
	ErrorMessage   string              `json:"error_message,omitempty"`
}

// progressKey changes whenever the status of the run or of any step changes
func (s runSnapshot) progressKey() string {
	var b strings.Builder
	b.WriteString(string(s.Status))
	for _, st := range s.Steps {
		b.WriteByte('/')
		b.WriteString(string(st.Status))
	}
	return b.String()
}

func (h *Handlers) snapshot(ctx context.Context, runID string) (runSnapshot, bool) {
	// Query the workflow for real-time progress
	if h.temporalClient != nil {
		value, err := h.temporalClient.QueryWorkflow(ctx, workflows.WorkflowID(runID), "", workflows.ProgressQuery)
		if err == nil {
			var result models.RunResult
			if value.Get(&result) == nil && result.Status != "" {
				return runSnapshot{
					Status:         result.Status,
					Route:          &result.Route,
					Steps:          result.Steps,
					ScreenshotPath: result.ScreenshotPath,
					ErrorMessage:   result.ErrorMessage,
				}, true
			}
		}
	}

	// Fall back to DB if the Temporal query didn't work
	if h.store != nil {
		run, err := h.store.GetRun(ctx, runID)
		if err != nil || run == nil {
			return runSnapshot{}, false
		}
		steps, _ := h.store.GetStepResults(ctx, runID)
		return runSnapshot{
			Status:         run.Status,
			Steps:          steps,
			ScreenshotPath: run.ScreenshotPath,
			ErrorMessage:   run.ErrorMessage,
		}, true
	}

	return runSnapshot{}, false
}

// StreamRunUpdates streams run updates via WebSocket until the run is terminal
// or the client goes away
func (h *Handlers) StreamRunUpdates(w http.ResponseWriter, r *http.Request) {
	runID := mux.Vars(r)["id"]

	if _, ok := h.snapshot(r.Context(), runID); !ok {
		http.Error(w, "Run not found", http.StatusNotFound)
		return
	}

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()

	// Hijacked connections don't cancel the request context; a failed read does
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(h.settings.PollInterval)
	defer ticker.Stop()

	lastKey := ""

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			snap, ok := h.snapshot(ctx, runID)
			if !ok {
				continue
			}

			// Send update if status or results changed
			key := snap.progressKey()
			if key == lastKey {
				continue
			}
			msg := models.WSMessage{
				Type: "run_update",
				Payload: map[string]interface{}{
					"run_id":          runID,
					"status":          snap.Status,
					"route":           snap.Route,
					"steps":           snap.Steps,
					"screenshot_path": snap.ScreenshotPath,
					"error_message":   snap.ErrorMessage,
				},
			}
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteJSON(msg); err != nil {
				return
			}
			lastKey = key

			// Close if completed
			if snap.Status.Terminal() {
				conn.WriteMessage(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, string(snap.Status)))
				return
			}
		}
	}
}

// ==================== Screenshot Handlers ====================

// ServeScreenshot serves a screenshot file
func (h *Handlers) ServeScreenshot(w http.ResponseWriter, r *http.Request) {
	filename := mux.Vars(r)["filename"]

	// Only files directly inside the screenshot directory
	filePath := filepath.Join(h.settings.ScreenshotDir, filepath.Base(filename))
	if filepath.Ext(filePath) != ".png" {
		http.Error(w, "Screenshot not found", http.StatusNotFound)
		return
	}

	info, err := os.Stat(filePath)
	if err != nil || info.IsDir() {
		http.Error(w, "Screenshot not found", http.StatusNotFound)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("Cache-Control", "public, max-age=3600")
	http.ServeFile(w, r, filePath)
}

// ==================== Helpers ====================

func respondJSON(w http.ResponseWriter, data interface{}) {
	respondJSONStatus(w, http.StatusOK, data)
}

func respondJSONStatus(w http.ResponseWriter, code int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(data)
}
