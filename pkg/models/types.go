package models

import (
	"fmt"
	"time"
)

// ==================== Locator Types ====================

// LocatorStrategy is the way a UI element is found on the page
type LocatorStrategy string

const (
	ByTitle       LocatorStrategy = "title"       // title attribute, exact
	ByPlaceholder LocatorStrategy = "placeholder" // placeholder attribute, exact
	ByText        LocatorStrategy = "text"        // visible text, case-insensitive substring, innermost element
	ByCSS         LocatorStrategy = "css"         // CSS selector, first match
)

// Valid reports whether the strategy is one the drivers understand
func (s LocatorStrategy) Valid() bool {
	switch s {
	case ByTitle, ByPlaceholder, ByText, ByCSS:
		return true
	}
	return false
}

// Locator is a query used to find a UI element
type Locator struct {
	By    LocatorStrategy `json:"by" yaml:"by"`
	Value string          `json:"value" yaml:"value"`
}

func (l Locator) String() string {
	return fmt.Sprintf("%s=%q", l.By, l.Value)
}

// ==================== Scenario Types ====================

// StepType represents the kind of browser action a step performs
type StepType string

const (
	StepNavigate   StepType = "navigate"   // Navigate to a path relative to the base URL
	StepWaitIdle   StepType = "wait_idle"  // Wait for network quiescence
	StepWaitFor    StepType = "wait_for"   // Wait for an element to be visible
	StepClick      StepType = "click"      // Click an element
	StepFill       StepType = "fill"       // Replace the text of an input
	StepScreenshot StepType = "screenshot" // Capture the page to a file
)

// NeedsTarget reports whether steps of this type act on an element
func (t StepType) NeedsTarget() bool {
	switch t {
	case StepWaitFor, StepClick, StepFill:
		return true
	}
	return false
}

// Valid reports whether the step type is known
func (t StepType) Valid() bool {
	switch t {
	case StepNavigate, StepWaitIdle, StepWaitFor, StepClick, StepFill, StepScreenshot:
		return true
	}
	return false
}

// Step is one action of a scenario
type Step struct {
	Name     string        `json:"name" yaml:"name"`
	Type     StepType      `json:"type" yaml:"type"`
	Target   string        `json:"target,omitempty" yaml:"target,omitempty"` // key into Scenario.Elements
	Path     string        `json:"path,omitempty" yaml:"path,omitempty"`
	Value    string        `json:"value,omitempty" yaml:"value,omitempty"`
	Output   string        `json:"output,omitempty" yaml:"output,omitempty"`
	FullPage bool          `json:"full_page,omitempty" yaml:"full_page,omitempty"`
	Timeout  time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
	After    string        `json:"after,omitempty" yaml:"after,omitempty"` // step that must run earlier
}

// Viewport is the fixed browsing context size
type Viewport struct {
	Width  int  `json:"width" yaml:"width"`
	Height int  `json:"height" yaml:"height"`
	Mobile bool `json:"mobile" yaml:"mobile"`
}

// RouteDiscovery lists the routes that may host the page under test and the
// element that proves the right one was reached
type RouteDiscovery struct {
	Candidates []string      `json:"candidates" yaml:"candidates"`
	Marker     string        `json:"marker" yaml:"marker"`
	Timeout    time.Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// Scenario is a declarative smoke check
type Scenario struct {
	Name           string             `json:"name" yaml:"name"`
	Description    string             `json:"description,omitempty" yaml:"description,omitempty"`
	BaseURL        string             `json:"base_url" yaml:"base_url"`
	EntryPath      string             `json:"entry_path,omitempty" yaml:"entry_path,omitempty"`
	Viewport       Viewport           `json:"viewport" yaml:"viewport"`
	DefaultTimeout time.Duration      `json:"default_timeout,omitempty" yaml:"default_timeout,omitempty"`
	IdleWindow     time.Duration      `json:"idle_window,omitempty" yaml:"idle_window,omitempty"`
	Elements       map[string]Locator `json:"elements" yaml:"elements"`
	Discovery      *RouteDiscovery    `json:"discovery,omitempty" yaml:"discovery,omitempty"`
	Steps          []Step             `json:"steps" yaml:"steps"`
}

// ==================== Run Types ====================

// RunStatus represents the status of a run or a step
type RunStatus string

const (
	StatusPending  RunStatus = "pending"
	StatusRunning  RunStatus = "running"
	StatusSuccess  RunStatus = "success"
	StatusFailed   RunStatus = "failed"
	StatusCanceled RunStatus = "canceled"
	StatusSkipped  RunStatus = "skipped"
)

// Terminal reports whether no further updates are expected
func (s RunStatus) Terminal() bool {
	return s == StatusSuccess || s == StatusFailed || s == StatusCanceled
}

// RunRequest asks a worker to execute a scenario
type RunRequest struct {
	RunID          string `json:"run_id"`
	Scenario       string `json:"scenario"`
	BaseURL        string `json:"base_url,omitempty"`
	Driver         string `json:"driver,omitempty"`
	Headless       bool   `json:"headless"`
	TimeoutSeconds int    `json:"timeout_seconds,omitempty"`
}

// RouteAttempt is one probe of a candidate route
type RouteAttempt struct {
	URL          string `json:"url"`
	Found        bool   `json:"found"`
	ErrorMessage string `json:"error_message,omitempty"`
	Duration     int64  `json:"duration_ms"`
}

// RouteResult is the checked outcome of route discovery
type RouteResult struct {
	Found    bool           `json:"found"`
	URL      string         `json:"url,omitempty"`
	Attempts []RouteAttempt `json:"attempts,omitempty"`
}

// StepResult represents the result of executing a single step
type StepResult struct {
	RunID        string     `json:"run_id,omitempty" db:"run_id"`
	Sequence     int        `json:"sequence" db:"seq"`
	Name         string     `json:"name" db:"name"`
	Type         StepType   `json:"type" db:"step_type"`
	Target       string     `json:"target,omitempty" db:"target"`
	Status       RunStatus  `json:"status" db:"status"`
	ErrorMessage string     `json:"error_message,omitempty" db:"error_message"`
	Duration     int64      `json:"duration_ms" db:"duration_ms"`
	ExecutedAt   *time.Time `json:"executed_at,omitempty" db:"executed_at"`
}

// RunResult represents the outcome of one scenario run
type RunResult struct {
	RunID             string       `json:"run_id"`
	Scenario          string       `json:"scenario"`
	Driver            string       `json:"driver"`
	Status            RunStatus    `json:"status"`
	Route             RouteResult  `json:"route"`
	Steps             []StepResult `json:"steps"`
	ScreenshotPath    string       `json:"screenshot_path,omitempty"`
	FailureScreenshot string       `json:"failure_screenshot,omitempty"`
	TotalDuration     int64        `json:"total_duration_ms"`
	ErrorMessage      string       `json:"error_message,omitempty"`
	StartedAt         time.Time    `json:"started_at"`
	CompletedAt       time.Time    `json:"completed_at"`
}

// RunRecord is a stored run
type RunRecord struct {
	ID                 string     `json:"id" db:"id"`
	Scenario           string     `json:"scenario" db:"scenario"`
	Driver             string     `json:"driver" db:"driver"`
	BaseURL            string     `json:"base_url" db:"base_url"`
	TemporalWorkflowID string     `json:"temporal_workflow_id" db:"temporal_workflow_id"`
	TemporalRunID      string     `json:"temporal_run_id" db:"temporal_run_id"`
	Status             RunStatus  `json:"status" db:"status"`
	RouteURL           string     `json:"route_url,omitempty" db:"route_url"`
	ScreenshotPath     string     `json:"screenshot_path,omitempty" db:"screenshot_path"`
	ErrorMessage       string     `json:"error_message,omitempty" db:"error_message"`
	StartedAt          *time.Time `json:"started_at" db:"started_at"`
	CompletedAt        *time.Time `json:"completed_at" db:"completed_at"`

	// Computed fields
	Steps []StepResult `json:"steps,omitempty"`
}

// ==================== API Request/Response Types ====================

// ExecuteRequest represents a request to start a run
type ExecuteRequest struct {
	Scenario string `json:"scenario"`
	BaseURL  string `json:"base_url"`
	Driver   string `json:"driver"`
	Headless *bool  `json:"headless"`
}

// WSMessage represents a WebSocket message for real-time updates
type WSMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}
