package runner

import (
	"errors"
	"fmt"
	"strings"

	"dev/bravebird/ui-smokecheck/pkg/models"
)

var (
	// ErrRouteNotFound means no candidate route showed the discovery marker
	ErrRouteNotFound = errors.New("route not found")
	// ErrStepFailed wraps the first failing step of a run
	ErrStepFailed = errors.New("step failed")
	// ErrEmptyScreenshot is returned when the driver produced no image data
	ErrEmptyScreenshot = errors.New("screenshot is empty")
)

// StepError describes the step that ended a run
type StepError struct {
	Step    string
	Type    models.StepType
	Locator *models.Locator
	Err     error
}

func (e *StepError) Error() string {
	if e.Locator != nil {
		return fmt.Sprintf("step %q (%s %s) failed: %v", e.Step, e.Type, e.Locator, e.Err)
	}
	return fmt.Sprintf("step %q (%s) failed: %v", e.Step, e.Type, e.Err)
}

// Unwrap exposes both ErrStepFailed and the driver error
func (e *StepError) Unwrap() []error {
	return []error{ErrStepFailed, e.Err}
}

func routeNotFound(marker models.Locator, route models.RouteResult) error {
	urls := make([]string, 0, len(route.Attempts))
	for _, a := range route.Attempts {
		urls = append(urls, a.URL)
	}
	return fmt.Errorf("%w: %s not visible on any of [%s]", ErrRouteNotFound, marker, strings.Join(urls, ", "))
}
