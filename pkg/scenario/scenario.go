// Package scenario loads and validates declarative smoke-check scenarios.
package scenario

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"dev/bravebird/ui-smokecheck/pkg/models"
)

const (
	DefaultEntryPath        = "/"
	DefaultStepTimeout      = 30 * time.Second
	DefaultIdleWindow       = 500 * time.Millisecond
	DefaultDiscoveryTimeout = 2 * time.Second
)

// DefaultViewport emulates a phone, the target app being a PWA
var DefaultViewport = models.Viewport{Width: 375, Height: 812, Mobile: true}

// ErrInvalid is returned when a scenario fails validation
var ErrInvalid = errors.New("invalid scenario")

//go:embed recipe_portions.yaml
var recipePortionsYAML []byte

// DefaultName is the name of the built-in scenario
const DefaultName = "recipe-portions"

// DefaultYAML returns the source of the built-in scenario
func DefaultYAML() []byte {
	return bytes.Clone(recipePortionsYAML)
}

// Default returns the built-in recipe scenario
func Default() *models.Scenario {
	sc, err := Parse(recipePortionsYAML)
	if err != nil {
		panic(fmt.Sprintf("built-in scenario is broken: %v", err))
	}
	return sc
}

// LoadFile reads, parses and validates a scenario file
func LoadFile(path string) (*models.Scenario, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read scenario: %w", err)
	}
	sc, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return sc, nil
}

// Parse decodes YAML, applies defaults and validates the result.
// Unknown fields are rejected.
func Parse(data []byte) (*models.Scenario, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var sc models.Scenario
	if err := dec.Decode(&sc); err != nil {
		return nil, fmt.Errorf("failed to parse scenario: %w", err)
	}

	ApplyDefaults(&sc)
	if err := Validate(&sc); err != nil {
		return nil, err
	}
	return &sc, nil
}

// ApplyDefaults fills zero-valued settings
func ApplyDefaults(sc *models.Scenario) {
	if sc.EntryPath == "" {
		sc.EntryPath = DefaultEntryPath
	}
	if sc.Viewport.Width == 0 && sc.Viewport.Height == 0 {
		sc.Viewport = DefaultViewport
	}
	if sc.DefaultTimeout <= 0 {
		sc.DefaultTimeout = DefaultStepTimeout
	}
	if sc.IdleWindow <= 0 {
		sc.IdleWindow = DefaultIdleWindow
	}
	if sc.Discovery != nil && sc.Discovery.Timeout <= 0 {
		sc.Discovery.Timeout = DefaultDiscoveryTimeout
	}
}

// Validate checks the scenario is runnable. Every problem is reported, not just the first.
func Validate(sc *models.Scenario) error {
	var errs []error
	addf := func(format string, args ...interface{}) {
		errs = append(errs, fmt.Errorf(format, args...))
	}

	if sc.Name == "" {
		addf("name is required")
	}
	if sc.BaseURL == "" {
		addf("base_url is required")
	} else if u, err := url.Parse(sc.BaseURL); err != nil || u.Scheme == "" || u.Host == "" {
		addf("base_url %q is not an absolute URL", sc.BaseURL)
	}
	if sc.Viewport.Width <= 0 || sc.Viewport.Height <= 0 {
		addf("viewport must have a positive width and height")
	}

	for name, loc := range sc.Elements {
		if !loc.By.Valid() {
			addf("element %q: unknown locator strategy %q", name, loc.By)
		}
		if strings.TrimSpace(loc.Value) == "" {
			addf("element %q: locator value is empty", name)
		}
	}

	if d := sc.Discovery; d != nil {
		if len(d.Candidates) == 0 {
			addf("discovery: at least one candidate route is required")
		}
		if _, ok := sc.Elements[d.Marker]; !ok {
			addf("discovery: marker %q is not a declared element", d.Marker)
		}
	}

	if len(sc.Steps) == 0 {
		addf("at least one step is required")
	}
	seen := make(map[string]int, len(sc.Steps))
	for i, step := range sc.Steps {
		label := fmt.Sprintf("step %d", i+1)
		if step.Name != "" {
			label = fmt.Sprintf("step %d (%s)", i+1, step.Name)
			if _, dup := seen[step.Name]; dup {
				addf("%s: duplicate step name", label)
			}
		}

		if !step.Type.Valid() {
			addf("%s: unknown step type %q", label, step.Type)
		}
		if step.Type.NeedsTarget() {
			if _, ok := sc.Elements[step.Target]; !ok {
				addf("%s: target %q is not a declared element", label, step.Target)
			}
		}
		switch step.Type {
		case models.StepFill:
			if step.Value == "" {
				addf("%s: fill requires a value", label)
			}
		case models.StepNavigate:
			if step.Path == "" {
				addf("%s: navigate requires a path", label)
			}
		case models.StepScreenshot:
			if step.Output == "" {
				addf("%s: screenshot requires an output path", label)
			}
		}
		if step.After != "" {
			if _, ok := seen[step.After]; !ok {
				addf("%s: must run after %q, which is not an earlier step", label, step.After)
			}
		}

		if step.Name != "" {
			seen[step.Name] = i
		}
	}

	if len(errs) > 0 {
		name := sc.Name
		if name == "" {
			name = "<unnamed>"
		}
		return fmt.Errorf("%w %s: %w", ErrInvalid, name, errors.Join(errs...))
	}
	return nil
}

// WithBaseURL returns a copy of the scenario pointed at another deployment
func WithBaseURL(sc *models.Scenario, baseURL string) *models.Scenario {
	cp := *sc
	if baseURL != "" {
		cp.BaseURL = baseURL
	}
	return &cp
}

// ResolveURL joins a route path onto the base URL. Absolute URLs are returned unchanged.
func ResolveURL(baseURL, path string) string {
	if u, err := url.Parse(path); err == nil && u.IsAbs() {
		return path
	}
	return strings.TrimRight(baseURL, "/") + "/" + strings.TrimLeft(path, "/")
}

// Marshal encodes a scenario back to YAML
func Marshal(sc *models.Scenario) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(sc); err != nil {
		return nil, fmt.Errorf("failed to encode scenario: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode scenario: %w", err)
	}
	return buf.Bytes(), nil
}
