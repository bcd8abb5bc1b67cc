// Package browser hides the automation library behind a small session API.
package browser

import (
	"context"
	"fmt"
	"time"

	"dev/bravebird/ui-smokecheck/pkg/models"
)

// Driver names
const (
	DriverRod        = "rod"
	DriverPlaywright = "playwright"
)

// LaunchOptions configures the browser process and its browsing context
type LaunchOptions struct {
	Headless bool
	Bin      string // browser executable; empty means the driver's default lookup
	Viewport models.Viewport
	// Install lets drivers that manage their own browsers download them first
	Install bool
}

// Driver launches browser sessions
type Driver interface {
	Name() string
	Launch(ctx context.Context, opts LaunchOptions) (Session, error)
}

// Session is one browser process with one browsing context and one page.
// Element operations block until the element is usable or ctx is done.
type Session interface {
	// Navigate loads url and, when idle > 0, waits until no request was in flight for idle
	Navigate(ctx context.Context, url string, idle time.Duration) error
	WaitNetworkIdle(ctx context.Context, idle time.Duration) error
	WaitVisible(ctx context.Context, loc models.Locator) error
	Click(ctx context.Context, loc models.Locator) error
	// Fill replaces the element's current text with value
	Fill(ctx context.Context, loc models.Locator, value string) error
	Screenshot(ctx context.Context, fullPage bool) ([]byte, error)
	URL() string
	Close() error
}

// NewDriver returns the driver registered under name. An empty name selects rod.
func NewDriver(name string) (Driver, error) {
	switch name {
	case "", DriverRod:
		return NewRodDriver(), nil
	case DriverPlaywright:
		return NewPlaywrightDriver(), nil
	default:
		return nil, fmt.Errorf("unknown browser driver: %s", name)
	}
}

// Names lists the supported drivers
func Names() []string {
	return []string{DriverRod, DriverPlaywright}
}
