package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"

	"dev/bravebird/ui-smokecheck/pkg/models"
)

// RodDriver drives Chrome over CDP with go-rod
type RodDriver struct{}

// NewRodDriver creates a rod driver
func NewRodDriver() *RodDriver {
	return &RodDriver{}
}

// Name returns the driver name
func (d *RodDriver) Name() string {
	return DriverRod
}

// Launch starts a browser, opens an incognito context and a page sized to the viewport
func (d *RodDriver) Launch(ctx context.Context, opts LaunchOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	l := launcher.New()
	if opts.Bin != "" {
		l = l.Bin(opts.Bin)
	}
	l = l.Headless(opts.Headless)

	// Additional Chrome flags for container compatibility
	l = l.Set("no-sandbox")
	l = l.Set("disable-gpu")
	l = l.Set("disable-dev-shm-usage")

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	s := &rodSession{launcher: l}

	s.browser = rod.New().ControlURL(controlURL)
	if err := s.browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	incognito, err := s.browser.Incognito()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create browser context: %w", err)
	}

	s.page, err = incognito.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("failed to create page: %w", err)
	}

	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		err = s.page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             opts.Viewport.Width,
			Height:            opts.Viewport.Height,
			DeviceScaleFactor: 1,
			Mobile:            opts.Viewport.Mobile,
		})
		if err != nil {
			s.Close()
			return nil, fmt.Errorf("failed to set viewport: %w", err)
		}
	}

	return s, nil
}

type rodSession struct {
	launcher *launcher.Launcher
	browser  *rod.Browser
	page     *rod.Page

	closeOnce sync.Once
	closeErr  error
}

func (s *rodSession) Navigate(ctx context.Context, url string, idle time.Duration) error {
	p := s.page.Context(ctx)

	// Request tracking has to start before the navigation is issued.
	var waitIdle func()
	if idle > 0 {
		waitIdle = p.WaitRequestIdle(idle, nil, nil, nil)
	}

	if err := p.Navigate(url); err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if err := p.WaitLoad(); err != nil {
		return fmt.Errorf("failed waiting for %s to load: %w", url, err)
	}
	if waitIdle != nil {
		waitIdle()
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("network did not settle on %s: %w", url, err)
		}
	}
	return nil
}

func (s *rodSession) WaitNetworkIdle(ctx context.Context, idle time.Duration) error {
	s.page.Context(ctx).WaitRequestIdle(idle, nil, nil, nil)()
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("network did not settle: %w", err)
	}
	return nil
}

// element retries the lookup until it matches or ctx expires
func (s *rodSession) element(ctx context.Context, loc models.Locator) (*rod.Element, error) {
	p := s.page.Context(ctx)

	var (
		el  *rod.Element
		err error
	)
	switch loc.By {
	case models.ByTitle:
		el, err = p.Element(attrSelector("title", loc.Value))
	case models.ByPlaceholder:
		el, err = p.Element(attrSelector("placeholder", loc.Value))
	case models.ByText:
		el, err = p.ElementX(textXPath(loc.Value))
	case models.ByCSS:
		el, err = p.Element(loc.Value)
	default:
		return nil, fmt.Errorf("unsupported locator strategy: %s", loc.By)
	}
	if err != nil {
		return nil, fmt.Errorf("element not found: %s: %w", loc, err)
	}
	return el, nil
}

func (s *rodSession) visibleElement(ctx context.Context, loc models.Locator) (*rod.Element, error) {
	el, err := s.element(ctx, loc)
	if err != nil {
		return nil, err
	}
	if err := el.WaitVisible(); err != nil {
		return nil, fmt.Errorf("element not visible: %s: %w", loc, err)
	}
	return el, nil
}

func (s *rodSession) WaitVisible(ctx context.Context, loc models.Locator) error {
	_, err := s.visibleElement(ctx, loc)
	return err
}

func (s *rodSession) Click(ctx context.Context, loc models.Locator) error {
	el, err := s.visibleElement(ctx, loc)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("failed to click %s: %w", loc, err)
	}
	return nil
}

func (s *rodSession) Fill(ctx context.Context, loc models.Locator, value string) error {
	el, err := s.visibleElement(ctx, loc)
	if err != nil {
		return err
	}
	// Clear existing text and input new value
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("failed to select text of %s: %w", loc, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("failed to fill %s: %w", loc, err)
	}
	return nil
}

func (s *rodSession) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	data, err := s.page.Context(ctx).Screenshot(fullPage, &proto.PageCaptureScreenshot{
		Format: proto.PageCaptureScreenshotFormatPng,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return data, nil
}

func (s *rodSession) URL() string {
	if s.page == nil {
		return ""
	}
	info, err := s.page.Info()
	if err != nil {
		return ""
	}
	return info.URL
}

// Close shuts the browser down and removes its profile directory. Safe to call twice.
func (s *rodSession) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
				// Cleanup waits for the process to exit.
				s.launcher.Kill()
			}
		}
		s.launcher.Cleanup()
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
