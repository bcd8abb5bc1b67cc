package browser

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/playwright-community/playwright-go"

	"dev/bravebird/ui-smokecheck/pkg/models"
)

// PlaywrightDriver drives Chromium through the Playwright driver process
type PlaywrightDriver struct{}

// NewPlaywrightDriver creates a playwright driver
func NewPlaywrightDriver() *PlaywrightDriver {
	return &PlaywrightDriver{}
}

// Name returns the driver name
func (d *PlaywrightDriver) Name() string {
	return DriverPlaywright
}

// Launch starts Playwright, a Chromium instance and one browsing context with the viewport applied
func (d *PlaywrightDriver) Launch(ctx context.Context, opts LaunchOptions) (Session, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.Install {
		if err := playwright.Install(&playwright.RunOptions{Browsers: []string{"chromium"}}); err != nil {
			return nil, fmt.Errorf("could not install playwright browsers: %w", err)
		}
	}

	pw, err := playwright.Run()
	if err != nil {
		return nil, fmt.Errorf("could not start playwright: %w", err)
	}
	s := &playwrightSession{pw: pw}

	launchOpts := playwright.BrowserTypeLaunchOptions{
		Headless: playwright.Bool(opts.Headless),
	}
	if opts.Bin != "" {
		launchOpts.ExecutablePath = playwright.String(opts.Bin)
	}
	s.browser, err = pw.Chromium.Launch(launchOpts)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not launch browser: %w", err)
	}

	contextOpts := playwright.BrowserNewContextOptions{}
	if opts.Viewport.Width > 0 && opts.Viewport.Height > 0 {
		contextOpts.Viewport = &playwright.Size{
			Width:  opts.Viewport.Width,
			Height: opts.Viewport.Height,
		}
		contextOpts.IsMobile = playwright.Bool(opts.Viewport.Mobile)
		contextOpts.HasTouch = playwright.Bool(opts.Viewport.Mobile)
	}
	s.context, err = s.browser.NewContext(contextOpts)
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not create context: %w", err)
	}

	s.page, err = s.context.NewPage()
	if err != nil {
		s.Close()
		return nil, fmt.Errorf("could not create page: %w", err)
	}

	return s, nil
}

type playwrightSession struct {
	pw      *playwright.Playwright
	browser playwright.Browser
	context playwright.BrowserContext
	page    playwright.Page

	closeOnce sync.Once
	closeErr  error
}

// timeoutMS converts the context deadline into Playwright's millisecond timeout; 0 disables it
func timeoutMS(ctx context.Context) *float64 {
	deadline, ok := ctx.Deadline()
	if !ok {
		return playwright.Float(0)
	}
	ms := float64(time.Until(deadline).Milliseconds())
	if ms < 1 {
		ms = 1
	}
	return playwright.Float(ms)
}

func (s *playwrightSession) locator(loc models.Locator) (playwright.Locator, error) {
	switch loc.By {
	case models.ByTitle:
		return s.page.GetByTitle(loc.Value).First(), nil
	case models.ByPlaceholder:
		return s.page.GetByPlaceholder(loc.Value).First(), nil
	case models.ByText:
		return s.page.GetByText(loc.Value).First(), nil
	case models.ByCSS:
		return s.page.Locator(loc.Value).First(), nil
	default:
		return nil, fmt.Errorf("unsupported locator strategy: %s", loc.By)
	}
}

// Navigate loads url. Playwright's network-idle heuristic uses its own fixed quiet window,
// so idle only switches the wait on.
func (s *playwrightSession) Navigate(ctx context.Context, url string, idle time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	_, err := s.page.Goto(url, playwright.PageGotoOptions{
		Timeout:   timeoutMS(ctx),
		WaitUntil: playwright.WaitUntilStateLoad,
	})
	if err != nil {
		return fmt.Errorf("failed to navigate to %s: %w", url, err)
	}
	if idle > 0 {
		return s.WaitNetworkIdle(ctx, idle)
	}
	return nil
}

func (s *playwrightSession) WaitNetworkIdle(ctx context.Context, idle time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	err := s.page.WaitForLoadState(playwright.PageWaitForLoadStateOptions{
		State:   playwright.LoadStateNetworkidle,
		Timeout: timeoutMS(ctx),
	})
	if err != nil {
		return fmt.Errorf("network did not settle: %w", err)
	}
	return nil
}

func (s *playwrightSession) WaitVisible(ctx context.Context, loc models.Locator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l, err := s.locator(loc)
	if err != nil {
		return err
	}
	err = l.WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateVisible,
		Timeout: timeoutMS(ctx),
	})
	if err != nil {
		return fmt.Errorf("element not visible: %s: %w", loc, err)
	}
	return nil
}

func (s *playwrightSession) Click(ctx context.Context, loc models.Locator) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l, err := s.locator(loc)
	if err != nil {
		return err
	}
	if err := l.Click(playwright.LocatorClickOptions{Timeout: timeoutMS(ctx)}); err != nil {
		return fmt.Errorf("failed to click %s: %w", loc, err)
	}
	return nil
}

func (s *playwrightSession) Fill(ctx context.Context, loc models.Locator, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	l, err := s.locator(loc)
	if err != nil {
		return err
	}
	if err := l.Fill(value, playwright.LocatorFillOptions{Timeout: timeoutMS(ctx)}); err != nil {
		return fmt.Errorf("failed to fill %s: %w", loc, err)
	}
	return nil
}

func (s *playwrightSession) Screenshot(ctx context.Context, fullPage bool) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	data, err := s.page.Screenshot(playwright.PageScreenshotOptions{
		FullPage: playwright.Bool(fullPage),
		Timeout:  timeoutMS(ctx),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to take screenshot: %w", err)
	}
	return data, nil
}

func (s *playwrightSession) URL() string {
	if s.page == nil {
		return ""
	}
	return s.page.URL()
}

func (s *playwrightSession) Close() error {
	s.closeOnce.Do(func() {
		var errs []error
		if s.context != nil {
			if err := s.context.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close context: %w", err))
			}
		}
		if s.browser != nil {
			if err := s.browser.Close(); err != nil {
				errs = append(errs, fmt.Errorf("failed to close browser: %w", err))
			}
		}
		if s.pw != nil {
			if err := s.pw.Stop(); err != nil {
				errs = append(errs, fmt.Errorf("failed to stop playwright: %w", err))
			}
		}
		s.closeErr = errors.Join(errs...)
	})
	return s.closeErr
}
