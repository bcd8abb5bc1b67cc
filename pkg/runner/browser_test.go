package runner

import (
	"context"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-rod/rod/lib/launcher"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dev/bravebird/ui-smokecheck/pkg/browser"
	"dev/bravebird/ui-smokecheck/pkg/fixture"
	"dev/bravebird/ui-smokecheck/pkg/models"
	"dev/bravebird/ui-smokecheck/pkg/scenario"
)

// Runs the built-in scenario end to end against the fixture app with a real Chrome.
func TestDefaultScenarioInBrowser(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping browser test in short mode")
	}
	bin := os.Getenv("CHROME_BIN")
	if bin == "" {
		found, ok := launcher.LookPath()
		if !ok {
			t.Skip("no local Chrome found")
		}
		bin = found
	}

	tests := []struct {
		name      string
		foodsPath string
		wantFound bool
	}{
		{"primary route", "/foods", true},
		{"fallback route", "/settings", true},
		{"no route", "/alimentos", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			app, err := fixture.New(fixture.Options{FoodsPath: tt.foodsPath})
			require.NoError(t, err)
			srv := httptest.NewServer(app)
			defer srv.Close()

			out := filepath.Join(t.TempDir(), "verification", "recipe_portions_ui.png")
			r := New(Options{
				Driver:         browser.NewRodDriver(),
				Headless:       true,
				Bin:            bin,
				ScreenshotPath: out,
			})

			ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
			defer cancel()

			result, err := r.Run(ctx, scenario.WithBaseURL(scenario.Default(), srv.URL))
			if !tt.wantFound {
				require.ErrorIs(t, err, ErrRouteNotFound)
				assert.Len(t, result.Route.Attempts, 2)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, models.StatusSuccess, result.Status)
			assert.Equal(t, srv.URL+tt.foodsPath, result.Route.URL)

			info, err := os.Stat(out)
			require.NoError(t, err)
			assert.Greater(t, info.Size(), int64(0))
		})
	}
}
