package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load("", nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.BaseURL)
	assert.Equal(t, "rod", cfg.Driver)
	assert.Equal(t, "/tmp/screenshots", cfg.ScreenshotDir)
	assert.Equal(t, "default", cfg.TemporalNamespace)
	assert.True(t, cfg.Headless)
	assert.Equal(t, 5*time.Minute, cfg.RunTimeout)
	assert.Equal(t, 2, cfg.MaxConcurrentRuns)
}

func TestLoadEnv(t *testing.T) {
	tests := []struct {
		name  string
		env   map[string]string
		check func(t *testing.T, cfg *Config)
	}{
		{
			name: "prefixed",
			env:  map[string]string{"SMOKECHECK_BASE_URL": "http://staging:5173", "SMOKECHECK_HEADLESS": "false"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "http://staging:5173", cfg.BaseURL)
				assert.False(t, cfg.Headless)
			},
		},
		{
			name: "legacy",
			env:  map[string]string{"MYSQL_DSN": "smoke:smoke@tcp(db:3306)/smoke", "CHROME_BIN": "/usr/bin/chromium"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "smoke:smoke@tcp(db:3306)/smoke", cfg.MySQLDSN)
				assert.True(t, cfg.HasDatabase())
				assert.Equal(t, "/usr/bin/chromium", cfg.ChromeBin)
			},
		},
		{
			name: "prefixed wins over legacy",
			env:  map[string]string{"SMOKECHECK_PORT": "9090", "PORT": "8081"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, "9090", cfg.Port)
			},
		},
		{
			name: "duration",
			env:  map[string]string{"SMOKECHECK_RUN_TIMEOUT": "45s"},
			check: func(t *testing.T, cfg *Config) {
				assert.Equal(t, 45*time.Second, cfg.RunTimeout)
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			cfg, err := Load("", nil)
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "smokecheck.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoadFile(t *testing.T) {
	path := writeConfig(t, `
driver: playwright
headless: false
run_timeout: 90s
scenario_dir: /etc/smokecheck/scenarios
`)

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "playwright", cfg.Driver)
	assert.False(t, cfg.Headless)
	assert.Equal(t, 90*time.Second, cfg.RunTimeout)
	assert.Equal(t, "/etc/smokecheck/scenarios", cfg.ScenarioDir)
	assert.Equal(t, "8080", cfg.Port)
}

func TestEnvOverridesFile(t *testing.T) {
	path := writeConfig(t, "driver: playwright\n")
	t.Setenv("SMOKECHECK_DRIVER", "rod")

	cfg, err := Load(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "rod", cfg.Driver)
}

func TestLoadMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestFlagsOverrideEnv(t *testing.T) {
	t.Setenv("SMOKECHECK_BASE_URL", "http://from-env")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.String("base-url", "", "")
	flags.String("driver", "playwright", "")
	require.NoError(t, flags.Parse([]string{"--base-url=http://from-flag"}))

	cfg, err := Load("", flags)
	require.NoError(t, err)
	assert.Equal(t, "http://from-flag", cfg.BaseURL)
	// Unset flags fall through to lower layers
	assert.Equal(t, "rod", cfg.Driver)
}

func TestServerAddr(t *testing.T) {
	assert.Equal(t, ":8080", (&Config{Port: "8080"}).ServerAddr())
	assert.Equal(t, "127.0.0.1:9000", (&Config{Port: "127.0.0.1:9000"}).ServerAddr())
}
