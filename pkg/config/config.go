// Package config loads settings shared by the CLI, API server and worker.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment variables, e.g. SMOKECHECK_BASE_URL
const EnvPrefix = "SMOKECHECK"

// Config holds process settings
type Config struct {
	Port              string        `mapstructure:"port"`
	TemporalHost      string        `mapstructure:"temporal_host"`
	TemporalNamespace string        `mapstructure:"temporal_namespace"`
	MySQLDSN          string        `mapstructure:"mysql_dsn"`
	ScreenshotDir     string        `mapstructure:"screenshot_dir"`
	ScenarioDir       string        `mapstructure:"scenario_dir"`
	ChromeBin         string        `mapstructure:"chrome_bin"`
	BaseURL           string        `mapstructure:"base_url"`
	Driver            string        `mapstructure:"driver"`
	Headless          bool          `mapstructure:"headless"`
	InstallBrowsers   bool          `mapstructure:"install_browsers"`
	RunTimeout        time.Duration `mapstructure:"run_timeout"`
	MaxConcurrentRuns int           `mapstructure:"max_concurrent_runs"`
}

var defaults = map[string]interface{}{
	"port":                "8080",
	"temporal_host":       "localhost:7233",
	"temporal_namespace":  "default",
	"mysql_dsn":           "",
	"screenshot_dir":      "/tmp/screenshots",
	"scenario_dir":        "",
	"chrome_bin":          "",
	"base_url":            "",
	"driver":              "rod",
	"headless":            true,
	"install_browsers":    false,
	"run_timeout":         "5m",
	"max_concurrent_runs": 2,
}

// Unprefixed names kept from earlier deployments
var legacyEnv = map[string]string{
	"port":           "PORT",
	"temporal_host":  "TEMPORAL_HOST",
	"mysql_dsn":      "MYSQL_DSN",
	"screenshot_dir": "SCREENSHOT_DIR",
	"scenario_dir":   "SCENARIO_DIR",
	"chrome_bin":     "CHROME_BIN",
}

// FlagNames maps config keys to the command-line flags that override them
var FlagNames = map[string]string{
	"port":           "port",
	"temporal_host":  "temporal-host",
	"mysql_dsn":      "mysql-dsn",
	"screenshot_dir": "screenshot-dir",
	"scenario_dir":   "scenario-dir",
	"chrome_bin":     "chrome-bin",
	"base_url":       "base-url",
	"driver":         "driver",
}

// Load reads configuration with precedence flags > env > config file > defaults.
// configFile may be empty, in which case smokecheck.yaml is looked up in the
// working directory and ignored when missing. flags may be nil.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")

	for key, val := range defaults {
		v.SetDefault(key, val)
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("smokecheck")
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			// It's OK if smokecheck.yaml doesn't exist
			if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	// Environment variable overrides
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	for key, legacy := range legacyEnv {
		if err := v.BindEnv(key, envName(key), legacy); err != nil {
			return nil, fmt.Errorf("failed to bind env %s: %w", legacy, err)
		}
	}

	if flags != nil {
		for key, name := range FlagNames {
			flag := flags.Lookup(name)
			if flag == nil {
				continue
			}
			if err := v.BindPFlag(key, flag); err != nil {
				return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
			}
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	return cfg, nil
}

func envName(key string) string {
	return EnvPrefix + "_" + strings.ToUpper(key)
}

// ServerAddr returns the API listen address
func (c *Config) ServerAddr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}

// HasDatabase reports whether a run store is configured
func (c *Config) HasDatabase() bool {
	return c.MySQLDSN != ""
}
