package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var (
	version = "dev"
	commit  = "none"
)

func newRootCmd() *cobra.Command {
	var configFile string

	rootCmd := &cobra.Command{
		Use:   "smokecheck",
		Short: "Drive a headless browser through a UI scenario and capture a screenshot",
		Long: `smokecheck runs declarative UI scenarios against a live deployment.

Each run opens a fresh headless browser, finds the page hosting the scenario's
marker element, performs the steps in order and saves a screenshot. Any failure,
route discovery included, exits with status 1.`,
		Version:       fmt.Sprintf("%s (commit: %s)", version, commit),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Path to a smokecheck.yaml config file")

	rootCmd.AddCommand(newRunCmd(&configFile))
	rootCmd.AddCommand(newScenarioCmd(&configFile))
	rootCmd.AddCommand(newFixtureCmd())
	return rootCmd
}

func main() {
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, nil)))

	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
