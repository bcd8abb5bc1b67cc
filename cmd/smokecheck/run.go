package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"dev/bravebird/ui-smokecheck/pkg/browser"
	"dev/bravebird/ui-smokecheck/pkg/config"
	"dev/bravebird/ui-smokecheck/pkg/models"
	"dev/bravebird/ui-smokecheck/pkg/runner"
	"dev/bravebird/ui-smokecheck/pkg/scenario"
)

type runOptions struct {
	scenarioName    string
	headful         bool
	output          string
	failureDir      string
	installBrowsers bool
}

func newRunCmd(configFile *string) *cobra.Command {
	opts := &runOptions{}

	cmd := &cobra.Command{
		Use:   "run [scenario.yaml]",
		Short: "Run a scenario once",
		Long: `Run a scenario file, or a named scenario from the catalog when no file is
given. Without either, the built-in recipe-portions scenario runs.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(*configFile, cmd.Flags())
			if err != nil {
				return err
			}
			sc, err := loadScenario(cfg, opts.scenarioName, args)
			if err != nil {
				return err
			}
			driver, err := browser.NewDriver(cfg.Driver)
			if err != nil {
				return err
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			ctx, cancel := context.WithTimeout(ctx, cfg.RunTimeout)
			defer cancel()

			r := runner.New(runner.Options{
				Driver:         driver,
				Headless:       cfg.Headless && !opts.headful,
				Bin:            cfg.ChromeBin,
				Install:        opts.installBrowsers || cfg.InstallBrowsers,
				ScreenshotPath: opts.output,
				FailureDir:     opts.failureDir,
			})

			result, runErr := r.Run(ctx, sc)
			printResult(cmd.OutOrStdout(), result)
			return runErr
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&opts.scenarioName, "scenario", "", "Catalog scenario to run when no file is given")
	flags.String("base-url", "", "Base URL of the app under test (overrides the scenario)")
	flags.String("driver", browser.DriverRod, fmt.Sprintf("Browser driver: %v", browser.Names()))
	flags.String("chrome-bin", "", "Chrome/Chromium executable")
	flags.String("scenario-dir", "", "Directory of *.yaml scenarios")
	flags.BoolVar(&opts.headful, "headful", false, "Show the browser window")
	flags.StringVarP(&opts.output, "output", "o", "", "Screenshot path (overrides the scenario)")
	flags.StringVar(&opts.failureDir, "failure-dir", "", "Directory for a screenshot of the page when a run fails")
	flags.BoolVar(&opts.installBrowsers, "install-browsers", false, "Let the playwright driver download Chromium")

	return cmd
}

func loadScenario(cfg *config.Config, name string, args []string) (*models.Scenario, error) {
	var (
		sc  *models.Scenario
		err error
	)
	if len(args) == 1 {
		sc, err = scenario.LoadFile(args[0])
	} else {
		sc, err = scenario.Catalog{Dir: cfg.ScenarioDir}.Load(name)
	}
	if err != nil {
		return nil, err
	}
	return scenario.WithBaseURL(sc, cfg.BaseURL), nil
}

func printResult(w io.Writer, result models.RunResult) {
	fmt.Fprintf(w, "Scenario %s (%s) %s in %dms\n", result.Scenario, result.Driver, result.Status, result.TotalDuration)

	for _, attempt := range result.Route.Attempts {
		mark := "miss"
		if attempt.Found {
			mark = "hit"
		}
		fmt.Fprintf(w, "  route %-4s %s\n", mark, attempt.URL)
	}

	for _, sr := range result.Steps {
		fmt.Fprintf(w, "  %2d %-24s %-8s %6dms", sr.Sequence, sr.Name, sr.Status, sr.Duration)
		if sr.Status == models.StatusFailed && sr.ErrorMessage != "" {
			fmt.Fprintf(w, "  %s", sr.ErrorMessage)
		}
		fmt.Fprintln(w)
	}

	if result.ScreenshotPath != "" {
		fmt.Fprintf(w, "Screenshot: %s\n", result.ScreenshotPath)
	}
	if result.FailureScreenshot != "" {
		fmt.Fprintf(w, "Failure screenshot: %s\n", result.FailureScreenshot)
	}
}
