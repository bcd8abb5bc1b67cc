package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"
	"go.temporal.io/sdk/worker"

	"dev/bravebird/ui-smokecheck/pkg/browser"
	"dev/bravebird/ui-smokecheck/pkg/config"
	"dev/bravebird/ui-smokecheck/pkg/database"
	"dev/bravebird/ui-smokecheck/pkg/scenario"
	"dev/bravebird/ui-smokecheck/pkg/temporal/activities"
	"dev/bravebird/ui-smokecheck/pkg/temporal/workflows"
)

func main() {
	configFile := flag.String("config", "", "Path to a smokecheck.yaml config file")
	flag.Parse()

	cfg, err := config.Load(*configFile, nil)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Create Temporal client
	c, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHost,
		Namespace: cfg.TemporalNamespace,
		Logger:    tlog.NewStructuredLogger(slog.Default()),
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer c.Close()

	// Run store is optional
	var store activities.RunRecorder
	if cfg.HasDatabase() {
		db, err := database.New(cfg.MySQLDSN)
		if err != nil {
			log.Printf("Warning: Failed to connect to database: %v", err)
		} else {
			defer db.Close()
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			err = db.Migrate(ctx)
			cancel()
			if err != nil {
				log.Fatalf("Failed to migrate database: %v", err)
			}
			store = db
		}
	}

	acts := activities.NewActivities(scenario.Catalog{Dir: cfg.ScenarioDir}, cfg.ScreenshotDir, cfg.ChromeBin, store)
	acts.InstallBrowsers = cfg.InstallBrowsers
	acts.DefaultDriver = cfg.Driver
	acts.Progress = c

	// One browser per activity, so activity concurrency bounds browser processes
	w := worker.New(c, workflows.TaskQueue, worker.Options{
		MaxConcurrentActivityExecutionSize:     cfg.MaxConcurrentRuns,
		MaxConcurrentWorkflowTaskExecutionSize: 10,
	})

	w.RegisterWorkflow(workflows.SmokeCheckWorkflow)
	w.RegisterActivityWithOptions(acts.RunScenarioActivity, activity.RegisterOptions{Name: workflows.RunScenarioActivityName})
	w.RegisterActivityWithOptions(acts.RecordRunActivity, activity.RegisterOptions{Name: workflows.RecordRunActivityName})

	log.Printf("Starting Temporal worker on task queue: %s", workflows.TaskQueue)
	log.Printf("Temporal host: %s", cfg.TemporalHost)
	log.Printf("Browser drivers: %v (default %s), screenshots in %s", browser.Names(), cfg.Driver, cfg.ScreenshotDir)

	err = w.Run(worker.InterruptCh())
	if err != nil {
		log.Fatalf("Worker failed: %v", err)
	}
}
