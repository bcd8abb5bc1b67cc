package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/cors"
	"go.temporal.io/sdk/client"
	tlog "go.temporal.io/sdk/log"

	"dev/bravebird/ui-smokecheck/pkg/api"
	"dev/bravebird/ui-smokecheck/pkg/config"
	"dev/bravebird/ui-smokecheck/pkg/database"
	"dev/bravebird/ui-smokecheck/pkg/scenario"
)

func main() {
	configFile := flag.String("config", "", "Path to a smokecheck.yaml config file")
	flag.Parse()

	log.Println("Starting UI Smoke-Check API Server")

	cfg, err := config.Load(*configFile, nil)
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	logger := tlog.NewStructuredLogger(slog.Default())

	// Initialize database
	var store api.RunStore
	if cfg.HasDatabase() {
		db, err := database.New(cfg.MySQLDSN)
		if err != nil {
			log.Printf("Warning: Failed to connect to database: %v", err)
			log.Println("Running without database persistence")
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
	} else {
		log.Println("No MYSQL_DSN configured, running without database persistence")
	}

	// Initialize Temporal client
	temporalClient, err := client.Dial(client.Options{
		HostPort:  cfg.TemporalHost,
		Namespace: cfg.TemporalNamespace,
		Logger:    logger,
	})
	if err != nil {
		log.Fatalf("Failed to create Temporal client: %v", err)
	}
	defer temporalClient.Close()

	handlers := api.NewHandlers(store, temporalClient, scenario.Catalog{Dir: cfg.ScenarioDir}, api.Settings{
		ScreenshotDir: cfg.ScreenshotDir,
		BaseURL:       cfg.BaseURL,
		Driver:        cfg.Driver,
		Headless:      cfg.Headless,
		RunTimeout:    cfg.RunTimeout,
		Logger:        logger,
	})
	router := api.NewRouter(handlers)

	// Setup CORS
	c := cors.New(cors.Options{
		AllowedOrigins:   []string{"*"},
		AllowedMethods:   []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	})

	server := &http.Server{
		Addr:         cfg.ServerAddr(),
		Handler:      c.Handler(router),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Printf("API server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
