package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"dev/bravebird/ui-smokecheck/pkg/fixture"
)

func newFixtureCmd() *cobra.Command {
	var (
		addr      string
		foodsPath string
	)

	cmd := &cobra.Command{
		Use:   "fixture",
		Short: "Serve the demo nutrition app the built-in scenario targets",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			app, err := fixture.New(fixture.Options{FoodsPath: foodsPath})
			if err != nil {
				return err
			}

			server := &http.Server{
				Addr:         addr,
				Handler:      app,
				ReadTimeout:  15 * time.Second,
				WriteTimeout: 15 * time.Second,
				IdleTimeout:  60 * time.Second,
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				log.Printf("Fixture app listening on %s (foods page at %s)", addr, app.FoodsPath())
				errCh <- server.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			case <-ctx.Done():
			}

			log.Println("Shutting down fixture app...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		},
	}

	cmd.Flags().StringVar(&addr, "addr", ":5173", "Listen address")
	cmd.Flags().StringVar(&foodsPath, "foods-path", fixture.DefaultFoodsPath, "Path of the foods page")
	return cmd
}
