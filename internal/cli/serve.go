package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	httpAdapter "github.com/aretw0/stagehand/pkg/adapters/http"
)

// Handler builds the HTTP API of app.
func Handler(app *App) http.Handler {
	opts := []httpAdapter.Option{
		httpAdapter.WithStreams(app.Streams),
		httpAdapter.WithLogger(app.Logger),
	}
	if app.Metrics != nil {
		opts = append(opts, httpAdapter.WithMetricsHandler(app.Metrics.Handler()))
	}
	return httpAdapter.NewHandler(app.Engine, app.Runner, opts...)
}

// Serve boots app and serves the HTTP API on addr until ctx is done.
func Serve(ctx context.Context, app *App, addr string) error {
	_, finished, err := app.Boot(ctx)
	if err != nil {
		return err
	}

	loopCtx, stop := context.WithCancel(ctx)
	wait := app.Start(loopCtx)
	defer func() {
		stop()
		wait()
	}()

	if err := Await(ctx, finished); err != nil {
		app.Logger.Error("boot transition failed", "err", err)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           Handler(app),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		app.Logger.Info("HTTP server listening", "address", addr)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("could not stop server gracefully: %w", err)
		}
		app.Logger.Info("HTTP server stopped")
		return nil
	}
}
