// Command server runs the storefront API.
package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/ankarahouse/storefront/app"
	"github.com/ankarahouse/storefront/server"
)

func main() {
	os.Exit(run())
}

func run() int {
	application, err := app.New()
	if err != nil {
		slog.New(slog.NewTextHandler(os.Stderr, nil)).Error("failed to initialize app", "error", err)
		return 1
	}
	defer application.Close()

	srv, err := server.New(application.Config, application.Logger, application.Handlers)
	if err != nil {
		application.Logger.Error("failed to initialize server", "error", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := srv.Run(ctx); err != nil {
		application.Logger.Error("server stopped with error", "error", err)
		return 1
	}
	return 0
}
