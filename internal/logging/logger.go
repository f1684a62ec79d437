package logging

import (
	"context"
	"io"
	"log/slog"
	"strings"

	sentryslog "github.com/getsentry/sentry-go/slog"
	"github.com/lmittmann/tint"
)

type Options struct {
	Level  slog.Level
	Format string
	// Sentry forwards warnings as breadcrumbs/logs and errors as events.
	// Enable only after sentry.Init succeeded.
	Sentry bool
}

// New builds the process logger: tint for local text output, JSON otherwise,
// optionally fanned out to Sentry. Customer emails and phone numbers are
// masked before any handler sees them.
func New(w io.Writer, opts Options) *slog.Logger {
	var console slog.Handler
	switch strings.ToLower(strings.TrimSpace(opts.Format)) {
	case "json":
		console = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: opts.Level})
	default:
		console = tint.NewHandler(w, &tint.Options{Level: opts.Level})
	}

	if !opts.Sentry {
		return slog.New(newFanout(console))
	}

	sentryHandler := sentryslog.Option{
		EventLevel: []slog.Level{slog.LevelError},
		LogLevel:   []slog.Level{slog.LevelWarn, slog.LevelInfo},
	}.NewSentryHandler(context.Background())

	return slog.New(newFanout(console, sentryHandler))
}
