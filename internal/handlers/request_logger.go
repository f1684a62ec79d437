package handlers

import (
	"context"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/ankarahouse/storefront/internal/logging"
	"github.com/ankarahouse/storefront/internal/observability"
)

const (
	maxRequestIDLength   = 128
	slowRequestThreshold = 2 * time.Second
)

// Probes and scrapes are logged at debug so they do not drown real traffic.
var quietPaths = map[string]bool{
	"/health":  true,
	"/metrics": true,
}

type requestIDKey struct{}

// requestIDFromContext returns the id assigned by RequestLogger.
func requestIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey{}).(string)
	return id
}

type statusRecorder struct {
	http.ResponseWriter
	status  int
	written int
}

func (w *statusRecorder) WriteHeader(status int) {
	if w.status == 0 {
		w.status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *statusRecorder) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(b)
	w.written += n
	return n, err
}

func (w *statusRecorder) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

func (w *statusRecorder) statusCode() int {
	if w.status == 0 {
		return http.StatusOK
	}
	return w.status
}

// RequestLogger tags every request with an id, stores a request logger in the
// context and records one log line plus HTTP metrics when it finishes.
func (h *Handlers) RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		observability.HTTPInFlight.Inc()
		defer observability.HTTPInFlight.Dec()

		requestID := requestIDFromRequest(r)
		w.Header().Set("X-Request-ID", requestID)

		route := routeLabel(r)
		ctx := context.WithValue(r.Context(), requestIDKey{}, requestID)
		ctx, logger := logging.With(ctx, h.logger,
			"request_id", requestID,
			"method", r.Method,
			"path", r.URL.Path,
			"remote_ip", clientIP(r),
		)
		if route != "" {
			logger = logger.With("route", route)
			ctx = logging.WithLogger(ctx, logger)
		}

		rec := &statusRecorder{ResponseWriter: w}
		next.ServeHTTP(rec, r.WithContext(ctx))

		elapsed := time.Since(start)
		status := rec.statusCode()
		observability.ObserveHTTPRequest(ctx, observability.HTTPRequest{
			Method:  r.Method,
			Route:   route,
			Status:  status,
			Elapsed: elapsed,
		})

		level := slog.LevelInfo
		switch {
		case quietPaths[r.URL.Path]:
			level = slog.LevelDebug
		case status >= http.StatusInternalServerError, elapsed > slowRequestThreshold:
			level = slog.LevelWarn
		}
		logger.Log(ctx, level, "request completed",
			"status", status,
			"duration_ms", elapsed.Milliseconds(),
			"bytes", rec.written,
			"user_agent", r.UserAgent(),
		)
	})
}

// requestIDFromRequest reuses a caller-supplied X-Request-ID when it is short
// and printable, and otherwise mints a new one.
func requestIDFromRequest(r *http.Request) string {
	if r != nil {
		if id := strings.TrimSpace(r.Header.Get("X-Request-ID")); validRequestID(id) {
			return id
		}
	}
	return uuid.NewString()
}

func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLength {
		return false
	}
	for i := 0; i < len(id); i++ {
		if id[i] < 0x21 || id[i] > 0x7e {
			return false
		}
	}
	return true
}

// clientIP prefers the first X-Forwarded-For hop set by the load balancer.
func clientIP(r *http.Request) string {
	if r == nil {
		return ""
	}
	if forwarded, _, _ := strings.Cut(r.Header.Get("X-Forwarded-For"), ","); strings.TrimSpace(forwarded) != "" {
		return strings.TrimSpace(forwarded)
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

// routeLabel is the mux route name, falling back to its path template.
func routeLabel(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return ""
	}
	if name := route.GetName(); name != "" {
		return name
	}
	template, _ := route.GetPathTemplate()
	return template
}
