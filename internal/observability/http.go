package observability

import (
	"context"
	"strconv"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
)

// HTTPRequest is one finished inbound request.
type HTTPRequest struct {
	Method  string
	Route   string
	Status  int
	Elapsed time.Duration
}

// ObserveHTTPRequest records a finished request in Prometheus and as Sentry
// metrics. An empty route is reported as "unmatched".
func ObserveHTTPRequest(ctx context.Context, req HTTPRequest) {
	route := req.Route
	if route == "" {
		route = "unmatched"
	}
	status := strconv.Itoa(req.Status)

	HTTPRequestsTotal.WithLabelValues(req.Method, route, status).Inc()
	HTTPRequestDuration.WithLabelValues(req.Method, route, status).Observe(req.Elapsed.Seconds())

	attrs := sentry.WithAttributes(
		attribute.String("http.method", req.Method),
		attribute.String("http.route", route),
		attribute.Int("http.status_code", req.Status),
	)
	meter := sentry.NewMeter(ctx).WithCtx(ctx)
	meter.Count("http.server.requests", 1, attrs)
	meter.Distribution("http.server.duration", float64(req.Elapsed.Milliseconds()), sentry.WithUnit(sentry.UnitMillisecond), attrs)
	if req.Status >= 500 {
		meter.Count("http.server.errors", 1, attrs)
	}
}
