package handlers

import (
	"net/http"

	"github.com/getsentry/sentry-go/attribute"

	"github.com/ankarahouse/storefront/internal/auth"
	"github.com/ankarahouse/storefront/internal/observability"
)

// MetricsContext stores a request meter whose samples carry the request id,
// route and, once authenticated, the caller.
func (h *Handlers) MetricsContext(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		meter := observability.NewRequestMeter(ctx, requestAttributes(r)...)
		next.ServeHTTP(w, r.WithContext(observability.WithMeter(ctx, meter)))
	})
}

func requestAttributes(r *http.Request) []attribute.Builder {
	attrs := []attribute.Builder{
		attribute.String("http.request_id", requestIDFromContext(r.Context())),
		attribute.String("http.method", r.Method),
		attribute.String("network.client.ip", clientIP(r)),
	}
	if route := routeLabel(r); route != "" {
		attrs = append(attrs, attribute.String("http.route", route))
	}
	if principal := auth.PrincipalFromContext(r.Context()); principal != nil {
		attrs = append(attrs, attribute.String("user.id", principal.UserID.String()))
		if principal.IsAdmin {
			attrs = append(attrs, attribute.String("user.role", "admin"))
		} else {
			attrs = append(attrs, attribute.String("user.role", "customer"))
		}
	}
	return attrs
}
