package handlers

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
	"github.com/go-chi/cors"

	"github.com/ankarahouse/storefront/internal/config"
	"github.com/ankarahouse/storefront/internal/observability"
)

// SecurityHeaders sets baseline security headers for all responses.
func (h *Handlers) SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		headers := w.Header()
		headers.Set("X-Content-Type-Options", "nosniff")
		headers.Set("X-Frame-Options", "DENY")
		headers.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		headers.Set("Cross-Origin-Opener-Policy", "same-origin")
		if strings.HasPrefix(r.URL.Path, "/api/") {
			headers.Set("Cache-Control", "no-store")
		}

		next.ServeHTTP(w, r)
	})
}

// CORS lets the configured storefront origins call the API from a browser.
// Bearer tokens are not ambient credentials, so cookies are never allowed.
func (h *Handlers) CORS(next http.Handler) http.Handler {
	allowed := allowedOrigins(h.config)
	return cors.Handler(cors.Options{
		AllowOriginFunc: func(r *http.Request, origin string) bool {
			ok := originAllowed(allowed, origin)
			if !ok {
				meter := observability.MeterFromContext(r.Context())
				meter.Count("security.cors.blocked", 1, sentry.WithAttributes(attribute.String("origin", origin)))
			}
			return ok
		},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID"},
		AllowCredentials: false,
		MaxAge:           300,
	})(next)
}

// allowedOrigins normalises CORS_ALLOWED_ORIGINS plus the service's own
// BASE_URL to scheme://host[:port].
func allowedOrigins(cfg *config.Config) map[string]struct{} {
	origins := map[string]struct{}{}
	if cfg == nil {
		return origins
	}

	candidates := append([]string{cfg.BaseURL}, cfg.CORSAllowedOrigins...)
	for _, candidate := range candidates {
		if origin, err := normalizeOrigin(candidate); err == nil {
			origins[origin] = struct{}{}
		}
	}
	return origins
}

func originAllowed(allowed map[string]struct{}, origin string) bool {
	normalized, err := normalizeOrigin(origin)
	if err != nil {
		return false
	}
	_, ok := allowed[normalized]
	return ok
}

func normalizeOrigin(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", fmt.Errorf("empty origin")
	}

	parsed, err := url.Parse(value)
	if err != nil {
		return "", fmt.Errorf("failed to parse URL: %w", err)
	}
	if parsed.Host == "" {
		return "", fmt.Errorf("missing host")
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return "", fmt.Errorf("unsupported scheme %q", parsed.Scheme)
	}
	return scheme + "://" + strings.ToLower(parsed.Host), nil
}
