package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/ankarahouse/storefront/internal/logging"
)

func TestRequestLogger_PropagatesRequestID(t *testing.T) {
	t.Parallel()

	h := newTestHandlers()

	var seen string
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestIDFromContext(r.Context())
		if logging.FromContext(r.Context(), nil) == h.logger {
			t.Error("expected a request-scoped logger")
		}
		w.WriteHeader(http.StatusAccepted)
	})

	req := httptest.NewRequest(http.MethodPost, "/api/orders", nil)
	req.Header.Set("X-Request-ID", "checkout-42")
	rec := httptest.NewRecorder()
	h.RequestLogger(next).ServeHTTP(rec, req)

	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected status %d, got %d", http.StatusAccepted, rec.Code)
	}
	if seen != "checkout-42" || rec.Header().Get("X-Request-ID") != "checkout-42" {
		t.Fatalf("expected caller request id, got context=%q header=%q", seen, rec.Header().Get("X-Request-ID"))
	}
}

func TestRequestLogger_ReplacesUnusableRequestID(t *testing.T) {
	t.Parallel()

	h := newTestHandlers()
	for _, id := range []string{"", "has space", strings.Repeat("a", maxRequestIDLength+1)} {
		req := httptest.NewRequest(http.MethodGet, "/api/products", nil)
		req.Header.Set("X-Request-ID", id)
		rec := httptest.NewRecorder()

		h.RequestLogger(noContent()).ServeHTTP(rec, req)

		got := rec.Header().Get("X-Request-ID")
		if got == "" || got == id {
			t.Fatalf("expected a generated id for %q, got %q", id, got)
		}
	}
}

func TestStatusRecorder_DefaultsToOK(t *testing.T) {
	t.Parallel()

	rec := &statusRecorder{ResponseWriter: httptest.NewRecorder()}
	if rec.statusCode() != http.StatusOK {
		t.Fatalf("expected default 200, got %d", rec.statusCode())
	}
	if _, err := rec.Write([]byte("ok")); err != nil {
		t.Fatalf("unexpected write error: %v", err)
	}
	rec.WriteHeader(http.StatusTeapot)
	if rec.statusCode() != http.StatusOK || rec.written != 2 {
		t.Fatalf("expected first status to stick, got %d (%d bytes)", rec.statusCode(), rec.written)
	}
}

func TestClientIP(t *testing.T) {
	t.Parallel()

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.7:5123"
	if got := clientIP(req); got != "10.0.0.7" {
		t.Fatalf("expected remote address host, got %q", got)
	}

	req.Header.Set("X-Forwarded-For", " 41.58.1.2 , 10.0.0.1")
	if got := clientIP(req); got != "41.58.1.2" {
		t.Fatalf("expected first forwarded hop, got %q", got)
	}
}
