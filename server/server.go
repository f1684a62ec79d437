package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"time"

	sentryhttp "github.com/getsentry/sentry-go/http"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/ankarahouse/storefront/internal/config"
	"github.com/ankarahouse/storefront/internal/handlers"
)

type Server struct {
	logger          *slog.Logger
	httpServer      *http.Server
	shutdownTimeout time.Duration
}

func New(cfg *config.Config, logger *slog.Logger, h *handlers.Handlers) (*Server, error) {
	switch {
	case cfg == nil:
		return nil, errors.New("server: config is required")
	case logger == nil:
		return nil, errors.New("server: logger is required")
	case h == nil:
		return nil, errors.New("server: handlers are required")
	}

	return &Server{
		logger:          logger.With("component", "http_server"),
		shutdownTimeout: cfg.ShutdownTimeout,
		httpServer: &http.Server{
			Addr:              net.JoinHostPort("", cfg.Port),
			Handler:           buildHandler(h),
			ReadHeaderTimeout: 5 * time.Second,
			ReadTimeout:       cfg.HTTPWriteTimeout,
			WriteTimeout:      cfg.HTTPWriteTimeout,
			IdleTimeout:       4 * cfg.HTTPWriteTimeout,
			MaxHeaderBytes:    1 << 20,
			ErrorLog:          slog.NewLogLogger(logger.Handler(), slog.LevelWarn),
		},
	}, nil
}

// Run serves until ctx is cancelled and then drains in-flight requests for
// at most the shutdown timeout.
func (s *Server) Run(ctx context.Context) error {
	listener, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return fmt.Errorf("server: listen on %s: %w", s.httpServer.Addr, err)
	}
	return s.serve(ctx, listener)
}

func (s *Server) serve(ctx context.Context, listener net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		s.logger.Info("server listening", "addr", listener.Addr().String())
		if err := s.httpServer.Serve(listener); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.shutdownTimeout)
		defer cancel()

		s.logger.Info("server draining", "timeout", s.shutdownTimeout.String())
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: shutdown: %w", err)
		}
		s.logger.Info("server stopped")
		return nil
	})
	return g.Wait()
}

// buildHandler wraps the router in the middleware that must also see
// unmatched requests: CORS preflights never match a route's method.
func buildHandler(h *handlers.Handlers) http.Handler {
	tracing := sentryhttp.New(sentryhttp.Options{Repanic: true})
	return h.Recover(tracing.Handle(h.CORS(buildRouter(h))))
}

func buildRouter(h *handlers.Handlers) *mux.Router {
	r := mux.NewRouter()
	r.Use(h.RequestLogger)
	r.Use(h.SecurityHeaders)
	r.Use(h.OptionalAuth)
	r.Use(h.MetricsContext)
	r.NotFoundHandler = http.HandlerFunc(h.NotFound)
	r.HandleFunc("/health", h.Health).Methods(http.MethodGet).Name("health")
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet).Name("metrics")
	r.HandleFunc("/webhooks/stripe", h.StripeWebhook).Methods(http.MethodPost).Name("webhooks.stripe")

	api := r.PathPrefix("/api").Subrouter()
	api.HandleFunc("/shipping/calculate", h.CalculateShipping).Methods(http.MethodPost).Name("api.shipping.calculate")
	api.HandleFunc("/products", h.ListProducts).Methods(http.MethodGet).Name("api.products")
	api.HandleFunc("/products/{slug}", h.GetProduct).Methods(http.MethodGet).Name("api.products.get")
	api.HandleFunc("/orders", h.CreateOrder).Methods(http.MethodPost).Name("api.orders.create")
	api.HandleFunc("/payments/verify", h.VerifyPayment).Methods(http.MethodGet).Name("api.payments.verify")
	api.HandleFunc("/events/register", h.RegisterForEvent).Methods(http.MethodPost).Name("api.events.register")

	// Admin routes - require the admin role
	admin := api.PathPrefix("/admin").Subrouter()
	admin.Use(h.RequireAdmin)
	admin.HandleFunc("/orders", h.AdminListOrders).Methods(http.MethodGet).Name("admin.orders")
	admin.HandleFunc("/orders/bulk-status", h.AdminBulkStatus).Methods(http.MethodPost).Name("admin.orders.bulk_status")
	admin.HandleFunc("/orders/{id}", h.AdminGetOrder).Methods(http.MethodGet).Name("admin.orders.get")
	admin.HandleFunc("/orders/{id}/status", h.AdminUpdateStatus).Methods(http.MethodPatch).Name("admin.orders.status")
	admin.HandleFunc("/orders/{id}/tracking", h.AdminUpdateTracking).Methods(http.MethodPatch).Name("admin.orders.tracking")
	admin.HandleFunc("/orders/{id}/notes", h.AdminUpdateNotes).Methods(http.MethodPatch).Name("admin.orders.notes")
	admin.HandleFunc("/orders/{id}/refund", h.AdminRefund).Methods(http.MethodPost).Name("admin.orders.refund")
	admin.HandleFunc("/shipping/rates/{id}/surge", h.AdminUpdateSurge).Methods(http.MethodPatch).Name("admin.shipping.surge")
	admin.HandleFunc("/events/{id}/attendees", h.AdminListAttendees).Methods(http.MethodGet).Name("admin.events.attendees")
	admin.HandleFunc("/events/check-in", h.AdminCheckIn).Methods(http.MethodPost).Name("admin.events.check_in")

	// Customer routes - require a signed-in user
	account := api.NewRoute().Subrouter()
	account.Use(h.RequireAuth)
	account.HandleFunc("/me", h.Me).Methods(http.MethodGet).Name("api.me")
	account.HandleFunc("/orders", h.ListMyOrders).Methods(http.MethodGet).Name("api.orders.mine")
	account.HandleFunc("/cart", h.GetCart).Methods(http.MethodGet).Name("api.cart")
	account.HandleFunc("/cart/items", h.SetCartItem).Methods(http.MethodPut).Name("api.cart.items.set")
	account.HandleFunc("/cart/items/{id}", h.RemoveCartItem).Methods(http.MethodDelete).Name("api.cart.items.remove")

	// Order lookups and payment start work for guests too
	api.HandleFunc("/orders/{id}", h.GetOrder).Methods(http.MethodGet).Name("api.orders.get")
	api.HandleFunc("/orders/{id}/payment", h.InitiatePayment).Methods(http.MethodPost).Name("api.orders.payment")

	return r
}
