package app

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/ankarahouse/storefront/internal/auth"
	"github.com/ankarahouse/storefront/internal/cache"
	"github.com/ankarahouse/storefront/internal/catalog"
	"github.com/ankarahouse/storefront/internal/config"
	"github.com/ankarahouse/storefront/internal/db"
	"github.com/ankarahouse/storefront/internal/email"
	"github.com/ankarahouse/storefront/internal/events"
	"github.com/ankarahouse/storefront/internal/handlers"
	"github.com/ankarahouse/storefront/internal/logging"
	"github.com/ankarahouse/storefront/internal/observability"
	"github.com/ankarahouse/storefront/internal/services"
	"github.com/ankarahouse/storefront/internal/shipping"
	"github.com/ankarahouse/storefront/internal/stripe"
)

const outboundTimeout = 20 * time.Second

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	DB            *pgxpool.Pool
	CacheProvider cache.Provider
	Publisher     events.Publisher
	Handlers      *handlers.Handlers
	sentryEnabled bool
}

func New() (*App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}

	sentryEnabled, err := initSentry(cfg)
	if err != nil {
		return nil, err
	}
	logger := logging.New(os.Stdout, logging.Options{
		Level:  cfg.LogLevel,
		Format: cfg.LogFormat,
		Sentry: sentryEnabled,
	})

	a := &App{
		Config:        cfg,
		Logger:        logger,
		sentryEnabled: sentryEnabled,
	}
	if err := a.wire(); err != nil {
		a.Close()
		return nil, err
	}
	return a, nil
}

// wire builds every dependency. On error the caller closes whatever was
// already assigned to the App.
func (a *App) wire() error {
	cfg := a.Config
	logger := a.Logger

	startupCtx, startupCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer startupCancel()

	database, err := db.Connect(startupCtx, cfg.DatabaseURL)
	if err != nil {
		return err
	}
	a.DB = database
	if err := db.Migrate(startupCtx, database); err != nil {
		return err
	}

	cacheProvider, err := cache.NewProvider(cache.Config{
		Provider:              cfg.CacheProvider,
		RedisConnectionString: cfg.RedisConnectionString,
		KeyPrefix:             cfg.CacheKeyPrefix,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize cache provider: %w", err)
	}
	a.CacheProvider = cacheProvider

	publisher, err := events.NewPublisher(events.Config{
		Provider: cfg.EventsProvider,
		Brokers:  cfg.KafkaBrokers,
		Topic:    cfg.KafkaTopic,
	}, logger.With("component", "events"))
	if err != nil {
		return fmt.Errorf("failed to initialize event publisher: %w", err)
	}
	a.Publisher = publisher

	verifier, err := auth.NewVerifier(cfg.AuthJWTSecret, cfg.AuthJWTAudience, cfg.AuthAdminRole)
	if err != nil {
		return fmt.Errorf("failed to initialize auth verifier: %w", err)
	}

	httpClient := observability.NewHTTPClient(outboundTimeout)

	emailProvider, err := email.NewProvider(email.Config{
		Provider:   cfg.EmailProvider,
		APIKey:     cfg.ResendAPIKey,
		From:       cfg.EmailFrom,
		HTTPClient: httpClient,
	}, logger.With("component", "email"))
	if err != nil {
		return fmt.Errorf("failed to initialize email provider: %w", err)
	}
	mailer, err := email.NewMailer(emailProvider)
	if err != nil {
		return fmt.Errorf("failed to initialize mailer: %w", err)
	}
	store := services.StoreInfo{
		Name:     cfg.StoreName,
		URL:      cfg.BaseURL,
		Currency: cfg.StoreCurrency,
	}
	emailSender := services.NewMailOrderEmailSender(mailer, store)

	orderStore := db.NewOrderStore(database)
	productStore := db.NewProductStore(database)
	cartStore := db.NewCartStore(database)
	eventStore := db.NewEventStore(database)
	shippingStore := db.NewShippingStore(database)

	// Rates come from the database unless a YAML table is configured. Only
	// database rates accept surge overrides.
	var rateSource shipping.Source = shippingStore
	if cfg.ShippingRatesFile != "" {
		rateSource = shipping.NewFileSource(cfg.ShippingRatesFile)
		logger.Info("using shipping rates file", "path", cfg.ShippingRatesFile)
	}
	cachedRates := shipping.NewCachedSource(rateSource, cfg.ShippingTableTTL)
	calculator := shipping.NewCalculator(cachedRates, shipping.FallbackPolicy{
		FlatRate:  cfg.FallbackRate,
		FreeAbove: cfg.FallbackFreeAbove,
	})

	var gateway *stripe.Gateway
	if cfg.PaymentsEnabled() {
		gateway = stripe.NewGateway(cfg.StripeSecretKey, cfg.StoreCurrency, cfg.BaseURL, httpClient)
	} else {
		logger.Warn("STRIPE_SECRET_KEY not set; online payments are disabled")
	}

	pricer := catalog.NewPricer(productStore)
	checkoutService := services.NewCheckoutService(
		orderStore,
		cartStore,
		pricer,
		calculator,
		publisher,
		emailSender,
		services.CheckoutConfig{
			OrderNumberPrefix:  cfg.OrderNumberPrefix,
			AllowGuestCheckout: cfg.AllowGuestCheckout,
		},
		logger.With("component", "checkout_service"),
	)
	shippingLogger := logger.With("component", "shipping_service")
	shippingService := services.NewShippingService(calculator, shippingStore, cachedRates, shippingLogger)
	if cfg.ShippingRatesFile != "" {
		shippingService = services.NewShippingService(calculator, nil, cachedRates, shippingLogger)
	}
	fulfillmentService := services.NewFulfillmentService(orderStore, publisher, emailSender, logger.With("component", "fulfillment_service"))
	paymentService := newPaymentService(orderStore, gateway, publisher, cfg.StoreCurrency, logger.With("component", "payment_service"))
	eventService := services.NewEventService(eventStore, publisher, emailSender, logger.With("component", "event_service"))
	catalogService := services.NewCatalogService(productStore)
	cartService := services.NewCartService(cartStore, pricer, logger.With("component", "cart_service"))
	stripeRouter := handlers.NewStripeEventRouter(paymentService, logger.With("component", "stripe_router"))

	h, err := handlers.New(handlers.Dependencies{
		Config:             cfg,
		DB:                 database,
		CacheProvider:      cacheProvider,
		Verifier:           verifier,
		StripeRouter:       stripeRouter,
		CheckoutService:    checkoutService,
		ShippingService:    shippingService,
		FulfillmentService: fulfillmentService,
		PaymentService:     paymentService,
		EventService:       eventService,
		CatalogService:     catalogService,
		CartService:        cartService,
		Logger:             logger,
	})
	if err != nil {
		return fmt.Errorf("failed to initialize handlers: %w", err)
	}
	a.Handlers = h

	return nil
}

// newPaymentService keeps a nil gateway a true nil interface value.
func newPaymentService(orders *db.OrderStore, gateway *stripe.Gateway, publisher events.Publisher, currency string, logger *slog.Logger) *services.PaymentService {
	if gateway == nil {
		return services.NewPaymentService(orders, nil, publisher, currency, logger)
	}
	return services.NewPaymentService(orders, gateway, publisher, currency, logger)
}

func initSentry(cfg *config.Config) (bool, error) {
	if cfg.SentryDSN == "" {
		return false, nil
	}
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              cfg.SentryDSN,
		Environment:      cfg.SentryEnvironment,
		EnableTracing:    true,
		TracesSampleRate: 1.0,
		EnableLogs:       true,
		SendDefaultPII:   false,
	})
	if err != nil {
		return false, fmt.Errorf("failed to initialize sentry: %w", err)
	}
	return true, nil
}

func (a *App) Close() {
	if a == nil {
		return
	}
	if a.Publisher != nil {
		if err := a.Publisher.Close(); err != nil && a.Logger != nil {
			a.Logger.Warn("failed to close event publisher", "error", err)
		}
	}
	if a.CacheProvider != nil {
		closeCacheProvider(a.Logger, a.CacheProvider)
	}
	if a.DB != nil {
		a.DB.Close()
	}
	if a.sentryEnabled {
		sentry.Flush(2 * time.Second)
	}
}

func closeCacheProvider(logger *slog.Logger, provider cache.Provider) {
	if provider == nil {
		return
	}
	if err := provider.Close(); err != nil && logger != nil {
		logger.Warn("failed to close cache provider", "error", err)
	}
}
