package config

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

type Config struct {
	DatabaseURL string `env:"DATABASE_URL,required" validate:"required"`
	BaseURL     string `env:"BASE_URL" envDefault:"http://localhost:3000" validate:"required,url"`
	Port        string `env:"PORT" envDefault:"8080"`

	HTTPWriteTimeout time.Duration `env:"HTTP_WRITE_TIMEOUT" envDefault:"15s"`
	ShutdownTimeout  time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"30s"`

	LogLevel          slog.Level `env:"LOG_LEVEL" envDefault:"INFO"`
	LogFormat         string     `env:"LOG_FORMAT" envDefault:"text" validate:"omitempty,oneof=text json"`
	SentryDSN         string     `env:"SENTRY_DSN"`
	SentryEnvironment string     `env:"SENTRY_ENVIRONMENT" envDefault:"development"`

	AuthJWTSecret      string `env:"AUTH_JWT_SECRET,required" validate:"required,min=32"`
	AuthJWTAudience    string `env:"AUTH_JWT_AUDIENCE" envDefault:"authenticated"`
	AuthAdminRole      string `env:"AUTH_ADMIN_ROLE" envDefault:"admin" validate:"required"`
	AllowGuestCheckout bool   `env:"ALLOW_GUEST_CHECKOUT" envDefault:"false"`

	CacheProvider         string `env:"CACHE_PROVIDER" envDefault:"memory" validate:"omitempty,oneof=memory redis"`
	RedisConnectionString string `env:"REDIS_CONNECTION_STRING" envDefault:"redis://localhost:6379/0" validate:"required_if=CacheProvider redis"`
	CacheKeyPrefix        string `env:"CACHE_KEY_PREFIX" envDefault:"storefront:"`

	StripeSecretKey     string `env:"STRIPE_SECRET_KEY"`
	StripeWebhookSecret string `env:"STRIPE_WEBHOOK_SECRET"`

	StoreName         string          `env:"STORE_NAME" envDefault:"Ankara House"`
	StoreCurrency     string          `env:"STORE_CURRENCY" envDefault:"ngn" validate:"required,len=3"`
	OrderNumberPrefix string          `env:"ORDER_NUMBER_PREFIX" envDefault:"AH" validate:"required,alphanum,max=8"`
	FallbackRate      decimal.Decimal `env:"FALLBACK_SHIPPING_RATE" envDefault:"2500"`
	FallbackFreeAbove decimal.Decimal `env:"FALLBACK_FREE_SHIPPING_CUTOFF" envDefault:"50000"`
	ShippingRatesFile string          `env:"SHIPPING_RATES_FILE"`
	ShippingTableTTL  time.Duration   `env:"SHIPPING_TABLE_TTL" envDefault:"5m"`

	EventsProvider string   `env:"EVENTS_PROVIDER" envDefault:"log" validate:"omitempty,oneof=log kafka"`
	KafkaBrokers   []string `env:"KAFKA_BROKERS" envSeparator:","`
	KafkaTopic     string   `env:"KAFKA_TOPIC" envDefault:"storefront.events"`

	EmailProvider string `env:"EMAIL_PROVIDER" envDefault:"log" validate:"omitempty,oneof=log resend"`
	ResendAPIKey  string `env:"RESEND_API_KEY"`
	EmailFrom     string `env:"EMAIL_FROM" envDefault:"Ankara House <orders@localhost>"`

	CORSAllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"http://localhost:3000"`
}

var configValidator = validator.New()

// Load reads an optional .env file and then the process environment.
// Variables already set in the environment win over the file.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// PaymentsEnabled reports whether the Stripe checkout flow is configured.
func (c *Config) PaymentsEnabled() bool {
	return strings.TrimSpace(c.StripeSecretKey) != ""
}

func (c *Config) validate() error {
	if err := configValidator.Struct(c); err != nil {
		return err
	}

	if c.FallbackRate.IsNegative() {
		return fmt.Errorf("FALLBACK_SHIPPING_RATE must not be negative")
	}
	if c.FallbackFreeAbove.IsNegative() {
		return fmt.Errorf("FALLBACK_FREE_SHIPPING_CUTOFF must not be negative")
	}
	if c.HTTPWriteTimeout <= 0 || c.ShutdownTimeout <= 0 {
		return fmt.Errorf("HTTP_WRITE_TIMEOUT and SHUTDOWN_TIMEOUT must be positive")
	}
	if c.ShippingTableTTL < 0 {
		return fmt.Errorf("SHIPPING_TABLE_TTL must not be negative")
	}

	if c.PaymentsEnabled() && strings.TrimSpace(c.StripeWebhookSecret) == "" {
		return fmt.Errorf("STRIPE_WEBHOOK_SECRET is required when STRIPE_SECRET_KEY is set")
	}

	if c.EventsProvider == "kafka" && len(c.KafkaBrokers) == 0 {
		return fmt.Errorf("KAFKA_BROKERS is required when EVENTS_PROVIDER is kafka")
	}

	if c.EmailProvider == "resend" && strings.TrimSpace(c.ResendAPIKey) == "" {
		return fmt.Errorf("RESEND_API_KEY is required when EMAIL_PROVIDER is resend")
	}

	parsed, err := url.Parse(strings.TrimSpace(c.BaseURL))
	if err != nil || parsed.Hostname() == "" {
		return fmt.Errorf("BASE_URL must be a valid absolute URL")
	}
	if !isLocalHost(parsed.Hostname()) && !strings.EqualFold(parsed.Scheme, "https") {
		return fmt.Errorf("BASE_URL must use https outside local development")
	}

	return nil
}

func isLocalHost(host string) bool {
	switch strings.ToLower(strings.TrimSpace(host)) {
	case "localhost", "127.0.0.1", "::1":
		return true
	default:
		return false
	}
}
