// Package email sends transactional mail for orders and event tickets.
package email

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
)

type Provider interface {
	SendEmail(ctx context.Context, email *Email) error
}

type Email struct {
	To      string
	Subject string
	Text    string
	HTML    string
	// Category names the template that produced the message. Providers that
	// support tagging attach it for delivery analytics.
	Category string
}

type Config struct {
	Provider   string
	APIKey     string
	From       string
	HTTPClient *http.Client
}

// NewProvider picks the delivery backend. Without an API key mail is only
// logged, which keeps local development free of outbound calls.
func NewProvider(config Config, logger *slog.Logger) (Provider, error) {
	switch strings.ToLower(strings.TrimSpace(config.Provider)) {
	case "", "log":
		if config.APIKey != "" {
			return NewResendProvider(config.APIKey, config.From, config.HTTPClient), nil
		}
		return NewLogProvider(logger), nil
	case "resend":
		if config.APIKey == "" {
			return nil, fmt.Errorf("RESEND_API_KEY is required for the resend provider")
		}
		return NewResendProvider(config.APIKey, config.From, config.HTTPClient), nil
	default:
		return nil, fmt.Errorf("email provider must be either 'resend' or 'log'")
	}
}

// LogProvider writes outgoing mail to the logger instead of delivering it.
type LogProvider struct {
	logger *slog.Logger
}

func NewLogProvider(logger *slog.Logger) *LogProvider {
	if logger == nil {
		logger = slog.Default()
	}
	return &LogProvider{logger: logger}
}

func (p *LogProvider) SendEmail(ctx context.Context, email *Email) error {
	if email == nil {
		return fmt.Errorf("email is required")
	}
	p.logger.InfoContext(ctx, "email not delivered (log provider)",
		"recipient_email", email.To,
		"subject", email.Subject,
		"category", email.Category,
	)
	return nil
}
