// Package cache stores short-lived keys, mainly for webhook idempotency.
package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

var ErrNotFound = errors.New("key not found")

type Provider interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key string, value string, ttl time.Duration) error
	// Claim stores key only when it is absent and reports whether this call
	// stored it.
	Claim(ctx context.Context, key string, value string, ttl time.Duration) (bool, error)
	Delete(ctx context.Context, key string) error
	Close() error
}

type Config struct {
	Provider              string
	RedisConnectionString string
	// KeyPrefix namespaces every key so several deployments can share one
	// Redis database.
	KeyPrefix string
}

func NewProvider(cfg Config) (Provider, error) {
	var (
		provider Provider
		err      error
	)
	switch strings.ToLower(strings.TrimSpace(cfg.Provider)) {
	case "memory", "":
		provider, err = NewMemoryProvider()
	case "redis":
		provider, err = NewRedisProvider(cfg.RedisConnectionString)
	default:
		return nil, fmt.Errorf("unsupported cache provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return WithPrefix(provider, cfg.KeyPrefix), nil
}

// WithPrefix returns provider with prefix prepended to every key.
func WithPrefix(provider Provider, prefix string) Provider {
	if prefix == "" {
		return provider
	}
	return &prefixed{next: provider, prefix: prefix}
}

type prefixed struct {
	next   Provider
	prefix string
}

func (p *prefixed) Get(ctx context.Context, key string) (string, error) {
	return p.next.Get(ctx, p.prefix+key)
}

func (p *prefixed) Set(ctx context.Context, key string, value string, ttl time.Duration) error {
	return p.next.Set(ctx, p.prefix+key, value, ttl)
}

func (p *prefixed) Claim(ctx context.Context, key string, value string, ttl time.Duration) (bool, error) {
	return p.next.Claim(ctx, p.prefix+key, value, ttl)
}

func (p *prefixed) Delete(ctx context.Context, key string) error {
	return p.next.Delete(ctx, p.prefix+key)
}

func (p *prefixed) Close() error {
	return p.next.Close()
}

// WebhookKey identifies one delivery of a provider event.
func WebhookKey(source, eventID string) string {
	return "webhook:" + source + ":" + eventID
}
