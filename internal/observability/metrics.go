package observability

import (
	"context"

	"github.com/getsentry/sentry-go"
	"github.com/getsentry/sentry-go/attribute"
)

type meterKey struct{}

// NewRequestMeter returns a Sentry meter whose samples all carry attrs.
func NewRequestMeter(ctx context.Context, attrs ...attribute.Builder) sentry.Meter {
	meter := sentry.NewMeter(ctx).WithCtx(ctx)
	if len(attrs) > 0 {
		meter.SetAttributes(attrs...)
	}
	return meter
}

// WithMeter stores meter for MeterFromContext.
func WithMeter(ctx context.Context, meter sentry.Meter) context.Context {
	if meter == nil {
		meter = NewRequestMeter(ctx)
	}
	return context.WithValue(ctx, meterKey{}, meter)
}

// MeterFromContext returns the request meter bound to ctx, creating an
// unattributed one outside a request.
func MeterFromContext(ctx context.Context) sentry.Meter {
	if ctx == nil {
		ctx = context.Background()
	}
	if meter, _ := ctx.Value(meterKey{}).(sentry.Meter); meter != nil {
		return meter.WithCtx(ctx)
	}
	return NewRequestMeter(ctx)
}
