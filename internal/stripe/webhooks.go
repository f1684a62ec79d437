package stripe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	stripeapi "github.com/stripe/stripe-go/v84"
	"github.com/stripe/stripe-go/v84/webhook"
)

const maxWebhookBytes = 1 << 20

var (
	ErrMissingSignature = errors.New("stripe: missing signature header")
	ErrPayloadTooLarge  = errors.New("stripe: webhook payload too large")
)

// ReadWebhookEvent reads and verifies a webhook delivery. The event's API
// version may differ from the library's pinned version; only the session
// fields we read need to be present.
func ReadWebhookEvent(r *http.Request, secret string) (*stripeapi.Event, error) {
	signature := r.Header.Get("Stripe-Signature")
	if signature == "" {
		return nil, ErrMissingSignature
	}

	payload, err := io.ReadAll(io.LimitReader(r.Body, maxWebhookBytes+1))
	if err != nil {
		return nil, fmt.Errorf("stripe: read webhook body: %w", err)
	}
	if len(payload) > maxWebhookBytes {
		return nil, ErrPayloadTooLarge
	}

	event, err := webhook.ConstructEventWithOptions(payload, signature, secret, webhook.ConstructEventOptions{
		IgnoreAPIVersionMismatch: true,
	})
	if err != nil {
		return nil, fmt.Errorf("stripe: verify webhook: %w", err)
	}
	return &event, nil
}

// SessionFromEvent decodes the Checkout session carried by a
// checkout.session.* event.
func SessionFromEvent(event *stripeapi.Event) (*Session, error) {
	if event == nil || event.Data == nil || len(event.Data.Raw) == 0 {
		return nil, errors.New("stripe: event has no data")
	}

	var raw stripeapi.CheckoutSession
	if err := json.Unmarshal(event.Data.Raw, &raw); err != nil {
		return nil, fmt.Errorf("stripe: decode checkout session: %w", err)
	}
	if raw.ID == "" {
		return nil, errors.New("stripe: checkout session has no id")
	}
	return SessionFromStripe(&raw), nil
}
