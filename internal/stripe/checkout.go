// Package stripe wraps the Stripe Checkout API used to collect order payments.
package stripe

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/stripe/stripe-go/v84"
)

// Session states as reported by Stripe.
const (
	SessionPaid    = "paid"
	SessionUnpaid  = "unpaid"
	SessionExpired = "expired"
)

// Gateway creates and inspects Checkout sessions.
type Gateway struct {
	client   *stripe.Client
	currency string
	baseURL  string
}

// NewGateway builds a client for secretKey. A nil httpClient uses the
// library default.
func NewGateway(secretKey, currency, baseURL string, httpClient *http.Client) *Gateway {
	var opts []stripe.ClientOption
	if httpClient != nil {
		opts = append(opts, stripe.WithBackends(stripe.NewBackendsWithConfig(&stripe.BackendConfig{
			HTTPClient: httpClient,
		})))
	}
	return &Gateway{
		client:   stripe.NewClient(secretKey, opts...),
		currency: strings.ToLower(currency),
		baseURL:  strings.TrimRight(baseURL, "/"),
	}
}

// CheckoutParams describes a single-charge session for one order.
type CheckoutParams struct {
	OrderID       uuid.UUID
	OrderNumber   string
	AmountMinor   int64
	CustomerEmail string
}

// Session is the subset of a Checkout session the service relies on.
type Session struct {
	ID            string
	URL           string
	AmountMinor   int64
	Currency      string
	Status        string
	PaymentStatus string
	OrderID       uuid.UUID
}

// Settled reports whether the session collected its payment.
func (s *Session) Settled() bool {
	return s.PaymentStatus == SessionPaid
}

func (s *Session) Expired() bool {
	return s.Status == SessionExpired
}

// CreateCheckoutSession opens a hosted payment page charging the order total.
func (g *Gateway) CreateCheckoutSession(ctx context.Context, params CheckoutParams) (*Session, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if params.AmountMinor <= 0 {
		return nil, fmt.Errorf("amount must be positive")
	}

	orderURL := fmt.Sprintf("%s/orders/%s", g.baseURL, params.OrderID)
	sessionParams := &stripe.CheckoutSessionCreateParams{
		Mode:              stripe.String(string(stripe.CheckoutSessionModePayment)),
		SuccessURL:        stripe.String(orderURL + "?reference={CHECKOUT_SESSION_ID}"),
		CancelURL:         stripe.String(orderURL + "?cancelled=1"),
		ClientReferenceID: stripe.String(params.OrderID.String()),
		LineItems: []*stripe.CheckoutSessionCreateLineItemParams{
			{
				PriceData: &stripe.CheckoutSessionCreateLineItemPriceDataParams{
					Currency: stripe.String(g.currency),
					ProductData: &stripe.CheckoutSessionCreateLineItemPriceDataProductDataParams{
						Name: stripe.String("Order " + params.OrderNumber),
					},
					UnitAmount: stripe.Int64(params.AmountMinor),
				},
				Quantity: stripe.Int64(1),
			},
		},
		Metadata: map[string]string{
			"order_id":     params.OrderID.String(),
			"order_number": params.OrderNumber,
		},
	}
	if params.CustomerEmail != "" {
		sessionParams.CustomerEmail = stripe.String(params.CustomerEmail)
	}

	sess, err := g.client.V1CheckoutSessions.Create(ctx, sessionParams)
	if err != nil {
		return nil, fmt.Errorf("failed to create checkout session: %w", err)
	}

	return SessionFromStripe(sess), nil
}

// RetrieveSession fetches the current state of a session by id.
func (g *Gateway) RetrieveSession(ctx context.Context, sessionID string) (*Session, error) {
	if ctx == nil {
		return nil, fmt.Errorf("context is required")
	}
	if sessionID == "" {
		return nil, fmt.Errorf("session id is required")
	}

	sess, err := g.client.V1CheckoutSessions.Retrieve(ctx, sessionID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve checkout session: %w", err)
	}

	return SessionFromStripe(sess), nil
}

// SessionFromStripe flattens an API object. A missing or malformed order_id
// leaves OrderID as uuid.Nil.
func SessionFromStripe(sess *stripe.CheckoutSession) *Session {
	if sess == nil {
		return nil
	}
	out := &Session{
		ID:            sess.ID,
		URL:           sess.URL,
		AmountMinor:   sess.AmountTotal,
		Currency:      string(sess.Currency),
		Status:        string(sess.Status),
		PaymentStatus: string(sess.PaymentStatus),
	}
	if raw, ok := sess.Metadata["order_id"]; ok {
		if id, err := uuid.Parse(raw); err == nil {
			out.OrderID = id
		}
	}
	if out.OrderID == uuid.Nil && sess.ClientReferenceID != "" {
		if id, err := uuid.Parse(sess.ClientReferenceID); err == nil {
			out.OrderID = id
		}
	}
	return out
}
