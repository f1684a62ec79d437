package observability

import (
	"net/http"
	"time"

	sentryhttpclient "github.com/getsentry/sentry-go/httpclient"
)

// Payment and mail APIs receive sentry-trace and baggage headers so their
// calls join the storefront transaction.
var tracePropagationTargets = []string{
	"api.stripe.com",
	"api.resend.com",
}

// NewHTTPClient returns the client shared by the Stripe and Resend SDKs.
func NewHTTPClient(timeout time.Duration) *http.Client {
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.MaxIdleConnsPerHost = 8

	return &http.Client{
		Timeout: timeout,
		Transport: sentryhttpclient.NewSentryRoundTripper(
			transport,
			sentryhttpclient.WithTracePropagationTargets(tracePropagationTargets),
		),
	}
}
