package handlers

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/ankarahouse/storefront/internal/cache"
	stripewebhook "github.com/ankarahouse/storefront/internal/stripe"
)

// stripeWebhookIdempotencyTTL is how long webhook event IDs are kept for deduplication
const stripeWebhookIdempotencyTTL = 24 * time.Hour

func (h *Handlers) StripeWebhook(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	logger := h.loggerFromContext(ctx)

	if !h.config.PaymentsEnabled() {
		writeError(w, http.StatusServiceUnavailable, "Payments are not configured")
		return
	}
	r.Body = http.MaxBytesReader(w, r.Body, maxWebhookBodyBytes)

	event, err := stripewebhook.ReadWebhookEvent(r, h.config.StripeWebhookSecret)
	var tooLarge *http.MaxBytesError
	switch {
	case errors.Is(err, stripewebhook.ErrPayloadTooLarge), errors.As(err, &tooLarge):
		logger.Warn("Stripe webhook payload too large")
		writeError(w, http.StatusRequestEntityTooLarge, "Payload too large")
		return
	case err != nil:
		logger.Error("failed to read Stripe webhook payload", "error", err)
		writeError(w, http.StatusBadRequest, "Invalid webhook")
		return
	}

	if event == nil || event.ID == "" {
		logger.Error("missing Stripe event ID")
		writeError(w, http.StatusBadRequest, "Missing event ID")
		return
	}

	cacheKey := cache.WebhookKey("stripe", event.ID)
	claimed, err := h.cacheProvider.Claim(ctx, cacheKey, "processing", stripeWebhookIdempotencyTTL)
	if err != nil {
		logger.Error("failed to claim webhook event", "error", err, "event_id", event.ID)
		writeError(w, http.StatusInternalServerError, "Processing failed")
		return
	}
	if !claimed {
		logger.Info("webhook already processed", "event_id", event.ID)
		w.WriteHeader(http.StatusOK)
		return
	}

	if processErr := h.stripeRouter.Handle(ctx, event); processErr != nil {
		// Release the claim so Stripe's retry is processed.
		if err := h.cacheProvider.Delete(context.WithoutCancel(ctx), cacheKey); err != nil {
			logger.Error("failed to release webhook claim", "error", err, "event_id", event.ID)
		}
		logger.Error("failed to process Stripe webhook", "error", processErr, "type", event.Type)
		writeError(w, http.StatusInternalServerError, "Processing failed")
		return
	}

	w.WriteHeader(http.StatusOK)
}
