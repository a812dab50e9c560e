package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bna-integrations/checkout-reconciler/internal/events"
	"github.com/bna-integrations/checkout-reconciler/internal/matching"
	"github.com/bna-integrations/checkout-reconciler/internal/order"
	"github.com/bna-integrations/checkout-reconciler/internal/reconcile"
	"github.com/bna-integrations/checkout-reconciler/internal/webhook"
)

// WebhookHandler receives BNA transaction notifications and drives matching
// and reconciliation.
type WebhookHandler struct {
	Matcher    *matching.Matcher
	Reconciler *reconcile.Reconciler
	Producer   *events.Producer // nil disables event publishing
	Topic      string
	Logger     *log.Logger
}

// RegisterWebhookRoutes mounts the BNA webhook endpoints.
func RegisterWebhookRoutes(mux *http.ServeMux, h *WebhookHandler) {
	mux.Handle("/webhooks/bna", otelhttp.NewHandler(http.HandlerFunc(h.handle), "bna-webhook"))
	mux.Handle("/api/webhooks/bna", otelhttp.NewHandler(http.HandlerFunc(h.handle), "bna-webhook"))
}

// handle implements the provider contract: 400 only for structurally
// invalid payloads; once the record validates, always 200 — a local
// matching or reconciliation failure must not trigger provider retries.
func (h *WebhookHandler) handle(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "unreadable body"})
		return
	}

	event, tx, err := webhook.Parse(body)
	if err != nil {
		h.Logger.Printf("[Webhook] rejected payload: %v body=%s", err, body)
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": err.Error()})
		return
	}

	h.Logger.Printf("[Webhook] received event=%q transaction=%s status=%s referenceUUID=%s",
		event, tx.ID, tx.Status, tx.ReferenceUUID)

	ord, strategy, err := h.Matcher.Find(r.Context(), tx.ReferenceUUID)
	if err != nil {
		if errors.Is(err, order.ErrNotFound) {
			h.Logger.Printf("[Webhook] no matching order for referenceUUID=%s transaction=%s, dropping", tx.ReferenceUUID, tx.ID)
		} else {
			h.Logger.Printf("[Webhook] order lookup failed for referenceUUID=%s: %v", tx.ReferenceUUID, err)
		}
		writeJSON(w, http.StatusOK, map[string]any{"message": "OK"})
		return
	}

	outcome, err := h.Reconciler.Apply(r.Context(), event, tx, ord)
	if err != nil {
		// Local inconsistency: ACK anyway, keep it discoverable via logs.
		h.Logger.Printf("[Webhook] reconciliation error order=%s transaction=%s: %v", ord.ID, tx.ID, err)
		writeJSON(w, http.StatusOK, map[string]any{"message": "OK"})
		return
	}

	h.Logger.Printf("[Webhook] order=%s matched via %s, outcome=%s", ord.ID, strategy, outcome)
	h.publishOutcome(r.Context(), outcome, ord, tx)

	writeJSON(w, http.StatusOK, map[string]any{"message": "OK"})
}

func (h *WebhookHandler) publishOutcome(ctx context.Context, outcome reconcile.Outcome, ord *order.Order, tx webhook.Transaction) {
	if h.Producer == nil {
		return
	}
	var eventType string
	switch outcome {
	case reconcile.OutcomePaid:
		eventType = events.TypePaymentApproved
	case reconcile.OutcomeFailed:
		eventType = events.TypePaymentDeclined
	case reconcile.OutcomeCancelled:
		eventType = events.TypePaymentCancelled
	default:
		return
	}
	evt := events.Envelope{
		EventType:    eventType,
		EventVersion: "v1",
		AggregateID:  ord.ID,
		Data: map[string]any{
			"orderId":       ord.ID,
			"transactionId": tx.ID,
			"status":        tx.Status,
			"total":         ord.Total,
			"currency":      ord.Currency,
			"email":         ord.Billing.Email,
		},
	}
	if err := h.Producer.Publish(ctx, h.Topic, ord.ID, evt); err != nil {
		h.Logger.Printf("[Webhook] failed to publish %s for order %s: %v", eventType, ord.ID, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, body map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}
