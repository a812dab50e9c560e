package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bna-integrations/checkout-reconciler/internal/authz"
	"github.com/bna-integrations/checkout-reconciler/internal/checkout"
	"github.com/bna-integrations/checkout-reconciler/internal/config"
	"github.com/bna-integrations/checkout-reconciler/internal/order"
)

// RegisterCheckoutRoutes mounts the checkout-token endpoint.
func RegisterCheckoutRoutes(mux *http.ServeMux, svc *checkout.Service, az authz.Client, logger *log.Logger) {
	mux.Handle("/api/checkout", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		handleCheckout(svc, az, logger, w, r)
	}), "checkout"))
}

func handleCheckout(svc *checkout.Service, az authz.Client, logger *log.Logger, w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	var req struct {
		OrderID string `json:"order_id"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "invalid JSON body"})
		return
	}
	if req.OrderID == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "order_id is required"})
		return
	}

	res, err := svc.ProcessPayment(r.Context(), req.OrderID)
	if err != nil {
		switch {
		case errors.Is(err, config.ErrGatewayNotConfigured):
			// Configuration error, distinct from API failures. Detail is
			// operator-only even here.
			resp := map[string]any{"error": checkout.CustomerMessage}
			if authz.IsOperator(r.Context(), az, r) {
				resp["detail"] = err.Error()
			}
			writeJSON(w, http.StatusServiceUnavailable, resp)
		case errors.Is(err, order.ErrNotFound):
			writeJSON(w, http.StatusNotFound, map[string]any{"error": "order not found"})
		default:
			resp := map[string]any{"error": checkout.CustomerMessage}
			if res != nil && authz.IsOperator(r.Context(), az, r) {
				resp["detail"] = res.Detail
			}
			writeJSON(w, http.StatusBadGateway, resp)
		}
		return
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"order_id": res.OrderID,
		"token":    res.Token,
	})
}
