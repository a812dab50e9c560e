package api

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bna-integrations/checkout-reconciler/internal/order"
)

// RegisterOrdersRoutes wires the order inspection endpoints into the mux.
// These exist for operators and for driving the flow in dev: the order
// store proper belongs to the surrounding commerce platform.
func RegisterOrdersRoutes(mux *http.ServeMux, orders order.Store, logger *log.Logger) {
	mux.Handle("/api/orders", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			handleOrdersList(orders, w, r)
		case http.MethodPost:
			handleOrderCreate(orders, logger, w, r)
		default:
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		}
	}), "orders"))

	mux.Handle("/api/orders/", otelhttp.NewHandler(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		id := strings.TrimPrefix(r.URL.Path, "/api/orders/")
		if id == "" {
			http.Error(w, "order id required", http.StatusBadRequest)
			return
		}
		o, err := orders.Get(r.Context(), id)
		if err != nil {
			if errors.Is(err, order.ErrNotFound) {
				http.Error(w, "order not found", http.StatusNotFound)
				return
			}
			http.Error(w, "order lookup failed", http.StatusInternalServerError)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"order": o})
	}), "order-get"))
}

func handleOrdersList(orders order.Store, w http.ResponseWriter, r *http.Request) {
	list, err := orders.Recent(r.Context(), 50)
	if err != nil {
		http.Error(w, "query failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"orders": list})
}

type createOrderRequest struct {
	Billing  order.Billing `json:"billing"`
	Items    []order.Item  `json:"items"`
	Total    float64       `json:"total"`
	Currency string        `json:"currency"`
}

func handleOrderCreate(orders order.Store, logger *log.Logger, w http.ResponseWriter, r *http.Request) {
	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid JSON body", http.StatusBadRequest)
		return
	}
	if req.Billing.Email == "" {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "billing.email is required"})
		return
	}
	if req.Currency == "" {
		req.Currency = "USD"
	}

	o := &order.Order{
		ID:       "web-" + strings.ReplaceAll(uuid.New().String()[:8], "-", ""),
		Status:   order.StatusCreated,
		Total:    req.Total,
		Currency: req.Currency,
		Billing:  req.Billing,
		Items:    req.Items,
		Metadata: map[string]string{},
	}
	if err := orders.Create(r.Context(), o); err != nil {
		logger.Printf("[Orders] create failed: %v", err)
		http.Error(w, "order create failed", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{"order_id": o.ID})
}
