package order

import (
	"context"
	"errors"
)

// Status is the lifecycle state of an order in the store.
type Status string

const (
	StatusCreated    Status = "created"
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// Terminal reports whether no further success-path mutation is allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// Metadata keys persisted on orders and consumed by webhook matching.
// MetaTransactionID and MetaBNATransactionID are two historical spellings
// of the same fact; both are written and both are matched against.
const (
	MetaCheckoutToken    = "checkout_token"
	MetaTransactionID    = "transaction_id"
	MetaBNATransactionID = "bna_transaction_id"
	MetaReferenceUUID    = "reference_uuid"
	MetaGateway          = "payment_gateway"
)

// GatewayID marks orders that went through the BNA hosted checkout.
const GatewayID = "bna_smart_payment"

// Billing is the customer profile snapshot carried by an order.
type Billing struct {
	Email     string `json:"email"`
	FirstName string `json:"first_name"`
	LastName  string `json:"last_name"`
	Phone     string `json:"phone"`
	Address   string `json:"address"`
	City      string `json:"city"`
	State     string `json:"state"`
	Postcode  string `json:"postcode"`
	Country   string `json:"country"`
}

// Item is a single order line.
type Item struct {
	Name     string  `json:"name"`
	Quantity int     `json:"quantity"`
	Price    float64 `json:"price"`
}

// Order is the store's view of an order: status, billing profile, line
// items, a key-value metadata bag and an append-only note log.
type Order struct {
	ID       string            `json:"id"`
	Status   Status            `json:"status"`
	Total    float64           `json:"total"`
	Currency string            `json:"currency"`
	Billing  Billing           `json:"billing"`
	Items    []Item            `json:"items"`
	Metadata map[string]string `json:"metadata"`
	Notes    []string          `json:"notes"`
}

// Meta returns the metadata value for key, or "" when absent.
func (o *Order) Meta(key string) string {
	if o.Metadata == nil {
		return ""
	}
	return o.Metadata[key]
}

var ErrNotFound = errors.New("order not found")

// Store is the order persistence contract. Implementations must serialize
// writes per order; callers do no in-process locking.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	// FindByMeta returns the first order whose metadata bag has key=value.
	FindByMeta(ctx context.Context, key, value string) (*Order, error)
	// RecentWithMeta returns up to limit most-recent orders carrying key.
	RecentWithMeta(ctx context.Context, key string, limit int) ([]*Order, error)
	Recent(ctx context.Context, limit int) ([]*Order, error)
	UpdateStatus(ctx context.Context, id string, status Status) error
	SetMeta(ctx context.Context, id, key, value string) error
	AppendNote(ctx context.Context, id, note string) error
}
