package checkout

import (
	"context"
	"fmt"
	"log"

	"github.com/bna-integrations/checkout-reconciler/internal/config"
	"github.com/bna-integrations/checkout-reconciler/internal/order"
)

// CustomerMessage is the only failure text an unauthenticated customer ever
// sees; internal detail goes to logs and operator responses.
const CustomerMessage = "Payment could not be started. Please try again or choose another payment method."

// TokenSource issues a checkout token for an order (internal/gateway in
// production, fakes in tests).
type TokenSource interface {
	GetCheckoutToken(ctx context.Context, o *order.Order) (string, error)
}

// Result carries the checkout outcome split by audience: Message is
// customer-safe, Detail is for privileged operators only.
type Result struct {
	OrderID string `json:"order_id"`
	Token   string `json:"token,omitempty"`
	Message string `json:"message"`
	Detail  string `json:"detail,omitempty"`
}

// Service drives the create-token-for-this-order flow.
type Service struct {
	gateway config.GatewayConfig
	orders  order.Store
	tokens  TokenSource
	logger  *log.Logger
}

func New(gw config.GatewayConfig, orders order.Store, tokens TokenSource, logger *log.Logger) *Service {
	return &Service{gateway: gw, orders: orders, tokens: tokens, logger: logger}
}

// ProcessPayment obtains a checkout token for the order, tags the order with
// it and moves the order to pending. Configuration is validated before any
// network call; a missing credential fails fast with
// config.ErrGatewayNotConfigured rather than an API error.
func (s *Service) ProcessPayment(ctx context.Context, orderID string) (*Result, error) {
	if err := s.gateway.Validate(); err != nil {
		s.logger.Printf("[Checkout] order %s rejected: %v", orderID, err)
		return nil, err
	}

	o, err := s.orders.Get(ctx, orderID)
	if err != nil {
		return nil, err
	}

	token, err := s.tokens.GetCheckoutToken(ctx, o)
	if err != nil {
		s.logger.Printf("[Checkout] order %s: token request failed: %v", orderID, err)
		return &Result{
			OrderID: orderID,
			Message: CustomerMessage,
			Detail:  err.Error(),
		}, err
	}

	if err := s.orders.SetMeta(ctx, orderID, order.MetaCheckoutToken, token); err != nil {
		return nil, fmt.Errorf("store checkout token on order %s: %w", orderID, err)
	}
	if err := s.orders.SetMeta(ctx, orderID, order.MetaGateway, order.GatewayID); err != nil {
		return nil, fmt.Errorf("store gateway marker on order %s: %w", orderID, err)
	}
	if err := s.orders.UpdateStatus(ctx, orderID, order.StatusPending); err != nil {
		return nil, fmt.Errorf("move order %s to pending: %w", orderID, err)
	}
	if err := s.orders.AppendNote(ctx, orderID, "BNA checkout session opened, awaiting payment"); err != nil {
		return nil, err
	}

	s.logger.Printf("[Checkout] order %s: checkout token stored, order pending", orderID)
	return &Result{OrderID: orderID, Token: token, Message: "ok"}, nil
}
