package matching

import (
	"context"
	"errors"
	"log"

	"github.com/bna-integrations/checkout-reconciler/internal/order"
)

// Matcher resolves a webhook's referenceUUID to a locally known order. The
// provider may echo back any identifier we stored at checkout time, so a
// fixed priority order of metadata lookups is tried before a bounded scan.
type Matcher struct {
	orders    order.Store
	scanLimit int
	logger    *log.Logger
}

// DefaultScanLimit bounds the recent-order fallback scan. The constant is a
// tunable safety valve, not a contract.
const DefaultScanLimit = 20

func New(orders order.Store, scanLimit int, logger *log.Logger) *Matcher {
	if scanLimit <= 0 {
		scanLimit = DefaultScanLimit
	}
	return &Matcher{orders: orders, scanLimit: scanLimit, logger: logger}
}

// Indexed lookup strategies in priority order. Transaction-id fields win
// over the checkout token: the token exists before a transaction id is
// known, so the id fields are the stronger signal.
var strategies = []struct {
	Name string
	Key  string
}{
	{"transaction_id", order.MetaTransactionID},
	{"bna_transaction_id", order.MetaBNATransactionID},
	{"checkout_token", order.MetaCheckoutToken},
	{"reference_uuid", order.MetaReferenceUUID},
}

// Find returns the matched order and the name of the strategy that matched.
// Every attempted strategy is logged so silent mismatches can be diagnosed.
func (m *Matcher) Find(ctx context.Context, referenceUUID string) (*order.Order, string, error) {
	if referenceUUID == "" {
		return nil, "", order.ErrNotFound
	}

	for _, s := range strategies {
		o, err := m.orders.FindByMeta(ctx, s.Key, referenceUUID)
		if err == nil {
			m.logger.Printf("[Matcher] matched order %s via %s", o.ID, s.Name)
			return o, s.Name, nil
		}
		if !errors.Is(err, order.ErrNotFound) {
			return nil, "", err
		}
		m.logger.Printf("[Matcher] no match via %s for %s", s.Name, referenceUUID)
	}

	// Fallback: the token may have been issued before any transaction id was
	// stored, so compare tokens directly across the most-recent orders.
	m.logger.Printf("[Matcher] falling back to recent-token scan (limit %d) for %s", m.scanLimit, referenceUUID)
	recent, err := m.orders.RecentWithMeta(ctx, order.MetaCheckoutToken, m.scanLimit)
	if err != nil {
		return nil, "", err
	}
	for _, o := range recent {
		if o.Meta(order.MetaCheckoutToken) == referenceUUID {
			m.logger.Printf("[Matcher] matched order %s via recent_token_scan", o.ID)
			return o, "recent_token_scan", nil
		}
	}

	m.logger.Printf("[Matcher] no order found for referenceUUID=%s", referenceUUID)
	return nil, "", order.ErrNotFound
}
