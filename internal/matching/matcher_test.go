package matching

import (
	"context"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bna-integrations/checkout-reconciler/internal/order"
	memstore "github.com/bna-integrations/checkout-reconciler/internal/storage/memory"
)

func newMatcher(orders order.Store) *Matcher {
	return New(orders, 0, log.New(io.Discard, "", 0))
}

func seedOrder(t *testing.T, s order.Store, id string, meta map[string]string) {
	t.Helper()
	require.NoError(t, s.Create(context.Background(), &order.Order{
		ID:       id,
		Status:   order.StatusPending,
		Metadata: meta,
	}))
}

func TestFindByTransactionID(t *testing.T) {
	s := memstore.NewOrderStore()
	seedOrder(t, s, "ord-1", map[string]string{order.MetaTransactionID: "tx-1"})

	o, strategy, err := newMatcher(s).Find(context.Background(), "tx-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", o.ID)
	assert.Equal(t, "transaction_id", strategy)
}

func TestTransactionIDWinsOverCheckoutToken(t *testing.T) {
	// Two orders carry the same value under different keys; the id field is
	// the stronger signal and must win.
	s := memstore.NewOrderStore()
	seedOrder(t, s, "ord-token", map[string]string{order.MetaCheckoutToken: "ref-x"})
	seedOrder(t, s, "ord-tx", map[string]string{order.MetaTransactionID: "ref-x"})

	o, strategy, err := newMatcher(s).Find(context.Background(), "ref-x")
	require.NoError(t, err)
	assert.Equal(t, "ord-tx", o.ID)
	assert.Equal(t, "transaction_id", strategy)
}

func TestFindByCheckoutToken(t *testing.T) {
	s := memstore.NewOrderStore()
	seedOrder(t, s, "ord-1", map[string]string{order.MetaCheckoutToken: "tok-1"})

	o, strategy, err := newMatcher(s).Find(context.Background(), "tok-1")
	require.NoError(t, err)
	assert.Equal(t, "ord-1", o.ID)
	assert.Equal(t, "checkout_token", strategy)
}

// unindexedStore simulates a backend whose metadata lookups cannot be used,
// forcing the matcher onto the recent-token scan.
type unindexedStore struct {
	order.Store
}

func (s unindexedStore) FindByMeta(ctx context.Context, key, value string) (*order.Order, error) {
	return nil, order.ErrNotFound
}

func TestFallbackRecentTokenScan(t *testing.T) {
	s := memstore.NewOrderStore()
	seedOrder(t, s, "ord-old", map[string]string{order.MetaCheckoutToken: "tok-old"})
	seedOrder(t, s, "ord-new", map[string]string{order.MetaCheckoutToken: "tok-new"})

	o, strategy, err := newMatcher(unindexedStore{s}).Find(context.Background(), "tok-new")
	require.NoError(t, err)
	assert.Equal(t, "ord-new", o.ID)
	assert.Equal(t, "recent_token_scan", strategy)
}

func TestFallbackScanIsBounded(t *testing.T) {
	s := memstore.NewOrderStore()
	seedOrder(t, s, "ord-buried", map[string]string{order.MetaCheckoutToken: "tok-buried"})
	for i := 0; i < DefaultScanLimit; i++ {
		seedOrder(t, s, "ord-filler-"+string(rune('a'+i)), map[string]string{order.MetaCheckoutToken: "tok-filler"})
	}

	// The target sits just past the scan window, so it must not be found.
	_, _, err := newMatcher(unindexedStore{s}).Find(context.Background(), "tok-buried")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestFindNotFound(t *testing.T) {
	s := memstore.NewOrderStore()
	seedOrder(t, s, "ord-1", map[string]string{order.MetaCheckoutToken: "tok-1"})

	_, _, err := newMatcher(s).Find(context.Background(), "unknown-ref")
	assert.ErrorIs(t, err, order.ErrNotFound)
}

func TestFindEmptyReference(t *testing.T) {
	_, _, err := newMatcher(memstore.NewOrderStore()).Find(context.Background(), "")
	assert.ErrorIs(t, err, order.ErrNotFound)
}
