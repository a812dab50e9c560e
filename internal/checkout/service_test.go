package checkout

import (
	"context"
	"errors"
	"io"
	"log"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bna-integrations/checkout-reconciler/internal/config"
	"github.com/bna-integrations/checkout-reconciler/internal/order"
	memstore "github.com/bna-integrations/checkout-reconciler/internal/storage/memory"
)

type fakeTokens struct {
	token string
	err   error
	calls int
}

func (f *fakeTokens) GetCheckoutToken(ctx context.Context, o *order.Order) (string, error) {
	f.calls++
	return f.token, f.err
}

func validGateway() config.GatewayConfig {
	return config.GatewayConfig{Mode: "development", IframeID: "i", AccessKey: "a", SecretKey: "s"}
}

func newService(gw config.GatewayConfig, s order.Store, tokens TokenSource) *Service {
	return New(gw, s, tokens, log.New(io.Discard, "", 0))
}

func TestProcessPaymentSuccess(t *testing.T) {
	s := memstore.NewOrderStore()
	require.NoError(t, s.Create(context.Background(), &order.Order{ID: "ord-1", Status: order.StatusCreated}))
	tokens := &fakeTokens{token: "tok-1"}

	res, err := newService(validGateway(), s, tokens).ProcessPayment(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, "tok-1", res.Token)
	assert.Equal(t, "ord-1", res.OrderID)

	got, err := s.Get(context.Background(), "ord-1")
	require.NoError(t, err)
	assert.Equal(t, order.StatusPending, got.Status)
	assert.Equal(t, "tok-1", got.Meta(order.MetaCheckoutToken))
	assert.Equal(t, order.GatewayID, got.Meta(order.MetaGateway))
	require.Len(t, got.Notes, 1)
}

func TestProcessPaymentMissingCredentialsFailsFast(t *testing.T) {
	s := memstore.NewOrderStore()
	require.NoError(t, s.Create(context.Background(), &order.Order{ID: "ord-1", Status: order.StatusCreated}))
	tokens := &fakeTokens{token: "tok-1"}

	gw := validGateway()
	gw.SecretKey = ""
	_, err := newService(gw, s, tokens).ProcessPayment(context.Background(), "ord-1")
	assert.ErrorIs(t, err, config.ErrGatewayNotConfigured)
	assert.Zero(t, tokens.calls, "no network call on configuration error")

	got, _ := s.Get(context.Background(), "ord-1")
	assert.Equal(t, order.StatusCreated, got.Status, "order untouched")
}

func TestProcessPaymentUnknownOrder(t *testing.T) {
	tokens := &fakeTokens{token: "tok-1"}
	_, err := newService(validGateway(), memstore.NewOrderStore(), tokens).ProcessPayment(context.Background(), "missing")
	assert.ErrorIs(t, err, order.ErrNotFound)
	assert.Zero(t, tokens.calls)
}

func TestProcessPaymentTokenFailureSplitsAudience(t *testing.T) {
	s := memstore.NewOrderStore()
	require.NoError(t, s.Create(context.Background(), &order.Order{ID: "ord-1", Status: order.StatusCreated}))
	tokens := &fakeTokens{err: errors.New("checkout rejected: no token issued (status 422)")}

	res, err := newService(validGateway(), s, tokens).ProcessPayment(context.Background(), "ord-1")
	require.Error(t, err)
	require.NotNil(t, res)
	assert.Equal(t, CustomerMessage, res.Message)
	assert.Contains(t, res.Detail, "status 422")
	assert.NotContains(t, res.Message, "422", "customer text carries no internals")

	got, _ := s.Get(context.Background(), "ord-1")
	assert.Equal(t, order.StatusCreated, got.Status, "failed token request leaves order untouched")
	assert.Empty(t, got.Meta(order.MetaCheckoutToken))
}
