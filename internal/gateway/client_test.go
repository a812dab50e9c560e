package gateway

import (
	"context"
	"encoding/json"
	"io"
	"log"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bna-integrations/checkout-reconciler/internal/config"
	memstore "github.com/bna-integrations/checkout-reconciler/internal/storage/memory"
)

// fakeProvider scripts the BNA API for a single test: searchIDs are returned
// in sequence by GET /v1/customers, checkoutFn decides each POST /v1/checkout.
type fakeProvider struct {
	mu        sync.Mutex
	searchIDs []string // one entry per search call; "" means no customer found
	searches  int
	checkouts []checkoutPayload
	checkout  func(n int, p checkoutPayload) (int, string)
}

func (f *fakeProvider) handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/customers", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		id := ""
		if f.searches < len(f.searchIDs) {
			id = f.searchIDs[f.searches]
		}
		f.searches++
		if id == "" {
			_, _ = w.Write([]byte(`{"data":[]}`))
			return
		}
		_, _ = w.Write([]byte(`{"data":[{"id":"` + id + `"}]}`))
	})
	mux.HandleFunc("/v1/checkout", func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()
		body, _ := io.ReadAll(r.Body)
		var p checkoutPayload
		_ = json.Unmarshal(body, &p)
		f.checkouts = append(f.checkouts, p)
		status, resp := f.checkout(len(f.checkouts), p)
		w.WriteHeader(status)
		_, _ = w.Write([]byte(resp))
	})
	return mux
}

func newTestClient(t *testing.T, f *fakeProvider) (*Client, *memstore.IdentityStore) {
	t.Helper()
	srv := httptest.NewServer(f.handler())
	t.Cleanup(srv.Close)
	ids := memstore.NewIdentityStore()
	cfg := config.GatewayConfig{IframeID: "iframe-1", AccessKey: "ak", SecretKey: "sk"}
	return New(srv.URL, cfg, ids, log.New(io.Discard, "", 0)), ids
}

func TestGetCheckoutTokenKnownCustomer(t *testing.T) {
	f := &fakeProvider{
		searchIDs: []string{"cus_42"},
		checkout: func(n int, p checkoutPayload) (int, string) {
			return http.StatusOK, `{"token":"tok_known"}`
		},
	}
	client, _ := newTestClient(t, f)

	token, err := client.GetCheckoutToken(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, "tok_known", token)

	require.Len(t, f.checkouts, 1)
	assert.Equal(t, "cus_42", f.checkouts[0].CustomerID)
	assert.Nil(t, f.checkouts[0].CustomerInfo)
	assert.False(t, f.checkouts[0].SaveCustomer)
}

func TestGetCheckoutTokenCachesNewCustomerID(t *testing.T) {
	f := &fakeProvider{
		searchIDs: []string{""},
		checkout: func(n int, p checkoutPayload) (int, string) {
			return http.StatusOK, `{"token":"tok_new","customerId":"cus_new"}`
		},
	}
	client, ids := newTestClient(t, f)

	token, err := client.GetCheckoutToken(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, "tok_new", token)

	require.Len(t, f.checkouts, 1)
	require.NotNil(t, f.checkouts[0].CustomerInfo)
	assert.True(t, f.checkouts[0].SaveCustomer)

	id, ok, err := ids.Get(context.Background(), "jane.doe@example.com")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "cus_new", id)
}

func TestGetCheckoutTokenRecoversFromCreationRace(t *testing.T) {
	// First search sees nothing, the inline creation collides with a customer
	// created in between, and the repair search finds it.
	f := &fakeProvider{
		searchIDs: []string{"", "cus_9"},
		checkout: func(n int, p checkoutPayload) (int, string) {
			if n == 1 {
				return http.StatusConflict, `{"message":"Customer already exists"}`
			}
			return http.StatusOK, `{"token":"tok_repaired"}`
		},
	}
	client, ids := newTestClient(t, f)

	token, err := client.GetCheckoutToken(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, "tok_repaired", token)

	require.Len(t, f.checkouts, 2)
	assert.NotNil(t, f.checkouts[0].CustomerInfo)
	assert.Equal(t, "cus_9", f.checkouts[1].CustomerID)
	assert.Nil(t, f.checkouts[1].CustomerInfo)

	id, ok, _ := ids.Get(context.Background(), "jane.doe@example.com")
	assert.True(t, ok)
	assert.Equal(t, "cus_9", id)
}

func TestGetCheckoutTokenDuplicateFallsBackToMinimalPayload(t *testing.T) {
	// Provider insists the customer exists but the search cannot find it
	// either; the last rung retries once with no customer data at all.
	f := &fakeProvider{
		searchIDs: []string{"", ""},
		checkout: func(n int, p checkoutPayload) (int, string) {
			if n == 1 {
				return http.StatusBadRequest, `{"message":"duplicate customer"}`
			}
			return http.StatusOK, `{"token":"tok_minimal"}`
		},
	}
	client, _ := newTestClient(t, f)

	token, err := client.GetCheckoutToken(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, "tok_minimal", token)

	require.Len(t, f.checkouts, 2)
	assert.Empty(t, f.checkouts[1].CustomerID)
	assert.Nil(t, f.checkouts[1].CustomerInfo)
	assert.False(t, f.checkouts[1].SaveCustomer)
}

func TestGetCheckoutTokenNoRepairWhenCustomerIDWasUsed(t *testing.T) {
	// A duplicate-style error after sending an explicit customer id is not a
	// race we can repair; it must fail without a second attempt.
	f := &fakeProvider{
		searchIDs: []string{"cus_42"},
		checkout: func(n int, p checkoutPayload) (int, string) {
			return http.StatusConflict, `{"message":"Customer already exists"}`
		},
	}
	client, _ := newTestClient(t, f)

	_, err := client.GetCheckoutToken(context.Background(), sampleOrder())
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Len(t, f.checkouts, 1)
}

func TestGetCheckoutTokenRejectedWithoutDuplicateSignal(t *testing.T) {
	f := &fakeProvider{
		searchIDs: []string{""},
		checkout: func(n int, p checkoutPayload) (int, string) {
			return http.StatusUnprocessableEntity, `{"message":"invalid currency"}`
		},
	}
	client, _ := newTestClient(t, f)

	_, err := client.GetCheckoutToken(context.Background(), sampleOrder())
	assert.ErrorIs(t, err, ErrNoToken)
	assert.Len(t, f.checkouts, 1)
}

func TestGetCheckoutTokenMissingTokenField(t *testing.T) {
	f := &fakeProvider{
		searchIDs: []string{""},
		checkout: func(n int, p checkoutPayload) (int, string) {
			return http.StatusOK, `{"customerId":"cus_x"}`
		},
	}
	client, _ := newTestClient(t, f)

	_, err := client.GetCheckoutToken(context.Background(), sampleOrder())
	assert.ErrorIs(t, err, ErrMalformedResponse)
}

func TestGetCheckoutTokenUsesIdentityCacheWhenSearchEmpty(t *testing.T) {
	f := &fakeProvider{
		searchIDs: []string{""},
		checkout: func(n int, p checkoutPayload) (int, string) {
			return http.StatusOK, `{"token":"tok_cached"}`
		},
	}
	client, ids := newTestClient(t, f)
	require.NoError(t, ids.Put(context.Background(), "jane.doe@example.com", "cus_cached"))

	token, err := client.GetCheckoutToken(context.Background(), sampleOrder())
	require.NoError(t, err)
	assert.Equal(t, "tok_cached", token)

	require.Len(t, f.checkouts, 1)
	assert.Equal(t, "cus_cached", f.checkouts[0].CustomerID)
}

func TestSearchCustomerEmptyEmailSkipsRequest(t *testing.T) {
	f := &fakeProvider{checkout: func(int, checkoutPayload) (int, string) { return 500, "" }}
	client, _ := newTestClient(t, f)

	id, err := client.SearchCustomer(context.Background(), "")
	require.NoError(t, err)
	assert.Empty(t, id)
	assert.Zero(t, f.searches)
}
