package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/bna-integrations/checkout-reconciler/internal/config"
	"github.com/bna-integrations/checkout-reconciler/internal/identity"
	"github.com/bna-integrations/checkout-reconciler/internal/order"
)

var (
	// ErrNoToken means the provider rejected the checkout after every retry.
	ErrNoToken = errors.New("checkout rejected: no token issued")
	// ErrMalformedResponse means a 200 response was missing the token field.
	ErrMalformedResponse = errors.New("malformed checkout response")
)

const (
	searchTimeout   = 30 * time.Second
	checkoutTimeout = 45 * time.Second
)

// Client talks to the BNA API: customer search and checkout-token creation.
// It owns the idempotent-customer-creation retry ladder; the identity store
// keeps email -> remote customer id across retries and restarts.
type Client struct {
	baseURL    string
	iframeID   string
	accessKey  string
	secretKey  string
	identities identity.Store
	search     *http.Client
	checkout   *http.Client
	logger     *log.Logger
}

// New builds a client against baseURL (usually config.ResolveAPIBase of the
// configured mode; tests point it at an httptest server).
func New(baseURL string, cfg config.GatewayConfig, ids identity.Store, logger *log.Logger) *Client {
	transport := otelhttp.NewTransport(http.DefaultTransport)
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		iframeID:   cfg.IframeID,
		accessKey:  cfg.AccessKey,
		secretKey:  cfg.SecretKey,
		identities: ids,
		search:     &http.Client{Timeout: searchTimeout, Transport: transport},
		checkout:   &http.Client{Timeout: checkoutTimeout, Transport: transport},
		logger:     logger,
	}
}

// GetCheckoutToken turns an order into a checkout token.
//
// Flow: search the remote customer by billing email, fall back to the
// identity cache, pick the payload variant, POST. A non-200 that signals an
// existing/duplicate customer (and only when no customer id was used) gets
// one repair pass: re-search and retry with the id, or retry once with a
// minimal payload. Any other non-200 fails without retry.
func (c *Client) GetCheckoutToken(ctx context.Context, o *order.Order) (string, error) {
	email := strings.ToLower(strings.TrimSpace(o.Billing.Email))

	customerID, err := c.SearchCustomer(ctx, email)
	if err != nil {
		// Search failures are not fatal; the cache or inline creation covers it.
		c.logger.Printf("[Gateway] customer search failed for order %s: %v", o.ID, err)
	}
	if customerID == "" {
		if id, ok, cerr := c.identities.Get(ctx, email); cerr == nil && ok {
			customerID = id
			c.logger.Printf("[Gateway] using cached customer id for order %s", o.ID)
		}
	}

	var payload checkoutPayload
	if customerID != "" {
		payload = payloadWithCustomerID(c.iframeID, o, customerID)
	} else {
		payload = payloadWithCustomerInfo(c.iframeID, o)
	}
	usedInfo := customerID == ""

	status, body, err := c.postCheckout(ctx, o.ID, payload)
	if err != nil {
		return "", fmt.Errorf("checkout request for order %s: %w", o.ID, err)
	}

	if status != http.StatusOK {
		if usedInfo && indicatesExistingCustomer(body) {
			c.logger.Printf("[Gateway] order %s: customer already exists (status %d), repairing", o.ID, status)
			status, body, err = c.retryAfterDuplicate(ctx, o, email)
			if err != nil {
				return "", err
			}
		}
		if status != http.StatusOK {
			c.logger.Printf("[Gateway] order %s: checkout rejected status=%d body=%s", o.ID, status, body)
			return "", fmt.Errorf("%w (status %d)", ErrNoToken, status)
		}
	}

	var resp struct {
		Token      string `json:"token"`
		CustomerID string `json:"customerId"`
	}
	if jerr := json.Unmarshal(body, &resp); jerr != nil || resp.Token == "" {
		c.logger.Printf("[Gateway] order %s: 200 response without token: %s", o.ID, body)
		return "", fmt.Errorf("%w: missing token field", ErrMalformedResponse)
	}

	// A new inline-created customer may come back with its id; remember it so
	// the next checkout for this email skips creation.
	if usedInfo && resp.CustomerID != "" {
		if perr := c.identities.Put(ctx, email, resp.CustomerID); perr != nil {
			c.logger.Printf("[Gateway] order %s: failed to cache customer id: %v", o.ID, perr)
		}
	}

	c.logger.Printf("[Gateway] order %s: checkout token issued", o.ID)
	return resp.Token, nil
}

// retryAfterDuplicate is the repair pass for the customer-creation race:
// two near-simultaneous checkouts may both attempt creation, so recover
// post-hoc instead of locking around creation.
func (c *Client) retryAfterDuplicate(ctx context.Context, o *order.Order, email string) (int, []byte, error) {
	id, err := c.SearchCustomer(ctx, email)
	if err != nil {
		c.logger.Printf("[Gateway] order %s: repair search failed: %v", o.ID, err)
	}
	var payload checkoutPayload
	if id != "" {
		if perr := c.identities.Put(ctx, email, id); perr != nil {
			c.logger.Printf("[Gateway] order %s: failed to cache customer id: %v", o.ID, perr)
		}
		payload = payloadWithCustomerID(c.iframeID, o, id)
	} else {
		// Still not findable: retry once with no customer data at all.
		payload = minimalPayload(c.iframeID, o)
	}
	status, body, err := c.postCheckout(ctx, o.ID, payload)
	if err != nil {
		return 0, nil, fmt.Errorf("checkout retry for order %s: %w", o.ID, err)
	}
	return status, body, nil
}

// SearchCustomer looks up a remote customer id by email. An empty result is
// ("", nil); only transport-level problems are errors.
func (c *Client) SearchCustomer(ctx context.Context, email string) (string, error) {
	if email == "" {
		return "", nil
	}
	u := fmt.Sprintf("%s/v1/customers?email=%s", c.baseURL, url.QueryEscape(email))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return "", fmt.Errorf("build customer search request: %w", err)
	}
	req.SetBasicAuth(c.accessKey, c.secretKey)

	resp, err := c.search.Do(req)
	if err != nil {
		return "", fmt.Errorf("customer search: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)

	if resp.StatusCode == http.StatusNotFound {
		return "", nil
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("customer search status %d: %s", resp.StatusCode, body)
	}

	var out struct {
		Data []struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := json.Unmarshal(body, &out); err != nil {
		return "", fmt.Errorf("decode customer search response: %w", err)
	}
	if len(out.Data) == 0 {
		return "", nil
	}
	return out.Data[0].ID, nil
}

// postCheckout sends one checkout attempt and logs the full payload and
// response. The logging is deliberate: failed checkouts must be
// reconstructable from logs alone.
func (c *Client) postCheckout(ctx context.Context, orderID string, payload checkoutPayload) (int, []byte, error) {
	b, err := json.Marshal(payload)
	if err != nil {
		return 0, nil, fmt.Errorf("marshal checkout payload: %w", err)
	}
	c.logger.Printf("[Gateway] order %s: POST /v1/checkout payload=%s", orderID, b)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/checkout", bytes.NewReader(b))
	if err != nil {
		return 0, nil, fmt.Errorf("build checkout request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.SetBasicAuth(c.accessKey, c.secretKey)

	resp, err := c.checkout.Do(req)
	if err != nil {
		return 0, nil, fmt.Errorf("checkout POST: %w", err)
	}
	defer resp.Body.Close()
	body, _ := io.ReadAll(resp.Body)
	c.logger.Printf("[Gateway] order %s: checkout response status=%d body=%s", orderID, resp.StatusCode, body)
	return resp.StatusCode, body, nil
}

// indicatesExistingCustomer is a case-insensitive substring check on the
// provider's error body.
func indicatesExistingCustomer(body []byte) bool {
	msg := strings.ToLower(string(body))
	return strings.Contains(msg, "already exists") || strings.Contains(msg, "duplicate")
}
