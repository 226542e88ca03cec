// Package stripe implements the payment gateway boundary against the Stripe
// REST API: payment intents, refunds, and inbound webhook verification.
package stripe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/addara/shop-api/internal/domain/payment"
)

// DefaultBaseURL is the production Stripe API endpoint.
const DefaultBaseURL = "https://api.stripe.com"

var cents = decimal.NewFromInt(100)

var _ payment.Gateway = (*Client)(nil)

// Client is a payment.Gateway backed by Stripe. Amounts are converted to
// integer cents on the wire.
type Client struct {
	httpClient *http.Client
	baseURL    string
	secretKey  string
}

// NewClient creates a Stripe client using the given secret key. An empty
// baseURL selects the production endpoint; tests point it at a local server.
func NewClient(secretKey, baseURL string) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	return &Client{
		httpClient: &http.Client{Timeout: 15 * time.Second},
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		secretKey:  secretKey,
	}
}

// CreateIntent creates a payment intent for the given amount and currency.
// Metadata is attached to the intent so webhook events can be routed back to
// the order.
func (c *Client) CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*payment.Intent, error) {
	form := url.Values{}
	form.Set("amount", strconv.FormatInt(toCents(amount), 10))
	form.Set("currency", currency)
	for k, v := range metadata {
		form.Set("metadata["+k+"]", v)
	}

	var resp struct {
		ID           string `json:"id"`
		ClientSecret string `json:"client_secret"`
	}
	if err := c.post(ctx, "/v1/payment_intents", form, "", &resp); err != nil {
		return nil, errors.Wrap(err, "create payment intent")
	}

	return &payment.Intent{ID: resp.ID, ClientSecret: resp.ClientSecret}, nil
}

// Refund refunds the given amount against a payment intent and returns the
// refund id. The idempotency key is forwarded to Stripe so a retried call
// creates at most one refund.
func (c *Client) Refund(ctx context.Context, transactionID string, amount decimal.Decimal, idempotencyKey string) (string, error) {
	form := url.Values{}
	form.Set("payment_intent", transactionID)
	form.Set("amount", strconv.FormatInt(toCents(amount), 10))

	var resp struct {
		ID string `json:"id"`
	}
	if err := c.post(ctx, "/v1/refunds", form, idempotencyKey, &resp); err != nil {
		return "", errors.Wrapf(err, "refund %s", transactionID)
	}
	return resp.ID, nil
}

// apiError is the error envelope Stripe returns on non-2xx responses.
type apiError struct {
	Error struct {
		Type    string `json:"type"`
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

func (c *Client) post(ctx context.Context, path string, form url.Values, idempotencyKey string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path,
		strings.NewReader(form.Encode()))
	if err != nil {
		return errors.Wrap(err, "build request")
	}
	req.Header.Set("Authorization", "Bearer "+c.secretKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if idempotencyKey != "" {
		req.Header.Set("Idempotency-Key", idempotencyKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrap(err, "send request")
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return errors.Wrap(err, "read response")
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var apiErr apiError
		if err := json.Unmarshal(body, &apiErr); err == nil && apiErr.Error.Message != "" {
			return errors.Errorf("stripe: %s (%s)", apiErr.Error.Message, apiErr.Error.Type)
		}
		return errors.Errorf("stripe: unexpected status %d", resp.StatusCode)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return errors.Wrap(err, "decode response")
	}
	return nil
}

func toCents(amount decimal.Decimal) int64 {
	return amount.Mul(cents).Round(0).IntPart()
}
