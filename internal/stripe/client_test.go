package stripe

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestToCents(t *testing.T) {
	tests := []struct {
		amount string
		want   int64
	}{
		{"69.59", 6959},
		{"0.01", 1},
		{"100", 10000},
		{"10.005", 1001},
	}
	for _, tt := range tests {
		got := toCents(decimal.RequireFromString(tt.amount))
		assert.Equal(t, tt.want, got, "amount %s", tt.amount)
	}
}

func TestCreateIntent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/payment_intents", r.URL.Path)
		assert.Equal(t, "Bearer sk_test_123", r.Header.Get("Authorization"))

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "6959", r.PostForm.Get("amount"))
		assert.Equal(t, "eur", r.PostForm.Get("currency"))
		assert.Equal(t, "order-1", r.PostForm.Get("metadata[orderId]"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"pi_123","client_secret":"pi_123_secret_abc"}`))
	}))
	defer srv.Close()

	client := NewClient("sk_test_123", srv.URL)

	intent, err := client.CreateIntent(context.Background(),
		decimal.RequireFromString("69.59"), "eur", map[string]string{"orderId": "order-1"})
	require.NoError(t, err)

	assert.Equal(t, "pi_123", intent.ID)
	assert.Equal(t, "pi_123_secret_abc", intent.ClientSecret)
}

func TestRefund(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/refunds", r.URL.Path)

		require.NoError(t, r.ParseForm())
		assert.Equal(t, "pi_123", r.PostForm.Get("payment_intent"))
		assert.Equal(t, "500", r.PostForm.Get("amount"))
		// The key lets Stripe deduplicate a retried refund.
		assert.Equal(t, "cancel-ord_1", r.Header.Get("Idempotency-Key"))

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"re_456"}`))
	}))
	defer srv.Close()

	client := NewClient("sk_test_123", srv.URL)

	refundID, err := client.Refund(context.Background(), "pi_123", decimal.RequireFromString("5.00"), "cancel-ord_1")
	require.NoError(t, err)
	assert.Equal(t, "re_456", refundID)
}

func TestPost_APIErrorSurfaced(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusPaymentRequired)
		_, _ = w.Write([]byte(`{"error":{"type":"card_error","code":"card_declined","message":"Your card was declined."}}`))
	}))
	defer srv.Close()

	client := NewClient("sk_test_123", srv.URL)

	_, err := client.CreateIntent(context.Background(), decimal.NewFromInt(10), "eur", nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Your card was declined")
	assert.Contains(t, err.Error(), "card_error")
}
