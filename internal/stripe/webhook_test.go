package stripe

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var testSecret = []byte("whsec_test")

func TestVerifySignature_RoundTrip(t *testing.T) {
	payload := []byte(`{"id":"evt_1","type":"payment_intent.succeeded"}`)
	now := time.Now()

	header := Sign(payload, testSecret, now)

	require.NoError(t, VerifySignature(payload, header, testSecret, now))
	// Anywhere inside the tolerance window is fine.
	require.NoError(t, VerifySignature(payload, header, testSecret, now.Add(4*time.Minute)))
}

func TestVerifySignature_TamperedPayload(t *testing.T) {
	payload := []byte(`{"id":"evt_1"}`)
	now := time.Now()
	header := Sign(payload, testSecret, now)

	err := VerifySignature([]byte(`{"id":"evt_2"}`), header, testSecret, now)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignature_WrongSecret(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now()
	header := Sign(payload, []byte("whsec_other"), now)

	err := VerifySignature(payload, header, testSecret, now)
	require.ErrorIs(t, err, ErrInvalidSignature)
}

func TestVerifySignature_StaleTimestamp(t *testing.T) {
	payload := []byte(`{}`)
	signedAt := time.Now().Add(-10 * time.Minute)
	header := Sign(payload, testSecret, signedAt)

	err := VerifySignature(payload, header, testSecret, time.Now())
	require.ErrorIs(t, err, ErrStaleTimestamp)
}

func TestVerifySignature_MalformedHeader(t *testing.T) {
	payload := []byte(`{}`)
	now := time.Now()

	for _, header := range []string{
		"",
		"t=123",
		"v1=deadbeef",
		"t=notanumber,v1=deadbeef",
		"garbage",
	} {
		err := VerifySignature(payload, header, testSecret, now)
		assert.ErrorIs(t, err, ErrInvalidSignature, "header %q", header)
	}
}

func TestParseEvent(t *testing.T) {
	payload := []byte(`{
		"id": "evt_123",
		"type": "payment_intent.succeeded",
		"data": {
			"object": {
				"id": "pi_456",
				"metadata": {"orderId": "order-789", "orderNumber": "ADD-2608-0001"}
			}
		}
	}`)

	event, err := ParseEvent(payload)
	require.NoError(t, err)

	assert.Equal(t, "evt_123", event.ID)
	assert.Equal(t, EventPaymentSucceeded, event.Type)
	assert.Equal(t, "pi_456", event.IntentID)
	assert.Equal(t, "order-789", event.OrderID)
}

func TestParseEvent_UnknownTypePassedThrough(t *testing.T) {
	event, err := ParseEvent([]byte(`{"id":"evt_1","type":"charge.updated","data":{"object":{"id":"ch_1"}}}`))
	require.NoError(t, err)
	assert.Equal(t, EventType("charge.updated"), event.Type)
	assert.Empty(t, event.OrderID)
}

func TestParseEvent_MalformedJSON(t *testing.T) {
	_, err := ParseEvent([]byte(`{`))
	require.Error(t, err)
}
