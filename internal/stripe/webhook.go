package stripe

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"strconv"
	"strings"
	"time"

	"github.com/go-faster/errors"
)

// EventType identifies an inbound webhook event.
type EventType string

const (
	// EventPaymentSucceeded signals a confirmed payment intent.
	EventPaymentSucceeded EventType = "payment_intent.succeeded"
	// EventPaymentFailed signals a failed or abandoned payment intent.
	EventPaymentFailed EventType = "payment_intent.payment_failed"
)

// Webhook verification errors.
var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrStaleTimestamp   = errors.New("webhook timestamp outside tolerance")
)

// SignatureTolerance is the maximum accepted age of a signed webhook
// payload. Replays older than this are rejected even with a valid MAC.
const SignatureTolerance = 5 * time.Minute

// VerifySignature checks a Stripe-Signature header ("t=<unix>,v1=<hex>")
// against the raw payload. The MAC is HMAC-SHA256 over "<t>.<payload>" keyed
// with the endpoint secret, compared in constant time.
func VerifySignature(payload []byte, header string, secret []byte, now time.Time) error {
	var (
		timestamp string
		sigs      [][]byte
	)
	for _, part := range strings.Split(header, ",") {
		k, v, ok := strings.Cut(strings.TrimSpace(part), "=")
		if !ok {
			continue
		}
		switch k {
		case "t":
			timestamp = v
		case "v1":
			if sig, err := hex.DecodeString(v); err == nil {
				sigs = append(sigs, sig)
			}
		}
	}
	if timestamp == "" || len(sigs) == 0 {
		return ErrInvalidSignature
	}

	ts, err := strconv.ParseInt(timestamp, 10, 64)
	if err != nil {
		return ErrInvalidSignature
	}
	age := now.Sub(time.Unix(ts, 0))
	if age > SignatureTolerance || age < -SignatureTolerance {
		return ErrStaleTimestamp
	}

	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(timestamp))
	mac.Write([]byte("."))
	mac.Write(payload)
	expected := mac.Sum(nil)

	for _, sig := range sigs {
		if hmac.Equal(expected, sig) {
			return nil
		}
	}
	return ErrInvalidSignature
}

// Sign builds a Stripe-Signature header value for a payload. Used by tests
// and the sandbox tooling.
func Sign(payload []byte, secret []byte, at time.Time) string {
	ts := strconv.FormatInt(at.Unix(), 10)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(ts))
	mac.Write([]byte("."))
	mac.Write(payload)
	return "t=" + ts + ",v1=" + hex.EncodeToString(mac.Sum(nil))
}

// Event is a parsed webhook event relevant to the order engine.
type Event struct {
	ID       string
	Type     EventType
	IntentID string
	// OrderID is carried in the intent metadata set at creation time.
	OrderID string
}

// ParseEvent decodes a webhook payload. Events other than the payment intent
// outcomes are returned with their type so callers can ignore them.
func ParseEvent(payload []byte) (*Event, error) {
	var raw struct {
		ID   string `json:"id"`
		Type string `json:"type"`
		Data struct {
			Object struct {
				ID       string            `json:"id"`
				Metadata map[string]string `json:"metadata"`
			} `json:"object"`
		} `json:"data"`
	}
	if err := json.Unmarshal(payload, &raw); err != nil {
		return nil, errors.Wrap(err, "decode webhook payload")
	}

	return &Event{
		ID:       raw.ID,
		Type:     EventType(raw.Type),
		IntentID: raw.Data.Object.ID,
		OrderID:  raw.Data.Object.Metadata["orderId"],
	}, nil
}
