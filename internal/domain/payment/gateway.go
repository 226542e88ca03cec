// Package payment defines the payment gateway boundary the order engine
// calls out to.
package payment

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

// Intent is a provider-side payment intent awaiting confirmation.
type Intent struct {
	ID           string
	ClientSecret string
}

// Gateway creates, and refunds, charges with a third-party processor.
// Confirmation outcomes arrive asynchronously through webhooks; the engine's
// transitions must tolerate duplicate delivery. Refund takes an idempotency
// key so a retried call settles on the provider at most once.
type Gateway interface {
	CreateIntent(ctx context.Context, amount decimal.Decimal, currency string, metadata map[string]string) (*Intent, error)
	Refund(ctx context.Context, transactionID string, amount decimal.Decimal, idempotencyKey string) (string, error)
}

// GatewayError wraps a provider failure. Gateway errors are surfaced to the
// caller for manual retry, never silently swallowed.
type GatewayError struct {
	Op  string
	Err error
}

func (e *GatewayError) Error() string {
	return fmt.Sprintf("payment gateway %s: %v", e.Op, e.Err)
}

func (e *GatewayError) Unwrap() error { return e.Err }
