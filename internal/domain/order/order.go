// Package order implements the order aggregate and its lifecycle state
// machine: creation from a validated cart, stock lock/unlock around payment,
// confirmation, fulfillment, cancellation, and refund.
package order

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/addara/shop-api/internal/domain/catalog"
	"github.com/addara/shop-api/internal/domain/pricing"
)

// Status is the order lifecycle state.
type Status string

const (
	// StatusPending is the initial state: order created, no stock reserved.
	StatusPending Status = "pending"
	// StatusLocked means stock has been provisionally debited pending
	// payment confirmation.
	StatusLocked Status = "locked"
	// StatusConfirmed means payment succeeded and stock is reserved.
	StatusConfirmed Status = "confirmed"
	// StatusProcessing means the order is being prepared for shipment.
	StatusProcessing Status = "processing"
	// StatusShipped means the parcel is with the carrier.
	StatusShipped Status = "shipped"
	// StatusDelivered is terminal: the customer received the order.
	StatusDelivered Status = "delivered"
	// StatusCancelled is terminal.
	StatusCancelled Status = "cancelled"
	// StatusRefunded is terminal.
	StatusRefunded Status = "refunded"
)

// transitions is the set of legal status changes. Everything not listed
// raises InvalidTransitionError.
var transitions = map[Status][]Status{
	StatusPending:    {StatusLocked, StatusConfirmed, StatusCancelled},
	StatusLocked:     {StatusPending, StatusConfirmed, StatusCancelled},
	StatusConfirmed:  {StatusProcessing, StatusShipped, StatusCancelled, StatusRefunded},
	StatusProcessing: {StatusShipped, StatusCancelled, StatusRefunded},
	StatusShipped:    {StatusDelivered, StatusRefunded},
	StatusDelivered:  {StatusRefunded},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// CanTransition reports whether moving from s to next is legal.
func (s Status) CanTransition(next Status) bool {
	for _, t := range transitions[s] {
		if t == next {
			return true
		}
	}
	return false
}

// PaymentStatus is the payment sub-state of an order.
type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

// Sentinel errors for order operations.
var (
	ErrNotFound             = errors.New("order not found")
	ErrEmptyCart            = errors.New("cart is empty")
	ErrInvalidQuantity      = errors.New("quantity must be greater than 0")
	ErrNotCancelled         = errors.New("only cancelled orders can be deleted")
	ErrPaymentNotCompleted  = errors.New("order has not been paid")
	ErrShippingInfoRequired = errors.New("carrier and tracking number are required")
)

// InvalidTransitionError indicates an illegal status change. It is terminal
// and never retried.
type InvalidTransitionError struct {
	From Status
	To   Status
}

func (e *InvalidTransitionError) Error() string {
	return fmt.Sprintf("invalid transition from %s to %s", e.From, e.To)
}

// InsufficientStockError reports which item fell short at cart validation
// and by how much, so the storefront can re-prompt with adjusted quantities.
type InsufficientStockError struct {
	Kind      catalog.Kind
	ItemID    string
	Name      string
	Requested int
	Available int
}

func (e *InsufficientStockError) Error() string {
	return fmt.Sprintf("insufficient stock for %s %q: requested %d, available %d",
		e.Kind, e.Name, e.Requested, e.Available)
}

// CustomerInfo holds the contact details captured on every order, whether
// guest or account-backed.
type CustomerInfo struct {
	Email     string `json:"email"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Phone     string `json:"phone,omitempty"`
}

// Address is a shipping or billing address.
type Address struct {
	Street         string `json:"street"`
	City           string `json:"city"`
	ZipCode        string `json:"zipCode"`
	Country        string `json:"country"`
	AdditionalInfo string `json:"additionalInfo,omitempty"`
}

// LineItem is one entry of an order. Name, unit price, and the full item
// record are snapshots captured at creation time; they are the historical
// record even if the catalog item later changes or is deleted.
//
// Quantity is what the customer asked for. DebitedQuantity is what the stock
// ledger actually reserved; it is zero until the order is locked and may be
// lower than Quantity when a debit was clamped at zero stock.
type LineItem struct {
	Kind            catalog.Kind    `json:"itemKind"`
	ItemID          string          `json:"itemRef"`
	Name            string          `json:"nameSnapshot"`
	Quantity        int             `json:"quantity"`
	DebitedQuantity int             `json:"debitedQuantity"`
	UnitPrice       decimal.Decimal `json:"unitPriceSnapshot"`
	Subtotal        decimal.Decimal `json:"lineSubtotal"`
	Snapshot        json.RawMessage `json:"fullProductSnapshot,omitempty"`
}

// StatusChange is one append-only entry of the order's status history.
type StatusChange struct {
	Status Status    `json:"status"`
	At     time.Time `json:"timestamp"`
	Note   string    `json:"note,omitempty"`
	Actor  string    `json:"actor,omitempty"`
}

// Payment is the payment block of an order.
type Payment struct {
	Method        string          `json:"method"`
	Status        PaymentStatus   `json:"status"`
	TransactionID string          `json:"transactionId,omitempty"`
	PaidAt        *time.Time      `json:"paidAt,omitempty"`
	LockedAt      *time.Time      `json:"lockedAt,omitempty"`
	RefundedAt    *time.Time      `json:"refundedAt,omitempty"`
	RefundAmount  decimal.Decimal `json:"refundAmount"`
}

// ShippingInfo is populated once the order ships.
type ShippingInfo struct {
	Method            string     `json:"method"`
	Carrier           string     `json:"carrier,omitempty"`
	TrackingNumber    string     `json:"trackingNumber,omitempty"`
	TrackingURL       string     `json:"trackingUrl,omitempty"`
	ShippedAt         *time.Time `json:"shippedAt,omitempty"`
	EstimatedDelivery *time.Time `json:"estimatedDelivery,omitempty"`
	DeliveredAt       *time.Time `json:"deliveredAt,omitempty"`
}

// Order is the aggregate root. Status, payment, and stock-affecting fields
// are mutated only through Service operations, never written directly.
type Order struct {
	ID        string
	Number    string
	AccountID string
	IsGuest   bool
	Customer  CustomerInfo

	Items []LineItem

	ShippingAddress Address
	BillingAddress  *Address
	UseSameAddress  bool

	Pricing pricing.Costs
	Promo   *pricing.PromoSnapshot

	Status  Status
	History []StatusChange

	Payment  Payment
	Shipping ShippingInfo

	// StockDebited tracks whether the stock ledger has been debited for this
	// order's items. It makes lock/confirm debits and cancel credits
	// idempotent across duplicate webhook deliveries.
	StockDebited bool

	CustomerNotes string
	InternalNotes string

	ConfirmedAt        *time.Time
	CancelledAt        *time.Time
	CancellationReason string

	CreatedAt time.Time
	UpdatedAt time.Time
}

// setStatus moves the order to next and appends one history entry. It is the
// only mutation path for Status, so the history log cannot be bypassed.
func (o *Order) setStatus(next Status, at time.Time, note, actor string) error {
	if !o.Status.CanTransition(next) {
		return &InvalidTransitionError{From: o.Status, To: next}
	}
	o.Status = next
	o.History = append(o.History, StatusChange{
		Status: next,
		At:     at,
		Note:   note,
		Actor:  actor,
	})
	o.UpdatedAt = at
	return nil
}

// ListFilter narrows an admin order listing.
type ListFilter struct {
	Status        Status
	PaymentStatus PaymentStatus
	Page          int
	Limit         int
}

// Repository defines persistence operations for orders.
type Repository interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	GetByNumber(ctx context.Context, number string) (*Order, error)
	Update(ctx context.Context, o *Order) error
	List(ctx context.Context, f ListFilter) ([]Order, int, error)
	Delete(ctx context.Context, id string) error
}
