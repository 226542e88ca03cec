package order

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/addara/shop-api/internal/domain/catalog"
	"github.com/addara/shop-api/internal/domain/payment"
	"github.com/addara/shop-api/internal/domain/pricing"
)

// ErrGuestEmailRequired is returned when a guest order is looked up by
// number without the matching customer email.
var ErrGuestEmailRequired = errors.New("email required to access this order")

// PromoResolver resolves a promo code input into a discount snapshot,
// enforcing existence and the validity window.
type PromoResolver interface {
	Resolve(ctx context.Context, code string) (*pricing.PromoSnapshot, error)
}

// Service encapsulates the order lifecycle: creation, the stock lock around
// payment, confirmation, fulfillment, cancellation, and refunds. All
// collaborators are injected so tests can substitute in-memory fakes.
type Service struct {
	catalog catalog.Store
	promos  PromoResolver
	gateway payment.Gateway
	orders  Repository
	seq     Sequence

	pricing  pricing.Config
	prefix   string
	currency string
	now      func() time.Time
}

// NewService creates an order Service with the required collaborators.
func NewService(
	store catalog.Store,
	promos PromoResolver,
	gateway payment.Gateway,
	orders Repository,
	seq Sequence,
	cfg pricing.Config,
) *Service {
	return &Service{
		catalog:  store,
		promos:   promos,
		gateway:  gateway,
		orders:   orders,
		seq:      seq,
		pricing:  cfg,
		prefix:   NumberPrefix,
		currency: "eur",
		now:      time.Now,
	}
}

// CartLine is one entry of an incoming cart.
type CartLine struct {
	Kind     catalog.Kind
	ItemID   string
	Quantity int
}

// CreateRequest holds the input for creating an order.
type CreateRequest struct {
	Lines           []CartLine
	AccountID       string
	Customer        CustomerInfo
	ShippingAddress Address
	BillingAddress  *Address
	UseSameAddress  bool
	PromoCode       string
	PaymentMethod   string
	ShippingMethod  string
	CustomerNotes   string
}

// Create validates the cart, snapshots the resolved items, prices the order,
// allocates an order number, and persists it in pending status. It never
// touches the stock ledger: the stock check here is advisory, reservation
// happens at Lock time.
func (s *Service) Create(ctx context.Context, req CreateRequest) (*Order, error) {
	if len(req.Lines) == 0 {
		return nil, ErrEmptyCart
	}

	items := make([]LineItem, 0, len(req.Lines))
	subtotal := decimal.Zero
	for _, line := range req.Lines {
		if line.Quantity <= 0 {
			return nil, errors.Wrapf(ErrInvalidQuantity, "%s %s", line.Kind, line.ItemID)
		}

		item, err := s.catalog.FindByID(ctx, line.Kind, line.ItemID)
		if err != nil {
			return nil, err
		}
		if !item.InStock(line.Quantity) {
			return nil, &InsufficientStockError{
				Kind:      line.Kind,
				ItemID:    line.ItemID,
				Name:      item.Name,
				Requested: line.Quantity,
				Available: item.Stock,
			}
		}

		lineSubtotal := item.Price.Mul(decimal.NewFromInt(int64(line.Quantity)))
		subtotal = subtotal.Add(lineSubtotal)
		items = append(items, LineItem{
			Kind:      line.Kind,
			ItemID:    line.ItemID,
			Name:      item.Name,
			Quantity:  line.Quantity,
			UnitPrice: item.Price,
			Subtotal:  lineSubtotal,
			Snapshot:  item.Snapshot,
		})
	}

	var promoSnap *pricing.PromoSnapshot
	if req.PromoCode != "" {
		snap, err := s.promos.Resolve(ctx, req.PromoCode)
		if err != nil {
			return nil, err
		}
		promoSnap = snap
	}

	now := s.now()
	seq, err := s.seq.Next(ctx, MonthKey(now))
	if err != nil {
		return nil, errors.Wrap(err, "allocate order number")
	}

	shippingMethod := req.ShippingMethod
	if shippingMethod == "" {
		shippingMethod = "standard"
	}

	o := &Order{
		ID:              uuid.New().String(),
		Number:          FormatNumber(s.prefix, now, seq),
		AccountID:       req.AccountID,
		IsGuest:         req.AccountID == "",
		Customer:        req.Customer,
		Items:           items,
		ShippingAddress: req.ShippingAddress,
		BillingAddress:  req.BillingAddress,
		UseSameAddress:  req.BillingAddress == nil || req.UseSameAddress,
		Pricing:         s.pricing.ComputeCosts(subtotal, promoSnap),
		Promo:           promoSnap,
		Status:          StatusPending,
		History: []StatusChange{{
			Status: StatusPending,
			At:     now,
		}},
		Payment: Payment{
			Method: req.PaymentMethod,
			Status: PaymentPending,
		},
		Shipping:      ShippingInfo{Method: shippingMethod},
		CustomerNotes: req.CustomerNotes,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := s.orders.Create(ctx, o); err != nil {
		return nil, errors.Wrap(err, "create order")
	}
	return o, nil
}

// CartLineStatus is the live stock view of one cart line. Read-only: the
// check has no write side effects.
type CartLineStatus struct {
	Kind         catalog.Kind
	ItemID       string
	Name         string
	Requested    int
	Available    int
	Availability catalog.Availability
	InStock      bool
}

// CheckCart reports live availability for every cart line so the storefront
// can show stock before the customer commits.
func (s *Service) CheckCart(ctx context.Context, lines []CartLine) ([]CartLineStatus, error) {
	statuses := make([]CartLineStatus, 0, len(lines))
	for _, line := range lines {
		item, err := s.catalog.FindByID(ctx, line.Kind, line.ItemID)
		if err != nil {
			return nil, err
		}
		statuses = append(statuses, CartLineStatus{
			Kind:         line.Kind,
			ItemID:       line.ItemID,
			Name:         item.Name,
			Requested:    line.Quantity,
			Available:    item.Stock,
			Availability: item.Availability(),
			InStock:      item.InStock(line.Quantity),
		})
	}
	return statuses, nil
}

// Shortfall reports a line item whose debit was clamped because available
// stock fell below the requested quantity between validation and lock.
type Shortfall struct {
	Kind      catalog.Kind
	ItemID    string
	Name      string
	Requested int
	Debited   int
}

// LockResult is the outcome of locking an order for payment.
type LockResult struct {
	Order *Order
	// ClientSecret authorizes the storefront to confirm the payment intent.
	// Empty when the lock was a no-op on an already locked order.
	ClientSecret string
	// Shortfalls lists line items that could not be fully reserved.
	Shortfalls []Shortfall
}

// Lock creates a payment intent with the gateway and debits stock for every
// line item exactly once. Calling Lock on an already locked order is a
// no-op.
func (s *Service) Lock(ctx context.Context, id string) (*LockResult, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if o.Status == StatusLocked {
		return &LockResult{Order: o}, nil
	}
	if !o.Status.CanTransition(StatusLocked) {
		return nil, &InvalidTransitionError{From: o.Status, To: StatusLocked}
	}

	intent, err := s.gateway.CreateIntent(ctx, o.Pricing.Total, s.currency, map[string]string{
		"orderId":     o.ID,
		"orderNumber": o.Number,
	})
	if err != nil {
		return nil, &payment.GatewayError{Op: "create intent", Err: err}
	}

	shortfalls, moved := s.debitItems(ctx, o)

	now := s.now()
	if err := o.setStatus(StatusLocked, now, "", ""); err != nil {
		return nil, err
	}
	o.Payment.TransactionID = intent.ID
	o.Payment.LockedAt = &now

	if err := s.orders.Update(ctx, o); err != nil {
		s.reverseMoves(ctx, moved, catalog.Credit)
		return nil, errors.Wrap(err, "update order")
	}
	return &LockResult{Order: o, ClientSecret: intent.ClientSecret, Shortfalls: shortfalls}, nil
}

// Unlock releases an abandoned or failed payment lock: stock is credited
// back and the order returns to pending.
func (s *Service) Unlock(ctx context.Context, id, note string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Status != StatusLocked {
		return nil, &InvalidTransitionError{From: o.Status, To: StatusPending}
	}

	moved := s.creditItems(ctx, o)

	now := s.now()
	if err := o.setStatus(StatusPending, now, note, ""); err != nil {
		return nil, err
	}
	o.Payment.LockedAt = nil

	if err := s.orders.Update(ctx, o); err != nil {
		s.reverseMoves(ctx, moved, catalog.Debit)
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// Confirm records a successful payment. Stock is guaranteed to be debited
// exactly once regardless of whether a lock preceded the confirmation.
// Duplicate confirmations with the same transaction id are a no-op, so
// redelivered webhooks are safe.
func (s *Service) Confirm(ctx context.Context, id, transactionID string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if o.Status == StatusConfirmed && o.Payment.TransactionID == transactionID {
		return o, nil
	}
	if !o.Status.CanTransition(StatusConfirmed) {
		return nil, &InvalidTransitionError{From: o.Status, To: StatusConfirmed}
	}

	var moved []stockMove
	if !o.StockDebited {
		_, moved = s.debitItems(ctx, o)
	}

	now := s.now()
	if err := o.setStatus(StatusConfirmed, now, "payment confirmed", ""); err != nil {
		return nil, err
	}
	o.Payment.Status = PaymentCompleted
	o.Payment.TransactionID = transactionID
	o.Payment.PaidAt = &now
	o.ConfirmedAt = &now

	if err := s.orders.Update(ctx, o); err != nil {
		s.reverseMoves(ctx, moved, catalog.Credit)
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// MarkPaymentFailed records a failed or expired payment intent. Reserved
// stock is credited back and a locked order returns to pending. Events
// arriving after confirmation are stale and ignored.
func (s *Service) MarkPaymentFailed(ctx context.Context, id, transactionID string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	if o.Status != StatusPending && o.Status != StatusLocked {
		return o, nil
	}

	moved := s.creditItems(ctx, o)

	now := s.now()
	if o.Status == StatusLocked {
		if err := o.setStatus(StatusPending, now, "payment failed", ""); err != nil {
			return nil, err
		}
	}
	o.Payment.Status = PaymentFailed
	o.Payment.TransactionID = transactionID
	o.Payment.LockedAt = nil

	if err := s.orders.Update(ctx, o); err != nil {
		s.reverseMoves(ctx, moved, catalog.Debit)
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// Cancel cancels an order that has not shipped. Reserved stock is credited
// back, and a completed payment is refunded in full through the gateway. A
// refund failure aborts the cancellation with no state change.
func (s *Service) Cancel(ctx context.Context, id, reason, actor string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if !o.Status.CanTransition(StatusCancelled) {
		return nil, &InvalidTransitionError{From: o.Status, To: StatusCancelled}
	}

	now := s.now()
	if o.Payment.Status == PaymentCompleted {
		// The gateway deduplicates on the key, so a cancel retried after a
		// persist failure does not refund the money twice.
		if _, err := s.gateway.Refund(ctx, o.Payment.TransactionID, o.Pricing.Total, "cancel-"+o.ID); err != nil {
			return nil, &payment.GatewayError{Op: "refund", Err: err}
		}
		o.Payment.Status = PaymentRefunded
		o.Payment.RefundedAt = &now
		o.Payment.RefundAmount = o.Pricing.Total
	}

	moved := s.creditItems(ctx, o)

	if err := o.setStatus(StatusCancelled, now, reason, actor); err != nil {
		return nil, err
	}
	o.CancelledAt = &now
	o.CancellationReason = reason
	o.Payment.LockedAt = nil

	if err := s.orders.Update(ctx, o); err != nil {
		s.reverseMoves(ctx, moved, catalog.Debit)
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// MarkProcessing moves a confirmed order into fulfillment.
func (s *Service) MarkProcessing(ctx context.Context, id, note, actor string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := o.setStatus(StatusProcessing, s.now(), note, actor); err != nil {
		return nil, err
	}
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// ShippingUpdate carries the carrier metadata required to mark an order
// shipped.
type ShippingUpdate struct {
	Carrier           string
	TrackingNumber    string
	TrackingURL       string
	EstimatedDelivery *time.Time
}

// MarkShipped records carrier and tracking details and moves the order to
// shipped.
func (s *Service) MarkShipped(ctx context.Context, id string, upd ShippingUpdate, actor string) (*Order, error) {
	if upd.Carrier == "" || upd.TrackingNumber == "" {
		return nil, ErrShippingInfoRequired
	}

	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := o.setStatus(StatusShipped, now, "", actor); err != nil {
		return nil, err
	}
	o.Shipping.Carrier = upd.Carrier
	o.Shipping.TrackingNumber = upd.TrackingNumber
	o.Shipping.TrackingURL = upd.TrackingURL
	o.Shipping.EstimatedDelivery = upd.EstimatedDelivery
	o.Shipping.ShippedAt = &now

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// MarkDelivered records the delivery confirmation. Terminal.
func (s *Service) MarkDelivered(ctx context.Context, id, actor string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}

	now := s.now()
	if err := o.setStatus(StatusDelivered, now, "", actor); err != nil {
		return nil, err
	}
	o.Shipping.DeliveredAt = &now

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// Refund refunds a completed payment, in full when amount is zero, and moves
// the order to refunded. Refund does not restock: cancellation owns that
// side effect, and the two are sequenced explicitly by the caller.
func (s *Service) Refund(ctx context.Context, id string, amount decimal.Decimal, actor string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.Payment.Status != PaymentCompleted {
		return nil, ErrPaymentNotCompleted
	}
	if !o.Status.CanTransition(StatusRefunded) {
		return nil, &InvalidTransitionError{From: o.Status, To: StatusRefunded}
	}

	if amount.IsZero() {
		amount = o.Pricing.Total
	}

	idemKey := fmt.Sprintf("refund-%s-%s", o.ID, amount.StringFixed(2))
	if _, err := s.gateway.Refund(ctx, o.Payment.TransactionID, amount, idemKey); err != nil {
		return nil, &payment.GatewayError{Op: "refund", Err: err}
	}

	now := s.now()
	if err := o.setStatus(StatusRefunded, now, "", actor); err != nil {
		return nil, err
	}
	o.Payment.Status = PaymentRefunded
	o.Payment.RefundedAt = &now
	o.Payment.RefundAmount = amount

	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// UpdateNotes replaces the admin-facing internal notes.
func (s *Service) UpdateNotes(ctx context.Context, id, internalNotes string) (*Order, error) {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	o.InternalNotes = internalNotes
	o.UpdatedAt = s.now()
	if err := s.orders.Update(ctx, o); err != nil {
		return nil, errors.Wrap(err, "update order")
	}
	return o, nil
}

// Delete removes an order permanently. Restricted to cancelled orders.
func (s *Service) Delete(ctx context.Context, id string) error {
	o, err := s.orders.Get(ctx, id)
	if err != nil {
		return err
	}
	if o.Status != StatusCancelled {
		return ErrNotCancelled
	}
	return s.orders.Delete(ctx, id)
}

// Get returns an order by id.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.orders.Get(ctx, id)
}

// GetByNumber returns an order by its human-readable number. Guest orders
// require the matching customer email.
func (s *Service) GetByNumber(ctx context.Context, number, email string) (*Order, error) {
	o, err := s.orders.GetByNumber(ctx, number)
	if err != nil {
		return nil, err
	}
	if o.IsGuest && !strings.EqualFold(email, o.Customer.Email) {
		return nil, ErrGuestEmailRequired
	}
	return o, nil
}

// List returns a filtered page of orders with the total match count.
func (s *Service) List(ctx context.Context, f ListFilter) ([]Order, int, error) {
	return s.orders.List(ctx, f)
}

// stockMove records one ledger adjustment so a failed order persist can be
// compensated before the error is surfaced.
type stockMove struct {
	kind catalog.Kind
	id   string
	qty  int
}

// debitItems debits every line item once and records the quantity the
// ledger actually reserved. The ledger clamps at zero, so a debit can come
// up short; shortfalls are reported rather than swallowed.
func (s *Service) debitItems(ctx context.Context, o *Order) ([]Shortfall, []stockMove) {
	var (
		shortfalls []Shortfall
		moves      []stockMove
	)
	for i := range o.Items {
		item := &o.Items[i]
		lvl, err := s.catalog.AdjustStock(ctx, item.Kind, item.ItemID, item.Quantity, catalog.Debit)
		if err != nil {
			// Item deleted since the order was placed. The snapshot keeps the
			// historical record; nothing to reserve.
			continue
		}
		item.DebitedQuantity = lvl.Moved()
		if item.DebitedQuantity > 0 {
			moves = append(moves, stockMove{kind: item.Kind, id: item.ItemID, qty: item.DebitedQuantity})
		}
		if lvl.Clamped(item.Quantity) {
			shortfalls = append(shortfalls, Shortfall{
				Kind:      item.Kind,
				ItemID:    item.ItemID,
				Name:      item.Name,
				Requested: item.Quantity,
				Debited:   item.DebitedQuantity,
			})
		}
	}
	o.StockDebited = true
	return shortfalls, moves
}

// creditItems credits back exactly what was debited, at most once per debit,
// and reports what it moved.
func (s *Service) creditItems(ctx context.Context, o *Order) []stockMove {
	if !o.StockDebited {
		return nil
	}
	var moves []stockMove
	for i := range o.Items {
		item := &o.Items[i]
		if item.DebitedQuantity <= 0 {
			continue
		}
		if _, err := s.catalog.AdjustStock(ctx, item.Kind, item.ItemID, item.DebitedQuantity, catalog.Credit); err != nil {
			continue
		}
		moves = append(moves, stockMove{kind: item.Kind, id: item.ItemID, qty: item.DebitedQuantity})
		item.DebitedQuantity = 0
	}
	o.StockDebited = false
	return moves
}

// reverseMoves undoes ledger adjustments after the order persist failed. The
// stored order still describes the pre-adjustment state, so reversing the
// physical stock keeps ledger and order in agreement and a retry starts
// clean. Best effort: the in-memory order is discarded either way.
func (s *Service) reverseMoves(ctx context.Context, moves []stockMove, dir catalog.Direction) {
	for _, m := range moves {
		_, _ = s.catalog.AdjustStock(ctx, m.kind, m.id, m.qty, dir)
	}
}
