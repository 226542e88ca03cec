package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/addara/shop-api/internal/domain/order"
)

const orderColumns = `id, order_number, COALESCE(account_id, ''), is_guest,
	customer, line_items, shipping_address, billing_address, use_same_address,
	pricing, promo_snapshot, status, status_history, payment, shipping_info,
	stock_debited, customer_notes, internal_notes,
	confirmed_at, cancelled_at, cancellation_reason, created_at, updated_at`

const createOrderSQL = `INSERT INTO orders (
	id, order_number, account_id, is_guest,
	customer, line_items, shipping_address, billing_address, use_same_address,
	pricing, promo_snapshot, status, status_history, payment, shipping_info,
	stock_debited, customer_notes, internal_notes,
	confirmed_at, cancelled_at, cancellation_reason, created_at, updated_at
) VALUES (
	$1, $2, NULLIF($3, ''), $4,
	$5, $6, $7, $8, $9,
	$10, $11, $12, $13, $14, $15,
	$16, $17, $18,
	$19, $20, $21, $22, $23
)`

const updateOrderSQL = `UPDATE orders SET
	line_items = $2, pricing = $3, status = $4, status_history = $5,
	payment = $6, shipping_info = $7, stock_debited = $8,
	internal_notes = $9, confirmed_at = $10, cancelled_at = $11,
	cancellation_reason = $12, updated_at = $13
WHERE id = $1`

var _ order.Repository = (*OrderRepository)(nil)

// OrderRepository implements order.Repository backed by PostgreSQL. Line
// items, status history, and the other embedded sub-structures are stored as
// JSONB documents on the order row; they are never queried independently of
// their parent.
type OrderRepository struct {
	pool *pgxpool.Pool
}

// NewOrderRepository returns an OrderRepository that uses the given pool.
func NewOrderRepository(pool *pgxpool.Pool) *OrderRepository {
	return &OrderRepository{pool: pool}
}

// Create persists a new order.
func (r *OrderRepository) Create(ctx context.Context, o *order.Order) error {
	doc, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}

	_, err = r.pool.Exec(ctx, createOrderSQL,
		o.ID, o.Number, o.AccountID, o.IsGuest,
		doc.customer, doc.items, doc.shippingAddr, doc.billingAddr, o.UseSameAddress,
		doc.pricing, doc.promo, string(o.Status), doc.history, doc.payment, doc.shipping,
		o.StockDebited, o.CustomerNotes, o.InternalNotes,
		o.ConfirmedAt, o.CancelledAt, o.CancellationReason, o.CreatedAt, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("creating order %q: %w", o.Number, err)
	}
	return nil
}

// Update persists the mutable state of an existing order.
func (r *OrderRepository) Update(ctx context.Context, o *order.Order) error {
	doc, err := marshalOrderDocs(o)
	if err != nil {
		return err
	}

	tag, err := r.pool.Exec(ctx, updateOrderSQL,
		o.ID, doc.items, doc.pricing, string(o.Status), doc.history,
		doc.payment, doc.shipping, o.StockDebited,
		o.InternalNotes, o.ConfirmedAt, o.CancelledAt,
		o.CancellationReason, o.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("updating order %q: %w", o.ID, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// Get returns an order by id.
func (r *OrderRepository) Get(ctx context.Context, id string) (*order.Order, error) {
	return r.getWhere(ctx, "id = $1", id)
}

// GetByNumber returns an order by its human-readable number.
func (r *OrderRepository) GetByNumber(ctx context.Context, number string) (*order.Order, error) {
	return r.getWhere(ctx, "order_number = $1", number)
}

func (r *OrderRepository) getWhere(ctx context.Context, cond string, arg any) (*order.Order, error) {
	query := fmt.Sprintf(`SELECT %s FROM orders WHERE %s`, orderColumns, cond)

	o, err := scanOrder(r.pool.QueryRow(ctx, query, arg))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, order.ErrNotFound
		}
		return nil, fmt.Errorf("getting order: %w", err)
	}
	return o, nil
}

// List returns a filtered page of orders, newest first, with the total
// match count.
func (r *OrderRepository) List(ctx context.Context, f order.ListFilter) ([]order.Order, int, error) {
	var (
		conds []string
		args  []any
	)
	if f.Status != "" {
		args = append(args, string(f.Status))
		conds = append(conds, "status = $"+strconv.Itoa(len(args)))
	}
	if f.PaymentStatus != "" {
		args = append(args, string(f.PaymentStatus))
		conds = append(conds, "payment->>'status' = $"+strconv.Itoa(len(args)))
	}

	where := ""
	if len(conds) > 0 {
		where = " WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	if err := r.pool.QueryRow(ctx, "SELECT count(*) FROM orders"+where, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("counting orders: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = 20
	}
	page := f.Page
	if page <= 0 {
		page = 1
	}
	args = append(args, limit, (page-1)*limit)
	query := fmt.Sprintf(`SELECT %s FROM orders%s ORDER BY created_at DESC LIMIT $%d OFFSET $%d`,
		orderColumns, where, len(args)-1, len(args))

	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	defer rows.Close()

	var out []order.Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scanning order: %w", err)
		}
		out = append(out, *o)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("listing orders: %w", err)
	}
	return out, total, nil
}

// Delete removes an order row. The service restricts this to cancelled
// orders.
func (r *OrderRepository) Delete(ctx context.Context, id string) error {
	tag, err := r.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("deleting order %q: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return order.ErrNotFound
	}
	return nil
}

// orderDocs holds the JSONB payloads of one order row.
type orderDocs struct {
	customer     []byte
	items        []byte
	shippingAddr []byte
	billingAddr  []byte
	pricing      []byte
	promo        []byte
	history      []byte
	payment      []byte
	shipping     []byte
}

func marshalOrderDocs(o *order.Order) (*orderDocs, error) {
	var (
		doc orderDocs
		err error
	)
	if doc.customer, err = json.Marshal(o.Customer); err != nil {
		return nil, fmt.Errorf("marshaling customer: %w", err)
	}
	if doc.items, err = json.Marshal(o.Items); err != nil {
		return nil, fmt.Errorf("marshaling line items: %w", err)
	}
	if doc.shippingAddr, err = json.Marshal(o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("marshaling shipping address: %w", err)
	}
	if o.BillingAddress != nil {
		if doc.billingAddr, err = json.Marshal(o.BillingAddress); err != nil {
			return nil, fmt.Errorf("marshaling billing address: %w", err)
		}
	}
	if doc.pricing, err = json.Marshal(o.Pricing); err != nil {
		return nil, fmt.Errorf("marshaling pricing: %w", err)
	}
	if o.Promo != nil {
		if doc.promo, err = json.Marshal(o.Promo); err != nil {
			return nil, fmt.Errorf("marshaling promo snapshot: %w", err)
		}
	}
	if doc.history, err = json.Marshal(o.History); err != nil {
		return nil, fmt.Errorf("marshaling status history: %w", err)
	}
	if doc.payment, err = json.Marshal(o.Payment); err != nil {
		return nil, fmt.Errorf("marshaling payment: %w", err)
	}
	if doc.shipping, err = json.Marshal(o.Shipping); err != nil {
		return nil, fmt.Errorf("marshaling shipping info: %w", err)
	}
	return &doc, nil
}

func scanOrder(row pgx.Row) (*order.Order, error) {
	var (
		o        order.Order
		status   string
		customer, items, shippingAddr []byte
		billingAddr, pricing, promo   []byte
		history, paymentDoc, shipping []byte
	)
	err := row.Scan(
		&o.ID, &o.Number, &o.AccountID, &o.IsGuest,
		&customer, &items, &shippingAddr, &billingAddr, &o.UseSameAddress,
		&pricing, &promo, &status, &history, &paymentDoc, &shipping,
		&o.StockDebited, &o.CustomerNotes, &o.InternalNotes,
		&o.ConfirmedAt, &o.CancelledAt, &o.CancellationReason, &o.CreatedAt, &o.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	o.Status = order.Status(status)
	if err := json.Unmarshal(customer, &o.Customer); err != nil {
		return nil, fmt.Errorf("unmarshaling customer: %w", err)
	}
	if err := json.Unmarshal(items, &o.Items); err != nil {
		return nil, fmt.Errorf("unmarshaling line items: %w", err)
	}
	if err := json.Unmarshal(shippingAddr, &o.ShippingAddress); err != nil {
		return nil, fmt.Errorf("unmarshaling shipping address: %w", err)
	}
	if len(billingAddr) > 0 {
		if err := json.Unmarshal(billingAddr, &o.BillingAddress); err != nil {
			return nil, fmt.Errorf("unmarshaling billing address: %w", err)
		}
	}
	if err := json.Unmarshal(pricing, &o.Pricing); err != nil {
		return nil, fmt.Errorf("unmarshaling pricing: %w", err)
	}
	if len(promo) > 0 {
		if err := json.Unmarshal(promo, &o.Promo); err != nil {
			return nil, fmt.Errorf("unmarshaling promo snapshot: %w", err)
		}
	}
	if err := json.Unmarshal(history, &o.History); err != nil {
		return nil, fmt.Errorf("unmarshaling status history: %w", err)
	}
	if err := json.Unmarshal(paymentDoc, &o.Payment); err != nil {
		return nil, fmt.Errorf("unmarshaling payment: %w", err)
	}
	if len(shipping) > 0 {
		if err := json.Unmarshal(shipping, &o.Shipping); err != nil {
			return nil, fmt.Errorf("unmarshaling shipping info: %w", err)
		}
	}
	return &o, nil
}
