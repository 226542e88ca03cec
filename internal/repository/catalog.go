package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/addara/shop-api/internal/domain/catalog"
)

// kindTables maps each item kind to its table. The dispatch is resolved once
// here instead of string switches scattered through the queries; table names
// are compile-time constants, never user input.
var kindTables = map[catalog.Kind]string{
	catalog.KindCard:      "cards",
	catalog.KindDeck:      "decks",
	catalog.KindAccessory: "accessories",
}

var _ catalog.Store = (*CatalogStore)(nil)

// CatalogStore implements catalog.Store backed by PostgreSQL, one table per
// item kind.
type CatalogStore struct {
	pool *pgxpool.Pool
}

// NewCatalogStore returns a CatalogStore that uses the given pool.
func NewCatalogStore(pool *pgxpool.Pool) *CatalogStore {
	return &CatalogStore{pool: pool}
}

func tableFor(kind catalog.Kind) (string, error) {
	table, ok := kindTables[kind]
	if !ok {
		return "", errors.Wrapf(catalog.ErrUnknownKind, "%q", kind)
	}
	return table, nil
}

// FindByID returns a single catalog item from the kind's table, including
// its full stored record as the snapshot payload.
func (s *CatalogStore) FindByID(ctx context.Context, kind catalog.Kind, id string) (*catalog.Item, error) {
	table, err := tableFor(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(
		`SELECT id, name, price, stock, snapshot FROM %s WHERE id = $1`, table)

	item := catalog.Item{Kind: kind}
	err = s.pool.QueryRow(ctx, query, id).Scan(
		&item.ID, &item.Name, &item.Price, &item.Stock, &item.Snapshot,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, &catalog.NotFoundError{Kind: kind, ID: id}
		}
		return nil, fmt.Errorf("getting %s %q: %w", kind, id, err)
	}
	return &item, nil
}

// AdjustStock applies a debit or credit as a single statement so concurrent
// adjustments on the same item serialize on the row. Debits clamp at zero;
// the returned StockLevel carries the stock before and after so callers can
// detect a clamped debit.
func (s *CatalogStore) AdjustStock(ctx context.Context, kind catalog.Kind, id string, quantity int, dir catalog.Direction) (catalog.StockLevel, error) {
	table, err := tableFor(kind)
	if err != nil {
		return catalog.StockLevel{}, err
	}
	if quantity < 0 {
		return catalog.StockLevel{}, errors.Errorf("negative adjustment quantity %d", quantity)
	}

	expr := "stock + $2"
	if dir == catalog.Debit {
		expr = "GREATEST(0, stock - $2)"
	}

	query := fmt.Sprintf(`
		WITH prev AS (
			SELECT stock FROM %[1]s WHERE id = $1 FOR UPDATE
		)
		UPDATE %[1]s SET stock = %[2]s
		FROM prev
		WHERE %[1]s.id = $1
		RETURNING prev.stock, %[1]s.stock`, table, expr)

	var lvl catalog.StockLevel
	err = s.pool.QueryRow(ctx, query, id, quantity).Scan(&lvl.Before, &lvl.After)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return catalog.StockLevel{}, &catalog.NotFoundError{Kind: kind, ID: id}
		}
		return catalog.StockLevel{}, fmt.Errorf("adjusting stock for %s %q: %w", kind, id, err)
	}
	return lvl, nil
}
