// Package catalog defines the sellable item model shared by the order engine
// and the storefront: item kinds, stock availability tiers, and the Store
// boundary used for lookups and atomic stock adjustment.
package catalog

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// Kind discriminates the catalog an item lives in.
type Kind string

const (
	KindCard      Kind = "card"
	KindDeck      Kind = "deck"
	KindAccessory Kind = "accessory"
)

// Kinds lists every valid item kind.
var Kinds = []Kind{KindCard, KindDeck, KindAccessory}

// ErrUnknownKind is returned when an item kind string does not match any
// known catalog.
var ErrUnknownKind = errors.New("unknown item kind")

// ParseKind validates and converts an item kind string.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case KindCard, KindDeck, KindAccessory:
		return Kind(s), nil
	}
	return "", errors.Wrapf(ErrUnknownKind, "%q", s)
}

// lowStockThreshold returns the stock level at or below which an item of
// this kind is reported as low-stock. Singles and decks move in small
// quantities; accessories are restocked in bulk.
func (k Kind) lowStockThreshold() int {
	if k == KindAccessory {
		return 10
	}
	return 5
}

// Availability is a derived view of an item's stock level. It is recomputed
// from stock on every read and never stored independently.
type Availability string

const (
	Available  Availability = "available"
	LowStock   Availability = "low-stock"
	OutOfStock Availability = "out-of-stock"
)

// AvailabilityFor derives the availability tier for a stock level of the
// given kind.
func AvailabilityFor(kind Kind, stock int) Availability {
	switch {
	case stock <= 0:
		return OutOfStock
	case stock <= kind.lowStockThreshold():
		return LowStock
	default:
		return Available
	}
}

// Item is a sellable catalog entry. Snapshot carries the full stored record
// so orders can freeze it at creation time.
type Item struct {
	ID       string
	Kind     Kind
	Name     string
	Price    decimal.Decimal
	Stock    int
	Snapshot json.RawMessage
}

// Availability returns the item's derived availability tier.
func (i *Item) Availability() Availability {
	return AvailabilityFor(i.Kind, i.Stock)
}

// InStock reports whether the item can cover the requested quantity.
func (i *Item) InStock(quantity int) bool {
	return i.Stock >= quantity
}

// NotFoundError indicates a requested catalog item does not exist.
type NotFoundError struct {
	Kind Kind
	ID   string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s %s not found", e.Kind, e.ID)
}

// Direction selects the sign of a stock adjustment.
type Direction string

const (
	Debit  Direction = "debit"
	Credit Direction = "credit"
)

// StockLevel reports the stock count before and after an adjustment.
type StockLevel struct {
	Before int
	After  int
}

// Moved returns the quantity the adjustment actually applied.
func (l StockLevel) Moved() int {
	if l.After > l.Before {
		return l.After - l.Before
	}
	return l.Before - l.After
}

// Clamped reports whether a debit was truncated because the requested
// quantity exceeded available stock.
func (l StockLevel) Clamped(requested int) bool {
	return l.Moved() < requested
}

// Store is the catalog boundary consumed by the order engine.
//
// AdjustStock must be atomic per item: a debit is a single compare-and-adjust
// at the storage layer, clamped at zero, never a load-then-save in
// application code. The returned StockLevel lets callers detect a clamped
// debit instead of having the shortfall silently swallowed.
type Store interface {
	FindByID(ctx context.Context, kind Kind, id string) (*Item, error)
	AdjustStock(ctx context.Context, kind Kind, id string, quantity int, dir Direction) (StockLevel, error)
}
