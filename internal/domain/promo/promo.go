// Package promo holds the promo code records and their validity rules.
package promo

import (
	"context"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"

	"github.com/addara/shop-api/internal/domain/pricing"
)

var (
	// ErrUnknownCode is returned when a promo code does not exist.
	ErrUnknownCode = errors.New("unknown promo code")
	// ErrCodeNotActive is returned when a promo code exists but the current
	// time falls outside its validity window.
	ErrCodeNotActive = errors.New("promo code not active")
	// ErrCodeExists is returned when creating a code that already exists.
	ErrCodeExists = errors.New("promo code already exists")
)

// Code is a stored promo code. StartsAt and EndsAt are optional; a nil bound
// leaves the window open on that side.
type Code struct {
	Code      string
	Type      pricing.DiscountType
	Amount    decimal.Decimal
	StartsAt  *time.Time
	EndsAt    *time.Time
	CreatedAt time.Time
}

// ActiveAt reports whether the code's validity window covers t.
func (c *Code) ActiveAt(t time.Time) bool {
	if c.StartsAt != nil && t.Before(*c.StartsAt) {
		return false
	}
	if c.EndsAt != nil && t.After(*c.EndsAt) {
		return false
	}
	return true
}

// Snapshot freezes the code's discount parameters for storage on an order.
func (c *Code) Snapshot() *pricing.PromoSnapshot {
	return &pricing.PromoSnapshot{
		Code:   c.Code,
		Type:   c.Type,
		Amount: c.Amount,
	}
}

// Repository provides lookup and mutation of promo codes.
type Repository interface {
	FindByCode(ctx context.Context, code string) (*Code, error)
	Create(ctx context.Context, code *Code) error
	Delete(ctx context.Context, code string) error
}

// Resolver resolves a promo code input into a snapshot, enforcing existence
// and the validity window.
type Resolver struct {
	repo Repository
	now  func() time.Time
}

// NewResolver creates a Resolver backed by the given repository.
func NewResolver(repo Repository) *Resolver {
	return &Resolver{repo: repo, now: time.Now}
}

// Resolve looks up the code and returns its snapshot if it is active now.
func (r *Resolver) Resolve(ctx context.Context, code string) (*pricing.PromoSnapshot, error) {
	c, err := r.repo.FindByCode(ctx, code)
	if err != nil {
		if errors.Is(err, ErrUnknownCode) {
			return nil, ErrUnknownCode
		}
		return nil, errors.Wrap(err, "lookup promo code")
	}

	if !c.ActiveAt(r.now()) {
		return nil, ErrCodeNotActive
	}

	return c.Snapshot(), nil
}
