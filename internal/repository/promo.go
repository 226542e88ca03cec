package repository

import (
	"context"
	"fmt"

	"github.com/go-faster/errors"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/addara/shop-api/internal/domain/pricing"
	"github.com/addara/shop-api/internal/domain/promo"
)

const (
	getPromoSQL = `SELECT code, kind, amount, starts_at, ends_at, created_at
		FROM promo_codes WHERE UPPER(code) = UPPER($1)`

	createPromoSQL = `INSERT INTO promo_codes (code, kind, amount, starts_at, ends_at)
		VALUES ($1, $2, $3, $4, $5)`

	deletePromoSQL = `DELETE FROM promo_codes WHERE UPPER(code) = UPPER($1)`
)

var _ promo.Repository = (*PromoRepository)(nil)

// PromoRepository implements promo.Repository backed by PostgreSQL. Code
// matching is case-insensitive.
type PromoRepository struct {
	pool *pgxpool.Pool
}

// NewPromoRepository returns a PromoRepository that uses the given pool.
func NewPromoRepository(pool *pgxpool.Pool) *PromoRepository {
	return &PromoRepository{pool: pool}
}

// FindByCode looks up a promo code. Returns promo.ErrUnknownCode when the
// code does not exist.
func (r *PromoRepository) FindByCode(ctx context.Context, code string) (*promo.Code, error) {
	var (
		c    promo.Code
		kind string
	)
	err := r.pool.QueryRow(ctx, getPromoSQL, code).Scan(
		&c.Code, &kind, &c.Amount, &c.StartsAt, &c.EndsAt, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, promo.ErrUnknownCode
		}
		return nil, fmt.Errorf("finding promo code %q: %w", code, err)
	}
	c.Type = pricing.DiscountType(kind)
	return &c, nil
}

// Create persists a new promo code. Returns promo.ErrCodeExists on a
// duplicate code.
func (r *PromoRepository) Create(ctx context.Context, c *promo.Code) error {
	_, err := r.pool.Exec(ctx, createPromoSQL,
		c.Code, string(c.Type), c.Amount, c.StartsAt, c.EndsAt,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return promo.ErrCodeExists
		}
		return fmt.Errorf("creating promo code %q: %w", c.Code, err)
	}
	return nil
}

// Delete removes a promo code. Orders keep their snapshot, so historical
// pricing is unaffected.
func (r *PromoRepository) Delete(ctx context.Context, code string) error {
	tag, err := r.pool.Exec(ctx, deletePromoSQL, code)
	if err != nil {
		return fmt.Errorf("deleting promo code %q: %w", code, err)
	}
	if tag.RowsAffected() == 0 {
		return promo.ErrUnknownCode
	}
	return nil
}
