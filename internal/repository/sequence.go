package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/addara/shop-api/internal/domain/order"
)

// nextSequenceSQL is a single upsert, so concurrent allocations for the same
// month serialize on the row and never observe the same counter value.
const nextSequenceSQL = `INSERT INTO order_sequences (month_key, counter)
	VALUES ($1, 1)
	ON CONFLICT (month_key)
	DO UPDATE SET counter = order_sequences.counter + 1
	RETURNING counter`

var _ order.Sequence = (*SequenceRepository)(nil)

// SequenceRepository allocates per-month order number counters backed by
// PostgreSQL.
type SequenceRepository struct {
	pool *pgxpool.Pool
}

// NewSequenceRepository returns a SequenceRepository that uses the given pool.
func NewSequenceRepository(pool *pgxpool.Pool) *SequenceRepository {
	return &SequenceRepository{pool: pool}
}

// Next returns the next counter value for the given month key.
func (r *SequenceRepository) Next(ctx context.Context, monthKey string) (int, error) {
	var counter int
	if err := r.pool.QueryRow(ctx, nextSequenceSQL, monthKey).Scan(&counter); err != nil {
		return 0, fmt.Errorf("allocating sequence for month %q: %w", monthKey, err)
	}
	return counter, nil
}
