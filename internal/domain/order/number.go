package order

import (
	"context"
	"fmt"
	"time"
)

// NumberPrefix is the store's order number prefix.
const NumberPrefix = "ADD"

// Sequence allocates order numbers within a calendar month. Next must be
// atomic: concurrent allocations for the same month key never observe the
// same value. The counter resets each month by keying on the month.
type Sequence interface {
	Next(ctx context.Context, monthKey string) (int, error)
}

// MonthKey returns the YYMM key for t.
func MonthKey(t time.Time) string {
	return t.Format("0601")
}

// FormatNumber builds a human-readable order number, e.g. ADD-2608-0042.
func FormatNumber(prefix string, t time.Time, n int) string {
	return fmt.Sprintf("%s-%s-%04d", prefix, MonthKey(t), n)
}
