package promo

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/addara/shop-api/internal/domain/pricing"
)

type mockRepo struct {
	byCode map[string]*Code
}

func (m *mockRepo) FindByCode(_ context.Context, code string) (*Code, error) {
	c, ok := m.byCode[code]
	if !ok {
		return nil, ErrUnknownCode
	}
	return c, nil
}

func (m *mockRepo) Create(_ context.Context, c *Code) error {
	m.byCode[c.Code] = c
	return nil
}

func (m *mockRepo) Delete(_ context.Context, code string) error {
	delete(m.byCode, code)
	return nil
}

func ts(s string) *time.Time {
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return &t
}

func TestActiveAt(t *testing.T) {
	now := *ts("2026-06-15T12:00:00Z")

	tests := []struct {
		name     string
		startsAt *time.Time
		endsAt   *time.Time
		want     bool
	}{
		{"no window", nil, nil, true},
		{"inside window", ts("2026-06-01T00:00:00Z"), ts("2026-07-01T00:00:00Z"), true},
		{"not started", ts("2026-07-01T00:00:00Z"), nil, false},
		{"expired", nil, ts("2026-06-01T00:00:00Z"), false},
		{"open start", nil, ts("2026-07-01T00:00:00Z"), true},
		{"open end", ts("2026-06-01T00:00:00Z"), nil, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := &Code{Code: "X", StartsAt: tt.startsAt, EndsAt: tt.endsAt}
			assert.Equal(t, tt.want, c.ActiveAt(now))
		})
	}
}

func TestResolve_Snapshot(t *testing.T) {
	repo := &mockRepo{byCode: map[string]*Code{
		"WELCOME10": {
			Code:   "WELCOME10",
			Type:   pricing.DiscountPercentage,
			Amount: decimal.NewFromInt(10),
		},
	}}
	r := NewResolver(repo)

	snap, err := r.Resolve(context.Background(), "WELCOME10")
	require.NoError(t, err)
	assert.Equal(t, "WELCOME10", snap.Code)
	assert.Equal(t, pricing.DiscountPercentage, snap.Type)
	assert.True(t, snap.Amount.Equal(decimal.NewFromInt(10)))
}

func TestResolve_UnknownCode(t *testing.T) {
	r := NewResolver(&mockRepo{byCode: map[string]*Code{}})

	_, err := r.Resolve(context.Background(), "NOPE")
	require.ErrorIs(t, err, ErrUnknownCode)
}

func TestResolve_OutsideWindow(t *testing.T) {
	repo := &mockRepo{byCode: map[string]*Code{
		"EXPIRED": {
			Code:   "EXPIRED",
			Type:   pricing.DiscountFixed,
			Amount: decimal.NewFromInt(5),
			EndsAt: ts("2026-01-01T00:00:00Z"),
		},
	}}
	r := NewResolver(repo)
	r.now = func() time.Time { return *ts("2026-06-15T12:00:00Z") }

	_, err := r.Resolve(context.Background(), "EXPIRED")
	require.ErrorIs(t, err, ErrCodeNotActive)
}
