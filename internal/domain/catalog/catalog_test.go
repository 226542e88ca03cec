package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKind(t *testing.T) {
	for _, k := range Kinds {
		got, err := ParseKind(string(k))
		require.NoError(t, err)
		assert.Equal(t, k, got)
	}

	_, err := ParseKind("booster")
	require.ErrorIs(t, err, ErrUnknownKind)

	_, err = ParseKind("")
	require.ErrorIs(t, err, ErrUnknownKind)
}

func TestAvailabilityFor(t *testing.T) {
	tests := []struct {
		kind  Kind
		stock int
		want  Availability
	}{
		{KindCard, 0, OutOfStock},
		{KindCard, -1, OutOfStock},
		{KindCard, 1, LowStock},
		{KindCard, 5, LowStock},
		{KindCard, 6, Available},
		{KindDeck, 5, LowStock},
		{KindDeck, 6, Available},
		{KindAccessory, 5, LowStock},
		{KindAccessory, 10, LowStock},
		{KindAccessory, 11, Available},
	}
	for _, tt := range tests {
		got := AvailabilityFor(tt.kind, tt.stock)
		assert.Equal(t, tt.want, got, "%s with stock %d", tt.kind, tt.stock)
	}
}

func TestItem_InStock(t *testing.T) {
	item := &Item{ID: "c1", Kind: KindCard, Stock: 3}

	assert.True(t, item.InStock(3))
	assert.False(t, item.InStock(4))
	assert.Equal(t, LowStock, item.Availability())
}

func TestStockLevel_Clamped(t *testing.T) {
	// A debit of 5 against stock 3 clamps at zero.
	lvl := StockLevel{Before: 3, After: 0}
	assert.Equal(t, 3, lvl.Moved())
	assert.True(t, lvl.Clamped(5))
	assert.False(t, lvl.Clamped(3))

	credit := StockLevel{Before: 0, After: 3}
	assert.Equal(t, 3, credit.Moved())
}
