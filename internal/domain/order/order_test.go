package order

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCanTransition(t *testing.T) {
	tests := []struct {
		from Status
		to   Status
		want bool
	}{
		{StatusPending, StatusLocked, true},
		{StatusPending, StatusConfirmed, true},
		{StatusPending, StatusCancelled, true},
		{StatusPending, StatusShipped, false},
		{StatusLocked, StatusPending, true},
		{StatusLocked, StatusConfirmed, true},
		{StatusLocked, StatusRefunded, false},
		{StatusConfirmed, StatusProcessing, true},
		{StatusConfirmed, StatusShipped, true},
		{StatusConfirmed, StatusPending, false},
		{StatusProcessing, StatusShipped, true},
		{StatusProcessing, StatusCancelled, true},
		{StatusShipped, StatusDelivered, true},
		{StatusShipped, StatusCancelled, false},
		{StatusDelivered, StatusRefunded, true},
		{StatusDelivered, StatusShipped, false},
		{StatusCancelled, StatusPending, false},
		{StatusRefunded, StatusConfirmed, false},
	}
	for _, tt := range tests {
		got := tt.from.CanTransition(tt.to)
		assert.Equal(t, tt.want, got, "%s -> %s", tt.from, tt.to)
	}
}

func TestTerminalStatesHaveNoExits(t *testing.T) {
	for _, terminal := range []Status{StatusCancelled, StatusRefunded} {
		for from := range transitions {
			assert.False(t, terminal.CanTransition(from), "%s must not leave %s", terminal, from)
		}
	}
}

func TestSetStatus_AppendsHistory(t *testing.T) {
	now := time.Date(2026, 8, 1, 10, 0, 0, 0, time.UTC)
	o := &Order{
		Status:  StatusPending,
		History: []StatusChange{{Status: StatusPending, At: now}},
	}

	later := now.Add(time.Hour)
	require.NoError(t, o.setStatus(StatusConfirmed, later, "payment confirmed", "system"))

	assert.Equal(t, StatusConfirmed, o.Status)
	require.Len(t, o.History, 2)
	assert.Equal(t, StatusConfirmed, o.History[1].Status)
	assert.Equal(t, "payment confirmed", o.History[1].Note)
	assert.Equal(t, "system", o.History[1].Actor)
	assert.Equal(t, later, o.UpdatedAt)
}

func TestSetStatus_RejectsIllegalTransition(t *testing.T) {
	o := &Order{Status: StatusDelivered}

	err := o.setStatus(StatusShipped, time.Now(), "", "")

	var tr *InvalidTransitionError
	require.ErrorAs(t, err, &tr)
	assert.Equal(t, StatusDelivered, tr.From)
	assert.Equal(t, StatusShipped, tr.To)
	// State and history untouched on rejection.
	assert.Equal(t, StatusDelivered, o.Status)
	assert.Empty(t, o.History)
}

func TestFormatNumber(t *testing.T) {
	at := time.Date(2026, 8, 15, 0, 0, 0, 0, time.UTC)

	assert.Equal(t, "ADD-2608-0042", FormatNumber(NumberPrefix, at, 42))
	assert.Equal(t, "ADD-2608-0001", FormatNumber(NumberPrefix, at, 1))
	assert.Equal(t, "ADD-2608-12345", FormatNumber(NumberPrefix, at, 12345))
}

func TestMonthKey(t *testing.T) {
	assert.Equal(t, "2612", MonthKey(time.Date(2026, 12, 31, 23, 59, 0, 0, time.UTC)))
	assert.Equal(t, "2701", MonthKey(time.Date(2027, 1, 1, 0, 0, 0, 0, time.UTC)))
}
