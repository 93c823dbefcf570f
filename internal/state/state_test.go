package state

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/oms-core/internal/oms"
)

func TestApplyConnectionStatus(t *testing.T) {
	s := New()
	assert.Equal(t, oms.Disconnected, s.ConnectionStatus())

	s.Apply(oms.ConnectionStatusMessage{Status: oms.Connected})
	assert.Equal(t, oms.Connected, s.ConnectionStatus())
}

func TestApplyBookMessagesAccumulate(t *testing.T) {
	s := New()
	s.Apply(oms.BookSnapshotMessage{Snapshot: oms.OrderBookSnapshot{
		Symbol:    "INTC",
		Bids:      []oms.PriceLevel{{Price: decimal.NewFromInt(100), Quantity: 10}},
		Timestamp: 1,
	}})
	s.Apply(oms.BookDeltaMessage{Delta: oms.OrderBookDelta{
		Symbol:    "INTC",
		Bids:      []oms.PriceLevel{{Price: decimal.NewFromInt(100), Quantity: 25}},
		Timestamp: 2,
	}})

	snap, ok := s.OrderBook("INTC")
	require.True(t, ok)
	require.Len(t, snap.Bids, 1)
	assert.Equal(t, int64(25), snap.Bids[0].Quantity)

	_, ok = s.OrderBook("AMD")
	assert.False(t, ok)
}

func TestApplyOrderStatusNeedsTrackedOrder(t *testing.T) {
	s := New()
	// Untracked: silently ignored.
	s.Apply(oms.OrderStatusMessage{OrderID: "o-1", State: oms.New})
	_, ok := s.Order("o-1")
	assert.False(t, ok)

	o := oms.NewOrder("INTC", oms.Buy, oms.Limit, 10, 1)
	o.SetPrice(decimal.NewFromInt(50))
	o.OrderID = "o-1"
	s.TrackOrder(o)

	price := decimal.NewFromInt(50)
	s.Apply(oms.OrderStatusMessage{
		OrderID:     "o-1",
		State:       oms.PartiallyFilled,
		FilledQty:   4,
		FilledPrice: &price,
		UpdatedAt:   9,
	})

	got, ok := s.Order("o-1")
	require.True(t, ok)
	assert.Equal(t, oms.PartiallyFilled, got.State)
	assert.Equal(t, int64(4), got.FilledQuantity)
	assert.True(t, got.AverageFillPrice.Equal(price))
}

func TestApplyAccountUpdateCreatesAccount(t *testing.T) {
	s := New()
	balance := decimal.NewFromInt(9000)
	s.Apply(oms.AccountUpdateMessage{AccountID: "acct-1", Balance: &balance})

	account, ok := s.Account("acct-1")
	require.True(t, ok)
	assert.True(t, account.Balance.Equal(balance))
	assert.True(t, account.Locked.IsZero(), "partial update leaves locked untouched")
}

func TestApplyExecutionIncrementsFill(t *testing.T) {
	s := New()
	o := oms.NewOrder("INTC", oms.Buy, oms.Limit, 10, 1)
	o.SetPrice(decimal.NewFromInt(50))
	o.OrderID = "o-1"
	s.TrackOrder(o)

	s.Apply(oms.ExecutionMessage{OrderID: "o-1", FillQty: 4, FillPrice: decimal.NewFromInt(50)})
	s.Apply(oms.ExecutionMessage{OrderID: "o-1", FillQty: 8, FillPrice: decimal.NewFromInt(50)})

	got, _ := s.Order("o-1")
	assert.Equal(t, int64(10), got.FilledQuantity, "clamped at order quantity")
}
