package client

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/abdoElHodaky/oms-core/internal/oms"
	"github.com/abdoElHodaky/oms-core/internal/venue"
	"github.com/abdoElHodaky/oms-core/pkg/config"
)

func newClientUnderTest(t *testing.T) (*Client, *venue.MockAdapter) {
	t.Helper()
	adapter := venue.NewMockAdapter()
	c, err := New(adapter, config.LoggingConfig{
		Level:                "error",
		Destination:          config.LoggingDestinationConsole,
		FlushIntervalSeconds: 3600,
		BatchSize:            10000,
	}, 16)
	require.NoError(t, err)
	require.NoError(t, c.Connect())
	t.Cleanup(func() { _ = c.Disconnect() })
	return c, adapter
}

func TestFetchMessageReturnsTaggedJSONAndUpdatesState(t *testing.T) {
	c, adapter := newClientUnderTest(t)

	adapter.Push(oms.BookDeltaMessage{Delta: oms.OrderBookDelta{
		Symbol:    "INTC",
		Bids:      []oms.PriceLevel{{Price: decimal.NewFromInt(100), Quantity: 10}},
		UpdateID:  1,
		Timestamp: 1,
	}})

	raw, err := c.FetchMessage(time.Second)
	require.NoError(t, err)
	require.NotEmpty(t, raw)

	var envelope struct {
		Type string          `json:"type"`
		Data json.RawMessage `json:"data"`
	}
	require.NoError(t, json.Unmarshal([]byte(raw), &envelope))
	assert.Equal(t, "OrderBookDelta", envelope.Type)

	// The message was folded into local state before returning.
	bookJSON, err := c.GetOrderBook("INTC")
	require.NoError(t, err)
	require.NotEmpty(t, bookJSON)
	assert.Contains(t, bookJSON, `"100"`, "decimal prices serialize as strings")
}

func TestFetchMessageTimeoutReturnsEmpty(t *testing.T) {
	c, _ := newClientUnderTest(t)

	raw, err := c.FetchMessage(20 * time.Millisecond)
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestAccountStateAccumulatesFromStream(t *testing.T) {
	c, adapter := newClientUnderTest(t)

	balance := decimal.NewFromInt(9000)
	adapter.Push(oms.AccountUpdateMessage{AccountID: "acct-1", Balance: &balance})

	_, err := c.FetchMessage(time.Second)
	require.NoError(t, err)

	raw, err := c.GetAccountState("acct-1")
	require.NoError(t, err)
	require.NotEmpty(t, raw)
	assert.Contains(t, raw, `"9000"`)

	raw, err = c.GetAccountState("unknown")
	require.NoError(t, err)
	assert.Empty(t, raw)
}

func TestPlaceOrderTracksForStatusUpdates(t *testing.T) {
	c, adapter := newClientUnderTest(t)

	o := oms.NewOrder("INTC", oms.Buy, oms.Limit, 10, 1)
	o.SetPrice(decimal.NewFromInt(50))
	o.OrderID = "o-1"

	ok, err := c.PlaceOrder(o)
	require.NoError(t, err)
	require.True(t, ok)

	adapter.Push(oms.OrderStatusMessage{OrderID: "o-1", State: oms.New, UpdatedAt: 2})
	_, err = c.FetchMessage(time.Second)
	require.NoError(t, err)

	got, found := c.state.Order("o-1")
	require.True(t, found)
	assert.Equal(t, oms.New, got.State)
}

func TestUpdateOrderParsesPrice(t *testing.T) {
	c, _ := newClientUnderTest(t)

	qty := int64(5)
	ok, err := c.UpdateOrder("o-1", "51.25", &qty)
	require.NoError(t, err)
	assert.True(t, ok)

	_, err = c.UpdateOrder("o-1", "not-a-price", nil)
	require.Error(t, err)
}
