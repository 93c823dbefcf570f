package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/oms-core/internal/oms"
)

func vwapUnderTest(total int64, interval, timeout float64) *VWAPStrategy {
	return NewVWAP("INTC", oms.Buy, VWAPParams{
		TotalVolume:     total,
		IntervalSeconds: interval,
		TimeoutSeconds:  timeout,
	}, 0, zap.NewNop())
}

func bookAt(ts float64) oms.OrderBookSnapshot {
	return snap("INTC", ts, []oms.PriceLevel{lvl(100, 50)}, []oms.PriceLevel{lvl(102, 50)})
}

func TestVWAPFirstSliceAtIntervalBoundary(t *testing.T) {
	v := vwapUnderTest(100, 10, 50)

	// Before the first boundary: just learns the mid price.
	assert.Nil(t, v.OnOrderBookUpdate(bookAt(5)))

	a := v.OnOrderBookUpdate(bookAt(10))
	place, ok := a.(PlaceOrder)
	require.True(t, ok)

	// 5 intervals total, 1 passed: ceil(100/4) = 25.
	assert.Equal(t, int64(25), place.Order.Quantity)
	assert.Equal(t, oms.Limit, place.Order.Type)
	assert.NotEmpty(t, place.Order.OrderID, "strategy assigns the slice id itself")

	// Mid 101 plus the 0.1% spread.
	expected := decimal.NewFromInt(101).Mul(decimal.NewFromFloat(1.001))
	assert.True(t, place.Order.Price.Equal(expected), "price = %s", place.Order.Price)
}

func TestVWAPCancelsOutstandingSliceAtNextBoundary(t *testing.T) {
	v := vwapUnderTest(100, 10, 50)

	a := v.OnOrderBookUpdate(bookAt(10))
	place := a.(PlaceOrder)

	// Next boundary with the slice still live: cancel it, never two
	// children outstanding at once.
	a = v.OnOrderBookUpdate(bookAt(20))
	cancel, ok := a.(CancelOrder)
	require.True(t, ok)
	assert.Equal(t, place.Order.OrderID, cancel.OrderID)

	// While waiting for the cancel acknowledgement, nothing new.
	assert.Nil(t, v.OnOrderBookUpdate(bookAt(30)))

	// CANCELED with 10 filled: 90 roll forward; next boundary reslices.
	assert.Nil(t, v.OnOrderStatusUpdate(place.Order.OrderID, oms.Canceled, 10))
	a = v.OnOrderBookUpdate(bookAt(40))
	place2, ok := a.(PlaceOrder)
	require.True(t, ok)
	// 5 intervals, 4 passed, 1 remaining: everything left goes out.
	assert.Equal(t, int64(90), place2.Order.Quantity)
}

func TestVWAPCompletesWhenVolumeDone(t *testing.T) {
	v := vwapUnderTest(30, 10, 30)

	a := v.OnOrderBookUpdate(bookAt(10))
	place := a.(PlaceOrder)
	assert.Equal(t, int64(15), place.Order.Quantity)

	assert.Nil(t, v.OnOrderStatusUpdate(place.Order.OrderID, oms.Filled, 15))
	assert.False(t, v.Done())

	a = v.OnOrderBookUpdate(bookAt(20))
	place2 := a.(PlaceOrder)
	assert.Equal(t, int64(15), place2.Order.Quantity)

	assert.Nil(t, v.OnOrderStatusUpdate(place2.Order.OrderID, oms.Filled, 15))
	assert.True(t, v.Done())
}

func TestVWAPLimitPriceClampsBuySlices(t *testing.T) {
	limit := decimal.NewFromInt(101)
	v := NewVWAP("INTC", oms.Buy, VWAPParams{
		TotalVolume:     10,
		IntervalSeconds: 10,
		TimeoutSeconds:  20,
		LimitPrice:      &limit,
	}, 0, zap.NewNop())

	a := v.OnOrderBookUpdate(bookAt(10))
	place, ok := a.(PlaceOrder)
	require.True(t, ok)
	assert.True(t, place.Order.Price.Equal(limit), "aggressive price must clamp to the limit")
}

func TestVWAPSellSlicesPriceBelowMid(t *testing.T) {
	v := NewVWAP("INTC", oms.Sell, VWAPParams{
		TotalVolume:     10,
		IntervalSeconds: 10,
		TimeoutSeconds:  20,
	}, 0, zap.NewNop())

	a := v.OnOrderBookUpdate(bookAt(10))
	place, ok := a.(PlaceOrder)
	require.True(t, ok)
	expected := decimal.NewFromInt(101).Mul(decimal.NewFromFloat(0.999))
	assert.True(t, place.Order.Price.Equal(expected))
}

func TestVWAPNoSliceWithoutReferencePrice(t *testing.T) {
	v := vwapUnderTest(100, 10, 50)
	// Timer fires past the boundary but no book or trade has been seen.
	assert.Nil(t, v.OnTimer(10))
	// Once a price arrives the pending boundary slices immediately.
	a := v.OnOrderBookUpdate(bookAt(11))
	_, ok := a.(PlaceOrder)
	assert.True(t, ok)
}

func TestVWAPExpiresAtTimeout(t *testing.T) {
	v := vwapUnderTest(100, 10, 50)
	assert.Nil(t, v.OnTimer(50))
	assert.True(t, v.Done(), "window expired with nothing outstanding")
}

func TestVWAPTradeUpdatesReferencePrice(t *testing.T) {
	v := vwapUnderTest(100, 10, 50)
	a := v.OnTradeUpdate("INTC", decimal.NewFromInt(200), 10)
	place, ok := a.(PlaceOrder)
	require.True(t, ok)
	expected := decimal.NewFromInt(200).Mul(decimal.NewFromFloat(1.001))
	assert.True(t, place.Order.Price.Equal(expected))
}

func TestParseVWAPParams(t *testing.T) {
	params, err := ParseVWAPParams(map[string]string{
		ParamTotalVolume:     "100",
		ParamIntervalSeconds: "10",
		ParamTimeoutSeconds:  "60",
		ParamLimitPrice:      "55.5",
	})
	require.NoError(t, err)
	assert.Equal(t, int64(100), params.TotalVolume)
	assert.Equal(t, float64(6), params.TotalIntervals())
	require.NotNil(t, params.LimitPrice)

	_, err = ParseVWAPParams(map[string]string{ParamTotalVolume: "100"})
	require.Error(t, err)

	_, err = ParseVWAPParams(map[string]string{
		ParamTotalVolume:     "-5",
		ParamIntervalSeconds: "10",
		ParamTimeoutSeconds:  "60",
	})
	require.Error(t, err)
}

func TestDispatcherPrunesCompletedStrategies(t *testing.T) {
	d := NewDispatcher(zap.NewNop())

	original := limitBuy("INTC", 10, 99)
	original.OrderID = "orig-1"
	s := NewStop(original, StopParams{
		TriggerParams: TriggerParams{TriggerPrice: decimal.NewFromInt(100), TriggerSide: oms.Buy},
	}, zap.NewNop())
	d.Register(s)
	require.Equal(t, 1, d.Active())

	actions := d.OnOrderBookUpdate(snap("INTC", 1, []oms.PriceLevel{lvl(101, 5)}, nil))
	require.Len(t, actions, 1)

	actions = d.OnOrderStatusUpdate("orig-1", oms.Canceled, 0)
	require.Len(t, actions, 1)
	assert.Equal(t, 0, d.Active(), "completed strategy must leave the set")
}
