package strategy

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/abdoElHodaky/oms-core/internal/oms"
)

func bookWith(t *testing.T, symbol string, bids, asks []oms.PriceLevel) *oms.OrderBook {
	t.Helper()
	b := oms.NewOrderBook(symbol)
	b.Rebuild(oms.OrderBookSnapshot{Symbol: symbol, Bids: bids, Asks: asks, Timestamp: 1})
	return b
}

func lvl(price, qty int64) oms.PriceLevel {
	return oms.PriceLevel{Price: decimal.NewFromInt(price), Quantity: qty}
}

func limitBuy(symbol string, qty, price int64) *oms.Order {
	o := oms.NewOrder(symbol, oms.Buy, oms.Limit, qty, 1)
	o.SetPrice(decimal.NewFromInt(price))
	return o
}

func limitSell(symbol string, qty, price int64) *oms.Order {
	o := oms.NewOrder(symbol, oms.Sell, oms.Limit, qty, 1)
	o.SetPrice(decimal.NewFromInt(price))
	return o
}

func TestCheckFOKEmptyBookRejects(t *testing.T) {
	book := oms.NewOrderBook("INTC")
	assert.False(t, CheckFOK(limitBuy("INTC", 10, 50), book))
}

func TestCheckFOKInsufficientLiquidityRejects(t *testing.T) {
	// Ask side holds only 3 at the limit; a 10-lot FOK must not pass.
	book := bookWith(t, "INTC", nil, []oms.PriceLevel{lvl(50, 3)})
	assert.False(t, CheckFOK(limitBuy("INTC", 10, 50), book))
}

func TestCheckFOKAggregatesAcrossLevelsWithinLimit(t *testing.T) {
	book := bookWith(t, "INTC", nil, []oms.PriceLevel{lvl(50, 4), lvl(51, 4), lvl(52, 4)})

	assert.True(t, CheckFOK(limitBuy("INTC", 10, 52), book))
	// Limit 51 only reaches 8 of the 10.
	assert.False(t, CheckFOK(limitBuy("INTC", 10, 51), book))
}

func TestCheckFOKSellWalksBidsDown(t *testing.T) {
	book := bookWith(t, "INTC", []oms.PriceLevel{lvl(50, 6), lvl(49, 6)}, nil)

	assert.True(t, CheckFOK(limitSell("INTC", 10, 49), book))
	assert.False(t, CheckFOK(limitSell("INTC", 10, 50), book))
}

func TestFillableQtyClampsToAvailable(t *testing.T) {
	book := bookWith(t, "INTC", nil, []oms.PriceLevel{lvl(50, 3), lvl(51, 2), lvl(60, 100)})

	// Limit 51 can reach 5 of the requested 10.
	assert.Equal(t, int64(5), FillableQty(limitBuy("INTC", 10, 51), book))
	// Enough liquidity caps at the order quantity.
	assert.Equal(t, int64(10), FillableQty(limitBuy("INTC", 10, 60), book))
	// Nothing at or under the limit.
	assert.Equal(t, int64(0), FillableQty(limitBuy("INTC", 10, 49), book))
}

func TestFillableQtyMarketTakesEverything(t *testing.T) {
	book := bookWith(t, "INTC", nil, []oms.PriceLevel{lvl(50, 3), lvl(99, 3)})
	o := oms.NewOrder("INTC", oms.Buy, oms.Market, 10, 1)
	assert.Equal(t, int64(6), FillableQty(o, book))
}
