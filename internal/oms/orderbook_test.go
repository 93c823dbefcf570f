package oms

import (
	"math/rand"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func level(price int64, qty int64) PriceLevel {
	return PriceLevel{Price: decimal.NewFromInt(price), Quantity: qty}
}

func TestApplyDeltaSequentialAdds(t *testing.T) {
	// Ten rounds of absolute quantity updates on five levels. Because
	// deltas replace rather than add, the final quantity is the last
	// written value, not a running sum.
	b := NewOrderBook("INTC")
	prices := []int64{100, 101, 102, 103, 104}

	for round := 1; round <= 10; round++ {
		var bids []PriceLevel
		for _, p := range prices {
			bids = append(bids, level(p, int64(round)))
		}
		require.True(t, b.ApplyDelta(OrderBookDelta{
			Symbol:    "INTC",
			Bids:      bids,
			UpdateID:  int64(round),
			Timestamp: float64(round),
		}))
	}

	snap := b.Snapshot()
	require.Len(t, snap.Bids, 5)
	for _, lvl := range snap.Bids {
		assert.Equal(t, int64(10), lvl.Quantity)
	}
	// Descending order.
	assert.True(t, snap.Bids[0].Price.Equal(decimal.NewFromInt(104)))
	assert.True(t, snap.Bids[4].Price.Equal(decimal.NewFromInt(100)))
}

func TestApplyDeltaShuffledPermutationIsDeterministic(t *testing.T) {
	// 20 absolute-quantity updates for bid 100 with qty = timestamp.
	// Stale rejection makes any application order converge on the delta
	// with the highest timestamp.
	deltas := make([]OrderBookDelta, 20)
	for i := 1; i <= 20; i++ {
		deltas[i-1] = OrderBookDelta{
			Symbol:    "INTC",
			Bids:      []PriceLevel{level(100, int64(i))},
			UpdateID:  int64(i),
			Timestamp: float64(i),
		}
	}

	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 10; trial++ {
		shuffled := append([]OrderBookDelta(nil), deltas...)
		rng.Shuffle(len(shuffled), func(i, j int) { shuffled[i], shuffled[j] = shuffled[j], shuffled[i] })

		b := NewOrderBook("INTC")
		for _, d := range shuffled {
			b.ApplyDelta(d)
		}

		bid, ok := b.BestBid()
		require.True(t, ok)
		assert.Equal(t, int64(20), bid.Quantity, "trial %d", trial)
		assert.Equal(t, 20.0, b.Timestamp())
	}
}

func TestApplyDeltaRejectsStaleAndForeignSymbol(t *testing.T) {
	b := NewOrderBook("INTC")
	require.True(t, b.ApplyDelta(OrderBookDelta{
		Symbol:    "INTC",
		Bids:      []PriceLevel{level(100, 10)},
		UpdateID:  5,
		Timestamp: 50,
	}))

	assert.False(t, b.ApplyDelta(OrderBookDelta{
		Symbol:    "AMD",
		Bids:      []PriceLevel{level(100, 99)},
		Timestamp: 60,
	}), "foreign symbol must be rejected")

	assert.False(t, b.ApplyDelta(OrderBookDelta{
		Symbol:    "INTC",
		Bids:      []PriceLevel{level(100, 99)},
		Timestamp: 49,
	}), "stale timestamp must be rejected")

	bid, ok := b.BestBid()
	require.True(t, ok)
	assert.Equal(t, int64(10), bid.Quantity)
}

func TestApplyDeltaSameDeltaTwiceIsNoOp(t *testing.T) {
	b := NewOrderBook("INTC")
	d := OrderBookDelta{
		Symbol:    "INTC",
		Bids:      []PriceLevel{level(100, 10)},
		Asks:      []PriceLevel{level(101, 5)},
		UpdateID:  1,
		Timestamp: 10,
	}

	require.True(t, b.ApplyDelta(d))
	first := b.Snapshot()

	// Equal timestamps are not stale, and absolute quantities make the
	// second application idempotent.
	b.ApplyDelta(d)
	assert.Equal(t, first, b.Snapshot())
}

func TestApplyDeltaZeroQuantityDeletesLevel(t *testing.T) {
	b := NewOrderBook("INTC")
	b.ApplyDelta(OrderBookDelta{
		Symbol:    "INTC",
		Asks:      []PriceLevel{level(101, 5), level(102, 7)},
		Timestamp: 1,
	})

	b.ApplyDelta(OrderBookDelta{
		Symbol:    "INTC",
		Asks:      []PriceLevel{level(101, 0)},
		Timestamp: 2,
	})

	ask, ok := b.BestAsk()
	require.True(t, ok)
	assert.True(t, ask.Price.Equal(decimal.NewFromInt(102)))
	assert.Len(t, b.Snapshot().Asks, 1)
}

func TestEmptyBookBoundaries(t *testing.T) {
	b := NewOrderBook("INTC")

	_, ok := b.BestBid()
	assert.False(t, ok)
	_, ok = b.BestAsk()
	assert.False(t, ok)
	_, ok = b.MidPrice()
	assert.False(t, ok)
	assert.True(t, b.Validate(), "empty book is valid")
}

func TestMidPriceAndValidate(t *testing.T) {
	b := NewOrderBook("INTC")
	b.ApplyDelta(OrderBookDelta{
		Symbol:    "INTC",
		Bids:      []PriceLevel{level(100, 10)},
		Asks:      []PriceLevel{level(102, 10)},
		Timestamp: 1,
	})

	mid, ok := b.MidPrice()
	require.True(t, ok)
	assert.True(t, mid.Equal(decimal.NewFromInt(101)))
	assert.True(t, b.Validate())

	// A bid at 105 crosses the 102 ask.
	b.ApplyDelta(OrderBookDelta{
		Symbol:    "INTC",
		Bids:      []PriceLevel{level(105, 10)},
		Timestamp: 2,
	})
	assert.False(t, b.Validate())
}

func TestRebuildReplacesWholesale(t *testing.T) {
	b := NewOrderBook("INTC")
	b.ApplyDelta(OrderBookDelta{
		Symbol:    "INTC",
		Bids:      []PriceLevel{level(105, 10)},
		Timestamp: 100,
	})

	b.Rebuild(OrderBookSnapshot{
		Symbol:    "INTC",
		Bids:      []PriceLevel{level(100, 20)},
		Asks:      []PriceLevel{level(102, 20)},
		UpdateID:  9,
		Timestamp: 110,
	})

	snap := b.Snapshot()
	assert.Equal(t, 110.0, snap.Timestamp)
	require.Len(t, snap.Bids, 1)
	assert.True(t, snap.Bids[0].Price.Equal(decimal.NewFromInt(100)))
	assert.Equal(t, int64(20), snap.Bids[0].Quantity)

	// Stale in-flight deltas from before the snapshot are now dropped.
	assert.False(t, b.ApplyDelta(OrderBookDelta{
		Symbol:    "INTC",
		Bids:      []PriceLevel{level(105, 10)},
		Timestamp: 105,
	}))
	_, hasCrossed := findLevel(b.Snapshot().Bids, 105)
	assert.False(t, hasCrossed)
}

func TestWalkAsksStopsWhenToldTo(t *testing.T) {
	b := NewOrderBook("INTC")
	b.ApplyDelta(OrderBookDelta{
		Symbol:    "INTC",
		Asks:      []PriceLevel{level(101, 1), level(102, 2), level(103, 3)},
		Timestamp: 1,
	})

	var seen []int64
	b.WalkAsks(func(lvl PriceLevel) bool {
		seen = append(seen, lvl.Quantity)
		return len(seen) < 2
	})
	assert.Equal(t, []int64{1, 2}, seen)
}

func findLevel(levels []PriceLevel, price int64) (PriceLevel, bool) {
	p := decimal.NewFromInt(price)
	for _, lvl := range levels {
		if lvl.Price.Equal(p) {
			return lvl, true
		}
	}
	return PriceLevel{}, false
}
