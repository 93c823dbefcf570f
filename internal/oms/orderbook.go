package oms

import (
	"sort"
	"sync"

	"github.com/shopspring/decimal"
)

// PriceLevel is one rung of the ladder: an absolute quantity resting at a
// price. Zero or negative quantity is never stored: ApplyDelta deletes
// the level instead, and Rebuild drops it.
type PriceLevel struct {
	Price    decimal.Decimal `json:"price"`
	Quantity int64           `json:"quantity"`
}

// OrderBookDelta carries an absolute-quantity update for a symbol: each
// (price, quantity) pair REPLACES the resting quantity at that price; it
// is never added to the prior value. A quantity <= 0 deletes the level.
type OrderBookDelta struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	UpdateID  int64        `json:"update_id"`
	Timestamp float64      `json:"timestamp"`
}

// OrderBookSnapshot is a full wholesale replacement of a book's state,
// as returned by the adapter's REST snapshot endpoint.
type OrderBookSnapshot struct {
	Symbol    string       `json:"symbol"`
	Bids      []PriceLevel `json:"bids"`
	Asks      []PriceLevel `json:"asks"`
	UpdateID  int64        `json:"update_id"`
	Timestamp float64      `json:"timestamp"`
}

// OrderBook is a per-symbol price-aggregated ladder. Bids are kept sorted
// descending by price, asks ascending, so BestBid/BestAsk are O(1) reads;
// ApplyDelta finds each touched price by binary search (O(log n)) and then
// overwrites it in place, or inserts/removes it by shifting the slice.
type OrderBook struct {
	mu sync.RWMutex

	symbol       string
	bids         []PriceLevel // descending by price
	asks         []PriceLevel // ascending by price
	lastUpdateID int64
	timestamp    float64
}

// NewOrderBook creates an empty book for symbol.
func NewOrderBook(symbol string) *OrderBook {
	return &OrderBook{symbol: symbol}
}

// Symbol returns the book's symbol.
func (b *OrderBook) Symbol() string {
	return b.symbol
}

// ApplyDelta applies an absolute-quantity delta. Rejects deltas for a
// different symbol or with a timestamp strictly older than the book's
// current timestamp (stale-rejection rule, which makes applying any
// permutation of distinct-timestamp deltas deterministic). A delta with a
// timestamp equal to the book's current timestamp is still applied.
func (b *OrderBook) ApplyDelta(delta OrderBookDelta) bool {
	if delta.Symbol != b.symbol {
		return false
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if delta.Timestamp < b.timestamp {
		return false
	}

	for _, lvl := range delta.Bids {
		b.bids = upsertLevel(b.bids, lvl, true)
	}
	for _, lvl := range delta.Asks {
		b.asks = upsertLevel(b.asks, lvl, false)
	}

	b.lastUpdateID = delta.UpdateID
	b.timestamp = delta.Timestamp
	return true
}

// Rebuild wholesale-replaces the book's state, as happens on reconcile.
func (b *OrderBook) Rebuild(snapshot OrderBookSnapshot) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.bids = sortedCopy(snapshot.Bids, true)
	b.asks = sortedCopy(snapshot.Asks, false)
	b.lastUpdateID = snapshot.UpdateID
	b.timestamp = snapshot.Timestamp
}

// Snapshot returns an immutable copy of the book's current state.
func (b *OrderBook) Snapshot() OrderBookSnapshot {
	b.mu.RLock()
	defer b.mu.RUnlock()

	return OrderBookSnapshot{
		Symbol:    b.symbol,
		Bids:      append([]PriceLevel(nil), b.bids...),
		Asks:      append([]PriceLevel(nil), b.asks...),
		UpdateID:  b.lastUpdateID,
		Timestamp: b.timestamp,
	}
}

// BestBid returns the highest-priced bid level, if any.
func (b *OrderBook) BestBid() (PriceLevel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.bids) == 0 {
		return PriceLevel{}, false
	}
	return b.bids[0], true
}

// BestAsk returns the lowest-priced ask level, if any.
func (b *OrderBook) BestAsk() (PriceLevel, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if len(b.asks) == 0 {
		return PriceLevel{}, false
	}
	return b.asks[0], true
}

// MidPrice returns (best_bid + best_ask) / 2 when both sides are present.
func (b *OrderBook) MidPrice() (decimal.Decimal, bool) {
	bid, ok := b.BestBid()
	if !ok {
		return decimal.Zero, false
	}
	ask, ok := b.BestAsk()
	if !ok {
		return decimal.Zero, false
	}
	return bid.Price.Add(ask.Price).Div(decimal.NewFromInt(2)), true
}

// Validate returns false when the book is crossed (best_bid >= best_ask),
// which signals the caller to reconcile. An empty book (either side
// absent) is considered valid.
func (b *OrderBook) Validate() bool {
	bid, bidOK := b.BestBid()
	ask, askOK := b.BestAsk()
	if !bidOK || !askOK {
		return true
	}
	return bid.Price.LessThan(ask.Price)
}

// Timestamp returns the book's last-applied timestamp.
func (b *OrderBook) Timestamp() float64 {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.timestamp
}

// WalkAsks invokes fn for each ask level in ascending price order until fn
// returns false or the book is exhausted. Used by FOK/IOC gating to
// accumulate fillable liquidity for a BUY order.
func (b *OrderBook) WalkAsks(fn func(level PriceLevel) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, lvl := range b.asks {
		if !fn(lvl) {
			return
		}
	}
}

// WalkBids invokes fn for each bid level in descending price order until fn
// returns false or the book is exhausted. Used by FOK/IOC gating for a
// SELL order.
func (b *OrderBook) WalkBids(fn func(level PriceLevel) bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	for _, lvl := range b.bids {
		if !fn(lvl) {
			return
		}
	}
}

func upsertLevel(levels []PriceLevel, lvl PriceLevel, descending bool) []PriceLevel {
	idx := searchLevels(levels, lvl.Price, descending)
	found := idx < len(levels) && levels[idx].Price.Equal(lvl.Price)

	if lvl.Quantity <= 0 {
		if found {
			return append(levels[:idx], levels[idx+1:]...)
		}
		return levels
	}

	if found {
		levels[idx].Quantity = lvl.Quantity
		return levels
	}

	levels = append(levels, PriceLevel{})
	copy(levels[idx+1:], levels[idx:])
	levels[idx] = lvl
	return levels
}

// searchLevels returns the index of price within levels (sorted descending
// or ascending per the flag), or the insertion point if absent.
func searchLevels(levels []PriceLevel, price decimal.Decimal, descending bool) int {
	return sort.Search(len(levels), func(i int) bool {
		if descending {
			return levels[i].Price.LessThanOrEqual(price)
		}
		return levels[i].Price.GreaterThanOrEqual(price)
	})
}

func sortedCopy(levels []PriceLevel, descending bool) []PriceLevel {
	out := append([]PriceLevel(nil), levels...)
	sort.SliceStable(out, func(i, j int) bool {
		if descending {
			return out[i].Price.GreaterThan(out[j].Price)
		}
		return out[i].Price.LessThan(out[j].Price)
	})
	// collapse any duplicate prices in the input snapshot, keeping the last.
	deduped := out[:0]
	seen := map[string]int{}
	for _, lvl := range out {
		key := lvl.Price.String()
		if i, ok := seen[key]; ok {
			deduped[i] = lvl
			continue
		}
		seen[key] = len(deduped)
		deduped = append(deduped, lvl)
	}
	// drop levels whose surviving quantity is not positive.
	kept := deduped[:0]
	for _, lvl := range deduped {
		if lvl.Quantity > 0 {
			kept = append(kept, lvl)
		}
	}
	return kept
}
