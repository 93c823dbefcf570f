package strategy

import (
	"github.com/abdoElHodaky/oms-core/internal/oms"
)

// Pre-trade gating for FOK and IOC. Both walk the opposite side of the
// book up to the order's limit price; the Engine evaluates them inside
// SendOrder, before anything reaches the adapter.

// CheckFOK reports whether the order is fully fillable against the book
// right now. A market order is admitted when the opposite side holds
// enough total quantity at any price.
func CheckFOK(order *oms.Order, book *oms.OrderBook) bool {
	return fillableQty(order, book) >= order.Quantity
}

// FillableQty is the quantity an IOC order can take from the book
// immediately. Zero means the order should be rejected without a network
// call; a partial result clamps the order before submission.
func FillableQty(order *oms.Order, book *oms.OrderBook) int64 {
	return fillableQty(order, book)
}

func fillableQty(order *oms.Order, book *oms.OrderBook) int64 {
	var available int64
	needed := order.Quantity

	accumulate := func(lvl oms.PriceLevel, priceOK bool) bool {
		if !priceOK {
			return false
		}
		available += lvl.Quantity
		return available < needed
	}

	if order.Side == oms.Buy {
		book.WalkAsks(func(lvl oms.PriceLevel) bool {
			return accumulate(lvl, !order.HasPrice || lvl.Price.LessThanOrEqual(order.Price))
		})
	} else {
		book.WalkBids(func(lvl oms.PriceLevel) bool {
			return accumulate(lvl, !order.HasPrice || lvl.Price.GreaterThanOrEqual(order.Price))
		})
	}

	if available > needed {
		return needed
	}
	return available
}
