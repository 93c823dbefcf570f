package strategy

import (
	"fmt"
	"math"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/oms-core/internal/oms"
)

// vwapSpreadRatio prices each slice a fraction beyond the reference price
// so it rests at the front of the queue: BUY slices pay up, SELL slices
// give way.
var vwapSpreadRatio = decimal.NewFromFloat(0.001)

// VWAPStrategy slices a parent quantity over ceil(timeout/interval)
// intervals. At each interval boundary it either cancels the outstanding
// slice (its unfilled remainder rolls into the next slice) or places a new
// LIMIT child for ceil(remaining/remaining_intervals). At most one child
// order is outstanding at any time.
type VWAPStrategy struct {
	symbol string
	side   oms.OrderSide
	params VWAPParams

	startTime   float64
	nextTrigger float64
	remaining   int64

	sliceOrderID     string
	sliceQuantity    int64
	waitingForCancel bool

	lastKnownPrice decimal.Decimal
	done           bool
	logger         *zap.Logger
}

// NewVWAP builds a VWAP instance. now anchors the slicing window; the
// first slice goes out at now + interval.
func NewVWAP(symbol string, side oms.OrderSide, params VWAPParams, now float64, logger *zap.Logger) *VWAPStrategy {
	return &VWAPStrategy{
		symbol:      symbol,
		side:        side,
		params:      params,
		startTime:   now,
		nextTrigger: now + params.IntervalSeconds,
		remaining:   params.TotalVolume,
		logger:      logger,
	}
}

func (v *VWAPStrategy) Name() string {
	return fmt.Sprintf("VWAP(%s %s %d)", v.symbol, v.side, v.params.TotalVolume)
}

func (v *VWAPStrategy) Done() bool { return v.done }

func (v *VWAPStrategy) OnOrderBookUpdate(book oms.OrderBookSnapshot) Action {
	if v.done || book.Symbol != v.symbol {
		return nil
	}
	if len(book.Bids) > 0 && len(book.Asks) > 0 {
		v.lastKnownPrice = book.Bids[0].Price.Add(book.Asks[0].Price).Div(decimal.NewFromInt(2))
	}
	return v.maybeSlice(book.Timestamp)
}

func (v *VWAPStrategy) OnTradeUpdate(symbol string, price decimal.Decimal, now float64) Action {
	if v.done || symbol != v.symbol {
		return nil
	}
	v.lastKnownPrice = price
	return v.maybeSlice(now)
}

func (v *VWAPStrategy) OnTimer(now float64) Action {
	if v.done {
		return nil
	}
	return v.maybeSlice(now)
}

func (v *VWAPStrategy) OnOrderStatusUpdate(orderID string, state oms.OrderState, filledQty int64) Action {
	if v.done || orderID != v.sliceOrderID {
		return nil
	}

	switch state {
	case oms.Filled, oms.Canceled, oms.Rejected:
		// The slice is finished; whatever filled comes off the parent,
		// the rest rolls into the next slice.
		v.remaining -= filledQty
		v.sliceOrderID = ""
		v.sliceQuantity = 0
		v.waitingForCancel = false
		if v.remaining <= 0 {
			v.done = true
		}
	}
	return nil
}

func (v *VWAPStrategy) maybeSlice(now float64) Action {
	if v.remaining <= 0 {
		v.done = true
		return nil
	}

	// Window expired with nothing outstanding: give up on the remainder.
	if now >= v.startTime+v.params.TimeoutSeconds && v.sliceOrderID == "" {
		v.logger.Warn("vwap window expired with unexecuted volume",
			zap.String("symbol", v.symbol),
			zap.Int64("remaining", v.remaining))
		v.done = true
		return nil
	}

	if now < v.nextTrigger {
		return nil
	}

	if v.sliceOrderID != "" {
		if v.waitingForCancel {
			return nil
		}
		v.waitingForCancel = true
		v.nextTrigger += v.params.IntervalSeconds
		return CancelOrder{OrderID: v.sliceOrderID}
	}

	if v.lastKnownPrice.IsZero() {
		// No reference price yet; try again next tick without burning an
		// interval.
		return nil
	}

	order := v.createSliceOrder(now)
	v.sliceOrderID = order.OrderID
	v.sliceQuantity = order.Quantity
	v.nextTrigger += v.params.IntervalSeconds
	return PlaceOrder{Order: order}
}

func (v *VWAPStrategy) createSliceOrder(now float64) *oms.Order {
	elapsed := now - v.startTime
	intervalsPassed := math.Ceil(elapsed / v.params.IntervalSeconds)
	remainingIntervals := math.Max(v.params.TotalIntervals()-intervalsPassed, 1)

	quantity := int64(math.Ceil(float64(v.remaining) / remainingIntervals))
	if quantity > v.remaining {
		quantity = v.remaining
	}

	spread := v.lastKnownPrice.Mul(vwapSpreadRatio)
	var execPrice decimal.Decimal
	if v.side == oms.Buy {
		execPrice = v.lastKnownPrice.Add(spread)
	} else {
		execPrice = v.lastKnownPrice.Sub(spread)
	}

	if lp := v.params.LimitPrice; lp != nil {
		if v.side == oms.Buy && execPrice.GreaterThan(*lp) {
			execPrice = *lp
		}
		if v.side == oms.Sell && execPrice.LessThan(*lp) {
			execPrice = *lp
		}
	}

	// The strategy assigns the child's id itself so it can cancel the
	// slice later; the Engine honors pre-assigned ids.
	order := oms.NewOrder(v.symbol, v.side, oms.Limit, quantity, now)
	order.SetPrice(execPrice)
	order.OrderID = uuid.New().String()

	v.logger.Info("vwap slice",
		zap.String("symbol", v.symbol),
		zap.Int64("quantity", quantity),
		zap.String("price", execPrice.String()),
		zap.Int64("remaining", v.remaining))
	return order
}
