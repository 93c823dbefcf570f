package strategy

import (
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/oms-core/internal/oms"
)

// trigger evaluates the shared STOP/CHAIN trigger spec against book
// updates and timer ticks. It latches: once fired it stays fired.
type trigger struct {
	params TriggerParams
	fired  bool
}

// checkBook evaluates the price leg (and the time leg, using the book's
// timestamp as the clock) against a snapshot of the monitored symbol.
func (t *trigger) checkBook(book oms.OrderBookSnapshot) bool {
	if t.fired {
		return false
	}
	if t.checkTime(book.Timestamp) {
		return true
	}

	switch t.params.TriggerSide {
	case oms.Buy:
		if len(book.Bids) > 0 && book.Bids[0].Price.GreaterThanOrEqual(t.params.TriggerPrice) {
			t.fired = true
		}
	case oms.Sell:
		if len(book.Asks) > 0 && book.Asks[0].Price.LessThanOrEqual(t.params.TriggerPrice) {
			t.fired = true
		}
	}
	return t.fired
}

// checkTime evaluates the wall-clock leg. A trigger timestamp of zero
// disables it.
func (t *trigger) checkTime(now float64) bool {
	if t.fired {
		return false
	}
	if t.params.TriggerTimestamp > 0 && now >= t.params.TriggerTimestamp {
		t.fired = true
	}
	return t.fired
}

// StopStrategy watches an already-placed original order. When the trigger
// fires it cancels the original; once the CANCELED acknowledgement arrives
// (with possibly partial fills) it places a successor LIMIT order for the
// unfilled remainder at the chained price, or a MARKET order when no
// chained price was given. The strategy completes when the original fills
// outright or the successor has been emitted.
type StopStrategy struct {
	NopHooks

	original *oms.Order
	params   StopParams
	trig     trigger
	done     bool
	logger   *zap.Logger
}

// NewStop builds a STOP instance watching original, which the Engine has
// already sent to the venue.
func NewStop(original *oms.Order, params StopParams, logger *zap.Logger) *StopStrategy {
	return &StopStrategy{
		original: original.Clone(),
		params:   params,
		trig:     trigger{params: params.TriggerParams},
		logger:   logger,
	}
}

func (s *StopStrategy) Name() string {
	return fmt.Sprintf("STOP(%s)", s.original.OrderID)
}

func (s *StopStrategy) Done() bool { return s.done }

func (s *StopStrategy) OnOrderBookUpdate(book oms.OrderBookSnapshot) Action {
	if s.done || book.Symbol != s.original.Symbol {
		return nil
	}
	if s.trig.checkBook(book) {
		return s.cancelOriginal()
	}
	return nil
}

func (s *StopStrategy) OnTimer(now float64) Action {
	if s.done {
		return nil
	}
	if s.trig.checkTime(now) {
		return s.cancelOriginal()
	}
	return nil
}

func (s *StopStrategy) OnOrderStatusUpdate(orderID string, state oms.OrderState, filledQty int64) Action {
	if s.done || orderID != s.original.OrderID {
		return nil
	}
	s.original.FilledQuantity = filledQty

	switch state {
	case oms.Filled:
		// Fully filled before (or after) the trigger: nothing to chain.
		s.done = true
		return nil
	case oms.Canceled:
		if !s.trig.fired {
			// Canceled by the caller, not by us.
			s.done = true
			return nil
		}
		remaining := s.original.Quantity - filledQty
		s.done = true
		if remaining <= 0 {
			return nil
		}
		return PlaceOrder{Order: chainedOrder(s.original.Symbol, s.original.Side, remaining, s.params.ChainedPrice, s.original.UpdatedAt)}
	case oms.Rejected:
		s.done = true
		return nil
	}
	return nil
}

func (s *StopStrategy) cancelOriginal() Action {
	s.logger.Info("stop trigger fired",
		zap.String("order_id", s.original.OrderID),
		zap.String("trigger_price", s.params.TriggerPrice.String()))
	return CancelOrder{OrderID: s.original.OrderID}
}

// chainedOrder builds the successor order for STOP: a LIMIT at price when
// present, a MARKET otherwise. The successor is a fresh order for the
// remaining quantity only; it carries no credit from the original's fills.
func chainedOrder(symbol string, side oms.OrderSide, quantity int64, price *decimal.Decimal, now float64) *oms.Order {
	if price != nil {
		o := oms.NewOrder(symbol, side, oms.Limit, quantity, now)
		o.SetPrice(*price)
		return o
	}
	return oms.NewOrder(symbol, side, oms.Market, quantity, now)
}
