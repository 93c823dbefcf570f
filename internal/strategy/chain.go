package strategy

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/oms-core/internal/oms"
)

// ChainStrategy is STOP with a fully pre-specified successor: the trigger
// semantics are identical, but instead of deriving the chained order from
// the original's remainder, the caller supplies the complete successor
// order spec (symbol, side, quantity, price) up front.
type ChainStrategy struct {
	NopHooks

	originalID string
	symbol     string
	params     ChainParams
	trig       trigger
	done       bool
	logger     *zap.Logger
}

// NewChain builds a CHAIN instance watching the original order, which the
// Engine has already sent to the venue.
func NewChain(original *oms.Order, params ChainParams, logger *zap.Logger) *ChainStrategy {
	return &ChainStrategy{
		originalID: original.OrderID,
		symbol:     original.Symbol,
		params:     params,
		trig:       trigger{params: params.TriggerParams},
		logger:     logger,
	}
}

func (c *ChainStrategy) Name() string {
	return fmt.Sprintf("CHAIN(%s)", c.originalID)
}

func (c *ChainStrategy) Done() bool { return c.done }

func (c *ChainStrategy) OnOrderBookUpdate(book oms.OrderBookSnapshot) Action {
	if c.done || book.Symbol != c.symbol {
		return nil
	}
	if c.trig.checkBook(book) {
		return c.cancelOriginal()
	}
	return nil
}

func (c *ChainStrategy) OnTimer(now float64) Action {
	if c.done {
		return nil
	}
	if c.trig.checkTime(now) {
		return c.cancelOriginal()
	}
	return nil
}

func (c *ChainStrategy) OnOrderStatusUpdate(orderID string, state oms.OrderState, filledQty int64) Action {
	if c.done || orderID != c.originalID {
		return nil
	}

	switch state {
	case oms.Filled, oms.Rejected:
		c.done = true
		return nil
	case oms.Canceled:
		c.done = true
		if !c.trig.fired {
			return nil
		}
		successor := chainedOrder(c.params.ChainedSymbol, c.params.ChainedSide, c.params.ChainedQuantity, c.params.ChainedPrice, 0)
		return PlaceOrder{Order: successor}
	}
	return nil
}

func (c *ChainStrategy) cancelOriginal() Action {
	c.logger.Info("chain trigger fired",
		zap.String("order_id", c.originalID),
		zap.String("chained_symbol", c.params.ChainedSymbol))
	return CancelOrder{OrderID: c.originalID}
}
