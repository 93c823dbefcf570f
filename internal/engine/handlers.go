package engine

import (
	"context"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/oms-core/internal/oms"
	"github.com/abdoElHodaky/oms-core/internal/strategy"
	"github.com/abdoElHodaky/oms-core/pkg/errors"
)

// onBookMessage applies a delta or snapshot to the symbol's book (created
// lazily on first message), reconciles on a crossed book, and fans the
// resulting snapshot out to the strategies. Actions are applied after
// every lock is released.
func (e *Engine) onBookMessage(msg oms.IncomingMessage) {
	var symbol string

	e.booksMu.Lock()
	switch m := msg.(type) {
	case oms.BookDeltaMessage:
		symbol = m.Delta.Symbol
		e.bookLocked(symbol).ApplyDelta(m.Delta)
	case oms.BookSnapshotMessage:
		symbol = m.Snapshot.Symbol
		e.bookLocked(symbol).Rebuild(m.Snapshot)
	default:
		e.booksMu.Unlock()
		return
	}
	book := e.books[symbol]
	valid := book.Validate()
	e.booksMu.Unlock()

	if !valid {
		e.reconcile(symbol)
	}

	snapshot, ok := e.GetOrderBook(symbol)
	if !ok {
		return
	}
	e.applyActions(e.dispatcher.OnOrderBookUpdate(snapshot))
}

// reconcile replaces a corrupted book with a fresh REST snapshot. The
// stale-timestamp rule then drops any in-flight deltas older than the
// snapshot. A snapshot that is itself crossed is logged, not refetched —
// no reconcile storms.
func (e *Engine) reconcile(symbol string) {
	e.collectors.ReconcileTotal.Inc()
	e.logger.Warn("ORDERBOOK_RECONCILE", map[string]interface{}{"symbol": symbol})

	snapshot, err := e.adapter.GetOrderBookSnapshot(context.Background(), symbol)
	if err != nil {
		e.zlog.Error("reconcile snapshot fetch failed",
			zap.String("symbol", symbol), zap.Error(err))
		return
	}

	e.booksMu.Lock()
	book := e.bookLocked(symbol)
	book.Rebuild(snapshot)
	stillInvalid := !book.Validate()
	e.booksMu.Unlock()

	if stillInvalid {
		e.zlog.Error("order book still crossed after reconcile",
			zap.String("symbol", symbol))
	}
}

// onExecution applies a fill to the order (cumulative weighted-average
// price, PARTIALLY_FILLED/FILLED transition) and to the account. Fill
// facts from the venue are authoritative: the state is set directly
// rather than gated through the transition table.
func (e *Engine) onExecution(orderID string, fillQty int64, fillPrice decimal.Decimal) {
	if fillQty <= 0 {
		e.zlog.Warn("dropped non-positive execution quantity",
			zap.String("order_id", orderID), zap.Int64("fill_qty", fillQty))
		return
	}

	e.ordersMu.Lock()
	order, ok := e.orders[orderID]
	if !ok {
		e.ordersMu.Unlock()
		e.zlog.Warn("execution for unknown order", zap.String("order_id", orderID))
		return
	}

	oldFilled := order.FilledQuantity
	newFilled := oldFilled + fillQty
	if newFilled > order.Quantity {
		newFilled = order.Quantity
	}

	oldVal := decimal.NewFromInt(oldFilled).Mul(order.AverageFillPrice)
	fillVal := decimal.NewFromInt(fillQty).Mul(fillPrice)
	order.AverageFillPrice = oldVal.Add(fillVal).Div(decimal.NewFromInt(newFilled))
	order.FilledQuantity = newFilled

	if newFilled >= order.Quantity {
		order.State = oms.Filled
	} else {
		order.State = oms.PartiallyFilled
	}
	order.UpdatedAt = nowEpoch()

	symbol := order.Symbol
	side := order.Side
	state := order.State
	e.ordersMu.Unlock()

	e.accountMu.Lock()
	e.account.OnExecution(symbol, side, fillQty, fillPrice, decimal.Zero)
	e.accountMu.Unlock()

	e.collectors.OrdersByState.WithLabelValues(string(state)).Inc()
	e.logger.Info("ORDER_EXECUTION", map[string]interface{}{
		"order_id":   orderID,
		"fill_qty":   fillQty,
		"fill_price": fillPrice.String(),
		"state":      state,
	})
}

// onOrderStatusUpdate mutates the order's state from a venue
// acknowledgement and propagates the change to the strategies.
func (e *Engine) onOrderStatusUpdate(msg oms.OrderStatusMessage) {
	e.ordersMu.Lock()
	order, ok := e.orders[msg.OrderID]
	if ok {
		if msg.FilledQty > order.FilledQuantity && msg.FilledQty <= order.Quantity {
			order.FilledQuantity = msg.FilledQty
			if msg.FilledPrice != nil {
				order.AverageFillPrice = *msg.FilledPrice
			}
		}
		if err := order.UpdateState(msg.State, msg.Msg, nowEpoch()); err != nil {
			e.zlog.Warn("dropped illegal order transition from venue",
				zap.String("order_id", msg.OrderID),
				zap.String("from", string(order.State)),
				zap.String("to", string(msg.State)))
		} else {
			e.collectors.OrdersByState.WithLabelValues(string(msg.State)).Inc()
		}
	}
	filled := msg.FilledQty
	e.ordersMu.Unlock()

	if !ok {
		e.zlog.Warn("status update for unknown order", zap.String("order_id", msg.OrderID))
	}

	e.applyActions(e.dispatcher.OnOrderStatusUpdate(msg.OrderID, msg.State, filled))
}

// onMarketTrade marks positions to the traded price and lets strategies
// react to the print.
func (e *Engine) onMarketTrade(msg oms.MarketTradeMessage) {
	e.accountMu.Lock()
	e.account.MarkPrice(msg.Symbol, msg.Price)
	e.accountMu.Unlock()

	e.applyActions(e.dispatcher.OnTradeUpdate(msg.Symbol, msg.Price, msg.Timestamp))
}

// onAccountUpdate applies a partial account push from the venue.
func (e *Engine) onAccountUpdate(msg oms.AccountUpdateMessage) {
	e.accountMu.Lock()
	if msg.Balance != nil {
		e.account.Balance = *msg.Balance
	}
	if msg.Locked != nil {
		e.account.Locked = *msg.Locked
	}
	e.accountMu.Unlock()
}

// applyActions funnels every strategy-produced action through the same
// two branches SendOrder and CancelOrder expose to callers. Invoked with
// no locks held. One failing action never stops the rest of the batch;
// failures are collected and reported together.
func (e *Engine) applyActions(actions []strategy.Action) {
	group := errors.NewErrorGroup()
	for _, action := range actions {
		switch a := action.(type) {
		case strategy.PlaceOrder:
			e.collectors.StrategyActions.WithLabelValues(string(a.Order.Strategy), "place").Inc()
			if _, err := e.SendOrder(a.Order); err != nil {
				group.Add(errors.Wrapf(err, errors.GetErrorCode(err), "place %s", a.Order.OrderID))
			}
		case strategy.CancelOrder:
			e.collectors.StrategyActions.WithLabelValues("", "cancel").Inc()
			if err := e.CancelOrder(a.OrderID); err != nil {
				group.Add(errors.Wrapf(err, errors.GetErrorCode(err), "cancel %s", a.OrderID))
			}
		}
	}
	if group.HasErrors() {
		e.zlog.Error("strategy action dispatch failed",
			zap.Int("failed", len(group.Errors())),
			zap.Int("total", len(actions)),
			zap.String("errors", group.Error()))
	}
}
