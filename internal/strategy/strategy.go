// Package strategy holds the execution strategies the Engine layers over
// plain order routing: pre-trade gating (IOC, FOK) evaluated once at
// submission, and stateful strategies (STOP, CHAIN, VWAP) that stay
// registered with the dispatcher and react to book updates, trades, order
// status changes, and the periodic timer.
package strategy

import (
	"sync"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/oms-core/internal/oms"
)

// Action is what a strategy hands back to the Engine: place an order,
// cancel one, or nothing (a nil Action). The Engine funnels every action
// through the same dispatch branch regardless of which strategy produced
// it.
type Action interface {
	isAction()
}

// PlaceOrder asks the Engine to submit a new order through SendOrder.
type PlaceOrder struct {
	Order *oms.Order
}

// CancelOrder asks the Engine to cancel an outstanding order.
type CancelOrder struct {
	OrderID string
}

func (PlaceOrder) isAction()  {}
func (CancelOrder) isAction() {}

// Strategy is the capability set every stateful strategy implements.
// Hooks a strategy does not care about are no-ops (embed NopHooks).
// Handlers receive borrowed snapshots; they must not assume exclusive
// access beyond the call, and must never block.
type Strategy interface {
	// Name identifies the instance in logs and metrics.
	Name() string

	OnOrderBookUpdate(book oms.OrderBookSnapshot) Action
	OnTradeUpdate(symbol string, price decimal.Decimal, now float64) Action
	OnTimer(now float64) Action
	OnOrderStatusUpdate(orderID string, state oms.OrderState, filledQty int64) Action

	// Done reports whether the strategy has completed and can be removed
	// from the active set.
	Done() bool
}

// NopHooks provides default no-op implementations for the optional hooks.
type NopHooks struct{}

func (NopHooks) OnOrderBookUpdate(oms.OrderBookSnapshot) Action           { return nil }
func (NopHooks) OnTradeUpdate(string, decimal.Decimal, float64) Action    { return nil }
func (NopHooks) OnTimer(float64) Action                                   { return nil }
func (NopHooks) OnOrderStatusUpdate(string, oms.OrderState, int64) Action { return nil }

// Dispatcher owns the active-strategies set. Each dispatch method invokes
// every registered strategy under the dispatcher's own lock, collects the
// produced actions, prunes completed strategies, and returns. Callers
// apply the actions afterwards, holding no locks; strategies never mutate
// the order registry or books themselves.
type Dispatcher struct {
	mu         sync.Mutex
	strategies []Strategy
	logger     *zap.Logger
}

// NewDispatcher builds an empty dispatcher.
func NewDispatcher(logger *zap.Logger) *Dispatcher {
	return &Dispatcher{logger: logger}
}

// Register adds a strategy to the active set.
func (d *Dispatcher) Register(s Strategy) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.strategies = append(d.strategies, s)
	d.logger.Info("strategy registered", zap.String("strategy", s.Name()))
}

// Active returns the number of live strategies.
func (d *Dispatcher) Active() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.strategies)
}

// OnOrderBookUpdate fans a book snapshot out to every strategy.
func (d *Dispatcher) OnOrderBookUpdate(book oms.OrderBookSnapshot) []Action {
	return d.collect(func(s Strategy) Action { return s.OnOrderBookUpdate(book) })
}

// OnTradeUpdate fans a market trade out to every strategy.
func (d *Dispatcher) OnTradeUpdate(symbol string, price decimal.Decimal, now float64) []Action {
	return d.collect(func(s Strategy) Action { return s.OnTradeUpdate(symbol, price, now) })
}

// OnTimer fans a timer tick out to every strategy.
func (d *Dispatcher) OnTimer(now float64) []Action {
	return d.collect(func(s Strategy) Action { return s.OnTimer(now) })
}

// OnOrderStatusUpdate fans an order state change out to every strategy.
func (d *Dispatcher) OnOrderStatusUpdate(orderID string, state oms.OrderState, filledQty int64) []Action {
	return d.collect(func(s Strategy) Action { return s.OnOrderStatusUpdate(orderID, state, filledQty) })
}

func (d *Dispatcher) collect(invoke func(Strategy) Action) []Action {
	d.mu.Lock()
	defer d.mu.Unlock()

	var actions []Action
	kept := d.strategies[:0]
	for _, s := range d.strategies {
		if a := invoke(s); a != nil {
			actions = append(actions, a)
		}
		if s.Done() {
			d.logger.Info("strategy completed", zap.String("strategy", s.Name()))
			continue
		}
		kept = append(kept, s)
	}
	d.strategies = kept
	return actions
}
