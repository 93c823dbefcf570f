package venue

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sony/gobreaker"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/oms-core/internal/oms"
)

// CircuitAdapter wraps an Adapter so a wedged venue trips a breaker
// instead of stacking up blocked Engine calls. Only the network-facing
// operations go through the breaker; Connect/Disconnect/Subscribe and
// SetMonitor pass straight through.
type CircuitAdapter struct {
	inner   Adapter
	breaker *gobreaker.CircuitBreaker
}

// NewCircuitAdapter wraps inner with a breaker that opens after five
// consecutive failures and probes again after 30 seconds.
func NewCircuitAdapter(inner Adapter, name string, logger *zap.Logger) *CircuitAdapter {
	settings := gobreaker.Settings{
		Name:    name,
		Timeout: 30 * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= 5
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			logger.Warn("venue circuit state change",
				zap.String("venue", name),
				zap.String("from", from.String()),
				zap.String("to", to.String()))
		},
	}
	return &CircuitAdapter{
		inner:   inner,
		breaker: gobreaker.NewCircuitBreaker(settings),
	}
}

func (c *CircuitAdapter) Connect() error    { return c.inner.Connect() }
func (c *CircuitAdapter) Disconnect() error { return c.inner.Disconnect() }

func (c *CircuitAdapter) Subscribe(symbols []string) error { return c.inner.Subscribe(symbols) }

func (c *CircuitAdapter) SetMonitor(ch chan<- oms.IncomingMessage) { c.inner.SetMonitor(ch) }

func (c *CircuitAdapter) PlaceOrder(ctx context.Context, order *oms.Order) (bool, error) {
	return c.executeBool(func() (bool, error) { return c.inner.PlaceOrder(ctx, order) })
}

func (c *CircuitAdapter) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	return c.executeBool(func() (bool, error) { return c.inner.CancelOrder(ctx, orderID) })
}

func (c *CircuitAdapter) ModifyOrder(ctx context.Context, orderID string, price *decimal.Decimal, qty *int64) (bool, error) {
	return c.executeBool(func() (bool, error) { return c.inner.ModifyOrder(ctx, orderID, price, qty) })
}

func (c *CircuitAdapter) GetOrderBookSnapshot(ctx context.Context, symbol string) (oms.OrderBookSnapshot, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.GetOrderBookSnapshot(ctx, symbol)
	})
	if err != nil {
		return oms.OrderBookSnapshot{}, err
	}
	return out.(oms.OrderBookSnapshot), nil
}

func (c *CircuitAdapter) GetAccountSnapshot(ctx context.Context, accountID string) (oms.AccountState, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return c.inner.GetAccountSnapshot(ctx, accountID)
	})
	if err != nil {
		return oms.AccountState{}, err
	}
	return out.(oms.AccountState), nil
}

// executeBool runs a venue call through the breaker. A business rejection
// ((false, nil)) is a successful call from the breaker's point of view —
// the venue answered; only transport errors count as failures.
func (c *CircuitAdapter) executeBool(call func() (bool, error)) (bool, error) {
	out, err := c.breaker.Execute(func() (interface{}, error) {
		return call()
	})
	if err != nil {
		return false, err
	}
	return out.(bool), nil
}
