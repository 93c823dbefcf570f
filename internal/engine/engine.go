// Package engine holds the OMS core's central event loop: the
// authoritative owner of order books, the order registry, account state,
// and the strategy dispatcher. Every mutation of that state goes through
// the Engine; adapters and callers only ever see snapshots.
//
// Locking discipline: one mutex per resource, acquired in the fixed order
// books -> strategies -> orders -> account, never reversed. Adapter
// network calls always happen with no mutex held.
package engine

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/oms-core/internal/metrics"
	"github.com/abdoElHodaky/oms-core/internal/obslog"
	"github.com/abdoElHodaky/oms-core/internal/oms"
	"github.com/abdoElHodaky/oms-core/internal/strategy"
	"github.com/abdoElHodaky/oms-core/internal/venue"
	"github.com/abdoElHodaky/oms-core/pkg/config"
	"github.com/abdoElHodaky/oms-core/pkg/errors"
)

func nowEpoch() float64 {
	return float64(time.Now().UnixNano()) / 1e9
}

// Engine is the OMS core state machine.
type Engine struct {
	adapter    venue.Adapter
	logger     *obslog.Logger
	zlog       *zap.Logger
	collectors *metrics.Collectors
	cfg        config.EngineConfig

	booksMu sync.RWMutex
	books   map[string]*oms.OrderBook

	dispatcher *strategy.Dispatcher

	ordersMu sync.RWMutex
	orders   map[string]*oms.Order

	accountMu sync.RWMutex
	account   *oms.AccountState

	runMu   sync.Mutex
	running bool
	stopCh  chan struct{}
	wg      sync.WaitGroup
}

// New builds an Engine around an adapter. Nothing runs until Start.
func New(adapter venue.Adapter, logger *obslog.Logger, collectors *metrics.Collectors, cfg config.EngineConfig) *Engine {
	return &Engine{
		adapter:    adapter,
		logger:     logger,
		zlog:       logger.Zap(),
		collectors: collectors,
		cfg:        cfg,
		books:      make(map[string]*oms.OrderBook),
		dispatcher: strategy.NewDispatcher(logger.Zap()),
		orders:     make(map[string]*oms.Order),
		account:    oms.NewAccountState(),
	}
}

// Start connects the adapter, optionally fetches an initial account
// snapshot, and launches the strategy timer. Idempotent: a second call on
// a running engine returns nil without doing anything.
func (e *Engine) Start(accountID string) error {
	e.runMu.Lock()
	defer e.runMu.Unlock()
	if e.running {
		return nil
	}

	if err := e.adapter.Connect(); err != nil {
		return errors.Wrap(err, errors.ErrAdapterTransport, "connect venue adapter")
	}

	if accountID != "" {
		if err := e.initializeAccount(accountID); err != nil {
			return err
		}
	}

	e.logger.Start()
	e.stopCh = make(chan struct{})
	e.running = true

	e.wg.Add(1)
	go e.timerLoop()

	e.logger.Info("engine started", map[string]interface{}{"account_id": accountID})
	return nil
}

// Stop halts the timer and gateway listener, disconnects the adapter, and
// flushes the logger. Terminal: the engine is not restartable.
func (e *Engine) Stop() error {
	e.runMu.Lock()
	if !e.running {
		e.runMu.Unlock()
		return nil
	}
	e.running = false
	close(e.stopCh)
	e.runMu.Unlock()

	e.wg.Wait()

	err := e.adapter.Disconnect()
	e.logger.Info("engine stopped", nil)
	e.logger.Stop()
	if err != nil {
		return errors.Wrap(err, errors.ErrAdapterTransport, "disconnect venue adapter")
	}
	return nil
}

// InitializeSymbol fetches a REST book snapshot and installs it, so a
// symbol has a book before streaming deltas begin.
func (e *Engine) InitializeSymbol(symbol string) error {
	snapshot, err := e.adapter.GetOrderBookSnapshot(context.Background(), symbol)
	if err != nil {
		return errors.Wrap(err, errors.ErrAdapterTransport, "fetch order book snapshot")
	}

	e.booksMu.Lock()
	defer e.booksMu.Unlock()
	book := e.bookLocked(symbol)
	book.Rebuild(snapshot)
	return nil
}

func (e *Engine) initializeAccount(accountID string) error {
	snapshot, err := e.adapter.GetAccountSnapshot(context.Background(), accountID)
	if err != nil {
		return errors.Wrap(err, errors.ErrAdapterTransport, "fetch account snapshot")
	}

	e.accountMu.Lock()
	defer e.accountMu.Unlock()
	e.account = snapshot.Clone()
	return nil
}

// SendOrder validates the order, applies pre-trade strategy gating,
// registers stateful strategies, and forwards to the adapter. It returns
// the assigned order id. Gating failures and adapter failures transition
// the order to REJECTED (visible via GetOrders); only logic errors
// (invalid order, unparseable strategy params) come back as an error.
func (e *Engine) SendOrder(order *oms.Order) (string, error) {
	if err := order.Validate(); err != nil {
		return "", errors.Wrap(err, errors.ErrInvalidOrder, "validate order")
	}

	if order.OrderID == "" {
		order.OrderID = uuid.New().String()
	}
	now := nowEpoch()
	if order.CreatedAt == 0 {
		order.CreatedAt = now
	}
	order.UpdatedAt = now

	switch order.Strategy {
	case oms.FOK:
		book := e.book(order.Symbol)
		if book == nil || !strategy.CheckFOK(order, book) {
			e.rejectWithoutSend(order, "FOK: insufficient liquidity")
			return order.OrderID, nil
		}

	case oms.IOC:
		book := e.book(order.Symbol)
		var fillable int64
		if book != nil {
			fillable = strategy.FillableQty(order, book)
		}
		if fillable == 0 {
			e.rejectWithoutSend(order, "IOC: no liquidity")
			return order.OrderID, nil
		}
		// Clamp to what the book can fill right now; the remainder is
		// implicitly canceled.
		order.Quantity = fillable

	case oms.Stop:
		params, err := strategy.ParseStopParams(order.StrategyParams)
		if err != nil {
			return "", err
		}
		if err := e.placeOrder(order); err != nil {
			return order.OrderID, nil
		}
		e.dispatcher.Register(strategy.NewStop(order, params, e.zlog))
		return order.OrderID, nil

	case oms.Chain:
		params, err := strategy.ParseChainParams(order.StrategyParams)
		if err != nil {
			return "", err
		}
		if err := e.placeOrder(order); err != nil {
			return order.OrderID, nil
		}
		e.dispatcher.Register(strategy.NewChain(order, params, e.zlog))
		return order.OrderID, nil

	case oms.VWAP:
		params, err := strategy.ParseVWAPParams(order.StrategyParams)
		if err != nil {
			return "", err
		}
		// The parent never reaches the venue; the strategy emits child
		// slices through the regular dispatch path. The parent record
		// stays in the registry for audit.
		e.ordersMu.Lock()
		e.orders[order.OrderID] = order.Clone()
		e.ordersMu.Unlock()
		e.dispatcher.Register(strategy.NewVWAP(order.Symbol, order.Side, params, now, e.zlog))
		e.logger.Info("vwap parent registered", map[string]interface{}{
			"order_id": order.OrderID,
			"symbol":   order.Symbol,
			"volume":   params.TotalVolume,
		})
		return order.OrderID, nil
	}

	_ = e.placeOrder(order)
	return order.OrderID, nil
}

// placeOrder stores the order as PENDING_NEW and forwards it to the
// adapter, translating failures into a REJECTED transition. The registry
// lock is released before the network call.
func (e *Engine) placeOrder(order *oms.Order) error {
	now := nowEpoch()
	_ = order.UpdateState(oms.PendingNew, "", now)

	e.ordersMu.Lock()
	e.orders[order.OrderID] = order.Clone()
	e.ordersMu.Unlock()

	start := time.Now()
	ok, err := e.adapter.PlaceOrder(context.Background(), order)
	e.collectors.AdapterCallLatency.WithLabelValues("place_order").Observe(time.Since(start).Seconds())

	if err != nil || !ok {
		reason := "venue rejected order"
		if err != nil {
			reason = err.Error()
		}
		e.transitionOrder(order.OrderID, oms.Rejected, reason)
		e.logger.Warn("ORDER_REJECTED", map[string]interface{}{
			"order_id": order.OrderID,
			"reason":   reason,
		})
		if err != nil {
			return err
		}
		return errors.New(errors.ErrOrderRejectedByVenue, reason)
	}

	e.collectors.OrdersByState.WithLabelValues(string(oms.PendingNew)).Inc()
	e.logger.Info("ORDER_SENT", map[string]interface{}{
		"order_id": order.OrderID,
		"symbol":   order.Symbol,
		"side":     order.Side,
		"quantity": order.Quantity,
	})
	return nil
}

// rejectWithoutSend records a gating rejection; the order never leaves
// the process.
func (e *Engine) rejectWithoutSend(order *oms.Order, reason string) {
	order.State = oms.Rejected
	order.ErrorMessage = reason
	order.UpdatedAt = nowEpoch()

	e.ordersMu.Lock()
	e.orders[order.OrderID] = order.Clone()
	e.ordersMu.Unlock()

	e.collectors.OrdersByState.WithLabelValues(string(oms.Rejected)).Inc()
	e.logger.Warn("ORDER_REJECTED", map[string]interface{}{
		"order_id": order.OrderID,
		"reason":   reason,
	})
}

// CancelOrder transitions the order to PENDING_CANCEL and forwards the
// cancel to the adapter. Unknown ids, terminal orders, and orders that
// never left CREATED (such as a VWAP parent) fail without a network call.
func (e *Engine) CancelOrder(orderID string) error {
	e.ordersMu.Lock()
	order, ok := e.orders[orderID]
	if !ok {
		e.ordersMu.Unlock()
		return errors.Newf(errors.ErrOrderNotFound, "order %s not in registry", orderID)
	}
	if err := order.UpdateState(oms.PendingCancel, "", nowEpoch()); err != nil {
		e.ordersMu.Unlock()
		return errors.Wrap(err, errors.ErrInvalidOrder, "cancel order")
	}
	e.ordersMu.Unlock()

	start := time.Now()
	ok, err := e.adapter.CancelOrder(context.Background(), orderID)
	e.collectors.AdapterCallLatency.WithLabelValues("cancel_order").Observe(time.Since(start).Seconds())

	e.logger.Info("ORDER_CANCEL_REQ", map[string]interface{}{
		"order_id": orderID,
		"success":  err == nil && ok,
	})
	if err != nil {
		return errors.Wrap(err, errors.ErrAdapterTransport, "cancel order")
	}
	return nil
}

// GetOrderBook returns a snapshot of the symbol's book, if one exists.
func (e *Engine) GetOrderBook(symbol string) (oms.OrderBookSnapshot, bool) {
	book := e.book(symbol)
	if book == nil {
		return oms.OrderBookSnapshot{}, false
	}
	return book.Snapshot(), true
}

// GetOrders returns a snapshot copy of the order registry.
func (e *Engine) GetOrders() map[string]*oms.Order {
	e.ordersMu.RLock()
	defer e.ordersMu.RUnlock()

	out := make(map[string]*oms.Order, len(e.orders))
	for id, o := range e.orders {
		out[id] = o.Clone()
	}
	return out
}

// GetOrder returns a snapshot copy of one order.
func (e *Engine) GetOrder(orderID string) (*oms.Order, bool) {
	e.ordersMu.RLock()
	defer e.ordersMu.RUnlock()
	o, ok := e.orders[orderID]
	if !ok {
		return nil, false
	}
	return o.Clone(), true
}

// GetAccount returns a snapshot copy of the account.
func (e *Engine) GetAccount() *oms.AccountState {
	e.accountMu.RLock()
	defer e.accountMu.RUnlock()
	return e.account.Clone()
}

// ActiveStrategies returns the number of live registered strategies.
func (e *Engine) ActiveStrategies() int {
	return e.dispatcher.Active()
}

// book returns the live book for symbol, or nil.
func (e *Engine) book(symbol string) *oms.OrderBook {
	e.booksMu.RLock()
	defer e.booksMu.RUnlock()
	return e.books[symbol]
}

// bookLocked returns the book for symbol, creating it lazily. Caller
// holds booksMu.
func (e *Engine) bookLocked(symbol string) *oms.OrderBook {
	book, ok := e.books[symbol]
	if !ok {
		book = oms.NewOrderBook(symbol)
		e.books[symbol] = book
	}
	return book
}

// transitionOrder applies a state change under the registry lock,
// dropping illegal transitions with a warning.
func (e *Engine) transitionOrder(orderID string, state oms.OrderState, msg string) {
	e.ordersMu.Lock()
	defer e.ordersMu.Unlock()
	order, ok := e.orders[orderID]
	if !ok {
		return
	}
	if err := order.UpdateState(state, msg, nowEpoch()); err != nil {
		e.zlog.Warn("dropped illegal order transition",
			zap.String("order_id", orderID),
			zap.String("from", string(order.State)),
			zap.String("to", string(state)))
		return
	}
	e.collectors.OrdersByState.WithLabelValues(string(state)).Inc()
}
