// Package oms holds the Engine's core domain records: orders, the
// per-symbol order book, and account state. None of these types know
// about the Engine, strategies, or the venue adapter; they are pure data
// plus the mutation rules their own invariants require.
package oms

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderSide is the side of an order or a book level.
type OrderSide string

const (
	Buy  OrderSide = "BUY"
	Sell OrderSide = "SELL"
)

// OrderType selects how an order is priced.
type OrderType string

const (
	Market OrderType = "MARKET"
	Limit  OrderType = "LIMIT"
)

// OrderState is the order lifecycle state. Transitions are validated by
// CanTransition; terminal states never leave this set once entered.
type OrderState string

const (
	Created         OrderState = "CREATED"
	PendingNew      OrderState = "PENDING_NEW"
	New             OrderState = "NEW"
	PartiallyFilled OrderState = "PARTIALLY_FILLED"
	Filled          OrderState = "FILLED"
	Canceled        OrderState = "CANCELED"
	Rejected        OrderState = "REJECTED"
	PendingCancel   OrderState = "PENDING_CANCEL"
	PendingReplace  OrderState = "PENDING_REPLACE"
)

var terminalStates = map[OrderState]bool{
	Filled:   true,
	Canceled: true,
	Rejected: true,
}

// IsTerminal reports whether s is absorbing.
func (s OrderState) IsTerminal() bool {
	return terminalStates[s]
}

var preNewStates = map[OrderState]bool{
	Created:    true,
	PendingNew: true,
}

// CanTransition reports whether moving from s to next is a legal order
// state transition per the lifecycle:
// CREATED -> PENDING_NEW -> NEW -> (PARTIALLY_FILLED)* -> {FILLED | (PENDING_CANCEL -> CANCELED)}
// with REJECTED reachable from any pre-NEW state, a PENDING_NEW order
// cancellable before the venue acknowledges it, and terminal states
// absorbing.
func (s OrderState) CanTransition(next OrderState) bool {
	if s.IsTerminal() {
		return false
	}
	if next == Rejected {
		return preNewStates[s]
	}
	switch s {
	case Created:
		return next == PendingNew
	case PendingNew:
		return next == New || next == PendingCancel
	case New:
		return next == PartiallyFilled || next == Filled || next == PendingCancel || next == PendingReplace
	case PartiallyFilled:
		return next == PartiallyFilled || next == Filled || next == PendingCancel || next == PendingReplace
	case PendingCancel:
		return next == Canceled || next == PartiallyFilled || next == Filled
	case PendingReplace:
		return next == New || next == PartiallyFilled || next == Canceled
	default:
		return false
	}
}

// IsActive reports whether the order is still live at the venue or awaiting
// acknowledgement.
func (s OrderState) IsActive() bool {
	switch s {
	case PendingNew, New, PartiallyFilled, PendingCancel, PendingReplace:
		return true
	default:
		return false
	}
}

// StrategyKind selects the execution strategy applied at send_order, or
// NoStrategy for a plain order sent straight to the adapter.
type StrategyKind string

const (
	NoStrategy StrategyKind = "NONE"
	IOC        StrategyKind = "IOC"
	FOK        StrategyKind = "FOK"
	Stop       StrategyKind = "STOP"
	Chain      StrategyKind = "CHAIN"
	VWAP       StrategyKind = "VWAP"
)

// Order is a monotonically-stateful record. strategy_params carries the
// raw string map accepted at the external boundary; SendOrder translates
// it into a typed params struct (StopParams/ChainParams/VWAPParams) before
// any strategy logic runs, so internal code never re-parses this map.
type Order struct {
	Symbol           string            `json:"symbol"`
	Side             OrderSide         `json:"side"`
	Type             OrderType         `json:"type"`
	Quantity         int64             `json:"quantity"`
	Price            decimal.Decimal   `json:"price"`
	HasPrice         bool              `json:"has_price"`
	OrderID          string            `json:"order_id"`
	ExchangeOrderID  string            `json:"exchange_order_id,omitempty"`
	State            OrderState        `json:"state"`
	FilledQuantity   int64             `json:"filled_quantity"`
	AverageFillPrice decimal.Decimal   `json:"average_fill_price"`
	Strategy         StrategyKind      `json:"strategy"`
	StrategyParams   map[string]string `json:"strategy_params,omitempty"`
	StopPrice        decimal.Decimal   `json:"stop_price"`
	HasStopPrice     bool              `json:"has_stop_price"`
	ErrorMessage     string            `json:"error_message,omitempty"`
	CreatedAt        float64           `json:"created_at"`
	UpdatedAt        float64           `json:"updated_at"`
}

// NewOrder builds a CREATED order stamped with now (epoch seconds). The
// order id is left empty; the Engine assigns one at submission when the
// caller did not.
func NewOrder(symbol string, side OrderSide, orderType OrderType, quantity int64, now float64) *Order {
	return &Order{
		Symbol:    symbol,
		Side:      side,
		Type:      orderType,
		Quantity:  quantity,
		State:     Created,
		Strategy:  NoStrategy,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// SetPrice sets the limit price and marks it present.
func (o *Order) SetPrice(p decimal.Decimal) *Order {
	o.Price = p
	o.HasPrice = true
	return o
}

// SetStopPrice sets the stop trigger price and marks it present.
func (o *Order) SetStopPrice(p decimal.Decimal) *Order {
	o.StopPrice = p
	o.HasStopPrice = true
	return o
}

// Validate checks the structural invariants from the data model: positive
// quantity, a price for LIMIT orders, fill bounds.
func (o *Order) Validate() error {
	if o.Symbol == "" {
		return fmt.Errorf("order: symbol is required")
	}
	if o.Quantity <= 0 {
		return fmt.Errorf("order: quantity must be positive, got %d", o.Quantity)
	}
	if o.Type == Limit && !o.HasPrice {
		return fmt.Errorf("order: price is required for LIMIT orders")
	}
	if o.FilledQuantity < 0 || o.FilledQuantity > o.Quantity {
		return fmt.Errorf("order: filled_quantity %d out of bounds [0, %d]", o.FilledQuantity, o.Quantity)
	}
	return nil
}

// UpdateState transitions the order, validating the move and stamping
// UpdatedAt. msg, if non-empty, becomes the order's error_message, used
// for REJECTED and CANCEL transitions that carry a reason.
func (o *Order) UpdateState(next OrderState, msg string, now float64) error {
	if !o.State.CanTransition(next) {
		return fmt.Errorf("order %s: illegal transition %s -> %s", o.OrderID, o.State, next)
	}
	o.State = next
	o.UpdatedAt = now
	if msg != "" {
		o.ErrorMessage = msg
	}
	return nil
}

// RemainingQuantity is the unfilled portion of the order.
func (o *Order) RemainingQuantity() int64 {
	return o.Quantity - o.FilledQuantity
}

// IsActive reports whether the order is live or awaiting venue
// acknowledgement.
func (o *Order) IsActive() bool {
	return o.State.IsActive()
}

// Clone returns a deep-enough copy for safe handoff across goroutines
// (snapshot reads of the order registry).
func (o *Order) Clone() *Order {
	c := *o
	if o.StrategyParams != nil {
		c.StrategyParams = make(map[string]string, len(o.StrategyParams))
		for k, v := range o.StrategyParams {
			c.StrategyParams[k] = v
		}
	}
	return &c
}
