package oms

import (
	"github.com/shopspring/decimal"
)

// Position is a signed holding in one symbol. Quantity is positive for a
// long, negative for a short; a position with quantity zero is never
// stored; AccountState removes it instead.
type Position struct {
	Symbol       string          `json:"symbol"`
	Quantity     int64           `json:"quantity"`
	AveragePrice decimal.Decimal `json:"average_price"`
	CurrentPrice decimal.Decimal `json:"current_price"`
}

// UnrealizedPnL is (current_price - average_price) * quantity.
func (p Position) UnrealizedPnL() decimal.Decimal {
	return p.CurrentPrice.Sub(p.AveragePrice).Mul(decimal.NewFromInt(p.Quantity))
}

// AccountState is the single process-wide account record: cash balance,
// locked margin, and open positions keyed by symbol. It is plain data; the
// Engine serializes access behind its account mutex.
type AccountState struct {
	Balance   decimal.Decimal     `json:"balance"`
	Locked    decimal.Decimal     `json:"locked"`
	Positions map[string]Position `json:"positions"`
}

// NewAccountState returns an empty account.
func NewAccountState() *AccountState {
	return &AccountState{
		Balance:   decimal.Zero,
		Locked:    decimal.Zero,
		Positions: make(map[string]Position),
	}
}

// Rebuild wholesale-replaces the account from a REST snapshot.
func (a *AccountState) Rebuild(balance, locked decimal.Decimal, positions []Position) {
	a.Balance = balance
	a.Locked = locked
	a.Positions = make(map[string]Position, len(positions))
	for _, p := range positions {
		a.Positions[p.Symbol] = p
	}
}

// OnExecution applies one fill to the account. signed_qty is positive for
// a BUY, negative for a SELL; balance moves by -(signed_qty*price) - fee.
// The position's average price follows the weighted-average rules:
// accumulating re-weights, a direction flip resets to the fill price, and
// reducing toward zero leaves the average untouched. A position that lands
// exactly on zero is removed.
func (a *AccountState) OnExecution(symbol string, side OrderSide, quantity int64, price, fee decimal.Decimal) {
	signedQty := quantity
	if side == Sell {
		signedQty = -quantity
	}
	signedQtyDec := decimal.NewFromInt(signedQty)

	a.Balance = a.Balance.Sub(signedQtyDec.Mul(price)).Sub(fee)

	pos, ok := a.Positions[symbol]
	if !ok {
		a.Positions[symbol] = Position{
			Symbol:       symbol,
			Quantity:     signedQty,
			AveragePrice: price,
			CurrentPrice: price,
		}
		return
	}

	oldQty := pos.Quantity
	newQty := oldQty + signedQty
	if newQty == 0 {
		delete(a.Positions, symbol)
		return
	}

	switch {
	case (oldQty > 0 && signedQty > 0) || (oldQty < 0 && signedQty < 0):
		// Accumulating: weighted average over the combined quantity.
		totalVal := decimal.NewFromInt(oldQty).Mul(pos.AveragePrice).Add(signedQtyDec.Mul(price))
		pos.AveragePrice = totalVal.Div(decimal.NewFromInt(newQty))
	case (oldQty > 0 && newQty < 0) || (oldQty < 0 && newQty > 0):
		// Direction flip: the surviving exposure was opened at this fill.
		pos.AveragePrice = price
	}
	// Reducing toward zero keeps the average price.

	pos.Quantity = newQty
	pos.CurrentPrice = price
	a.Positions[symbol] = pos
}

// MarkPrice updates the position's current price, used for unrealized PnL.
// No-op when the symbol has no open position.
func (a *AccountState) MarkPrice(symbol string, price decimal.Decimal) {
	if pos, ok := a.Positions[symbol]; ok {
		pos.CurrentPrice = price
		a.Positions[symbol] = pos
	}
}

// Clone returns a deep copy safe to hand across goroutines.
func (a *AccountState) Clone() *AccountState {
	c := &AccountState{
		Balance:   a.Balance,
		Locked:    a.Locked,
		Positions: make(map[string]Position, len(a.Positions)),
	}
	for k, v := range a.Positions {
		c.Positions[k] = v
	}
	return c
}
