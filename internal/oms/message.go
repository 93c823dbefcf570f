package oms

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// ConnectionStatus is the adapter's reported link state.
type ConnectionStatus string

const (
	Disconnected ConnectionStatus = "Disconnected"
	Connecting   ConnectionStatus = "Connecting"
	Connected    ConnectionStatus = "Connected"
	Reconnecting ConnectionStatus = "Reconnecting"
)

// IncomingMessage is the tagged union of every event an adapter's receive
// loop can emit onto the gateway channel. The concrete variants below are
// the only implementations. The Engine switches over all of them and drops
// unknown variants with a warning; the client State aggregator folds the
// variants it tracks and silently ignores the rest.
type IncomingMessage interface {
	incomingMessage()
}

// BookSnapshotMessage carries a full wholesale replacement of a book.
type BookSnapshotMessage struct {
	Snapshot OrderBookSnapshot
}

// BookDeltaMessage carries an absolute-quantity delta: each price level in
// the delta REPLACES the book's resting quantity at that price. Treating
// these as additive double-counts liquidity.
type BookDeltaMessage struct {
	Delta OrderBookDelta
}

// MarketTradeMessage is a trade printed in the market, not necessarily ours.
type MarketTradeMessage struct {
	Symbol    string
	Price     decimal.Decimal
	Quantity  int64
	Timestamp float64
}

// ExecutionMessage is a fill against one of our orders.
type ExecutionMessage struct {
	OrderID   string
	FillQty   int64
	FillPrice decimal.Decimal
}

// OrderStatusMessage is the venue's acknowledgement of an order state
// change (PENDING_NEW -> NEW, CANCELED, REJECTED, ...).
type OrderStatusMessage struct {
	OrderID     string
	State       OrderState
	FilledQty   int64
	FilledPrice *decimal.Decimal
	Msg         string
	UpdatedAt   float64
}

// AccountUpdateMessage carries a partial account update pushed by the venue.
type AccountUpdateMessage struct {
	AccountID string
	Balance   *decimal.Decimal
	Locked    *decimal.Decimal
}

// ConnectionStatusMessage reports a change in the adapter's link state.
type ConnectionStatusMessage struct {
	Status ConnectionStatus
}

// ErrorMessage surfaces a venue-reported error frame.
type ErrorMessage struct {
	Code    int
	Message string
}

func (BookSnapshotMessage) incomingMessage()     {}
func (BookDeltaMessage) incomingMessage()        {}
func (MarketTradeMessage) incomingMessage()      {}
func (ExecutionMessage) incomingMessage()        {}
func (OrderStatusMessage) incomingMessage()      {}
func (AccountUpdateMessage) incomingMessage()    {}
func (ConnectionStatusMessage) incomingMessage() {}
func (ErrorMessage) incomingMessage()            {}

// EncodeMessage serializes an IncomingMessage as a JSON object with a
// "type" discriminator, for handoff across the client facade boundary.
// Decimal values serialize as strings.
func EncodeMessage(msg IncomingMessage) ([]byte, error) {
	switch m := msg.(type) {
	case BookSnapshotMessage:
		return tagged("OrderBookSnapshot", m.Snapshot)
	case BookDeltaMessage:
		return tagged("OrderBookDelta", m.Delta)
	case MarketTradeMessage:
		return tagged("MarketTrade", map[string]interface{}{
			"symbol":    m.Symbol,
			"price":     m.Price,
			"quantity":  m.Quantity,
			"timestamp": m.Timestamp,
		})
	case ExecutionMessage:
		return tagged("Execution", map[string]interface{}{
			"order_id":   m.OrderID,
			"fill_qty":   m.FillQty,
			"fill_price": m.FillPrice,
		})
	case OrderStatusMessage:
		payload := map[string]interface{}{
			"order_id":   m.OrderID,
			"state":      m.State,
			"filled_qty": m.FilledQty,
			"updated_at": m.UpdatedAt,
		}
		if m.FilledPrice != nil {
			payload["filled_price"] = *m.FilledPrice
		}
		if m.Msg != "" {
			payload["msg"] = m.Msg
		}
		return tagged("OrderStatus", payload)
	case AccountUpdateMessage:
		payload := map[string]interface{}{"account_id": m.AccountID}
		if m.Balance != nil {
			payload["balance"] = *m.Balance
		}
		if m.Locked != nil {
			payload["locked"] = *m.Locked
		}
		return tagged("AccountUpdate", payload)
	case ConnectionStatusMessage:
		return tagged("ConnectionStatus", map[string]interface{}{"status": m.Status})
	case ErrorMessage:
		return tagged("Error", map[string]interface{}{"code": m.Code, "message": m.Message})
	default:
		return nil, fmt.Errorf("oms: unknown message variant %T", msg)
	}
}

func tagged(kind string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(map[string]json.RawMessage{
		"type": json.RawMessage(fmt.Sprintf("%q", kind)),
		"data": body,
	})
}
