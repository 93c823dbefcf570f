// Package client is the thin facade external callers use when they want
// the raw venue stream without running a full Engine: place and cancel
// orders, subscribe to market data, and pull messages one at a time while
// a local state aggregator keeps queryable snapshots. Return payloads are
// JSON with decimal values as strings.
package client

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/abdoElHodaky/oms-core/internal/obslog"
	"github.com/abdoElHodaky/oms-core/internal/oms"
	"github.com/abdoElHodaky/oms-core/internal/state"
	"github.com/abdoElHodaky/oms-core/internal/venue"
	"github.com/abdoElHodaky/oms-core/pkg/config"
	"github.com/abdoElHodaky/oms-core/pkg/errors"
)

// Client wires an adapter's monitor channel to a local State aggregator.
type Client struct {
	adapter venue.Adapter
	state   *state.State
	recv    chan oms.IncomingMessage
	logger  *obslog.Logger
}

// New builds a Client around an adapter. The monitor channel is installed
// immediately; Connect starts the flow.
func New(adapter venue.Adapter, logCfg config.LoggingConfig, bufferSize int) (*Client, error) {
	logger, err := obslog.NewLogger(logCfg)
	if err != nil {
		return nil, err
	}
	if bufferSize <= 0 {
		bufferSize = 1024
	}

	c := &Client{
		adapter: adapter,
		state:   state.New(),
		recv:    make(chan oms.IncomingMessage, bufferSize),
		logger:  logger,
	}
	adapter.SetMonitor(c.recv)
	logger.Start()
	return c, nil
}

// Connect opens the adapter's transport.
func (c *Client) Connect() error {
	return c.adapter.Connect()
}

// Disconnect closes the adapter and flushes the logger.
func (c *Client) Disconnect() error {
	err := c.adapter.Disconnect()
	c.logger.Stop()
	return err
}

// PlaceOrder forwards an order to the venue and tracks it locally so
// later status messages land on a record.
func (c *Client) PlaceOrder(order *oms.Order) (bool, error) {
	if err := order.Validate(); err != nil {
		return false, errors.Wrap(err, errors.ErrInvalidOrder, "validate order")
	}
	ok, err := c.adapter.PlaceOrder(context.Background(), order)
	if err == nil && ok {
		c.state.TrackOrder(order)
	}
	return ok, err
}

// CancelOrder forwards a cancel request.
func (c *Client) CancelOrder(orderID string) (bool, error) {
	return c.adapter.CancelOrder(context.Background(), orderID)
}

// UpdateOrder modifies an outstanding order's price and/or quantity.
// price, when non-empty, must parse as a decimal.
func (c *Client) UpdateOrder(orderID string, price string, qty *int64) (bool, error) {
	var priceDec *decimal.Decimal
	if price != "" {
		p, err := decimal.NewFromString(price)
		if err != nil {
			return false, errors.Newf(errors.ErrInvalidOrder, "invalid price: %q", price)
		}
		priceDec = &p
	}
	return c.adapter.ModifyOrder(context.Background(), orderID, priceDec, qty)
}

// Subscribe registers interest in the given symbols' market data.
func (c *Client) Subscribe(symbols []string) error {
	return c.adapter.Subscribe(symbols)
}

// FetchMessage blocks up to timeout for the next inbound message, folds
// it into the local state, and returns it as tagged JSON. A timeout
// returns ("", nil); a closed channel is an error.
func (c *Client) FetchMessage(timeout time.Duration) (string, error) {
	select {
	case msg, ok := <-c.recv:
		if !ok {
			return "", errors.New(errors.ErrAdapterTransport, "monitor channel closed")
		}
		c.state.Apply(msg)
		body, err := oms.EncodeMessage(msg)
		if err != nil {
			return "", err
		}
		return string(body), nil
	case <-time.After(timeout):
		return "", nil
	}
}

// GetAccountState returns the accumulated account as JSON, or ("",nil)
// when no update for that account has been seen.
func (c *Client) GetAccountState(accountID string) (string, error) {
	account, ok := c.state.Account(accountID)
	if !ok {
		return "", nil
	}
	body, err := json.Marshal(account)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// GetOrderBook returns the accumulated book for symbol as JSON, or
// ("",nil) when no message for that symbol has been seen.
func (c *Client) GetOrderBook(symbol string) (string, error) {
	snap, ok := c.state.OrderBook(symbol)
	if !ok {
		return "", nil
	}
	body, err := json.Marshal(snap)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// ConnectionStatus reports the last link state seen on the stream.
func (c *Client) ConnectionStatus() oms.ConnectionStatus {
	return c.state.ConnectionStatus()
}
