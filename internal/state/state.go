// Package state is the client-side view of the venue: a passive
// aggregator that folds every IncomingMessage pulled through the client
// facade into local books, accounts, and order records. Unlike the
// Engine it owns no adapter and takes no actions; it only accumulates.
package state

import (
	"sync"

	"github.com/abdoElHodaky/oms-core/internal/oms"
)

// State accumulates the message stream into queryable snapshots.
type State struct {
	mu sync.RWMutex

	connectionStatus oms.ConnectionStatus
	books            map[string]*oms.OrderBook
	accounts         map[string]*oms.AccountState
	orders           map[string]*oms.Order
}

// New returns an empty State, disconnected.
func New() *State {
	return &State{
		connectionStatus: oms.Disconnected,
		books:            make(map[string]*oms.OrderBook),
		accounts:         make(map[string]*oms.AccountState),
		orders:           make(map[string]*oms.Order),
	}
}

// Apply folds one message into the state. Unknown variants are ignored.
func (s *State) Apply(msg oms.IncomingMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()

	switch m := msg.(type) {
	case oms.ConnectionStatusMessage:
		s.connectionStatus = m.Status

	case oms.BookDeltaMessage:
		s.bookLocked(m.Delta.Symbol).ApplyDelta(m.Delta)

	case oms.BookSnapshotMessage:
		s.bookLocked(m.Snapshot.Symbol).Rebuild(m.Snapshot)

	case oms.OrderStatusMessage:
		if order, ok := s.orders[m.OrderID]; ok {
			order.State = m.State
			order.FilledQuantity = m.FilledQty
			if m.FilledPrice != nil {
				order.AverageFillPrice = *m.FilledPrice
			}
			order.UpdatedAt = m.UpdatedAt
		}

	case oms.AccountUpdateMessage:
		account, ok := s.accounts[m.AccountID]
		if !ok {
			account = oms.NewAccountState()
			s.accounts[m.AccountID] = account
		}
		if m.Balance != nil {
			account.Balance = *m.Balance
		}
		if m.Locked != nil {
			account.Locked = *m.Locked
		}

	case oms.ExecutionMessage:
		if order, ok := s.orders[m.OrderID]; ok {
			filled := order.FilledQuantity + m.FillQty
			if filled > order.Quantity {
				filled = order.Quantity
			}
			order.FilledQuantity = filled
		}
	}
}

// TrackOrder registers an order so later status and execution messages
// have a record to land on.
func (s *State) TrackOrder(order *oms.Order) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[order.OrderID] = order.Clone()
}

// ConnectionStatus returns the last reported link state.
func (s *State) ConnectionStatus() oms.ConnectionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.connectionStatus
}

// OrderBook returns a snapshot of the symbol's accumulated book.
func (s *State) OrderBook(symbol string) (oms.OrderBookSnapshot, bool) {
	s.mu.RLock()
	book, ok := s.books[symbol]
	s.mu.RUnlock()
	if !ok {
		return oms.OrderBookSnapshot{}, false
	}
	return book.Snapshot(), true
}

// Account returns a copy of the accumulated account record.
func (s *State) Account(accountID string) (*oms.AccountState, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	account, ok := s.accounts[accountID]
	if !ok {
		return nil, false
	}
	return account.Clone(), true
}

// Order returns a copy of a tracked order.
func (s *State) Order(orderID string) (*oms.Order, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	order, ok := s.orders[orderID]
	if !ok {
		return nil, false
	}
	return order.Clone(), true
}

func (s *State) bookLocked(symbol string) *oms.OrderBook {
	book, ok := s.books[symbol]
	if !ok {
		book = oms.NewOrderBook(symbol)
		s.books[symbol] = book
	}
	return book
}
