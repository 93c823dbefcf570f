// Package venue defines the boundary the Engine consumes to talk to a
// brokerage venue, plus the transport plumbing any concrete adapter
// shares: a rate-limited retrying HTTP client, a token cache, and a
// circuit breaker. The concrete wire protocol of a venue (REST bodies,
// frame layouts, private-notice encryption) lives outside this module;
// adapters implementing it only need to satisfy the Adapter interface and
// push IncomingMessage values onto the monitor channel.
package venue

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/abdoElHodaky/oms-core/internal/oms"
)

// Adapter is the wire-agnostic venue contract.
//
// Failure semantics the Engine assumes:
//   - a non-nil error is a transport failure; the originating order
//     transitions to REJECTED with the error text;
//   - (false, nil) means the venue accepted the HTTP call but rejected
//     the order business-wise; same transition;
//   - (true, nil) from PlaceOrder does NOT mean the order is live;
//     confirmation arrives on the monitor channel as an OrderStatus
//     message moving PENDING_NEW -> NEW.
type Adapter interface {
	Connect() error
	Disconnect() error

	PlaceOrder(ctx context.Context, order *oms.Order) (bool, error)
	CancelOrder(ctx context.Context, orderID string) (bool, error)
	ModifyOrder(ctx context.Context, orderID string, price *decimal.Decimal, qty *int64) (bool, error)

	GetOrderBookSnapshot(ctx context.Context, symbol string) (oms.OrderBookSnapshot, error)
	GetAccountSnapshot(ctx context.Context, accountID string) (oms.AccountState, error)

	Subscribe(symbols []string) error

	// SetMonitor installs the channel the adapter's background receive
	// loop emits IncomingMessage values on. Must be called before
	// Connect.
	SetMonitor(ch chan<- oms.IncomingMessage)
}
