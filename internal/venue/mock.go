package venue

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/hashicorp/go-retryablehttp"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/oms-core/internal/oms"
	"github.com/abdoElHodaky/oms-core/pkg/config"
	"github.com/abdoElHodaky/oms-core/pkg/errors"
)

// MockAdapter is the reference Adapter used by tests and the example
// binary. It stands up a loopback HTTP venue serving its pre-loaded book
// and account snapshots, and routes every order action and snapshot fetch
// through the embedded BaseAdapter: rate-limited, retrying, authenticated
// with a cached bearer token, exactly the path a real venue adapter
// takes. Callers can push IncomingMessage values through the monitor
// channel as if the venue had emitted them, and inject failures ahead of
// the transport.
type MockAdapter struct {
	*BaseAdapter

	mu sync.Mutex

	connected bool
	monitor   chan<- oms.IncomingMessage

	httpSrv *http.Server
	baseURL string

	account     oms.AccountState
	snapshots   map[string]oms.OrderBookSnapshot
	tokenIssues int

	placed   []*oms.Order
	canceled []string
	modified []string

	// Failure injection, applied before any transport work.
	PlaceErr      error
	PlaceRejected bool
	CancelErr     error
	SnapshotErr   error
}

// NewMockAdapter builds an empty mock. The loopback venue starts lazily
// on first use.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		BaseAdapter: NewBaseAdapter(config.VenueConfig{
			Name:               "mock",
			RequestTimeout:     5 * time.Second,
			RateLimitPerSecond: 200,
			RateLimitBurst:     50,
			MaxRetries:         2,
		}, zap.NewNop()),
		account:   *oms.NewAccountState(),
		snapshots: make(map[string]oms.OrderBookSnapshot),
	}
}

// SetAccountState pre-loads the account snapshot served by
// GetAccountSnapshot.
func (m *MockAdapter) SetAccountState(state oms.AccountState) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.account = state
}

// SetBookSnapshot pre-loads the snapshot served for symbol.
func (m *MockAdapter) SetBookSnapshot(snapshot oms.OrderBookSnapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.snapshots[snapshot.Symbol] = snapshot
}

// Push emits a message on the monitor channel, as the venue would.
func (m *MockAdapter) Push(msg oms.IncomingMessage) {
	m.mu.Lock()
	ch := m.monitor
	m.mu.Unlock()
	if ch != nil {
		ch <- msg
	}
}

// PlacedOrders returns every order accepted by the venue, in order.
func (m *MockAdapter) PlacedOrders() []*oms.Order {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]*oms.Order(nil), m.placed...)
}

// CanceledOrders returns every order id the venue was asked to cancel.
func (m *MockAdapter) CanceledOrders() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.canceled...)
}

// TokenIssues reports how many times the venue minted a fresh auth token.
// Stays at one across many calls while the token cache holds.
func (m *MockAdapter) TokenIssues() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tokenIssues
}

func (m *MockAdapter) Connect() error {
	if err := m.ensureServer(); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = true
	return nil
}

func (m *MockAdapter) Disconnect() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connected = false
	if m.httpSrv != nil {
		_ = m.httpSrv.Close()
		m.httpSrv = nil
		m.baseURL = ""
	}
	return nil
}

func (m *MockAdapter) PlaceOrder(ctx context.Context, order *oms.Order) (bool, error) {
	m.mu.Lock()
	injectedErr, rejected := m.PlaceErr, m.PlaceRejected
	m.mu.Unlock()
	if injectedErr != nil {
		return false, injectedErr
	}
	if rejected {
		return false, nil
	}

	if err := m.call(ctx, http.MethodPost, "/orders", order, nil); err != nil {
		if errors.Is(err, errors.ErrOrderRejectedByVenue) {
			return false, nil
		}
		return false, err
	}

	m.mu.Lock()
	m.placed = append(m.placed, order.Clone())
	m.mu.Unlock()
	return true, nil
}

func (m *MockAdapter) CancelOrder(ctx context.Context, orderID string) (bool, error) {
	m.mu.Lock()
	injectedErr := m.CancelErr
	m.mu.Unlock()
	if injectedErr != nil {
		return false, injectedErr
	}

	if err := m.call(ctx, http.MethodDelete, "/orders?id="+orderID, nil, nil); err != nil {
		if errors.Is(err, errors.ErrOrderRejectedByVenue) {
			return false, nil
		}
		return false, err
	}

	m.mu.Lock()
	m.canceled = append(m.canceled, orderID)
	m.mu.Unlock()
	return true, nil
}

func (m *MockAdapter) ModifyOrder(ctx context.Context, orderID string, _ *decimal.Decimal, _ *int64) (bool, error) {
	if err := m.call(ctx, http.MethodPost, "/orders/modify?id="+orderID, nil, nil); err != nil {
		if errors.Is(err, errors.ErrOrderRejectedByVenue) {
			return false, nil
		}
		return false, err
	}

	m.mu.Lock()
	m.modified = append(m.modified, orderID)
	m.mu.Unlock()
	return true, nil
}

func (m *MockAdapter) GetOrderBookSnapshot(ctx context.Context, symbol string) (oms.OrderBookSnapshot, error) {
	m.mu.Lock()
	injectedErr := m.SnapshotErr
	m.mu.Unlock()
	if injectedErr != nil {
		return oms.OrderBookSnapshot{}, injectedErr
	}

	var snap oms.OrderBookSnapshot
	if err := m.call(ctx, http.MethodGet, "/orderbook?symbol="+symbol, nil, &snap); err != nil {
		return oms.OrderBookSnapshot{}, err
	}
	return snap, nil
}

func (m *MockAdapter) GetAccountSnapshot(ctx context.Context, accountID string) (oms.AccountState, error) {
	if accountID == "" {
		return oms.AccountState{}, errors.New(errors.ErrInvalidOrder, "account id is required")
	}

	var account oms.AccountState
	if err := m.call(ctx, http.MethodGet, "/account?id="+accountID, nil, &account); err != nil {
		return oms.AccountState{}, err
	}
	return account, nil
}

func (m *MockAdapter) Subscribe(_ []string) error { return nil }

func (m *MockAdapter) SetMonitor(ch chan<- oms.IncomingMessage) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.monitor = ch
}

// call performs one authenticated round trip to the loopback venue
// through the BaseAdapter's rate-limited retrying client. The mock's own
// mutex is never held across the request; the server handlers take it
// themselves.
func (m *MockAdapter) call(ctx context.Context, method, path string, body, out interface{}) error {
	if err := m.ensureServer(); err != nil {
		return err
	}
	token, err := m.ensureToken(ctx)
	if err != nil {
		return err
	}

	var payload []byte
	if body != nil {
		payload, err = json.Marshal(body)
		if err != nil {
			return errors.Wrap(err, errors.ErrInvalidOrder, "encode request body")
		}
	}

	m.mu.Lock()
	baseURL := m.baseURL
	m.mu.Unlock()

	req, err := retryablehttp.NewRequest(method, baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return errors.Wrap(err, errors.ErrAdapterTransport, "build venue request")
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.Do(ctx, req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		// Token expired server-side; force a refresh on the next call.
		m.DropToken()
	}
	if resp.StatusCode != http.StatusOK {
		return errors.Newf(errors.ErrOrderRejectedByVenue, "venue returned %d", resp.StatusCode)
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return errors.Wrap(err, errors.ErrAdapterTransport, "decode venue response")
		}
	}
	return nil
}

// ensureToken returns the cached auth token, fetching a fresh one from
// the venue's token endpoint when the cache is empty or expired.
func (m *MockAdapter) ensureToken(ctx context.Context) (string, error) {
	if token, ok := m.CachedToken(); ok {
		return token, nil
	}

	m.mu.Lock()
	baseURL := m.baseURL
	m.mu.Unlock()

	req, err := retryablehttp.NewRequest(http.MethodGet, baseURL+"/token", nil)
	if err != nil {
		return "", errors.Wrap(err, errors.ErrAdapterTransport, "build token request")
	}
	resp, err := m.Do(ctx, req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	var payload struct {
		AccessToken string `json:"access_token"`
		ExpiresIn   int64  `json:"expires_in"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", errors.Wrap(err, errors.ErrAdapterTransport, "decode token response")
	}

	m.StoreToken(payload.AccessToken, time.Duration(payload.ExpiresIn)*time.Second)
	return payload.AccessToken, nil
}

// ensureServer lazily starts the loopback venue on first use.
func (m *MockAdapter) ensureServer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.httpSrv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		return errors.Wrap(err, errors.ErrAdapterTransport, "start mock venue")
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/token", m.serveToken)
	mux.HandleFunc("/orderbook", m.authed(m.serveOrderBook))
	mux.HandleFunc("/account", m.authed(m.serveAccount))
	mux.HandleFunc("/orders", m.authed(m.serveOK))
	mux.HandleFunc("/orders/modify", m.authed(m.serveOK))

	m.httpSrv = &http.Server{Handler: mux}
	m.baseURL = "http://" + ln.Addr().String()
	go func(srv *http.Server) { _ = srv.Serve(ln) }(m.httpSrv)
	return nil
}

func (m *MockAdapter) serveToken(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	m.tokenIssues++
	n := m.tokenIssues
	m.mu.Unlock()

	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"access_token": fmt.Sprintf("mock-token-%d", n),
		"expires_in":   3600,
	})
}

func (m *MockAdapter) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") == "" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

func (m *MockAdapter) serveOrderBook(w http.ResponseWriter, r *http.Request) {
	symbol := r.URL.Query().Get("symbol")

	m.mu.Lock()
	snap, ok := m.snapshots[symbol]
	m.mu.Unlock()
	if !ok {
		snap = oms.OrderBookSnapshot{Symbol: symbol}
	}
	_ = json.NewEncoder(w).Encode(snap)
}

func (m *MockAdapter) serveAccount(w http.ResponseWriter, _ *http.Request) {
	m.mu.Lock()
	account := *m.account.Clone()
	m.mu.Unlock()
	_ = json.NewEncoder(w).Encode(account)
}

func (m *MockAdapter) serveOK(w http.ResponseWriter, _ *http.Request) {
	_ = json.NewEncoder(w).Encode(map[string]bool{"success": true})
}
