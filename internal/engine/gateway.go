package engine

import (
	"time"

	"go.uber.org/zap"

	"github.com/abdoElHodaky/oms-core/internal/oms"
)

// StartGatewayListener launches the single consumer of the adapter's
// message channel. Messages are processed strictly in channel order; a
// malformed or unknown variant is dropped with a warning, never a panic.
// The listener exits when the channel closes or the engine stops. Call
// after Start, which arms the stop channel the listener watches.
func (e *Engine) StartGatewayListener(ch <-chan oms.IncomingMessage) {
	e.wg.Add(1)
	go func() {
		defer e.wg.Done()
		for {
			select {
			case <-e.stopCh:
				return
			case msg, ok := <-ch:
				if !ok {
					return
				}
				e.collectors.GatewayChannelDepth.Set(float64(len(ch)))
				e.handleMessage(msg)
			}
		}
	}()
}

func (e *Engine) handleMessage(msg oms.IncomingMessage) {
	switch m := msg.(type) {
	case oms.BookDeltaMessage, oms.BookSnapshotMessage:
		e.onBookMessage(msg)
	case oms.MarketTradeMessage:
		e.onMarketTrade(m)
	case oms.ExecutionMessage:
		e.onExecution(m.OrderID, m.FillQty, m.FillPrice)
	case oms.OrderStatusMessage:
		e.onOrderStatusUpdate(m)
	case oms.AccountUpdateMessage:
		e.onAccountUpdate(m)
	case oms.ConnectionStatusMessage:
		e.logger.Info("CONNECTION_STATUS", map[string]interface{}{"status": m.Status})
	case oms.ErrorMessage:
		e.logger.Warn("VENUE_ERROR", map[string]interface{}{
			"code":    m.Code,
			"message": m.Message,
		})
	default:
		e.zlog.Warn("dropped unknown inbound message", zap.Any("message", msg))
	}
}

// timerLoop drives the periodic strategy timer until Stop.
func (e *Engine) timerLoop() {
	defer e.wg.Done()

	interval := e.cfg.StrategyTimerInterval
	if interval <= 0 {
		interval = 100 * time.Millisecond
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-e.stopCh:
			return
		case <-ticker.C:
			e.applyActions(e.dispatcher.OnTimer(nowEpoch()))
		}
	}
}
