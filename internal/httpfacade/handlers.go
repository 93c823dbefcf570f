package httpfacade

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"

	"github.com/abdoElHodaky/oms-core/internal/oms"
	"github.com/abdoElHodaky/oms-core/pkg/errors"
)

var validate = validator.New()

// placeOrderRequest is the external order DTO. Prices ride as strings so
// no precision is lost in transit.
type placeOrderRequest struct {
	Symbol         string            `json:"symbol" validate:"required"`
	Side           string            `json:"side" validate:"required,oneof=BUY SELL"`
	Type           string            `json:"type" validate:"required,oneof=LIMIT MARKET"`
	Quantity       int64             `json:"quantity" validate:"required,gt=0"`
	Price          string            `json:"price,omitempty"`
	OrderID        string            `json:"order_id,omitempty"`
	Strategy       string            `json:"strategy,omitempty" validate:"omitempty,oneof=NONE IOC FOK STOP CHAIN VWAP"`
	StrategyParams map[string]string `json:"strategy_params,omitempty"`
	StopPrice      string            `json:"stop_price,omitempty"`
}

func (r placeOrderRequest) toOrder() (*oms.Order, error) {
	order := oms.NewOrder(r.Symbol, oms.OrderSide(r.Side), oms.OrderType(r.Type), r.Quantity, 0)
	order.OrderID = r.OrderID
	order.StrategyParams = r.StrategyParams
	if r.Strategy != "" {
		order.Strategy = oms.StrategyKind(r.Strategy)
	}

	if r.Price != "" {
		p, err := decimal.NewFromString(r.Price)
		if err != nil {
			return nil, errors.Newf(errors.ErrInvalidOrder, "invalid price: %q", r.Price)
		}
		order.SetPrice(p)
	}
	if r.StopPrice != "" {
		p, err := decimal.NewFromString(r.StopPrice)
		if err != nil {
			return nil, errors.Newf(errors.ErrInvalidOrder, "invalid stop_price: %q", r.StopPrice)
		}
		order.SetStopPrice(p)
	}
	return order, nil
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handlePlaceOrder(c *gin.Context) {
	var req placeOrderRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	if err := validate.Struct(req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	order, err := req.toOrder()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	orderID, err := s.engine.SendOrder(order)
	if err != nil {
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
		return
	}

	snapshot, _ := s.engine.GetOrder(orderID)
	c.JSON(http.StatusAccepted, gin.H{"order_id": orderID, "order": snapshot})
}

func (s *Server) handleCancelOrder(c *gin.Context) {
	orderID := c.Param("id")
	if err := s.engine.CancelOrder(orderID); err != nil {
		status := http.StatusUnprocessableEntity
		if errors.Is(err, errors.ErrOrderNotFound) {
			status = http.StatusNotFound
		}
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusAccepted, gin.H{"order_id": orderID})
}

func (s *Server) handleListOrders(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.GetOrders())
}

func (s *Server) handleGetOrder(c *gin.Context) {
	order, ok := s.engine.GetOrder(c.Param("id"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "order not found"})
		return
	}
	c.JSON(http.StatusOK, order)
}

func (s *Server) handleGetOrderBook(c *gin.Context) {
	snapshot, ok := s.engine.GetOrderBook(c.Param("symbol"))
	if !ok {
		c.JSON(http.StatusNotFound, gin.H{"error": "no book for symbol"})
		return
	}
	c.JSON(http.StatusOK, snapshot)
}

func (s *Server) handleGetAccount(c *gin.Context) {
	c.JSON(http.StatusOK, s.engine.GetAccount())
}
