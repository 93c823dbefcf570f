// Package httpfacade is the optional host boundary over the Engine: a
// thin gin server translating JSON requests into Engine calls. The core
// works without it; processes that want an external surface enable it in
// configuration.
package httpfacade

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/oms-core/internal/engine"
	"github.com/abdoElHodaky/oms-core/pkg/config"
)

// Server hosts the facade.
type Server struct {
	engine *engine.Engine
	cfg    config.HTTPConfig
	logger *zap.Logger
	srv    *http.Server
}

// NewServer builds the router and wraps it in an http.Server. registry is
// exposed on /metrics.
func NewServer(eng *engine.Engine, cfg config.HTTPConfig, registry *prometheus.Registry, logger *zap.Logger) (*Server, error) {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(requestLogger(logger))
	router.Use(corsMiddleware(cfg))

	rateLimit, err := rateLimitMiddleware(cfg)
	if err != nil {
		return nil, err
	}

	s := &Server{
		engine: eng,
		cfg:    cfg,
		logger: logger,
	}

	router.GET("/health", s.handleHealth)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(registry, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	api.Use(rateLimit)
	{
		api.POST("/orders", s.handlePlaceOrder)
		api.GET("/orders", s.handleListOrders)
		api.GET("/orders/:id", s.handleGetOrder)
		api.DELETE("/orders/:id", s.handleCancelOrder)
		api.GET("/orderbook/:symbol", s.handleGetOrderBook)
		api.GET("/account", s.handleGetAccount)
	}

	s.srv = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}
	return s, nil
}

// Start serves until Shutdown. Blocks; run in a goroutine.
func (s *Server) Start() error {
	s.logger.Info("http facade listening", zap.String("addr", s.srv.Addr))
	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.srv.Shutdown(ctx)
}
