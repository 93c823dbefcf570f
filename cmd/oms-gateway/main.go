// Command oms-gateway wires the OMS core end to end against the mock
// venue adapter: engine, gateway listener, strategy timer, and the
// optional HTTP facade. It is the reference assembly for embedding the
// core behind a real venue adapter.
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/abdoElHodaky/oms-core/internal/engine"
	"github.com/abdoElHodaky/oms-core/internal/httpfacade"
	"github.com/abdoElHodaky/oms-core/internal/metrics"
	"github.com/abdoElHodaky/oms-core/internal/obslog"
	"github.com/abdoElHodaky/oms-core/internal/oms"
	"github.com/abdoElHodaky/oms-core/internal/venue"
	"github.com/abdoElHodaky/oms-core/pkg/config"
)

func main() {
	configPath := flag.String("config", "", "path to YAML config (defaults apply when empty)")
	accountID := flag.String("account", "", "account id to snapshot at startup")
	flag.Parse()

	cfg, err := config.LoadConfig(*configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	logger, err := obslog.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}

	registry := prometheus.NewRegistry()
	collectors := metrics.NewCollectors(registry)

	mock := venue.NewMockAdapter()
	adapter := venue.NewCircuitAdapter(mock, cfg.Venue.Name, logger.Zap())

	ch := make(chan oms.IncomingMessage, cfg.Engine.GatewayChannelBuffer)
	adapter.SetMonitor(ch)

	eng := engine.New(adapter, logger, collectors, cfg.Engine)
	if err := eng.Start(*accountID); err != nil {
		log.Fatalf("start engine: %v", err)
	}
	eng.StartGatewayListener(ch)

	var facade *httpfacade.Server
	if cfg.HTTP.Enabled {
		facade, err = httpfacade.NewServer(eng, cfg.HTTP, registry, logger.Zap())
		if err != nil {
			logger.Zap().Fatal("build http facade", zap.Error(err))
		}
		go func() {
			if err := facade.Start(); err != nil {
				logger.Zap().Error("http facade exited", zap.Error(err))
			}
		}()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	if facade != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		_ = facade.Shutdown(ctx)
		cancel()
	}
	if err := eng.Stop(); err != nil {
		logger.Zap().Error("engine stop", zap.Error(err))
	}
}
