// Package metrics exposes the Prometheus collectors the Engine and Gateway
// update as they process orders and book messages. None of this is load
// bearing for correctness; it exists purely for operator visibility.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Collectors groups every metric the OMS core registers. A single instance
// is constructed per process and threaded into the Engine and Gateway.
type Collectors struct {
	OrdersByState      *prometheus.CounterVec
	ReconcileTotal      prometheus.Counter
	GatewayChannelDepth prometheus.Gauge
	StrategyActions     *prometheus.CounterVec
	AdapterCallLatency  *prometheus.HistogramVec
}

// NewCollectors builds and registers every collector against reg. Passing
// prometheus.NewRegistry() keeps tests isolated from the global registry.
func NewCollectors(reg prometheus.Registerer) *Collectors {
	c := &Collectors{
		OrdersByState: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oms",
			Name:      "orders_total",
			Help:      "Orders transitioned, partitioned by terminal/intermediate state.",
		}, []string{"state"}),
		ReconcileTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "oms",
			Name:      "orderbook_reconcile_total",
			Help:      "Number of times a crossed book triggered a REST reconcile.",
		}),
		GatewayChannelDepth: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "oms",
			Name:      "gateway_channel_depth",
			Help:      "Current number of buffered messages awaiting the gateway listener.",
		}),
		StrategyActions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "oms",
			Name:      "strategy_actions_total",
			Help:      "Actions emitted by strategies, partitioned by strategy and action kind.",
		}, []string{"strategy", "action"}),
		AdapterCallLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "oms",
			Name:      "adapter_call_latency_seconds",
			Help:      "Latency of venue adapter network calls, partitioned by method.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method"}),
	}

	reg.MustRegister(c.OrdersByState, c.ReconcileTotal, c.GatewayChannelDepth, c.StrategyActions, c.AdapterCallLatency)
	return c
}
