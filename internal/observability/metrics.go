// Package observability provides Prometheus metrics for monitoring.
package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	// Engine metrics
	CyclesTotal    prometheus.Counter
	CycleDuration  prometheus.Histogram
	SnapshotErrors prometheus.Counter

	// Order metrics
	OrdersSubmitted *prometheus.CounterVec
	OrderRetries    prometheus.Counter

	// Alert metrics
	AlertsEmitted *prometheus.CounterVec

	// Position and P&L metrics
	OpenPositions  prometheus.Gauge
	DayRealizedPnL prometheus.Gauge
}

// NewMetrics creates a new Metrics instance with all metrics registered.
func NewMetrics(namespace string) *Metrics {
	if namespace == "" {
		namespace = "krx_scalp_lab"
	}

	return &Metrics{
		CyclesTotal: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycles_total",
			Help:      "Total number of trading cycles evaluated",
		}),
		CycleDuration: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "cycle_duration_seconds",
			Help:      "Full cycle evaluation duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),
		SnapshotErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "engine",
			Name:      "snapshot_errors_total",
			Help:      "Total number of invalid snapshots skipped",
		}),
		OrdersSubmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "orders_submitted_total",
			Help:      "Total number of orders submitted by side and outcome",
		}, []string{"side", "outcome"}),
		OrderRetries: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "orders",
			Name:      "order_retries_total",
			Help:      "Total number of pending-order inquiries issued",
		}),
		AlertsEmitted: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "alerts",
			Name:      "alerts_emitted_total",
			Help:      "Total number of alert events emitted by kind",
		}, []string{"kind"}),
		OpenPositions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "positions",
			Name:      "open_positions",
			Help:      "Current number of non-terminal positions",
		}),
		DayRealizedPnL: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "account",
			Name:      "day_realized_pnl_krw",
			Help:      "Realized net P&L of the current trading day in KRW",
		}),
	}
}

// Handler returns an HTTP handler for the /metrics endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
