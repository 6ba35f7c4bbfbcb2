// Package monitoring exposes Prometheus metrics for the deduction engine.
package monitoring

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects counters and gauges for sales, deductions and stock state
type Metrics struct {
	SalesTotal        prometheus.Counter
	DeductionsTotal   *prometheus.CounterVec
	OutOfStockItems   prometheus.Gauge
	UnavailableDishes prometheus.Gauge
	RecordSaleSeconds prometheus.Histogram
	LedgerWriteErrors prometheus.Counter
}

// NewMetrics registers and returns the engine metric set
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SalesTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "larder_sales_recorded_total",
			Help: "Number of sale events processed by the deduction engine",
		}),
		DeductionsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "larder_deductions_total",
			Help: "Number of per-ingredient deduction attempts by outcome",
		}, []string{"outcome"}),
		OutOfStockItems: factory.NewGauge(prometheus.GaugeOpts{
			Name: "larder_out_of_stock_ingredients",
			Help: "Number of ingredients currently at zero stock",
		}),
		UnavailableDishes: factory.NewGauge(prometheus.GaugeOpts{
			Name: "larder_unavailable_dishes",
			Help: "Number of dishes currently marked unavailable",
		}),
		RecordSaleSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "larder_record_sale_duration_seconds",
			Help:    "Time spent recording one sale, catalog lookup through propagation",
			Buckets: prometheus.DefBuckets,
		}),
		LedgerWriteErrors: factory.NewCounter(prometheus.CounterOpts{
			Name: "larder_ledger_write_errors_total",
			Help: "Number of ledger appends that failed after a committed stock change",
		}),
	}
}

// NewTestMetrics returns a metric set on a private registry, for tests
func NewTestMetrics() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
