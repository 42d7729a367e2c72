package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus metrics for banking operations
var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "bank_operations_total",
			Help: "Total number of banking operations",
		},
		[]string{"operation", "status"}, // operation: deposit, withdraw; status: ok, insufficient, error
	)

	AccountsCreatedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bank_accounts_created_total",
			Help: "Total number of accounts created",
		},
	)

	AccountsClosedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bank_accounts_closed_total",
			Help: "Total number of accounts closed by a draining withdrawal",
		},
	)

	OperationAmountHistogram = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "bank_operation_amount",
			Help:    "Distribution of deposit and withdrawal amounts",
			Buckets: []float64{1, 10, 100, 1000, 10000, 100000, 1000000},
		},
	)
)

// Broker state gauges
var (
	ActiveAccountsGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bank_accounts_active",
			Help: "Current number of active accounts",
		},
	)

	ActiveTellersGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bank_tellers_active",
			Help: "Current number of live Teller processes",
		},
	)

	QueueDepthGauge = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bank_queue_depth",
			Help: "Filled slots in the shared request ring",
		},
	)

	ReplayDuration = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "bank_log_replay_seconds",
			Help: "Duration of the startup transaction log replay",
		},
	)

	ReplayWarningsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "bank_log_replay_warnings_total",
			Help: "Inconsistent or malformed records seen during log replay",
		},
	)
)

// ObserveOperation records the outcome of one served request.
func ObserveOperation(operation, status string, amount int64) {
	OperationsTotal.WithLabelValues(operation, status).Inc()
	if status == "ok" {
		OperationAmountHistogram.Observe(float64(amount))
	}
}
