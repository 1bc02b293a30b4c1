package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

func init() {
	register(
		transactionsTotal,
		revenueTotal,
		externalCallSeconds,
		reconciledTotal,
	)
}

var (
	transactionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subshare_transactions_total",
			Help: "Ledger rows written, by type and status.",
		},
		[]string{"type", "status"},
	)

	revenueTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subshare_revenue_minor_total",
			Help: "Completed payment volume in minor currency units.",
		},
		[]string{"currency"},
	)

	externalCallSeconds = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "subshare_external_call_seconds",
			Help:    "Latency of payment processor calls.",
			Buckets: []float64{0.025, 0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
		},
		[]string{"processor", "op", "success"},
	)

	reconciledTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subshare_reconciled_transactions_total",
			Help: "Stale pending transactions failed by the reconciler.",
		},
	)
)

func IncTransaction(typ, status string) {
	transactionsTotal.WithLabelValues(norm(typ), norm(status)).Inc()
}

func AddRevenue(currency string, amount int64) {
	revenueTotal.WithLabelValues(norm(currency)).Add(float64(amount))
}

func ObserveExternalCall(processor, op string, success bool, d time.Duration) {
	externalCallSeconds.WithLabelValues(norm(processor), norm(op), strconv.FormatBool(success)).
		Observe(d.Seconds())
}

func AddReconciled(n int) {
	reconciledTotal.Add(float64(n))
}
