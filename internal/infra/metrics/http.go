package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		httpRequestsTotal,
		rateLimitTriggeredTotal,
		notificationsTotal,
	)
}

var (
	httpRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subshare_http_requests_total",
			Help: "API requests by route pattern and status code.",
		},
		[]string{"route", "code"},
	)

	rateLimitTriggeredTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "subshare_rate_limit_triggered_total",
			Help: "Total number of times callers have been rate-limited.",
		},
	)

	notificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subshare_notifications_total",
			Help: "Domain event deliveries by sink and status.",
		},
		[]string{"sink", "status"}, // status: sent|error|dropped
	)
)

func IncHTTPRequest(route, code string) {
	httpRequestsTotal.WithLabelValues(route, code).Inc()
}

func IncRateLimitTriggered() {
	rateLimitTriggeredTotal.Inc()
}

func IncNotification(sink, status string) {
	notificationsTotal.WithLabelValues(norm(sink), norm(status)).Inc()
}
