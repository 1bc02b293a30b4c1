package metrics

import "github.com/prometheus/client_golang/prometheus"

func init() {
	register(
		membershipJoinsTotal,
		membershipChangesTotal,
	)
}

var (
	membershipJoinsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subshare_membership_joins_total",
			Help: "Join attempts by outcome.",
		},
		[]string{"outcome"}, // joined|pending|full|duplicate|rejected|error
	)

	membershipChangesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "subshare_membership_changes_total",
			Help: "Membership status changes by resulting status.",
		},
		[]string{"status"},
	)
)

func IncMembershipJoin(outcome string) {
	membershipJoinsTotal.WithLabelValues(norm(outcome)).Inc()
}

func IncMembershipChange(status string) {
	membershipChangesTotal.WithLabelValues(norm(status)).Inc()
}
