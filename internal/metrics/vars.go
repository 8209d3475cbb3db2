package metrics

import "github.com/prometheus/client_golang/prometheus"

var (
	VenuePrice = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arb_venue_price",
		Help: "Last observed price (quote per base) per venue and pair",
	}, []string{"venue", "pair"})

	SnapshotAge = prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Name: "arb_snapshot_age_seconds",
		Help: "Age of the freshest snapshot per venue and pair at cycle end",
	}, []string{"venue", "pair"})

	VenueErrors = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_venue_errors_total",
		Help: "Price fetch failures per venue",
	}, []string{"venue"})

	PollCycle = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "arb_poll_cycle_seconds",
		Help:    "Wall time of one full polling cycle",
		Buckets: prometheus.DefBuckets,
	})

	OpportunitiesFound = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "arb_opportunities_total",
		Help: "Opportunities clearing the net-profit threshold",
	})

	TradesTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_trades_total",
		Help: "Execution attempts by terminal status",
	}, []string{"status"})

	GuardRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "arb_guard_rejections_total",
		Help: "Executions blocked by the safety guard, by reason",
	}, []string{"reason"})

	ConsecutiveFailures = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "arb_consecutive_failures",
		Help: "Current consecutive failed trade count",
	})
)

func init() {
	prometheus.MustRegister(
		VenuePrice,
		SnapshotAge,
		VenueErrors,
		PollCycle,
		OpportunitiesFound,
		TradesTotal,
		GuardRejections,
		ConsecutiveFailures,
	)
}
