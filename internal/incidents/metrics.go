package incidents

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bissquit/jobwatch/internal/pkg/metrics"
)

var (
	incidentsOpened = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "incidents",
			Name:      "opened_total",
			Help:      "Total incidents opened",
		},
	)

	incidentsClaimed = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "incidents",
			Name:      "claimed_total",
			Help:      "Total successful incident claims",
		},
	)

	incidentsResolved = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "incidents",
			Name:      "resolved_total",
			Help:      "Total incidents resolved",
		},
	)

	claimConflicts = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "incidents",
			Name:      "claim_conflicts_total",
			Help:      "Claim attempts rejected because another responder won the race",
		},
	)

	notifyFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "incidents",
			Name:      "notify_failures_total",
			Help:      "Best-effort response notifications that failed to deliver",
		},
	)
)
