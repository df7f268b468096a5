package statusfeed

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/bissquit/jobwatch/internal/pkg/metrics"
)

var (
	feedPolls = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "statusfeed",
			Name:      "polls_total",
			Help:      "Total successful status feed polls",
		},
	)

	feedPollFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Namespace: metrics.Namespace,
			Subsystem: "statusfeed",
			Name:      "poll_failures_total",
			Help:      "Status feed polls that failed and left the snapshot stale",
		},
	)
)
