package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActionsTotal counts processed backend actions by name and outcome.
	ActionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "requisition_actions_total",
		Help: "Backend actions processed, labelled by action name and result.",
	}, []string{"action", "result"})

	// ActionDuration tracks per-action processing time.
	ActionDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "requisition_action_duration_seconds",
		Help:    "Backend action processing time in seconds.",
		Buckets: prometheus.DefBuckets,
	}, []string{"action"})
)
