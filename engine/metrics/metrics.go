package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"keyholder/engine/library"
)

// Entry point metrics
var (
	OperationsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyholder_operations_total",
			Help: "Total number of identity entry point calls by operation and outcome",
		},
		[]string{"op", "outcome"},
	)

	EventsHandled = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyholder_events_handled_total",
			Help: "Total number of operation events received from relays by result",
		},
		[]string{"result"},
	)
)

// Value metrics
var (
	TransfersTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "keyholder_transfers_total",
			Help: "Total number of outbound calls issued by identities, by path",
		},
		[]string{"path"},
	)

	ExecutionsPending = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keyholder_executions_pending",
		Help: "Number of queued executions awaiting a decision across all identities",
	})
)

// State metrics
var (
	IdentitiesDeployed = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "keyholder_identities_deployed",
		Help: "Number of identities in the directory",
	})

	NotificationsPublished = promauto.NewCounter(prometheus.CounterOpts{
		Name: "keyholder_notifications_published_total",
		Help: "Total number of notification events handed to relays",
	})
)

// Outcome maps an entry point error to the outcome label.
func Outcome(err error) string {
	if err == nil {
		return "ok"
	}
	if kind := library.KindOf(err); kind != "" {
		return string(kind)
	}
	return "error"
}
