package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "reconciler"

var (
	Sweeps = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "sweeps_total",
		Help:      "Reconciliation sweeps by provider and final state.",
	}, []string{"provider", "state"})

	SweepDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "sweep_duration_seconds",
		Help:      "Duration of reconciliation sweeps.",
		Buckets:   []float64{1, 5, 15, 30, 60, 120, 300, 600},
	}, []string{"provider"})

	Items = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "items_total",
		Help:      "Reconciled payments by provider and outcome.",
	}, []string{"provider", "outcome"})

	RemoteUpdates = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "remote_updates_total",
		Help:      "Remote store table updates by table and result.",
	}, []string{"table", "result"})

	UnknownStatuses = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "unknown_status_total",
		Help:      "Provider statuses without a canonical mapping.",
	}, []string{"provider"})

	TokenRefreshes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "token_refreshes_total",
		Help:      "Provider access token acquisitions by result.",
	}, []string{"result"})
)

func Result(ok bool) string {
	if ok {
		return "ok"
	}
	return "failed"
}

func Handler() http.Handler {
	return promhttp.Handler()
}
