// Package metrics exposes Prometheus counters for tracker activity.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"favorites-tracker/internal/tracker"
)

var (
	mutations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "favorites_mutations_total",
		Help: "Completed tracker mutations by operation.",
	}, []string{"op"})

	Picks = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "favorites_picks_total",
		Help: "Random pick requests by kind and outcome.",
	}, []string{"kind", "outcome"})

	Snapshots = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "favorites_snapshots_total",
		Help: "Snapshot exports and imports by outcome.",
	}, []string{"direction", "outcome"})
)

// Observe is a tracker.Listener that counts mutations.
func Observe(c tracker.Change) {
	mutations.WithLabelValues(c.Op).Inc()
}
