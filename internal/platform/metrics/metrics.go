// Package metrics registers the Prometheus metrics for the relay.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
type Metrics struct {
	SubmissionsTotal  prometheus.Counter
	SubmissionsShort  prometheus.Counter
	DispatchOutcomes  *prometheus.CounterVec
	IdentityLookups   prometheus.Counter
	IdentityCacheHits prometheus.Counter
}

// New creates and registers all Prometheus metrics.
func New() *Metrics {
	return newWith(prometheus.DefaultRegisterer)
}

// NewForTest registers metrics on a private registry so parallel tests do
// not collide on duplicate registration.
func NewForTest() *Metrics {
	return newWith(prometheus.NewRegistry())
}

func newWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		SubmissionsTotal: factory.NewCounter(prometheus.CounterOpts{
			Name: "convrelay_submissions_total",
			Help: "Total form submissions received",
		}),
		SubmissionsShort: factory.NewCounter(prometheus.CounterOpts{
			Name: "convrelay_submissions_short_circuited_total",
			Help: "Submissions rejected before dispatch for missing required fields",
		}),
		DispatchOutcomes: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "convrelay_dispatch_outcomes_total",
			Help: "Sink dispatch outcomes by sink, operation and status",
		}, []string{"sink", "op", "status"}),
		IdentityLookups: factory.NewCounter(prometheus.CounterOpts{
			Name: "convrelay_identity_lookups_total",
			Help: "Remote identity lookup calls issued",
		}),
		IdentityCacheHits: factory.NewCounter(prometheus.CounterOpts{
			Name: "convrelay_identity_cache_hits_total",
			Help: "Identity resolutions served from the persisted cache",
		}),
	}
}
