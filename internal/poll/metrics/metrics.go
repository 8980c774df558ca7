// Package metrics holds the Prometheus instruments for the poll lifecycle.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Rejection reason label values.
const (
	ReasonLocked    = "locked"
	ReasonExpired   = "expired"
	ReasonDuplicate = "duplicate"
)

// Metrics holds all Prometheus metrics for the poll module.
type Metrics struct {
	PollsCreated  prometheus.Counter
	VotesCast     prometheus.Counter
	VotesRejected *prometheus.CounterVec
}

// New creates and registers the poll metrics on the default registerer.
func New() *Metrics {
	return NewWith(prometheus.DefaultRegisterer)
}

// NewWith registers the poll metrics on a specific registerer; tests pass a
// fresh registry to avoid duplicate-registration panics.
func NewWith(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PollsCreated: factory.NewCounter(prometheus.CounterOpts{
			Name: "pollboard_polls_created_total",
			Help: "Total number of polls created.",
		}),
		VotesCast: factory.NewCounter(prometheus.CounterOpts{
			Name: "pollboard_votes_cast_total",
			Help: "Total number of successfully recorded votes.",
		}),
		VotesRejected: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pollboard_votes_rejected_total",
			Help: "Votes rejected by gate or conflict, labeled by reason.",
		}, []string{"reason"}),
	}
}
