package grocer

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)


// action outcomes
const (
	OutcomeOk = "ok"
	OutcomeFailed = "failed"
)


type StoreMetrics struct {
	actions *prometheus.CounterVec
	actionDuration *prometheus.HistogramVec
	staleDrops *prometheus.CounterVec
}

// registers the store metrics with `registerer`
// a nil registerer keeps the metrics unregistered, which tests use
func NewStoreMetrics(registerer prometheus.Registerer) *StoreMetrics {
	metrics := &StoreMetrics{
		actions: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "grocer",
				Name: "actions_total",
				Help: "Workflow actions by action and outcome.",
			},
			[]string{"action", "outcome"},
		),
		actionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "grocer",
				Name: "action_duration_seconds",
				Help: "Workflow action duration including dependent actions.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"action"},
		),
		staleDrops: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "grocer",
				Name: "stale_responses_total",
				Help: "Service responses dropped because a newer response was already applied.",
			},
			[]string{"field"},
		),
	}
	if registerer != nil {
		registerer.MustRegister(metrics.actions, metrics.actionDuration, metrics.staleDrops)
	}
	return metrics
}

func (self *StoreMetrics) observe(action string, outcome string, start time.Time) {
	self.actions.WithLabelValues(action, outcome).Inc()
	self.actionDuration.WithLabelValues(action).Observe(time.Since(start).Seconds())
}

func (self *StoreMetrics) staleDrop(field StateField) {
	self.staleDrops.WithLabelValues(string(field)).Inc()
}

func (self *StoreMetrics) ActionCount(action string, outcome string) prometheus.Counter {
	return self.actions.WithLabelValues(action, outcome)
}
