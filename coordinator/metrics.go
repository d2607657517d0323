package coordinator

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the coordinator's write-path instrumentation.
type Metrics struct {
	WriteDuration  *prometheus.HistogramVec
	FailoverTotal  prometheus.Counter
	LeaderChanges  prometheus.Counter
	RemoteSlowSend prometheus.Counter
}

// NewMetrics builds the metric set and registers it with reg. Passing
// nil skips registration, which tests use to avoid duplicate-collector
// panics on the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		WriteDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "tskv",
			Subsystem: "coordinator",
			Name:      "write_duration_seconds",
			Help:      "Replica write latency, labeled by dispatch path.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 14),
		}, []string{"path"}),
		FailoverTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tskv",
			Subsystem: "coordinator",
			Name:      "failover_total",
			Help:      "Remote writes that fell back to a follower.",
		}),
		LeaderChanges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tskv",
			Subsystem: "coordinator",
			Name:      "leader_changes_total",
			Help:      "Forward-to-leader redirections handled.",
		}),
		RemoteSlowSend: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "tskv",
			Subsystem: "coordinator",
			Name:      "remote_slow_sends_total",
			Help:      "Remote writes that took longer than 200ms.",
		}),
	}
	if reg != nil {
		reg.MustRegister(m.WriteDuration, m.FailoverTotal, m.LeaderChanges, m.RemoteSlowSend)
	}
	return m
}
