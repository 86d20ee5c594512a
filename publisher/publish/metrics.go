package publish

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Outcome labels recorded by Metrics.
const (
	outcomeCommitted = "committed"
	outcomeUnchanged = "unchanged"
	outcomeFailed    = "failed"
	outcomeInvalid   = "invalid"

	// strategyNone labels calls rejected before a
	// strategy was selected.
	strategyNone = "none"
)

// Metrics counts publish calls and times backend runs.
//
// Metrics:
//   - publisher_commits_total: calls by strategy and outcome
//   - publisher_commit_duration_seconds: backend run time by strategy
//
// A nil *Metrics records nothing.
type Metrics struct {
	commits  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates the publish metrics and registers them
// with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "publisher",
				Name:      "commits_total",
				Help:      "Publish calls by strategy and outcome",
			},
			[]string{"strategy", "outcome"},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "publisher",
				Name:      "commit_duration_seconds",
				Help:      "Time spent in the commit backend",
				Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
			},
			[]string{"strategy"},
		),
	}

	reg.MustRegister(m.commits, m.duration)

	return m
}

func (m *Metrics) record(strategy, outcome string) {
	if m == nil {
		return
	}

	m.commits.WithLabelValues(strategy, outcome).Inc()
}

func (m *Metrics) observe(strategy Strategy, elapsed time.Duration) {
	if m == nil {
		return
	}

	m.duration.WithLabelValues(string(strategy)).Observe(elapsed.Seconds())
}
