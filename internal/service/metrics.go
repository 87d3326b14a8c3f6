package service

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics are the evolver's prometheus collectors. A nil *Metrics records
// nothing.
type Metrics struct {
	steps       *prometheus.CounterVec
	highScore   *prometheus.GaugeVec
	oracleTime  prometheus.Histogram
	scorerTime  prometheus.Histogram
	renderTime  prometheus.Histogram
	failedSteps *prometheus.CounterVec
}

// NewMetrics registers the collectors with reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		steps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evolver",
			Name:      "steps_total",
			Help:      "Completed generation steps by outcome.",
		}, []string{"outcome"}),
		highScore: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "evolver",
			Name:      "high_score",
			Help:      "Best score recorded by each bot.",
		}, []string{"bot"}),
		oracleTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "evolver",
			Name:      "oracle_seconds",
			Help:      "Latency of oracle calls.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		scorerTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "evolver",
			Name:      "scorer_seconds",
			Help:      "Latency of scorer calls.",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 10),
		}),
		renderTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: "evolver",
			Name:      "render_seconds",
			Help:      "Time spent compiling and rendering candidates.",
			Buckets:   prometheus.ExponentialBuckets(0.01, 2, 10),
		}),
		failedSteps: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: "evolver",
			Name:      "step_errors_total",
			Help:      "Steps aborted by an infrastructure error.",
		}, []string{"kind"}),
	}
}

func (m *Metrics) observeStep(outcome Outcome) {
	if m == nil {
		return
	}
	m.steps.WithLabelValues(outcome.String()).Inc()
}

func (m *Metrics) setHighScore(botID int, score float64) {
	if m == nil {
		return
	}
	m.highScore.WithLabelValues(strconv.Itoa(botID)).Set(score)
}

func (m *Metrics) observeOracle(seconds float64) {
	if m == nil {
		return
	}
	m.oracleTime.Observe(seconds)
}

func (m *Metrics) observeScorer(seconds float64) {
	if m == nil {
		return
	}
	m.scorerTime.Observe(seconds)
}

func (m *Metrics) observeRender(seconds float64) {
	if m == nil {
		return
	}
	m.renderTime.Observe(seconds)
}

func (m *Metrics) stepFailed(kind string) {
	if m == nil {
		return
	}
	m.failedSteps.WithLabelValues(kind).Inc()
}
