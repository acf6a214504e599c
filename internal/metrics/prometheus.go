// Package metrics provides Prometheus-based metrics recording for treatment turns.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/BTreeMap/shiftengine/internal/models"
)

// PrometheusRecorder implements flow.Recorder using Prometheus metrics.
type PrometheusRecorder struct {
	turnsTotal          *prometheus.CounterVec
	turnDuration        *prometheus.HistogramVec
	chainHops           prometheus.Histogram
	assistTotal         *prometheus.CounterVec
	assistSkipsTotal    *prometheus.CounterVec
	persistenceFailures *prometheus.CounterVec
}

// NewPrometheusRecorder creates a recorder whose collectors are registered
// with reg. Passing nil registers with the default registry.
func NewPrometheusRecorder(reg prometheus.Registerer) *PrometheusRecorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)
	return &PrometheusRecorder{
		turnsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiftengine_turns_total",
				Help: "Total number of treatment turns by outcome",
			},
			[]string{"outcome"},
		),
		turnDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "shiftengine_turn_duration_seconds",
				Help:    "Duration of treatment turns in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"outcome"},
		),
		chainHops: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "shiftengine_chain_hops",
				Help:    "Number of auto-advance hops per turn",
				Buckets: []float64{0, 1, 2, 3, 4, 5},
			},
		),
		assistTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiftengine_assist_calls_total",
				Help: "Total number of linguistic assist calls by result",
			},
			[]string{"result"},
		),
		assistSkipsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiftengine_assist_skips_total",
				Help: "Total number of linguistic assist calls skipped at the gate, by reason",
			},
			[]string{"reason"},
		),
		persistenceFailures: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "shiftengine_persistence_failures_total",
				Help: "Total number of failed store operations by operation",
			},
			[]string{"op"},
		),
	}
}

// ObserveTurn records a finished turn.
func (p *PrometheusRecorder) ObserveTurn(outcome models.TurnOutcome, elapsed time.Duration) {
	p.turnsTotal.WithLabelValues(string(outcome)).Inc()
	p.turnDuration.WithLabelValues(string(outcome)).Observe(elapsed.Seconds())
}

// ObserveChain records how many auto steps a turn passed through.
func (p *PrometheusRecorder) ObserveChain(hops int) {
	p.chainHops.Observe(float64(hops))
}

// IncAssist counts an assist call by result.
func (p *PrometheusRecorder) IncAssist(result string) {
	p.assistTotal.WithLabelValues(result).Inc()
}

// IncAssistSkip counts a gated-out assist call by reason.
func (p *PrometheusRecorder) IncAssistSkip(reason string) {
	p.assistSkipsTotal.WithLabelValues(reason).Inc()
}

// IncPersistenceFailure counts a failed store operation.
func (p *PrometheusRecorder) IncPersistenceFailure(op string) {
	p.persistenceFailures.WithLabelValues(op).Inc()
}
