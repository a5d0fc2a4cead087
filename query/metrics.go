package query

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stage labels used by metrics and spans.
const (
	stageDirect   = "direct"
	stageRetrieve = "retrieve"
	stageRerank   = "rerank"
	stageGenerate = "generate"
)

// Metrics holds the Prometheus collectors for query answering.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	answers       *prometheus.CounterVec
	errors        *prometheus.CounterVec
	stageDuration *prometheus.HistogramVec
	rerankScore   *prometheus.HistogramVec
}

// NewMetrics creates the query collectors and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		answers: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faqrag_answers_total",
				Help: "Total answered questions by configuration and match kind",
			},
			[]string{"configuration", "matched_via"},
		),
		errors: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "faqrag_answer_errors_total",
				Help: "Total failed questions by configuration and failing stage",
			},
			[]string{"configuration", "stage"},
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faqrag_stage_duration_seconds",
				Help:    "Duration of each answering stage",
				Buckets: prometheus.ExponentialBuckets(0.0005, 2, 14),
			},
			[]string{"stage"},
		),
		rerankScore: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "faqrag_rerank_score",
				Help:    "Winning rerank score per semantic lookup",
				Buckets: prometheus.LinearBuckets(0, 0.1, 11),
			},
			[]string{"configuration"},
		),
	}
	if reg == nil {
		return m, nil
	}
	for _, c := range []prometheus.Collector{m.answers, m.errors, m.stageDuration, m.rerankScore} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) observeAnswer(configuration string, kind string) {
	if m == nil {
		return
	}
	m.answers.WithLabelValues(configuration, kind).Inc()
}

func (m *Metrics) observeError(configuration, stage string) {
	if m == nil {
		return
	}
	m.errors.WithLabelValues(configuration, stage).Inc()
}

func (m *Metrics) observeStage(stage string, start time.Time) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(time.Since(start).Seconds())
}

func (m *Metrics) observeScore(configuration string, score float32) {
	if m == nil {
		return
	}
	m.rerankScore.WithLabelValues(configuration).Observe(float64(score))
}
