package server

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the engine's Prometheus counters.
type Metrics struct {
	PoolsBuilt      *prometheus.CounterVec
	AnswersRecorded *prometheus.CounterVec
	ExamsStarted    prometheus.Counter
	ExamsSubmitted  *prometheus.CounterVec
}

// NewMetrics registers engine counters on the given registerer. Pass
// prometheus.DefaultRegisterer in production; tests use a fresh registry so
// parallel packages never collide.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PoolsBuilt: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exam_engine",
			Name:      "pools_built_total",
			Help:      "Practice/exam pools assembled, by sampling mode.",
		}, []string{"mode"}),
		AnswersRecorded: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exam_engine",
			Name:      "answers_recorded_total",
			Help:      "Practice answers recorded, by outcome.",
		}, []string{"outcome"}),
		ExamsStarted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "exam_engine",
			Name:      "exams_started_total",
			Help:      "Exam sessions started.",
		}),
		ExamsSubmitted: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "exam_engine",
			Name:      "exams_submitted_total",
			Help:      "Exam sessions finalized, by reason.",
		}, []string{"reason"}),
	}
}
