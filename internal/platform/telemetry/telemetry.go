package telemetry

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	once sync.Once

	WritebackTransitions = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "writeback_transitions_total", Help: "Writeback job transitions by resolved status"},
		[]string{"status"},
	)
	WritebackReplays = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "writeback_replays_total", Help: "Dead-letter replay attempts by outcome"},
		[]string{"outcome"},
	)
	WritebackDeadLetters = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "writeback_dead_letters_total", Help: "Jobs resolved to dead_failed"},
	)
	FactExtractionJobs = prometheus.NewCounter(
		prometheus.CounterOpts{Name: "fact_extraction_jobs_total", Help: "Fact extraction jobs enqueued"},
	)
)

// Handler exposes the /metrics HTTP handler with a singleton registry.
func Handler() http.Handler {
	once.Do(func() {
		prometheus.MustRegister(
			WritebackTransitions,
			WritebackReplays,
			WritebackDeadLetters,
			FactExtractionJobs,
		)
	})
	return promhttp.Handler()
}
