package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/example/contact-relay/internal/models"
)

const namespace = "contact"

// Recorder counts dispatcher outcomes on a private registry.
type Recorder struct {
	registry    *prometheus.Registry
	challenges  prometheus.Counter
	submissions *prometheus.CounterVec
}

// NewRecorder registers the contact relay collectors plus the Go runtime
// collectors on a fresh registry.
func NewRecorder() *Recorder {
	reg := prometheus.NewRegistry()

	r := &Recorder{
		registry: reg,
		challenges: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "challenges_issued_total",
			Help:      "Proof-of-work challenges handed out.",
		}),
		submissions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "submissions_total",
			Help:      "Resolved invocations by outcome.",
		}, []string{"outcome"}),
	}

	reg.MustRegister(
		r.challenges,
		r.submissions,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return r
}

// Observe implements dispatcher.Metrics.
func (r *Recorder) Observe(outcome string) {
	if outcome == models.OutcomeChallengeIssued {
		r.challenges.Inc()
		return
	}
	r.submissions.WithLabelValues(outcome).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (r *Recorder) Handler() http.Handler {
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{Registry: r.registry})
}

// Registry returns the underlying registry, mainly for tests.
func (r *Recorder) Registry() *prometheus.Registry {
	return r.registry
}
