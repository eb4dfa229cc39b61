package collector

import (
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

// PrometheusSink reports step counts and a failure counter to a Prometheus
// registry. Step payloads themselves are never exported as metric labels -
// the only label is the pipeline id, and failures have their own counter.
type PrometheusSink struct {
	steps    *prometheus.CounterVec
	failures *prometheus.CounterVec
}

// NewPrometheusSink registers its counters on reg and returns the sink.
func NewPrometheusSink(reg prometheus.Registerer) *PrometheusSink {
	s := &PrometheusSink{
		steps: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phlow",
			Name:      "steps_executed_total",
			Help:      "Number of steps executed, by pipeline id.",
		}, []string{"pipeline"}),
		failures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "phlow",
			Name:      "step_failures_total",
			Help:      "Number of steps that returned an error, by pipeline id.",
		}, []string{"pipeline"}),
	}
	reg.MustRegister(s.steps, s.failures)
	return s
}

func (s *PrometheusSink) Record(r StepRecord) {
	label := prometheus.Labels{"pipeline": strconv.Itoa(r.Pipeline)}
	s.steps.With(label).Inc()
	if r.HasError {
		s.failures.With(label).Inc()
	}
}
