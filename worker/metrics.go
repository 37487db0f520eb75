package worker

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Values of the result label of sketch_solves_total.
const (
	resultConverged = "converged"
	resultDiscarded = "discarded"
	resultFailed    = "failed"
)

// Metrics holds the Prometheus collectors updated by a [Solver]. A nil
// *Metrics records nothing.
type Metrics struct {
	// Solves counts solve attempts by result: converged, discarded (the
	// solve failed numerically and the previous shapes were kept), or
	// failed (the worker terminated).
	Solves *prometheus.CounterVec
	// SolveDuration measures the wall time of solves, including failed ones.
	SolveDuration prometheus.Histogram
	// SolveIterations records the iteration count of converged solves.
	SolveIterations prometheus.Histogram
	// Upserts counts shapes sent to the renderer.
	Upserts prometheus.Counter
}

// NewMetrics creates the worker's collectors and registers them with reg.
// It panics if they are already registered.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Solves: f.NewCounterVec(prometheus.CounterOpts{
			Name: "sketch_solves_total",
			Help: "Total number of solve attempts by result",
		}, []string{"result"}),
		SolveDuration: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sketch_solve_duration_seconds",
			Help:    "Duration of solves",
			Buckets: prometheus.ExponentialBuckets(1e-5, 4, 10),
		}),
		SolveIterations: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "sketch_solve_iterations",
			Help:    "Number of optimizer iterations of converged solves",
			Buckets: prometheus.LinearBuckets(0, 5, 20),
		}),
		Upserts: f.NewCounter(prometheus.CounterOpts{
			Name: "sketch_upserts_total",
			Help: "Total number of shapes sent to the renderer",
		}),
	}
}

func (m *Metrics) observeSolve(result string, d time.Duration, iterations int) {
	if m == nil {
		return
	}
	m.Solves.WithLabelValues(result).Inc()
	m.SolveDuration.Observe(d.Seconds())
	if result == resultConverged {
		m.SolveIterations.Observe(float64(iterations))
	}
}

func (m *Metrics) observeUpsert() {
	if m == nil {
		return
	}
	m.Upserts.Inc()
}
