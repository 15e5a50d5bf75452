package pipeline

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/c360studio/semtext/document"
)

// Metrics holds the Prometheus metrics reported by pipelines. One
// Metrics instance can be shared by several pipelines; series are
// split by pipeline name.
type Metrics struct {
	runs     *prometheus.CounterVec
	items    *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewMetrics creates pipeline metrics registered on reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		runs: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semtext",
			Subsystem: "pipeline",
			Name:      "runs_total",
			Help:      "Pipeline runs by pipeline name and status",
		}, []string{"pipeline", "status"}),
		items: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "semtext",
			Subsystem: "pipeline",
			Name:      "output_items_total",
			Help:      "Items produced under pipeline output keys",
		}, []string{"pipeline"}),
		duration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "semtext",
			Subsystem: "pipeline",
			Name:      "run_duration_seconds",
			Help:      "Pipeline run duration in seconds",
		}, []string{"pipeline"}),
	}
}

func (m *Metrics) observeRun(pipeline string, elapsed time.Duration, outputs [][]*document.Segment, err error) {
	status := "success"
	if err != nil {
		status = "error"
	}
	m.runs.WithLabelValues(pipeline, status).Inc()
	m.duration.WithLabelValues(pipeline).Observe(elapsed.Seconds())
	if err != nil {
		return
	}
	count := 0
	for _, segs := range outputs {
		count += len(segs)
	}
	m.items.WithLabelValues(pipeline).Add(float64(count))
}
