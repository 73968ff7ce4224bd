package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "handlepay"

var labelNames = []string{"event", "method", "outcome"}

type PrometheusRecorder struct {
	counters  *prometheus.CounterVec
	histogram *prometheus.HistogramVec
}

// NewPrometheusRecorder registers the handlepay collectors with reg. A nil
// reg means the default registry.
func NewPrometheusRecorder(reg prometheus.Registerer) (*PrometheusRecorder, error) {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}

	counters := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_total",
			Help:      "handlepay event counters",
		},
		labelNames,
	)

	histogram := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "latency_seconds",
			Help:      "handlepay operation latency",
			Buckets:   prometheus.DefBuckets,
		},
		labelNames,
	)

	for _, c := range []prometheus.Collector{counters, histogram} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}

	return &PrometheusRecorder{
		counters:  counters,
		histogram: histogram,
	}, nil
}

func (p *PrometheusRecorder) IncCounter(name string, labels map[string]string) {
	p.counters.With(promLabels(name, labels)).Inc()
}

func (p *PrometheusRecorder) ObserveLatency(name string, d time.Duration, labels map[string]string) {
	p.histogram.With(promLabels(name, labels)).Observe(d.Seconds())
}

func promLabels(name string, labels map[string]string) prometheus.Labels {
	return prometheus.Labels{
		"event":   name,
		"method":  labels["method"],
		"outcome": labels["outcome"],
	}
}
