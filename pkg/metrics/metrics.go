package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRegistry creates a registry with the Go and process collectors registered.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// ExchangeMetrics counts meter exchanges and decodes. A nil *ExchangeMetrics is
// valid and records nothing.
type ExchangeMetrics struct {
	ExchangeTotal    *prometheus.CounterVec   // labels: variant, result=valid|invalid
	ExchangeDuration *prometheus.HistogramVec // labels: variant
	CaptureBytes     *prometheus.HistogramVec // labels: variant
	DecodeTotal      *prometheus.CounterVec   // labels: variant, result=ok|error
	PublishTotal     *prometheus.CounterVec   // labels: sink, result=ok|error
}

func NewExchangeMetrics(reg prometheus.Registerer) *ExchangeMetrics {
	m := &ExchangeMetrics{
		ExchangeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meter_exchange_total",
			Help: "Meter exchanges by variant and validity.",
		}, []string{"variant", "result"}),
		ExchangeDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meter_exchange_duration_seconds",
			Help:    "Wall time of a complete meter exchange.",
			Buckets: []float64{0.5, 1, 2, 3, 5, 8, 13},
		}, []string{"variant"}),
		CaptureBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "meter_capture_bytes",
			Help:    "Length of raw captures.",
			Buckets: []float64{0, 25, 50, 79, 120, 180},
		}, []string{"variant"}),
		DecodeTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meter_decode_total",
			Help: "Record decode attempts by variant and result.",
		}, []string{"variant", "result"}),
		PublishTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "meter_publish_total",
			Help: "Readings published to downstream sinks.",
		}, []string{"sink", "result"}),
	}
	reg.MustRegister(m.ExchangeTotal, m.ExchangeDuration, m.CaptureBytes, m.DecodeTotal, m.PublishTotal)
	return m
}

func (m *ExchangeMetrics) ObserveExchange(variant string, valid bool, length int, took time.Duration) {
	if m == nil {
		return
	}
	m.ExchangeTotal.WithLabelValues(variant, result(valid, "valid", "invalid")).Inc()
	m.ExchangeDuration.WithLabelValues(variant).Observe(took.Seconds())
	m.CaptureBytes.WithLabelValues(variant).Observe(float64(length))
}

func (m *ExchangeMetrics) ObserveDecode(variant string, ok bool) {
	if m == nil {
		return
	}
	m.DecodeTotal.WithLabelValues(variant, result(ok, "ok", "error")).Inc()
}

func (m *ExchangeMetrics) ObservePublish(sink string, ok bool) {
	if m == nil {
		return
	}
	m.PublishTotal.WithLabelValues(sink, result(ok, "ok", "error")).Inc()
}

func result(ok bool, yes, no string) string {
	if ok {
		return yes
	}
	return no
}
