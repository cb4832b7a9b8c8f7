package metrics

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestObserveExchange(t *testing.T) {
	reg := NewRegistry()
	m := NewExchangeMetrics(reg)

	m.ObserveExchange("3ph-optical", true, 79, 2*time.Second)
	m.ObserveExchange("3ph-optical", false, 0, time.Second)
	m.ObserveExchange("3ph-optical", true, 79, 2*time.Second)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ExchangeTotal.WithLabelValues("3ph-optical", "valid")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ExchangeTotal.WithLabelValues("3ph-optical", "invalid")))
}

func TestObserveDecodeAndPublish(t *testing.T) {
	m := NewExchangeMetrics(NewRegistry())
	m.ObserveDecode("3ph-infrared", false)
	m.ObservePublish("modbus", true)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.DecodeTotal.WithLabelValues("3ph-infrared", "error")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PublishTotal.WithLabelValues("modbus", "ok")))
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *ExchangeMetrics
	assert.NotPanics(t, func() {
		m.ObserveExchange("1ph-optical", true, 150, time.Second)
		m.ObserveDecode("1ph-optical", true)
		m.ObservePublish("ws", false)
	})
}

func TestHandlerServesExchangeMetrics(t *testing.T) {
	reg := NewRegistry()
	m := NewExchangeMetrics(reg)
	m.ObserveExchange("1ph-optical", true, 150, time.Second)

	rec := httptest.NewRecorder()
	Handler(reg).ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `meter_exchange_total{result="valid",variant="1ph-optical"} 1`))
}
