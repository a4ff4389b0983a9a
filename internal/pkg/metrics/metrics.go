package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// BusMetrics 记录消息处理的吞吐与耗时，按 pattern/outcome 维度区分。
type BusMetrics struct {
	Handled   *prometheus.CounterVec
	LatencyMS *prometheus.HistogramVec
}

func NewBusMetrics(service string) *BusMetrics {
	handled := prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: "bazaar",
		Subsystem: service,
		Name:      "bus_messages_total",
		Help:      "Total number of bus messages handled.",
	}, []string{"pattern", "outcome"})
	latency := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "bazaar",
		Subsystem: service,
		Name:      "bus_message_duration_ms",
		Help:      "Bus message handling latency in milliseconds.",
		Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000},
	}, []string{"pattern"})

	prometheus.MustRegister(handled, latency)
	return &BusMetrics{Handled: handled, LatencyMS: latency}
}

// Observe 统一上报一次消息处理的计数和耗时。
func (m *BusMetrics) Observe(pattern, outcome string, start time.Time) {
	m.Handled.WithLabelValues(pattern, outcome).Inc()
	m.LatencyMS.WithLabelValues(pattern).Observe(float64(time.Since(start).Milliseconds()))
}

func Handler() http.Handler {
	return promhttp.Handler()
}
