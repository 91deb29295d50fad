package rates

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	duration *prometheus.HistogramVec
	breaker  prometheus.Gauge
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "wallet_service",
				Subsystem: "",
				Name:      "coinbase_resp_duration",
				Help:      "coinbase api response duration",
				Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 3, 10},
			}, []string{"endpoint"}),
		breaker: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: "wallet_service",
				Subsystem: "",
				Name:      "coinbase_circuit_state",
				Help:      "coinbase circuit breaker state: 0 closed, 1 half-open, 2 open",
			}),
	}
}
