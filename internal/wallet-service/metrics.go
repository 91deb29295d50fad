package walletservice

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	purchases *prometheus.CounterVec
	rejected  *prometheus.CounterVec
	balances  *prometheus.GaugeVec
	duration  *prometheus.HistogramVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	factory := promauto.With(reg)

	return &metrics{
		purchases: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wallet_service",
				Subsystem: "",
				Name:      "purchases_total",
				Help:      "total quantity of completed simulated purchases",
			}, []string{"type"}),
		rejected: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "wallet_service",
				Subsystem: "",
				Name:      "rejected_purchases_total",
				Help:      "total quantity of rejected simulated purchases",
			}, []string{"reason"}),
		balances: factory.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: "wallet_service",
				Subsystem: "",
				Name:      "wallet_balance",
				Help:      "current demo wallet balance",
			}, []string{"currency"}),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: "wallet_service",
				Subsystem: "",
				Name:      "price_fetch_duration",
				Help:      "spot price fetch duration",
				Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 3},
			}, []string{"pair"}),
	}
}
