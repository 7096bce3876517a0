package repair

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type metrics struct {
	enqueueTotal *prometheus.CounterVec
	repairTotal  *prometheus.CounterVec
	deadTotal    *prometheus.CounterVec

	repairLatency *prometheus.HistogramVec

	pending     prometheus.Gauge
	locked      prometheus.Gauge
	relayLeader prometheus.Gauge
}

var metricsSingleton = sync.OnceValue(func() *metrics {
	return &metrics{
		enqueueTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "index_repair",
			Name:      "enqueue_total",
			Help:      "Total number of repair rows enqueued.",
		}, []string{"kind"}),
		repairTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "index_repair",
			Name:      "repair_total",
			Help:      "Total number of repair attempts.",
		}, []string{"kind", "result"}),
		deadTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: "index_repair",
			Name:      "dead_total",
			Help:      "Total number of jobs that first entered dead state.",
		}, []string{"kind"}),
		repairLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "index_repair",
			Name:      "repair_latency_seconds",
			Help:      "Latency distribution for repair attempts.",
			Buckets: []float64{
				0.001, 0.005, 0.01, 0.05,
				0.1, 0.5, 1, 2, 5, 10,
			},
		}, []string{"kind", "result"}),
		pending: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "index_repair",
			Name:      "pending",
			Help:      "Current number of pending (unrepaired) jobs.",
		}),
		locked: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "index_repair",
			Name:      "locked",
			Help:      "Current number of locked (unrepaired) jobs.",
		}),
		relayLeader: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: "index_repair",
			Name:      "relay_leader",
			Help:      "Whether this instance holds the relay leader lock (1/0).",
		}),
	}
})

func getMetrics() *metrics {
	return metricsSingleton()
}
