package observability

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ChatRequests   *prometheus.CounterVec
	MemoriesUsed   prometheus.Histogram
	ProviderErrors *prometheus.CounterVec
	StoreErrors    *prometheus.CounterVec
	StoreReady     prometheus.Gauge
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ChatRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by provider and outcome.",
		}, []string{"provider", "outcome"}),
		MemoriesUsed: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "memories_used",
			Help:      "Memory fragments injected into the prompt per request.",
			Buckets:   []float64{0, 1, 2, 3, 4, 5},
		}),
		ProviderErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_errors_total",
			Help:      "Generation failures by provider and reason.",
		}, []string{"provider", "reason"}),
		StoreErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "store_errors_total",
			Help:      "Absorbed memory store failures by operation.",
		}, []string{"operation"}),
		StoreReady: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "store_ready",
			Help:      "Whether the vector store finished initializing (0 or 1).",
		}),
	}
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
