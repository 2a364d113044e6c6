package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	ActiveConnections prometheus.Gauge
	WSMessages        *prometheus.CounterVec
	ChatRequests      *prometheus.CounterVec
	GenerationLatency prometheus.Histogram
	RetrievalLatency  prometheus.Histogram
	DocumentsIngested *prometheus.CounterVec
	ChunksIndexed     prometheus.Counter
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ActiveConnections: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_ws_connections",
			Help:      "Number of open realtime conversation sockets.",
		}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		ChatRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat turns by transport and outcome.",
		}, []string{"transport", "status"}),
		GenerationLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "generation_latency_ms",
			Help:      "Latency of the generation backend call in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2500, 5000, 10000, 30000},
		}),
		RetrievalLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "retrieval_latency_ms",
			Help:      "Latency of the similarity query in milliseconds.",
			Buckets:   []float64{5, 10, 25, 50, 100, 250, 500, 1000},
		}),
		DocumentsIngested: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_ingested_total",
			Help:      "Document ingestion outcomes.",
		}, []string{"status"}),
		ChunksIndexed: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chunks_indexed_total",
			Help:      "Chunks added to the vector index.",
		}),
	}
}

// All observation helpers tolerate a nil receiver so tests can run without
// registering collectors against the global registry.

func (m *Metrics) ObserveGeneration(d time.Duration) {
	if m == nil {
		return
	}
	m.GenerationLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) ObserveRetrieval(d time.Duration) {
	if m == nil {
		return
	}
	m.RetrievalLatency.Observe(float64(d.Milliseconds()))
}

func (m *Metrics) IncChatRequest(transport, status string) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(transport, status).Inc()
}

func (m *Metrics) IncWSMessage(direction, msgType string) {
	if m == nil {
		return
	}
	m.WSMessages.WithLabelValues(direction, msgType).Inc()
}

func (m *Metrics) SetActiveConnections(n int) {
	if m == nil {
		return
	}
	m.ActiveConnections.Set(float64(n))
}

func (m *Metrics) IncDocumentIngested(status string) {
	if m == nil {
		return
	}
	m.DocumentsIngested.WithLabelValues(status).Inc()
}

func (m *Metrics) AddChunksIndexed(n int) {
	if m == nil {
		return
	}
	m.ChunksIndexed.Add(float64(n))
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
