// Package metrics exposes the process-wide Prometheus registry and the
// counters/gauges the engines and cache update as requests flow through.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusMetrics wraps the collectors the daemon exposes on /metrics.
type PrometheusMetrics struct {
	registry *prometheus.Registry

	messagesPublished *prometheus.CounterVec
	messagesReceived  *prometheus.CounterVec
	messagesDeleted   *prometheus.CounterVec
	messagesRedriven  *prometheus.CounterVec
	messagesExpired   *prometheus.CounterVec
	duplicatesDropped *prometheus.CounterVec

	publishDuration *prometheus.HistogramVec
	receiveDuration *prometheus.HistogramVec

	queueCacheHits   prometheus.Gauge
	queueCacheMisses prometheus.Gauge
	activeLongPolls  prometheus.Gauge
	queuesTotal      prometheus.GaugeFunc
}

var defaultBuckets = []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 20}

var promMetrics *PrometheusMetrics

// InitPrometheus builds the metrics registry under namespace. queueCounter
// is polled on scrape for the queues_total gauge; it may be nil before a
// repository is wired up, in which case the gauge always reports zero.
func InitPrometheus(namespace string, queueCounter func() float64) *PrometheusMetrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	if queueCounter == nil {
		queueCounter = func() float64 { return 0 }
	}

	pm := &PrometheusMetrics{
		registry: registry,

		messagesPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_published_total",
			Help: "Messages accepted by publish, per queue.",
		}, []string{"queue"}),
		messagesReceived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_received_total",
			Help: "Messages handed out by receive, per queue.",
		}, []string{"queue"}),
		messagesDeleted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_deleted_total",
			Help: "Messages removed by delete, per queue.",
		}, []string{"queue"}),
		messagesRedriven: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_redriven_total",
			Help: "Messages moved to a dead-letter queue after exceeding max_receives.",
		}, []string{"queue", "dead_letter_queue"}),
		messagesExpired: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "messages_expired_total",
			Help: "Messages dropped for exceeding their queue's retention timeout.",
		}, []string{"queue"}),
		duplicatesDropped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace, Name: "duplicate_messages_dropped_total",
			Help: "Publishes rejected by content-based deduplication.",
		}, []string{"queue"}),

		publishDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "publish_duration_seconds",
			Help: "publish request latency.", Buckets: defaultBuckets,
		}, []string{"queue"}),
		receiveDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace, Name: "receive_duration_seconds",
			Help: "receive request latency, including any long-poll wait.", Buckets: defaultBuckets,
		}, []string{"queue"}),

		queueCacheHits: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_cache_hits_total",
			Help: "Cumulative queue-metadata cache hits.",
		}),
		queueCacheMisses: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "queue_cache_misses_total",
			Help: "Cumulative queue-metadata cache misses.",
		}),
		activeLongPolls: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace, Name: "active_long_polls",
			Help: "Receive requests currently parked waiting on a message.",
		}),
	}

	pm.queuesTotal = prometheus.NewGaugeFunc(prometheus.GaugeOpts{
		Namespace: namespace, Name: "queues_total",
		Help: "Number of queues currently configured.",
	}, queueCounter)

	registry.MustRegister(
		pm.messagesPublished, pm.messagesReceived, pm.messagesDeleted,
		pm.messagesRedriven, pm.messagesExpired, pm.duplicatesDropped,
		pm.publishDuration, pm.receiveDuration,
		pm.queueCacheHits, pm.queueCacheMisses, pm.activeLongPolls, pm.queuesTotal,
	)

	promMetrics = pm
	return pm
}

// RecordPublish records a successful publish of one message into queue.
func RecordPublish(queue string, durationSeconds float64) {
	if promMetrics == nil {
		return
	}
	promMetrics.messagesPublished.WithLabelValues(queue).Inc()
	promMetrics.publishDuration.WithLabelValues(queue).Observe(durationSeconds)
}

// RecordDuplicateDropped records a publish rejected by deduplication.
func RecordDuplicateDropped(queue string) {
	if promMetrics == nil {
		return
	}
	promMetrics.duplicatesDropped.WithLabelValues(queue).Inc()
}

// RecordReceive records count messages handed out by a receive call.
func RecordReceive(queue string, count int, durationSeconds float64) {
	if promMetrics == nil {
		return
	}
	promMetrics.messagesReceived.WithLabelValues(queue).Add(float64(count))
	promMetrics.receiveDuration.WithLabelValues(queue).Observe(durationSeconds)
}

// RecordDelete records count messages removed from queue.
func RecordDelete(queue string, count int) {
	if promMetrics == nil {
		return
	}
	promMetrics.messagesDeleted.WithLabelValues(queue).Add(float64(count))
}

// RecordRedrive records count messages moved to deadLetterQueue.
func RecordRedrive(queue, deadLetterQueue string, count int) {
	if promMetrics == nil {
		return
	}
	promMetrics.messagesRedriven.WithLabelValues(queue, deadLetterQueue).Add(float64(count))
}

// RecordExpired records count messages dropped for exceeding retention.
func RecordExpired(queue string, count int) {
	if promMetrics == nil {
		return
	}
	promMetrics.messagesExpired.WithLabelValues(queue).Add(float64(count))
}

// RecordCacheStats sets the cache hit/miss gauges to their cumulative
// totals, as reported by cache.QueueCache.Stats.
func RecordCacheStats(hits, misses uint64) {
	if promMetrics == nil {
		return
	}
	promMetrics.queueCacheHits.Set(float64(hits))
	promMetrics.queueCacheMisses.Set(float64(misses))
}

// IncActiveLongPolls marks a receive request as parked waiting for a
// message; callers must pair every call with a DecActiveLongPolls.
func IncActiveLongPolls() {
	if promMetrics != nil {
		promMetrics.activeLongPolls.Inc()
	}
}

// DecActiveLongPolls unmarks a parked receive request.
func DecActiveLongPolls() {
	if promMetrics != nil {
		promMetrics.activeLongPolls.Dec()
	}
}

// Handler serves the registry in the Prometheus text exposition format.
func Handler() http.Handler {
	if promMetrics == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return promhttp.HandlerFor(promMetrics.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying Prometheus registry, mainly for tests.
func Registry() *prometheus.Registry {
	if promMetrics == nil {
		return nil
	}
	return promMetrics.registry
}
