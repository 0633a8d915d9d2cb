package kafka

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type clientMetrics struct {
	producerMsgs    *prometheus.CounterVec
	producerErrs    *prometheus.CounterVec
	producerBytes   *prometheus.CounterVec
	producerLatency *prometheus.HistogramVec

	consumerQueueDepth    *prometheus.GaugeVec
	consumerQueueFullness *prometheus.GaugeVec
	consumerHandled       *prometheus.CounterVec
	consumerLatency       *prometheus.HistogramVec
}

var (
	metricsOnce sync.Once
	shared      *clientMetrics
)

// metricsFor registers the client metrics on the first registerer it sees.
// A nil registerer means prometheus.DefaultRegisterer.
func metricsFor(reg prometheus.Registerer) *clientMetrics {
	metricsOnce.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		f := promauto.With(reg)
		shared = &clientMetrics{
			producerMsgs: f.NewCounterVec(prometheus.CounterOpts{
				Name: "coincast_kafka_producer_messages_total",
				Help: "Messages published to Kafka",
			}, []string{"topic", "compression", "result"}),
			producerErrs: f.NewCounterVec(prometheus.CounterOpts{
				Name: "coincast_kafka_producer_errors_total",
				Help: "Producer errors",
			}, []string{"topic"}),
			producerBytes: f.NewCounterVec(prometheus.CounterOpts{
				Name: "coincast_kafka_producer_bytes_total",
				Help: "Payload bytes published",
			}, []string{"topic", "compression"}),
			producerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
				Name:    "coincast_kafka_producer_publish_seconds",
				Help:    "Publish latency",
				Buckets: prometheus.DefBuckets,
			}, []string{"topic"}),
			consumerQueueDepth: f.NewGaugeVec(prometheus.GaugeOpts{
				Name: "coincast_kafka_consumer_queue_depth",
				Help: "Messages waiting in the consumer queue",
			}, []string{"topic"}),
			consumerQueueFullness: f.NewGaugeVec(prometheus.GaugeOpts{
				Name: "coincast_kafka_consumer_queue_fullness",
				Help: "Queue utilization ratio (len/cap)",
			}, []string{"topic"}),
			consumerHandled: f.NewCounterVec(prometheus.CounterOpts{
				Name: "coincast_kafka_consumer_messages_total",
				Help: "Messages handled by result (ok, error, dlq)",
			}, []string{"topic", "result"}),
			consumerLatency: f.NewHistogramVec(prometheus.HistogramOpts{
				Name: "coincast_kafka_consumer_handle_seconds",
				Help: "Handling time per message",
			}, []string{"topic"}),
		}
	})
	return shared
}
