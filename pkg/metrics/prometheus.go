package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Recorder implements domain.repository.Metrics using Prometheus.
type Recorder struct {
	polls       *prometheus.CounterVec
	bufferLen   *prometheus.GaugeVec
	alignedRows prometheus.Gauge
	errorsTotal *prometheus.CounterVec
	latency     *prometheus.HistogramVec
	prediction  prometheus.Gauge
	predictedAt prometheus.Gauge
	degraded    *prometheus.GaugeVec
}

// New creates a recorder registered on reg. A nil reg uses the default registry.
func New(reg prometheus.Registerer) *Recorder {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	f := promauto.With(reg)

	return &Recorder{
		polls: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coincast_polls_total",
				Help: "Poll attempts by stream and result",
			},
			[]string{"stream", "result"},
		),
		bufferLen: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coincast_buffer_length",
				Help: "Records currently held per stream buffer",
			},
			[]string{"stream"},
		),
		alignedRows: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "coincast_aligned_rows",
				Help: "Rows in the last merged table",
			},
		),
		errorsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "coincast_errors_total",
				Help: "Total number of errors encountered",
			},
			[]string{"type"},
		),
		latency: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "coincast_operation_duration_seconds",
				Help:    "Duration of operations in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		prediction: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "coincast_prediction_value",
				Help: "Last successfully predicted value",
			},
		),
		predictedAt: f.NewGauge(
			prometheus.GaugeOpts{
				Name: "coincast_prediction_timestamp_seconds",
				Help: "Unix time of the last successful prediction",
			},
		),
		degraded: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "coincast_poller_degraded",
				Help: "1 when a poller exceeded its consecutive failure limit",
			},
			[]string{"stream"},
		),
	}
}

// RecordPoll counts one poll attempt; result is ok, error or rejected.
func (r *Recorder) RecordPoll(stream, result string) {
	r.polls.WithLabelValues(stream, result).Inc()
}

func (r *Recorder) RecordBufferLen(stream string, n int) {
	r.bufferLen.WithLabelValues(stream).Set(float64(n))
}

func (r *Recorder) RecordAlignedRows(n int) {
	r.alignedRows.Set(float64(n))
}

// RecordError records an error occurrence.
func (r *Recorder) RecordError(kind string) {
	r.errorsTotal.WithLabelValues(kind).Inc()
}

// RecordLatency records operation latency in seconds.
func (r *Recorder) RecordLatency(op string, seconds float64) {
	r.latency.WithLabelValues(op).Observe(seconds)
}

func (r *Recorder) RecordPrediction(value float64) {
	r.prediction.Set(value)
	r.predictedAt.SetToCurrentTime()
}

func (r *Recorder) RecordDegraded(stream string, degraded bool) {
	v := 0.0
	if degraded {
		v = 1
	}
	r.degraded.WithLabelValues(stream).Set(v)
}

// Nop discards all measurements.
type Nop struct{}

func (Nop) RecordPoll(string, string)     {}
func (Nop) RecordBufferLen(string, int)   {}
func (Nop) RecordAlignedRows(int)         {}
func (Nop) RecordError(string)            {}
func (Nop) RecordLatency(string, float64) {}
func (Nop) RecordPrediction(float64)      {}
func (Nop) RecordDegraded(string, bool)   {}
