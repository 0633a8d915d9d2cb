package metrics

import (
	"errors"
	"strconv"
	"sync"
	"time"

	xhttp "CoinCast/pkg/http"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	once sync.Once

	UpstreamLatency = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "coincast",
			Subsystem: "upstream",
			Name:      "latency_seconds",
			Help:      "Latency of calls to upstream APIs (market data, model)",
			Buckets:   prometheus.DefBuckets,
		},
		[]string{"endpoint"},
	)

	UpstreamErrors = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "coincast",
			Subsystem: "upstream",
			Name:      "errors_total",
			Help:      "Failed upstream calls by endpoint and HTTP status (0 for transport errors)",
		},
		[]string{"endpoint", "status"},
	)
)

// Register adds the upstream collectors to reg once per process.
func Register(reg prometheus.Registerer) {
	once.Do(func() {
		if reg == nil {
			reg = prometheus.DefaultRegisterer
		}
		reg.MustRegister(UpstreamLatency, UpstreamErrors)
	})
}

// Observe records one upstream call that started at start and ended with err.
func Observe(endpoint string, start time.Time, err error) {
	UpstreamLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	if err == nil {
		return
	}
	status := 0
	var se *xhttp.StatusError
	if errors.As(err, &se) {
		status = se.Code
	}
	UpstreamErrors.WithLabelValues(endpoint, strconv.Itoa(status)).Inc()
}
