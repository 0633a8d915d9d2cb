package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder(t *testing.T) {
	reg := prometheus.NewRegistry()
	r := New(reg)

	r.RecordPoll("candles", "ok")
	r.RecordPoll("candles", "ok")
	r.RecordPoll("meta", "error")
	r.RecordBufferLen("candles", 42)
	r.RecordAlignedRows(7)
	r.RecordDegraded("meta", true)
	r.RecordPrediction(65000.5)

	if got := testutil.ToFloat64(r.polls.WithLabelValues("candles", "ok")); got != 2 {
		t.Fatalf("expected 2 ok polls, got %v", got)
	}
	if got := testutil.ToFloat64(r.bufferLen.WithLabelValues("candles")); got != 42 {
		t.Fatalf("expected buffer length 42, got %v", got)
	}
	if got := testutil.ToFloat64(r.alignedRows); got != 7 {
		t.Fatalf("expected 7 aligned rows, got %v", got)
	}
	if got := testutil.ToFloat64(r.degraded.WithLabelValues("meta")); got != 1 {
		t.Fatalf("expected degraded gauge 1, got %v", got)
	}
	if got := testutil.ToFloat64(r.prediction); got != 65000.5 {
		t.Fatalf("unexpected prediction gauge %v", got)
	}

	r.RecordDegraded("meta", false)
	if got := testutil.ToFloat64(r.degraded.WithLabelValues("meta")); got != 0 {
		t.Fatalf("expected degraded gauge cleared, got %v", got)
	}
}
