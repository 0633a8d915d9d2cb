package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"math"
	"sync"
	"testing"
	"time"
)

type capturePublisher struct {
	mu      sync.Mutex
	topic   string
	batches [][]AggregatedLogEntry
}

func (p *capturePublisher) PublishMessage(_ context.Context, topic string, payload interface{}) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.topic = topic
	p.batches = append(p.batches, payload.([]AggregatedLogEntry))
	return nil
}

func TestWriterLoggerEmitsFields(t *testing.T) {
	var buf bytes.Buffer
	log := NewWriter(&buf).With("poller")
	log.Info("fetched",
		String("stream", "candles"),
		Int("records", 10),
		Float64("close", 64000.5),
		Duration("took", 1500*time.Millisecond),
		Bool("degraded", false),
	)

	var got map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &got); err != nil {
		t.Fatalf("log line is not JSON: %v (%s)", err, buf.String())
	}
	if got["component"] != "poller" || got["stream"] != "candles" || got["message"] != "fetched" {
		t.Fatalf("unexpected log line %v", got)
	}
	if got["took"].(float64) != 1500 {
		t.Fatalf("duration should be logged in ms, got %v", got["took"])
	}
}

func TestCollectorAggregatesRepeatedErrors(t *testing.T) {
	pub := &capturePublisher{}
	log := NewWriter(&bytes.Buffer{})
	log.AddCollector(&CollectionConfig{TimeInterval: time.Hour, CountThreshold: 100, Topic: "logs", Source: "coincast", Publisher: pub})

	for i := 0; i < 3; i++ {
		log.Error("fetch failed", String("stream", "meta"), Error(errors.New("timeout")))
	}
	log.Error("other failure")

	if n := log.collector.Pending(); n != 2 {
		t.Fatalf("expected 2 unique entries, got %d", n)
	}
	log.collector.Flush()

	pub.mu.Lock()
	defer pub.mu.Unlock()
	if pub.topic != "logs" || len(pub.batches) != 1 {
		t.Fatalf("expected one batch on topic logs, got %d on %q", len(pub.batches), pub.topic)
	}
	var found bool
	for _, e := range pub.batches[0] {
		if e.Message == "fetch failed" {
			found = true
			if e.Count != 3 || e.Source != "coincast" {
				t.Fatalf("expected entry counted 3 times, got %+v", e)
			}
		}
	}
	if !found {
		t.Fatalf("aggregated entry missing from batch %+v", pub.batches[0])
	}
	log.RemoveCollector()
	if log.collector != nil {
		t.Fatalf("collector should be detached")
	}
}

func TestFloatFieldKeyValueHandlesNaN(t *testing.T) {
	_, v := Float64("x", math.NaN()).GetKeyValue()
	if _, err := json.Marshal(v); err != nil {
		t.Fatalf("NaN field value should be encodable: %v", err)
	}
}
