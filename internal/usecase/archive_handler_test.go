package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"CoinCast/internal/domain/models"
	"CoinCast/pkg/metrics"
)

func TestArchiveHandlerRows(t *testing.T) {
	a := &memArchive{}
	h := NewArchiveHandler("coincast.rows", ArchiveRows, a, metrics.Nop{})
	if h.Topic() != "coincast.rows" {
		t.Fatalf("unexpected topic %s", h.Topic())
	}
	row := models.MergedRow{Timestamp: pollBase, Close: 10, MarketCap: 1e6}
	b, _ := json.Marshal(row)
	if err := h.Handle(context.Background(), b); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(a.rows) != 1 || !a.rows[0].Timestamp.Equal(pollBase) || a.rows[0].Close != 10 {
		t.Fatalf("unexpected stored rows %+v", a.rows)
	}
}

func TestArchiveHandlerPredictions(t *testing.T) {
	a := &memArchive{}
	h := NewArchiveHandler("coincast.predictions", ArchivePredictions, a, metrics.Nop{})
	b, _ := json.Marshal(models.PredictionEvent{ID: "abc", ComputedAt: pollBase, Value: 5, Rows: 48})
	if err := h.Handle(context.Background(), b); err != nil {
		t.Fatalf("handle: %v", err)
	}
	if len(a.events) != 1 || a.events[0].ID != "abc" {
		t.Fatalf("unexpected events %+v", a.events)
	}
}

func TestArchiveHandlerErrors(t *testing.T) {
	h := NewArchiveHandler("t", ArchiveRows, &memArchive{}, metrics.Nop{})
	if err := h.Handle(context.Background(), []byte("{")); err == nil {
		t.Fatalf("expected decode error")
	}

	failing := &memArchive{err: errors.New("insert failed")}
	h = NewArchiveHandler("t", ArchiveRows, failing, metrics.Nop{})
	if err := h.Handle(context.Background(), []byte(`{"timestamp":"2025-06-01T12:00:00Z"}`)); err == nil {
		t.Fatalf("expected storage error to propagate for retry")
	}
}
