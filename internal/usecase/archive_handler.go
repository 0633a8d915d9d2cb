package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"CoinCast/internal/domain/models"
	drepo "CoinCast/internal/domain/repository"
	pkgkafka "CoinCast/pkg/kafka"
)

// ArchiveRecordKind selects what an archive topic carries.
type ArchiveRecordKind string

const (
	ArchiveRows        ArchiveRecordKind = "rows"
	ArchivePredictions ArchiveRecordKind = "predictions"
)

// ArchiveHandler consumes archive messages and writes them to storage.
type ArchiveHandler struct {
	topic   string
	kind    ArchiveRecordKind
	storage drepo.Archive
	metrics drepo.Metrics
}

func NewArchiveHandler(topic string, kind ArchiveRecordKind, storage drepo.Archive, metrics drepo.Metrics) *ArchiveHandler {
	return &ArchiveHandler{topic: topic, kind: kind, storage: storage, metrics: metrics}
}

func (h *ArchiveHandler) Topic() string { return h.topic }

// Handle decodes one message: a merged row for the rows topic, a prediction
// event for the predictions topic.
func (h *ArchiveHandler) Handle(ctx context.Context, b []byte) error {
	start := time.Now()
	var (
		eventTime time.Time
		err       error
	)
	switch h.kind {
	case ArchiveRows:
		var row models.MergedRow
		if err := json.Unmarshal(b, &row); err != nil {
			h.metrics.RecordError("consumer_unmarshal")
			return fmt.Errorf("decode row: %w", err)
		}
		eventTime = row.Timestamp
		err = h.storage.StoreRows(ctx, []models.MergedRow{row})
	case ArchivePredictions:
		var ev models.PredictionEvent
		if err := json.Unmarshal(b, &ev); err != nil {
			h.metrics.RecordError("consumer_unmarshal")
			return fmt.Errorf("decode prediction: %w", err)
		}
		eventTime = ev.ComputedAt
		err = h.storage.StorePrediction(ctx, ev)
	default:
		return fmt.Errorf("unknown archive kind %q", h.kind)
	}
	h.metrics.RecordLatency("archive_insert", time.Since(start).Seconds())
	if err != nil {
		h.metrics.RecordError("consumer_store")
		return err
	}
	// event time to storage, approximate
	h.metrics.RecordLatency("archive_e2e", time.Since(eventTime).Seconds())
	return nil
}

var _ pkgkafka.MessageHandler = (*ArchiveHandler)(nil)
