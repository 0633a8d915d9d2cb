package repository

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"CoinCast/internal/domain/models"
	domrepo "CoinCast/internal/domain/repository"
	pkgkafka "CoinCast/pkg/kafka"
)

// ErrQueryUnsupported is returned by write-only archives.
var ErrQueryUnsupported = errors.New("archive does not support queries")

// Publisher is the producer surface the Kafka archive needs.
type Publisher interface {
	PublishBatch(ctx context.Context, topic string, msgs []pkgkafka.Message) error
	Publish(ctx context.Context, topic string, key []byte, value interface{}) error
	Close() error
}

// KafkaArchive publishes rows and prediction events to Kafka topics.
type KafkaArchive struct {
	producer   Publisher
	rowsTopic  string
	predsTopic string
}

func NewKafkaArchive(producer Publisher, rowsTopic, predictionsTopic string) *KafkaArchive {
	return &KafkaArchive{producer: producer, rowsTopic: rowsTopic, predsTopic: predictionsTopic}
}

// StoreRows sends one message per row keyed by its unix millisecond timestamp.
func (k *KafkaArchive) StoreRows(ctx context.Context, rows []models.MergedRow) error {
	if len(rows) == 0 {
		return nil
	}
	msgs := make([]pkgkafka.Message, len(rows))
	for i, r := range rows {
		msgs[i] = pkgkafka.Message{
			Key:   []byte(strconv.FormatInt(r.Timestamp.UnixMilli(), 10)),
			Value: r,
		}
	}
	if err := k.producer.PublishBatch(ctx, k.rowsTopic, msgs); err != nil {
		return fmt.Errorf("publish rows: %w", err)
	}
	return nil
}

func (k *KafkaArchive) StorePrediction(ctx context.Context, ev models.PredictionEvent) error {
	if err := k.producer.Publish(ctx, k.predsTopic, []byte(ev.ID), ev); err != nil {
		return fmt.Errorf("publish prediction: %w", err)
	}
	return nil
}

func (k *KafkaArchive) QueryRows(context.Context, time.Time, time.Time, int) ([]models.MergedRow, error) {
	return nil, ErrQueryUnsupported
}

func (k *KafkaArchive) Close() error {
	if k.producer != nil {
		return k.producer.Close()
	}
	return nil
}

var _ domrepo.Archive = (*KafkaArchive)(nil)

// NopArchive drops everything.
type NopArchive struct{}

func (NopArchive) StoreRows(context.Context, []models.MergedRow) error           { return nil }
func (NopArchive) StorePrediction(context.Context, models.PredictionEvent) error { return nil }
func (NopArchive) QueryRows(context.Context, time.Time, time.Time, int) ([]models.MergedRow, error) {
	return nil, ErrQueryUnsupported
}
func (NopArchive) Close() error { return nil }

var _ domrepo.Archive = NopArchive{}
