package repository

import (
	"context"
	"errors"
	"testing"

	"CoinCast/internal/domain/models"
	pkgkafka "CoinCast/pkg/kafka"
)

type sent struct {
	topic string
	key   string
	value interface{}
}

type fakePublisher struct {
	out    []sent
	err    error
	closed bool
}

func (f *fakePublisher) PublishBatch(_ context.Context, topic string, msgs []pkgkafka.Message) error {
	if f.err != nil {
		return f.err
	}
	for _, m := range msgs {
		f.out = append(f.out, sent{topic: topic, key: string(m.Key), value: m.Value})
	}
	return nil
}

func (f *fakePublisher) Publish(ctx context.Context, topic string, key []byte, value interface{}) error {
	return f.PublishBatch(ctx, topic, []pkgkafka.Message{{Key: key, Value: value}})
}

func (f *fakePublisher) Close() error {
	f.closed = true
	return nil
}

func TestKafkaArchivePublishes(t *testing.T) {
	p := &fakePublisher{}
	a := NewKafkaArchive(p, "coincast.rows", "coincast.predictions")
	ctx := context.Background()

	if err := a.StoreRows(ctx, []models.MergedRow{rowAt(0, 1), rowAt(30, 2)}); err != nil {
		t.Fatalf("store rows: %v", err)
	}
	if err := a.StorePrediction(ctx, models.PredictionEvent{ID: "id-1", Value: 1}); err != nil {
		t.Fatalf("store prediction: %v", err)
	}
	if len(p.out) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(p.out))
	}
	if p.out[0].topic != "coincast.rows" || p.out[0].key != "1748779200000" {
		t.Fatalf("unexpected row message %+v", p.out[0])
	}
	if p.out[2].topic != "coincast.predictions" || p.out[2].key != "id-1" {
		t.Fatalf("unexpected prediction message %+v", p.out[2])
	}

	if _, err := a.QueryRows(ctx, archiveBase, archiveBase, 1); !errors.Is(err, ErrQueryUnsupported) {
		t.Fatalf("expected unsupported query, got %v", err)
	}
	_ = a.Close()
	if !p.closed {
		t.Fatalf("producer not closed")
	}
}

func TestKafkaArchiveWrapsErrors(t *testing.T) {
	boom := errors.New("broker down")
	a := NewKafkaArchive(&fakePublisher{err: boom}, "r", "p")
	if err := a.StoreRows(context.Background(), []models.MergedRow{rowAt(0, 1)}); !errors.Is(err, boom) {
		t.Fatalf("expected wrapped error, got %v", err)
	}
	if err := a.StoreRows(context.Background(), nil); err != nil {
		t.Fatalf("empty batch should be a no-op: %v", err)
	}
}
