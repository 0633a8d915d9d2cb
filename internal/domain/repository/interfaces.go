package repository

import (
	"context"
	"time"

	"CoinCast/internal/domain/models"
)

// MarketDataSource fetches raw market data from the upstream API.
type MarketDataSource interface {
	FetchCandles(ctx context.Context) ([]models.CandleRecord, error)
	FetchMeta(ctx context.Context) (models.MetaRecord, error)
}

// Model is the opaque inference collaborator.
type Model interface {
	Predict(ctx context.Context, t models.FeatureTensor) (float64, error)
	// InputShape returns the (steps, features) the model accepts.
	InputShape() (int, int)
}

// StateStore persists the prediction state across restarts.
type StateStore interface {
	Load(ctx context.Context) (models.PredictionState, bool, error)
	Save(ctx context.Context, s models.PredictionState) error
}

// Archive keeps aligned rows and prediction events for offline use.
type Archive interface {
	StoreRows(ctx context.Context, rows []models.MergedRow) error
	StorePrediction(ctx context.Context, ev models.PredictionEvent) error
	QueryRows(ctx context.Context, from, to time.Time, limit int) ([]models.MergedRow, error)
	Close() error
}

type Metrics interface {
	RecordPoll(stream, result string)
	RecordBufferLen(stream string, n int)
	RecordAlignedRows(n int)
	RecordError(kind string)
	RecordLatency(op string, seconds float64)
	RecordPrediction(value float64)
	RecordDegraded(stream string, degraded bool)
}
