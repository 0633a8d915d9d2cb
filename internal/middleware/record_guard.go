package middleware

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"time"

	"CoinCast/internal/domain/models"
	domrepo "CoinCast/internal/domain/repository"
)

// ErrInvalidRecord wraps every rejection reason.
var ErrInvalidRecord = errors.New("invalid record")

// Timed is any record carrying a timestamp.
type Timed interface {
	Time() time.Time
}

// Validator checks a single record.
type Validator[T any] func(T) error

// RecordGuard sits between a fetch and a buffer. It validates, optionally
// transforms, and optionally drops records older than the newest accepted one.
// A record at the newest timestamp passes so upstream revisions reach the
// buffer and the last one wins when aligned.
type RecordGuard[T Timed] struct {
	stream    string
	validate  Validator[T]
	transform func(T) T
	metrics   domrepo.Metrics
	maxSkew   time.Duration
	skipSeen  bool
	now       func() time.Time

	mu   sync.Mutex
	last time.Time // newest accepted timestamp
}

type GuardOption[T Timed] func(*RecordGuard[T])

// WithMaxFutureSkew rejects records stamped further than d in the future.
func WithMaxFutureSkew[T Timed](d time.Duration) GuardOption[T] {
	return func(g *RecordGuard[T]) { g.maxSkew = d }
}

// WithSkipSeen drops records whose timestamp is older than the newest accepted one.
func WithSkipSeen[T Timed](on bool) GuardOption[T] {
	return func(g *RecordGuard[T]) { g.skipSeen = on }
}

// WithTransform applies fn before validation.
func WithTransform[T Timed](fn func(T) T) GuardOption[T] {
	return func(g *RecordGuard[T]) { g.transform = fn }
}

// WithClock overrides time.Now.
func WithClock[T Timed](now func() time.Time) GuardOption[T] {
	return func(g *RecordGuard[T]) { g.now = now }
}

// NewRecordGuard creates a guard for one stream.
func NewRecordGuard[T Timed](stream string, validate Validator[T], metrics domrepo.Metrics, opts ...GuardOption[T]) *RecordGuard[T] {
	g := &RecordGuard[T]{
		stream:   stream,
		validate: validate,
		metrics:  metrics,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Filter returns the accepted records in input order and the rejection reasons.
func (g *RecordGuard[T]) Filter(records []T) ([]T, []error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	accepted := make([]T, 0, len(records))
	var rejected []error
	for _, rec := range records {
		if g.transform != nil {
			rec = g.transform(rec)
		}
		if err := g.check(rec); err != nil {
			g.metrics.RecordError("guard_" + g.stream)
			rejected = append(rejected, err)
			continue
		}
		ts := rec.Time()
		if g.skipSeen && ts.Before(g.last) {
			continue
		}
		if ts.After(g.last) {
			g.last = ts
		}
		accepted = append(accepted, rec)
	}
	return accepted, rejected
}

func (g *RecordGuard[T]) check(rec T) error {
	ts := rec.Time()
	if ts.IsZero() || ts.Unix() <= 0 {
		return fmt.Errorf("%w: timestamp missing", ErrInvalidRecord)
	}
	if g.maxSkew > 0 && ts.Sub(g.now()) > g.maxSkew {
		return fmt.Errorf("%w: timestamp %s is in the future", ErrInvalidRecord, ts.Format(time.RFC3339))
	}
	if g.validate != nil {
		if err := g.validate(rec); err != nil {
			return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
		}
	}
	return nil
}

func checkValue(name string, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return fmt.Errorf("%s is not finite", name)
	}
	if v < 0 {
		return fmt.Errorf("%s is negative", name)
	}
	return nil
}

// ValidateCandle rejects non-finite or negative prices and inverted ranges.
func ValidateCandle(c models.CandleRecord) error {
	for _, f := range []struct {
		name string
		v    float64
	}{{"open", c.Open}, {"high", c.High}, {"low", c.Low}, {"close", c.Close}} {
		if err := checkValue(f.name, f.v); err != nil {
			return err
		}
	}
	if c.High < c.Low {
		return fmt.Errorf("high %v below low %v", c.High, c.Low)
	}
	return nil
}

// ValidateMeta rejects non-finite or negative market cap and volume.
func ValidateMeta(m models.MetaRecord) error {
	if err := checkValue("market_cap", m.MarketCap); err != nil {
		return err
	}
	return checkValue("total_volume", m.TotalVolume)
}

// CandleToUTC normalizes a candle timestamp to UTC.
func CandleToUTC(c models.CandleRecord) models.CandleRecord {
	c.Timestamp = c.Timestamp.UTC()
	return c
}

// MetaToUTC normalizes a meta timestamp to UTC.
func MetaToUTC(m models.MetaRecord) models.MetaRecord {
	m.Timestamp = m.Timestamp.UTC()
	return m
}
