package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"CoinCast/internal/domain/models"
	drepo "CoinCast/internal/domain/repository"
	mid "CoinCast/internal/middleware"
	"CoinCast/internal/services/series"
	applogger "CoinCast/pkg/logger"
)

// ErrPollPanic marks a poll that panicked in the fetch or the guard.
var ErrPollPanic = errors.New("poll panicked")

// FetchFunc fetches one batch of raw records.
type FetchFunc[T any] func(ctx context.Context) ([]T, error)

// RetryPolicy is the polling cadence. A failed fetch is retried on the next
// tick only; MaxConsecutiveFailures marks the poller degraded.
type RetryPolicy struct {
	Interval               time.Duration
	MaxConsecutiveFailures int
}

// DefaultRetryPolicy polls every minute and degrades after 5 failures in a row.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{Interval: time.Minute, MaxConsecutiveFailures: 5}
}

// PollerStatus is a point-in-time view of a poller.
type PollerStatus struct {
	Name                string    `json:"name"`
	Running             bool      `json:"running"`
	LastPoll            time.Time `json:"last_poll"`
	LastSuccess         time.Time `json:"last_success"`
	LastError           string    `json:"last_error,omitempty"`
	ConsecutiveFailures int       `json:"consecutive_failures"`
	Degraded            bool      `json:"degraded"`
	BufferLen           int       `json:"buffer_len"`
	BufferCap           int       `json:"buffer_cap"`
}

// StreamPoller periodically fetches one stream into its own buffer.
type StreamPoller[T mid.Timed] struct {
	name    string
	fetch   FetchFunc[T]
	buf     *series.Buffer[T]
	policy  RetryPolicy
	guard   *mid.RecordGuard[T]
	log     *applogger.Logger
	metrics drepo.Metrics

	mu       sync.Mutex
	status   PollerStatus
	cancel   context.CancelFunc
	done     chan struct{}
	tickHook func() // test hook, called after each poll
}

type PollerOption[T mid.Timed] func(*StreamPoller[T])

// WithGuard filters fetched records before they reach the buffer.
func WithGuard[T mid.Timed](g *mid.RecordGuard[T]) PollerOption[T] {
	return func(p *StreamPoller[T]) { p.guard = g }
}

// NewStreamPoller creates a poller writing into buf. buf must not be shared with another poller.
func NewStreamPoller[T mid.Timed](name string, fetch FetchFunc[T], buf *series.Buffer[T], policy RetryPolicy,
	log *applogger.Logger, metrics drepo.Metrics, opts ...PollerOption[T]) *StreamPoller[T] {
	if policy.Interval <= 0 {
		policy.Interval = DefaultRetryPolicy().Interval
	}
	if policy.MaxConsecutiveFailures <= 0 {
		policy.MaxConsecutiveFailures = DefaultRetryPolicy().MaxConsecutiveFailures
	}
	p := &StreamPoller[T]{
		name:    name,
		fetch:   fetch,
		buf:     buf,
		policy:  policy,
		log:     log.With("poller"),
		metrics: metrics,
		status:  PollerStatus{Name: name, BufferCap: buf.Cap()},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Name returns the stream name.
func (p *StreamPoller[T]) Name() string { return p.name }

// Start fetches immediately, then on every Interval until Stop or ctx is done.
func (p *StreamPoller[T]) Start(ctx context.Context) error {
	p.mu.Lock()
	if p.cancel != nil {
		p.mu.Unlock()
		return fmt.Errorf("poller %s already running", p.name)
	}
	ctx, cancel := context.WithCancel(ctx)
	p.cancel = cancel
	p.done = make(chan struct{})
	p.status.Running = true
	done := p.done
	p.mu.Unlock()

	p.log.Info("poller started",
		applogger.String("stream", p.name),
		applogger.Duration("interval_ms", p.policy.Interval),
		applogger.Int("capacity", p.buf.Cap()),
	)

	go p.loop(ctx, done)
	return nil
}

func (p *StreamPoller[T]) loop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(p.policy.Interval)
	defer ticker.Stop()

	for {
		_ = p.PollOnce(ctx)
		if p.tickHook != nil {
			p.tickHook()
		}
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
		}
	}
}

// Stop cancels the loop and waits for it to exit.
func (p *StreamPoller[T]) Stop() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.cancel = nil
	p.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	p.mu.Lock()
	p.status.Running = false
	p.mu.Unlock()
	p.log.Info("poller stopped", applogger.String("stream", p.name))
}

// PollOnce performs a single fetch-validate-append cycle.
func (p *StreamPoller[T]) PollOnce(ctx context.Context) (err error) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%w: %v", ErrPollPanic, r)
			p.onFailure(start, err)
		}
	}()

	records, err := p.fetch(ctx)
	p.metrics.RecordLatency("fetch_"+p.name, time.Since(start).Seconds())

	if err != nil {
		if ctx.Err() != nil {
			// shutdown in progress
			return err
		}
		p.onFailure(start, err)
		return err
	}

	accepted := records
	var rejected []error
	if p.guard != nil {
		accepted, rejected = p.guard.Filter(records)
	}
	for _, rec := range accepted {
		p.buf.Append(rec)
	}
	if len(rejected) > 0 {
		p.metrics.RecordPoll(p.name, "rejected")
		p.log.Warn("records rejected",
			applogger.String("stream", p.name),
			applogger.Int("rejected", len(rejected)),
			applogger.Error(rejected[0]),
		)
	}
	p.onSuccess(start, len(accepted))
	return nil
}

func (p *StreamPoller[T]) onSuccess(at time.Time, appended int) {
	n := p.buf.Len()
	p.mu.Lock()
	recovered := p.status.Degraded
	p.status.LastPoll = at
	p.status.LastSuccess = at
	p.status.LastError = ""
	p.status.ConsecutiveFailures = 0
	p.status.Degraded = false
	p.status.BufferLen = n
	p.mu.Unlock()

	p.metrics.RecordPoll(p.name, "ok")
	p.metrics.RecordBufferLen(p.name, n)
	if recovered {
		p.metrics.RecordDegraded(p.name, false)
		p.log.Info("poller recovered", applogger.String("stream", p.name))
	}
	p.log.Debug("poll ok",
		applogger.String("stream", p.name),
		applogger.Int("appended", appended),
		applogger.Int("buffer_len", n),
	)
}

func (p *StreamPoller[T]) onFailure(at time.Time, err error) {
	p.mu.Lock()
	p.status.LastPoll = at
	p.status.LastError = err.Error()
	p.status.ConsecutiveFailures++
	failures := p.status.ConsecutiveFailures
	escalate := !p.status.Degraded && failures >= p.policy.MaxConsecutiveFailures
	if escalate {
		p.status.Degraded = true
	}
	p.mu.Unlock()

	p.metrics.RecordPoll(p.name, "error")
	p.metrics.RecordError(errorKind(err))
	p.log.Warn("poll failed",
		applogger.String("stream", p.name),
		applogger.Int("consecutive_failures", failures),
		applogger.Error(err),
	)
	if escalate {
		p.metrics.RecordDegraded(p.name, true)
		p.log.Error("poller degraded",
			applogger.String("stream", p.name),
			applogger.Int("consecutive_failures", failures),
			applogger.Error(err),
		)
	}
}

// Status returns a copy of the current status.
func (p *StreamPoller[T]) Status() PollerStatus {
	p.mu.Lock()
	defer p.mu.Unlock()
	s := p.status
	s.BufferLen = p.buf.Len()
	return s
}

func errorKind(err error) string {
	switch {
	case errors.Is(err, models.ErrTransport):
		return "transport"
	case errors.Is(err, models.ErrDecode):
		return "decode"
	case errors.Is(err, ErrPollPanic):
		return "panic"
	default:
		return "fetch"
	}
}

// CandleFetcher adapts a MarketDataSource to the candle stream.
func CandleFetcher(src drepo.MarketDataSource) FetchFunc[models.CandleRecord] {
	return src.FetchCandles
}

// MetaFetcher adapts a MarketDataSource to the metadata stream.
func MetaFetcher(src drepo.MarketDataSource) FetchFunc[models.MetaRecord] {
	return func(ctx context.Context) ([]models.MetaRecord, error) {
		m, err := src.FetchMeta(ctx)
		if err != nil {
			return nil, err
		}
		return []models.MetaRecord{m}, nil
	}
}

// Poller is the type-erased lifecycle view used by the app and the status endpoint.
type Poller interface {
	Name() string
	Start(ctx context.Context) error
	Stop()
	Status() PollerStatus
}

var (
	_ Poller = (*StreamPoller[models.CandleRecord])(nil)
	_ Poller = (*StreamPoller[models.MetaRecord])(nil)
)
