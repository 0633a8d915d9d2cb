package usecase

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"time"

	"CoinCast/internal/domain/models"
	drepo "CoinCast/internal/domain/repository"
	"CoinCast/internal/services/scaler"
	"CoinCast/internal/services/series"
	applogger "CoinCast/pkg/logger"

	"github.com/google/uuid"
)

// RowSource yields the current aligned table.
type RowSource interface {
	GetMergedTable() []models.MergedRow
}

type OrchestratorConfig struct {
	WindowLength   int
	Features       []string
	Interval       time.Duration
	ArchiveTimeout time.Duration
}

// PredictionStatus is what /api/status reports about the prediction path.
type PredictionStatus struct {
	Enabled     bool                   `json:"enabled"`
	Fresh       bool                   `json:"fresh"`
	State       models.PredictionState `json:"state"`
	LastAttempt time.Time              `json:"last_attempt,omitempty"`
	LastError   string                 `json:"last_error,omitempty"`
}

// PredictionOrchestrator owns the prediction state. A value is Fresh for
// Interval after it was computed; a Stale value is recomputed only on trigger.
type PredictionOrchestrator struct {
	rows    RowSource
	model   drepo.Model
	scaler  *scaler.RobustScaler
	store   drepo.StateStore
	archive drepo.Archive
	cfg     OrchestratorConfig
	log     *applogger.Logger
	metrics drepo.Metrics
	now     func() time.Time

	runMu sync.Mutex // one pipeline run at a time

	mu          sync.RWMutex
	state       models.PredictionState
	lastAttempt time.Time
	lastErr     string
}

type OrchestratorOption func(*PredictionOrchestrator)

// WithStateStore persists the state after every successful inference.
func WithStateStore(s drepo.StateStore) OrchestratorOption {
	return func(o *PredictionOrchestrator) { o.store = s }
}

// WithArchive records the window rows and the prediction event.
func WithArchive(a drepo.Archive) OrchestratorOption {
	return func(o *PredictionOrchestrator) { o.archive = a }
}

// WithNow overrides the clock.
func WithNow(now func() time.Time) OrchestratorOption {
	return func(o *PredictionOrchestrator) { o.now = now }
}

// NewPredictionOrchestrator wires the pipeline. A nil scaler or model disables
// prediction; polling and the table stay available.
func NewPredictionOrchestrator(rows RowSource, model drepo.Model, sc *scaler.RobustScaler, cfg OrchestratorConfig,
	log *applogger.Logger, metrics drepo.Metrics, opts ...OrchestratorOption) *PredictionOrchestrator {
	if cfg.Interval <= 0 {
		cfg.Interval = 30 * time.Minute
	}
	if cfg.ArchiveTimeout <= 0 {
		cfg.ArchiveTimeout = 5 * time.Second
	}
	cfg.Features = slices.Clone(cfg.Features)
	o := &PredictionOrchestrator{
		rows:    rows,
		model:   model,
		scaler:  sc,
		cfg:     cfg,
		log:     log.With("prediction"),
		metrics: metrics,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Enabled reports whether the prediction path can run.
func (o *PredictionOrchestrator) Enabled() bool {
	return o.model != nil && o.scaler != nil && o.scaler.Fitted()
}

// Restore loads a previously saved state. Missing or failing stores leave the state empty.
func (o *PredictionOrchestrator) Restore(ctx context.Context) {
	if o.store == nil {
		return
	}
	st, found, err := o.store.Load(ctx)
	if err != nil {
		o.log.Warn("prediction state not restored", applogger.Error(err))
		return
	}
	if !found || !st.HasValue() {
		return
	}
	o.mu.Lock()
	o.state = st.Clone()
	o.mu.Unlock()
	o.log.Info("prediction state restored",
		applogger.Float64("value", *st.PredictedValue),
		applogger.Time("computed_at", st.ComputedAt),
	)
}

// State returns a copy of the current state.
func (o *PredictionOrchestrator) State() models.PredictionState {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state.Clone()
}

// Fresh reports whether the cached value is still valid at now.
func (o *PredictionOrchestrator) Fresh(now time.Time) bool {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return o.state.FreshAt(now, o.cfg.Interval)
}

// Status summarizes the prediction path.
func (o *PredictionOrchestrator) Status() PredictionStatus {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return PredictionStatus{
		Enabled:     o.Enabled(),
		Fresh:       o.state.FreshAt(o.now(), o.cfg.Interval),
		State:       o.state.Clone(),
		LastAttempt: o.lastAttempt,
		LastError:   o.lastErr,
	}
}

// GetPrediction returns the cached value when Fresh. When Stale it recomputes
// only if trigger is set; any failure leaves the state untouched and is returned.
func (o *PredictionOrchestrator) GetPrediction(ctx context.Context, trigger bool) (models.PredictionResult, error) {
	if res, done := o.cached(trigger); done {
		return res, nil
	}
	if !o.Enabled() {
		return o.result(false), models.ErrPredictionDisabled
	}

	o.runMu.Lock()
	defer o.runMu.Unlock()

	// a concurrent run may have refreshed the state while we waited
	if res, done := o.cached(false); done && res.Fresh {
		return res, nil
	}

	start := time.Now()
	value, window, err := o.run(ctx)
	o.metrics.RecordLatency("prediction_pipeline", time.Since(start).Seconds())

	o.mu.Lock()
	o.lastAttempt = o.now()
	if err != nil {
		o.lastErr = err.Error()
		o.mu.Unlock()
		o.metrics.RecordError("prediction")
		o.log.Warn("prediction failed", applogger.Error(err))
		return o.result(false), err
	}
	v := value
	o.state = models.PredictionState{PredictedValue: &v, ComputedAt: o.lastAttempt}
	o.lastErr = ""
	st := o.state.Clone()
	o.mu.Unlock()

	o.metrics.RecordPrediction(value)
	o.log.Info("prediction computed",
		applogger.Float64("value", value),
		applogger.Int("rows", len(window)),
	)
	o.persist(ctx, st, window)
	return models.PredictionResult{State: st, Fresh: true, Computed: true}, nil
}

// cached answers without running the pipeline when possible.
func (o *PredictionOrchestrator) cached(trigger bool) (models.PredictionResult, bool) {
	res := o.result(false)
	if res.Fresh || !trigger {
		return res, true
	}
	return res, false
}

func (o *PredictionOrchestrator) result(computed bool) models.PredictionResult {
	o.mu.RLock()
	defer o.mu.RUnlock()
	return models.PredictionResult{
		State:    o.state.Clone(),
		Fresh:    o.state.FreshAt(o.now(), o.cfg.Interval),
		Computed: computed,
	}
}

// run is align -> assemble -> shape check -> scale -> infer.
func (o *PredictionOrchestrator) run(ctx context.Context) (float64, []models.MergedRow, error) {
	rows := o.rows.GetMergedTable()
	if len(rows) == 0 {
		return 0, nil, models.ErrInsufficientData
	}

	tensor, err := series.Assemble(rows, o.cfg.WindowLength, o.cfg.Features)
	if err != nil {
		return 0, nil, fmt.Errorf("assemble window: %w", err)
	}
	steps, feats := o.model.InputShape()
	if err := series.CheckShape(tensor, steps, feats); err != nil {
		return 0, nil, err
	}
	if err := o.scaler.CheckFeatures(o.cfg.Features); err != nil {
		return 0, nil, err
	}
	scaled, err := o.scaler.Transform(tensor)
	if err != nil {
		return 0, nil, fmt.Errorf("scale window: %w", err)
	}
	value, err := o.model.Predict(ctx, scaled)
	if err != nil {
		return 0, nil, err
	}

	window := rows
	if len(window) > o.cfg.WindowLength {
		window = window[len(window)-o.cfg.WindowLength:]
	}
	return value, window, nil
}

// persist saves the state and archives the window. Failures are only logged.
func (o *PredictionOrchestrator) persist(ctx context.Context, st models.PredictionState, window []models.MergedRow) {
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), o.cfg.ArchiveTimeout)
	defer cancel()

	if o.store != nil {
		if err := o.store.Save(ctx, st); err != nil {
			o.metrics.RecordError("state_store")
			o.log.Warn("prediction state not saved", applogger.Error(err))
		}
	}
	if o.archive == nil {
		return
	}
	if err := o.archive.StoreRows(ctx, window); err != nil {
		o.metrics.RecordError("archive_rows")
		o.log.Warn("archive rows failed", applogger.Error(err), applogger.Int("rows", len(window)))
	}
	ev := models.PredictionEvent{
		ID:         uuid.NewString(),
		ComputedAt: st.ComputedAt,
		Value:      *st.PredictedValue,
		WindowEnd:  window[len(window)-1].Timestamp,
		Rows:       len(window),
	}
	if err := o.archive.StorePrediction(ctx, ev); err != nil {
		o.metrics.RecordError("archive_prediction")
		o.log.Warn("archive prediction failed", applogger.Error(err), applogger.String("id", ev.ID))
	}
}
