package usecase

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"CoinCast/internal/domain/models"
	"CoinCast/internal/services/scaler"
	applogger "CoinCast/pkg/logger"
	"CoinCast/pkg/metrics"
)

var features2 = []string{models.FeatureClose, models.FeatureMarketCap}

type staticRows []models.MergedRow

func (s staticRows) GetMergedTable() []models.MergedRow { return s }

type fakeModel struct {
	steps, features int
	value           float64
	err             error
	calls           atomic.Int32
	last            models.FeatureTensor
	delay           time.Duration
}

func (m *fakeModel) Predict(_ context.Context, t models.FeatureTensor) (float64, error) {
	m.calls.Add(1)
	m.last = t
	if m.delay > 0 {
		time.Sleep(m.delay)
	}
	return m.value, m.err
}

func (m *fakeModel) InputShape() (int, int) { return m.steps, m.features }

type memStore struct {
	mu    sync.Mutex
	state *models.PredictionState
	err   error
}

func (s *memStore) Load(context.Context) (models.PredictionState, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state == nil {
		return models.PredictionState{}, false, s.err
	}
	return s.state.Clone(), true, s.err
}

func (s *memStore) Save(_ context.Context, st models.PredictionState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return s.err
	}
	c := st.Clone()
	s.state = &c
	return nil
}

type memArchive struct {
	mu     sync.Mutex
	rows   []models.MergedRow
	events []models.PredictionEvent
	err    error
}

func (a *memArchive) StoreRows(_ context.Context, rows []models.MergedRow) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.rows = append(a.rows, rows...)
	return a.err
}

func (a *memArchive) StorePrediction(_ context.Context, ev models.PredictionEvent) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.events = append(a.events, ev)
	return a.err
}

func (a *memArchive) QueryRows(context.Context, time.Time, time.Time, int) ([]models.MergedRow, error) {
	return a.rows, nil
}

func (a *memArchive) Close() error { return nil }

func mergedAt(n int) staticRows {
	rows := make(staticRows, n)
	for i := range rows {
		rows[i] = models.MergedRow{
			Timestamp: pollBase.Add(time.Duration(i) * 30 * time.Minute),
			Close:     100 + float64(i),
			MarketCap: 1e6,
		}
	}
	return rows
}

func fittedScaler(center, scale []float64) *scaler.RobustScaler {
	s := scaler.New(features2)
	s.Center, s.Scale = center, scale
	return s
}

type clock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *clock) now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *clock) advance(d time.Duration) {
	c.mu.Lock()
	c.t = c.t.Add(d)
	c.mu.Unlock()
}

func newOrchestrator(rows RowSource, m *fakeModel, c *clock, opts ...OrchestratorOption) *PredictionOrchestrator {
	opts = append(opts, WithNow(c.now))
	return NewPredictionOrchestrator(rows, m, fittedScaler([]float64{100, 1e6}, []float64{2, 1}),
		OrchestratorConfig{WindowLength: 4, Features: features2, Interval: 30 * time.Minute},
		applogger.Nop(), metrics.Nop{}, opts...)
}

func TestGetPredictionStaleWithoutTriggerDoesNothing(t *testing.T) {
	m := &fakeModel{steps: 4, features: 2, value: 42}
	o := newOrchestrator(mergedAt(3), m, &clock{t: pollBase})

	res, err := o.GetPrediction(context.Background(), false)
	if err != nil {
		t.Fatalf("unexpected error %v", err)
	}
	if res.State.HasValue() || res.Fresh || res.Computed || m.calls.Load() != 0 {
		t.Fatalf("expected untouched stale state, got %+v (calls %d)", res, m.calls.Load())
	}
}

func TestGetPredictionComputesAndCaches(t *testing.T) {
	m := &fakeModel{steps: 4, features: 2, value: 42.5}
	c := &clock{t: pollBase}
	o := newOrchestrator(mergedAt(3), m, c)

	res, err := o.GetPrediction(context.Background(), true)
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if !res.Computed || !res.Fresh || *res.State.PredictedValue != 42.5 || !res.State.ComputedAt.Equal(pollBase) {
		t.Fatalf("unexpected result %+v", res)
	}

	// one padded row then three scaled rows: (close-100)/2, (cap-1e6)/1
	want := []float64{-50, -1e6, 0, 0, 0.5, 0, 1, 0}
	for i, v := range want {
		if m.last.Data[i] != v {
			t.Fatalf("scaled tensor %v, want %v", m.last.Data, want)
		}
	}

	c.advance(10 * time.Minute)
	again, err := o.GetPrediction(context.Background(), true)
	if err != nil {
		t.Fatalf("cached read: %v", err)
	}
	if again.Computed || *again.State.PredictedValue != 42.5 || !again.State.ComputedAt.Equal(res.State.ComputedAt) {
		t.Fatalf("expected cached state, got %+v", again)
	}
	if m.calls.Load() != 1 {
		t.Fatalf("model called %d times within interval", m.calls.Load())
	}
}

func TestGetPredictionRecomputesAfterInterval(t *testing.T) {
	m := &fakeModel{steps: 4, features: 2, value: 1}
	c := &clock{t: pollBase}
	o := newOrchestrator(mergedAt(5), m, c)

	if _, err := o.GetPrediction(context.Background(), true); err != nil {
		t.Fatalf("predict: %v", err)
	}
	c.advance(31 * time.Minute)
	if o.Fresh(c.now()) {
		t.Fatalf("state should be stale after the interval")
	}
	stale, _ := o.GetPrediction(context.Background(), false)
	if stale.Fresh || stale.Computed || *stale.State.PredictedValue != 1 {
		t.Fatalf("expected stale cached value, got %+v", stale)
	}

	m.value = 2
	res, err := o.GetPrediction(context.Background(), true)
	if err != nil {
		t.Fatalf("recompute: %v", err)
	}
	if *res.State.PredictedValue != 2 || !res.State.ComputedAt.Equal(c.now()) || m.calls.Load() != 2 {
		t.Fatalf("expected recompute, got %+v", res)
	}
}

func TestGetPredictionFailuresKeepState(t *testing.T) {
	cases := map[string]struct {
		rows  RowSource
		model *fakeModel
		want  error
	}{
		"no aligned rows": {staticRows{}, &fakeModel{steps: 4, features: 2}, models.ErrInsufficientData},
		"model shape":     {mergedAt(3), &fakeModel{steps: 48, features: 2}, models.ErrShapeMismatch},
		"inference":       {mergedAt(3), &fakeModel{steps: 4, features: 2, err: models.ErrModelInference}, models.ErrModelInference},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			o := newOrchestrator(tc.rows, tc.model, &clock{t: pollBase})
			res, err := o.GetPrediction(context.Background(), true)
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
			if res.State.HasValue() || o.State().HasValue() {
				t.Fatalf("state changed on failure")
			}
			if o.Status().LastError == "" {
				t.Fatalf("last error not recorded")
			}
		})
	}
}

func TestGetPredictionScalerMismatch(t *testing.T) {
	m := &fakeModel{steps: 4, features: 2}
	sc := scaler.New(nil)
	sc.Center, sc.Scale = []float64{1, 2, 3}, []float64{1, 1, 1}
	o := NewPredictionOrchestrator(mergedAt(3), m, sc,
		OrchestratorConfig{WindowLength: 4, Features: features2}, applogger.Nop(), metrics.Nop{})

	if _, err := o.GetPrediction(context.Background(), true); !errors.Is(err, models.ErrScalerFeatureMismatch) {
		t.Fatalf("expected scaler mismatch, got %v", err)
	}
	if m.calls.Load() != 0 {
		t.Fatalf("model must not be called after a scaler mismatch")
	}
}

func TestGetPredictionDisabledWithoutScaler(t *testing.T) {
	o := NewPredictionOrchestrator(mergedAt(3), &fakeModel{steps: 4, features: 2}, nil,
		OrchestratorConfig{WindowLength: 4, Features: features2}, applogger.Nop(), metrics.Nop{})
	if o.Enabled() {
		t.Fatalf("expected disabled")
	}
	if _, err := o.GetPrediction(context.Background(), true); !errors.Is(err, models.ErrPredictionDisabled) {
		t.Fatalf("expected disabled error, got %v", err)
	}
	if _, err := o.GetPrediction(context.Background(), false); err != nil {
		t.Fatalf("untriggered read should not fail: %v", err)
	}
}

func TestGetPredictionSerializesRuns(t *testing.T) {
	m := &fakeModel{steps: 4, features: 2, value: 7, delay: 50 * time.Millisecond}
	o := newOrchestrator(mergedAt(3), m, &clock{t: pollBase})

	var wg sync.WaitGroup
	for i := 0; i < 5; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := o.GetPrediction(context.Background(), true); err != nil {
				t.Errorf("predict: %v", err)
			}
		}()
	}
	wg.Wait()
	if m.calls.Load() != 1 {
		t.Fatalf("expected a single run, model called %d times", m.calls.Load())
	}
}

func TestPredictionPersistsAndRestores(t *testing.T) {
	store := &memStore{}
	archive := &memArchive{}
	m := &fakeModel{steps: 4, features: 2, value: 3.5}
	c := &clock{t: pollBase}
	o := newOrchestrator(mergedAt(6), m, c, WithStateStore(store), WithArchive(archive))

	if _, err := o.GetPrediction(context.Background(), true); err != nil {
		t.Fatalf("predict: %v", err)
	}
	if store.state == nil || *store.state.PredictedValue != 3.5 {
		t.Fatalf("state not saved: %+v", store.state)
	}
	if len(archive.rows) != 4 || len(archive.events) != 1 {
		t.Fatalf("expected 4 window rows and 1 event, got %d/%d", len(archive.rows), len(archive.events))
	}
	ev := archive.events[0]
	if ev.ID == "" || ev.Rows != 4 || !ev.WindowEnd.Equal(archive.rows[3].Timestamp) {
		t.Fatalf("unexpected event %+v", ev)
	}

	restored := newOrchestrator(mergedAt(6), &fakeModel{steps: 4, features: 2}, c, WithStateStore(store))
	restored.Restore(context.Background())
	if st := restored.State(); !st.HasValue() || *st.PredictedValue != 3.5 {
		t.Fatalf("state not restored: %+v", st)
	}
	if !restored.Fresh(c.now()) {
		t.Fatalf("restored state should still be fresh")
	}
}

func TestPredictionStoreFailuresAreNotFatal(t *testing.T) {
	store := &memStore{err: errors.New("redis down")}
	archive := &memArchive{err: errors.New("clickhouse down")}
	o := newOrchestrator(mergedAt(3), &fakeModel{steps: 4, features: 2, value: 1}, &clock{t: pollBase},
		WithStateStore(store), WithArchive(archive))

	o.Restore(context.Background())
	res, err := o.GetPrediction(context.Background(), true)
	if err != nil || !res.Computed {
		t.Fatalf("store failures must not fail the prediction: %v", err)
	}
}

func TestStateIsCopied(t *testing.T) {
	o := newOrchestrator(mergedAt(3), &fakeModel{steps: 4, features: 2, value: 9}, &clock{t: pollBase})
	if _, err := o.GetPrediction(context.Background(), true); err != nil {
		t.Fatalf("predict: %v", err)
	}
	st := o.State()
	*st.PredictedValue = -1
	if *o.State().PredictedValue != 9 {
		t.Fatalf("caller mutated cached state")
	}
}
