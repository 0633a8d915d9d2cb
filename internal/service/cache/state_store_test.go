package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"CoinCast/internal/domain/models"
	pkgcache "CoinCast/pkg/cache"
)

func TestStateStoreRoundTrip(t *testing.T) {
	mc := pkgcache.NewMemoryCache()
	defer mc.Close()
	s := NewStateStore(mc, "prediction_state", time.Hour)
	ctx := context.Background()

	if _, found, err := s.Load(ctx); err != nil || found {
		t.Fatalf("empty store: found=%v err=%v", found, err)
	}

	v := 64123.5
	at := time.Date(2025, 6, 1, 12, 30, 0, 0, time.UTC)
	if err := s.Save(ctx, models.PredictionState{PredictedValue: &v, ComputedAt: at}); err != nil {
		t.Fatalf("save: %v", err)
	}
	st, found, err := s.Load(ctx)
	if err != nil || !found {
		t.Fatalf("load: found=%v err=%v", found, err)
	}
	if *st.PredictedValue != v || !st.ComputedAt.Equal(at) {
		t.Fatalf("unexpected state %+v", st)
	}
}

func TestStateStoreSkipsEmptyState(t *testing.T) {
	mc := pkgcache.NewMemoryCache()
	defer mc.Close()
	s := NewStateStore(mc, "k", 0)
	if err := s.Save(context.Background(), models.PredictionState{}); err != nil {
		t.Fatalf("save: %v", err)
	}
	if mc.Len() != 0 {
		t.Fatalf("empty state should not be written")
	}
}

type brokenCache struct{ pkgcache.Service }

func (brokenCache) Get(context.Context, string, interface{}) error { return errors.New("conn refused") }

func TestStateStoreWrapsBackendErrors(t *testing.T) {
	s := NewStateStore(brokenCache{}, "k", 0)
	if _, _, err := s.Load(context.Background()); err == nil {
		t.Fatalf("expected error")
	}
}
