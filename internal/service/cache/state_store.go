package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"CoinCast/internal/domain/models"
	drepo "CoinCast/internal/domain/repository"
	pkgcache "CoinCast/pkg/cache"
)

// StateStore keeps the prediction state under a single cache key.
type StateStore struct {
	cache pkgcache.Service
	key   string
	ttl   time.Duration
}

// NewStateStore stores under key; ttl 0 keeps the entry until overwritten.
func NewStateStore(c pkgcache.Service, key string, ttl time.Duration) *StateStore {
	return &StateStore{cache: c, key: key, ttl: ttl}
}

func (s *StateStore) Load(ctx context.Context) (models.PredictionState, bool, error) {
	var st models.PredictionState
	if err := s.cache.Get(ctx, s.key, &st); err != nil {
		if errors.Is(err, pkgcache.ErrCacheMiss) {
			return models.PredictionState{}, false, nil
		}
		return models.PredictionState{}, false, fmt.Errorf("load prediction state: %w", err)
	}
	return st, st.HasValue(), nil
}

func (s *StateStore) Save(ctx context.Context, st models.PredictionState) error {
	if !st.HasValue() {
		return nil
	}
	if err := s.cache.Set(ctx, s.key, st, s.ttl); err != nil {
		return fmt.Errorf("save prediction state: %w", err)
	}
	return nil
}

var _ drepo.StateStore = (*StateStore)(nil)
