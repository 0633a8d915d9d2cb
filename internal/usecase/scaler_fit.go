package usecase

import (
	"context"
	"fmt"
	"time"

	drepo "CoinCast/internal/domain/repository"
	"CoinCast/internal/services/scaler"
	"CoinCast/internal/services/series"
)

type FitScalerParams struct {
	From         time.Time
	To           time.Time
	Limit        int
	WindowLength int
	Features     []string
}

type FitScalerResult struct {
	Scaler  *scaler.RobustScaler
	Rows    int
	Windows int
}

// FitScaler fits robust statistics on sliding windows of archived rows.
func FitScaler(ctx context.Context, archive drepo.Archive, p FitScalerParams) (*FitScalerResult, error) {
	rows, err := archive.QueryRows(ctx, p.From, p.To, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	tensor, err := series.SlidingWindows(rows, p.WindowLength, p.Features)
	if err != nil {
		return nil, fmt.Errorf("build windows: %w", err)
	}
	sc := scaler.New(p.Features)
	if err := sc.Fit(tensor); err != nil {
		return nil, fmt.Errorf("fit: %w", err)
	}
	return &FitScalerResult{Scaler: sc, Rows: len(rows), Windows: tensor.Batch}, nil
}
