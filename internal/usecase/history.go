package usecase

import (
	"context"
	"fmt"
	"time"

	"CoinCast/internal/domain/models"
	drepo "CoinCast/internal/domain/repository"
)

// HistoryUseCase reads archived merged rows.
type HistoryUseCase struct {
	archive drepo.Archive
}

func NewHistoryUseCase(archive drepo.Archive) *HistoryUseCase {
	return &HistoryUseCase{archive: archive}
}

type GetHistoryParams struct {
	From  time.Time
	To    time.Time
	Limit int
}

type GetHistoryResult struct {
	From  time.Time          `json:"from"`
	To    time.Time          `json:"to"`
	Count int                `json:"count"`
	Rows  []models.MergedRow `json:"rows"`
}

func (uc *HistoryUseCase) GetHistory(ctx context.Context, p GetHistoryParams) (*GetHistoryResult, error) {
	if p.From.After(p.To) {
		return nil, fmt.Errorf("from must be <= to")
	}
	if p.Limit <= 0 {
		p.Limit = 1000
	}
	if p.Limit > 10000 {
		p.Limit = 10000
	}

	rows, err := uc.archive.QueryRows(ctx, p.From, p.To, p.Limit)
	if err != nil {
		return nil, fmt.Errorf("query rows: %w", err)
	}
	if len(rows) > p.Limit {
		rows = rows[:p.Limit]
	}

	return &GetHistoryResult{
		From:  p.From,
		To:    p.To,
		Count: len(rows),
		Rows:  rows,
	}, nil
}
