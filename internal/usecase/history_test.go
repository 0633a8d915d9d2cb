package usecase

import (
	"context"
	"testing"
	"time"
)

func TestGetHistory(t *testing.T) {
	a := &memArchive{rows: mergedAt(5)}
	uc := NewHistoryUseCase(a)

	res, err := uc.GetHistory(context.Background(), GetHistoryParams{From: pollBase, To: pollBase.Add(time.Hour), Limit: 3})
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	if res.Count != 3 || len(res.Rows) != 3 {
		t.Fatalf("expected limit applied, got %d", res.Count)
	}

	if _, err := uc.GetHistory(context.Background(), GetHistoryParams{From: pollBase, To: pollBase.Add(-time.Hour)}); err == nil {
		t.Fatalf("expected range error")
	}
}
