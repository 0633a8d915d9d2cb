package usecase

import (
	"testing"
	"time"

	"CoinCast/internal/domain/models"
	"CoinCast/internal/services/series"
	"CoinCast/pkg/metrics"
)

func filledTable(t *testing.T) *MarketTable {
	t.Helper()
	candles := series.NewBuffer[models.CandleRecord](60)
	metas := series.NewBuffer[models.MetaRecord](60)
	for i := 0; i < 10; i++ {
		candles.Append(candleAt(i, float64(100+i)))
	}
	metas.Append(models.MetaRecord{Timestamp: pollBase, MarketCap: 1e6, TotalVolume: 10})
	return NewMarketTable(candles, metas, series.DefaultAlignOptions(), metrics.Nop{})
}

func TestMarketTableJoinsWithinTolerance(t *testing.T) {
	rows := filledTable(t).GetMergedTable()
	if len(rows) != 3 {
		t.Fatalf("expected minutes 0..2, got %d rows", len(rows))
	}
	for i, r := range rows {
		if !r.Timestamp.Equal(pollBase.Add(time.Duration(i)*time.Minute)) || r.MarketCap != 1e6 {
			t.Fatalf("unexpected row %d: %+v", i, r)
		}
	}
}

func TestMarketTableViewLimitAndHeadline(t *testing.T) {
	tbl := filledTable(t)
	v := tbl.View(2)
	if v.Count != 2 || len(v.Indicators) != 2 {
		t.Fatalf("unexpected view %+v", v)
	}
	if *v.LatestClose != 102 || *v.LatestMarketCap != 1e6 || !v.LatestAt.Equal(pollBase.Add(2*time.Minute)) {
		t.Fatalf("unexpected headline %v %v %v", *v.LatestClose, *v.LatestMarketCap, v.LatestAt)
	}
	c, m := tbl.BufferLens()
	if c != 10 || m != 1 {
		t.Fatalf("unexpected buffer lens %d/%d", c, m)
	}
}

func TestMarketTableEmpty(t *testing.T) {
	tbl := NewMarketTable(series.NewBuffer[models.CandleRecord](5), series.NewBuffer[models.MetaRecord](5),
		series.DefaultAlignOptions(), metrics.Nop{})
	v := tbl.View(10)
	if v.Count != 0 || v.LatestClose != nil {
		t.Fatalf("expected empty view, got %+v", v)
	}
}
