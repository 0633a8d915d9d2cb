package usecase

import (
	"time"

	"CoinCast/internal/domain/models"
	drepo "CoinCast/internal/domain/repository"
	"CoinCast/internal/services/features"
	"CoinCast/internal/services/series"
)

// MarketTable joins the two stream buffers on demand.
type MarketTable struct {
	candles *series.Buffer[models.CandleRecord]
	metas   *series.Buffer[models.MetaRecord]
	opts    series.AlignOptions
	metrics drepo.Metrics
}

func NewMarketTable(candles *series.Buffer[models.CandleRecord], metas *series.Buffer[models.MetaRecord],
	opts series.AlignOptions, metrics drepo.Metrics) *MarketTable {
	return &MarketTable{candles: candles, metas: metas, opts: opts, metrics: metrics}
}

// GetMergedTable snapshots both buffers and aligns them. It never fails; an
// empty slice means nothing aligned yet.
func (t *MarketTable) GetMergedTable() []models.MergedRow {
	start := time.Now()
	rows := series.Align(t.candles.Snapshot(), t.metas.Snapshot(), t.opts)
	t.metrics.RecordLatency("align", time.Since(start).Seconds())
	t.metrics.RecordAlignedRows(len(rows))
	return rows
}

// TableView is the display payload: trailing rows, headline values and indicators.
type TableView struct {
	Rows            []models.MergedRow        `json:"rows"`
	Indicators      []features.IndicatorPoint `json:"indicators"`
	Count           int                       `json:"count"`
	LatestClose     *float64                  `json:"latest_close"`
	LatestMarketCap *float64                  `json:"latest_market_cap"`
	LatestAt        *time.Time                `json:"latest_at,omitempty"`
	Prediction      *models.PredictionResult  `json:"prediction,omitempty"`
}

// View returns at most limit trailing rows. limit <= 0 means all rows.
func (t *MarketTable) View(limit int) TableView {
	rows := t.GetMergedTable()
	if limit > 0 && len(rows) > limit {
		rows = rows[len(rows)-limit:]
	}
	v := TableView{
		Rows:       rows,
		Indicators: features.Indicators(rows),
		Count:      len(rows),
	}
	if n := len(rows); n > 0 {
		last := rows[n-1]
		c, mc, at := last.Close, last.MarketCap, last.Timestamp
		v.LatestClose, v.LatestMarketCap, v.LatestAt = &c, &mc, &at
	}
	return v
}

// BufferLens reports the current buffer lengths.
func (t *MarketTable) BufferLens() (candles, metas int) {
	return t.candles.Len(), t.metas.Len()
}
