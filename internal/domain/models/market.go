package models

import "time"

// Feature column names understood by the window assembler.
const (
	FeatureOpen        = "open"
	FeatureHigh        = "high"
	FeatureLow         = "low"
	FeatureClose       = "close"
	FeatureMarketCap   = "market_cap"
	FeatureTotalVolume = "total_volume"
)

// CandleRecord is one OHLC interval from the candle stream.
type CandleRecord struct {
	Timestamp time.Time `json:"timestamp"`
	Open      float64   `json:"open"`
	High      float64   `json:"high"`
	Low       float64   `json:"low"`
	Close     float64   `json:"close"`
}

// Time returns the record timestamp.
func (c CandleRecord) Time() time.Time { return c.Timestamp }

// Feature returns the named column value.
func (c CandleRecord) Feature(name string) (float64, bool) {
	switch name {
	case FeatureOpen:
		return c.Open, true
	case FeatureHigh:
		return c.High, true
	case FeatureLow:
		return c.Low, true
	case FeatureClose:
		return c.Close, true
	default:
		return 0, false
	}
}

// MetaRecord is one market metadata sample (market cap and 24h volume).
type MetaRecord struct {
	Timestamp   time.Time `json:"timestamp"`
	MarketCap   float64   `json:"market_cap"`
	TotalVolume float64   `json:"total_volume"`
}

// Time returns the record timestamp.
func (m MetaRecord) Time() time.Time { return m.Timestamp }

// MergedRow is a candle joined with the metadata sample in effect at its timestamp.
type MergedRow struct {
	Timestamp   time.Time `json:"timestamp"`
	Open        float64   `json:"open"`
	High        float64   `json:"high"`
	Low         float64   `json:"low"`
	Close       float64   `json:"close"`
	MarketCap   float64   `json:"market_cap"`
	TotalVolume float64   `json:"total_volume"`
}

// Time returns the row timestamp.
func (r MergedRow) Time() time.Time { return r.Timestamp }

// Feature returns the named column value.
func (r MergedRow) Feature(name string) (float64, bool) {
	switch name {
	case FeatureOpen:
		return r.Open, true
	case FeatureHigh:
		return r.High, true
	case FeatureLow:
		return r.Low, true
	case FeatureClose:
		return r.Close, true
	case FeatureMarketCap:
		return r.MarketCap, true
	case FeatureTotalVolume:
		return r.TotalVolume, true
	default:
		return 0, false
	}
}

// PredictionEvent is the archived outcome of one successful inference.
type PredictionEvent struct {
	ID         string    `json:"id"`
	ComputedAt time.Time `json:"computed_at"`
	Value      float64   `json:"value"`
	WindowEnd  time.Time `json:"window_end"`
	Rows       int       `json:"rows"`
}
