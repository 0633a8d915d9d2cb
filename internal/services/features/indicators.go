package features

import (
	"math"

	"CoinCast/internal/domain/models"
)

// IndicatorPoint holds the display indicators for one merged row.
// Nil means the indicator is undefined at that point.
type IndicatorPoint struct {
	VWAP      *float64 `json:"vwap"`
	VPT       *float64 `json:"vpt"`
	LogReturn *float64 `json:"log_return"`
}

// ComputeLogReturns computes log returns r_t = ln(C_t / C_{t-1}).
// It returns a slice of length len(rows)-1, or nil if insufficient data.
func ComputeLogReturns(rows []models.MergedRow) []float64 {
	if len(rows) < 2 {
		return nil
	}
	out := make([]float64, 0, len(rows)-1)
	for i := 1; i < len(rows); i++ {
		prev := rows[i-1].Close
		cur := rows[i].Close
		if prev <= 0 || cur <= 0 {
			out = append(out, 0)
			continue
		}
		out = append(out, math.Log(cur/prev))
	}
	return out
}

// Indicators computes cumulative VWAP and volume price trend over the rows,
// using the 24h total volume as the volume series.
//
//	vwap_t = sum(typical_i * vol_i) / sum(vol_i), typical = (high+low+close)/3
//	vpt_t  = sum(vol_i * (close_i - close_{i-1}) / close_{i-1}), undefined at t=0
func Indicators(rows []models.MergedRow) []IndicatorPoint {
	out := make([]IndicatorPoint, len(rows))
	var pv, vol, vpt float64
	returns := ComputeLogReturns(rows)

	for i, r := range rows {
		typical := (r.High + r.Low + r.Close) / 3
		pv += typical * r.TotalVolume
		vol += r.TotalVolume
		if vol > 0 {
			out[i].VWAP = ptr(pv / vol)
		}

		if i == 0 {
			continue
		}
		if prev := rows[i-1].Close; prev != 0 {
			vpt += r.TotalVolume * (r.Close - prev) / prev
			out[i].VPT = ptr(vpt)
		}
		out[i].LogReturn = ptr(returns[i-1])
	}
	return out
}

func ptr(v float64) *float64 { return &v }
