package series

import (
	"fmt"
	"slices"
	"strings"
	"time"

	"CoinCast/internal/domain/models"
)

// FillPolicy decides what happens to a candle with no metadata inside the tolerance.
type FillPolicy string

const (
	// FillDrop drops the row.
	FillDrop FillPolicy = "drop"
	// FillForward uses the latest earlier metadata sample regardless of its age.
	FillForward FillPolicy = "forward"
)

// ParseFillPolicy maps a config string to a FillPolicy.
func ParseFillPolicy(s string) (FillPolicy, error) {
	switch FillPolicy(strings.ToLower(strings.TrimSpace(s))) {
	case "", FillDrop:
		return FillDrop, nil
	case FillForward:
		return FillForward, nil
	default:
		return "", fmt.Errorf("unknown fill policy %q", s)
	}
}

// AlignOptions configures Align.
type AlignOptions struct {
	Tolerance time.Duration
	Fill      FillPolicy
}

// DefaultAlignOptions returns the 2 minute backward join that drops misses.
func DefaultAlignOptions() AlignOptions {
	return AlignOptions{Tolerance: 2 * time.Minute, Fill: FillDrop}
}

type timed interface {
	Time() time.Time
}

// dedupeSorted keeps the last record seen for each timestamp and sorts ascending.
func dedupeSorted[T timed](in []T) []T {
	out := make([]T, 0, len(in))
	pos := make(map[int64]int, len(in))
	for _, rec := range in {
		key := rec.Time().UnixNano()
		if i, ok := pos[key]; ok {
			out[i] = rec
			continue
		}
		pos[key] = len(out)
		out = append(out, rec)
	}
	slices.SortStableFunc(out, func(a, b T) int {
		return a.Time().Compare(b.Time())
	})
	return out
}

// Align joins each candle with the most recent metadata at or before it
// (backward asof join). The result is ordered by strictly increasing timestamp
// and depends only on the inputs.
func Align(candles []models.CandleRecord, metas []models.MetaRecord, opts AlignOptions) []models.MergedRow {
	cs := dedupeSorted(candles)
	ms := dedupeSorted(metas)

	out := make([]models.MergedRow, 0, len(cs))
	if len(cs) == 0 || len(ms) == 0 {
		return out
	}

	j := -1 // index of the latest meta with ts <= candle ts
	for _, c := range cs {
		for j+1 < len(ms) && !ms[j+1].Timestamp.After(c.Timestamp) {
			j++
		}
		if j < 0 {
			continue
		}
		m := ms[j]
		if opts.Fill != FillForward && c.Timestamp.Sub(m.Timestamp) > opts.Tolerance {
			continue
		}
		out = append(out, models.MergedRow{
			Timestamp:   c.Timestamp,
			Open:        c.Open,
			High:        c.High,
			Low:         c.Low,
			Close:       c.Close,
			MarketCap:   m.MarketCap,
			TotalVolume: m.TotalVolume,
		})
	}
	return out
}
