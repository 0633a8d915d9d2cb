package series

import (
	"reflect"
	"testing"
	"time"

	"CoinCast/internal/domain/models"
)

var base = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

func minute(n int) time.Time { return base.Add(time.Duration(n) * time.Minute) }

func candlesAt(minutes ...int) []models.CandleRecord {
	out := make([]models.CandleRecord, 0, len(minutes))
	for _, m := range minutes {
		p := 100 + float64(m)
		out = append(out, models.CandleRecord{Timestamp: minute(m), Open: p, High: p + 1, Low: p - 1, Close: p + 0.5})
	}
	return out
}

func TestAlignScenarioSingleMeta(t *testing.T) {
	candles := candlesAt(0, 1, 2, 3, 4, 5, 6, 7, 8, 9)
	metas := []models.MetaRecord{{Timestamp: minute(0), MarketCap: 1000000, TotalVolume: 5}}

	rows := Align(candles, metas, DefaultAlignOptions())
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
	for i, r := range rows {
		if !r.Timestamp.Equal(minute(i)) {
			t.Fatalf("row %d: unexpected timestamp %v", i, r.Timestamp)
		}
		if r.MarketCap != 1000000 {
			t.Fatalf("row %d: unexpected market cap %v", i, r.MarketCap)
		}
		if r.Close != candles[i].Close {
			t.Fatalf("row %d: close not carried", i)
		}
	}
}

func TestAlignDeterministic(t *testing.T) {
	candles := candlesAt(5, 1, 3, 3, 2, 8)
	metas := []models.MetaRecord{
		{Timestamp: minute(2), MarketCap: 2},
		{Timestamp: minute(0), MarketCap: 1},
		{Timestamp: minute(7), MarketCap: 3},
	}
	first := Align(candles, metas, DefaultAlignOptions())
	for i := 0; i < 10; i++ {
		if got := Align(candles, metas, DefaultAlignOptions()); !reflect.DeepEqual(first, got) {
			t.Fatalf("run %d differs: %v vs %v", i, first, got)
		}
	}
}

func TestAlignStrictlyIncreasingNoDuplicates(t *testing.T) {
	candles := append(candlesAt(4, 2, 2, 0, 1, 4, 3), candlesAt(1)...)
	metas := []models.MetaRecord{
		{Timestamp: minute(0), MarketCap: 1},
		{Timestamp: minute(0), MarketCap: 9},
		{Timestamp: minute(3), MarketCap: 2},
	}
	rows := Align(candles, metas, DefaultAlignOptions())
	if len(rows) == 0 {
		t.Fatalf("expected rows")
	}
	for i := 1; i < len(rows); i++ {
		if !rows[i].Timestamp.After(rows[i-1].Timestamp) {
			t.Fatalf("rows not strictly increasing at %d: %v then %v", i, rows[i-1].Timestamp, rows[i].Timestamp)
		}
	}
	// duplicate meta at minute 0 keeps the last one seen
	if rows[0].MarketCap != 9 {
		t.Fatalf("expected last-seen meta to win, got %v", rows[0].MarketCap)
	}
}

func TestAlignDedupeKeepsLastCandle(t *testing.T) {
	candles := []models.CandleRecord{
		{Timestamp: minute(0), Close: 1},
		{Timestamp: minute(0), Close: 2},
	}
	metas := []models.MetaRecord{{Timestamp: minute(0), MarketCap: 1}}
	rows := Align(candles, metas, DefaultAlignOptions())
	if len(rows) != 1 || rows[0].Close != 2 {
		t.Fatalf("expected single row with close 2, got %v", rows)
	}
}

func TestAlignZeroToleranceWithoutExactMatch(t *testing.T) {
	candles := candlesAt(1, 2, 3)
	metas := []models.MetaRecord{
		{Timestamp: minute(0).Add(30 * time.Second), MarketCap: 1},
		{Timestamp: minute(2).Add(10 * time.Second), MarketCap: 2},
	}
	rows := Align(candles, metas, AlignOptions{Tolerance: 0, Fill: FillDrop})
	if len(rows) != 0 {
		t.Fatalf("expected empty result, got %v", rows)
	}
}

func TestAlignZeroToleranceExactMatch(t *testing.T) {
	candles := candlesAt(1, 2)
	metas := []models.MetaRecord{{Timestamp: minute(2), MarketCap: 7}}
	rows := Align(candles, metas, AlignOptions{Tolerance: 0})
	if len(rows) != 1 || !rows[0].Timestamp.Equal(minute(2)) {
		t.Fatalf("expected exact match row, got %v", rows)
	}
}

func TestAlignEmptyInputs(t *testing.T) {
	if rows := Align(nil, nil, DefaultAlignOptions()); rows == nil || len(rows) != 0 {
		t.Fatalf("expected empty non-nil result, got %#v", rows)
	}
	if rows := Align(candlesAt(1), nil, DefaultAlignOptions()); len(rows) != 0 {
		t.Fatalf("expected empty result without metas")
	}
	if rows := Align(nil, []models.MetaRecord{{Timestamp: minute(0)}}, DefaultAlignOptions()); len(rows) != 0 {
		t.Fatalf("expected empty result without candles")
	}
}

func TestAlignNeverLooksForward(t *testing.T) {
	candles := candlesAt(0)
	metas := []models.MetaRecord{{Timestamp: minute(0).Add(time.Second), MarketCap: 1}}
	if rows := Align(candles, metas, DefaultAlignOptions()); len(rows) != 0 {
		t.Fatalf("meta after candle must not match, got %v", rows)
	}
}

func TestAlignUsesMostRecentMeta(t *testing.T) {
	candles := candlesAt(5)
	metas := []models.MetaRecord{
		{Timestamp: minute(3), MarketCap: 1},
		{Timestamp: minute(4), MarketCap: 2},
	}
	rows := Align(candles, metas, DefaultAlignOptions())
	if len(rows) != 1 || rows[0].MarketCap != 2 {
		t.Fatalf("expected most recent meta, got %v", rows)
	}
}

func TestAlignForwardFill(t *testing.T) {
	candles := candlesAt(0, 1, 5, 9)
	metas := []models.MetaRecord{{Timestamp: minute(1), MarketCap: 3}}
	rows := Align(candles, metas, AlignOptions{Tolerance: 2 * time.Minute, Fill: FillForward})
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows (minute 0 has no prior meta), got %d", len(rows))
	}
	for _, r := range rows {
		if r.MarketCap != 3 {
			t.Fatalf("expected forward-filled market cap, got %v", r.MarketCap)
		}
	}
}

func TestParseFillPolicy(t *testing.T) {
	cases := map[string]FillPolicy{"": FillDrop, "drop": FillDrop, "Forward": FillForward}
	for in, want := range cases {
		got, err := ParseFillPolicy(in)
		if err != nil || got != want {
			t.Fatalf("%q: got %v, %v", in, got, err)
		}
	}
	if _, err := ParseFillPolicy("nearest"); err == nil {
		t.Fatalf("expected error for unknown policy")
	}
}
