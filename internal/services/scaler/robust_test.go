package scaler

import (
	"bytes"
	"errors"
	"math"
	"path/filepath"
	"sort"
	"testing"

	"CoinCast/internal/domain/models"
)

func sampleTensor() models.FeatureTensor {
	// 2 windows x 5 steps x 2 features
	t := models.NewFeatureTensor(2, 5, 2)
	vals := []float64{3, 9, 1, 7, 4, 2, 8, 6, 5, 10}
	for b := 0; b < 2; b++ {
		for s := 0; s < 5; s++ {
			i := b*5 + s
			t.Set(b, s, 0, vals[i])
			t.Set(b, s, 1, 100) // constant column
		}
	}
	return t
}

// percentile computed independently with the textbook (n-1)p rank formula.
func percentile(values []float64, p float64) float64 {
	v := append([]float64(nil), values...)
	sort.Float64s(v)
	rank := p * float64(len(v)-1)
	below := math.Floor(rank)
	w := rank - below
	if int(below)+1 >= len(v) {
		return v[int(below)]
	}
	return v[int(below)]*(1-w) + v[int(below)+1]*w
}

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestFitMatchesIndependentMedianAndIQR(t *testing.T) {
	x := sampleTensor()
	s := New([]string{"close", "market_cap"})
	if err := s.Fit(x); err != nil {
		t.Fatalf("fit: %v", err)
	}

	col := []float64{3, 9, 1, 7, 4, 2, 8, 6, 5, 10}
	median := percentile(col, 0.5)
	iqr := percentile(col, 0.75) - percentile(col, 0.25)
	if !approx(s.Center[0], median) || !approx(s.Scale[0], iqr) {
		t.Fatalf("feature 0: got center %v scale %v, want %v %v", s.Center[0], s.Scale[0], median, iqr)
	}
	if s.Center[1] != 100 || s.Scale[1] != 1 {
		t.Fatalf("constant feature should have center 100 scale 1, got %v %v", s.Center[1], s.Scale[1])
	}

	out, err := s.Transform(x)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	if b, st, f := out.Shape(); b != 2 || st != 5 || f != 2 {
		t.Fatalf("shape changed to (%d,%d,%d)", b, st, f)
	}
	for i, v := range x.Data {
		var want float64
		if i%2 == 0 {
			want = (v - median) / iqr
		} else {
			want = 0
		}
		if !approx(out.Data[i], want) {
			t.Fatalf("value %d: got %v want %v", i, out.Data[i], want)
		}
	}
}

func TestInverseTransformRoundTrip(t *testing.T) {
	x := sampleTensor()
	s := New(nil)
	if err := s.Fit(x); err != nil {
		t.Fatalf("fit: %v", err)
	}
	scaled, err := s.Transform(x)
	if err != nil {
		t.Fatalf("transform: %v", err)
	}
	back, err := s.InverseTransform(scaled)
	if err != nil {
		t.Fatalf("inverse: %v", err)
	}
	for i := range x.Data {
		if !approx(back.Data[i], x.Data[i]) {
			t.Fatalf("value %d: %v != %v", i, back.Data[i], x.Data[i])
		}
	}
}

func TestTransformErrors(t *testing.T) {
	if _, err := New(nil).Transform(sampleTensor()); !errors.Is(err, ErrScalerNotFitted) {
		t.Fatalf("expected ErrScalerNotFitted, got %v", err)
	}

	s := New(nil)
	if err := s.Fit(sampleTensor()); err != nil {
		t.Fatalf("fit: %v", err)
	}
	wrong := models.NewFeatureTensor(1, 48, 5)
	if _, err := s.Transform(wrong); !errors.Is(err, models.ErrScalerFeatureMismatch) {
		t.Fatalf("expected ErrScalerFeatureMismatch, got %v", err)
	}
}

func TestCheckFeatures(t *testing.T) {
	s := New([]string{"open", "close"})
	if err := s.Fit(sampleTensor()); err != nil {
		t.Fatalf("fit: %v", err)
	}
	if err := s.CheckFeatures([]string{"open", "close"}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := s.CheckFeatures([]string{"close", "open"}); !errors.Is(err, models.ErrScalerFeatureMismatch) {
		t.Fatalf("expected mismatch for reordered columns, got %v", err)
	}
	if err := s.CheckFeatures([]string{"open"}); !errors.Is(err, models.ErrScalerFeatureMismatch) {
		t.Fatalf("expected mismatch for wrong count, got %v", err)
	}
}

func TestSaveLoad(t *testing.T) {
	s := New([]string{"open", "close"})
	if err := s.Fit(sampleTensor()); err != nil {
		t.Fatalf("fit: %v", err)
	}
	var buf bytes.Buffer
	if err := s.Save(&buf); err != nil {
		t.Fatalf("save: %v", err)
	}
	loaded, err := Load(&buf)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if loaded.Center[0] != s.Center[0] || loaded.Scale[0] != s.Scale[0] || loaded.Features[1] != "close" {
		t.Fatalf("loaded scaler differs: %+v vs %+v", loaded, s)
	}

	path := filepath.Join(t.TempDir(), "scaler.json")
	if err := s.SaveFile(path); err != nil {
		t.Fatalf("save file: %v", err)
	}
	if _, err := LoadFile(path); err != nil {
		t.Fatalf("load file: %v", err)
	}
}

func TestLoadRejectsBadFiles(t *testing.T) {
	cases := []string{
		`not json`,
		`{"center":[1,2],"scale":[1]}`,
		`{"center":[1],"scale":[0]}`,
		`{"features":["a","b"],"center":[1],"scale":[1]}`,
	}
	for _, c := range cases {
		if _, err := Load(bytes.NewBufferString(c)); err == nil {
			t.Fatalf("expected error for %s", c)
		}
	}
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Fatalf("expected error for missing file")
	}
}

func TestQuantile(t *testing.T) {
	v := []float64{1, 2, 3, 4}
	if q := Quantile(v, 0.5); q != 2.5 {
		t.Fatalf("median of 1..4 should be 2.5, got %v", q)
	}
	if q := Quantile(v, 0.25); q != 1.75 {
		t.Fatalf("q25 of 1..4 should be 1.75, got %v", q)
	}
	if q := Quantile([]float64{7}, 0.75); q != 7 {
		t.Fatalf("single value quantile should be the value, got %v", q)
	}
}
