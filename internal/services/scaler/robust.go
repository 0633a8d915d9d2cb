package scaler

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"slices"

	"CoinCast/internal/domain/models"
)

// ErrScalerNotFitted is returned by Transform before Fit or Load.
var ErrScalerNotFitted = errors.New("scaler not fitted")

// RobustScaler centers each feature on its median and divides by its
// interquartile range. Statistics are computed over the tensor flattened to
// (batch*steps, features), so every time step of every window counts as one sample.
type RobustScaler struct {
	Features []string  `json:"features,omitempty"`
	Center   []float64 `json:"center"`
	Scale    []float64 `json:"scale"`
}

// New returns an unfitted scaler for the named feature columns.
func New(features []string) *RobustScaler {
	return &RobustScaler{Features: slices.Clone(features)}
}

// Fitted reports whether statistics are available.
func (s *RobustScaler) Fitted() bool {
	return s != nil && len(s.Center) > 0 && len(s.Center) == len(s.Scale)
}

// FeatureCount is the number of features the scaler was fitted on.
func (s *RobustScaler) FeatureCount() int {
	return len(s.Center)
}

// Fit computes per-feature median and IQR. A feature with zero IQR gets scale 1.
func (s *RobustScaler) Fit(t models.FeatureTensor) error {
	if err := t.Validate(); err != nil {
		return err
	}
	samples := t.Batch * t.Steps
	if samples == 0 || t.Features == 0 {
		return fmt.Errorf("%w: cannot fit on empty tensor (%d,%d,%d)", models.ErrShapeMismatch, t.Batch, t.Steps, t.Features)
	}
	if len(s.Features) > 0 && len(s.Features) != t.Features {
		return fmt.Errorf("%w: %d named features, tensor has %d", models.ErrScalerFeatureMismatch, len(s.Features), t.Features)
	}

	center := make([]float64, t.Features)
	scale := make([]float64, t.Features)
	column := make([]float64, samples)
	for f := 0; f < t.Features; f++ {
		for i := 0; i < samples; i++ {
			column[i] = t.Data[i*t.Features+f]
		}
		slices.Sort(column)

		center[f] = Quantile(column, 0.5)
		iqr := Quantile(column, 0.75) - Quantile(column, 0.25)
		if iqr == 0 || math.IsNaN(iqr) {
			iqr = 1
		}
		scale[f] = iqr
	}

	s.Center = center
	s.Scale = scale
	return nil
}

// Transform returns (x - center) / scale with the input shape preserved.
func (s *RobustScaler) Transform(t models.FeatureTensor) (models.FeatureTensor, error) {
	return s.apply(t, func(x, c, sc float64) float64 { return (x - c) / sc })
}

// InverseTransform maps scaled values back to the original units.
func (s *RobustScaler) InverseTransform(t models.FeatureTensor) (models.FeatureTensor, error) {
	return s.apply(t, func(x, c, sc float64) float64 { return x*sc + c })
}

func (s *RobustScaler) apply(t models.FeatureTensor, fn func(x, c, sc float64) float64) (models.FeatureTensor, error) {
	if !s.Fitted() {
		return models.FeatureTensor{}, ErrScalerNotFitted
	}
	if err := t.Validate(); err != nil {
		return models.FeatureTensor{}, err
	}
	if t.Features != len(s.Center) {
		return models.FeatureTensor{}, fmt.Errorf("%w: scaler fitted on %d features, tensor has %d",
			models.ErrScalerFeatureMismatch, len(s.Center), t.Features)
	}

	out := models.NewFeatureTensor(t.Batch, t.Steps, t.Features)
	for i, x := range t.Data {
		f := i % t.Features
		out.Data[i] = fn(x, s.Center[f], s.Scale[f])
	}
	return out, nil
}

// CheckFeatures verifies the scaler was fitted on exactly these columns, in order.
// Scalers saved without names only have their count checked.
func (s *RobustScaler) CheckFeatures(columns []string) error {
	if !s.Fitted() {
		return ErrScalerNotFitted
	}
	if len(columns) != len(s.Center) {
		return fmt.Errorf("%w: scaler has %d features, pipeline uses %d",
			models.ErrScalerFeatureMismatch, len(s.Center), len(columns))
	}
	if len(s.Features) > 0 && !slices.Equal(s.Features, columns) {
		return fmt.Errorf("%w: scaler features %v, pipeline features %v",
			models.ErrScalerFeatureMismatch, s.Features, columns)
	}
	return nil
}

// Save writes the statistics as JSON.
func (s *RobustScaler) Save(w io.Writer) error {
	if !s.Fitted() {
		return ErrScalerNotFitted
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}

// Load reads statistics written by Save.
func Load(r io.Reader) (*RobustScaler, error) {
	var s RobustScaler
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decode scaler: %w", err)
	}
	if !s.Fitted() {
		return nil, fmt.Errorf("decode scaler: center has %d values, scale has %d", len(s.Center), len(s.Scale))
	}
	if len(s.Features) > 0 && len(s.Features) != len(s.Center) {
		return nil, fmt.Errorf("decode scaler: %d feature names for %d statistics", len(s.Features), len(s.Center))
	}
	for i, sc := range s.Scale {
		if sc == 0 || math.IsNaN(sc) || math.IsInf(sc, 0) {
			return nil, fmt.Errorf("decode scaler: invalid scale %v at feature %d", sc, i)
		}
	}
	return &s, nil
}

// LoadFile opens path and calls Load.
func LoadFile(path string) (*RobustScaler, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open scaler file: %w", err)
	}
	defer f.Close()
	return Load(f)
}

// SaveFile writes the statistics to path, replacing any existing file.
func (s *RobustScaler) SaveFile(path string) error {
	tmp := path + ".tmp"
	f, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("create scaler file: %w", err)
	}
	if err := s.Save(f); err != nil {
		f.Close()
		os.Remove(tmp)
		return err
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return err
	}
	return os.Rename(tmp, path)
}

// Quantile returns the q-th quantile of sorted values using linear
// interpolation between the closest ranks.
func Quantile(sorted []float64, q float64) float64 {
	n := len(sorted)
	if n == 0 {
		return math.NaN()
	}
	if n == 1 {
		return sorted[0]
	}
	pos := q * float64(n-1)
	lo := int(math.Floor(pos))
	hi := int(math.Ceil(pos))
	if lo == hi {
		return sorted[lo]
	}
	frac := pos - float64(lo)
	return sorted[lo] + frac*(sorted[hi]-sorted[lo])
}
