package models

import "fmt"

// FeatureTensor is a dense (batch, steps, features) array stored row-major.
type FeatureTensor struct {
	Batch    int       `json:"batch"`
	Steps    int       `json:"steps"`
	Features int       `json:"features"`
	Data     []float64 `json:"data"`
}

// NewFeatureTensor allocates a zero-filled tensor.
func NewFeatureTensor(batch, steps, features int) FeatureTensor {
	return FeatureTensor{
		Batch:    batch,
		Steps:    steps,
		Features: features,
		Data:     make([]float64, batch*steps*features),
	}
}

// Shape returns (batch, steps, features).
func (t FeatureTensor) Shape() (int, int, int) {
	return t.Batch, t.Steps, t.Features
}

func (t FeatureTensor) index(b, s, f int) int {
	return (b*t.Steps+s)*t.Features + f
}

// At returns the value at (b, s, f).
func (t FeatureTensor) At(b, s, f int) float64 {
	return t.Data[t.index(b, s, f)]
}

// Set writes the value at (b, s, f).
func (t FeatureTensor) Set(b, s, f int, v float64) {
	t.Data[t.index(b, s, f)] = v
}

// Step returns a copy of the feature vector at (b, s).
func (t FeatureTensor) Step(b, s int) []float64 {
	start := t.index(b, s, 0)
	out := make([]float64, t.Features)
	copy(out, t.Data[start:start+t.Features])
	return out
}

// Validate checks that Data matches the declared shape.
func (t FeatureTensor) Validate() error {
	if t.Batch < 0 || t.Steps < 0 || t.Features < 0 {
		return fmt.Errorf("%w: negative dimension (%d,%d,%d)", ErrShapeMismatch, t.Batch, t.Steps, t.Features)
	}
	if len(t.Data) != t.Batch*t.Steps*t.Features {
		return fmt.Errorf("%w: %d values for shape (%d,%d,%d)", ErrShapeMismatch, len(t.Data), t.Batch, t.Steps, t.Features)
	}
	return nil
}

// Nested returns the tensor as [batch][steps][features] slices.
func (t FeatureTensor) Nested() [][][]float64 {
	out := make([][][]float64, t.Batch)
	for b := 0; b < t.Batch; b++ {
		out[b] = make([][]float64, t.Steps)
		for s := 0; s < t.Steps; s++ {
			out[b][s] = t.Step(b, s)
		}
	}
	return out
}
