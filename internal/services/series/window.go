package series

import (
	"errors"
	"fmt"

	"CoinCast/internal/domain/models"
)

// ErrUnknownFeature is returned when a column name has no value on the row type.
var ErrUnknownFeature = errors.New("unknown feature column")

// Featurer is a row that exposes named numeric columns.
type Featurer interface {
	Feature(name string) (float64, bool)
}

// Assemble builds a (1, windowLength, len(columns)) tensor from the trailing rows.
// Missing history is left-padded with zero vectors.
func Assemble[T Featurer](rows []T, windowLength int, columns []string) (models.FeatureTensor, error) {
	if windowLength < 1 || len(columns) == 0 {
		return models.FeatureTensor{}, fmt.Errorf("%w: window %d with %d columns", models.ErrShapeMismatch, windowLength, len(columns))
	}

	available := min(len(rows), windowLength)
	tail := rows[len(rows)-available:]
	pad := windowLength - available

	t := models.NewFeatureTensor(1, windowLength, len(columns))
	for i, row := range tail {
		for f, col := range columns {
			v, ok := row.Feature(col)
			if !ok {
				return models.FeatureTensor{}, fmt.Errorf("%w: %q", ErrUnknownFeature, col)
			}
			t.Set(0, pad+i, f, v)
		}
	}
	return t, nil
}

// CheckShape verifies the trailing two dimensions match what the model expects.
func CheckShape(t models.FeatureTensor, steps, features int) error {
	if err := t.Validate(); err != nil {
		return err
	}
	if t.Batch != 1 || t.Steps != steps || t.Features != features {
		return fmt.Errorf("%w: got (%d,%d,%d), model expects (1,%d,%d)",
			models.ErrShapeMismatch, t.Batch, t.Steps, t.Features, steps, features)
	}
	return nil
}

// SlidingWindows stacks every full window of windowLength consecutive rows
// into one (n, windowLength, len(columns)) tensor. Fewer rows than one window
// is ErrInsufficientData; no padding is applied.
func SlidingWindows[T Featurer](rows []T, windowLength int, columns []string) (models.FeatureTensor, error) {
	if windowLength < 1 || len(columns) == 0 {
		return models.FeatureTensor{}, fmt.Errorf("%w: window %d with %d columns", models.ErrShapeMismatch, windowLength, len(columns))
	}
	n := len(rows) - windowLength + 1
	if n < 1 {
		return models.FeatureTensor{}, fmt.Errorf("%w: %d rows for window %d", models.ErrInsufficientData, len(rows), windowLength)
	}

	t := models.NewFeatureTensor(n, windowLength, len(columns))
	for b := 0; b < n; b++ {
		for s := 0; s < windowLength; s++ {
			row := rows[b+s]
			for f, col := range columns {
				v, ok := row.Feature(col)
				if !ok {
					return models.FeatureTensor{}, fmt.Errorf("%w: %q", ErrUnknownFeature, col)
				}
				t.Set(b, s, f, v)
			}
		}
	}
	return t, nil
}
