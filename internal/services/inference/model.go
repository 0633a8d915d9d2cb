package inference

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"

	"CoinCast/internal/domain/models"
	drepo "CoinCast/internal/domain/repository"
	upstream "CoinCast/internal/service/metrics"
	"CoinCast/internal/services/series"
	xhttp "CoinCast/pkg/http"
)

// Config describes the model-serving endpoint and the input it accepts.
type Config struct {
	URL      string
	Timeout  time.Duration
	Steps    int
	Features int
	Attempts int
}

// HTTPModel calls a TF-Serving style REST endpoint:
// POST {url}/predict {"instances": [[[...]]]} -> {"predictions": [[v]]}.
type HTTPModel struct {
	base     *HTTPServiceBase
	steps    int
	features int
	attempts int
}

// NewHTTPModel creates the Model collaborator.
func NewHTTPModel(cfg Config) *HTTPModel {
	return &HTTPModel{
		base:     NewHTTPServiceBase(cfg.URL, cfg.Timeout),
		steps:    cfg.Steps,
		features: cfg.Features,
		attempts: cfg.Attempts,
	}
}

type predictRequest struct {
	Instances [][][]float64 `json:"instances"`
}

type predictResponse struct {
	Predictions json.RawMessage `json:"predictions"`
}

func (m *HTTPModel) InputShape() (int, int) { return m.steps, m.features }

// Predict returns the single scalar the model produces for a (1, steps, features) tensor.
func (m *HTTPModel) Predict(ctx context.Context, t models.FeatureTensor) (float64, error) {
	if err := series.CheckShape(t, m.steps, m.features); err != nil {
		return 0, err
	}

	start := time.Now()
	var resp predictResponse
	err := m.base.PostJSONWithRetry(ctx, "/predict", predictRequest{Instances: t.Nested()}, &resp, m.attempts)
	upstream.Observe("model_predict", start, err)
	if err != nil {
		var se *xhttp.StatusError
		if errors.As(err, &se) && (se.Code == http.StatusBadRequest || se.Code == http.StatusUnprocessableEntity) {
			return 0, fmt.Errorf("%w: model rejected input: %s", models.ErrShapeMismatch, se.Body)
		}
		return 0, fmt.Errorf("%w: %v", models.ErrModelInference, err)
	}

	v, err := firstScalar(resp.Predictions)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", models.ErrModelInference, err)
	}
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, fmt.Errorf("%w: non-finite prediction %v", models.ErrModelInference, v)
	}
	return v, nil
}

// firstScalar accepts [[v]], [v] or v.
func firstScalar(raw json.RawMessage) (float64, error) {
	if len(raw) == 0 {
		return 0, fmt.Errorf("predictions missing")
	}
	var nested [][]float64
	if err := json.Unmarshal(raw, &nested); err == nil {
		if len(nested) == 0 || len(nested[0]) == 0 {
			return 0, fmt.Errorf("predictions empty")
		}
		return nested[0][0], nil
	}
	var flat []float64
	if err := json.Unmarshal(raw, &flat); err == nil {
		if len(flat) == 0 {
			return 0, fmt.Errorf("predictions empty")
		}
		return flat[0], nil
	}
	var scalar float64
	if err := json.Unmarshal(raw, &scalar); err != nil {
		return 0, fmt.Errorf("decode predictions: %v", err)
	}
	return scalar, nil
}

var _ drepo.Model = (*HTTPModel)(nil)
