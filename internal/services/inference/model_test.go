package inference

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"CoinCast/internal/domain/models"
)

func tensor(steps, features int) models.FeatureTensor {
	t := models.NewFeatureTensor(1, steps, features)
	for i := range t.Data {
		t.Data[i] = float64(i) / 10
	}
	return t
}

func TestPredictPostsInstances(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/predict" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		var req predictRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Errorf("decode: %v", err)
		}
		if len(req.Instances) != 1 || len(req.Instances[0]) != 4 || len(req.Instances[0][0]) != 2 {
			t.Errorf("unexpected instances shape")
		}
		if req.Instances[0][3][1] != 0.7 {
			t.Errorf("unexpected last value %v", req.Instances[0][3][1])
		}
		w.Write([]byte(`{"predictions": [[65123.25]]}`))
	}))
	defer srv.Close()

	m := NewHTTPModel(Config{URL: srv.URL, Timeout: time.Second, Steps: 4, Features: 2})
	v, err := m.Predict(context.Background(), tensor(4, 2))
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if v != 65123.25 {
		t.Fatalf("unexpected prediction %v", v)
	}
	if s, f := m.InputShape(); s != 4 || f != 2 {
		t.Fatalf("unexpected input shape %d,%d", s, f)
	}
}

func TestPredictRejectsWrongShapeLocally(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
	}))
	defer srv.Close()

	m := NewHTTPModel(Config{URL: srv.URL, Steps: 48, Features: 5})
	if _, err := m.Predict(context.Background(), tensor(48, 2)); !errors.Is(err, models.ErrShapeMismatch) {
		t.Fatalf("expected shape mismatch, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 0 {
		t.Fatalf("model must not be called with a mismatched tensor")
	}
}

func TestPredictErrorMapping(t *testing.T) {
	cases := map[string]struct {
		status int
		body   string
		want   error
	}{
		"rejected":   {http.StatusBadRequest, `{"error":"shape"}`, models.ErrShapeMismatch},
		"down":       {http.StatusServiceUnavailable, `down`, models.ErrModelInference},
		"empty":      {http.StatusOK, `{"predictions": []}`, models.ErrModelInference},
		"missing":    {http.StatusOK, `{}`, models.ErrModelInference},
		"not json":   {http.StatusOK, `nope`, models.ErrModelInference},
		"flat works": {http.StatusOK, `{"predictions": [1.5]}`, nil},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tc.status)
				w.Write([]byte(tc.body))
			}))
			defer srv.Close()

			m := NewHTTPModel(Config{URL: srv.URL, Steps: 2, Features: 1})
			_, err := m.Predict(context.Background(), tensor(2, 1))
			if tc.want == nil {
				if err != nil {
					t.Fatalf("unexpected error %v", err)
				}
				return
			}
			if !errors.Is(err, tc.want) {
				t.Fatalf("expected %v, got %v", tc.want, err)
			}
		})
	}
}

func TestPredictRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) == 1 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(`{"predictions": [[2]]}`))
	}))
	defer srv.Close()

	m := NewHTTPModel(Config{URL: srv.URL, Steps: 2, Features: 1, Attempts: 3})
	v, err := m.Predict(context.Background(), tensor(2, 1))
	if err != nil || v != 2 {
		t.Fatalf("expected retry to succeed, got %v %v", v, err)
	}
	if atomic.LoadInt32(&calls) != 2 {
		t.Fatalf("expected 2 calls, got %d", calls)
	}
}

func TestPredictFailsOnceByDefault(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusBadGateway)
	}))
	defer srv.Close()

	m := NewHTTPModel(Config{URL: srv.URL, Steps: 2, Features: 1})
	if _, err := m.Predict(context.Background(), tensor(2, 1)); !errors.Is(err, models.ErrModelInference) {
		t.Fatalf("expected inference error, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 1 {
		t.Fatalf("a failed call must wait for the next refresh, got %d calls", calls)
	}
}
