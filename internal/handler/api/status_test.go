package api

import (
	"context"
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"CoinCast/internal/usecase"

	"github.com/labstack/echo/v4"
)

type stubPoller struct{ st usecase.PollerStatus }

func (p stubPoller) Name() string                 { return p.st.Name }
func (p stubPoller) Start(context.Context) error  { return nil }
func (p stubPoller) Stop()                        {}
func (p stubPoller) Status() usecase.PollerStatus { return p.st }

type stubBuffers struct{}

func (stubBuffers) BufferLens() (int, int) { return 10, 3 }

type stubPrediction struct{}

func (stubPrediction) Status() usecase.PredictionStatus {
	return usecase.PredictionStatus{Enabled: true}
}

type stubScheduler struct{ next time.Time }

func (s stubScheduler) Next() time.Time { return s.next }

func TestStatusReportsDegradedPoller(t *testing.T) {
	next := apiBase.Add(30 * time.Minute)
	h := NewStatusHandler(StatusSource{
		Pollers: []usecase.Poller{
			stubPoller{usecase.PollerStatus{Name: "candles", Running: true}},
			stubPoller{usecase.PollerStatus{Name: "meta", Running: true, Degraded: true}},
		},
		Buffers:    stubBuffers{},
		Prediction: stubPrediction{},
		Scheduler:  stubScheduler{next: next},
	})
	e := echo.New()
	h.RegisterRoutes(e)

	rec, env := get(e, "/api/status")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var resp StatusResponse
	if err := json.Unmarshal(env.Data, &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.Healthy || len(resp.Pollers) != 2 || resp.Buffers["candles"] != 10 || resp.Buffers["meta"] != 3 {
		t.Fatalf("unexpected status %+v", resp)
	}
	if !resp.Prediction.Enabled || resp.NextRefresh == nil || !resp.NextRefresh.Equal(next) {
		t.Fatalf("unexpected prediction/schedule %+v", resp)
	}

	if rec, _ := get(e, "/healthz"); rec.Code != http.StatusOK {
		t.Fatalf("healthz: %d", rec.Code)
	}
}
