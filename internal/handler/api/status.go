package api

import (
	"net/http"
	"time"

	"CoinCast/internal/usecase"
	xhttp "CoinCast/pkg/http"

	"github.com/labstack/echo/v4"
)

// StatusSource collects what /api/status reports.
type StatusSource struct {
	Pollers    []usecase.Poller
	Buffers    interface{ BufferLens() (candles, metas int) }
	Prediction interface {
		Status() usecase.PredictionStatus
	}
	// Scheduler is nil when auto refresh is off.
	Scheduler interface{ Next() time.Time }
}

type StatusResponse struct {
	Healthy     bool                     `json:"healthy"`
	Pollers     []usecase.PollerStatus   `json:"pollers"`
	Buffers     map[string]int           `json:"buffers"`
	Prediction  usecase.PredictionStatus `json:"prediction"`
	NextRefresh *time.Time               `json:"next_refresh,omitempty"`
}

type StatusHandler struct {
	src StatusSource
}

func NewStatusHandler(src StatusSource) *StatusHandler {
	return &StatusHandler{src: src}
}

func (h *StatusHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Healthz)
	e.GET("/api/status", h.Status)
}

func (h *StatusHandler) Healthz(c echo.Context) error {
	return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
}

// Status is healthy while no poller is degraded.
func (h *StatusHandler) Status(c echo.Context) error {
	resp := StatusResponse{Healthy: true, Pollers: make([]usecase.PollerStatus, 0, len(h.src.Pollers))}
	for _, p := range h.src.Pollers {
		st := p.Status()
		if st.Degraded {
			resp.Healthy = false
		}
		resp.Pollers = append(resp.Pollers, st)
	}
	if h.src.Buffers != nil {
		candles, metas := h.src.Buffers.BufferLens()
		resp.Buffers = map[string]int{"candles": candles, "meta": metas}
	}
	if h.src.Prediction != nil {
		resp.Prediction = h.src.Prediction.Status()
	}
	if h.src.Scheduler != nil {
		if next := h.src.Scheduler.Next(); !next.IsZero() {
			resp.NextRefresh = &next
		}
	}
	return xhttp.SuccessResponse(c, resp)
}
