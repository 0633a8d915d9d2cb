package api

import (
	"context"
	"math"
	"strconv"
	"time"

	"CoinCast/internal/domain/models"
	"CoinCast/internal/service/ratelimit"
	"CoinCast/internal/usecase"
	xhttp "CoinCast/pkg/http"
	applogger "CoinCast/pkg/logger"

	"github.com/labstack/echo/v4"
)

// TableSource builds the display table.
type TableSource interface {
	View(limit int) usecase.TableView
}

// PredictionService is the orchestrator surface the API needs.
type PredictionService interface {
	GetPrediction(ctx context.Context, trigger bool) (models.PredictionResult, error)
	Fresh(now time.Time) bool
}

// MarketHandler serves the merged table, the prediction and the archive history.
type MarketHandler struct {
	log        *applogger.Logger
	table      TableSource
	prediction PredictionService
	history    *usecase.HistoryUseCase
	cooldown   *ratelimit.Cooldown
	now        func() time.Time
}

func NewMarketHandler(log *applogger.Logger, table TableSource, prediction PredictionService,
	history *usecase.HistoryUseCase, cooldown *ratelimit.Cooldown) *MarketHandler {
	return &MarketHandler{
		log:        log.With("api"),
		table:      table,
		prediction: prediction,
		history:    history,
		cooldown:   cooldown,
		now:        time.Now,
	}
}

func (h *MarketHandler) RegisterRoutes(e *echo.Echo) {
	g := e.Group("/api")
	g.GET("/table", h.Table)
	g.GET("/prediction", h.Prediction)
	g.GET("/history", h.History)
}

// Table returns the trailing merged rows with headline values and the cached prediction.
func (h *MarketHandler) Table(c echo.Context) error {
	req := &models.TableRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	view := h.table.View(req.Limit)
	if res, err := h.prediction.GetPrediction(c.Request().Context(), false); err == nil && res.State.HasValue() {
		view.Prediction = &res
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "no-store")
	return xhttp.SuccessResponse(c, view)
}

// Prediction returns the cached prediction; trigger=true recomputes a stale one.
// Recomputation is limited per client by the manual refresh cooldown.
func (h *MarketHandler) Prediction(c echo.Context) error {
	req := &models.PredictionRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}

	if req.Trigger && !h.prediction.Fresh(h.now()) {
		if ok, wait := h.cooldown.Allow(c.RealIP()); !ok {
			secs := int(math.Ceil(wait.Seconds()))
			c.Response().Header().Set("Retry-After", strconv.Itoa(secs))
			return xhttp.AppErrorResponse(c, xhttp.TooManyRequestsError("manual refresh is on cooldown").
				WithParam("retry_after_seconds", secs))
		}
	}

	res, err := h.prediction.GetPrediction(c.Request().Context(), req.Trigger)
	if err != nil {
		h.log.Warn("prediction request failed", applogger.Error(err), applogger.Bool("trigger", req.Trigger))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}

// History reads archived merged rows in [from, to].
func (h *MarketHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.history == nil {
		return xhttp.AppErrorResponse(c, xhttp.ServiceUnavailableError("ERR_ARCHIVE_UNAVAILABLE", "archive is disabled"))
	}

	now := h.now().UTC()
	to := xhttp.ParseTimeDefault(req.To, now)
	from := xhttp.ParseTimeDefault(req.From, to.Add(-24*time.Hour))
	if from.After(to) {
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError("from must not be after to"))
	}

	res, err := h.history.GetHistory(c.Request().Context(), usecase.GetHistoryParams{From: from, To: to, Limit: req.Limit})
	if err != nil {
		h.log.Error("history usecase error", applogger.Error(err))
		return xhttp.AppErrorResponse(c, toAppError(err))
	}
	return xhttp.SuccessResponse(c, res)
}
