package api

import (
	"net/http"
	"time"

	applogger "CoinCast/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

const (
	wsWriteWait  = 10 * time.Second
	wsPongWait   = 60 * time.Second
	wsPingPeriod = wsPongWait * 9 / 10
)

// TableFrame is one push on /ws/table.
type TableFrame struct {
	Type string      `json:"type"`
	At   time.Time   `json:"at"`
	Data interface{} `json:"data"`
}

// StreamHandler pushes the merged table over a websocket every interval.
type StreamHandler struct {
	log        *applogger.Logger
	table      TableSource
	prediction PredictionService
	interval   time.Duration
	limit      int
	upgrader   websocket.Upgrader
}

func NewStreamHandler(log *applogger.Logger, table TableSource, prediction PredictionService, interval time.Duration, limit int) *StreamHandler {
	if interval <= 0 {
		interval = 30 * time.Second
	}
	return &StreamHandler{
		log:        log.With("ws"),
		table:      table,
		prediction: prediction,
		interval:   interval,
		limit:      limit,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
	}
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/ws/table", h.Table)
}

func (h *StreamHandler) Table(c echo.Context) error {
	conn, err := h.upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		h.log.Warn("websocket upgrade failed", applogger.Error(err))
		return nil
	}
	defer conn.Close()

	ctx := c.Request().Context()
	closed := make(chan struct{})
	go func() {
		defer close(closed)
		conn.SetReadLimit(512)
		_ = conn.SetReadDeadline(time.Now().Add(wsPongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(wsPongWait))
		})
		for {
			if _, _, err := conn.NextReader(); err != nil {
				return
			}
		}
	}()

	push := time.NewTicker(h.interval)
	defer push.Stop()
	ping := time.NewTicker(wsPingPeriod)
	defer ping.Stop()

	h.log.Debug("websocket client connected", applogger.String("remote", c.RealIP()))
	if err := h.send(conn, c); err != nil {
		return nil
	}
	for {
		select {
		case <-closed:
			return nil
		case <-ctx.Done():
			return nil
		case <-push.C:
			if err := h.send(conn, c); err != nil {
				h.log.Debug("websocket write failed", applogger.Error(err))
				return nil
			}
		case <-ping.C:
			if err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return nil
			}
		}
	}
}

func (h *StreamHandler) send(conn *websocket.Conn, c echo.Context) error {
	view := h.table.View(h.limit)
	if res, err := h.prediction.GetPrediction(c.Request().Context(), false); err == nil && res.State.HasValue() {
		view.Prediction = &res
	}
	_ = conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return conn.WriteJSON(TableFrame{Type: "table", At: time.Now().UTC(), Data: view})
}
