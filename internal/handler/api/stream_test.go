package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"CoinCast/internal/usecase"
	applogger "CoinCast/pkg/logger"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
)

func TestStreamPushesTable(t *testing.T) {
	e := echo.New()
	NewStreamHandler(applogger.Nop(), fakeTable{rows: rows(4)}, &fakePrediction{}, 20*time.Millisecond, 2).RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/table"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	for i := 0; i < 2; i++ {
		_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
		_, msg, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read frame %d: %v", i, err)
		}
		var frame struct {
			Type string            `json:"type"`
			Data usecase.TableView `json:"data"`
		}
		if err := json.Unmarshal(msg, &frame); err != nil {
			t.Fatalf("decode: %v", err)
		}
		if frame.Type != "table" || frame.Data.Count != 2 || frame.Data.Prediction != nil {
			t.Fatalf("unexpected frame %+v", frame)
		}
	}
}
