package ws

import (
	"context"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFusion/internal/domain/models"
)

func dial(t *testing.T, srv *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/analyses" + query
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestHub_StreamsFilteredAnalyses(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub := NewHub(nil)
	go hub.Run(ctx)

	e := echo.New()
	hub.RegisterRoutes(e)
	srv := httptest.NewServer(e)
	defer srv.Close()

	all := dial(t, srv, "")
	onlyMSFT := dial(t, srv, "?symbols=msft")
	require.Eventually(t, func() bool { return hub.ClientCount() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Broadcast(&models.FinalAnalysis{ID: "1", Symbol: "AAPL", Recommendation: models.ActionBuy})
	hub.Broadcast(&models.FinalAnalysis{ID: "2", Symbol: "MSFT", Recommendation: models.ActionHold})

	var got models.FinalAnalysis
	_ = all.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, all.ReadJSON(&got))
	assert.Equal(t, "AAPL", got.Symbol)
	require.NoError(t, all.ReadJSON(&got))
	assert.Equal(t, "MSFT", got.Symbol)

	_ = onlyMSFT.SetReadDeadline(time.Now().Add(2 * time.Second))
	require.NoError(t, onlyMSFT.ReadJSON(&got))
	assert.Equal(t, "2", got.ID)
}

func TestParseSymbols(t *testing.T) {
	got := parseSymbols(" aapl, ,MSFT")
	assert.Len(t, got, 2)
	assert.Contains(t, got, "AAPL")
	assert.Empty(t, parseSymbols(""))
}
