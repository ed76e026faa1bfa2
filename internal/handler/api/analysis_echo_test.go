package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	"FinFusion/internal/repository"
	svcmetrics "FinFusion/internal/service/metrics"
	"FinFusion/internal/services/recommendation"
	"FinFusion/internal/services/regime"
	"FinFusion/internal/usecase"
)

type fixedStages struct{}

func (fixedStages) Generate(_ context.Context, symbol string, _ int, _ domrepo.Timeframe) models.FusionResult {
	f := models.EmptyFusionResult(symbol)
	f.CurrentPrice = 50
	return f
}

func (fixedStages) Indicators(_ context.Context, symbol string, period int, _ domrepo.Timeframe) models.IndicatorSet {
	return models.EmptyIndicatorSet(symbol, period, 0)
}

func (fixedStages) Sentiment(_ context.Context, symbol string) models.SentimentSnapshot {
	return models.EmptySentimentSnapshot(symbol)
}

type recordingQueue struct{ msgType string }

func (q *recordingQueue) PublishMessage(_ context.Context, msgType string, _ interface{}) error {
	q.msgType = msgType
	return nil
}

type envelope struct {
	Status  int             `json:"status"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data"`
}

func newTestServer(t *testing.T, opts ...HandlerOption) *echo.Echo {
	t.Helper()
	svc := usecase.NewAnalysisService(
		repository.NewStaticInstrumentRepository("AAPL", "MSFT"),
		fixedStages{},
		regime.NewClassifier(nil),
		recommendation.NewOrchestrator(nil),
		repository.NewMemoryAnalysisStore(10),
	)
	e := echo.New()
	NewAnalysisEchoHandler(nil, svc, opts...).RegisterRoutes(e)
	return e
}

func do(e *echo.Echo, method, target, body string) (*httptest.ResponseRecorder, envelope) {
	req := httptest.NewRequest(method, target, strings.NewReader(body))
	if body != "" {
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)
	var env envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	return rec, env
}

func TestAnalyzeThenHistory(t *testing.T) {
	e := newTestServer(t)

	_, env := do(e, http.MethodPost, "/api/analysis", `{"symbol":"aapl","user_id":"u1"}`)
	require.Equal(t, http.StatusOK, env.Status)
	var a models.FinalAnalysis
	require.NoError(t, json.Unmarshal(env.Data, &a))
	assert.Equal(t, "AAPL", a.Symbol)
	assert.Equal(t, models.SourceFallback, a.Metadata.Source)
	assert.Equal(t, models.ActionHold, a.Recommendation)

	_, env = do(e, http.MethodGet, "/api/analysis/AAPL/history?limit=5", "")
	require.Equal(t, http.StatusOK, env.Status)
	var list struct {
		Rows  []models.FinalAnalysis `json:"rows"`
		Total int64                  `json:"total"`
	}
	require.NoError(t, json.Unmarshal(env.Data, &list))
	assert.EqualValues(t, 1, list.Total)
	assert.Equal(t, a.ID, list.Rows[0].ID)
}

func TestAnalyze_ErrorMapping(t *testing.T) {
	e := newTestServer(t)

	_, env := do(e, http.MethodPost, "/api/analysis", `{"symbol":"ZZZZ"}`)
	assert.Equal(t, http.StatusNotFound, env.Status)

	_, env = do(e, http.MethodPost, "/api/analysis", `{"symbol":"$$"}`)
	assert.Equal(t, http.StatusBadRequest, env.Status)

	_, env = do(e, http.MethodPost, "/api/analysis", `{}`)
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestStageEndpoints(t *testing.T) {
	e := newTestServer(t)

	_, env := do(e, http.MethodGet, "/api/indicators/msft?period=60&tf=1h", "")
	require.Equal(t, http.StatusOK, env.Status)
	var ind models.IndicatorSet
	require.NoError(t, json.Unmarshal(env.Data, &ind))
	assert.Equal(t, "MSFT", ind.Symbol)
	assert.Equal(t, 60, ind.Period)

	_, env = do(e, http.MethodGet, "/api/regime/AAPL", "")
	require.Equal(t, http.StatusOK, env.Status)

	_, env = do(e, http.MethodGet, "/api/sentiment/AAPL", "")
	require.Equal(t, http.StatusOK, env.Status)

	_, env = do(e, http.MethodGet, "/api/fusion/AAPL?tf=4h", "")
	assert.Equal(t, http.StatusBadRequest, env.Status)
}

func TestEnqueueJob(t *testing.T) {
	rec, _ := do(newTestServer(t), http.MethodPost, "/api/analysis/jobs", `{"symbol":"AAPL"}`)
	assert.Equal(t, http.StatusOK, rec.Code)

	q := &recordingQueue{}
	rec, env := do(newTestServer(t, WithJobQueue(q)), http.MethodPost, "/api/analysis/jobs", `{"symbol":"AAPL"}`)
	assert.Equal(t, http.StatusAccepted, rec.Code)
	assert.Equal(t, http.StatusAccepted, env.Status)
	assert.Equal(t, usecase.AnalysisJobType, q.msgType)
}

func TestHealth(t *testing.T) {
	e := newTestServer(t,
		WithHealthCheck("store", func(context.Context) error { return nil }),
		WithHealthCheck("kafka", func(context.Context) error { return errors.New("no brokers") }),
	)
	rec, env := do(e, http.MethodGet, "/healthz", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	var deps map[string]string
	require.NoError(t, json.Unmarshal(env.Data, &deps))
	assert.Equal(t, "ok", deps["store"])
	assert.Equal(t, "no brokers", deps["kafka"])
}

func TestStats(t *testing.T) {
	_, env := do(newTestServer(t), http.MethodGet, "/api/stats", "")
	assert.Equal(t, http.StatusServiceUnavailable, env.Status)

	c := svcmetrics.NewCollector()
	c.RecordFallback("AAPL")
	c.RecordCacheHit("fusion_analysis")
	_, env = do(newTestServer(t, WithStats(c)), http.MethodGet, "/api/stats", "")
	require.Equal(t, http.StatusOK, env.Status)
	var snap svcmetrics.Snapshot
	require.NoError(t, json.Unmarshal(env.Data, &snap))
	assert.Equal(t, 1, snap.Fallbacks["AAPL"])
	assert.Equal(t, 1, snap.CacheHits["fusion_analysis"])
}
