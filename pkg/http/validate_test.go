package http

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type runRequest struct {
	Symbol    string `json:"symbol" validate:"required,ticker"`
	Period    int    `json:"period" default:"250" validate:"gte=1,lte=2000"`
	Timeframe string `json:"timeframe" default:"1d" validate:"oneof=1m 5m 1h 1d"`
}

type barsRequest struct {
	Symbol    string `param:"symbol" json:"symbol" validate:"required,ticker"`
	Timeframe string `query:"tf" json:"tf" default:"1d" validate:"oneof=1m 5m 1h 1d"`
	Limit     int    `query:"limit" json:"limit" default:"500" validate:"gte=1,lte=5000"`
}

func postContext(body string) echo.Context {
	req := httptest.NewRequest(http.MethodPost, "/api/analysis", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	return echo.New().NewContext(req, httptest.NewRecorder())
}

func byField(errs []ValidationError) map[string]ValidationError {
	out := make(map[string]ValidationError, len(errs))
	for _, e := range errs {
		out[e.Field] = e
	}
	return out
}

func TestReadAndValidateRequest_AppliesDefaults(t *testing.T) {
	req := new(runRequest)
	require.Nil(t, ReadAndValidateRequest(postContext(`{"symbol":"brk.b"}`), req))
	assert.Equal(t, 250, req.Period)
	assert.Equal(t, "1d", req.Timeframe)
}

func TestReadAndValidateRequest_FieldErrors(t *testing.T) {
	errs := ReadAndValidateRequest(postContext(`{"symbol":"$$","period":5000,"timeframe":"2h"}`), new(runRequest))
	require.Len(t, errs, 3)
	got := byField(errs)

	assert.Equal(t, "ERR_TICKER", got["symbol"].Code)
	assert.Contains(t, got["symbol"].Message, "must be a ticker")

	assert.Equal(t, "ERR_LTE", got["period"].Code)
	assert.Equal(t, "period must be at most 2000", got["period"].Message)
	assert.Equal(t, "2000", got["period"].Params["max"])

	assert.Equal(t, "ERR_ONEOF", got["timeframe"].Code)
	assert.Equal(t, "timeframe must be one of: 1m, 5m, 1h, 1d", got["timeframe"].Message)
	assert.Equal(t, []string{"1m", "5m", "1h", "1d"}, got["timeframe"].Params["options"])
}

func TestReadAndValidateRequest_MissingSymbol(t *testing.T) {
	errs := ReadAndValidateRequest(postContext(`{}`), new(runRequest))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_REQUIRED", errs[0].Code)
	assert.Equal(t, "symbol is required", errs[0].Message)
}

func TestReadAndValidateRequest_QueryNames(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/api/bars/AAPL?tf=4h&limit=0", nil)
	c := echo.New().NewContext(req, httptest.NewRecorder())
	c.SetParamNames("symbol")
	c.SetParamValues("AAPL")

	got := byField(ReadAndValidateRequest(c, new(barsRequest)))
	require.Len(t, got, 1)
	assert.Equal(t, "ERR_ONEOF", got["tf"].Code)
}

func TestReadAndValidateRequest_MalformedBody(t *testing.T) {
	errs := ReadAndValidateRequest(postContext(`{"symbol":`), new(runRequest))
	require.Len(t, errs, 1)
	assert.Equal(t, "ERR_BIND", errs[0].Code)
	assert.Empty(t, errs[0].Field)
	assert.NotEmpty(t, errs[0].Message)
}
