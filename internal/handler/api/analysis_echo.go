package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	svcmetrics "FinFusion/internal/service/metrics"
	"FinFusion/internal/service/ratelimit"
	"FinFusion/internal/usecase"
	xhttp "FinFusion/pkg/http"
	xlogger "FinFusion/pkg/logger"
	"FinFusion/pkg/queue"

	"github.com/labstack/echo/v4"
)

// HealthCheck pings one dependency.
type HealthCheck func(ctx context.Context) error

// AnalysisEchoHandler serves the analysis API.
type AnalysisEchoHandler struct {
	logger *xlogger.Logger
	svc    *usecase.AnalysisService
	bars   *usecase.BarsUseCase
	jobs   queue.QueueService
	rl     *ratelimit.Limiter
	stats  *svcmetrics.Collector
	checks map[string]HealthCheck
}

type HandlerOption func(*AnalysisEchoHandler)

// WithJobQueue enables POST /api/analysis/jobs.
func WithJobQueue(q queue.QueueService) HandlerOption {
	return func(h *AnalysisEchoHandler) { h.jobs = q }
}

// WithBars enables GET /api/bars/:symbol.
func WithBars(b *usecase.BarsUseCase) HandlerOption {
	return func(h *AnalysisEchoHandler) { h.bars = b }
}

// WithRateLimit limits analysis runs per client IP.
func WithRateLimit(rps float64, burst int) HandlerOption {
	return func(h *AnalysisEchoHandler) {
		if rps > 0 {
			h.rl = ratelimit.New(rps, burst)
		}
	}
}

// WithStats enables GET /api/stats.
func WithStats(c *svcmetrics.Collector) HandlerOption {
	return func(h *AnalysisEchoHandler) { h.stats = c }
}

// WithHealthCheck adds a named dependency to /healthz.
func WithHealthCheck(name string, check HealthCheck) HandlerOption {
	return func(h *AnalysisEchoHandler) { h.checks[name] = check }
}

func NewAnalysisEchoHandler(logger *xlogger.Logger, svc *usecase.AnalysisService, opts ...HandlerOption) *AnalysisEchoHandler {
	if logger == nil {
		logger = xlogger.Nop()
	}
	h := &AnalysisEchoHandler{logger: logger, svc: svc, checks: make(map[string]HealthCheck)}
	for _, o := range opts {
		o(h)
	}
	return h
}

var _ xhttp.Handler = (*AnalysisEchoHandler)(nil)

func (h *AnalysisEchoHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", h.Health)

	g := e.Group("/api")
	g.POST("/analysis", h.Analyze)
	g.POST("/analysis/batch", h.AnalyzeBatch)
	g.POST("/analysis/jobs", h.EnqueueJob)
	g.GET("/analysis/:symbol/history", h.History)
	g.DELETE("/analysis/:symbol/cache", h.Invalidate)
	g.GET("/fusion/:symbol", h.Fusion)
	g.GET("/indicators/:symbol", h.Indicators)
	g.GET("/sentiment/:symbol", h.Sentiment)
	g.GET("/regime/:symbol", h.Regime)
	g.GET("/bars/:symbol", h.Bars)
	g.GET("/stats", h.Stats)
}

func (h *AnalysisEchoHandler) Analyze(c echo.Context) error {
	req := &models.AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.rl != nil && !h.rl.Allow(c.RealIP()+":analysis") {
		h.logger.Warn("analysis rate limited", xlogger.String("remote", c.RealIP()))
		return xhttp.TooManyRequestsResponse(c)
	}

	res, err := h.svc.Analyze(c.Request().Context(), *req)
	if err != nil {
		return h.fail(c, "analyze", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) AnalyzeBatch(c echo.Context) error {
	req := &models.BatchRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if h.rl != nil && !h.rl.Allow(c.RealIP()+":analysis") {
		return xhttp.TooManyRequestsResponse(c)
	}
	items := h.svc.AnalyzeBatch(c.Request().Context(), req.Symbols, req.UserID)
	return xhttp.ListResponse(c, items, int64(len(items)))
}

func (h *AnalysisEchoHandler) EnqueueJob(c echo.Context) error {
	if h.jobs == nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_UNAVAILABLE", "", "job queue disabled", http.StatusServiceUnavailable))
	}
	req := &models.AnalysisRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := usecase.EnqueueAnalysis(c.Request().Context(), h.jobs, *req); err != nil {
		return h.fail(c, "enqueue", err)
	}
	return xhttp.AcceptedResponse(c, map[string]string{"symbol": req.Symbol, "status": "queued"})
}

func (h *AnalysisEchoHandler) History(c echo.Context) error {
	req := &models.HistoryRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	rows, err := h.svc.History(c.Request().Context(), req.Symbol, req.Limit)
	if err != nil {
		return h.fail(c, "history", err)
	}
	return xhttp.ListResponse(c, rows, int64(len(rows)))
}

func (h *AnalysisEchoHandler) Invalidate(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	if err := h.svc.Invalidate(c.Request().Context(), req.Symbol); err != nil {
		return h.fail(c, "invalidate", err)
	}
	return xhttp.NoContentResponse(c)
}

func (h *AnalysisEchoHandler) Fusion(c echo.Context) error {
	req := &models.IndicatorsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.svc.Fusion(c.Request().Context(), req.Symbol, req.Period, req.Timeframe)
	if err != nil {
		return h.fail(c, "fusion", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) Indicators(c echo.Context) error {
	req := &models.IndicatorsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.svc.Indicators(c.Request().Context(), req.Symbol, req.Period, req.Timeframe)
	if err != nil {
		return h.fail(c, "indicators", err)
	}
	c.Response().Header().Set(echo.HeaderCacheControl, "private, max-age=60")
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) Sentiment(c echo.Context) error {
	req := &models.SymbolRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.svc.Sentiment(c.Request().Context(), req.Symbol)
	if err != nil {
		return h.fail(c, "sentiment", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) Regime(c echo.Context) error {
	req := &models.IndicatorsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.svc.Regime(c.Request().Context(), req.Symbol, req.Period, req.Timeframe)
	if err != nil {
		return h.fail(c, "regime", err)
	}
	return xhttp.SuccessResponse(c, res)
}

func (h *AnalysisEchoHandler) Bars(c echo.Context) error {
	if h.bars == nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_UNAVAILABLE", "", "market data disabled", http.StatusServiceUnavailable))
	}
	req := &models.BarsRequest{}
	if verr := xhttp.ReadAndValidateRequest(c, req); verr != nil {
		return xhttp.BadRequestResponse(c, verr)
	}
	res, err := h.bars.GetBars(c.Request().Context(), usecase.GetBarsParams{
		Symbol:    req.Symbol,
		From:      xhttp.ParseTimeDefault(req.From, time.Time{}),
		To:        xhttp.ParseTimeDefault(req.To, time.Time{}),
		Timeframe: domrepo.NormalizeTimeframe(req.Timeframe),
		Limit:     req.Limit,
	})
	if err != nil {
		return h.fail(c, "bars", err)
	}
	return xhttp.SuccessResponse(c, res)
}

// Health reports 503 when any registered dependency fails its ping.
func (h *AnalysisEchoHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(ctx); err != nil {
			deps[name] = err.Error()
			status = http.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}
	return c.JSON(status, xhttp.APIResponse{Status: status, Message: http.StatusText(status), Data: deps})
}

func (h *AnalysisEchoHandler) fail(c echo.Context, op string, err error) error {
	switch {
	case errors.Is(err, models.ErrInvalidSymbol):
		return xhttp.AppErrorResponse(c, xhttp.BadRequestError(err.Error()).WithError(err))
	case errors.Is(err, models.ErrInstrumentNotFound):
		return xhttp.AppErrorResponse(c, xhttp.NotFoundError(err.Error()).WithError(err))
	}
	h.logger.Error(op+" usecase error", xlogger.Error(err))
	return xhttp.AppErrorResponse(c, xhttp.InternalError(op+" failed").WithError(err))
}

// Stats returns in-process counters since startup.
func (h *AnalysisEchoHandler) Stats(c echo.Context) error {
	if h.stats == nil {
		return xhttp.AppErrorResponse(c, xhttp.NewAppError("ERR_UNAVAILABLE", "", "stats disabled", http.StatusServiceUnavailable))
	}
	return xhttp.SuccessResponse(c, h.stats.Snapshot())
}
