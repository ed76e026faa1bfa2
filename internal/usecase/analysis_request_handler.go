package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"FinFusion/internal/domain/models"
	domrepo "FinFusion/internal/domain/repository"
	pkgkafka "FinFusion/pkg/kafka"
	"FinFusion/pkg/logger"
)

// AnalysisRequestHandler consumes analysis requests from Kafka.
type AnalysisRequestHandler struct {
	topic    string
	analyzer Analyzer
	metrics  domrepo.Metrics
	log      *logger.Logger
}

var _ pkgkafka.MessageHandler = (*AnalysisRequestHandler)(nil)

func NewAnalysisRequestHandler(topic string, analyzer Analyzer, metrics domrepo.Metrics, log *logger.Logger) *AnalysisRequestHandler {
	if metrics == nil {
		metrics = domrepo.NopMetrics{}
	}
	if log == nil {
		log = logger.Nop()
	}
	return &AnalysisRequestHandler{topic: topic, analyzer: analyzer, metrics: metrics, log: log}
}

func (h *AnalysisRequestHandler) Topic() string { return h.topic }

// Handle expects {symbol, user_id, period, timeframe}. Malformed payloads and
// unknown symbols are errors, which routes them to the DLQ.
func (h *AnalysisRequestHandler) Handle(ctx context.Context, b []byte) error {
	var req models.AnalysisRequest
	if err := json.Unmarshal(b, &req); err != nil {
		h.metrics.RecordError("consumer_unmarshal")
		return fmt.Errorf("decode analysis request: %w", err)
	}

	if start, ok := pkgkafka.StartTime(ctx); ok {
		defer func() { h.metrics.RecordLatency("consumer_analysis", time.Since(start).Seconds()) }()
	}

	a, err := h.analyzer.Analyze(ctx, req)
	if err != nil {
		h.metrics.RecordError("consumer_analysis")
		return err
	}
	h.log.Info("analysis request handled",
		logger.Symbol(a.Symbol),
		logger.String("id", a.ID),
		logger.String("trace_id", pkgkafka.TraceID(ctx)),
		logger.String("recommendation", string(a.Recommendation)))
	return nil
}
