package usecase

import (
	"context"
	"errors"
	"fmt"

	"FinFusion/internal/domain/models"
	"FinFusion/pkg/logger"
	"FinFusion/pkg/queue"
)

// AnalysisJobType is the queue message type for deferred analyses.
const AnalysisJobType = "analysis.requested"

// Analyzer runs one analysis.
type Analyzer interface {
	Analyze(ctx context.Context, req models.AnalysisRequest) (*models.FinalAnalysis, error)
}

// AnalysisJob runs queued analysis requests.
type AnalysisJob struct {
	analyzer Analyzer
	log      *logger.Logger
}

var _ queue.Job = (*AnalysisJob)(nil)

func NewAnalysisJob(analyzer Analyzer, log *logger.Logger) *AnalysisJob {
	if log == nil {
		log = logger.Nop()
	}
	return &AnalysisJob{analyzer: analyzer, log: log}
}

func (j *AnalysisJob) Name() string { return "analysis_job" }
func (j *AnalysisJob) Type() string { return AnalysisJobType }

// Handle returns an error only for failures worth retrying. Requests for
// invalid or unknown symbols are logged and dropped; undecodable payloads
// are dead-lettered.
func (j *AnalysisJob) Handle(ctx context.Context, payload interface{}) error {
	req, err := queue.ParsePayload[models.AnalysisRequest](payload)
	if err != nil {
		return queue.Permanent(fmt.Errorf("analysis job payload: %w", err))
	}
	a, err := j.analyzer.Analyze(ctx, *req)
	if err != nil {
		if isPermanent(err) {
			j.log.Warn("analysis job dropped", logger.Symbol(req.Symbol), logger.Error(err))
			return nil
		}
		return fmt.Errorf("analysis job %s: %w", req.Symbol, err)
	}
	j.log.Info("analysis job done",
		logger.Symbol(a.Symbol),
		logger.String("id", a.ID),
		logger.String("recommendation", string(a.Recommendation)))
	return nil
}

// EnqueueAnalysis schedules req on q.
func EnqueueAnalysis(ctx context.Context, q queue.QueueService, req models.AnalysisRequest) error {
	if err := q.PublishMessage(ctx, AnalysisJobType, req); err != nil {
		return fmt.Errorf("enqueue analysis: %w", err)
	}
	return nil
}

func isPermanent(err error) bool {
	return errors.Is(err, models.ErrInvalidSymbol) || errors.Is(err, models.ErrInstrumentNotFound)
}
