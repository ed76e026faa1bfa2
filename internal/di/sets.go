package di

import (
	"FinFusion/internal/usecase"

	"github.com/google/wire"
)

// PipelineSet builds the analysis stack without any server-side intake.
var PipelineSet = wire.NewSet(
	ProvideLogger,
	ProvideCollector,
	ProvideMetrics,
	ProvideClickHouseClient,
	ProvidePostgres,
	ProvideRedisClient,
	ProvideKafkaProducer,
	ProvideMarketDataSource,
	ProvideAnalysisStore,
	ProvideInstrumentRepository,
	ProvideCache,
	ProvideMemo,
	ProvideSentimentSources,
	ProvideQuantAnalyzer,
	ProvideSentimentAnalyzer,
	ProvideFusionEngine,
	ProvideRegimeClassifier,
	ProvideReasoner,
	ProvideRecommender,
	ProvideDeliveryPipeline,
	ProvideHub,
	ProvideAnalysisService,
)

// ServerSet adds the HTTP, Kafka and job queue intake on top of PipelineSet.
var ServerSet = wire.NewSet(
	PipelineSet,
	ProvideKafkaConsumer,
	ProvideBarsUseCase,
	ProvideJobQueue,
	ProvideAnalysisRequestHandler,
	ProvideHTTPHandler,
	ProvideHTTPServer,
	ProvideApp,
)

// Pipeline is the in-process analysis stack used by fusionctl.
type Pipeline struct {
	Service *usecase.AnalysisService
}

func ProvidePipeline(svc *usecase.AnalysisService) *Pipeline {
	return &Pipeline{Service: svc}
}
