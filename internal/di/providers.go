package di

import (
	"context"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"FinFusion/internal/domain/repository"
	"FinFusion/internal/domain/service"
	"FinFusion/internal/handler/api"
	"FinFusion/internal/handler/ws"
	mid "FinFusion/internal/middleware"
	internalrepo "FinFusion/internal/repository"
	svccache "FinFusion/internal/service/cache"
	svcmetrics "FinFusion/internal/service/metrics"
	"FinFusion/internal/service/marketdata"
	"FinFusion/internal/service/ratelimit"
	"FinFusion/internal/service/sources"
	"FinFusion/internal/services/fusion"
	"FinFusion/internal/services/indicators"
	"FinFusion/internal/services/reasoner"
	"FinFusion/internal/services/recommendation"
	"FinFusion/internal/services/regime"
	"FinFusion/internal/services/sentiment"
	"FinFusion/internal/usecase"
	pkgcache "FinFusion/pkg/cache"
	pkgch "FinFusion/pkg/clickhouse"
	"FinFusion/pkg/config"
	xhttp "FinFusion/pkg/http"
	pkgkafka "FinFusion/pkg/kafka"
	"FinFusion/pkg/logger"
	"FinFusion/pkg/metrics"
	"FinFusion/pkg/postgres"
	"FinFusion/pkg/queue"
	"FinFusion/pkg/server"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"
)

// Infrastructure providers return nil handles when their backend is disabled;
// consumers fall back to in-process implementations.

const initTimeout = 10 * time.Second

// ProvideLogger creates the structured application logger.
func ProvideLogger(cfg *config.Config) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l.With(logger.String("env", cfg.Environment)), nil
}

// The default registry rejects duplicate collectors, so every injector shares
// one recorder.
var defaultRecorder = sync.OnceValue(func() *metrics.Recorder {
	return metrics.New(prometheus.DefaultRegisterer)
})

func ProvideCollector() *svcmetrics.Collector {
	return svcmetrics.NewCollector()
}

// ProvideMetrics fans out to the process-wide Prometheus recorder and the
// in-process collector behind /api/stats.
func ProvideMetrics(c *svcmetrics.Collector) repository.Metrics {
	return svcmetrics.Tee{defaultRecorder(), c}
}

// ProvideClickHouseClient creates a ClickHouse client. Mock mode runs without it.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, func(), error) {
	if cfg.Mock.Enabled {
		return nil, func() {}, nil
	}
	client, err := pkgch.NewClient(
		pkgch.WithHost(cfg.ClickHouse.Host),
		pkgch.WithPort(cfg.ClickHouse.Port),
		pkgch.WithDatabase(cfg.ClickHouse.Database),
		pkgch.WithCredentials(cfg.ClickHouse.User, cfg.ClickHouse.Password),
		pkgch.WithMaxConnections(10, 5),
		pkgch.WithHTTP(cfg.ClickHouse.UseHTTP),
		pkgch.WithAsyncInsert(cfg.ClickHouse.AsyncInsert, cfg.ClickHouse.WaitForAsync),
		pkgch.WithTimeouts(cfg.ClickHouse.DialTimeout, cfg.ClickHouse.ReadTimeout, cfg.ClickHouse.WriteTimeout),
		pkgch.WithMaxExecutionTime(cfg.ClickHouse.MaxExecutionTime),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("clickhouse client: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := client.InitSchema(ctx, []string{"CREATE DATABASE IF NOT EXISTS " + cfg.ClickHouse.Database}); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return client, func() { _ = client.Close() }, nil
}

func chTable(cfg *config.Config, table string) string {
	return cfg.ClickHouse.Database + "." + table
}

// ProvideMarketDataSource reads bars from ClickHouse, or from the seeded
// random walk when ClickHouse is off.
func ProvideMarketDataSource(cfg *config.Config, ch *pkgch.Client, l *logger.Logger) (repository.MarketDataSource, error) {
	if ch == nil {
		l.Info("market data: synthetic random walk", logger.Int64("seed", cfg.Mock.Seed))
		return marketdata.NewSyntheticSource(cfg.Mock.Seed, marketdata.DefaultWalk()), nil
	}
	store := internalrepo.NewCHBarStore(ch.DB(), chTable(cfg, cfg.ClickHouse.BarsTable), l)
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, err
	}
	return store, nil
}

// ProvideAnalysisStore persists analyses to ClickHouse, or keeps a bounded
// in-memory history.
func ProvideAnalysisStore(cfg *config.Config, ch *pkgch.Client, l *logger.Logger) (repository.AnalysisStore, error) {
	var store repository.AnalysisStore
	if ch == nil {
		store = internalrepo.NewMemoryAnalysisStore(200)
	} else {
		store = internalrepo.NewCHAnalysisStore(ch.DB(), chTable(cfg, cfg.ClickHouse.AnalysesTable), l)
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := store.Init(ctx); err != nil {
		return nil, fmt.Errorf("analysis store: %w", err)
	}
	return store, nil
}

// ProvidePostgres opens the instrument catalog pool when enabled.
func ProvidePostgres(cfg *config.Config) (*postgres.Client, func(), error) {
	if !cfg.Postgres.Enabled {
		return nil, func() {}, nil
	}
	client, err := postgres.New(context.Background(), cfg.Postgres.DSN, cfg.Postgres.Timeout,
		postgres.WithMaxConns(cfg.Postgres.MaxConns),
		postgres.WithLifetimes(cfg.Postgres.ConnLife, cfg.Postgres.ConnIdle),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	ctx, cancel := context.WithTimeout(context.Background(), initTimeout)
	defer cancel()
	if err := client.Migrate(ctx, []string{internalrepo.InstrumentsSchema}); err != nil {
		client.Close()
		return nil, nil, fmt.Errorf("postgres: %w", err)
	}
	return client, client.Close, nil
}

// ProvideInstrumentRepository uses the Postgres catalog, or accepts any
// well-formed symbol without it.
func ProvideInstrumentRepository(pg *postgres.Client) repository.InstrumentRepository {
	if pg == nil {
		return internalrepo.NewStaticInstrumentRepository()
	}
	return internalrepo.NewPGInstrumentRepository(pg.Pool)
}

// ProvideRedisClient connects to Redis when enabled. The client is shared by
// the cache and the job queue.
func ProvideRedisClient(cfg *config.Config) (*redis.Client, func(), error) {
	if !cfg.Redis.Enabled {
		return nil, func() {}, nil
	}
	rc, err := pkgcache.NewRedisCache(
		pkgcache.WithRedisHost(cfg.Redis.Host),
		pkgcache.WithRedisPort(cfg.Redis.Port),
		pkgcache.WithRedisPassword(cfg.Redis.Password),
		pkgcache.WithRedisDB(cfg.Redis.DB),
		pkgcache.WithRedisPrefix(cfg.Redis.Prefix),
		pkgcache.WithRedisPool(cfg.Redis.PoolSize, cfg.Redis.MinIdle, cfg.Redis.PoolWait),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("redis: %w", err)
	}
	return rc.Client(), func() { _ = rc.Close() }, nil
}

// ProvideCache layers an in-process LRU over Redis, or uses the LRU alone.
func ProvideCache(cfg *config.Config, rc *redis.Client) (pkgcache.Service, func()) {
	if rc == nil {
		mc := pkgcache.NewMemoryCache(
			pkgcache.WithMemoryMaxSize(cfg.Cache.MemorySize),
			pkgcache.WithMemoryCleanup(cfg.Cache.CleanupInterval),
		)
		return mc, func() { _ = mc.Close() }
	}
	lc := pkgcache.NewLayeredCache(
		pkgcache.NewRedisCacheFromClient(rc, cfg.Redis.Prefix),
		pkgcache.WithLayeredMemorySize(cfg.Cache.MemorySize),
		pkgcache.WithLayeredL1TTL(30*time.Second),
	)
	return lc, func() { _ = lc.Close() }
}

func ProvideMemo(store pkgcache.Service, m repository.Metrics, l *logger.Logger) *svccache.Memo {
	return svccache.NewMemo(store, m, l)
}

// SentimentSources groups the optional sentiment inputs.
type SentimentSources struct {
	News    repository.NewsSource
	Social  repository.SocialSource
	Analyst repository.AnalystSource
}

// ProvideSentimentSources picks deterministic mocks in mock mode, otherwise
// Finnhub for all three inputs with RSS overriding news when enabled.
func ProvideSentimentSources(cfg *config.Config, l *logger.Logger) SentimentSources {
	if cfg.Mock.Enabled {
		mock := sources.NewMockSources(rand.New(rand.NewSource(cfg.Mock.Seed)),
			sources.WithReferencePrice(marketdata.DefaultWalk().Start))
		return SentimentSources{News: mock, Social: mock, Analyst: mock}
	}

	var s SentimentSources
	if cfg.Finnhub.Enabled {
		fh := sources.NewFinnhubClient(cfg.Finnhub.BaseURL, cfg.Finnhub.APIKey, cfg.Finnhub.Timeout,
			sources.WithFinnhubLimiter(ratelimit.New(cfg.Finnhub.RPS, cfg.Finnhub.Burst)),
			sources.WithNewsWindow(cfg.Finnhub.NewsWindow),
			sources.WithFinnhubLogger(l),
		)
		s.News, s.Social, s.Analyst = fh, fh, fh
	}
	if cfg.News.RSSEnabled {
		s.News = sources.NewRSSNewsSource(cfg.News.RSSURL, cfg.News.Language, cfg.News.Country,
			cfg.News.MaxArticles, cfg.News.Timeout, l)
	}
	if s.News == nil && s.Social == nil && s.Analyst == nil {
		l.Warn("no sentiment sources configured; sentiment will be neutral")
	}
	return s
}

func ProvideQuantAnalyzer(
	cfg *config.Config,
	source repository.MarketDataSource,
	memo *svccache.Memo,
	m repository.Metrics,
	l *logger.Logger,
) service.QuantAnalyzer {
	engine := indicators.NewEngine(indicators.WithLogger(l))
	return indicators.NewProvider(engine, source, memo, cfg.Cache.QuantTTL, m, l)
}

func ProvideSentimentAnalyzer(
	cfg *config.Config,
	srcs SentimentSources,
	store pkgcache.Service,
	memo *svccache.Memo,
	m repository.Metrics,
	l *logger.Logger,
) service.SentimentAnalyzer {
	opts := []sentiment.Option{
		sentiment.WithHistory(sentiment.NewCacheHistory(store, cfg.Cache.SentimentHistory)),
		sentiment.WithMemo(memo, cfg.Cache.SentimentTTL),
		sentiment.WithMetrics(m),
		sentiment.WithLogger(l),
	}
	if srcs.News != nil {
		opts = append(opts, sentiment.WithNews(srcs.News))
	}
	if srcs.Social != nil {
		opts = append(opts, sentiment.WithSocial(srcs.Social))
	}
	if srcs.Analyst != nil {
		opts = append(opts, sentiment.WithAnalyst(srcs.Analyst))
	}
	return sentiment.NewEngine(opts...)
}

func ProvideFusionEngine(
	cfg *config.Config,
	quant service.QuantAnalyzer,
	sent service.SentimentAnalyzer,
	memo *svccache.Memo,
	m repository.Metrics,
	l *logger.Logger,
) *fusion.Engine {
	return fusion.NewEngine(quant, sent,
		fusion.WithMemo(memo, cfg.Cache.FusionTTL),
		fusion.WithParallelFetch(cfg.Pipeline.ParallelFetch),
		fusion.WithMetrics(m),
		fusion.WithLogger(l),
	)
}

func ProvideRegimeClassifier(l *logger.Logger) service.RegimeClassifier {
	return regime.NewClassifier(l)
}

// ProvideReasoner builds the configured LLM client behind a circuit breaker.
// A nil reasoner makes the orchestrator use the rule-based fallback only.
func ProvideReasoner(cfg *config.Config, l *logger.Logger) (service.Reasoner, error) {
	rc := cfg.Reasoner
	if !rc.Enabled {
		l.Info("reasoner disabled; recommendations use the rule-based fallback")
		return nil, nil
	}

	var next service.Reasoner
	switch rc.Provider {
	case "openai":
		r, err := reasoner.NewEinoReasoner(context.Background(), rc.BaseURL, rc.APIKey, rc.Model, rc.MaxTokens)
		if err != nil {
			return nil, fmt.Errorf("eino reasoner: %w", err)
		}
		next = r
	default:
		next = reasoner.NewAnthropicReasoner(rc.BaseURL, rc.APIKey, rc.Model, rc.MaxTokens, rc.Timeout)
	}
	l.Info("reasoner enabled", logger.String("provider", rc.Provider), logger.String("model", rc.Model))
	return reasoner.NewBreakerReasoner(next, rc.BreakerFailures, rc.BreakerCooldown, l), nil
}

func ProvideRecommender(cfg *config.Config, r service.Reasoner, m repository.Metrics, l *logger.Logger) service.Recommender {
	return recommendation.NewOrchestrator(r,
		recommendation.WithRetries(cfg.Pipeline.MaxRetries),
		recommendation.WithTemperature(cfg.Pipeline.InitialTemperature, cfg.Pipeline.TemperatureStep),
		recommendation.WithRetryDelay(cfg.Pipeline.RetryDelay),
		recommendation.WithMaxTokens(cfg.Reasoner.MaxTokens),
		recommendation.WithCostPer1K(cfg.Reasoner.CostPer1KTokens),
		recommendation.WithMetrics(m),
		recommendation.WithLogger(l),
	)
}

// ProvideKafkaProducer creates a Kafka producer when Kafka is enabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, func(), error) {
	if !cfg.Kafka.Enabled {
		return nil, func() {}, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatching(cfg.Kafka.Producer.BatchSize, cfg.Kafka.Producer.BatchBytes, cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
	)
	if err != nil {
		return nil, nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, func() { _ = producer.Close() }, nil
}

// ProvideDeliveryPipeline publishes finished analyses to Kafka with
// buffering and redelivery. Nil without a producer.
func ProvideDeliveryPipeline(cfg *config.Config, producer *pkgkafka.Producer, m repository.Metrics, l *logger.Logger) *mid.DeliveryPipeline {
	if producer == nil {
		return nil
	}
	pub := internalrepo.NewKafkaAnalysisPublisher(producer, cfg.Kafka.AnalysesTopic)
	return mid.NewDeliveryPipeline(mid.PublisherSink(pub), m,
		mid.WithMinInterval(time.Second),
		mid.WithBufferSize(1000),
		mid.WithPipelineLogger(l),
	)
}

func ProvideHub(l *logger.Logger) *ws.Hub {
	return ws.NewHub(l)
}

func ProvideAnalysisService(
	cfg *config.Config,
	instruments repository.InstrumentRepository,
	engine *fusion.Engine,
	classifier service.RegimeClassifier,
	recommender service.Recommender,
	store repository.AnalysisStore,
	pipe *mid.DeliveryPipeline,
	hub *ws.Hub,
	memo *svccache.Memo,
	m repository.Metrics,
	l *logger.Logger,
) *usecase.AnalysisService {
	opts := []usecase.ServiceOption{
		usecase.WithBroadcaster(hub),
		usecase.WithInvalidator(memo),
		usecase.WithServiceMetrics(m),
		usecase.WithServiceLogger(l),
		usecase.WithTimeout(cfg.Pipeline.Timeout),
		usecase.WithBatchConcurrency(cfg.Pipeline.BatchConcurrency),
	}
	if pipe != nil {
		opts = append(opts, usecase.WithDispatcher(pipe))
	}
	return usecase.NewAnalysisService(instruments, engine, classifier, recommender, store, opts...)
}

func ProvideBarsUseCase(source repository.MarketDataSource) *usecase.BarsUseCase {
	return usecase.NewBarsUseCase(source)
}

// ProvideJobQueue creates the Redis job queue with the analysis job
// registered. Nil unless both the queue and Redis are enabled.
func ProvideJobQueue(cfg *config.Config, rc *redis.Client, svc *usecase.AnalysisService, l *logger.Logger) *queue.RedisQueue {
	if !cfg.Queue.Enabled || rc == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:       cfg.Queue.Workers,
		RetryLimit:    cfg.Queue.RetryLimit,
		RetryDelay:    cfg.Queue.RetryDelay,
		MaxRetryDelay: cfg.Queue.MaxRetryDelay,
	}, rc, queue.WithKeyPrefix(cfg.Queue.Prefix))
	q.RegisterJob(usecase.NewAnalysisJob(svc, l))
	return q
}

// ProvideKafkaConsumer consumes analysis requests when Kafka is enabled.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerAutoOffsetReset(cfg.Kafka.Consumer.OffsetReset),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
		pkgkafka.WithConsumerLogger(l),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.NewHookChain(pkgkafka.TraceHook()))
	return consumer, nil
}

func ProvideAnalysisRequestHandler(cfg *config.Config, svc *usecase.AnalysisService, m repository.Metrics, l *logger.Logger) *usecase.AnalysisRequestHandler {
	return usecase.NewAnalysisRequestHandler(cfg.Kafka.RequestsTopic, svc, m, l)
}

// ProvideHTTPHandler mounts the REST API and the analysis stream.
func ProvideHTTPHandler(
	cfg *config.Config,
	svc *usecase.AnalysisService,
	bars *usecase.BarsUseCase,
	jobs *queue.RedisQueue,
	hub *ws.Hub,
	store repository.AnalysisStore,
	ch *pkgch.Client,
	pg *postgres.Client,
	rc *redis.Client,
	stats *svcmetrics.Collector,
	l *logger.Logger,
) xhttp.Handler {
	opts := []api.HandlerOption{
		api.WithBars(bars),
		api.WithStats(stats),
		api.WithRateLimit(cfg.Server.RateLimitRPS, cfg.Server.RateLimitBurst),
		api.WithHealthCheck("store", store.Health),
	}
	if jobs != nil {
		opts = append(opts, api.WithJobQueue(jobs), api.WithHealthCheck("job_queue", jobs.Health))
	}
	if ch != nil {
		opts = append(opts, api.WithHealthCheck("clickhouse", ch.Health))
	}
	if pg != nil {
		opts = append(opts, api.WithHealthCheck("postgres", pg.Health))
	}
	if rc != nil {
		opts = append(opts, api.WithHealthCheck("redis", func(ctx context.Context) error {
			return rc.Ping(ctx).Err()
		}))
	}
	return xhttp.Handlers{api.NewAnalysisEchoHandler(l, svc, opts...), hub}
}

func ProvideHTTPServer(cfg *config.Config, h xhttp.Handler, l *logger.Logger) *xhttp.Server {
	return xhttp.NewServer(h,
		xhttp.WithPort(cfg.Server.Port),
		xhttp.WithTimeouts(cfg.Server.ReadTimeout, cfg.Server.WriteTimeout, cfg.Server.ShutdownTimeout),
		xhttp.WithCORS(cfg.Server.CORS, cfg.Server.CORSOrigins...),
		xhttp.WithSlowThreshold(cfg.Server.SlowThreshold),
		xhttp.WithServerLogger(l),
	)
}

// ProvideApp assembles the application and attaches the Kafka log collector
// when a topic is configured.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	srv *xhttp.Server,
	hub *ws.Hub,
	pipe *mid.DeliveryPipeline,
	consumer *pkgkafka.Consumer,
	kh *usecase.AnalysisRequestHandler,
	jobs *queue.RedisQueue,
	producer *pkgkafka.Producer,
) *server.App {
	if producer != nil && cfg.Log.CollectorTopic != "" {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   30 * time.Second,
			CountThreshold: 100,
			Topic:          cfg.Log.CollectorTopic,
			Publisher:      producer,
		})
	}
	opts := []server.Option{server.WithHub(hub)}
	if pipe != nil {
		opts = append(opts, server.WithDeliveryPipeline(pipe))
	}
	if consumer != nil {
		opts = append(opts, server.WithConsumer(consumer, kh))
	}
	if jobs != nil {
		opts = append(opts, server.WithJobQueue(jobs))
	}
	return server.New(cfg, l, srv, opts...)
}
