package di

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	awseventbridge "github.com/aws/aws-sdk-go-v2/service/eventbridge"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"coursecraft-backend/internal/config"
	"coursecraft-backend/internal/domain"
	"coursecraft-backend/internal/infrastructure/cache"
	"coursecraft-backend/internal/infrastructure/concurrency"
	"coursecraft-backend/internal/infrastructure/messaging"
	"coursecraft-backend/internal/infrastructure/messaging/eventbridge"
	"coursecraft-backend/internal/infrastructure/observability"
	dynamostore "coursecraft-backend/internal/infrastructure/persistence/dynamodb"
	"coursecraft-backend/internal/infrastructure/persistence/memory"
	"coursecraft-backend/internal/infrastructure/tracing"
	"coursecraft-backend/internal/interfaces/http/rest"
	"coursecraft-backend/internal/recovery"
	"coursecraft-backend/internal/repository"
	"coursecraft-backend/internal/service/generation"
	"coursecraft-backend/internal/service/ledger"
	"coursecraft-backend/internal/service/link"
	"coursecraft-backend/internal/service/llm"
	"coursecraft-backend/pkg/errors"
)

// ProvideLogger builds a production logger in production and a development
// logger elsewhere, at the configured level.
func ProvideLogger(cfg *config.Config) (*zap.Logger, func(), error) {
	var zcfg zap.Config
	if cfg.IsProduction() {
		zcfg = zap.NewProductionConfig()
	} else {
		zcfg = zap.NewDevelopmentConfig()
	}
	level, err := zap.ParseAtomicLevel(cfg.Server.LogLevel)
	if err != nil {
		return nil, nil, fmt.Errorf("invalid log level %q: %w", cfg.Server.LogLevel, err)
	}
	zcfg.Level = level

	logger, err := zcfg.Build()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build logger: %w", err)
	}
	logger = logger.With(zap.String("service", cfg.Observability.ServiceName))
	return logger, func() { _ = logger.Sync() }, nil
}

// ProvideMetrics creates the Prometheus collector.
func ProvideMetrics() *observability.Collector {
	return observability.NewCollector("coursecraft")
}

// ProvideTracing starts OpenTelemetry export when an endpoint is configured.
func ProvideTracing(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*tracing.TracerProvider, func(), error) {
	tp, err := tracing.InitTracing(ctx, cfg.Observability.ServiceName, cfg.Server.Environment, cfg.Observability.TracingEndpoint)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Warn("failed to flush traces", zap.Error(err))
		}
	}
	return tp, cleanup, nil
}

func ProvideTracer(tp *tracing.TracerProvider) trace.Tracer {
	return tp.Tracer()
}

// ProvideAWSConfig loads AWS settings only when DynamoDB or EventBridge is in use.
func ProvideAWSConfig(ctx context.Context, cfg *config.Config) (aws.Config, error) {
	if cfg.Storage.Backend != config.BackendDynamoDB && cfg.AWS.EventBusName == "" {
		return aws.Config{Region: cfg.AWS.Region}, nil
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, awsconfig.WithRegion(cfg.AWS.Region))
	if err != nil {
		return aws.Config{}, fmt.Errorf("failed to load AWS config: %w", err)
	}
	return awsCfg, nil
}

// ProvideStore selects the storage backend and wraps it with tracing.
func ProvideStore(cfg *config.Config, awsCfg aws.Config, tracer trace.Tracer, metrics *observability.Collector, logger *zap.Logger) repository.Store {
	var store repository.Store
	switch cfg.Storage.Backend {
	case config.BackendDynamoDB:
		store = dynamostore.NewStore(dynamodb.NewFromConfig(awsCfg), cfg.AWS.TableName, logger)
	default:
		logger.Warn("Using in-memory storage; records are lost on restart")
		store = memory.NewStore()
	}
	return tracing.TraceStore(store, tracer, metrics)
}

// ProvideEventPublisher publishes to EventBridge when a bus is configured
// and to the log otherwise.
func ProvideEventPublisher(cfg *config.Config, awsCfg aws.Config, logger *zap.Logger) domain.EventPublisher {
	if cfg.AWS.EventBusName == "" {
		return messaging.NewLogPublisher(logger)
	}
	return eventbridge.NewPublisher(awseventbridge.NewFromConfig(awsCfg), cfg.AWS.EventBusName, logger)
}

// ProvideEntryStore returns the cache backend. Redis is pinged up front so
// a bad address fails startup instead of every request.
func ProvideEntryStore(ctx context.Context, cfg *config.Config) (cache.EntryStore, func(), error) {
	if cfg.Cache.Backend != config.BackendRedis {
		return cache.NewMemoryStore(), func() {}, nil
	}
	rdb := redis.NewClient(&redis.Options{Addr: cfg.Cache.RedisAddr})
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Cache.RedisAddr, err)
	}
	return cache.NewRedisStore(rdb, cfg.Cache.KeyPrefix), func() { _ = rdb.Close() }, nil
}

func ProvideFingerprintCache(cfg *config.Config, store cache.EntryStore, metrics *observability.Collector, logger *zap.Logger) *cache.FingerprintCache {
	return cache.New(store, cfg.Cache.TTL, cfg.Cache.MaxEntries,
		cache.WithRecorder(metrics),
		cache.WithLogger(logger),
	)
}

// ProvideLLMProvider builds the configured model backend behind a circuit breaker.
func ProvideLLMProvider(ctx context.Context, cfg *config.Config, logger *zap.Logger) (llm.Provider, error) {
	var provider llm.Provider
	switch cfg.LLM.Provider {
	case config.ProviderGemini:
		gemini, err := llm.NewGeminiProvider(ctx, cfg.LLM.APIKey, cfg.LLM.Model)
		if err != nil {
			return nil, err
		}
		provider = gemini
	default:
		logger.Info("Using mock LLM provider")
		provider = llm.NewMockProvider()
	}
	return llm.NewBreakerProvider(provider, cfg.BreakerConfig(), logger), nil
}

func ProvideLLMService(cfg *config.Config, provider llm.Provider, metrics *observability.Collector, logger *zap.Logger) *llm.Service {
	return llm.NewService(provider, logger, metrics, llm.WithTimeout(cfg.LLM.Timeout))
}

func ProvidePipeline(metrics *observability.Collector, logger *zap.Logger) *recovery.Pipeline {
	return recovery.NewPipeline(recovery.WithLogger(logger), recovery.WithObserver(metrics))
}

func ProvideGenerationService(
	llmService *llm.Service,
	pipeline *recovery.Pipeline,
	resultCache *cache.FingerprintCache,
	tracer trace.Tracer,
	logger *zap.Logger,
) *generation.Service {
	return generation.NewService(llmService, pipeline, resultCache, logger, generation.WithTracer(tracer))
}

// ProvideKeyedMutex is shared by the link manager and the ledger so both
// serialize on the same content keys.
func ProvideKeyedMutex() *concurrency.KeyedMutex {
	return concurrency.NewKeyedMutex()
}

func ProvideLinkManager(
	cfg *config.Config,
	store repository.Store,
	locks *concurrency.KeyedMutex,
	publisher domain.EventPublisher,
	metrics *observability.Collector,
	logger *zap.Logger,
) *link.Manager {
	return link.NewManager(store, cfg.RetryConfig(), logger,
		link.WithLocks(locks),
		link.WithPublisher(publisher),
		link.WithConflictRecorder(metrics),
	)
}

func ProvideLedger(
	cfg *config.Config,
	store repository.Store,
	locks *concurrency.KeyedMutex,
	publisher domain.EventPublisher,
	metrics *observability.Collector,
	logger *zap.Logger,
) *ledger.Ledger {
	return ledger.New(store, cfg.RetryConfig(), logger,
		ledger.WithLocks(locks),
		ledger.WithPublisher(publisher),
		ledger.WithRecorder(metrics),
	)
}

func ProvideErrorHandler(cfg *config.Config, logger *zap.Logger) *errors.ErrorHandler {
	return errors.NewErrorHandler(logger, cfg.IsDevelopment())
}

// ProvideRouter assembles the HTTP surface.
func ProvideRouter(
	cfg *config.Config,
	generationService *generation.Service,
	links *link.Manager,
	l *ledger.Ledger,
	errorHandler *errors.ErrorHandler,
	metrics *observability.Collector,
	tracer trace.Tracer,
	logger *zap.Logger,
) *chi.Mux {
	opts := []rest.Option{
		rest.WithAllowedOrigins(cfg.Server.AllowedOrigins),
		rest.WithTracer(tracer),
	}
	if cfg.Observability.MetricsEnabled {
		opts = append(opts, rest.WithMetrics(metrics.Handler(), metrics))
	}
	return rest.NewRouter(generationService, links, l, logger, errorHandler, opts...).Setup()
}
