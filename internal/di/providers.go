package di

import (
	"fmt"

	drepo "ChartDash/internal/domain/repository"
	"ChartDash/internal/handler/api"
	"ChartDash/internal/handler/ws"
	internalrepo "ChartDash/internal/repository"
	"ChartDash/internal/service/fred"
	"ChartDash/internal/service/ratelimit"
	"ChartDash/internal/usecase"
	"ChartDash/pkg/cache"
	"ChartDash/pkg/config"
	xhttp "ChartDash/pkg/http"
	pkgkafka "ChartDash/pkg/kafka"
	"ChartDash/pkg/logger"
	"ChartDash/pkg/metrics"
	"ChartDash/pkg/query"
	"ChartDash/pkg/server"
)

// ProvideKafkaProducer creates a Kafka producer. It returns nil when Kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.WriteTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideLogger creates the application logger. Error logs are aggregated and
// shipped to the logs topic when a producer is available.
func ProvideLogger(cfg *config.Config, producer *pkgkafka.Producer) (*logger.Logger, error) {
	l, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
		Output: cfg.Log.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	if producer != nil {
		l.AddCollector(&logger.CollectionConfig{
			TimeInterval:   cfg.Kafka.LogFlush.Interval,
			CountThreshold: cfg.Kafka.LogFlush.Threshold,
			Topic:          cfg.Kafka.LogsTopic,
			Instance:       cfg.InstanceID,
			Publisher:      producer,
		})
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus recorder on the default registry.
func ProvideMetrics() *metrics.Recorder {
	return metrics.New(nil)
}

func ProvideHTTPClient(cfg *config.Config) *xhttp.Client {
	return xhttp.NewClient(xhttp.WithTimeout(cfg.Backend.Timeout))
}

// ProvideCache creates the observation cache: memory, or memory in front of
// Redis when Redis is enabled.
func ProvideCache(cfg *config.Config) (cache.Service, error) {
	if !cfg.Cache.Redis.Enabled {
		return cache.NewMemoryCache(
			cache.WithMemoryMaxSize(cfg.Cache.MemoryMaxSize),
			cache.WithMemoryCleanup(cfg.Cache.CleanupInterval),
		), nil
	}
	rc, err := cache.NewRedisCache(
		cache.WithRedisAddr(cfg.Cache.Redis.Host, cfg.Cache.Redis.Port),
		cache.WithRedisAuth(cfg.Cache.Redis.Password, cfg.Cache.Redis.DB),
		cache.WithRedisPrefix(cfg.Cache.Redis.Prefix),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return cache.NewLayeredCache(rc, cache.WithLayeredMemory(cfg.Cache.MemoryMaxSize, cfg.Cache.MemoryTTL)), nil
}

func ProvideQueryClient(cfg *config.Config, rec *metrics.Recorder, l *logger.Logger) *query.Client {
	return query.New(
		query.WithDefaults(query.Defaults{
			Retry:         cfg.Query.Retry,
			RetryDelay:    cfg.Query.RetryDelay,
			MaxRetryDelay: cfg.Query.MaxRetryDelay,
			StaleTime:     cfg.Query.StaleTime,
		}),
		query.WithRetryPolicy(drepo.IsTransient),
		query.WithMaxEntries(cfg.Query.MaxEntries),
		query.WithMetrics(rec),
		query.WithLogger(l.With("query")),
	)
}

func ProvideChartRepository(httpClient *xhttp.Client, cfg *config.Config, rec *metrics.Recorder) drepo.ChartRepository {
	return internalrepo.NewChartClient(httpClient, cfg.Backend.BaseURL, rec)
}

func ProvideSeriesSource(httpClient *xhttp.Client, cfg *config.Config, c cache.Service, rec *metrics.Recorder, l *logger.Logger) drepo.SeriesSource {
	return fred.New(httpClient, cfg.Backend.BaseURL, cfg.Fred.APIKey,
		fred.WithCache(c, cfg.Fred.CacheTTL),
		fred.WithSearchDefaults(cfg.Fred.SearchLimit, cfg.Fred.FallbackSearch),
		fred.WithMetrics(rec),
		fred.WithLogger(l.With("fred")),
	)
}

// ProvideEventPublisher publishes chart events to Kafka, or drops them when
// Kafka is disabled.
func ProvideEventPublisher(producer *pkgkafka.Producer, cfg *config.Config) drepo.EventPublisher {
	if producer == nil {
		return internalrepo.NoopPublisher{}
	}
	return internalrepo.NewKafkaPublisher(producer, cfg.Kafka.EventsTopic)
}

func ProvideHub(qc *query.Client, l *logger.Logger) *ws.Hub {
	return ws.NewHub(qc, l)
}

func ProvideChartsUseCase(
	repo drepo.ChartRepository,
	qc *query.Client,
	pub drepo.EventPublisher,
	hub *ws.Hub,
	cfg *config.Config,
	l *logger.Logger,
) *usecase.ChartsUseCase {
	return usecase.NewChartsUseCase(repo, qc, pub, hub, cfg.Backend.PageSize, cfg.InstanceID, l)
}

func ProvideChartDataUseCase(qc *query.Client, source drepo.SeriesSource, cfg *config.Config, l *logger.Logger) *usecase.ChartDataUseCase {
	return usecase.NewChartDataUseCase(qc, source, cfg.Query.Prefetch, l)
}

func ProvideSeriesUseCase(source drepo.SeriesSource, cfg *config.Config) *usecase.SeriesUseCase {
	return usecase.NewSeriesUseCase(source, cfg.Fred.SearchLimit)
}

func ProvideLimiter(cfg *config.Config) *ratelimit.Limiter {
	return ratelimit.New(cfg.Fred.SearchRPS, cfg.Fred.SearchBurst)
}

func ProvideDashboardHandler(
	l *logger.Logger,
	charts *usecase.ChartsUseCase,
	data *usecase.ChartDataUseCase,
	series *usecase.SeriesUseCase,
	limiter *ratelimit.Limiter,
) *api.DashboardHandler {
	return api.NewDashboardHandler(l.With("api"), charts, data, series, limiter)
}

// ProvideKafkaConsumer creates a consumer for chart events. Every instance
// uses its own group so each one sees every event. Nil when Kafka is disabled.
func ProvideKafkaConsumer(cfg *config.Config, l *logger.Logger) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupPrefix+"-"+cfg.InstanceID),
		pkgkafka.WithConsumerStartOffset("latest"),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerLogger(l.With("kafka")),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	consumer.WithConsumerHook(pkgkafka.LogHook{
		HeaderFilterHook: pkgkafka.HeaderFilterHook{Key: internalrepo.SourceHeader, Value: cfg.InstanceID},
		Log:              l.With("kafka"),
	})
	return consumer, nil
}

func ProvideChartEventsHandler(cfg *config.Config, qc *query.Client, rec *metrics.Recorder, l *logger.Logger) *usecase.ChartEventsHandler {
	return usecase.NewChartEventsHandler(cfg.Kafka.EventsTopic, cfg.InstanceID, qc, rec, l)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *logger.Logger,
	dashboard *api.DashboardHandler,
	hub *ws.Hub,
	qc *query.Client,
	consumer *pkgkafka.Consumer,
	events *usecase.ChartEventsHandler,
	publisher drepo.EventPublisher,
	c cache.Service,
) *server.App {
	return server.New(cfg, l, server.Components{
		Handlers:  []xhttp.Handler{dashboard, hub},
		Hub:       hub,
		Query:     qc,
		Consumer:  consumer,
		Events:    events,
		Publisher: publisher,
		Cache:     c,
	})
}
