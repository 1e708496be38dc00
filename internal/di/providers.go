package di

import (
	"context"
	"fmt"
	"time"

	"TradeMaster/internal/domain/models"
	domrepo "TradeMaster/internal/domain/repository"
	domservice "TradeMaster/internal/domain/service"
	"TradeMaster/internal/handler/api"
	mid "TradeMaster/internal/middleware"
	internalrepo "TradeMaster/internal/repository"
	"TradeMaster/internal/service/alerts"
	"TradeMaster/internal/service/marketdata"
	"TradeMaster/internal/service/ratelimit"
	"TradeMaster/internal/services/allocation"
	"TradeMaster/internal/services/portfolio"
	"TradeMaster/internal/services/protection"
	"TradeMaster/internal/services/regime"
	"TradeMaster/internal/services/risk"
	"TradeMaster/internal/usecase"
	"TradeMaster/pkg/cache"
	pkgch "TradeMaster/pkg/clickhouse"
	"TradeMaster/pkg/config"
	pkgkafka "TradeMaster/pkg/kafka"
	applogger "TradeMaster/pkg/logger"
	"TradeMaster/pkg/metrics"
	"TradeMaster/pkg/queue"
	"TradeMaster/pkg/server"
)

// ProvideLogger creates the application logger from config.
func ProvideLogger(cfg *config.Config) (*applogger.Logger, error) {
	l, err := applogger.New(&applogger.Config{
		Level:  cfg.Logger.Level,
		Format: cfg.Logger.Format,
		Output: cfg.Logger.Output,
	})
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	return l, nil
}

// ProvideMetrics creates a Prometheus metrics recorder.
func ProvideMetrics() domrepo.Metrics {
	return metrics.New()
}

// ProvideClickHouseClient creates a ClickHouse client, or nil when the
// archive is disabled.
func ProvideClickHouseClient(cfg *config.Config) (*pkgch.Client, error) {
	if !cfg.ClickHouse.Enabled {
		return nil, nil
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
		return nil, fmt.Errorf("clickhouse client: %w", err)
	}
	return client, nil
}

// ProvideEventArchive creates the trade/protection event archive over
// ClickHouse and initializes its schema.
func ProvideEventArchive(chClient *pkgch.Client, l *applogger.Logger) (domrepo.EventArchive, error) {
	if chClient == nil {
		return nil, nil
	}
	archive := internalrepo.NewCHEventArchive(chClient)
	archive.SetLogger(l)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := archive.Init(ctx); err != nil {
		return nil, fmt.Errorf("archive schema: %w", err)
	}
	return archive, nil
}

// ProvideRedisCache creates the shared Redis client, or nil when disabled.
func ProvideRedisCache(cfg *config.Config) (*cache.RedisCache, error) {
	if !cfg.Redis.Enabled {
		return nil, nil
	}
	c, err := cache.NewRedisCache(
		cache.WithRedisHost(cfg.Redis.Host),
		cache.WithRedisPort(cfg.Redis.Port),
		cache.WithRedisPassword(cfg.Redis.Password),
		cache.WithRedisDB(cfg.Redis.DB),
	)
	if err != nil {
		return nil, fmt.Errorf("redis cache: %w", err)
	}
	return c, nil
}

// ProvideMarketData creates the market-signal source, or nil when no
// provider is configured. Decisions then score inline signals only.
// With Redis available the signal cache is layered (process-local in
// front of Redis); otherwise it is memory-only.
func ProvideMarketData(cfg *config.Config, redisCache *cache.RedisCache, l *applogger.Logger) domservice.MarketDataSource {
	if cfg.MarketData.BaseURL == "" {
		return nil
	}
	var signalCache cache.Service
	if redisCache != nil {
		signalCache = cache.NewLayeredCache(redisCache)
	} else {
		signalCache = cache.NewMemoryCache()
	}
	opts := []marketdata.Option{
		marketdata.WithLogger(l),
		marketdata.WithCache(signalCache, cfg.MarketData.CacheTTL),
	}
	return marketdata.New(cfg.MarketData.BaseURL, cfg.MarketData.APIKey, cfg.MarketData.Timeout, opts...)
}

// ProvideLedger creates the portfolio ledger with the configured capital.
func ProvideLedger(cfg *config.Config) *portfolio.Ledger {
	return portfolio.NewLedger(cfg.Engine.InitialCapital)
}

// ProvideAssessor creates the risk assessor.
func ProvideAssessor() *risk.Assessor {
	return risk.NewAssessor()
}

// ProvideCalculator creates the allocation calculator, applying any
// configured overrides on top of the stock parameters.
func ProvideCalculator(cfg *config.Config) *allocation.Calculator {
	params := allocation.DefaultParams()
	a := cfg.Engine.Allocation
	if a.BaseAmount > 0 {
		params.BaseAmount = a.BaseAmount
	}
	if a.MinAmount > 0 {
		params.MinAmount = a.MinAmount
	}
	if a.MaxAmount > 0 {
		params.MaxAmount = a.MaxAmount
	}
	if a.MaxPortfolioRatio > 0 {
		params.PortfolioRatioPct = a.MaxPortfolioRatio
	}
	if a.StablecoinRatio > 0 {
		params.StablecoinRatioPct = a.StablecoinRatio
	}
	if a.ReinvestmentRate > 0 {
		params.ReinvestmentPct = a.ReinvestmentRate
	}
	if a.MaxCombinedMultiple > 0 {
		params.MaxCombinedMultiple = a.MaxCombinedMultiple
	}
	return allocation.NewCalculator(params)
}

// ProvideBook creates the allocation book.
func ProvideBook() *allocation.Book {
	return allocation.NewBook()
}

// ProvideGuard creates the protection guard with the stock trigger table.
func ProvideGuard() *protection.Guard {
	return protection.NewGuard(protection.DefaultConfig())
}

// ProvideController creates the regime controller reading the ledger.
func ProvideController(ledger *portfolio.Ledger) *regime.Controller {
	return regime.NewController(ledger)
}

// ProvideKafkaProducer creates a Kafka producer for the decision feed,
// or nil when kafka is disabled.
func ProvideKafkaProducer(cfg *config.Config) (*pkgkafka.Producer, error) {
	if !cfg.Kafka.Enabled || cfg.Kafka.DecisionsTopic == "" {
		return nil, nil
	}
	producer, err := pkgkafka.NewProducer(
		pkgkafka.WithBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithCompression(cfg.Kafka.Compression),
		pkgkafka.WithRequiredAcks(cfg.Kafka.RequiredAcks),
		pkgkafka.WithBatchSize(cfg.Kafka.Producer.BatchSize),
		pkgkafka.WithBatchBytes(cfg.Kafka.Producer.BatchBytes),
		pkgkafka.WithBatchTimeout(cfg.Kafka.Producer.Linger),
		pkgkafka.WithTimeouts(cfg.Kafka.Producer.WriteTimeout, cfg.Kafka.Producer.ReadTimeout),
		pkgkafka.WithMaxAttempts(cfg.Kafka.Producer.MaxAttempts),
		pkgkafka.WithAsync(cfg.Kafka.Producer.Async),
		pkgkafka.WithHashByKey(true),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka producer: %w", err)
	}
	return producer, nil
}

// ProvideDecisionPublisher creates the decision feed publisher.
func ProvideDecisionPublisher(producer *pkgkafka.Producer, cfg *config.Config) domrepo.DecisionPublisher {
	if producer == nil {
		return nil
	}
	return internalrepo.NewKafkaDecisionPublisher(producer, cfg.Kafka.DecisionsTopic)
}

// ProvideKafkaConsumer creates the fill-feed consumer, or nil when kafka
// is disabled.
func ProvideKafkaConsumer(cfg *config.Config) (*pkgkafka.Consumer, error) {
	if !cfg.Kafka.Enabled {
		return nil, nil
	}
	consumer, err := pkgkafka.NewConsumer(
		pkgkafka.WithConsumerBrokers(cfg.Kafka.Brokers),
		pkgkafka.WithConsumerGroupID(cfg.Kafka.Consumer.GroupID),
		pkgkafka.WithConsumerWorkers(cfg.Kafka.Consumer.Workers),
		pkgkafka.WithConsumerBufferSize(cfg.Kafka.Consumer.BufferSize),
		pkgkafka.WithConsumerRetry(cfg.Kafka.Consumer.RetryMax, cfg.Kafka.Consumer.BackoffMin, cfg.Kafka.Consumer.BackoffMax),
		pkgkafka.WithConsumerDLQ(cfg.Kafka.Consumer.DLQTopic),
		pkgkafka.WithConsumerFetch(cfg.Kafka.Consumer.MinBytes, cfg.Kafka.Consumer.MaxBytes),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka consumer: %w", err)
	}
	return consumer, nil
}

// ProvideAlertQueue creates the operator alert queue with the notifier job
// registered, or nil when Redis is disabled.
func ProvideAlertQueue(cfg *config.Config, redisCache *cache.RedisCache, l *applogger.Logger) *queue.RedisQueue {
	if redisCache == nil {
		return nil
	}
	q := queue.NewRedisQueue(l, &queue.QueueConfig{
		Workers:    cfg.Redis.Queue.Workers,
		RetryLimit: cfg.Redis.Queue.RetryLimit,
		RetryDelay: cfg.Redis.Queue.RetryDelay,
	}, redisCache.Client(), queue.ModeProducerConsumer)
	q.RegisterJob(alerts.NewNotifyJob(l))
	return q
}

// ProvideAlertSink creates the rate-limited protection alert sink.
func ProvideAlertSink(q *queue.RedisQueue, l *applogger.Logger) *alerts.Sink {
	if q == nil {
		return nil
	}
	return alerts.NewSink(q, ratelimit.New(), l)
}

// ProvideEngine assembles the orchestrator and fans the guard's events
// out to the archive and the alert queue.
func ProvideEngine(
	assessor *risk.Assessor,
	calculator *allocation.Calculator,
	book *allocation.Book,
	ledger *portfolio.Ledger,
	guard *protection.Guard,
	controller *regime.Controller,
	marketData domservice.MarketDataSource,
	archive domrepo.EventArchive,
	publisher domrepo.DecisionPublisher,
	sink *alerts.Sink,
	m domrepo.Metrics,
	l *applogger.Logger,
) *usecase.Engine {
	engine := usecase.NewEngine(assessor, calculator, book, ledger, guard, controller, marketData, archive, m, l)
	if publisher != nil {
		engine.SetDecisionPublisher(publisher)
	}

	guard.SetEventSink(func(ev models.ProtectionEvent) {
		engine.ArchiveProtectionEvent(ev)
		if sink != nil {
			go func(ev models.ProtectionEvent) {
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				if err := sink.Notify(ctx, ev); err != nil {
					l.Warn("alert notify failed", applogger.Error(err))
				}
			}(ev)
		}
	})
	return engine
}

// ProvideScheduler creates the periodic task scheduler.
func ProvideScheduler(cfg *config.Config, controller *regime.Controller, guard *protection.Guard, m domrepo.Metrics, l *applogger.Logger) *usecase.Scheduler {
	return usecase.NewScheduler(usecase.SchedulerConfig{
		RegimePeriod:   cfg.Engine.Scheduler.RegimePeriod,
		RecoveryPeriod: cfg.Engine.Scheduler.RecoveryPeriod,
		SweepPeriod:    cfg.Engine.Scheduler.SweepPeriod,
	}, controller, guard, m, l)
}

// ProvideTradeFeedHandler registers the fill-feed handler for the trades
// topic, or nil when kafka is disabled.
func ProvideTradeFeedHandler(cfg *config.Config, engine *usecase.Engine) *usecase.TradeFeedHandler {
	if !cfg.Kafka.Enabled {
		return nil
	}
	return usecase.NewTradeFeedHandler(cfg.Kafka.TradesTopic, engine)
}

// ProvideMarketStream creates the price WebSocket stream, or nil when no
// stream endpoint is configured.
func ProvideMarketStream(cfg *config.Config) domrepo.MarketStream {
	if cfg.MarketData.WebSocketURL == "" {
		return nil
	}
	return marketdata.NewStream(
		cfg.MarketData.APIKey,
		cfg.MarketData.WebSocketURL,
		cfg.MarketData.Symbols,
		cfg.MarketData.ReconnectDelay,
		cfg.MarketData.PingInterval,
	)
}

// ProvideMarketCollector creates the price collector feeding the ledger.
func ProvideMarketCollector(stream domrepo.MarketStream, ledger *portfolio.Ledger, m domrepo.Metrics) *usecase.MarketCollector {
	if stream == nil {
		return nil
	}
	pipe := mid.NewMarketPipeline(usecase.NewLedgerMarkSink(ledger), m,
		mid.WithMaxRPS(50),
		mid.WithBufferSize(2000),
	)
	return usecase.NewMarketCollector(stream, pipe, m)
}

// ProvideEngineHandler creates the HTTP handler for the engine API.
func ProvideEngineHandler(l *applogger.Logger, engine *usecase.Engine) *api.EngineHandler {
	return api.NewEngineHandler(l, engine)
}

// ProvideApp creates the application server.
func ProvideApp(
	cfg *config.Config,
	l *applogger.Logger,
	handler *api.EngineHandler,
	scheduler *usecase.Scheduler,
	collector *usecase.MarketCollector,
	consumer *pkgkafka.Consumer,
	feed *usecase.TradeFeedHandler,
	alertQueue *queue.RedisQueue,
	publisher domrepo.DecisionPublisher,
	chClient *pkgch.Client,
	redisCache *cache.RedisCache,
) *server.App {
	if consumer != nil {
		consumer.WithConsumerHook(pkgkafka.NoopHook{})
	}
	return server.New(cfg, l, handler, scheduler, collector, consumer, feed, alertQueue, publisher, chClient, redisCache)
}
