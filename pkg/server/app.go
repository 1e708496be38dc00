package server

import (
	"context"
	"os"
	"os/signal"
	"syscall"
	"time"

	domrepo "TradeMaster/internal/domain/repository"
	"TradeMaster/internal/handler/api"
	"TradeMaster/internal/usecase"
	"TradeMaster/pkg/cache"
	pkgch "TradeMaster/pkg/clickhouse"
	"TradeMaster/pkg/config"
	xhttp "TradeMaster/pkg/http"
	pkgkafka "TradeMaster/pkg/kafka"
	applogger "TradeMaster/pkg/logger"
	"TradeMaster/pkg/queue"
)

// App encapsulates the entire application lifecycle.
type App struct {
	cfg        *config.Config
	log        *applogger.Logger
	handler    *api.EngineHandler
	scheduler  *usecase.Scheduler
	collector  *usecase.MarketCollector
	consumer   *pkgkafka.Consumer
	feed       *usecase.TradeFeedHandler
	alertQueue *queue.RedisQueue
	publisher  domrepo.DecisionPublisher
	chClient   *pkgch.Client
	redisCache *cache.RedisCache

	httpServer *xhttp.Server
}

// New creates a new App instance with all dependencies. Optional
// components (collector, consumer, queue, archive client) may be nil.
func New(
	cfg *config.Config,
	log *applogger.Logger,
	handler *api.EngineHandler,
	scheduler *usecase.Scheduler,
	collector *usecase.MarketCollector,
	consumer *pkgkafka.Consumer,
	feed *usecase.TradeFeedHandler,
	alertQueue *queue.RedisQueue,
	publisher domrepo.DecisionPublisher,
	chClient *pkgch.Client,
	redisCache *cache.RedisCache,
) *App {
	return &App{
		cfg:        cfg,
		log:        log,
		handler:    handler,
		scheduler:  scheduler,
		collector:  collector,
		consumer:   consumer,
		feed:       feed,
		alertQueue: alertQueue,
		publisher:  publisher,
		chClient:   chClient,
		redisCache: redisCache,
	}
}

// Run starts the application and blocks until interrupted.
func (a *App) Run() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	srvOpts := []xhttp.ServerOption{
		xhttp.WithPort(a.cfg.Server.Port),
		xhttp.WithTimeouts(a.cfg.Server.ReadTimeout, a.cfg.Server.WriteTimeout, a.cfg.Server.ShutdownTimeout),
	}
	if a.cfg.Metrics.Enabled {
		srvOpts = append(srvOpts, xhttp.WithRequestStats(a.log, time.Second))
	}
	a.httpServer = xhttp.NewServer(a.handler, srvOpts...)

	if a.alertQueue != nil {
		if err := a.alertQueue.Start(); err != nil {
			a.log.Error("alert queue start error", applogger.Error(err))
		} else {
			a.log.Info("alert queue started")
		}
	}

	if a.consumer != nil && a.feed != nil {
		a.consumer.RegisterHandler(a.feed)
		go func() {
			if err := a.consumer.Start(); err != nil {
				a.log.Error("kafka consumer error", applogger.Error(err))
			}
		}()
		a.log.Info("fill feed consumer started", applogger.String("topic", a.feed.Topic()))
	}

	if a.collector != nil {
		if err := a.collector.Start(ctx); err != nil {
			a.log.Error("market collector start error", applogger.Error(err))
		} else {
			a.log.Info("market collector started",
				applogger.Strings("symbols", a.cfg.MarketData.Symbols))
		}
	}

	a.scheduler.Start(ctx)
	a.log.Info("scheduler started")

	if err := a.httpServer.Start(); err != nil {
		a.log.Error("http server start error", applogger.Error(err))
		return err
	}
	a.log.Info("engine up", applogger.Int("port", a.cfg.Server.Port))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	<-sigCh

	a.log.Info("shutdown signal received")
	return a.shutdown(ctx)
}

// shutdown gracefully stops all services.
func (a *App) shutdown(ctx context.Context) error {
	a.scheduler.Stop()

	if a.collector != nil {
		if err := a.collector.Shutdown(ctx); err != nil {
			a.log.Warn("market collector stop error", applogger.Error(err))
		}
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := a.httpServer.Stop(shutdownCtx); err != nil {
		a.log.Error("http shutdown error", applogger.Error(err))
	}

	if a.consumer != nil {
		if err := a.consumer.Stop(shutdownCtx); err != nil {
			a.log.Warn("kafka consumer stop error", applogger.Error(err))
		}
	}

	if a.alertQueue != nil {
		if err := a.alertQueue.Stop(shutdownCtx); err != nil {
			a.log.Warn("alert queue stop error", applogger.Error(err))
		}
	}

	if a.publisher != nil {
		if err := a.publisher.Close(); err != nil {
			a.log.Warn("decision publisher close error", applogger.Error(err))
		}
	}

	if a.chClient != nil {
		if err := a.chClient.Close(); err != nil {
			a.log.Warn("clickhouse close error", applogger.Error(err))
		}
	}

	if a.redisCache != nil {
		if err := a.redisCache.Close(); err != nil {
			a.log.Warn("redis close error", applogger.Error(err))
		}
	}

	a.log.Info("shutdown complete")
	return nil
}
