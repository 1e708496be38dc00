//go:build wireinject
// +build wireinject

package di

import (
	"TradeMaster/pkg/config"
	"TradeMaster/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Ambient
		ProvideLogger,
		ProvideMetrics,

		// Infrastructure clients
		ProvideClickHouseClient,
		ProvideRedisCache,
		ProvideKafkaProducer,
		ProvideKafkaConsumer,

		// Repositories
		ProvideEventArchive,
		ProvideDecisionPublisher,
		ProvideMarketData,
		ProvideMarketStream,

		// Engine services
		ProvideLedger,
		ProvideAssessor,
		ProvideCalculator,
		ProvideBook,
		ProvideGuard,
		ProvideController,
		ProvideAlertQueue,
		ProvideAlertSink,

		// Use cases
		ProvideEngine,
		ProvideScheduler,
		ProvideTradeFeedHandler,
		ProvideMarketCollector,
		ProvideEngineHandler,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
