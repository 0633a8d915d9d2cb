//go:build wireinject
// +build wireinject

package di

import (
	"CoinCast/pkg/config"
	"CoinCast/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Ingest
		ProvideMarketDataSource,
		ProvideCandleBuffer,
		ProvideMetaBuffer,
		ProvideCandlePoller,
		ProvideMetaPoller,
		ProvideMarketTable,

		// Prediction
		ProvideScaler,
		ProvideModel,
		ProvideCache,
		ProvideStateStore,
		ProvideOrchestrator,
		ProvideScheduler,

		// Archive
		ProvideClickHouseClient,
		ProvideKafkaProducer,
		ProvideArchive,
		ProvideConsumerHandlers,
		ProvideKafkaConsumer,

		// HTTP
		ProvideHandlers,
		ProvideHTTPServer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
