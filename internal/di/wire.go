//go:build wireinject
// +build wireinject

package di

import (
	"MarketSentry/pkg/config"
	"MarketSentry/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application. Wire
// generates wire_gen.go's implementation of this function from the provider
// set below.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		ProvideLogger,
		ProvideMetrics,
		ProvideClock,

		ProvideRedisCache,
		ProvideClickHouseClient,
		ProvideKafkaProducer,

		ProvideHotStore,
		ProvideColdStoreQueue,
		ProvideColdStore,

		ProvideVenueAdapters,
		ProvideZScoreEngine,
		ProvideMetricsEngine,
		ProvideAlertRegistry,

		ProvideKafkaBridge,
		ProvideDispatcher,
		ProvideAlertChannels,
		ProvideDetector,
		ProvidePipeline,

		ProvideHTTPHandler,
		ProvideApp,
	)
	return &server.App{}, nil
}
