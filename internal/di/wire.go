//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"EnergyPull/pkg/config"
	"EnergyPull/pkg/server"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Observability
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideRegistry,
		ProvideMetrics,

		// Infrastructure clients
		ProvideCache,
		ProvideClickHouseClient,

		// Repositories
		ProvideRunState,
		ProvideDatasetSink,
		ProvideRunPublisher,
		ProvideRawStore,
		ProvideDatasetWriter,
		ProvideArchiver,

		// Use cases
		ProvidePipelineRunner,
		ProvideScheduler,

		// Application server
		ProvideHTTPServer,
		ProvideResources,
		ProvideApp,
	)
	return &server.App{}, nil
}
