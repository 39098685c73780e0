//go:build wireinject
// +build wireinject

package di

import (
	"ChartDash/pkg/config"
	"ChartDash/pkg/server"

	"github.com/google/wire"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire will generate the implementation of this function.
func InitializeApp(cfg *config.Config) (*server.App, error) {
	wire.Build(
		// Infrastructure
		ProvideKafkaProducer,
		ProvideLogger,
		ProvideMetrics,
		ProvideHTTPClient,
		ProvideCache,
		ProvideQueryClient,

		// Repositories
		ProvideChartRepository,
		ProvideSeriesSource,
		ProvideEventPublisher,

		// Use cases
		ProvideHub,
		ProvideChartsUseCase,
		ProvideChartDataUseCase,
		ProvideSeriesUseCase,
		ProvideChartEventsHandler,

		// Transport
		ProvideLimiter,
		ProvideDashboardHandler,
		ProvideKafkaConsumer,

		// Application server
		ProvideApp,
	)
	return &server.App{}, nil
}
