//go:build wireinject
// +build wireinject

package di

import (
	"github.com/google/wire"

	"github.com/Vex788/zeus-trading-bot/internal/app"
	"github.com/Vex788/zeus-trading-bot/internal/config"
	"github.com/Vex788/zeus-trading-bot/internal/engine"
)

// InitializeApp wires up all dependencies and returns the application.
// Wire generates the implementation in wire_gen.go.
func InitializeApp(cfg config.Config) (*app.App, func(), error) {
	wire.Build(
		// Metrics
		ProvideRegistry,
		ProvideGatherer,
		ProvideMetrics,

		// Infrastructure clients
		ProvideMarketData,
		ProvideBroker,
		ProvideStores,
		wire.FieldsOf(new(Stores), "Trades", "Learning"),
		ProvideHub,
		ProvidePublisher,
		ProvideDecisionLogger,

		// Domain
		ProvideStrategy,
		ProvideLearningRegistry,
		ProvideLedger,
		ProvideStateStore,
		ProvideGate,
		wire.Struct(new(engine.Deps), "Provider", "Strategy", "Registry", "Gate", "Ledger", "State",
			"Broker", "Decisions", "Trades", "Learning", "Publisher", "Metrics"),
		ProvideEngine,

		// Application
		ProvideServer,
		ProvideApp,
	)
	return nil, nil, nil
}
