package di

import (
	"context"
	"fmt"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog/log"

	"github.com/Vex788/zeus-trading-bot/internal/api"
	"github.com/Vex788/zeus-trading-bot/internal/app"
	"github.com/Vex788/zeus-trading-bot/internal/broker"
	"github.com/Vex788/zeus-trading-bot/internal/config"
	"github.com/Vex788/zeus-trading-bot/internal/engine"
	"github.com/Vex788/zeus-trading-bot/internal/learning"
	"github.com/Vex788/zeus-trading-bot/internal/ledger"
	"github.com/Vex788/zeus-trading-bot/internal/md"
	"github.com/Vex788/zeus-trading-bot/internal/metrics"
	"github.com/Vex788/zeus-trading-bot/internal/risk"
	"github.com/Vex788/zeus-trading-bot/internal/state"
	"github.com/Vex788/zeus-trading-bot/internal/storage"
	chstore "github.com/Vex788/zeus-trading-bot/internal/storage/clickhouse"
	redisstore "github.com/Vex788/zeus-trading-bot/internal/storage/redis"
	"github.com/Vex788/zeus-trading-bot/internal/strategy"
	"github.com/Vex788/zeus-trading-bot/internal/telemetry"
)

const hubBuffer = 256

// Stores groups the durable sinks chosen by storage.backend.
type Stores struct {
	Trades   storage.TradeSink
	Learning storage.LearningStore
}

// ProvideRegistry creates the Prometheus registry served on /metrics.
func ProvideRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

func ProvideGatherer(reg *prometheus.Registry) prometheus.Gatherer { return reg }

func ProvideMetrics(reg *prometheus.Registry) *metrics.Recorder {
	return metrics.New(reg)
}

func ProvideDecisionLogger(cfg config.Config) (*engine.DecisionLogger, error) {
	d, err := engine.NewDecisionLogger(cfg.Engine.DecisionsPath, engine.NewRunID(time.Now()))
	if err != nil {
		return nil, fmt.Errorf("decision logger: %w", err)
	}
	return d, nil
}

func newBinanceClient(cfg config.Config) *binance.Client {
	binance.UseTestnet = cfg.Exchange.Testnet
	client := binance.NewClient(cfg.Exchange.APIKey, cfg.Exchange.APISecret)
	if cfg.Exchange.BaseURL != "" {
		client.BaseURL = cfg.Exchange.BaseURL
	}
	return client
}

// ProvideMarketData selects the snapshot source. Binance klines are public,
// so no credentials are needed there.
func ProvideMarketData(cfg config.Config) md.Provider {
	switch cfg.Market.Source {
	case "alpaca":
		return md.NewAlpacaProvider(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Market.History)
	default:
		return md.NewBinanceProvider(newBinanceClient(cfg), cfg.Market.Interval, cfg.Market.History)
	}
}

// ProvideBroker returns nil without credentials, which keeps the engine in
// shadow-only operation.
func ProvideBroker(cfg config.Config) broker.Broker {
	if cfg.Exchange.APIKey == "" || cfg.Exchange.APISecret == "" {
		log.Warn().Msg("no exchange credentials, production mode disabled")
		return nil
	}
	switch cfg.Exchange.Name {
	case "alpaca":
		return broker.NewAlpaca(cfg.Exchange.APIKey, cfg.Exchange.APISecret, cfg.Exchange.BaseURL)
	default:
		return broker.NewBinance(newBinanceClient(cfg))
	}
}

func ProvideStores(cfg config.Config) (Stores, func(), error) {
	var (
		trades  storage.Trades
		learn   storage.LearningStore = storage.Noop{}
		closers []func() error
	)
	cleanup := func() {
		for _, c := range closers {
			if err := c(); err != nil {
				log.Warn().Err(err).Msg("storage close failed")
			}
		}
	}

	backend := cfg.Storage.Backend
	if backend == "redis" || backend == "both" {
		rs, err := redisstore.New(redisstore.Config{
			Addr:     cfg.Storage.Redis.Addr,
			Password: cfg.Storage.Redis.Password,
			DB:       cfg.Storage.Redis.DB,
			Prefix:   cfg.Storage.Redis.Prefix,
		})
		if err != nil {
			return Stores{}, nil, err
		}
		closers = append(closers, rs.Close)
		trades = append(trades, rs)
		learn = rs
	}
	if backend == "clickhouse" || backend == "both" {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		ch, err := chstore.Open(ctx, cfg.Storage.ClickHouse.DSN)
		if err != nil {
			cleanup()
			return Stores{}, nil, err
		}
		closers = append(closers, ch.Close)
		trades = append(trades, ch)
	}
	log.Info().Str("backend", backend).Msg("storage ready")
	return Stores{Trades: trades, Learning: learn}, cleanup, nil
}

func ProvideHub() *telemetry.Hub {
	return telemetry.NewHub(hubBuffer)
}

func ProvidePublisher(cfg config.Config, hub *telemetry.Hub) (telemetry.Publisher, func(), error) {
	if !cfg.Telemetry.Kafka.Enabled {
		return hub, func() {}, nil
	}
	k, err := telemetry.NewKafka(telemetry.KafkaConfig{
		Brokers: cfg.Telemetry.Kafka.Brokers,
		Topic:   cfg.Telemetry.Kafka.Topic,
		Async:   true,
	})
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := k.Close(); err != nil {
			log.Warn().Err(err).Msg("kafka close failed")
		}
	}
	return telemetry.Fanout{hub, k}, cleanup, nil
}

func ProvideStrategy(cfg config.Config) strategy.Strategy {
	return strategy.NewScorer(cfg.OrderAmount)
}

func ProvideLearningRegistry(cfg config.Config) *learning.Registry {
	return learning.NewRegistry(cfg.Learning.WeightStep, learning.Horizons{
		Evaluation: cfg.Learning.EvaluationHorizon,
		Retention:  cfg.Learning.RetentionHorizon,
	})
}

func ProvideGate(cfg config.Config, store *state.Store) *risk.Gate {
	return risk.NewGate(cfg.RiskConfig(), store)
}

func ProvideLedger() *ledger.Ledger { return ledger.New() }

func ProvideStateStore() *state.Store { return state.NewStore() }

func ProvideEngine(cfg config.Config, deps engine.Deps) (*engine.Engine, error) {
	return engine.New(cfg, deps)
}

func ProvideServer(eng *engine.Engine, hub *telemetry.Hub, gatherer prometheus.Gatherer) *api.Server {
	return api.NewServer(eng, hub, gatherer)
}

func ProvideApp(cfg config.Config, eng *engine.Engine, server *api.Server, hub *telemetry.Hub, decisions *engine.DecisionLogger) *app.App {
	return app.New(cfg, eng, server, hub, decisions)
}
