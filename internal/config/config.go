package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/Vex788/zeus-trading-bot/internal/md"
	"github.com/Vex788/zeus-trading-bot/internal/risk"
)

type Mode string

const (
	ModeProduction Mode = "PRODUCTION"
	ModeShadow     Mode = "SHADOW"
)

// ParseMode accepts any case.
func ParseMode(s string) (Mode, error) {
	switch m := Mode(strings.ToUpper(strings.TrimSpace(s))); m {
	case ModeProduction, ModeShadow:
		return m, nil
	}
	return "", fmt.Errorf("invalid mode %q: want PRODUCTION or SHADOW", s)
}

func (m *Mode) UnmarshalYAML(value *yaml.Node) error {
	parsed, err := ParseMode(value.Value)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}

type Config struct {
	Mode           Mode     `yaml:"mode" default:"SHADOW" validate:"oneof=PRODUCTION SHADOW"`
	TradingPairs   []string `yaml:"trading_pairs" default:"[\"BTC-USDT\",\"ETH-USDT\"]" validate:"min=1,dive,required"`
	VirtualBalance float64  `yaml:"virtual_balance" default:"100" validate:"gt=0"`
	OrderAmount    float64  `yaml:"order_amount" default:"0.001" validate:"gt=0"`

	Engine    Engine    `yaml:"engine"`
	Risk      Risk      `yaml:"risk"`
	Learning  Learning  `yaml:"learning"`
	Market    Market    `yaml:"market"`
	Exchange  Exchange  `yaml:"exchange"`
	Server    Server    `yaml:"server"`
	Log       Log       `yaml:"log"`
	Storage   Storage   `yaml:"storage"`
	Telemetry Telemetry `yaml:"telemetry"`
}

type Engine struct {
	CycleInterval     time.Duration `yaml:"cycle_interval" default:"30s" validate:"gt=0"`
	Workers           int           `yaml:"workers" default:"4" validate:"gte=1,lte=64"`
	CallTimeout       time.Duration `yaml:"call_timeout" default:"10s" validate:"gt=0"`
	ReconcileInterval time.Duration `yaml:"reconcile_interval" default:"1m" validate:"gt=0"`
	DecisionsPath     string        `yaml:"decisions_path" default:"decisions.ndjson"`
	CheckpointPath    string        `yaml:"checkpoint_path" default:"checkpoint.json"`
	AutoStart         bool          `yaml:"auto_start"`
}

type Risk struct {
	MaxPositionSizePercent float64 `yaml:"max_position_size_percent" default:"10" validate:"gt=0,lte=100"`
	StopLossPercent        float64 `yaml:"stop_loss_percent" default:"5" validate:"gt=0,lt=100"`
	TakeProfitPercent      float64 `yaml:"take_profit_percent" default:"15" validate:"gt=0"`
	MaxDailyLossPercent    float64 `yaml:"max_daily_loss_percent" default:"20" validate:"gt=0,lte=100"`
	MaxTradesPerHour       int     `yaml:"max_trades_per_hour" default:"10" validate:"gte=1"`
	MinTradeSize           float64 `yaml:"min_trade_size" default:"0.001" validate:"gt=0"`
}

type Learning struct {
	EvaluationHorizon time.Duration `yaml:"evaluation_horizon" default:"24h" validate:"gt=0"`
	RetentionHorizon  time.Duration `yaml:"retention_horizon" default:"168h" validate:"gt=0"`
	WeightStep        float64       `yaml:"weight_step" default:"0.05" validate:"gt=0,lt=1"`
}

type Market struct {
	Source   string `yaml:"source" default:"binance" validate:"oneof=binance alpaca"`
	Interval string `yaml:"interval" default:"1m"`
	History  int    `yaml:"history" default:"100" validate:"gte=35"`
}

type Exchange struct {
	Name      string `yaml:"name" default:"binance" validate:"oneof=binance alpaca"`
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	Testnet   bool   `yaml:"testnet"`
}

type Server struct {
	Addr string `yaml:"addr" default:":8080" validate:"required"`
}

type Log struct {
	Level      string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format     string `yaml:"format" default:"console" validate:"oneof=json console"`
	Output     string `yaml:"output" default:"stdout" validate:"oneof=stdout stderr file"`
	File       string `yaml:"file"`
	TimeFormat string `yaml:"time_format" default:"2006-01-02T15:04:05.000Z07:00"`
}

type Storage struct {
	Backend    string     `yaml:"backend" default:"none" validate:"oneof=none redis clickhouse both"`
	Redis      Redis      `yaml:"redis"`
	ClickHouse ClickHouse `yaml:"clickhouse"`
}

type Redis struct {
	Addr     string `yaml:"addr" default:"localhost:6379"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	Prefix   string `yaml:"prefix" default:"zeus"`
}

type ClickHouse struct {
	DSN string `yaml:"dsn" default:"clickhouse://default:@localhost:9000/default"`
}

type Telemetry struct {
	Kafka Kafka `yaml:"kafka"`
}

type Kafka struct {
	Enabled bool     `yaml:"enabled"`
	Brokers []string `yaml:"brokers"`
	Topic   string   `yaml:"topic" default:"zeus.events"`
}

// Pairs parses TradingPairs.
func (c Config) Pairs() ([]md.Pair, error) {
	out := make([]md.Pair, 0, len(c.TradingPairs))
	seen := make(map[md.Pair]bool, len(c.TradingPairs))
	for _, raw := range c.TradingPairs {
		p, err := md.ParsePair(raw)
		if err != nil {
			return nil, err
		}
		if seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out, nil
}

// RiskConfig converts the risk section for the gate.
func (c Config) RiskConfig() risk.Config {
	return risk.Config{
		MaxPositionSizePercent: decimal.NewFromFloat(c.Risk.MaxPositionSizePercent),
		StopLossPercent:        decimal.NewFromFloat(c.Risk.StopLossPercent),
		TakeProfitPercent:      decimal.NewFromFloat(c.Risk.TakeProfitPercent),
		MaxDailyLossPercent:    decimal.NewFromFloat(c.Risk.MaxDailyLossPercent),
		MaxTradesPerHour:       c.Risk.MaxTradesPerHour,
		MinTradeSize:           decimal.NewFromFloat(c.Risk.MinTradeSize),
	}
}

// Load builds the configuration from defaults, the YAML file at path (if
// any), .env and the environment. apply, when non-nil, runs last so CLI
// flags win; the result is validated afterwards.
func Load(path string, apply func(*Config)) (Config, error) {
	var cfg Config

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := loadDotEnvIfPresent(".env"); err != nil {
		return cfg, err
	}
	if err := applyEnv(&cfg); err != nil {
		return cfg, err
	}
	if err := defaults.Set(&cfg); err != nil {
		return cfg, fmt.Errorf("config defaults: %w", err)
	}
	if apply != nil {
		apply(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return cfg, err
	}
	return cfg, nil
}

// Default returns a validated configuration with every default applied.
func Default() Config {
	var cfg Config
	if err := defaults.Set(&cfg); err != nil {
		panic(err)
	}
	return cfg
}

var validate = validator.New()

func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s failed %q (value %v)", fe.Namespace(), fe.Tag(), fe.Value()))
			}
			return fmt.Errorf("invalid config: %s", strings.Join(msgs, "; "))
		}
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Pairs(); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if c.Learning.RetentionHorizon < c.Learning.EvaluationHorizon {
		return fmt.Errorf("invalid config: learning.retention_horizon must be >= learning.evaluation_horizon")
	}
	if c.Mode == ModeProduction && (c.Exchange.APIKey == "" || c.Exchange.APISecret == "") {
		return fmt.Errorf("invalid config: EXCHANGE_API_KEY and EXCHANGE_API_SECRET are required in PRODUCTION mode")
	}
	if c.Log.Output == "file" && c.Log.File == "" {
		return fmt.Errorf("invalid config: log.file is required when log.output is file")
	}
	if c.Telemetry.Kafka.Enabled && len(c.Telemetry.Kafka.Brokers) == 0 {
		return fmt.Errorf("invalid config: telemetry.kafka.brokers is required when kafka is enabled")
	}
	return nil
}

func applyEnv(cfg *Config) error {
	if v := os.Getenv("ZEUS_MODE"); v != "" {
		m, err := ParseMode(v)
		if err != nil {
			return fmt.Errorf("ZEUS_MODE: %w", err)
		}
		cfg.Mode = m
	}
	if v := os.Getenv("ZEUS_TRADING_PAIRS"); v != "" {
		cfg.TradingPairs = splitList(v)
	}
	if v := os.Getenv("ZEUS_VIRTUAL_BALANCE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("ZEUS_VIRTUAL_BALANCE: %w", err)
		}
		cfg.VirtualBalance = f
	}
	if v := os.Getenv("ZEUS_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("EXCHANGE_API_KEY"); v != "" {
		cfg.Exchange.APIKey = v
	}
	if v := os.Getenv("EXCHANGE_API_SECRET"); v != "" {
		cfg.Exchange.APISecret = v
	}
	if v := os.Getenv("REDIS_ADDR"); v != "" {
		cfg.Storage.Redis.Addr = v
	}
	if v := os.Getenv("KAFKA_BROKERS"); v != "" {
		cfg.Telemetry.Kafka.Brokers = splitList(v)
		cfg.Telemetry.Kafka.Enabled = true
	}
	if v := os.Getenv("CLICKHOUSE_DSN"); v != "" {
		cfg.Storage.ClickHouse.DSN = v
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Log.Level = strings.ToLower(v)
	}
	return nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
