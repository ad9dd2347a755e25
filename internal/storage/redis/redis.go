package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/Vex788/zeus-trading-bot/internal/learning"
	"github.com/Vex788/zeus-trading-bot/internal/state"
)

type Config struct {
	Addr      string
	Password  string
	DB        int
	Prefix    string
	MaxTrades int64
}

// Store keeps learning parameters in a hash and recent trades in a capped
// list per pair.
type Store struct {
	client    *goredis.Client
	prefix    string
	maxTrades int64
}

func New(cfg Config) (*Store, error) {
	if cfg.Prefix == "" {
		cfg.Prefix = "zeus"
	}
	if cfg.MaxTrades <= 0 {
		cfg.MaxTrades = 1000
	}
	client := goredis.NewClient(&goredis.Options{
		Addr:         cfg.Addr,
		Password:     cfg.Password,
		DB:           cfg.DB,
		PoolSize:     10,
		MinIdleConns: 2,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}
	return &Store{client: client, prefix: cfg.Prefix, maxTrades: cfg.MaxTrades}, nil
}

func (s *Store) Close() error {
	return s.client.Close()
}

func (s *Store) learningKey() string {
	return s.prefix + ":learning"
}

func (s *Store) tradesKey(pair string) string {
	return s.prefix + ":trades:" + pair
}

func (s *Store) PersistTrade(ctx context.Context, t state.Trade) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("marshal trade: %w", err)
	}
	key := s.tradesKey(t.Pair)
	pipe := s.client.TxPipeline()
	pipe.LPush(ctx, key, data)
	pipe.LTrim(ctx, key, 0, s.maxTrades-1)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis persist trade: %w", err)
	}
	return nil
}

func (s *Store) PersistLearningState(ctx context.Context, pair string, p learning.Parameters) error {
	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("marshal parameters: %w", err)
	}
	if err := s.client.HSet(ctx, s.learningKey(), pair, data).Err(); err != nil {
		return fmt.Errorf("redis persist learning %s: %w", pair, err)
	}
	return nil
}

func (s *Store) LoadLearningState(ctx context.Context, pair string) (learning.Parameters, bool, error) {
	data, err := s.client.HGet(ctx, s.learningKey(), pair).Bytes()
	if errors.Is(err, goredis.Nil) {
		return learning.Parameters{}, false, nil
	}
	if err != nil {
		return learning.Parameters{}, false, fmt.Errorf("redis load learning %s: %w", pair, err)
	}
	var p learning.Parameters
	if err := json.Unmarshal(data, &p); err != nil {
		return learning.Parameters{}, false, fmt.Errorf("decode learning %s: %w", pair, err)
	}
	return p, true, nil
}
