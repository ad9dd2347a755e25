package clickhouse

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ClickHouse/clickhouse-go/v2"

	"github.com/Vex788/zeus-trading-bot/internal/state"
)

const createTrades = `CREATE TABLE IF NOT EXISTS trades (
	id String,
	pair String,
	action LowCardinality(String),
	amount Decimal(38, 18),
	price Decimal(38, 18),
	mode LowCardinality(String),
	virtual UInt8,
	order_id String,
	confidence Float64,
	stop_loss Decimal(38, 18),
	take_profit Decimal(38, 18),
	realized_pl Decimal(38, 18),
	executed_at DateTime64(3, 'UTC')
) ENGINE = MergeTree ORDER BY (pair, executed_at)`

const insertTrade = `INSERT INTO trades
	(id, pair, action, amount, price, mode, virtual, order_id, confidence, stop_loss, take_profit, realized_pl, executed_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`

// TradeSink appends executed trades to a ClickHouse MergeTree table.
type TradeSink struct {
	db *sql.DB
}

// Open connects with a clickhouse:// DSN and creates the trades table.
func Open(ctx context.Context, dsn string) (*TradeSink, error) {
	db, err := sql.Open("clickhouse", dsn)
	if err != nil {
		return nil, fmt.Errorf("clickhouse open: %w", err)
	}
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse ping: %w", err)
	}
	if _, err := db.ExecContext(ctx, createTrades); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("clickhouse schema: %w", err)
	}
	return &TradeSink{db: db}, nil
}

func (s *TradeSink) PersistTrade(ctx context.Context, t state.Trade) error {
	if _, err := s.db.ExecContext(ctx, insertTrade, row(t)...); err != nil {
		return fmt.Errorf("clickhouse insert trade %s: %w", t.ID, err)
	}
	return nil
}

func row(t state.Trade) []any {
	var virtual uint8
	if t.Virtual {
		virtual = 1
	}
	return []any{
		t.ID,
		t.Pair,
		string(t.Action),
		t.Amount.String(),
		t.Price.String(),
		t.Mode,
		virtual,
		t.OrderID,
		t.Confidence,
		t.StopLoss.String(),
		t.TakeProfit.String(),
		t.RealizedPL.String(),
		t.ExecutedAt.UTC(),
	}
}

func (s *TradeSink) Close() error {
	return s.db.Close()
}
