package md

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/adshao/go-binance/v2"
	"github.com/rs/zerolog/log"
)

// BinanceProvider builds snapshots from Binance spot klines.
type BinanceProvider struct {
	client   *binance.Client
	interval string
	history  int
}

func NewBinanceProvider(client *binance.Client, interval string, history int) *BinanceProvider {
	if history < MinHistory {
		history = MinHistory
	}
	return &BinanceProvider{client: client, interval: interval, history: history}
}

func (p *BinanceProvider) Snapshot(ctx context.Context, pair Pair) (Snapshot, error) {
	klines, err := p.client.NewKlinesService().
		Symbol(pair.Symbol("")).
		Interval(p.interval).
		Limit(p.history).
		Do(ctx)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: binance klines %s: %v", ErrUnavailable, pair, err)
	}
	closes, ts, err := closesFromKlines(klines)
	if err != nil {
		return Snapshot{}, err
	}
	log.Debug().Str("pair", pair.String()).Int("bars", len(closes)).Msg("binance klines fetched")

	buf := NewRingBuffer(p.history)
	buf.AddAll(closes...)
	return Compute(pair, buf, ts)
}

func closesFromKlines(klines []*binance.Kline) ([]float64, time.Time, error) {
	if len(klines) == 0 {
		return nil, time.Time{}, fmt.Errorf("%w: no klines", ErrUnavailable)
	}
	closes := make([]float64, 0, len(klines))
	for _, k := range klines {
		v, err := strconv.ParseFloat(k.Close, 64)
		if err != nil {
			return nil, time.Time{}, fmt.Errorf("%w: bad close %q: %v", ErrUnavailable, k.Close, err)
		}
		closes = append(closes, v)
	}
	last := klines[len(klines)-1]
	return closes, time.UnixMilli(last.CloseTime).UTC(), nil
}
