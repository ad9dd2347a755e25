package md

import (
	"context"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/rs/zerolog/log"
)

// AlpacaProvider builds snapshots from Alpaca crypto minute bars.
type AlpacaProvider struct {
	client  *marketdata.Client
	history int
	now     func() time.Time
}

func NewAlpacaProvider(apiKey, apiSecret string, history int) *AlpacaProvider {
	if history < MinHistory {
		history = MinHistory
	}
	return &AlpacaProvider{
		client: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
		}),
		history: history,
		now:     time.Now,
	}
}

func (p *AlpacaProvider) Snapshot(ctx context.Context, pair Pair) (Snapshot, error) {
	end := p.now().UTC()
	start := end.Add(-time.Duration(p.history*2) * time.Minute)

	type result struct {
		bars []marketdata.CryptoBar
		err  error
	}
	// The SDK call takes no context; bound it here.
	ch := make(chan result, 1)
	go func() {
		bars, err := p.client.GetCryptoBars(pair.Symbol("/"), marketdata.GetCryptoBarsRequest{
			TimeFrame: marketdata.OneMin,
			Start:     start,
			End:       end,
		})
		ch <- result{bars: bars, err: err}
	}()

	var res result
	select {
	case <-ctx.Done():
		return Snapshot{}, fmt.Errorf("%w: alpaca bars %s: %v", ErrUnavailable, pair, ctx.Err())
	case res = <-ch:
	}
	if res.err != nil {
		return Snapshot{}, fmt.Errorf("%w: alpaca bars %s: %v", ErrUnavailable, pair, res.err)
	}
	if len(res.bars) == 0 {
		return Snapshot{}, fmt.Errorf("%w: no alpaca bars for %s", ErrUnavailable, pair)
	}
	log.Debug().Str("pair", pair.String()).Int("bars", len(res.bars)).Msg("alpaca bars fetched")

	buf := NewRingBuffer(p.history)
	for _, bar := range res.bars {
		buf.Add(bar.Close)
	}
	return Compute(pair, buf, res.bars[len(res.bars)-1].Timestamp.UTC())
}
