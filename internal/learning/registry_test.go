package learning

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func TestRegistryCreatesDefaultsOnFirstReference(t *testing.T) {
	reg := NewRegistry(0.05, Horizons{})
	e := reg.Get("BTC-USDT")
	require.Same(t, e, reg.Get("BTC-USDT"))

	e.Lock()
	defer e.Unlock()
	assert.Equal(t, DefaultParameters(), *e.Parameters())
}

func TestEvaluateFailedUpPrediction(t *testing.T) {
	reg := NewRegistry(0.05, Horizons{})
	e := reg.Get("BTC-USDT")
	e.Lock()
	defer e.Unlock()

	e.Record(PredictionRecord{Pair: "BTC-USDT", CreatedAt: t0.Add(-25 * time.Hour), Price: 100, PredictedUp: true})
	assert.False(t, e.Learned())
	evals := e.Evaluate(t0, 95)
	assert.True(t, e.Learned())

	require.Len(t, evals, 1)
	assert.False(t, evals[0].Correct)
	assert.False(t, evals[0].ActualUp)
	assert.True(t, e.Records()[0].Evaluated)

	p := e.Parameters()
	assert.InDelta(t, 0.95, p.Up.RSI, 1e-9)
	assert.InDelta(t, 0.95, p.Up.MACD, 1e-9)
	assert.InDelta(t, 0.95, p.Up.Bollinger, 1e-9)
	assert.Equal(t, Outcomes{Failure: 1}, p.UpStats)
	assert.Equal(t, Weights{RSI: 1, MACD: 1, Bollinger: 1}, p.Down)
}

func TestEvaluateSkipsYoungAndEvaluatedRecords(t *testing.T) {
	reg := NewRegistry(0.05, Horizons{})
	e := reg.Get("ETH-USDT")
	e.Lock()
	defer e.Unlock()

	e.Record(PredictionRecord{CreatedAt: t0.Add(-30 * time.Hour), Price: 10, PredictedUp: false, Evaluated: true})
	e.Record(PredictionRecord{CreatedAt: t0.Add(-2 * time.Hour), Price: 10, PredictedUp: true})

	assert.Empty(t, e.Evaluate(t0, 20))
	assert.Equal(t, 1, e.Pending())
	assert.Equal(t, DefaultParameters(), *e.Parameters())
}

func TestEvaluateProcessesInCreationOrder(t *testing.T) {
	reg := NewRegistry(0.05, Horizons{})
	e := reg.Get("BTC-USDT")
	e.Lock()
	defer e.Unlock()

	e.Record(PredictionRecord{CreatedAt: t0.Add(-48 * time.Hour), Price: 90, PredictedUp: true})
	e.Record(PredictionRecord{CreatedAt: t0.Add(-30 * time.Hour), Price: 110, PredictedUp: true})
	e.Record(PredictionRecord{CreatedAt: t0.Add(-26 * time.Hour), Price: 120, PredictedUp: false})

	evals := e.Evaluate(t0, 100)
	require.Len(t, evals, 3)
	assert.Equal(t, 90.0, evals[0].Record.Price)
	assert.Equal(t, 110.0, evals[1].Record.Price)
	assert.Equal(t, 120.0, evals[2].Record.Price)
	assert.Equal(t, []bool{true, false, true}, []bool{evals[0].Correct, evals[1].Correct, evals[2].Correct})
}

func TestEvaluatePurgesPastRetention(t *testing.T) {
	reg := NewRegistry(0.05, Horizons{})
	e := reg.Get("BTC-USDT")
	e.Lock()
	defer e.Unlock()

	e.Record(PredictionRecord{CreatedAt: t0.Add(-8 * 24 * time.Hour), Price: 1, PredictedUp: true})
	e.Record(PredictionRecord{CreatedAt: t0.Add(-time.Hour), Price: 1, PredictedUp: true})

	evals := e.Evaluate(t0, 2)
	assert.Len(t, evals, 1, "old record is still evaluated before it is dropped")
	require.Len(t, e.Records(), 1)
	assert.Equal(t, t0.Add(-time.Hour), e.Records()[0].CreatedAt)
}

func TestCustomHorizons(t *testing.T) {
	reg := NewRegistry(0.1, Horizons{Evaluation: time.Hour, Retention: 2 * time.Hour})
	e := reg.Get("BTC-USDT")
	e.Lock()
	defer e.Unlock()

	e.Record(PredictionRecord{CreatedAt: t0.Add(-90 * time.Minute), Price: 10, PredictedUp: true})
	evals := e.Evaluate(t0, 11)
	require.Len(t, evals, 1)
	assert.InDelta(t, 1.1, e.Parameters().Up.RSI, 1e-9)
}

func TestRestoreAndSnapshot(t *testing.T) {
	reg := NewRegistry(0.05, Horizons{})
	p := DefaultParameters()
	p.Oversold = 25
	reg.Restore("SOL-USDT", p)
	reg.Get("BTC-USDT")

	snap := reg.Snapshot()
	assert.Equal(t, 25.0, snap["SOL-USDT"].Oversold)
	assert.Equal(t, DefaultOversold, snap["BTC-USDT"].Oversold)
	assert.Equal(t, []string{"BTC-USDT", "SOL-USDT"}, reg.Pairs())
}

func TestConcurrentAdjustmentsAreNotLost(t *testing.T) {
	reg := NewRegistry(0.05, Horizons{})
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			e := reg.Get("BTC-USDT")
			e.Lock()
			e.Parameters().AdjustWeights(false, true)
			e.Unlock()
		}()
	}
	wg.Wait()

	p := reg.Snapshot()["BTC-USDT"]
	assert.Equal(t, 50, p.DownStats.Success)
	assert.InDelta(t, 1+50*0.05, p.Down.RSI, 1e-9)
}
