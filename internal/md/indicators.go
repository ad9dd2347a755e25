package md

import (
	"fmt"
	"math"
	"time"

	"gonum.org/v1/gonum/stat"
)

const (
	RSIPeriod       = 14
	MACDShortPeriod = 12
	MACDLongPeriod  = 26
	BollingerPeriod = 20
	BollingerK      = 2.0

	// MinHistory is the number of closes needed before every indicator is defined.
	MinHistory = MACDLongPeriod + RSIPeriod/2 + 2
)

// Compute derives a snapshot from the closes held in buf.
func Compute(pair Pair, buf *RingBuffer, ts time.Time) (Snapshot, error) {
	closes := buf.Values()
	if len(closes) < MinHistory {
		return Snapshot{}, fmt.Errorf("%w: %s has %d closes, need %d", ErrUnavailable, pair, len(closes), MinHistory)
	}
	price, _ := buf.Last()
	middle, err := buf.SMA(BollingerPeriod)
	if err != nil {
		return Snapshot{}, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	window, _ := buf.Tail(BollingerPeriod)
	upper, lower := Bollinger(window, middle, BollingerK)

	s := Snapshot{
		Pair:      pair,
		Timestamp: ts,
		Price:     price,
		RSI:       RSI(closes, RSIPeriod),
		MACD:      MACD(closes, MACDShortPeriod, MACDLongPeriod),
		BBUpper:   upper,
		BBMiddle:  middle,
		BBLower:   lower,
	}
	return s, s.Validate()
}

// RSI uses Wilder smoothing over the whole series.
func RSI(closes []float64, period int) float64 {
	if period <= 0 || len(closes) <= period {
		return 50
	}
	var gain, loss float64
	for i := 1; i <= period; i++ {
		g, l := change(closes[i-1], closes[i])
		gain += g
		loss += l
	}
	gain /= float64(period)
	loss /= float64(period)
	for i := period + 1; i < len(closes); i++ {
		g, l := change(closes[i-1], closes[i])
		gain = (gain*float64(period-1) + g) / float64(period)
		loss = (loss*float64(period-1) + l) / float64(period)
	}
	switch {
	case gain == 0 && loss == 0:
		return 50
	case loss == 0:
		return 100
	}
	rs := gain / loss
	return 100 - 100/(1+rs)
}

func change(prev, cur float64) (gain, loss float64) {
	d := cur - prev
	if d > 0 {
		return d, 0
	}
	return 0, -d
}

// EMA seeds with the first value, so it is defined for any non-empty series.
func EMA(values []float64, period int) float64 {
	if len(values) == 0 {
		return 0
	}
	k := 2 / float64(period+1)
	ema := values[0]
	for _, v := range values[1:] {
		ema = v*k + ema*(1-k)
	}
	return ema
}

// MACD is the short EMA minus the long EMA.
func MACD(closes []float64, short, long int) float64 {
	return EMA(closes, short) - EMA(closes, long)
}

// Bollinger returns the bands around middle using the population deviation of window.
func Bollinger(window []float64, middle, k float64) (upper, lower float64) {
	n := float64(len(window))
	if n < 2 {
		return middle, middle
	}
	_, variance := stat.MeanVariance(window, nil)
	sd := math.Sqrt(variance * (n - 1) / n)
	return middle + k*sd, middle - k*sd
}
