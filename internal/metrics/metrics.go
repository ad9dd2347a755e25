package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/Vex788/zeus-trading-bot/internal/learning"
)

// Recorder exposes engine activity as Prometheus metrics. A nil Recorder
// drops everything.
type Recorder struct {
	cycles        *prometheus.CounterVec
	outcomes      *prometheus.CounterVec
	rejections    *prometheus.CounterVec
	trades        *prometheus.CounterVec
	cycleDuration prometheus.Histogram
	engineState   *prometheus.GaugeVec
	weights       *prometheus.GaugeVec
	thresholds    *prometheus.GaugeVec
	lastPrice     *prometheus.GaugeVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Recorder {
	f := promauto.With(reg)
	return &Recorder{
		cycles: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeus_cycles_total",
				Help: "Engine cycles by result",
			},
			[]string{"result"},
		),
		outcomes: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeus_instrument_outcomes_total",
				Help: "Per-instrument iteration outcomes",
			},
			[]string{"pair", "result"},
		),
		rejections: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeus_gate_rejections_total",
				Help: "Risk gate rejections by failed check",
			},
			[]string{"pair", "check"},
		),
		trades: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "zeus_trades_total",
				Help: "Executed trades",
			},
			[]string{"pair", "action", "mode"},
		),
		cycleDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "zeus_cycle_duration_seconds",
				Help:    "Wall time of one engine cycle",
				Buckets: prometheus.DefBuckets,
			},
		),
		engineState: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zeus_engine_state",
				Help: "1 for the current lifecycle state and mode",
			},
			[]string{"state", "mode"},
		),
		weights: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zeus_learning_weight",
				Help: "Current indicator weight",
			},
			[]string{"pair", "direction", "indicator"},
		),
		thresholds: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zeus_learning_threshold",
				Help: "Current RSI threshold",
			},
			[]string{"pair", "kind"},
		),
		lastPrice: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "zeus_last_price",
				Help: "Last snapshot price",
			},
			[]string{"pair"},
		),
	}
}

func (r *Recorder) RecordCycle(result string, d time.Duration) {
	if r == nil {
		return
	}
	r.cycles.WithLabelValues(result).Inc()
	r.cycleDuration.Observe(d.Seconds())
}

func (r *Recorder) RecordOutcome(pair, result string) {
	if r == nil {
		return
	}
	r.outcomes.WithLabelValues(pair, result).Inc()
}

func (r *Recorder) RecordRejection(pair, check string) {
	if r == nil {
		return
	}
	r.rejections.WithLabelValues(pair, check).Inc()
}

func (r *Recorder) RecordTrade(pair, action, mode string) {
	if r == nil {
		return
	}
	r.trades.WithLabelValues(pair, action, mode).Inc()
}

func (r *Recorder) RecordPrice(pair string, price float64) {
	if r == nil {
		return
	}
	r.lastPrice.WithLabelValues(pair).Set(price)
}

// SetEngineState zeroes the previous state series and marks the current one.
func (r *Recorder) SetEngineState(state, mode string) {
	if r == nil {
		return
	}
	r.engineState.Reset()
	r.engineState.WithLabelValues(state, mode).Set(1)
}

func (r *Recorder) SetParameters(pair string, p learning.Parameters) {
	if r == nil {
		return
	}
	for dir, w := range map[string]learning.Weights{"up": p.Up, "down": p.Down} {
		r.weights.WithLabelValues(pair, dir, "rsi").Set(w.RSI)
		r.weights.WithLabelValues(pair, dir, "macd").Set(w.MACD)
		r.weights.WithLabelValues(pair, dir, "bollinger").Set(w.Bollinger)
	}
	r.thresholds.WithLabelValues(pair, "oversold").Set(p.Oversold)
	r.thresholds.WithLabelValues(pair, "overbought").Set(p.Overbought)
}
