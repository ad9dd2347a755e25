package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"

	"github.com/Vex788/zeus-trading-bot/internal/learning"
)

func TestRecorder(t *testing.T) {
	r := New(prometheus.NewRegistry())

	r.RecordTrade("BTC-USDT", "BUY", "SHADOW")
	r.RecordTrade("BTC-USDT", "BUY", "SHADOW")
	r.RecordRejection("ETH-USDT", "confidence")
	r.RecordCycle("completed", 20*time.Millisecond)
	r.SetEngineState("RUNNING", "SHADOW")
	r.SetEngineState("PAUSED", "SHADOW")
	r.SetParameters("BTC-USDT", learning.DefaultParameters())

	assert.Equal(t, 2.0, testutil.ToFloat64(r.trades.WithLabelValues("BTC-USDT", "BUY", "SHADOW")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.rejections.WithLabelValues("ETH-USDT", "confidence")))
	assert.Equal(t, 1.0, testutil.ToFloat64(r.engineState.WithLabelValues("PAUSED", "SHADOW")))
	assert.Equal(t, 1, testutil.CollectAndCount(r.engineState))
	assert.Equal(t, 30.0, testutil.ToFloat64(r.thresholds.WithLabelValues("BTC-USDT", "oversold")))
}

func TestNilRecorderIsSafe(t *testing.T) {
	var r *Recorder
	r.RecordTrade("a", "b", "c")
	r.RecordCycle("completed", time.Second)
	r.SetParameters("a", learning.DefaultParameters())
}
