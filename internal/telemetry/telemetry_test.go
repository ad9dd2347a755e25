package telemetry

import (
	"context"
	"encoding/json"
	"errors"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recorder struct {
	events []Event
	err    error
}

func (r *recorder) Publish(_ context.Context, ev Event) error {
	r.events = append(r.events, ev)
	return r.err
}

func TestFanoutDeliversToAllAndJoinsErrors(t *testing.T) {
	ok := &recorder{}
	bad := &recorder{err: errors.New("down")}
	f := Fanout{ok, nil, bad}

	err := f.Publish(context.Background(), Event{Type: BotStatus})
	assert.ErrorContains(t, err, "down")
	assert.Len(t, ok.events, 1)
	assert.Len(t, bad.events, 1)

	assert.NoError(t, Fanout{ok}.Publish(context.Background(), Event{Type: BotStatus}))
	assert.NoError(t, Noop{}.Publish(context.Background(), Event{}))
}

func TestHubPublishDoesNotBlock(t *testing.T) {
	h := NewHub(1)
	require.NoError(t, h.Publish(context.Background(), Event{Type: BotStatus}))
	assert.ErrorIs(t, h.Publish(context.Background(), Event{Type: BotStatus}), ErrHubBusy)
}

func TestHubBroadcastsToWebsocketClients(t *testing.T) {
	h := NewHub(8)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go h.Run(ctx)

	srv := httptest.NewServer(h)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return h.Clients() == 1 }, time.Second, 10*time.Millisecond)

	ev := Event{Type: TradeExecution, Pair: "BTC-USDT", Timestamp: time.Unix(0, 0).UTC(), Data: map[string]string{"action": "BUY"}}
	require.NoError(t, h.Publish(ctx, ev))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, payload, err := conn.ReadMessage()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(payload, &got))
	assert.Equal(t, "TRADE_EXECUTION", got["type"])
	assert.Equal(t, "BTC-USDT", got["pair"])
}

func TestKafkaMessageKeysByPair(t *testing.T) {
	msg, err := message("zeus.events", Event{Type: MLPrediction, Pair: "ETH-USDT"})
	require.NoError(t, err)
	assert.Equal(t, "zeus.events", msg.Topic)
	assert.Equal(t, "ETH-USDT", string(msg.Key))
	assert.Equal(t, "ML_PREDICTION", string(msg.Headers[0].Value))

	msg, err = message("zeus.events", Event{Type: PortfolioUpdate})
	require.NoError(t, err)
	assert.Equal(t, "PORTFOLIO_UPDATE", string(msg.Key))
}

func TestNewKafkaValidates(t *testing.T) {
	_, err := NewKafka(KafkaConfig{Topic: "x"})
	assert.Error(t, err)
	_, err = NewKafka(KafkaConfig{Brokers: []string{"localhost:9092"}})
	assert.Error(t, err)
}
