package binance

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jzajpt/orderbook-aggregator-service/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const depthEvent = `{
  "lastUpdateId": 160,
  "bids": [["0.0024", "10"], ["0.0025", "1.5"]],
  "asks": [["0.0026", "100"]]
}`

type chanSink chan *domain.OrderBookUpdateEvent

func (s chanSink) Publish(ctx context.Context, event *domain.OrderBookUpdateEvent) error {
	select {
	case s <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newTestAPI(endpoint string) *BinanceStreamAPI {
	symbol, _ := domain.NewMarketSymbol("eth", "btc")
	return NewBinanceStreamAPI(endpoint, symbol, 10, zap.NewNop())
}

func TestTopic(t *testing.T) {
	symbol, err := domain.NewMarketSymbolFromString("ETH/BTC")
	require.NoError(t, err)

	tests := []struct {
		depth    int
		expected string
	}{
		{3, "ethbtc@depth5@100ms"},
		{10, "ethbtc@depth10@100ms"},
		{15, "ethbtc@depth20@100ms"},
		{50, "ethbtc@depth20@100ms"},
	}
	for _, tt := range tests {
		api := NewBinanceStreamAPI("", symbol, tt.depth, zap.NewNop())
		assert.Equal(t, tt.expected, api.Topic())
	}
}

func TestHandleMessage_DepthEvent(t *testing.T) {
	api := newTestAPI("")

	event, err := api.handleMessage([]byte(depthEvent))
	require.NoError(t, err)
	require.NotNil(t, event)

	assert.Equal(t, domain.Exchange_Binance, event.Exchange)
	require.Len(t, event.OrderBook.Bids, 2)
	assert.Equal(t, "0.0025", event.OrderBook.Bids[0].Price.String(), "bids are re-sorted best first")
	assert.Equal(t, "1.5", event.OrderBook.Bids[0].Size.String())
	assert.Equal(t, domain.Side_Bid, event.OrderBook.Bids[0].Side)
	assert.Equal(t, domain.Exchange_Binance, event.OrderBook.Asks[0].Exchange)
	assert.False(t, event.ReceivedAt.IsZero())
}

func TestHandleMessage_Ack(t *testing.T) {
	api := newTestAPI("")

	event, err := api.handleMessage([]byte(`{"result":null,"id":312}`))
	assert.NoError(t, err)
	assert.Nil(t, event)

	event, err = api.handleMessage([]byte(`{"error":{"code":2,"msg":"Invalid request"},"id":313}`))
	assert.NoError(t, err)
	assert.Nil(t, event)
}

func TestHandleMessage_Malformed(t *testing.T) {
	api := newTestAPI("")

	tests := map[string]string{
		"NotJSON":      `{"lastUpdateId":`,
		"BadPrice":     `{"lastUpdateId":1,"bids":[["abc","1"]],"asks":[]}`,
		"MissingSize":  `{"lastUpdateId":1,"bids":[],"asks":[["1"]]}`,
		"NegativeSize": `{"lastUpdateId":1,"bids":[["1","-2"]],"asks":[]}`,
		"EmptyObject":  `{}`,
		"Notice":       `{"e":"serverShutdown","E":1700000000000}`,
	}
	for name, msg := range tests {
		t.Run(name, func(t *testing.T) {
			event, err := api.handleMessage([]byte(msg))
			assert.Error(t, err)
			assert.Nil(t, event)
		})
	}
}

func TestHandleMessage_NoBook(t *testing.T) {
	api := newTestAPI("")

	event, err := api.handleMessage([]byte(`{}`))
	assert.ErrorIs(t, err, ErrNoBook)
	assert.Nil(t, event)

	event, err = api.handleMessage([]byte(`{"lastUpdateId":7,"bids":[],"asks":[]}`))
	require.NoError(t, err)
	require.NotNil(t, event)
	assert.Equal(t, 0, event.OrderBook.Depth())
}

func TestRun_SubscribesAndPublishes(t *testing.T) {
	upgrader := websocket.Upgrader{}
	requests := make(chan WebSocketRequestModel, 4)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		var req WebSocketRequestModel
		if err := conn.ReadJSON(&req); err != nil {
			return
		}
		requests <- req

		_ = conn.WriteJSON(map[string]interface{}{"result": nil, "id": req.ReqId})
		_ = conn.WriteMessage(websocket.TextMessage, []byte(`not json`))
		_ = conn.WriteMessage(websocket.TextMessage, []byte(depthEvent))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	api := newTestAPI("ws" + strings.TrimPrefix(srv.URL, "http"))
	api.client.handshakeTimeout = 500 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := make(chanSink, 1)
	done := make(chan error, 1)
	go func() { done <- api.Run(ctx, sink) }()

	select {
	case req := <-requests:
		assert.Equal(t, "SUBSCRIBE", req.Method)
		assert.Equal(t, []string{"ethbtc@depth10@100ms"}, req.Params)
		assert.NotZero(t, req.ReqId)
	case <-time.After(5 * time.Second):
		t.Fatal("no subscribe request")
	}

	select {
	case event := <-sink:
		assert.Equal(t, domain.Exchange_Binance, event.Exchange)
		assert.Len(t, event.OrderBook.Bids, 2)
		assert.Len(t, event.OrderBook.Asks, 1)
	case <-time.After(5 * time.Second):
		t.Fatal("no order book event")
	}

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}
