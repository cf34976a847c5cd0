package kucoin

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/Kucoin/kucoin-go-sdk"
	"github.com/jzajpt/orderbook-aggregator-service/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const snapshotData = `{
  "sequence": "3262786978",
  "time": 1700000000000,
  "bids": [["0.0515", "2"], ["0.0516", "0.5"]],
  "asks": [["0.0517", "1"], ["0.0518", "4"]]
}`

type fakeMarketAPI struct {
	mu      sync.Mutex
	calls   []string
	depths  []int64
	respond func(call int) (*kucoin.ApiResponse, error)
}

func (f *fakeMarketAPI) AggregatedPartOrderBook(symbol string, depth int64) (*kucoin.ApiResponse, error) {
	f.mu.Lock()
	f.calls = append(f.calls, symbol)
	f.depths = append(f.depths, depth)
	call := len(f.calls)
	f.mu.Unlock()

	return f.respond(call)
}

func ok(data string) (*kucoin.ApiResponse, error) {
	return &kucoin.ApiResponse{Code: successCode, RawData: json.RawMessage(data)}, nil
}

type chanSink chan *domain.OrderBookUpdateEvent

func (s chanSink) Publish(ctx context.Context, event *domain.OrderBookUpdateEvent) error {
	select {
	case s <- event:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func ethbtc(t *testing.T) *domain.MarketSymbol {
	symbol, err := domain.NewMarketSymbol("eth", "btc")
	require.NoError(t, err)
	return symbol
}

func TestSymbol(t *testing.T) {
	assert.Equal(t, "ETH-BTC", Symbol(ethbtc(t)))
}

func TestOrderBookSnapshot(t *testing.T) {
	fake := &fakeMarketAPI{respond: func(int) (*kucoin.ApiResponse, error) { return ok(snapshotData) }}
	api := &KucoinSyncAPI{apiService: fake}

	snapshot, err := api.OrderBookSnapshot(ethbtc(t), 10)
	require.NoError(t, err)
	assert.Equal(t, "3262786978", snapshot.Sequence)
	assert.Len(t, snapshot.Bids, 2)
	assert.Equal(t, []string{"ETH-BTC"}, fake.calls)
	assert.Equal(t, []int64{20}, fake.depths)

	_, err = api.OrderBookSnapshot(ethbtc(t), 50)
	require.NoError(t, err)
	assert.Equal(t, int64(100), fake.depths[1])
}

func TestOrderBookSnapshot_Errors(t *testing.T) {
	tests := map[string]func(int) (*kucoin.ApiResponse, error){
		"Transport": func(int) (*kucoin.ApiResponse, error) { return nil, errors.New("connection reset") },
		"ApiCode": func(int) (*kucoin.ApiResponse, error) {
			return &kucoin.ApiResponse{Code: "400100", Message: "symbol not exists"}, nil
		},
		"BadBody": func(int) (*kucoin.ApiResponse, error) { return ok(`[]`) },
	}

	for name, respond := range tests {
		t.Run(name, func(t *testing.T) {
			api := &KucoinSyncAPI{apiService: &fakeMarketAPI{respond: respond}}
			_, err := api.OrderBookSnapshot(ethbtc(t), 10)
			assert.Error(t, err)
		})
	}
}

func TestToOrderBook(t *testing.T) {
	var snapshot OrderBookSnapshot
	require.NoError(t, json.Unmarshal([]byte(snapshotData), &snapshot))

	book, err := ToOrderBook(&snapshot)
	require.NoError(t, err)
	assert.Equal(t, "0.0516", book.Bids[0].Price.String())
	assert.Equal(t, "0.0517", book.Asks[0].Price.String())
	assert.Equal(t, domain.Exchange_Kucoin, book.Asks[0].Exchange)

	snapshot.Asks = [][]string{{"0.1"}}
	_, err = ToOrderBook(&snapshot)
	assert.ErrorIs(t, err, domain.ErrMalformedLevel)
}

func TestRun_PollsAndSkipsFailures(t *testing.T) {
	fake := &fakeMarketAPI{respond: func(call int) (*kucoin.ApiResponse, error) {
		switch call {
		case 1:
			return nil, errors.New("timeout")
		case 2:
			return ok(`{"sequence":"1","bids":[["x","1"]],"asks":[]}`)
		default:
			return ok(snapshotData)
		}
	}}

	api := NewKucoinStreamAPI(&KucoinSyncAPI{apiService: fake}, ethbtc(t), 10, 5*time.Millisecond, zap.NewNop())
	assert.Equal(t, domain.Exchange_Kucoin, api.Exchange())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sink := make(chanSink)
	done := make(chan error, 1)
	go func() { done <- api.Run(ctx, sink) }()

	select {
	case event := <-sink:
		assert.Equal(t, domain.Exchange_Kucoin, event.Exchange)
		assert.Len(t, event.OrderBook.Bids, 2)
	case <-time.After(5 * time.Second):
		t.Fatal("no event published")
	}

	fake.mu.Lock()
	assert.GreaterOrEqual(t, len(fake.calls), 3)
	fake.mu.Unlock()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}
