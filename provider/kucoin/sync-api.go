package kucoin

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Kucoin/kucoin-go-sdk"
	"github.com/jzajpt/orderbook-aggregator-service/domain"
)

const (
	DefaultBaseURL = "https://api.kucoin.com"
	successCode    = "200000"
)

// marketAPI is the part of kucoin.ApiService the poller needs.
type marketAPI interface {
	AggregatedPartOrderBook(symbol string, depth int64) (*kucoin.ApiResponse, error)
}

type OrderBookSnapshot struct {
	Sequence string     `json:"sequence"`
	Time     int64      `json:"time"`
	Bids     [][]string `json:"bids"`
	Asks     [][]string `json:"asks"`
}

type KucoinSyncAPI struct {
	apiService marketAPI
}

func NewKucoinSyncAPI(baseURL string) *KucoinSyncAPI {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}

	return &KucoinSyncAPI{
		apiService: kucoin.NewApiService(kucoin.ApiBaseURIOption(baseURL)),
	}
}

// Symbol renders a market the way the REST API expects it, e.g. ETH-BTC.
func Symbol(symbol *domain.MarketSymbol) string {
	return strings.ToUpper(symbol.Join("-"))
}

// OrderBookSnapshot fetches the top levels of the book. Kucoin serves 20 or
// 100 levels; the smallest one covering depth is used.
func (api *KucoinSyncAPI) OrderBookSnapshot(symbol *domain.MarketSymbol, depth int) (*OrderBookSnapshot, error) {
	resp, err := api.apiService.AggregatedPartOrderBook(Symbol(symbol), partialDepthLevels(depth))
	if err != nil {
		return nil, fmt.Errorf("failed to get order book snapshot: %w", err)
	}
	if resp.Code != successCode {
		return nil, fmt.Errorf("order book snapshot rejected: code=%s msg=%s", resp.Code, resp.Message)
	}

	data := &OrderBookSnapshot{}
	if err = json.Unmarshal(resp.RawData, data); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response body: %w, response: %s", err, resp.RawData)
	}

	return data, nil
}

func ToOrderBook(snapshot *OrderBookSnapshot) (*domain.OrderBook, error) {
	bids, err := domain.ParsePriceLevels(snapshot.Bids, domain.Exchange_Kucoin, domain.Side_Bid)
	if err != nil {
		return nil, fmt.Errorf("bids: %w", err)
	}

	asks, err := domain.ParsePriceLevels(snapshot.Asks, domain.Exchange_Kucoin, domain.Side_Ask)
	if err != nil {
		return nil, fmt.Errorf("asks: %w", err)
	}

	return domain.NewOrderBook(bids, asks), nil
}

func partialDepthLevels(depth int) int64 {
	if depth <= 20 {
		return 20
	}
	return 100
}
