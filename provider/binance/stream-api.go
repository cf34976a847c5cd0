package binance

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jzajpt/orderbook-aggregator-service/domain"
	"go.uber.org/zap"
)

// PartialBookDepthEvent is the payload of the <symbol>@depth<levels> stream:
// the top levels of the book, each message a full replacement.
type PartialBookDepthEvent struct {
	LastUpdateID int64      `json:"lastUpdateId"`
	Bids         [][]string `json:"bids"`
	Asks         [][]string `json:"asks"`
}

// streamMessage covers both depth events and responses to requests.
type streamMessage struct {
	PartialBookDepthEvent
	ReqId  *int            `json:"id"`
	Result json.RawMessage `json:"result"`
	Error  *struct {
		Code int    `json:"code"`
		Msg  string `json:"msg"`
	} `json:"error"`
}

var ErrNoBook = errors.New("message carries no order book")

type BinanceStreamAPI struct {
	client *BinanceStreamClient
	symbol *domain.MarketSymbol
	levels int
	logger *zap.Logger
}

func NewBinanceStreamAPI(endpoint string, symbol *domain.MarketSymbol, depth int, logger *zap.Logger) *BinanceStreamAPI {
	logger = logger.Named("binance")

	return &BinanceStreamAPI{
		client: NewBinanceStreamClient(endpoint, logger),
		symbol: symbol,
		levels: partialDepthLevels(depth),
		logger: logger,
	}
}

func (bs *BinanceStreamAPI) Exchange() domain.Exchange {
	return domain.Exchange_Binance
}

// Topic is the partial depth stream name, e.g. ethbtc@depth10@100ms.
func (bs *BinanceStreamAPI) Topic() string {
	return fmt.Sprintf("%s@depth%d@100ms", bs.symbol.Join(""), bs.levels)
}

// Run streams partial depth snapshots into sink until ctx is done.
func (bs *BinanceStreamAPI) Run(ctx context.Context, sink domain.Sink) error {
	bs.client.Connect(bs.Topic())

	go func() {
		<-ctx.Done()
		bs.client.Close()
	}()

	for {
		msg, err := bs.client.Read(ctx)
		if err != nil {
			return nil
		}

		event, err := bs.handleMessage(msg)
		if err != nil {
			bs.logger.Warn("dropping malformed message", zap.Error(err), zap.ByteString("message", msg))
			continue
		}
		if event == nil {
			continue
		}

		if err := sink.Publish(ctx, event); err != nil {
			return nil
		}
	}
}

// handleMessage returns nil for messages that carry no book, such as
// subscription acks.
func (bs *BinanceStreamAPI) handleMessage(msg []byte) (*domain.OrderBookUpdateEvent, error) {
	var message streamMessage
	if err := json.Unmarshal(msg, &message); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message: %w", err)
	}

	if message.ReqId != nil {
		if message.Error != nil {
			bs.logger.Error("request rejected",
				zap.Int("id", *message.ReqId),
				zap.Int("code", message.Error.Code),
				zap.String("msg", message.Error.Msg),
			)
		} else {
			bs.logger.Info("subscribed", zap.Int("id", *message.ReqId), zap.String("topic", bs.Topic()))
		}
		return nil, nil
	}

	depth := message.PartialBookDepthEvent
	if depth.LastUpdateID == 0 && depth.Bids == nil && depth.Asks == nil {
		return nil, ErrNoBook
	}

	orderBook, err := ToOrderBook(&message.PartialBookDepthEvent)
	if err != nil {
		return nil, err
	}

	return domain.NewOrderBookUpdateEvent(domain.Exchange_Binance, orderBook), nil
}

func ToOrderBook(event *PartialBookDepthEvent) (*domain.OrderBook, error) {
	bids, err := domain.ParsePriceLevels(event.Bids, domain.Exchange_Binance, domain.Side_Bid)
	if err != nil {
		return nil, fmt.Errorf("bids: %w", err)
	}

	asks, err := domain.ParsePriceLevels(event.Asks, domain.Exchange_Binance, domain.Side_Ask)
	if err != nil {
		return nil, fmt.Errorf("asks: %w", err)
	}

	return domain.NewOrderBook(bids, asks), nil
}

// partialDepthLevels picks the smallest partial depth stream Binance offers
// that covers depth.
func partialDepthLevels(depth int) int {
	for _, levels := range []int{5, 10, 20} {
		if depth <= levels {
			return levels
		}
	}
	return 20
}
