package bitstamp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jzajpt/orderbook-aggregator-service/domain"
	"github.com/jzajpt/orderbook-aggregator-service/helpers"
	"go.uber.org/zap"
)

var ErrReconnectRequested = errors.New("bitstamp requested a reconnect")

// Event is the envelope of every Bitstamp websocket message.
type Event struct {
	Event   string          `json:"event"`
	Channel string          `json:"channel"`
	Data    json.RawMessage `json:"data"`
}

// LiveOrderBookData is the payload of order_book_<pair>: the top 100 levels
// of each side.
type LiveOrderBookData struct {
	Timestamp      string     `json:"timestamp"`
	Microtimestamp string     `json:"microtimestamp"`
	Bids           [][]string `json:"bids"`
	Asks           [][]string `json:"asks"`
}

type BitstampStreamAPI struct {
	endpoint          string
	symbol            *domain.MarketSymbol
	heartbeatInterval time.Duration
	newBackoff        func() *helpers.Backoff
	logger            *zap.Logger
}

func NewBitstampStreamAPI(endpoint string, symbol *domain.MarketSymbol, logger *zap.Logger) *BitstampStreamAPI {
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}

	return &BitstampStreamAPI{
		endpoint:          endpoint,
		symbol:            symbol,
		heartbeatInterval: heartbeatInterval,
		newBackoff:        helpers.NewDefaultBackoff,
		logger:            logger.Named("bitstamp"),
	}
}

func (bs *BitstampStreamAPI) Exchange() domain.Exchange {
	return domain.Exchange_Bitstamp
}

func (bs *BitstampStreamAPI) Channel() string {
	return "order_book_" + bs.symbol.Join("")
}

// Run keeps a session open until ctx is done, reconnecting with backoff
// whenever the connection drops or Bitstamp asks for it.
func (bs *BitstampStreamAPI) Run(ctx context.Context, sink domain.Sink) error {
	backoff := bs.newBackoff()

	for {
		delivered, err := bs.session(ctx, sink)
		if ctx.Err() != nil {
			return nil
		}
		if delivered {
			backoff.Reset()
		}

		delay := backoff.Next()
		if errors.Is(err, ErrReconnectRequested) {
			bs.logger.Info("reconnect requested by server", zap.Duration("delay", delay))
		} else {
			bs.logger.Warn("connection lost, reconnecting",
				zap.Error(err),
				zap.Duration("delay", delay),
				zap.Int("attempt", backoff.Attempt()),
			)
		}

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(delay):
		}
	}
}

// session runs one connection. delivered reports whether any snapshot made
// it to the sink, which resets the backoff.
func (bs *BitstampStreamAPI) session(ctx context.Context, sink domain.Sink) (delivered bool, err error) {
	client, err := Dial(ctx, bs.endpoint)
	if err != nil {
		return false, fmt.Errorf("dial: %w", err)
	}

	sessionCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	go func() {
		<-sessionCtx.Done()
		client.Close()
	}()

	if err := client.Subscribe(bs.Channel()); err != nil {
		return false, fmt.Errorf("subscribe: %w", err)
	}
	bs.logger.Info("connected", zap.String("endpoint", bs.endpoint), zap.String("channel", bs.Channel()))

	go bs.heartbeat(sessionCtx, client)

	for {
		msg, err := client.Read()
		if err != nil {
			return delivered, fmt.Errorf("read: %w", err)
		}

		event, err := bs.handleMessage(msg)
		if errors.Is(err, ErrReconnectRequested) {
			return delivered, err
		}
		if err != nil {
			bs.logger.Warn("dropping malformed message", zap.Error(err), zap.ByteString("message", msg))
			continue
		}
		if event == nil {
			continue
		}

		if err := sink.Publish(ctx, event); err != nil {
			return delivered, err
		}
		delivered = true
	}
}

func (bs *BitstampStreamAPI) heartbeat(ctx context.Context, client *BitstampStreamClient) {
	ticker := time.NewTicker(bs.heartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := client.Heartbeat(); err != nil {
				bs.logger.Debug("heartbeat failed", zap.Error(err))
				return
			}
		}
	}
}

// handleMessage returns nil for events that carry no book.
func (bs *BitstampStreamAPI) handleMessage(msg []byte) (*domain.OrderBookUpdateEvent, error) {
	var event Event
	if err := json.Unmarshal(msg, &event); err != nil {
		return nil, fmt.Errorf("failed to unmarshal event: %w", err)
	}

	switch event.Event {
	case "data":
		var data LiveOrderBookData
		if err := json.Unmarshal(event.Data, &data); err != nil {
			return nil, fmt.Errorf("failed to unmarshal order book: %w", err)
		}

		orderBook, err := ToOrderBook(&data)
		if err != nil {
			return nil, err
		}
		return domain.NewOrderBookUpdateEvent(domain.Exchange_Bitstamp, orderBook), nil

	case "bts:subscription_succeeded":
		bs.logger.Info("subscribed", zap.String("channel", event.Channel))
	case "bts:request_reconnect":
		return nil, ErrReconnectRequested
	case "bts:heartbeat":
	case "bts:error":
		bs.logger.Error("server error", zap.ByteString("data", event.Data))
	default:
		bs.logger.Debug("ignoring event", zap.String("event", event.Event))
	}

	return nil, nil
}

func ToOrderBook(data *LiveOrderBookData) (*domain.OrderBook, error) {
	bids, err := domain.ParsePriceLevels(data.Bids, domain.Exchange_Bitstamp, domain.Side_Bid)
	if err != nil {
		return nil, fmt.Errorf("bids: %w", err)
	}

	asks, err := domain.ParsePriceLevels(data.Asks, domain.Exchange_Bitstamp, domain.Side_Ask)
	if err != nil {
		return nil, fmt.Errorf("asks: %w", err)
	}

	return domain.NewOrderBook(bids, asks), nil
}
