package rpc

import (
	"github.com/jzajpt/orderbook-aggregator-service/broadcast"
	"github.com/jzajpt/orderbook-aggregator-service/domain"
	gen "github.com/jzajpt/orderbook-aggregator-service/gen"
	"go.uber.org/zap"
)

const DefaultSubscriberBuffer = 4

// OrderBookSource is where merged books come from.
type OrderBookSource interface {
	Subscribe() *broadcast.Receiver[*domain.OrderBook]
	Current() (*domain.OrderBook, bool)
}

type server struct {
	gen.UnimplementedOrderbookAggregatorServer

	source           OrderBookSource
	subscriberBuffer int
	logger           *zap.Logger
}

func NewServer(source OrderBookSource, subscriberBuffer int, logger *zap.Logger) *server {
	if subscriberBuffer <= 0 {
		subscriberBuffer = DefaultSubscriberBuffer
	}

	return &server{
		source:           source,
		subscriberBuffer: subscriberBuffer,
		logger:           logger.Named("rpc"),
	}
}
