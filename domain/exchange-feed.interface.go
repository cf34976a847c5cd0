package domain

import "context"

// Sink receives normalized snapshots from exchange feeds. Publish blocks while
// the consumer is busy and returns early only when ctx is done.
type Sink interface {
	Publish(ctx context.Context, event *OrderBookUpdateEvent) error
}

// ExchangeFeed keeps one exchange connection alive and turns its messages into
// OrderBookUpdateEvents. Run returns when ctx is done or when the feed gives up;
// the caller decides whether to restart it.
type ExchangeFeed interface {
	Exchange() Exchange
	Run(ctx context.Context, sink Sink) error
}
