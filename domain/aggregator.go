package domain

import (
	"sort"
	"time"
)

// DefaultDepthLimit is the number of levels kept per side of the merged book.
const DefaultDepthLimit = 10

type exchangeSnapshot struct {
	orderBook  *OrderBook
	receivedAt time.Time
}

// Aggregator keeps the latest snapshot of every exchange and merges them into
// one ranked book. It is not safe for concurrent use: a single goroutine owns
// it and feeds it through Upsert.
type Aggregator struct {
	depthLimit int
	storage    map[Exchange]exchangeSnapshot
}

func NewAggregator(depthLimit int) *Aggregator {
	if depthLimit <= 0 {
		depthLimit = DefaultDepthLimit
	}

	return &Aggregator{
		depthLimit: depthLimit,
		storage:    make(map[Exchange]exchangeSnapshot),
	}
}

// Upsert replaces the stored snapshot of the exchange.
func (a *Aggregator) Upsert(exchange Exchange, orderBook *OrderBook, receivedAt time.Time) {
	if orderBook == nil {
		orderBook = NewEmptyOrderBook()
	}

	a.storage[exchange] = exchangeSnapshot{
		orderBook:  orderBook,
		receivedAt: receivedAt,
	}
}

func (a *Aggregator) ExchangeCount() int {
	return len(a.storage)
}

func (a *Aggregator) DepthLimit() int {
	return a.depthLimit
}

// Exchanges lists the exchanges with a stored snapshot in ascending id order.
func (a *Aggregator) Exchanges() []Exchange {
	result := make([]Exchange, 0, len(a.storage))
	for exchange := range a.storage {
		result = append(result, exchange)
	}
	sort.Slice(result, func(i, j int) bool { return result[i] < result[j] })
	return result
}

// Aggregate merges the bids and asks of every stored snapshot, ranks them and
// keeps the best depthLimit levels per side.
func (a *Aggregator) Aggregate() *OrderBook {
	var bidCount, askCount int
	for _, snapshot := range a.storage {
		bidCount += len(snapshot.orderBook.Bids)
		askCount += len(snapshot.orderBook.Asks)
	}

	bids := make([]PriceLevel, 0, bidCount)
	asks := make([]PriceLevel, 0, askCount)
	for _, snapshot := range a.storage {
		bids = append(bids, snapshot.orderBook.Bids...)
		asks = append(asks, snapshot.orderBook.Asks...)
	}

	return NewOrderBook(bids, asks).Limit(a.depthLimit)
}

// EvictStale drops snapshots received more than maxAge before now and returns
// the evicted exchanges. A non-positive maxAge disables eviction.
func (a *Aggregator) EvictStale(now time.Time, maxAge time.Duration) []Exchange {
	if maxAge <= 0 {
		return nil
	}

	var evicted []Exchange
	for exchange, snapshot := range a.storage {
		if now.Sub(snapshot.receivedAt) > maxAge {
			delete(a.storage, exchange)
			evicted = append(evicted, exchange)
		}
	}
	sort.Slice(evicted, func(i, j int) bool { return evicted[i] < evicted[j] })

	return evicted
}
