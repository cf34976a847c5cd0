package domain

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

// OrderBook holds both sides of a book, best level first: bids by descending
// price and asks by ascending price. Use NewOrderBook to build one so that the
// ordering holds.
type OrderBook struct {
	Bids []PriceLevel
	Asks []PriceLevel
}

// OrderBookUpdateEvent is a full depth snapshot reported by one exchange. It
// replaces whatever that exchange reported before.
type OrderBookUpdateEvent struct {
	Exchange   Exchange
	OrderBook  *OrderBook
	ReceivedAt time.Time
}

func NewOrderBookUpdateEvent(exchange Exchange, orderBook *OrderBook) *OrderBookUpdateEvent {
	return &OrderBookUpdateEvent{
		Exchange:   exchange,
		OrderBook:  orderBook,
		ReceivedAt: time.Now(),
	}
}

func NewEmptyOrderBook() *OrderBook {
	return &OrderBook{
		Bids: []PriceLevel{},
		Asks: []PriceLevel{},
	}
}

// NewOrderBook copies the given levels, tags them with their side and sorts
// each side. The input slices are left untouched.
func NewOrderBook(bids []PriceLevel, asks []PriceLevel) *OrderBook {
	return &OrderBook{
		Bids: sortDepth(bids, Side_Bid),
		Asks: sortDepth(asks, Side_Ask),
	}
}

func (ob *OrderBook) BestBid() (PriceLevel, bool) {
	if ob == nil || len(ob.Bids) == 0 {
		return PriceLevel{}, false
	}
	return ob.Bids[0], true
}

func (ob *OrderBook) BestAsk() (PriceLevel, bool) {
	if ob == nil || len(ob.Asks) == 0 {
		return PriceLevel{}, false
	}
	return ob.Asks[0], true
}

// Spread returns best ask minus best bid. The second value is false when
// either side is empty.
func (ob *OrderBook) Spread() (decimal.Decimal, bool) {
	bid, ok := ob.BestBid()
	if !ok {
		return decimal.Decimal{}, false
	}
	ask, ok := ob.BestAsk()
	if !ok {
		return decimal.Decimal{}, false
	}

	return ask.Price.Sub(bid.Price), true
}

// Limit returns a new book with at most k levels per side. A negative k is
// treated as zero.
func (ob *OrderBook) Limit(k int) *OrderBook {
	if ob == nil {
		return NewEmptyOrderBook()
	}

	return &OrderBook{
		Bids: limitDepth(ob.Bids, k),
		Asks: limitDepth(ob.Asks, k),
	}
}

func (ob *OrderBook) IsEmpty() bool {
	return ob == nil || (len(ob.Bids) == 0 && len(ob.Asks) == 0)
}

func (ob *OrderBook) Depth() int {
	if ob == nil {
		return 0
	}
	return len(ob.Bids) + len(ob.Asks)
}

func limitDepth(depth []PriceLevel, limit int) []PriceLevel {
	if limit < 0 {
		limit = 0
	}
	if len(depth) < limit {
		limit = len(depth)
	}

	result := make([]PriceLevel, limit)
	copy(result, depth[:limit])
	return result
}

func sortDepth(depth []PriceLevel, side Side) []PriceLevel {
	result := make([]PriceLevel, len(depth))
	copy(result, depth)

	for i := range result {
		result[i].Side = side
	}

	sort.SliceStable(result, func(i, j int) bool {
		return Compare(result[i], result[j]) < 0
	})

	return result
}
