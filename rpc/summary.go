package rpc

import (
	"github.com/jzajpt/orderbook-aggregator-service/domain"
	gen "github.com/jzajpt/orderbook-aggregator-service/gen"
)

// ToSummary converts a merged book into its wire form. Prices and sizes lose
// their exact decimal form here and only here. A book without both sides has
// a zero spread.
func ToSummary(book *domain.OrderBook) *gen.Summary {
	summary := &gen.Summary{
		Bids: toLevels(nil),
		Asks: toLevels(nil),
	}
	if book == nil {
		return summary
	}

	if spread, ok := book.Spread(); ok {
		summary.Spread = spread.InexactFloat64()
	}
	summary.Bids = toLevels(book.Bids)
	summary.Asks = toLevels(book.Asks)

	return summary
}

func toLevels(levels []domain.PriceLevel) []*gen.Level {
	result := make([]*gen.Level, 0, len(levels))
	for _, level := range levels {
		result = append(result, &gen.Level{
			Exchange: level.Exchange.String(),
			Price:    level.Price.InexactFloat64(),
			Amount:   level.Size.InexactFloat64(),
		})
	}
	return result
}
