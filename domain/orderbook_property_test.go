package domain

import (
	"testing"
	"time"

	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/shopspring/decimal"
)

// levelsFromTicks builds levels priced in cents. Sizes cycle through the sizes
// slice so that equal prices with different sizes show up often.
func levelsFromTicks(priceTicks []int64, sizes []int64, exchange Exchange) []PriceLevel {
	result := make([]PriceLevel, 0, len(priceTicks))
	for i, tick := range priceTicks {
		size := int64(1)
		if len(sizes) > 0 {
			size = sizes[i%len(sizes)]
		}
		result = append(result, PriceLevel{
			Price:    decimal.New(tick, -2),
			Size:     decimal.New(size, -3),
			Exchange: exchange,
		})
	}
	return result
}

func isRanked(depth []PriceLevel) bool {
	for i := 1; i < len(depth); i++ {
		if Compare(depth[i-1], depth[i]) > 0 {
			return false
		}
	}
	return true
}

func TestOrderBook_Ordering_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("merged bids descend and asks ascend by price", prop.ForAll(
		func(binanceTicks, bitstampTicks, sizes []int64) bool {
			aggregator := NewAggregator(1000)
			now := time.Now()
			aggregator.Upsert(Exchange_Binance, NewOrderBook(
				levelsFromTicks(binanceTicks, sizes, Exchange_Binance),
				levelsFromTicks(bitstampTicks, sizes, Exchange_Binance),
			), now)
			aggregator.Upsert(Exchange_Bitstamp, NewOrderBook(
				levelsFromTicks(bitstampTicks, sizes, Exchange_Bitstamp),
				levelsFromTicks(binanceTicks, sizes, Exchange_Bitstamp),
			), now)

			merged := aggregator.Aggregate()
			if len(merged.Bids) != len(binanceTicks)+len(bitstampTicks) {
				return false
			}
			for i := 1; i < len(merged.Bids); i++ {
				if merged.Bids[i-1].Price.LessThan(merged.Bids[i].Price) {
					return false
				}
			}
			for i := 1; i < len(merged.Asks); i++ {
				if merged.Asks[i-1].Price.GreaterThan(merged.Asks[i].Price) {
					return false
				}
			}
			return true
		},
		gen.SliceOf(gen.Int64Range(1, 500)),
		gen.SliceOf(gen.Int64Range(1, 500)),
		gen.SliceOf(gen.Int64Range(1, 5000)),
	))

	properties.Property("equal prices rank by descending size on both sides", prop.ForAll(
		func(ticks, sizes []int64) bool {
			ob := NewOrderBook(
				levelsFromTicks(ticks, sizes, Exchange_Kucoin),
				levelsFromTicks(ticks, sizes, Exchange_Kucoin),
			)
			for _, depth := range [][]PriceLevel{ob.Bids, ob.Asks} {
				for i := 1; i < len(depth); i++ {
					if depth[i-1].Price.Equal(depth[i].Price) && depth[i-1].Size.LessThan(depth[i].Size) {
						return false
					}
				}
			}
			return isRanked(ob.Bids) && isRanked(ob.Asks)
		},
		gen.SliceOf(gen.Int64Range(1, 10)),
		gen.SliceOf(gen.Int64Range(1, 5000)),
	))

	properties.TestingRun(t)
}

func TestOrderBook_LimitAndSpread_Property(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	properties.Property("limit keeps a prefix of at most k levels", prop.ForAll(
		func(bidTicks, askTicks []int64, k int) bool {
			ob := NewOrderBook(
				levelsFromTicks(bidTicks, nil, Exchange_Binance),
				levelsFromTicks(askTicks, nil, Exchange_Binance),
			)
			limited := ob.Limit(k)
			if len(limited.Bids) > k || len(limited.Asks) > k {
				return false
			}
			for i := range limited.Bids {
				if Compare(limited.Bids[i], ob.Bids[i]) != 0 {
					return false
				}
			}
			for i := range limited.Asks {
				if Compare(limited.Asks[i], ob.Asks[i]) != 0 {
					return false
				}
			}
			return len(ob.Bids) == len(bidTicks) && len(ob.Asks) == len(askTicks)
		},
		gen.SliceOf(gen.Int64Range(1, 1000)),
		gen.SliceOf(gen.Int64Range(1, 1000)),
		gen.IntRange(0, 20),
	))

	properties.Property("spread is exact and present only with both sides", prop.ForAll(
		func(bidTicks, askTicks []int64) bool {
			ob := NewOrderBook(
				levelsFromTicks(bidTicks, nil, Exchange_Binance),
				levelsFromTicks(askTicks, nil, Exchange_Bitstamp),
			)
			spread, ok := ob.Spread()
			if len(bidTicks) == 0 || len(askTicks) == 0 {
				return !ok
			}

			bestBid, bestAsk := bidTicks[0], askTicks[0]
			for _, tick := range bidTicks {
				if tick > bestBid {
					bestBid = tick
				}
			}
			for _, tick := range askTicks {
				if tick < bestAsk {
					bestAsk = tick
				}
			}
			return ok && spread.Equal(decimal.New(bestAsk-bestBid, -2))
		},
		gen.SliceOf(gen.Int64Range(1, 100000)),
		gen.SliceOf(gen.Int64Range(1, 100000)),
	))

	properties.TestingRun(t)
}
