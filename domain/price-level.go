package domain

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"
)

var (
	ErrNegativePrice  = errors.New("price level has negative price")
	ErrNegativeSize   = errors.New("price level has negative size")
	ErrMalformedLevel = errors.New("malformed price level")
)

// PriceLevel is a single price and size quoted by one exchange on one side of
// its book. It is a value type and is never mutated once built.
type PriceLevel struct {
	Price    decimal.Decimal
	Size     decimal.Decimal
	Exchange Exchange
	Side     Side
}

func NewPriceLevel(price, size decimal.Decimal, exchange Exchange, side Side) (PriceLevel, error) {
	if price.IsNegative() {
		return PriceLevel{}, fmt.Errorf("%w: %s", ErrNegativePrice, price)
	}
	if size.IsNegative() {
		return PriceLevel{}, fmt.Errorf("%w: %s", ErrNegativeSize, size)
	}

	return PriceLevel{
		Price:    price,
		Size:     size,
		Exchange: exchange,
		Side:     side,
	}, nil
}

// Compare orders two levels of the same side. It returns a negative number when
// a ranks before b, a positive number when b ranks before a and zero when they
// are interchangeable.
//
// Asks rank by ascending price and bids by descending price. At equal price the
// larger size ranks first on both sides; remaining ties are broken by exchange
// so that the order is total.
func Compare(a, b PriceLevel) int {
	if c := a.Price.Cmp(b.Price); c != 0 {
		if a.Side == Side_Bid {
			return -c
		}
		return c
	}

	if c := a.Size.Cmp(b.Size); c != 0 {
		return -c
	}

	switch {
	case a.Exchange < b.Exchange:
		return -1
	case a.Exchange > b.Exchange:
		return 1
	default:
		return 0
	}
}

func (l PriceLevel) String() string {
	return fmt.Sprintf("%s %s@%s (%s)", l.Side, l.Size, l.Price, l.Exchange)
}

// ParsePriceLevels converts the [price, size] string pairs exchanges publish
// into levels. Any malformed entry rejects the whole side.
func ParsePriceLevels(depth [][]string, exchange Exchange, side Side) ([]PriceLevel, error) {
	result := make([]PriceLevel, 0, len(depth))
	for i, level := range depth {
		if len(level) < 2 {
			return nil, fmt.Errorf("%w: %s level %d has %d fields", ErrMalformedLevel, side, i, len(level))
		}

		price, err := decimal.NewFromString(level[0])
		if err != nil {
			return nil, fmt.Errorf("%w: %s level %d price %q: %v", ErrMalformedLevel, side, i, level[0], err)
		}
		size, err := decimal.NewFromString(level[1])
		if err != nil {
			return nil, fmt.Errorf("%w: %s level %d size %q: %v", ErrMalformedLevel, side, i, level[1], err)
		}

		pl, err := NewPriceLevel(price, size, exchange, side)
		if err != nil {
			return nil, err
		}
		result = append(result, pl)
	}

	return result, nil
}
