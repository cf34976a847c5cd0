package domain

import (
	"fmt"
	"strings"
)

// MarketSymbol is the trading pair every feed subscribes to, e.g. eth/btc.
type MarketSymbol struct {
	BaseAsset  string
	QuoteAsset string
}

var symbolSeparators = []string{"/", "_", "-"}

func NewMarketSymbol(base string, quote string) (*MarketSymbol, error) {
	base = strings.ToLower(strings.TrimSpace(base))
	quote = strings.ToLower(strings.TrimSpace(quote))
	if base == "" || quote == "" {
		return nil, fmt.Errorf("base and quote must not be empty")
	}
	if base == quote {
		return nil, fmt.Errorf("base and quote must be different")
	}
	return &MarketSymbol{
		BaseAsset:  base,
		QuoteAsset: quote,
	}, nil
}

// NewMarketSymbolFromString accepts "eth/btc", "eth_btc" or "eth-btc".
func NewMarketSymbolFromString(s string) (*MarketSymbol, error) {
	for _, sep := range symbolSeparators {
		split := strings.Split(s, sep)
		if len(split) == 2 {
			return NewMarketSymbol(split[0], split[1])
		}
	}

	return nil, fmt.Errorf("invalid symbol string %q, expected base and quote separated by one of %v", s, symbolSeparators)
}

func (ms *MarketSymbol) Join(separator string) string {
	return fmt.Sprintf("%s%s%s", ms.BaseAsset, separator, ms.QuoteAsset)
}

func (ms *MarketSymbol) String() string {
	return ms.Join("_")
}

func (ms *MarketSymbol) Equal(other *MarketSymbol) bool {
	return ms.BaseAsset == other.BaseAsset && ms.QuoteAsset == other.QuoteAsset
}
