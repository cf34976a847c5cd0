package domain

import (
	"errors"
	"fmt"
	"strings"
)

var ErrUnknownExchange = errors.New("unknown exchange")

// Exchange identifies a venue contributing to the merged book. New venues are
// added here together with a feed under provider/.
type Exchange uint8

const (
	Exchange_Unknown Exchange = iota
	Exchange_Binance
	Exchange_Bitstamp
	Exchange_Kucoin
)

var exchangeNames = map[Exchange]string{
	Exchange_Unknown:  "unknown",
	Exchange_Binance:  "binance",
	Exchange_Bitstamp: "bitstamp",
	Exchange_Kucoin:   "kucoin",
}

func (e Exchange) String() string {
	if name, ok := exchangeNames[e]; ok {
		return name
	}
	return fmt.Sprintf("exchange(%d)", uint8(e))
}

func ParseExchange(s string) (Exchange, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for exchange, n := range exchangeNames {
		if exchange != Exchange_Unknown && n == name {
			return exchange, nil
		}
	}
	return Exchange_Unknown, fmt.Errorf("%w: %q", ErrUnknownExchange, s)
}

// Side of the book a level belongs to.
type Side int8

const (
	Side_Unspecified Side = iota
	Side_Bid
	Side_Ask
)

func (s Side) String() string {
	switch s {
	case Side_Bid:
		return "bid"
	case Side_Ask:
		return "ask"
	default:
		return "unspecified"
	}
}
