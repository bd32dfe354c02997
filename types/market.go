package types

import (
	"fmt"
	"strings"

	"github.com/tickhouse/marketsim/num"
)

// Pair identifies a tradable pair by its base and counter assets.
type Pair struct {
	Base    string `json:"base"`
	Counter string `json:"counter"`
}

func (p Pair) String() string {
	return fmt.Sprintf("%s-%s", p.Base, p.Counter)
}

func (p Pair) IsZero() bool {
	return p.Base == "" && p.Counter == ""
}

// ParsePair parses a "BASE-COUNTER" pair notation.
func ParsePair(s string) (Pair, error) {
	parts := strings.Split(s, "-")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return Pair{}, fmt.Errorf("invalid pair %q", s)
	}
	return Pair{Base: parts[0], Counter: parts[1]}, nil
}

// TradingRules are the per pair quantization and minimum-notional
// constraints, fetched once from the venue and cached for the session.
type TradingRules struct {
	BaseIncrement    num.Decimal `json:"base_increment"`
	BaseMinSize      num.Decimal `json:"base_min_size"`
	BaseMaxSize      num.Decimal `json:"base_max_size"`
	CounterIncrement num.Decimal `json:"counter_increment"`
	CounterMinSize   num.Decimal `json:"counter_min_size"`
}

// FeeRates holds the per order-type fee factors, where 1 means 100%.
// Limit fills pay the maker rate, market fills the taker rate.
type FeeRates struct {
	Limit  num.Decimal `json:"limit"`
	Market num.Decimal `json:"market"`
}

// RateFor returns the factor applied to fills of the given order type.
func (f FeeRates) RateFor(t OrderType) num.Decimal {
	if t == OrderTypeMarket {
		return f.Market
	}
	return f.Limit
}
