package types

import (
	"github.com/tickhouse/marketsim/num"
)

// Balance is the per currency view of freely usable versus reserved funds.
type Balance struct {
	Currency  string      `json:"currency"`
	Available num.Decimal `json:"available"`
	Held      num.Decimal `json:"hold"`
}

// Total is available plus held.
func (b Balance) Total() num.Decimal {
	return b.Available.Add(b.Held)
}
