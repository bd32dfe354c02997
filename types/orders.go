package types

import (
	"time"

	"github.com/tickhouse/marketsim/num"
)

type Side int32

const (
	SideUnspecified Side = iota
	SideBuy
	SideSell
)

func (s Side) String() string {
	switch s {
	case SideBuy:
		return "BUY"
	case SideSell:
		return "SELL"
	default:
		return "UNSPECIFIED"
	}
}

type OrderType int32

const (
	OrderTypeUnspecified OrderType = iota
	OrderTypeLimit
	OrderTypeMarket
)

func (t OrderType) String() string {
	switch t {
	case OrderTypeLimit:
		return "LIMIT"
	case OrderTypeMarket:
		return "MARKET"
	default:
		return "UNSPECIFIED"
	}
}

// Order is a pending order. An order is either fully filled, turning it
// into a Fill, or stays fully pending until cancelled; there are no
// partial fills.
type Order struct {
	ID   string    `json:"id"`
	Pair Pair      `json:"pair"`
	Side Side      `json:"side"`
	Type OrderType `json:"type"`

	// Size is the base amount. Zero for market buys sized in counter
	// currency, which carry Funds instead.
	Size  num.Decimal `json:"size"`
	Funds num.Decimal `json:"funds,omitempty"`
	// Price is only set on limit orders.
	Price num.Decimal `json:"price,omitempty"`

	CreatedAt time.Time `json:"created_at"`

	// The reservation taken when the order was placed, recorded so
	// cancellation restores exactly what was held.
	HoldCurrency string      `json:"hold_currency"`
	HoldAmount   num.Decimal `json:"hold_amount"`
}

// Fill is the append-only record of a matched order.
type Fill struct {
	ID        string      `json:"id"`
	OrderID   string      `json:"order_id"`
	Pair      Pair        `json:"pair"`
	Side      Side        `json:"side"`
	Price     num.Decimal `json:"price"`
	Size      num.Decimal `json:"size"`
	Fee       num.Decimal `json:"fee"`
	FeeAsset  string      `json:"fee_asset"`
	CreatedAt time.Time   `json:"created_at"`
}
