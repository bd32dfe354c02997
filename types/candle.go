package types

import (
	"time"

	"github.com/tickhouse/marketsim/num"
)

// Candle is one OHLCV observation for a fixed time bucket. Candles are
// immutable once produced by their source.
type Candle struct {
	Pair   Pair        `json:"pair"`
	Open   num.Decimal `json:"open"`
	High   num.Decimal `json:"high"`
	Low    num.Decimal `json:"low"`
	Close  num.Decimal `json:"close"`
	Volume num.Decimal `json:"volume"`

	// Ask side variants, only populated by feeds that distinguish bid/ask.
	OpenAsk  num.Decimal `json:"open_ask,omitempty"`
	HighAsk  num.Decimal `json:"high_ask,omitempty"`
	LowAsk   num.Decimal `json:"low_ask,omitempty"`
	CloseAsk num.Decimal `json:"close_ask,omitempty"`

	OpenTime time.Time `json:"open_time"`
	Interval Interval  `json:"interval"`
}

// CloseTime is the end of the candle's bucket.
func (c Candle) CloseTime() time.Time {
	return c.OpenTime.Add(c.Interval.Duration())
}

// MidPrice is the midpoint of the candle's own high/low range.
func (c Candle) MidPrice() num.Decimal {
	return c.High.Add(c.Low).Div(two)
}

var two = num.DecimalFromInt64(2)

// BatchedCandle is an aggregate candle emitted when a target bucket closes,
// a Candle for the aggregate period plus derived fields. Never mutated once
// created.
type BatchedCandle struct {
	Candle

	// Change is the percentage move from the aggregate open to close.
	Change num.Decimal `json:"change"`
	// MedianPrice is the midpoint of the aggregate high/low.
	MedianPrice num.Decimal `json:"median_price"`
	// WeightedMedianPrice is the volume weighted average of each member
	// candle's own mid price.
	WeightedMedianPrice num.Decimal `json:"weighted_median_price"`

	IsPositive bool `json:"is_positive"`
	IsNegative bool `json:"is_negative"`
}
