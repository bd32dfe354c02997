package types

import (
	"time"
)

// Interval is the fixed time span a candle bucket represents.
type Interval time.Duration

const (
	Interval1M  = Interval(time.Minute)
	Interval5M  = Interval(5 * time.Minute)
	Interval15M = Interval(15 * time.Minute)
	Interval1H  = Interval(time.Hour)
	Interval6H  = Interval(6 * time.Hour)
	Interval1D  = Interval(24 * time.Hour)
)

func (i Interval) Duration() time.Duration {
	return time.Duration(i)
}

func (i Interval) String() string {
	return time.Duration(i).String()
}

// RoundToNearest floors t to the interval boundary, so every bucket start
// is an exact multiple of the interval.
func (i Interval) RoundToNearest(t time.Time) time.Time {
	return t.Truncate(time.Duration(i))
}

// UnmarshalText parses an interval from its duration notation ("1h", "15m").
func (i *Interval) UnmarshalText(text []byte) error {
	d, err := time.ParseDuration(string(text))
	if err != nil {
		return err
	}
	*i = Interval(d)
	return nil
}

func (i Interval) MarshalText() ([]byte, error) {
	return []byte(i.String()), nil
}

// AmountOfCandles returns how many candles of the given interval fit into
// the target interval, e.g. 24 one-hour candles per day.
func AmountOfCandles(candleInterval, targetInterval Interval) int64 {
	if candleInterval <= 0 {
		return 0
	}
	return int64(targetInterval / candleInterval)
}
