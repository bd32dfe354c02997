package types_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickhouse/marketsim/num"
	"github.com/tickhouse/marketsim/types"
)

func TestAmountOfCandles(t *testing.T) {
	assert.Equal(t, int64(24), types.AmountOfCandles(types.Interval1H, types.Interval1D))
	assert.Equal(t, int64(60), types.AmountOfCandles(types.Interval1M, types.Interval1H))
	assert.Equal(t, int64(4), types.AmountOfCandles(types.Interval15M, types.Interval1H))
	assert.Equal(t, int64(0), types.AmountOfCandles(0, types.Interval1H))
}

func TestIntervalRoundToNearest(t *testing.T) {
	ts := time.Date(2021, 3, 1, 12, 17, 42, 0, time.UTC)
	assert.Equal(t, time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC), types.Interval1H.RoundToNearest(ts))
	assert.Equal(t, time.Date(2021, 3, 1, 12, 17, 0, 0, time.UTC), types.Interval1M.RoundToNearest(ts))
	assert.Equal(t, time.Date(2021, 3, 1, 12, 15, 0, 0, time.UTC), types.Interval15M.RoundToNearest(ts))
}

func TestIntervalText(t *testing.T) {
	var i types.Interval
	require.NoError(t, i.UnmarshalText([]byte("1h")))
	assert.Equal(t, types.Interval1H, i)

	b, err := types.Interval15M.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "15m0s", string(b))

	assert.Error(t, i.UnmarshalText([]byte("not-a-duration")))
}

func TestParsePair(t *testing.T) {
	p, err := types.ParsePair("BTC-USD")
	require.NoError(t, err)
	assert.Equal(t, "BTC", p.Base)
	assert.Equal(t, "USD", p.Counter)
	assert.Equal(t, "BTC-USD", p.String())

	_, err = types.ParsePair("BTCUSD")
	assert.Error(t, err)
	_, err = types.ParsePair("BTC-")
	assert.Error(t, err)
}

func TestCandleCloseTimeAndMidPrice(t *testing.T) {
	c := types.Candle{
		High:     num.MustDecimalFromString("110"),
		Low:      num.MustDecimalFromString("90"),
		OpenTime: time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC),
		Interval: types.Interval5M,
	}
	assert.Equal(t, time.Date(2021, 3, 1, 12, 5, 0, 0, time.UTC), c.CloseTime())
	assert.Equal(t, "100", c.MidPrice().String())
}

func TestFeeRatesRateFor(t *testing.T) {
	rates := types.FeeRates{
		Limit:  num.MustDecimalFromString("0.004"),
		Market: num.MustDecimalFromString("0.006"),
	}
	assert.Equal(t, "0.004", rates.RateFor(types.OrderTypeLimit).String())
	assert.Equal(t, "0.006", rates.RateFor(types.OrderTypeMarket).String())
}
