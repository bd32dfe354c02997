package matching_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tickhouse/marketsim/collateral"
	"github.com/tickhouse/marketsim/fee"
	"github.com/tickhouse/marketsim/logging"
	"github.com/tickhouse/marketsim/matching"
	"github.com/tickhouse/marketsim/num"
	"github.com/tickhouse/marketsim/types"
)

var testPair = types.Pair{Base: "BTC", Counter: "USD"}

type testEngine struct {
	*matching.Engine
	col *collateral.Engine
}

func getTestEngine(t *testing.T, rates types.FeeRates) *testEngine {
	t.Helper()
	log := logging.NewTestLogger()
	col := collateral.New(log, collateral.NewDefaultConfig())
	rules := types.TradingRules{
		BaseIncrement:    num.MustDecimalFromString("0.01"),
		BaseMinSize:      num.MustDecimalFromString("0.01"),
		BaseMaxSize:      num.MustDecimalFromString("10000"),
		CounterIncrement: num.MustDecimalFromString("0.01"),
		CounterMinSize:   num.MustDecimalFromString("10"),
	}
	return &testEngine{
		Engine: matching.New(log, matching.NewDefaultConfig(), testPair, rules, fee.New(log, fee.NewDefaultConfig(), rates), col),
		col:    col,
	}
}

func noFees() types.FeeRates {
	return types.FeeRates{Limit: num.DecimalZero(), Market: num.DecimalZero()}
}

func someFees() types.FeeRates {
	return types.FeeRates{
		Limit:  num.MustDecimalFromString("0.004"),
		Market: num.MustDecimalFromString("0.006"),
	}
}

var candleTime = time.Date(2021, 3, 1, 12, 0, 0, 0, time.UTC)

func candleRange(open, high, low, close string) types.Candle {
	candleTime = candleTime.Add(time.Minute)
	return types.Candle{
		Pair:     testPair,
		Open:     num.MustDecimalFromString(open),
		High:     num.MustDecimalFromString(high),
		Low:      num.MustDecimalFromString(low),
		Close:    num.MustDecimalFromString(close),
		Volume:   num.DecimalOne(),
		OpenTime: candleTime,
		Interval: types.Interval1M,
	}
}

func TestEngine_marketBuyFillsAtNextCandleOpen(t *testing.T) {
	e := getTestEngine(t, noFees())
	e.col.Deposit("USD", num.MustDecimalFromString("10000"))

	require.Empty(t, e.ProcessCandle(candleRange("100", "100", "100", "100")))

	order, err := e.SubmitOrder(matching.OrderSpec{
		Side: types.SideBuy,
		Type: types.OrderTypeMarket,
		Size: num.DecimalOne(),
	})
	require.NoError(t, err)

	fills := e.ProcessCandle(candleRange("105", "110", "102", "110"))
	require.Len(t, fills, 1)
	assert.Equal(t, order.ID, fills[0].OrderID)
	assert.Equal(t, "105", fills[0].Price.String())
	assert.Equal(t, "1", fills[0].Size.String())

	assert.Equal(t, "9895", e.col.Balance("USD").Available.String())
	assert.Equal(t, "0", e.col.Balance("USD").Held.String())
	assert.Equal(t, "1", e.col.Balance("BTC").Available.String())
	assert.Empty(t, e.GetPendingOrders())
}

func TestEngine_limitBuyGetsPriceImprovementOnGapDown(t *testing.T) {
	e := getTestEngine(t, noFees())
	e.col.Deposit("USD", num.MustDecimalFromString("10000"))

	require.Empty(t, e.ProcessCandle(candleRange("500", "505", "495", "500")))

	_, err := e.SubmitOrder(matching.OrderSpec{
		Side:  types.SideBuy,
		Type:  types.OrderTypeLimit,
		Size:  num.DecimalOne(),
		Price: num.MustDecimalFromString("500"),
	})
	require.NoError(t, err)

	// gap down open is honoured, never a worse price than the limit
	fills := e.ProcessCandle(candleRange("360", "400", "350", "380"))
	require.Len(t, fills, 1)
	assert.Equal(t, "360", fills[0].Price.String())

	assert.Equal(t, "9640", e.col.Balance("USD").Available.String())
	assert.Equal(t, "0", e.col.Balance("USD").Held.String())
	assert.Equal(t, "1", e.col.Balance("BTC").Available.String())
}

func TestEngine_limitSellFillsAtOrAboveLimit(t *testing.T) {
	e := getTestEngine(t, someFees())
	e.col.Deposit("BTC", num.MustDecimalFromString("2"))

	_, err := e.SubmitOrder(matching.OrderSpec{
		Side:  types.SideSell,
		Type:  types.OrderTypeLimit,
		Size:  num.DecimalOne(),
		Price: num.MustDecimalFromString("110"),
	})
	require.NoError(t, err)
	assert.Equal(t, "1", e.col.Balance("BTC").Held.String())

	fills := e.ProcessCandle(candleRange("105", "112", "100", "108"))
	require.Len(t, fills, 1)
	// max(limit, open)
	assert.Equal(t, "110", fills[0].Price.String())
	// fee = 1 * 110 * 0.004
	assert.Equal(t, "0.44", fills[0].Fee.String())
	assert.Equal(t, "USD", fills[0].FeeAsset)

	assert.Equal(t, "1", e.col.Balance("BTC").Available.String())
	assert.Equal(t, "0", e.col.Balance("BTC").Held.String())
	assert.Equal(t, "109.56", e.col.Balance("USD").Available.String())
}

func TestEngine_limitBuyBelowRangeStaysPending(t *testing.T) {
	e := getTestEngine(t, noFees())
	e.col.Deposit("USD", num.MustDecimalFromString("10000"))

	order, err := e.SubmitOrder(matching.OrderSpec{
		Side:  types.SideBuy,
		Type:  types.OrderTypeLimit,
		Size:  num.DecimalOne(),
		Price: num.MustDecimalFromString("90"),
	})
	require.NoError(t, err)

	fills := e.ProcessCandle(candleRange("95", "99", "92", "97"))
	assert.Empty(t, fills)

	pending := e.GetPendingOrders()
	require.Len(t, pending, 1)
	assert.Equal(t, order.ID, pending[0].ID)
	assert.Equal(t, "90", e.col.Balance("USD").Held.String())
}

func TestEngine_oneCandleDelay(t *testing.T) {
	e := getTestEngine(t, noFees())
	e.col.Deposit("USD", num.MustDecimalFromString("10000"))

	// the candle range would have crossed the limit price
	require.Empty(t, e.ProcessCandle(candleRange("100", "100", "80", "100")))

	// placed after the candle was processed, not matched against it
	_, err := e.SubmitOrder(matching.OrderSpec{
		Side:  types.SideBuy,
		Type:  types.OrderTypeLimit,
		Size:  num.DecimalOne(),
		Price: num.MustDecimalFromString("90"),
	})
	require.NoError(t, err)
	require.Len(t, e.GetPendingOrders(), 1)

	// not crossing, stays pending
	assert.Empty(t, e.ProcessCandle(candleRange("101", "103", "100", "102")))

	// first crossing candle after placement fills it
	fills := e.ProcessCandle(candleRange("95", "99", "89", "97"))
	require.Len(t, fills, 1)
	assert.Equal(t, "90", fills[0].Price.String())
}

func TestEngine_cancelRestoresBalancesExactly(t *testing.T) {
	e := getTestEngine(t, someFees())
	e.col.Deposit("BTC", num.MustDecimalFromString("5"))

	order, err := e.SubmitOrder(matching.OrderSpec{
		Side:  types.SideSell,
		Type:  types.OrderTypeLimit,
		Size:  num.MustDecimalFromString("2"),
		Price: num.MustDecimalFromString("100"),
	})
	require.NoError(t, err)
	assert.Equal(t, "3", e.col.Balance("BTC").Available.String())
	assert.Equal(t, "2", e.col.Balance("BTC").Held.String())

	require.NoError(t, errOnly(e.CancelOrder(order.ID)))
	assert.Equal(t, "5", e.col.Balance("BTC").Available.String())
	assert.Equal(t, "0", e.col.Balance("BTC").Held.String())
	assert.Empty(t, e.GetPendingOrders())
}

func errOnly(_ *types.Order, err error) error { return err }

func TestEngine_cancelUnknownOrder(t *testing.T) {
	e := getTestEngine(t, noFees())
	_, err := e.CancelOrder("no-such-order")
	assert.ErrorIs(t, err, matching.ErrOrderNotFound)
}

func TestEngine_rejectsWithoutTouchingBalances(t *testing.T) {
	e := getTestEngine(t, noFees())
	e.col.Deposit("USD", num.MustDecimalFromString("10000"))

	// quantized size falls below base_min_size
	_, err := e.SubmitOrder(matching.OrderSpec{
		Side:  types.SideBuy,
		Type:  types.OrderTypeLimit,
		Size:  num.MustDecimalFromString("0.009"),
		Price: num.MustDecimalFromString("100000"),
	})
	assert.ErrorIs(t, err, matching.ErrOrderRejected)

	// notional below counter_min_size
	_, err = e.SubmitOrder(matching.OrderSpec{
		Side:  types.SideBuy,
		Type:  types.OrderTypeLimit,
		Size:  num.DecimalOne(),
		Price: num.MustDecimalFromString("9.99"),
	})
	assert.ErrorIs(t, err, matching.ErrOrderRejected)

	// limit orders need a price
	_, err = e.SubmitOrder(matching.OrderSpec{
		Side: types.SideBuy,
		Type: types.OrderTypeLimit,
		Size: num.DecimalOne(),
	})
	assert.ErrorIs(t, err, matching.ErrOrderRejected)

	assert.Equal(t, "10000", e.col.Balance("USD").Available.String())
	assert.Equal(t, "0", e.col.Balance("USD").Held.String())
	assert.Empty(t, e.GetPendingOrders())
}

func TestEngine_insufficientBalancePropagatesUnchanged(t *testing.T) {
	e := getTestEngine(t, noFees())
	e.col.Deposit("USD", num.MustDecimalFromString("50"))

	_, err := e.SubmitOrder(matching.OrderSpec{
		Side:  types.SideBuy,
		Type:  types.OrderTypeLimit,
		Size:  num.DecimalOne(),
		Price: num.MustDecimalFromString("100"),
	})
	assert.ErrorIs(t, err, collateral.ErrInsufficientBalance)
	assert.Empty(t, e.GetPendingOrders())
	assert.Equal(t, "50", e.col.Balance("USD").Available.String())
}

func TestEngine_marketBuyNeedsAReferencePrice(t *testing.T) {
	e := getTestEngine(t, noFees())
	e.col.Deposit("USD", num.MustDecimalFromString("10000"))

	_, err := e.SubmitOrder(matching.OrderSpec{
		Side: types.SideBuy,
		Type: types.OrderTypeMarket,
		Size: num.DecimalOne(),
	})
	assert.ErrorIs(t, err, matching.ErrOrderRejected)
}

func TestEngine_sizeIsQuantizedDownToBaseIncrement(t *testing.T) {
	e := getTestEngine(t, noFees())
	e.col.Deposit("USD", num.MustDecimalFromString("10000"))

	order, err := e.SubmitOrder(matching.OrderSpec{
		Side:  types.SideBuy,
		Type:  types.OrderTypeLimit,
		Size:  num.MustDecimalFromString("1.23456789"),
		Price: num.MustDecimalFromString("100"),
	})
	require.NoError(t, err)
	assert.Equal(t, "1.23", order.Size.String())
	assert.Equal(t, "123", order.HoldAmount.String())
}

func TestEngine_fundsSizedMarketBuy(t *testing.T) {
	e := getTestEngine(t, noFees())
	e.col.Deposit("USD", num.MustDecimalFromString("1000"))

	require.Empty(t, e.ProcessCandle(candleRange("100", "100", "100", "100")))

	order, err := e.SubmitOrder(matching.OrderSpec{
		Side:  types.SideBuy,
		Type:  types.OrderTypeMarket,
		Funds: num.MustDecimalFromString("500"),
	})
	require.NoError(t, err)
	assert.Equal(t, "500", order.HoldAmount.String())
	assert.Equal(t, "500", e.col.Balance("USD").Held.String())

	fills := e.ProcessCandle(candleRange("100", "101", "99", "100"))
	require.Len(t, fills, 1)
	assert.Equal(t, "5", fills[0].Size.String())
	assert.Equal(t, "100", fills[0].Price.String())

	assert.Equal(t, "500", e.col.Balance("USD").Available.String())
	assert.Equal(t, "5", e.col.Balance("BTC").Available.String())
}

func TestEngine_conservationAcrossPlaceProcessCancel(t *testing.T) {
	e := getTestEngine(t, someFees())
	e.col.Deposit("USD", num.MustDecimalFromString("10000"))

	// a cancelled order leaves totals untouched
	order, err := e.SubmitOrder(matching.OrderSpec{
		Side:  types.SideBuy,
		Type:  types.OrderTypeLimit,
		Size:  num.DecimalOne(),
		Price: num.MustDecimalFromString("200"),
	})
	require.NoError(t, err)
	require.NoError(t, errOnly(e.CancelOrder(order.ID)))
	assert.Equal(t, "10000", e.col.Balance("USD").Total().String())

	// a filled buy consumes exactly trade value plus fee
	_, err = e.SubmitOrder(matching.OrderSpec{
		Side:  types.SideBuy,
		Type:  types.OrderTypeLimit,
		Size:  num.DecimalOne(),
		Price: num.MustDecimalFromString("100"),
	})
	require.NoError(t, err)

	fills := e.ProcessCandle(candleRange("100", "100", "100", "100"))
	require.Len(t, fills, 1)

	// available + held + fee paid equals the initial deposit
	total := e.col.Balance("USD").Total().
		Add(fills[0].Fee).
		Add(fills[0].Size.Mul(fills[0].Price))
	assert.Equal(t, "10000", total.String())
	assert.Equal(t, "1", e.col.Balance("BTC").Total().String())
}

func TestEngine_fillsAreMostRecentFirstAndBounded(t *testing.T) {
	e := getTestEngine(t, noFees())
	e.col.Deposit("USD", num.MustDecimalFromString("100000"))

	cfg := matching.NewDefaultConfig()
	cfg.FillRetention = 2
	e.ReloadConf(cfg)

	require.Empty(t, e.ProcessCandle(candleRange("100", "100", "100", "100")))

	var ids []string
	for i := 0; i < 3; i++ {
		order, err := e.SubmitOrder(matching.OrderSpec{
			Side: types.SideBuy,
			Type: types.OrderTypeMarket,
			Size: num.DecimalOne(),
		})
		require.NoError(t, err)
		ids = append(ids, order.ID)

		fills := e.ProcessCandle(candleRange("100", "100", "100", "100"))
		require.Len(t, fills, 1)
	}

	fills := e.GetFills()
	require.Len(t, fills, 2)
	assert.Equal(t, ids[2], fills[0].OrderID)
	assert.Equal(t, ids[1], fills[1].OrderID)

	// the by order id index follows the same retention
	_, ok := e.FillByOrderID(ids[2])
	assert.True(t, ok)
}

func TestEngine_marketOrderFillIsUnconditional(t *testing.T) {
	e := getTestEngine(t, noFees())
	e.col.Deposit("BTC", num.MustDecimalFromString("3"))

	_, err := e.SubmitOrder(matching.OrderSpec{
		Side: types.SideSell,
		Type: types.OrderTypeMarket,
		Size: num.MustDecimalFromString("2"),
	})
	require.NoError(t, err)

	fills := e.ProcessCandle(candleRange("42", "42", "42", "42"))
	require.Len(t, fills, 1)
	assert.Equal(t, "42", fills[0].Price.String())
	assert.Equal(t, "84", e.col.Balance("USD").Available.String())
	assert.Equal(t, "1", e.col.Balance("BTC").Available.String())
}
