package fee_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tickhouse/marketsim/fee"
	"github.com/tickhouse/marketsim/logging"
	"github.com/tickhouse/marketsim/num"
	"github.com/tickhouse/marketsim/types"
)

func getTestEngine(t *testing.T) *fee.Engine {
	t.Helper()
	return fee.New(logging.NewTestLogger(), fee.NewDefaultConfig(), types.FeeRates{
		Limit:  num.MustDecimalFromString("0.004"),
		Market: num.MustDecimalFromString("0.006"),
	})
}

func TestEngine_ratePerOrderType(t *testing.T) {
	e := getTestEngine(t)
	assert.Equal(t, "0.004", e.RateFor(types.OrderTypeLimit).String())
	assert.Equal(t, "0.006", e.RateFor(types.OrderTypeMarket).String())
}

func TestEngine_calculateIsSizeTimesPriceTimesRate(t *testing.T) {
	e := getTestEngine(t)

	// 2 * 100 * 0.004
	got := e.Calculate(types.OrderTypeLimit, num.MustDecimalFromString("2"), num.MustDecimalFromString("100"))
	assert.Equal(t, "0.8", got.String())

	// 0.5 * 105 * 0.006
	got = e.Calculate(types.OrderTypeMarket, num.MustDecimalFromString("0.5"), num.MustDecimalFromString("105"))
	assert.Equal(t, "0.315", got.String())
}

func TestEngine_updateReplacesFactors(t *testing.T) {
	e := getTestEngine(t)
	e.Update(types.FeeRates{
		Limit:  num.DecimalZero(),
		Market: num.DecimalOne(),
	})

	// a rate of 1 means 100%
	got := e.Calculate(types.OrderTypeMarket, num.DecimalOne(), num.MustDecimalFromString("42"))
	assert.Equal(t, "42", got.String())
	assert.Equal(t, "0", e.Calculate(types.OrderTypeLimit, num.DecimalOne(), num.MustDecimalFromString("42")).String())
}
