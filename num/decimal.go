package num

import (
	"github.com/shopspring/decimal"
)

// Decimal is the exact arithmetic type used for every monetary value in the
// simulation (prices, sizes, volumes, fees, balances). Binary floating point
// must never carry one of these values.
type Decimal = decimal.Decimal

var (
	dzero = decimal.Zero
	d1    = decimal.NewFromInt(1)
	d100  = decimal.NewFromInt(100)
)

func DecimalZero() Decimal {
	return dzero
}

func DecimalOne() Decimal {
	return d1
}

func DecimalHundred() Decimal {
	return d100
}

func DecimalFromInt64(i int64) Decimal {
	return decimal.NewFromInt(i)
}

func DecimalFromString(s string) (Decimal, error) {
	return decimal.NewFromString(s)
}

// MustDecimalFromString is for static initialisers and tests only.
func MustDecimalFromString(s string) Decimal {
	d, err := DecimalFromString(s)
	if err != nil {
		panic(err)
	}
	return d
}

func MaxD(a, b Decimal) Decimal {
	if a.GreaterThan(b) {
		return a
	}
	return b
}

func MinD(a, b Decimal) Decimal {
	if a.LessThan(b) {
		return a
	}
	return b
}

// QuantizeDown floors v to the nearest multiple of increment. A zero or
// negative increment leaves v untouched.
func QuantizeDown(v, increment Decimal) Decimal {
	if increment.LessThanOrEqual(dzero) {
		return v
	}
	return v.Div(increment).Floor().Mul(increment)
}

// Sum adds up the given decimals, zero when called with none.
func Sum(ds ...Decimal) Decimal {
	total := dzero
	for _, d := range ds {
		total = total.Add(d)
	}
	return total
}
