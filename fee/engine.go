package fee

import (
	"github.com/tickhouse/marketsim/logging"
	"github.com/tickhouse/marketsim/num"
	"github.com/tickhouse/marketsim/types"
)

// Engine applies the venue's per order-type fee factors to fills. The
// factors are cached once at construction rather than looked up per tick.
type Engine struct {
	log *logging.Logger
	cfg Config

	rates types.FeeRates
}

// New returns a fee engine for the given rates.
func New(log *logging.Logger, cfg Config, rates types.FeeRates) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())

	return &Engine{
		log:   log,
		cfg:   cfg,
		rates: rates,
	}
}

// ReloadConf is used in order to reload the internal configuration of
// the fee engine
func (e *Engine) ReloadConf(cfg Config) {
	e.log.Info("reloading configuration")
	if e.log.GetLevel() != cfg.Level.Get() {
		e.log.Info("updating log level",
			logging.String("old", e.log.GetLevel().String()),
			logging.String("new", cfg.Level.String()),
		)
		e.log.SetLevel(cfg.Level.Get())
	}

	e.cfg = cfg
}

// Update replaces the cached fee factors.
func (e *Engine) Update(rates types.FeeRates) {
	e.rates = rates
}

// RateFor returns the factor applied to fills of the given order type,
// where 1 means 100%.
func (e *Engine) RateFor(t types.OrderType) num.Decimal {
	return e.rates.RateFor(t)
}

// Calculate returns the fee charged on a fill of the given type,
// size * price * rate.
func (e *Engine) Calculate(t types.OrderType, size, price num.Decimal) num.Decimal {
	return size.Mul(price).Mul(e.rates.RateFor(t))
}
