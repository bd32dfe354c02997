package execution

import (
	"errors"

	"github.com/tickhouse/marketsim/candles"
	"github.com/tickhouse/marketsim/collateral"
	"github.com/tickhouse/marketsim/fee"
	"github.com/tickhouse/marketsim/logging"
	"github.com/tickhouse/marketsim/matching"
	"github.com/tickhouse/marketsim/num"
	"github.com/tickhouse/marketsim/types"
)

// ErrNotSupportedInSimulation is returned by operations that only a live
// venue can serve. It is a capability gap, deliberately distinct from data
// errors, so callers cannot mistake the simulator for a live data source.
var ErrNotSupportedInSimulation = errors.New("operation not supported in simulation")

// RuleProvider supplies the per pair trading rules, implemented per
// concrete exchange.
type RuleProvider interface {
	GetTradingRules(pair types.Pair) (types.TradingRules, error)
}

// FeeProvider supplies the per order-type fee rates, implemented per
// concrete exchange.
type FeeProvider interface {
	GetFeeRates(pair types.Pair) (types.FeeRates, error)
}

// Exchange is the surface this core exposes to its consumers, the session
// orchestrator and the backtest driver.
type Exchange interface {
	PlaceOrder(pair types.Pair, spec matching.OrderSpec) (*types.Order, error)
	CancelOrder(pair types.Pair, orderID string) error
	ProcessCandle(c types.Candle) ([]*types.Fill, error)
	AddToBatch(c types.Candle) (*types.BatchedCandle, error)
	ListBalances() []types.Balance
	GetFills(pair types.Pair) []*types.Fill
	GetPendingOrders(pair types.Pair) []*types.Order

	// Live venue capabilities, unsupported here.
	GetCandles(pair types.Pair, interval types.Interval) ([]types.Candle, error)
	WatchCandles(pair types.Pair, interval types.Interval) (<-chan types.Candle, error)
	UnwatchCandles(pair types.Pair, interval types.Interval) error
}

var _ Exchange = (*Simulator)(nil)

// Simulator is the deterministic in-memory implementation of Exchange. It
// wires one matching engine per traded pair over a shared collateral
// engine, and one aggregation engine per pair for the configured target
// interval. Trading rules and fee rates are fetched from the providers
// once per pair and cached for the session.
type Simulator struct {
	log *logging.Logger
	cfg Config

	interval types.Interval
	rules    RuleProvider
	feeRates FeeProvider

	collateral  *collateral.Engine
	markets     map[types.Pair]*matching.Engine
	aggregators map[types.Pair]*candles.Engine
}

// NewSimulator returns a simulated exchange aggregating candles to the
// given target interval.
func NewSimulator(
	log *logging.Logger,
	cfg Config,
	interval types.Interval,
	rules RuleProvider,
	feeRates FeeProvider,
) *Simulator {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())

	return &Simulator{
		log:         log,
		cfg:         cfg,
		interval:    interval,
		rules:       rules,
		feeRates:    feeRates,
		collateral:  collateral.New(log, cfg.Collateral),
		markets:     map[types.Pair]*matching.Engine{},
		aggregators: map[types.Pair]*candles.Engine{},
	}
}

// ReloadConf updates the configuration of the simulator and the engines it
// owns.
func (s *Simulator) ReloadConf(cfg Config) {
	s.log.Info("reloading configuration")
	if s.log.GetLevel() != cfg.Level.Get() {
		s.log.SetLevel(cfg.Level.Get())
	}
	s.cfg = cfg

	s.collateral.ReloadConf(cfg.Collateral)
	for _, m := range s.markets {
		m.ReloadConf(cfg.Matching)
	}
	for _, a := range s.aggregators {
		a.ReloadConf(cfg.Candles)
	}
}

// Deposit funds the simulation with the given available amount.
func (s *Simulator) Deposit(currency string, amount num.Decimal) {
	s.collateral.Deposit(currency, amount)
}

// market returns the matching engine for the pair, creating it on first
// use with the providers' rules and rates.
func (s *Simulator) market(pair types.Pair) (*matching.Engine, error) {
	if m, ok := s.markets[pair]; ok {
		return m, nil
	}
	rules, err := s.rules.GetTradingRules(pair)
	if err != nil {
		return nil, err
	}
	rates, err := s.feeRates.GetFeeRates(pair)
	if err != nil {
		return nil, err
	}
	m := matching.New(
		s.log,
		s.cfg.Matching,
		pair,
		rules,
		fee.New(s.log, s.cfg.Fee, rates),
		s.collateral,
	)
	s.markets[pair] = m

	s.log.Info("market created",
		logging.String("pair", pair.String()),
	)
	return m, nil
}

func (s *Simulator) aggregator(pair types.Pair) *candles.Engine {
	agg, ok := s.aggregators[pair]
	if !ok {
		agg = candles.New(s.log, s.cfg.Candles, s.interval)
		s.aggregators[pair] = agg
	}
	return agg
}

// PlaceOrder submits an order for the pair. Placement is logically
// instantaneous; the order is only matched from the next processed candle.
func (s *Simulator) PlaceOrder(pair types.Pair, spec matching.OrderSpec) (*types.Order, error) {
	m, err := s.market(pair)
	if err != nil {
		return nil, err
	}
	return m.SubmitOrder(spec)
}

// CancelOrder removes a pending order and releases its hold.
func (s *Simulator) CancelOrder(pair types.Pair, orderID string) error {
	m, ok := s.markets[pair]
	if !ok {
		return matching.ErrOrderNotFound
	}
	_, err := m.CancelOrder(orderID)
	return err
}

// ProcessCandle runs one simulation tick: every pending order on the
// candle's pair is evaluated against its open/low/high range.
func (s *Simulator) ProcessCandle(c types.Candle) ([]*types.Fill, error) {
	m, err := s.market(c.Pair)
	if err != nil {
		return nil, err
	}
	return m.ProcessCandle(c), nil
}

// AddToBatch feeds the candle into the pair's aggregation engine, returning
// a batched candle whenever a target-interval bucket closes.
func (s *Simulator) AddToBatch(c types.Candle) (*types.BatchedCandle, error) {
	return s.aggregator(c.Pair).AddToBatch(c)
}

// BatchCandles re-buckets a finite historical sequence, flushing the
// trailing partial bucket.
func (s *Simulator) BatchCandles(cs []types.Candle, interval types.Interval) ([]types.BatchedCandle, error) {
	return candles.BatchMany(s.log, s.cfg.Candles, cs, interval)
}

// ListBalances reports every currency the session has touched.
func (s *Simulator) ListBalances() []types.Balance {
	return s.collateral.ListBalances()
}

// GetFills returns the retained fills for the pair, most recent first.
func (s *Simulator) GetFills(pair types.Pair) []*types.Fill {
	m, ok := s.markets[pair]
	if !ok {
		return nil
	}
	return m.GetFills()
}

// GetPendingOrders returns the pair's pending orders in placement order.
func (s *Simulator) GetPendingOrders(pair types.Pair) []*types.Order {
	m, ok := s.markets[pair]
	if !ok {
		return nil
	}
	return m.GetPendingOrders()
}

// GetCandles is a live venue capability.
func (s *Simulator) GetCandles(pair types.Pair, interval types.Interval) ([]types.Candle, error) {
	return nil, ErrNotSupportedInSimulation
}

// WatchCandles is a live venue capability.
func (s *Simulator) WatchCandles(pair types.Pair, interval types.Interval) (<-chan types.Candle, error) {
	return nil, ErrNotSupportedInSimulation
}

// UnwatchCandles is a live venue capability.
func (s *Simulator) UnwatchCandles(pair types.Pair, interval types.Interval) error {
	return ErrNotSupportedInSimulation
}
