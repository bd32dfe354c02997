package matching

import (
	"time"

	"github.com/google/uuid"
	lru "github.com/hashicorp/golang-lru"
	"github.com/pkg/errors"

	"github.com/tickhouse/marketsim/collateral"
	"github.com/tickhouse/marketsim/fee"
	"github.com/tickhouse/marketsim/logging"
	"github.com/tickhouse/marketsim/metrics"
	"github.com/tickhouse/marketsim/num"
	"github.com/tickhouse/marketsim/types"
)

var (
	// ErrOrderRejected is returned when the quantized size or notional
	// falls outside the pair's trading rules. No balance is touched.
	ErrOrderRejected = errors.New("order rejected")
	// ErrOrderNotFound is returned by cancel when the id does not match a
	// pending order.
	ErrOrderNotFound = errors.New("order not found")
)

// OrderSpec describes an order to place. Market buys carry either Size
// (base amount) or Funds (counter amount), every other combination carries
// Size; limit orders also carry Price.
type OrderSpec struct {
	Side  types.Side
	Type  types.OrderType
	Size  num.Decimal
	Funds num.Decimal
	Price num.Decimal
}

// Engine simulates order placement and fill-against-candle matching for a
// single pair on top of the collateral engine. Orders are either fully
// filled or fully pending, there are no partial fills. The engine is a
// synchronous state machine; callers serialize access.
type Engine struct {
	log *logging.Logger
	cfg Config

	pair       types.Pair
	rules      types.TradingRules
	fees       *fee.Engine
	collateral *collateral.Engine

	pending      []*types.Order
	fills        []*types.Fill
	fillsByOrder *lru.Cache

	lastClose num.Decimal
}

// New returns a matching engine for one pair, with the pair's trading
// rules cached for the session.
func New(
	log *logging.Logger,
	cfg Config,
	pair types.Pair,
	rules types.TradingRules,
	fees *fee.Engine,
	col *collateral.Engine,
) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())

	retention := cfg.FillRetention
	if retention <= 0 {
		retention = defaultFillRetention
	}
	// lru.New only errors on a non positive size
	byOrder, _ := lru.New(retention)

	return &Engine{
		log:          log,
		cfg:          cfg,
		pair:         pair,
		rules:        rules,
		fees:         fees,
		collateral:   col,
		fillsByOrder: byOrder,
	}
}

// ReloadConf is used in order to reload the internal configuration of
// the matching engine
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

// Pair returns the pair this engine simulates.
func (e *Engine) Pair() types.Pair {
	return e.pair
}

// SubmitOrder validates, reserves and records a new pending order. The
// order only becomes eligible for matching on the next processed candle.
func (e *Engine) SubmitOrder(spec OrderSpec) (*types.Order, error) {
	order, err := e.buildOrder(spec)
	if err != nil {
		metrics.OrderCounterInc(e.pair.String(), "rejected")
		return nil, err
	}

	if err := e.collateral.Hold(order.HoldCurrency, order.HoldAmount); err != nil {
		metrics.OrderCounterInc(e.pair.String(), "rejected")
		return nil, err
	}

	order.ID = uuid.NewString()
	order.CreatedAt = time.Now()
	e.pending = append(e.pending, order)

	e.log.Debug("order placed",
		logging.String("order-id", order.ID),
		logging.String("side", order.Side.String()),
		logging.String("type", order.Type.String()),
		logging.Decimal("size", order.Size),
		logging.Decimal("price", order.Price),
		logging.Decimal("hold", order.HoldAmount),
	)
	metrics.OrderCounterInc(e.pair.String(), "accepted")
	metrics.PendingOrderGaugeAdd(1, e.pair.String())

	return order, nil
}

// buildOrder quantizes the requested amounts against the pair's trading
// rules and computes the reservation. It touches no balance.
func (e *Engine) buildOrder(spec OrderSpec) (*types.Order, error) {
	if spec.Side != types.SideBuy && spec.Side != types.SideSell {
		return nil, errors.Wrap(ErrOrderRejected, "side must be BUY or SELL")
	}

	order := &types.Order{
		Pair: e.pair,
		Side: spec.Side,
		Type: spec.Type,
	}

	switch spec.Type {
	case types.OrderTypeLimit:
		if spec.Price.LessThanOrEqual(num.DecimalZero()) {
			return nil, errors.Wrap(ErrOrderRejected, "limit orders require a positive price")
		}
		size, err := e.quantizeBase(spec.Size)
		if err != nil {
			return nil, err
		}
		notional := num.QuantizeDown(size.Mul(spec.Price), e.rules.CounterIncrement)
		if notional.LessThan(e.rules.CounterMinSize) {
			return nil, errors.Wrap(ErrOrderRejected, "notional below counter_min_size")
		}
		order.Size = size
		order.Price = spec.Price
		if spec.Side == types.SideBuy {
			order.HoldCurrency = e.pair.Counter
			order.HoldAmount = size.Mul(spec.Price).Mul(e.feeMultiplier(types.OrderTypeLimit))
		} else {
			order.HoldCurrency = e.pair.Base
			order.HoldAmount = size
		}

	case types.OrderTypeMarket:
		if !spec.Funds.IsZero() {
			if spec.Side != types.SideBuy {
				return nil, errors.Wrap(ErrOrderRejected, "funds sizing only supported for market buys")
			}
			funds := num.QuantizeDown(spec.Funds, e.rules.CounterIncrement)
			if funds.LessThan(e.rules.CounterMinSize) {
				return nil, errors.Wrap(ErrOrderRejected, "funds below counter_min_size")
			}
			order.Funds = funds
			order.HoldCurrency = e.pair.Counter
			order.HoldAmount = funds
			break
		}
		size, err := e.quantizeBase(spec.Size)
		if err != nil {
			return nil, err
		}
		order.Size = size
		if spec.Side == types.SideBuy {
			// the true price is unknown until fill, reserve against the
			// last seen close as a best effort estimate
			if e.lastClose.IsZero() {
				return nil, errors.Wrap(ErrOrderRejected, "no reference price for market buy yet")
			}
			order.HoldCurrency = e.pair.Counter
			order.HoldAmount = size.Mul(e.lastClose).Mul(e.feeMultiplier(types.OrderTypeMarket))
		} else {
			order.HoldCurrency = e.pair.Base
			order.HoldAmount = size
		}

	default:
		return nil, errors.Wrap(ErrOrderRejected, "type must be LIMIT or MARKET")
	}

	return order, nil
}

func (e *Engine) quantizeBase(size num.Decimal) (num.Decimal, error) {
	size = num.QuantizeDown(size, e.rules.BaseIncrement)
	if size.LessThan(e.rules.BaseMinSize) || size.IsZero() {
		return num.DecimalZero(), errors.Wrap(ErrOrderRejected, "size below base_min_size")
	}
	if !e.rules.BaseMaxSize.IsZero() && size.GreaterThan(e.rules.BaseMaxSize) {
		return num.DecimalZero(), errors.Wrap(ErrOrderRejected, "size above base_max_size")
	}
	return size, nil
}

// feeMultiplier is 1 + the fee rate for the order type.
func (e *Engine) feeMultiplier(t types.OrderType) num.Decimal {
	return num.DecimalOne().Add(e.fees.RateFor(t))
}

// ProcessCandle evaluates every pending order against the candle's
// open/low/high range and settles the matches. Orders placed after this
// call returns are only eligible from the next candle, an order can never
// retroactively trade against a bar that closed before it was submitted.
func (e *Engine) ProcessCandle(c types.Candle) []*types.Fill {
	before := len(e.pending)
	fills := make([]*types.Fill, 0, before)
	remaining := e.pending[:0]

	for _, order := range e.pending {
		fill, ok := e.tryMatch(order, c)
		if !ok {
			remaining = append(remaining, order)
			continue
		}
		if fill != nil {
			fills = append(fills, fill)
		}
	}
	e.pending = remaining
	e.lastClose = c.Close

	if removed := before - len(remaining); removed > 0 {
		metrics.PendingOrderGaugeAdd(-removed, e.pair.String())
	}
	return fills
}

// tryMatch attempts to fill one order against the candle. The second
// return value reports whether the order left the pending set, a nil fill
// with true means the order was dropped without trading.
func (e *Engine) tryMatch(order *types.Order, c types.Candle) (*types.Fill, bool) {
	var price num.Decimal
	switch {
	case order.Type == types.OrderTypeMarket:
		// market orders fill at the open, unconditionally
		price = c.Open
	case order.Side == types.SideBuy:
		if c.Low.GreaterThan(order.Price) {
			return nil, false
		}
		// price improvement: honour a gap-down open, never fill worse
		// than the limit
		price = num.MinD(order.Price, c.Open)
	default:
		if c.High.LessThan(order.Price) {
			return nil, false
		}
		price = num.MaxD(order.Price, c.Open)
	}

	size := order.Size
	if order.Type == types.OrderTypeMarket && size.IsZero() {
		// funds sized market buy, derive the base size from the fill price
		rate := e.fees.RateFor(types.OrderTypeMarket)
		size = num.QuantizeDown(order.Funds.Div(num.DecimalOne().Add(rate)).Div(price), e.rules.BaseIncrement)
		if size.IsZero() {
			// funds no longer buy a single increment at this price
			e.collateral.Release(order.HoldCurrency, order.HoldAmount)
			e.log.Warn("dropping funds sized market buy, funds below one base increment at fill price",
				logging.String("order-id", order.ID),
				logging.Decimal("funds", order.Funds),
				logging.Decimal("price", price),
			)
			return nil, true
		}
	}

	fee := e.fees.Calculate(order.Type, size, price)

	if order.Side == types.SideBuy {
		spend := size.Mul(price).Add(fee)
		e.collateral.Release(order.HoldCurrency, order.HoldAmount)
		if err := e.collateral.Debit(order.HoldCurrency, spend); err != nil {
			// the estimate based hold plus available no longer covers the
			// spend after an adverse gap; keep the order pending
			if herr := e.collateral.Hold(order.HoldCurrency, order.HoldAmount); herr != nil {
				e.log.Error("unable to re-establish hold", logging.Error(herr))
			}
			e.log.Warn("market moved beyond reserved amount, order stays pending",
				logging.String("order-id", order.ID),
				logging.Decimal("spend", spend),
				logging.Decimal("hold", order.HoldAmount),
			)
			return nil, false
		}
		e.collateral.Credit(e.pair.Base, size)
	} else {
		e.collateral.Release(order.HoldCurrency, order.HoldAmount)
		if err := e.collateral.Debit(e.pair.Base, size); err != nil {
			// the hold covered exactly this size, a failure here means the
			// ledger is inconsistent
			e.log.Error("sell settlement failed", logging.Error(err))
			return nil, false
		}
		proceeds := size.Mul(price).Sub(fee)
		e.collateral.Credit(e.pair.Counter, proceeds)
	}

	fill := &types.Fill{
		ID:        uuid.NewString(),
		OrderID:   order.ID,
		Pair:      e.pair,
		Side:      order.Side,
		Price:     price,
		Size:      size,
		Fee:       fee,
		FeeAsset:  e.pair.Counter,
		CreatedAt: c.OpenTime,
	}
	e.recordFill(fill)

	e.log.Debug("order filled",
		logging.String("order-id", order.ID),
		logging.Decimal("price", price),
		logging.Decimal("size", size),
		logging.Decimal("fee", fee),
	)
	metrics.FillCounterInc(e.pair.String(), order.Side.String())

	return fill, true
}

func (e *Engine) recordFill(fill *types.Fill) {
	e.fills = append(e.fills, fill)
	retention := e.cfg.FillRetention
	if retention <= 0 {
		retention = defaultFillRetention
	}
	if len(e.fills) > retention {
		e.fills = append(e.fills[:0:0], e.fills[len(e.fills)-retention:]...)
	}
	e.fillsByOrder.Add(fill.OrderID, fill)
}

// CancelOrder removes a pending order and releases the hold recorded on it
// at placement.
func (e *Engine) CancelOrder(id string) (*types.Order, error) {
	for i, order := range e.pending {
		if order.ID != id {
			continue
		}
		e.pending = append(e.pending[:i], e.pending[i+1:]...)
		e.collateral.Release(order.HoldCurrency, order.HoldAmount)

		e.log.Debug("order cancelled", logging.String("order-id", id))
		metrics.OrderCounterInc(e.pair.String(), "cancelled")
		metrics.PendingOrderGaugeAdd(-1, e.pair.String())
		return order, nil
	}
	return nil, ErrOrderNotFound
}

// GetPendingOrders returns the pending set in placement order.
func (e *Engine) GetPendingOrders() []*types.Order {
	out := make([]*types.Order, len(e.pending))
	copy(out, e.pending)
	return out
}

// GetFills returns the retained fills, most recent first.
func (e *Engine) GetFills() []*types.Fill {
	out := make([]*types.Fill, 0, len(e.fills))
	for i := len(e.fills) - 1; i >= 0; i-- {
		out = append(out, e.fills[i])
	}
	return out
}

// FillByOrderID looks up the fill produced by the given order, while it is
// retained.
func (e *Engine) FillByOrderID(orderID string) (*types.Fill, bool) {
	v, ok := e.fillsByOrder.Get(orderID)
	if !ok {
		return nil, false
	}
	return v.(*types.Fill), true
}
