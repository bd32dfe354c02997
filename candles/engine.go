package candles

import (
	"errors"
	"time"

	"github.com/tickhouse/marketsim/logging"
	"github.com/tickhouse/marketsim/metrics"
	"github.com/tickhouse/marketsim/num"
	"github.com/tickhouse/marketsim/types"
)

var (
	// ErrCandleOutOfOrder signals a candle delivered with a bucket start
	// before one already accepted. Delivery order is a caller precondition.
	ErrCandleOutOfOrder = errors.New("candle delivered out of chronological order")
	// ErrIntervalMismatch signals a candle spanning more than the engine's
	// configured target interval.
	ErrIntervalMismatch = errors.New("candle interval exceeds target interval")
)

// Listener is notified of every emitted batch. Listeners receive a copy,
// never a reference into the engine's buffer.
type Listener func(types.BatchedCandle)

// Engine accumulates a stream of candles and emits one aggregate candle
// each time a target-interval bucket closes. It is a synchronous, single
// threaded state machine; callers must not share one instance across
// goroutines without external serialisation.
type Engine struct {
	log *logging.Logger
	cfg Config

	interval  types.Interval
	buf       []types.Candle
	lastStart time.Time
	seenAny   bool
	listeners []Listener
}

// New returns an aggregation engine emitting candles of the given target
// interval.
func New(log *logging.Logger, cfg Config, interval types.Interval) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())

	return &Engine{
		log:      log,
		cfg:      cfg,
		interval: interval,
	}
}

// ReloadConf is used in order to reload the internal configuration of
// the candles engine
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

// Interval returns the target interval the engine aggregates to.
func (e *Engine) Interval() types.Interval {
	return e.interval
}

// Notify registers a listener called with every emitted batch, in addition
// to the AddToBatch return value.
func (e *Engine) Notify(l Listener) {
	e.listeners = append(e.listeners, l)
}

// AddToBatch feeds one candle into the in-progress bucket. It returns a
// batched candle whenever the bucket closes, nil otherwise. Zero volume
// candles are heartbeats and leave the engine untouched.
func (e *Engine) AddToBatch(c types.Candle) (*types.BatchedCandle, error) {
	if c.Volume.IsZero() {
		return nil, nil
	}
	if c.Interval > e.interval {
		return nil, ErrIntervalMismatch
	}
	if e.seenAny && c.OpenTime.Before(e.lastStart) {
		return nil, ErrCandleOutOfOrder
	}
	e.lastStart, e.seenAny = c.OpenTime, true

	if len(e.buf) == 0 {
		aligned := e.align(c)
		e.buf = append(e.buf, aligned)
		if aligned.Interval == e.interval {
			return e.closeBucket(), nil
		}
		return nil, nil
	}

	span := c.CloseTime().Sub(e.buf[0].OpenTime)
	switch {
	case span == e.interval.Duration():
		e.buf = append(e.buf, c)
		return e.closeBucket(), nil
	case span > e.interval.Duration():
		// the candle belongs to the next bucket, sub-candles were missing
		// at the end of the current one
		batch := e.closeBucket()
		e.buf = append(e.buf, e.align(c))
		return batch, nil
	default:
		e.buf = append(e.buf, c)
		return nil, nil
	}
}

// Flush closes and emits the in-progress bucket even when it has not
// reached the full target interval. Returns nil when the buffer is empty.
func (e *Engine) Flush() *types.BatchedCandle {
	if len(e.buf) == 0 {
		return nil
	}
	return e.closeBucket()
}

// align floors the candle's bucket start to the target interval boundary,
// making it the first member of a new bucket.
func (e *Engine) align(c types.Candle) types.Candle {
	c.OpenTime = e.interval.RoundToNearest(c.OpenTime)
	return c
}

func (e *Engine) closeBucket() *types.BatchedCandle {
	members := dedupe(e.buf)
	batch := e.createBatchedCandle(members)
	e.buf = e.buf[:0]

	if e.log.GetLevel() == logging.DebugLevel {
		e.log.Debug("bucket closed",
			logging.String("pair", batch.Pair.String()),
			logging.Time("open-time", batch.OpenTime),
			logging.Int("members", len(members)),
			logging.Decimal("volume", batch.Volume),
		)
	}
	metrics.BatchCounterInc(batch.Pair.String(), e.interval.String())

	for _, l := range e.listeners {
		l(*batch)
	}
	return batch
}

// dedupe drops candles sharing an already seen bucket start, keeping the
// first occurrence. Guards against duplicate delivery from upstream feeds.
func dedupe(in []types.Candle) []types.Candle {
	out := make([]types.Candle, 0, len(in))
	seen := make(map[int64]struct{}, len(in))
	for _, c := range in {
		k := c.OpenTime.UnixNano()
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, c)
	}
	return out
}

func (e *Engine) createBatchedCandle(members []types.Candle) *types.BatchedCandle {
	first, last := members[0], members[len(members)-1]

	high, low := first.High, first.Low
	volume := num.DecimalZero()
	weighted := num.DecimalZero()
	for _, m := range members {
		high = num.MaxD(high, m.High)
		low = num.MinD(low, m.Low)
		volume = volume.Add(m.Volume)
		weighted = weighted.Add(m.MidPrice().Mul(m.Volume))
	}

	change := num.DecimalZero()
	if !last.Close.IsZero() {
		change = num.DecimalOne().Sub(first.Open.Div(last.Close)).Mul(num.DecimalHundred())
	}

	// volume weighted average of each member's own mid price, falling back
	// to the close when there was no volume at all
	weightedMedian := last.Close
	if !volume.IsZero() {
		weightedMedian = weighted.Div(volume)
	}

	agg := types.Candle{
		Pair:     first.Pair,
		Open:     first.Open,
		High:     high,
		Low:      low,
		Close:    last.Close,
		Volume:   volume,
		OpenTime: first.OpenTime,
		Interval: e.interval,
	}
	aggregateAsks(&agg, members)

	return &types.BatchedCandle{
		Candle:              agg,
		Change:              change,
		MedianPrice:         agg.MidPrice(),
		WeightedMedianPrice: weightedMedian,
		IsPositive:          last.Close.GreaterThan(first.Open),
		IsNegative:          last.Close.LessThan(first.Open),
	}
}

// aggregateAsks fills the ask side variants when every member carries them.
func aggregateAsks(agg *types.Candle, members []types.Candle) {
	for _, m := range members {
		if m.CloseAsk.IsZero() {
			return
		}
	}
	first, last := members[0], members[len(members)-1]
	highAsk, lowAsk := first.HighAsk, first.LowAsk
	for _, m := range members {
		highAsk = num.MaxD(highAsk, m.HighAsk)
		lowAsk = num.MinD(lowAsk, m.LowAsk)
	}
	agg.OpenAsk = first.OpenAsk
	agg.HighAsk = highAsk
	agg.LowAsk = lowAsk
	agg.CloseAsk = last.CloseAsk
}

// BatchMany applies the single candle algorithm over a finite historical
// sequence and flushes any partially filled trailing bucket, the only case
// where an emitted aggregate may span less than the target interval.
func BatchMany(log *logging.Logger, cfg Config, candles []types.Candle, interval types.Interval) ([]types.BatchedCandle, error) {
	e := New(log, cfg, interval)
	out := make([]types.BatchedCandle, 0, len(candles))
	for _, c := range candles {
		batch, err := e.AddToBatch(c)
		if err != nil {
			return nil, err
		}
		if batch != nil {
			out = append(out, *batch)
		}
	}
	if batch := e.Flush(); batch != nil {
		out = append(out, *batch)
	}
	return out, nil
}
