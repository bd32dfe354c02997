package main

import (
	"encoding/csv"
	"io"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"

	"github.com/tickhouse/marketsim/execution"
	"github.com/tickhouse/marketsim/logging"
	"github.com/tickhouse/marketsim/metrics"
	"github.com/tickhouse/marketsim/num"
	"github.com/tickhouse/marketsim/types"
)

var replayArgs struct {
	candlesPath string
	pair        string
	interval    time.Duration
	deposits    []string
}

var replayCmd = &cobra.Command{
	Use:   "replay",
	Short: "Replay a CSV candle file through the simulator",
	Long: "Streams candles from a CSV file through the aggregation engine " +
		"and the per-candle matching tick, then reports balances. CSV " +
		"columns: open_time (RFC3339), interval (duration), open, high, " +
		"low, close, volume as exact decimal strings.",
	RunE: runReplay,
}

func init() {
	replayCmd.Flags().StringVar(&replayArgs.candlesPath, "candles", "", "path to the candle CSV file")
	replayCmd.Flags().StringVar(&replayArgs.pair, "pair", "BTC-USD", "pair the candles belong to")
	replayCmd.Flags().DurationVar(&replayArgs.interval, "interval", time.Hour, "target aggregation interval")
	replayCmd.Flags().StringArrayVar(&replayArgs.deposits, "deposit", []string{"USD=10000"}, "initial deposit, CURRENCY=AMOUNT, repeatable")
	replayCmd.MarkFlagRequired("candles")
}

func runReplay(cmd *cobra.Command, args []string) error {
	log := newLogger()
	defer log.AtExit()

	cfg := loadConfig(log)
	metrics.Start(cfg.Metrics)

	pair, err := types.ParsePair(replayArgs.pair)
	if err != nil {
		log.Error("invalid pair", logging.Error(err))
		return err
	}

	sim := execution.NewSimulator(
		log,
		cfg.Execution,
		types.Interval(replayArgs.interval),
		defaultRules{},
		defaultRules{},
	)
	for _, d := range replayArgs.deposits {
		currency, amount, err := parseDeposit(d)
		if err != nil {
			log.Error("invalid deposit", logging.Error(err))
			return err
		}
		sim.Deposit(currency, amount)
	}

	candles, err := readCandles(replayArgs.candlesPath, pair)
	if err != nil {
		log.Error("unable to read candles", logging.Error(err))
		return err
	}
	log.Info("replaying candles",
		logging.String("pair", pair.String()),
		logging.Int("count", len(candles)),
		logging.Duration("interval", replayArgs.interval),
	)

	batches := 0
	for _, c := range candles {
		fills, err := sim.ProcessCandle(c)
		if err != nil {
			log.Error("tick failed", logging.Error(err))
			return err
		}
		for _, f := range fills {
			log.Info("fill",
				logging.String("order-id", f.OrderID),
				logging.Decimal("price", f.Price),
				logging.Decimal("size", f.Size),
				logging.Decimal("fee", f.Fee),
			)
		}

		batch, err := sim.AddToBatch(c)
		if err != nil {
			log.Error("aggregation failed", logging.Error(err))
			return err
		}
		if batch != nil {
			batches++
			log.Info("batch",
				logging.Time("open-time", batch.OpenTime),
				logging.Decimal("open", batch.Open),
				logging.Decimal("close", batch.Close),
				logging.Decimal("change", batch.Change),
				logging.Decimal("volume", batch.Volume),
			)
		}
	}

	log.Info("replay done", logging.Int("batches", batches))
	for _, b := range sim.ListBalances() {
		log.Info("balance",
			logging.String("currency", b.Currency),
			logging.Decimal("available", b.Available),
			logging.Decimal("hold", b.Held),
		)
	}
	return nil
}

func parseDeposit(s string) (string, num.Decimal, error) {
	parts := strings.SplitN(s, "=", 2)
	if len(parts) != 2 {
		return "", num.DecimalZero(), errors.Errorf("invalid deposit %q, want CURRENCY=AMOUNT", s)
	}
	amount, err := num.DecimalFromString(parts[1])
	if err != nil {
		return "", num.DecimalZero(), errors.Wrapf(err, "invalid deposit amount %q", parts[1])
	}
	return parts[0], amount, nil
}

// readCandles parses a CSV candle file. All monetary columns are exact
// decimal strings.
func readCandles(path string, pair types.Pair) ([]types.Candle, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "unable to open candle file")
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = 7

	out := []types.Candle{}
	line := 0
	for {
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrap(err, "unable to parse candle file")
		}
		line++
		if line == 1 && rec[0] == "open_time" {
			continue
		}
		c, err := parseCandle(rec, pair)
		if err != nil {
			return nil, errors.Wrapf(err, "line %d", line)
		}
		out = append(out, c)
	}
	return out, nil
}

func parseCandle(rec []string, pair types.Pair) (types.Candle, error) {
	openTime, err := time.Parse(time.RFC3339, rec[0])
	if err != nil {
		return types.Candle{}, errors.Wrap(err, "invalid open_time")
	}
	interval, err := time.ParseDuration(rec[1])
	if err != nil {
		return types.Candle{}, errors.Wrap(err, "invalid interval")
	}
	c := types.Candle{
		Pair:     pair,
		OpenTime: openTime,
		Interval: types.Interval(interval),
	}
	for i, dst := range []*num.Decimal{&c.Open, &c.High, &c.Low, &c.Close, &c.Volume} {
		d, err := num.DecimalFromString(rec[i+2])
		if err != nil {
			return types.Candle{}, errors.Wrapf(err, "invalid decimal %q", rec[i+2])
		}
		*dst = d
	}
	return c, nil
}

// defaultRules is the static collaborator used for CSV replays, standing in
// for a real venue's rule and fee endpoints.
type defaultRules struct{}

func (defaultRules) GetTradingRules(pair types.Pair) (types.TradingRules, error) {
	return types.TradingRules{
		BaseIncrement:    num.MustDecimalFromString("0.00000001"),
		BaseMinSize:      num.MustDecimalFromString("0.0001"),
		BaseMaxSize:      num.MustDecimalFromString("10000"),
		CounterIncrement: num.MustDecimalFromString("0.01"),
		CounterMinSize:   num.MustDecimalFromString("1"),
	}, nil
}

func (defaultRules) GetFeeRates(pair types.Pair) (types.FeeRates, error) {
	return types.FeeRates{
		Limit:  num.MustDecimalFromString("0.004"),
		Market: num.MustDecimalFromString("0.006"),
	}, nil
}
