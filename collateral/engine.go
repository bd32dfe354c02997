package collateral

import (
	"errors"
	"sort"

	"github.com/tickhouse/marketsim/logging"
	"github.com/tickhouse/marketsim/num"
	"github.com/tickhouse/marketsim/types"
)

// ErrInsufficientBalance is returned when a hold or debit asks for more
// than the currency's available amount. The engine state is untouched.
var ErrInsufficientBalance = errors.New("insufficient balance")

type account struct {
	available num.Decimal
	held      num.Decimal
}

// Engine is the per currency ledger of available and held amounts. Accounts
// are created lazily on first reference and never destroyed, only zeroed.
// Hold, Release, Credit and Debit are the only operations that move funds,
// which is what keeps the conservation property checkable.
type Engine struct {
	log *logging.Logger
	cfg Config

	accounts map[string]*account
}

// New instantiates a new collateral engine.
func New(log *logging.Logger, cfg Config) *Engine {
	log = log.Named(namedLogger)
	log.SetLevel(cfg.Level.Get())

	return &Engine{
		log:      log,
		cfg:      cfg,
		accounts: map[string]*account{},
	}
}

// ReloadConf updates the internal configuration of the collateral engine.
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

func (e *Engine) account(currency string) *account {
	acc, ok := e.accounts[currency]
	if !ok {
		acc = &account{
			available: num.DecimalZero(),
			held:      num.DecimalZero(),
		}
		e.accounts[currency] = acc
	}
	return acc
}

// Deposit credits the available amount for a currency. This is how a
// simulation session is funded.
func (e *Engine) Deposit(currency string, amount num.Decimal) {
	acc := e.account(currency)
	acc.available = acc.available.Add(amount)

	e.log.Debug("deposit",
		logging.String("currency", currency),
		logging.Decimal("amount", amount),
	)
}

// Hold moves amount from available to held, failing with
// ErrInsufficientBalance when available does not cover it.
func (e *Engine) Hold(currency string, amount num.Decimal) error {
	acc := e.account(currency)
	if acc.available.LessThan(amount) {
		return ErrInsufficientBalance
	}
	acc.available = acc.available.Sub(amount)
	acc.held = acc.held.Add(amount)
	return nil
}

// Release moves min(amount, held) from held back to available. The cap
// means a release larger than the original hold, after price improvement
// reconciliation, never drives held negative.
func (e *Engine) Release(currency string, amount num.Decimal) {
	acc := e.account(currency)
	amount = num.MinD(amount, acc.held)
	acc.held = acc.held.Sub(amount)
	acc.available = acc.available.Add(amount)
}

// Credit adds directly to available, used for sale proceeds or bought
// assets.
func (e *Engine) Credit(currency string, amount num.Decimal) {
	acc := e.account(currency)
	acc.available = acc.available.Add(amount)
}

// Debit removes from available. It is used by fill settlement, after the
// matching engine released the order's hold, to consume the trade value
// plus fee.
func (e *Engine) Debit(currency string, amount num.Decimal) error {
	acc := e.account(currency)
	if acc.available.LessThan(amount) {
		return ErrInsufficientBalance
	}
	acc.available = acc.available.Sub(amount)
	return nil
}

// Balance returns the current balance for a currency. Referencing an
// unknown currency creates its empty account.
func (e *Engine) Balance(currency string) types.Balance {
	acc := e.account(currency)
	return types.Balance{
		Currency:  currency,
		Available: acc.available,
		Held:      acc.held,
	}
}

// ListBalances returns all balances sorted by currency.
func (e *Engine) ListBalances() []types.Balance {
	out := make([]types.Balance, 0, len(e.accounts))
	for currency, acc := range e.accounts {
		out = append(out, types.Balance{
			Currency:  currency,
			Available: acc.available,
			Held:      acc.held,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Currency < out[j].Currency })
	return out
}
