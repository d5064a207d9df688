// Package risk gates candidate trades behind configurable limits, rolling
// daily counters, a persisted daily performance tracker, and a safety
// circuit breaker.
package risk

import (
	"errors"
	"fmt"
	"strings"
)

// Limits is the validated set of numeric trading boundaries. It is loaded
// once at startup, read on every gate decision, and mutable only through Set.
type Limits struct {
	MinTradeAmount float64
	MaxTradeAmount float64

	MaxDailyTrades       int
	MaxConsecutiveLosses int

	MaxDailyLoss    float64
	MaxLossPerTrade float64

	MaxPositionSizePct float64

	MinProfitPct float64
	MinScore     float64

	MaxSlippagePct float64

	MinBalanceUSD float64
	ReservePct    float64
}

// DefaultLimits returns the conservative out-of-the-box boundaries.
func DefaultLimits() Limits {
	return Limits{
		MinTradeAmount:       10.0,
		MaxTradeAmount:       100.0,
		MaxDailyTrades:       50,
		MaxConsecutiveLosses: 5,
		MaxDailyLoss:         500.0,
		MaxLossPerTrade:      50.0,
		MaxPositionSizePct:   10.0,
		MinProfitPct:         0.5,
		MinScore:             70.0,
		MaxSlippagePct:       0.5,
		MinBalanceUSD:        1000.0,
		ReservePct:           10.0,
	}
}

// Validate checks internal consistency, reporting every problem found.
func (l Limits) Validate() error {
	var errs []error

	if l.MinTradeAmount >= l.MaxTradeAmount {
		errs = append(errs, errors.New("min_trade_amount must be < max_trade_amount"))
	}
	if l.MaxLossPerTrade >= l.MaxDailyLoss {
		errs = append(errs, errors.New("max_loss_per_trade must be < max_daily_loss"))
	}

	for name, v := range map[string]float64{
		"min_trade_amount":       l.MinTradeAmount,
		"max_trade_amount":       l.MaxTradeAmount,
		"max_daily_trades":       float64(l.MaxDailyTrades),
		"max_consecutive_losses": float64(l.MaxConsecutiveLosses),
		"max_daily_loss":         l.MaxDailyLoss,
		"max_loss_per_trade":     l.MaxLossPerTrade,
		"max_position_size_pct":  l.MaxPositionSizePct,
		"min_profit_pct":         l.MinProfitPct,
		"min_score":              l.MinScore,
		"max_slippage_pct":       l.MaxSlippagePct,
		"min_balance_usd":        l.MinBalanceUSD,
		"reserve_pct":            l.ReservePct,
	} {
		if v < 0 {
			errs = append(errs, fmt.Errorf("%s must not be negative", name))
		}
	}

	for name, v := range map[string]float64{
		"max_position_size_pct": l.MaxPositionSizePct,
		"reserve_pct":           l.ReservePct,
		"max_slippage_pct":      l.MaxSlippagePct,
	} {
		if v > 100 {
			errs = append(errs, fmt.Errorf("%s must not exceed 100", name))
		}
	}

	return errors.Join(errs...)
}

// Set updates one named limit and re-validates the whole set. The receiver is
// unchanged when the new value would make the limits inconsistent.
func (l *Limits) Set(key string, value float64) error {
	next := *l

	switch strings.ToLower(key) {
	case "min_trade_amount":
		next.MinTradeAmount = value
	case "max_trade_amount":
		next.MaxTradeAmount = value
	case "max_daily_trades":
		next.MaxDailyTrades = int(value)
	case "max_consecutive_losses":
		next.MaxConsecutiveLosses = int(value)
	case "max_daily_loss":
		next.MaxDailyLoss = value
	case "max_loss_per_trade":
		next.MaxLossPerTrade = value
	case "max_position_size_pct":
		next.MaxPositionSizePct = value
	case "min_profit_pct":
		next.MinProfitPct = value
	case "min_score":
		next.MinScore = value
	case "max_slippage_pct":
		next.MaxSlippagePct = value
	case "min_balance_usd":
		next.MinBalanceUSD = value
	case "reserve_pct":
		next.ReservePct = value
	default:
		return fmt.Errorf("risk: unknown limit %q", key)
	}

	if err := next.Validate(); err != nil {
		return fmt.Errorf("risk: set %s=%v: %w", key, value, err)
	}
	*l = next
	return nil
}
