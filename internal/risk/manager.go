package risk

import (
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// Decision is the outcome of gating one candidate.
type Decision struct {
	Allowed bool
	Reason  string
}

// DailyStats is a snapshot of the manager's rolling counters.
type DailyStats struct {
	Date              string
	TradesCount       int
	TradesRemaining   int
	DailyPnLUSD       float64
	LossRemainingUSD  float64
	ConsecutiveLosses int
	CurrentBalanceUSD float64
}

// Manager applies Limits plus live daily counters to gate each candidate
// trade. All mutations happen on the orchestrator's control goroutine; the
// type is deliberately not safe for concurrent use.
type Manager struct {
	limits Limits
	logger *slog.Logger
	nowFn  func() time.Time

	day               string
	dailyTrades       int
	dailyPnL          float64
	consecutiveLosses int
	balanceUSD        float64
}

// NewManager creates a Manager with validated limits.
func NewManager(limits Limits, logger *slog.Logger) (*Manager, error) {
	if err := limits.Validate(); err != nil {
		return nil, fmt.Errorf("risk: invalid limits: %w", err)
	}
	m := &Manager{
		limits: limits,
		logger: logger.With(slog.String("component", "risk")),
		nowFn:  time.Now,
	}
	m.day = domain.Day(m.nowFn())
	return m, nil
}

// Limits returns the active limit set.
func (m *Manager) Limits() Limits { return m.limits }

// SetLimit updates one named limit, keeping the set consistent.
func (m *Manager) SetLimit(key string, value float64) error {
	if err := m.limits.Set(key, value); err != nil {
		return err
	}
	m.logger.Info("limit updated", slog.String("key", key), slog.Float64("value", value))
	return nil
}

// UpdateBalance records the latest known account balance.
func (m *Manager) UpdateBalance(balanceUSD float64) {
	m.balanceUSD = balanceUSD
}

// rolloverIfNeeded resets the daily counters when the calendar day has
// changed since the last mutating call. The consecutive-loss counter
// deliberately survives rollover; only a winning trade clears it.
func (m *Manager) rolloverIfNeeded() {
	today := domain.Day(m.nowFn())
	if today == m.day {
		return
	}
	m.logger.Info("new day detected, resetting daily counters",
		slog.String("old_date", m.day),
		slog.String("new_date", today),
		slog.Int("trades_yesterday", m.dailyTrades),
		slog.Float64("pnl_yesterday", m.dailyPnL))
	m.day = today
	m.dailyTrades = 0
	m.dailyPnL = 0
}

// CanTrade runs the sequential gate over cand for a trade of amountUSD.
// Checks run in a fixed order and stop at the first failure; every rejection
// carries a distinct reason. Amounts exactly at the min/max boundaries pass.
func (m *Manager) CanTrade(cand domain.Candidate, amountUSD float64) Decision {
	m.rolloverIfNeeded()

	if amountUSD <= 0 {
		amountUSD = m.limits.MaxTradeAmount
	}

	if amountUSD < m.limits.MinTradeAmount {
		return m.reject(fmt.Sprintf("amount too small: $%.2f < $%.2f", amountUSD, m.limits.MinTradeAmount))
	}
	if amountUSD > m.limits.MaxTradeAmount {
		return m.reject(fmt.Sprintf("amount too large: $%.2f > $%.2f", amountUSD, m.limits.MaxTradeAmount))
	}
	if m.dailyTrades >= m.limits.MaxDailyTrades {
		return m.reject(fmt.Sprintf("daily trade cap reached: %d/%d", m.dailyTrades, m.limits.MaxDailyTrades))
	}
	if m.dailyPnL <= -m.limits.MaxDailyLoss {
		return m.reject(fmt.Sprintf("daily loss cap reached: $%.2f", m.dailyPnL))
	}
	if m.consecutiveLosses >= m.limits.MaxConsecutiveLosses {
		return m.reject(fmt.Sprintf("too many consecutive losses: %d", m.consecutiveLosses))
	}

	// Balance checks only apply once a balance has been reported.
	if m.balanceUSD > 0 {
		if m.balanceUSD < m.limits.MinBalanceUSD {
			return m.reject(fmt.Sprintf("balance too low: $%.2f < $%.2f", m.balanceUSD, m.limits.MinBalanceUSD))
		}
		available := m.balanceUSD * (1 - m.limits.ReservePct/100)
		if amountUSD > available {
			return m.reject(fmt.Sprintf("amount exceeds available capital: $%.2f > $%.2f (reserve %.0f%%)",
				amountUSD, available, m.limits.ReservePct))
		}
	}

	if cand.NetProfitPct < m.limits.MinProfitPct {
		return m.reject(fmt.Sprintf("profit too low: %.2f%% < %.2f%%", cand.NetProfitPct, m.limits.MinProfitPct))
	}

	score := 100.0
	if cand.Score != nil {
		score = cand.Score.TotalScore
	}
	if score < m.limits.MinScore {
		return m.reject(fmt.Sprintf("score too low: %.1f < %.1f", score, m.limits.MinScore))
	}

	if cand.TotalSlippagePct > m.limits.MaxSlippagePct {
		return m.reject(fmt.Sprintf("slippage too high: %.2f%% > %.2f%%", cand.TotalSlippagePct, m.limits.MaxSlippagePct))
	}

	if cand.LiquidityChecked && !cand.LiquidityValid {
		return m.reject("liquidity insufficient")
	}

	m.logger.Info("trade authorized",
		slog.String("symbol", cand.Symbol),
		slog.String("buy_market", cand.BuyMarket),
		slog.String("sell_market", cand.SellMarket),
		slog.Float64("amount_usd", amountUSD),
		slog.Float64("net_profit_pct", cand.NetProfitPct),
		slog.Float64("score", score))
	return Decision{Allowed: true, Reason: "OK"}
}

func (m *Manager) reject(reason string) Decision {
	m.logger.Warn("trade rejected", slog.String("reason", reason))
	return Decision{Allowed: false, Reason: reason}
}

// RecordOutcome feeds one trade result into the daily counters: +1 trade,
// PnL accumulated signed, consecutive losses reset on a win or incremented
// on a loss.
func (m *Manager) RecordOutcome(pnlUSD float64, win bool) {
	m.rolloverIfNeeded()

	m.dailyTrades++
	m.dailyPnL += pnlUSD

	if win {
		m.consecutiveLosses = 0
		m.logger.Info("profitable trade recorded",
			slog.Float64("pnl_usd", pnlUSD),
			slog.Float64("daily_pnl", m.dailyPnL),
			slog.Int("daily_trades", m.dailyTrades))
		return
	}
	m.consecutiveLosses++
	m.logger.Warn("losing trade recorded",
		slog.Float64("pnl_usd", pnlUSD),
		slog.Int("consecutive_losses", m.consecutiveLosses),
		slog.Float64("daily_pnl", m.dailyPnL),
		slog.Int("daily_trades", m.dailyTrades))
}

// DailyStats returns a snapshot of today's counters and remaining headroom.
func (m *Manager) DailyStats() DailyStats {
	m.rolloverIfNeeded()

	tradesLeft := m.limits.MaxDailyTrades - m.dailyTrades
	if tradesLeft < 0 {
		tradesLeft = 0
	}
	lossLeft := m.limits.MaxDailyLoss + m.dailyPnL
	if lossLeft < 0 {
		lossLeft = 0
	}
	return DailyStats{
		Date:              m.day,
		TradesCount:       m.dailyTrades,
		TradesRemaining:   tradesLeft,
		DailyPnLUSD:       m.dailyPnL,
		LossRemainingUSD:  lossLeft,
		ConsecutiveLosses: m.consecutiveLosses,
		CurrentBalanceUSD: m.balanceUSD,
	}
}
