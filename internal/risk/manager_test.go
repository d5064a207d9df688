package risk

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbot/internal/domain"
)

func newTestManager(t *testing.T, limits Limits) *Manager {
	t.Helper()
	m, err := NewManager(limits, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	return m
}

func goodCandidate() domain.Candidate {
	return domain.Candidate{
		Symbol:           "BTC/USDT",
		BuyMarket:        "binance",
		SellMarket:       "kraken",
		NetProfitPct:     0.8,
		TotalSlippagePct: 0.1,
		LiquidityChecked: true,
		LiquidityValid:   true,
		Score:            &domain.ScoreBreakdown{TotalScore: 87.5},
	}
}

func TestNewManagerRejectsInvalidLimits(t *testing.T) {
	bad := DefaultLimits()
	bad.MinTradeAmount = bad.MaxTradeAmount + 1
	_, err := NewManager(bad, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}

func TestCanTradeAmountBounds(t *testing.T) {
	m := newTestManager(t, DefaultLimits())
	cand := goodCandidate()

	t.Run("below minimum rejected", func(t *testing.T) {
		d := m.CanTrade(cand, 9.99)
		require.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "amount too small")
	})

	t.Run("above maximum rejected", func(t *testing.T) {
		d := m.CanTrade(cand, 100.01)
		require.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "amount too large")
	})

	t.Run("boundaries accepted", func(t *testing.T) {
		assert.True(t, m.CanTrade(cand, 10).Allowed)
		assert.True(t, m.CanTrade(cand, 100).Allowed)
	})

	t.Run("zero amount defaults to max trade amount", func(t *testing.T) {
		assert.True(t, m.CanTrade(cand, 0).Allowed)
	})
}

func TestCanTradeSequentialGate(t *testing.T) {
	t.Run("daily trade cap", func(t *testing.T) {
		limits := DefaultLimits()
		limits.MaxDailyTrades = 2
		m := newTestManager(t, limits)
		m.RecordOutcome(1, true)
		m.RecordOutcome(1, true)
		d := m.CanTrade(goodCandidate(), 50)
		require.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "daily trade cap")
	})

	t.Run("daily loss cap", func(t *testing.T) {
		m := newTestManager(t, DefaultLimits())
		m.RecordOutcome(-500, false)
		d := m.CanTrade(goodCandidate(), 50)
		require.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "daily loss cap")
	})

	t.Run("consecutive losses", func(t *testing.T) {
		m := newTestManager(t, DefaultLimits())
		for i := 0; i < 5; i++ {
			m.RecordOutcome(-1, false)
		}
		d := m.CanTrade(goodCandidate(), 50)
		require.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "consecutive losses")
	})

	t.Run("balance below minimum", func(t *testing.T) {
		m := newTestManager(t, DefaultLimits())
		m.UpdateBalance(999)
		d := m.CanTrade(goodCandidate(), 50)
		require.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "balance too low")
	})

	t.Run("reserve keeps capital off the table", func(t *testing.T) {
		limits := DefaultLimits()
		limits.MaxTradeAmount = 5000
		limits.MaxDailyLoss = 10000
		limits.MaxLossPerTrade = 100
		m := newTestManager(t, limits)
		m.UpdateBalance(1000)
		// 10% reserve leaves $900 available
		d := m.CanTrade(goodCandidate(), 901)
		require.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "available capital")
		assert.True(t, m.CanTrade(goodCandidate(), 900).Allowed)
	})

	t.Run("unknown balance skips balance checks", func(t *testing.T) {
		m := newTestManager(t, DefaultLimits())
		assert.True(t, m.CanTrade(goodCandidate(), 50).Allowed)
	})

	t.Run("profit below minimum regardless of score", func(t *testing.T) {
		m := newTestManager(t, DefaultLimits())
		cand := goodCandidate()
		cand.NetProfitPct = 0.2
		cand.Score = &domain.ScoreBreakdown{TotalScore: 99}
		d := m.CanTrade(cand, 50)
		require.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "profit too low")
	})

	t.Run("score below minimum", func(t *testing.T) {
		m := newTestManager(t, DefaultLimits())
		cand := goodCandidate()
		cand.Score = &domain.ScoreBreakdown{TotalScore: 69.9}
		d := m.CanTrade(cand, 50)
		require.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "score too low")
	})

	t.Run("unscored candidate passes the score check", func(t *testing.T) {
		m := newTestManager(t, DefaultLimits())
		cand := goodCandidate()
		cand.Score = nil
		assert.True(t, m.CanTrade(cand, 50).Allowed)
	})

	t.Run("slippage above maximum", func(t *testing.T) {
		m := newTestManager(t, DefaultLimits())
		cand := goodCandidate()
		cand.TotalSlippagePct = 0.6
		d := m.CanTrade(cand, 50)
		require.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "slippage too high")
	})

	t.Run("invalid liquidity", func(t *testing.T) {
		m := newTestManager(t, DefaultLimits())
		cand := goodCandidate()
		cand.LiquidityValid = false
		d := m.CanTrade(cand, 50)
		require.False(t, d.Allowed)
		assert.Contains(t, d.Reason, "liquidity")
	})

	t.Run("unchecked liquidity passes", func(t *testing.T) {
		m := newTestManager(t, DefaultLimits())
		cand := goodCandidate()
		cand.LiquidityChecked = false
		cand.LiquidityValid = false
		assert.True(t, m.CanTrade(cand, 50).Allowed)
	})
}

func TestRecordOutcome(t *testing.T) {
	m := newTestManager(t, DefaultLimits())

	m.RecordOutcome(-10, false)
	m.RecordOutcome(-5, false)
	stats := m.DailyStats()
	assert.Equal(t, 2, stats.TradesCount)
	assert.Equal(t, 2, stats.ConsecutiveLosses)
	assert.InDelta(t, -15, stats.DailyPnLUSD, 1e-9)

	// a win clears the loss streak
	m.RecordOutcome(20, true)
	stats = m.DailyStats()
	assert.Equal(t, 0, stats.ConsecutiveLosses)
	assert.InDelta(t, 5, stats.DailyPnLUSD, 1e-9)
}

func TestDayRollover(t *testing.T) {
	m := newTestManager(t, DefaultLimits())
	now := time.Date(2026, 3, 1, 23, 0, 0, 0, time.UTC)
	m.nowFn = func() time.Time { return now }
	m.day = domain.Day(now)

	m.RecordOutcome(-30, false)
	m.RecordOutcome(-30, false)
	require.Equal(t, 2, m.DailyStats().TradesCount)

	// cross midnight
	now = now.Add(2 * time.Hour)

	stats := m.DailyStats()
	assert.Equal(t, "2026-03-02", stats.Date)
	assert.Equal(t, 0, stats.TradesCount, "trade count resets")
	assert.Zero(t, stats.DailyPnLUSD, "daily pnl resets")
	assert.Equal(t, 2, stats.ConsecutiveLosses, "loss streak survives rollover")
}

func TestDailyStatsHeadroom(t *testing.T) {
	m := newTestManager(t, DefaultLimits())
	m.UpdateBalance(5000)
	m.RecordOutcome(-100, false)

	stats := m.DailyStats()
	assert.Equal(t, 49, stats.TradesRemaining)
	assert.InDelta(t, 400, stats.LossRemainingUSD, 1e-9)
	assert.InDelta(t, 5000, stats.CurrentBalanceUSD, 1e-9)
}
