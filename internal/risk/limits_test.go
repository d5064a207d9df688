package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultLimitsAreConsistent(t *testing.T) {
	require.NoError(t, DefaultLimits().Validate())
}

func TestLimitsValidate(t *testing.T) {
	t.Run("min must be below max", func(t *testing.T) {
		l := DefaultLimits()
		l.MinTradeAmount = l.MaxTradeAmount
		err := l.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "min_trade_amount")
	})

	t.Run("per trade loss below daily loss", func(t *testing.T) {
		l := DefaultLimits()
		l.MaxLossPerTrade = l.MaxDailyLoss + 1
		require.Error(t, l.Validate())
	})

	t.Run("negative values rejected", func(t *testing.T) {
		l := DefaultLimits()
		l.MinProfitPct = -0.1
		require.Error(t, l.Validate())
	})

	t.Run("percentages capped at 100", func(t *testing.T) {
		l := DefaultLimits()
		l.ReservePct = 101
		require.Error(t, l.Validate())
	})

	t.Run("all problems reported at once", func(t *testing.T) {
		l := DefaultLimits()
		l.MinTradeAmount = l.MaxTradeAmount
		l.ReservePct = 150
		err := l.Validate()
		require.Error(t, err)
		assert.Contains(t, err.Error(), "min_trade_amount")
		assert.Contains(t, err.Error(), "reserve_pct")
	})
}

func TestLimitsSet(t *testing.T) {
	t.Run("updates a known key", func(t *testing.T) {
		l := DefaultLimits()
		require.NoError(t, l.Set("max_trade_amount", 500))
		assert.Equal(t, 500.0, l.MaxTradeAmount)
	})

	t.Run("unknown key", func(t *testing.T) {
		l := DefaultLimits()
		require.Error(t, l.Set("max_trade", 500))
	})

	t.Run("inconsistent update leaves limits untouched", func(t *testing.T) {
		l := DefaultLimits()
		before := l
		require.Error(t, l.Set("max_trade_amount", l.MinTradeAmount-1))
		assert.Equal(t, before, l)
	})

	t.Run("integer limits accept float input", func(t *testing.T) {
		l := DefaultLimits()
		require.NoError(t, l.Set("max_daily_trades", 25))
		assert.Equal(t, 25, l.MaxDailyTrades)
	})
}
