package liquidity

import (
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbot/internal/domain"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestWalk(t *testing.T) {
	asks := []domain.PriceLevel{
		{Price: 100, Volume: 1},
		{Price: 110, Volume: 1},
	}

	t.Run("exact fill across two levels", func(t *testing.T) {
		fill, err := Walk(asks, 2.0)
		require.NoError(t, err)
		assert.InDelta(t, 105, fill.AvgPrice, 1e-9)
		assert.InDelta(t, 5.0, fill.SlippagePct, 1e-9)
		assert.Equal(t, 2, fill.LevelsUsed)
		assert.InDelta(t, 1.0, fill.FilledFraction, 1e-9)
		assert.True(t, fill.CanExecute)
	})

	t.Run("partial level consumption", func(t *testing.T) {
		fill, err := Walk(asks, 0.5)
		require.NoError(t, err)
		assert.InDelta(t, 100, fill.AvgPrice, 1e-9)
		assert.Zero(t, fill.SlippagePct)
		assert.Equal(t, 1, fill.LevelsUsed)
	})

	t.Run("book exhausted below threshold", func(t *testing.T) {
		fill, err := Walk(asks, 10)
		require.NoError(t, err)
		assert.InDelta(t, 0.2, fill.FilledFraction, 1e-9)
		assert.False(t, fill.CanExecute)
	})

	t.Run("95 percent rule", func(t *testing.T) {
		fill, err := Walk(asks, 2.1)
		require.NoError(t, err)
		assert.True(t, fill.CanExecute, "2.0 of 2.1 is above the fill floor")
	})

	t.Run("non-positive quantity fails validation", func(t *testing.T) {
		_, err := Walk(asks, 0)
		require.Error(t, err)
		_, err = Walk(asks, -1)
		require.Error(t, err)
	})

	t.Run("empty side is no liquidity", func(t *testing.T) {
		_, err := Walk(nil, 1)
		require.ErrorIs(t, err, domain.ErrNoLiquidity)
	})
}

func TestWalkSlippageMonotonic(t *testing.T) {
	side := []domain.PriceLevel{
		{Price: 100, Volume: 1},
		{Price: 101, Volume: 2},
		{Price: 103, Volume: 4},
		{Price: 108, Volume: 8},
	}

	prev := 0.0
	for _, qty := range []float64{0.5, 1, 2, 4, 8, 14} {
		fill, err := Walk(side, qty)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, fill.SlippagePct, prev, "qty %v", qty)
		prev = fill.SlippagePct
	}
}

func TestValidateBuy(t *testing.T) {
	book := domain.OrderBookSnapshot{
		Asks: []domain.PriceLevel{
			{Price: 100, Volume: 1},
			{Price: 110, Volume: 1},
		},
	}

	t.Run("210 dollars fills the whole book", func(t *testing.T) {
		e := NewEngine(10, testLogger())
		v := e.ValidateBuy(book, 210)
		require.True(t, v.Valid, v.Reason)
		assert.InDelta(t, 105, v.AvgPrice, 1e-9)
		assert.InDelta(t, 5.0, v.SlippagePct, 1e-9)
		assert.InDelta(t, 100, v.FilledPct, 1e-9)
		assert.Equal(t, 2, v.LevelsUsed)
	})

	t.Run("slippage budget rejects with distinct reason", func(t *testing.T) {
		e := NewEngine(0.5, testLogger())
		v := e.ValidateBuy(book, 210)
		require.False(t, v.Valid)
		assert.Contains(t, v.Reason, "slippage too high")
		assert.InDelta(t, 100, v.FilledPct, 1e-9)
	})

	t.Run("insufficient fill rejects with distinct reason", func(t *testing.T) {
		e := NewEngine(50, testLogger())
		v := e.ValidateBuy(book, 100000)
		require.False(t, v.Valid)
		assert.Contains(t, v.Reason, "insufficient liquidity")
	})

	t.Run("empty asks", func(t *testing.T) {
		e := NewEngine(0.5, testLogger())
		v := e.ValidateBuy(domain.OrderBookSnapshot{}, 100)
		require.False(t, v.Valid)
		assert.Equal(t, "no asks available", v.Reason)
	})
}

func TestValidateSell(t *testing.T) {
	book := domain.OrderBookSnapshot{
		Bids: []domain.PriceLevel{
			{Price: 99, Volume: 2},
			{Price: 98, Volume: 2},
		},
	}

	e := NewEngine(2, testLogger())
	v := e.ValidateSell(book, 3)
	require.True(t, v.Valid, v.Reason)
	assert.InDelta(t, (99*2+98)/3.0, v.AvgPrice, 1e-9)

	v = e.ValidateSell(domain.OrderBookSnapshot{}, 1)
	require.False(t, v.Valid)
	assert.Equal(t, "no bids available", v.Reason)
}

func TestValidateArbitrage(t *testing.T) {
	buyBook := domain.OrderBookSnapshot{
		Asks: []domain.PriceLevel{{Price: 100, Volume: 5}},
	}
	sellBook := domain.OrderBookSnapshot{
		Bids: []domain.PriceLevel{{Price: 102, Volume: 5}},
	}

	t.Run("buy discovers quantity, sell consumes it", func(t *testing.T) {
		e := NewEngine(1, testLogger())
		ev := e.ValidateArbitrage(buyBook, sellBook, 200)
		require.True(t, ev.Valid, ev.Reason)
		assert.InDelta(t, 2.0, ev.CryptoAmount, 1e-9)
		assert.InDelta(t, 4.0, ev.GrossProfitUSD, 1e-9) // 2 * (102-100)
		assert.InDelta(t, 2.0, ev.GrossProfitPct, 1e-9)
		assert.Zero(t, ev.TotalSlippagePct)
	})

	t.Run("buy leg failure short-circuits", func(t *testing.T) {
		e := NewEngine(1, testLogger())
		ev := e.ValidateArbitrage(domain.OrderBookSnapshot{}, sellBook, 200)
		require.False(t, ev.Valid)
		assert.Contains(t, ev.Reason, "buy leg")
		assert.False(t, ev.Sell.Valid, "sell side is never evaluated")
	})

	t.Run("sell leg failure is reported", func(t *testing.T) {
		e := NewEngine(1, testLogger())
		thin := domain.OrderBookSnapshot{Bids: []domain.PriceLevel{{Price: 102, Volume: 0.1}}}
		ev := e.ValidateArbitrage(buyBook, thin, 200)
		require.False(t, ev.Valid)
		assert.Contains(t, ev.Reason, "sell leg")
	})
}

func TestMaxNotionalWithin(t *testing.T) {
	side := []domain.PriceLevel{
		{Price: 100, Volume: 1},
		{Price: 100.4, Volume: 1},
		{Price: 102, Volume: 10},
	}

	// 0.5% budget admits levels priced up to 100.5.
	assert.InDelta(t, 200.4, MaxNotionalWithin(side, 0.5), 1e-9)
	assert.Zero(t, MaxNotionalWithin(nil, 0.5))
}

func TestDepth(t *testing.T) {
	book := domain.OrderBookSnapshot{
		Asks: []domain.PriceLevel{{Price: 100, Volume: 1}, {Price: 101, Volume: 1}, {Price: 102, Volume: 1}},
		Bids: []domain.PriceLevel{{Price: 99, Volume: 2}},
	}

	stats := Depth(book, 2)
	assert.InDelta(t, 2, stats.AskVolume, 1e-9)
	assert.InDelta(t, 201, stats.AskValueUSD, 1e-9)
	assert.InDelta(t, 2, stats.BidVolume, 1e-9)
	assert.InDelta(t, 198, stats.BidValueUSD, 1e-9)
}
