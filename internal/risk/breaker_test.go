package risk

import (
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestBreaker(cfg BreakerConfig) (*Breaker, *time.Time) {
	b := NewBreaker(cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	now := time.Date(2026, 5, 10, 12, 0, 0, 0, time.UTC)
	b.nowFn = func() time.Time { return now }
	return b, &now
}

func TestBreakerStartsClosed(t *testing.T) {
	b, _ := newTestBreaker(DefaultBreakerConfig())
	assert.False(t, b.IsOpen())
	assert.Empty(t, b.TripReason())
}

func TestBreakerConsecutiveErrors(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.MaxConsecutiveErrors = 3
	b, _ := newTestBreaker(cfg)

	b.Observe(Signals{ErrorOccurred: true})
	b.Observe(Signals{ErrorOccurred: true})
	assert.False(t, b.IsOpen())

	// exactly the configured count trips it
	b.Observe(Signals{ErrorOccurred: true})
	require.True(t, b.IsOpen())
	assert.Contains(t, b.TripReason(), "consecutive errors")
}

func TestBreakerSuccessResetsOnlyErrorStreak(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.MaxConsecutiveErrors = 3
	b, _ := newTestBreaker(cfg)

	b.Observe(Signals{ErrorOccurred: true})
	b.Observe(Signals{ErrorOccurred: true})
	b.Observe(Signals{}) // clean check
	assert.Equal(t, 0, b.Status().ConsecutiveErrors)

	b.Observe(Signals{ErrorOccurred: true})
	b.Observe(Signals{ErrorOccurred: true})
	assert.False(t, b.IsOpen(), "streak restarted from zero")
}

func TestBreakerSuccessDoesNotCloseOpenBreaker(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.MaxConsecutiveErrors = 1
	b, _ := newTestBreaker(cfg)

	require.True(t, b.Observe(Signals{ErrorOccurred: true}))
	b.Observe(Signals{})
	assert.True(t, b.IsOpen())
}

func TestBreakerLossWindow(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.MaxLossInWindow = 100
	cfg.LossWindow = 15 * time.Minute
	b, now := newTestBreaker(cfg)

	b.Observe(Signals{LossUSD: 40})
	*now = now.Add(5 * time.Minute)
	b.Observe(Signals{LossUSD: 40})
	assert.False(t, b.IsOpen())

	*now = now.Add(5 * time.Minute)
	require.True(t, b.Observe(Signals{LossUSD: 40}))
	assert.Contains(t, b.TripReason(), "lost $120.00")
}

func TestBreakerLossWindowSlides(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.MaxLossInWindow = 100
	cfg.LossWindow = 15 * time.Minute
	b, now := newTestBreaker(cfg)

	b.Observe(Signals{LossUSD: 60})
	// old loss ages out of the window before the next one lands
	*now = now.Add(20 * time.Minute)
	b.Observe(Signals{LossUSD: 60})
	assert.False(t, b.IsOpen())
	assert.InDelta(t, 60, b.Status().RecentLossUSD, 1e-9)
}

func TestBreakerErrorsInWindow(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.MaxConsecutiveErrors = 100 // keep the other condition out of the way
	cfg.MaxErrorsInWindow = 5
	b, now := newTestBreaker(cfg)

	for i := 0; i < 4; i++ {
		b.Observe(Signals{ErrorOccurred: true})
		b.Observe(Signals{}) // break the consecutive streak
		*now = now.Add(time.Minute)
	}
	assert.False(t, b.IsOpen())

	require.True(t, b.Observe(Signals{ErrorOccurred: true}))
	assert.Contains(t, b.TripReason(), "errors within")
}

func TestBreakerMarketDowntime(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.MaxMarketDowntime = 5 * time.Minute
	b, now := newTestBreaker(cfg)

	b.Observe(Signals{MarketDown: "kraken"})
	*now = now.Add(3 * time.Minute)
	assert.False(t, b.Observe(Signals{MarketDown: "kraken"}))

	*now = now.Add(3 * time.Minute)
	require.True(t, b.Observe(Signals{MarketDown: "kraken"}))
	assert.Contains(t, b.TripReason(), "kraken")
}

func TestBreakerMarketRecoveryClearsDowntime(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.MaxMarketDowntime = 5 * time.Minute
	b, now := newTestBreaker(cfg)

	b.Observe(Signals{MarketDown: "kraken"})
	*now = now.Add(4 * time.Minute)
	b.Observe(Signals{MarketUp: "kraken"})

	*now = now.Add(4 * time.Minute)
	assert.False(t, b.Observe(Signals{MarketDown: "kraken"}), "downtime restarts after recovery")
}

func TestBreakerBalanceDrawdown(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.MinBalanceThresholdPct = 50
	b, _ := newTestBreaker(cfg)

	// first observation only establishes the baseline
	assert.False(t, b.Observe(Signals{BalanceUSD: 5000}))

	require.True(t, b.Observe(Signals{BalanceUSD: 2400}))
	assert.Contains(t, b.TripReason(), "48.0% of initial capital")

	st := b.Status()
	assert.InDelta(t, 5000, st.InitialBalanceUSD, 1e-9)
	assert.InDelta(t, 2400, st.CurrentBalanceUSD, 1e-9)
	assert.InDelta(t, 48, st.BalancePct, 1e-9)
}

func TestBreakerManualReset(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.MaxConsecutiveErrors = 1
	b, _ := newTestBreaker(cfg)

	require.True(t, b.Observe(Signals{ErrorOccurred: true}))
	b.Reset()
	assert.False(t, b.IsOpen())
	assert.Empty(t, b.TripReason())
}

func TestBreakerAutoReset(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.MaxConsecutiveErrors = 1
	cfg.AutoReset = time.Hour
	b, now := newTestBreaker(cfg)

	require.True(t, b.Observe(Signals{ErrorOccurred: true}))

	*now = now.Add(59 * time.Minute)
	assert.True(t, b.IsOpen())

	*now = now.Add(2 * time.Minute)
	assert.False(t, b.IsOpen(), "cooldown elapsed, breaker closes on query")
}

func TestBreakerObserveWhileOpenIsSticky(t *testing.T) {
	cfg := DefaultBreakerConfig()
	cfg.MaxConsecutiveErrors = 1
	cfg.AutoReset = 0 // disabled
	b, _ := newTestBreaker(cfg)

	require.True(t, b.Observe(Signals{ErrorOccurred: true}))
	assert.True(t, b.Observe(Signals{}))
	assert.True(t, b.IsOpen())
}
