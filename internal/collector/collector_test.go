package collector

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbot/internal/domain"
	"github.com/alanyoungcy/arbot/internal/fees"
	"github.com/alanyoungcy/arbot/internal/liquidity"
)

type fakeProvider struct {
	quotes    map[string]domain.Quote
	books     map[string]domain.OrderBookSnapshot
	quoteErrs map[string]error
	bookErrs  map[string]error
}

func (f *fakeProvider) FetchQuote(_ context.Context, market, symbol string) (domain.Quote, error) {
	if err, ok := f.quoteErrs[market]; ok {
		return domain.Quote{}, err
	}
	q, ok := f.quotes[market]
	if !ok {
		return domain.Quote{}, domain.ErrNotFound
	}
	q.Market = market
	q.Symbol = symbol
	return q, nil
}

func (f *fakeProvider) FetchBook(_ context.Context, market, symbol string, _ int) (domain.OrderBookSnapshot, error) {
	if err, ok := f.bookErrs[market]; ok {
		return domain.OrderBookSnapshot{}, err
	}
	b, ok := f.books[market]
	if !ok {
		return domain.OrderBookSnapshot{}, domain.ErrNotFound
	}
	b.Market = market
	b.Symbol = symbol
	return b, nil
}

func newTestCollector(t *testing.T, provider domain.QuoteProvider, cfg Config) *Collector {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	c, err := New(
		provider,
		fees.NewCalculator(nil, logger),
		liquidity.NewEngine(1.0, logger),
		nil, nil,
		cfg,
		logger,
	)
	require.NoError(t, err)
	c.nowFn = func() time.Time { return time.Date(2026, 7, 1, 12, 0, 0, 0, time.UTC) }
	return c
}

func TestNewValidation(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))

	_, err := New(nil, fees.NewCalculator(nil, logger), liquidity.NewEngine(1.0, logger), nil, nil,
		Config{Markets: []string{"binance", "kraken"}}, logger)
	assert.Error(t, err)

	_, err = New(&fakeProvider{}, fees.NewCalculator(nil, logger), liquidity.NewEngine(1.0, logger), nil, nil,
		Config{Markets: []string{"binance"}}, logger)
	assert.Error(t, err)
}

func TestCollectQuotesIsolatesFailures(t *testing.T) {
	provider := &fakeProvider{
		quotes: map[string]domain.Quote{
			"binance": {Bid: 49990, Ask: 50000, Last: 49995},
			"kraken":  {Bid: 50200, Ask: 50250, Last: 50210},
		},
		quoteErrs: map[string]error{
			"coinbase": errors.New("connection refused"),
		},
	}
	c := newTestCollector(t, provider, Config{Markets: []string{"binance", "kraken", "coinbase"}})

	quotes := c.CollectQuotes(context.Background(), "BTC/USDT")

	require.Len(t, quotes, 2)
	assert.Equal(t, "binance", quotes["binance"].Market)
	assert.Equal(t, "BTC/USDT", quotes["binance"].Symbol)
	assert.Equal(t, 1, c.Stats().FetchErrors)
}

func TestCollectBuildsBothDirections(t *testing.T) {
	// kraken bids above binance's ask, so only binance→kraken is a candidate.
	provider := &fakeProvider{
		quotes: map[string]domain.Quote{
			"binance": {Bid: 49990, Ask: 50000, Last: 49995},
			"kraken":  {Bid: 50500, Ask: 50550, Last: 50510},
		},
	}
	c := newTestCollector(t, provider, Config{Markets: []string{"binance", "kraken"}, MinNetProfitPct: 0.5})

	res, err := c.Collect(context.Background(), "BTC/USDT", 1000)
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	cand := res.Candidates[0]
	assert.Equal(t, "binance", cand.BuyMarket)
	assert.Equal(t, "kraken", cand.SellMarket)
	assert.Equal(t, 50000.0, cand.BuyPrice)
	assert.Equal(t, 50500.0, cand.SellPrice)
	assert.InDelta(t, 1.0, cand.GrossSpreadPct, 1e-9)
	assert.NotEmpty(t, cand.ID)
	assert.False(t, cand.LiquidityChecked)
	assert.Positive(t, cand.FeesPct)
	assert.Less(t, cand.NetProfitPct, cand.GrossSpreadPct)

	// binance .10 taker + kraken .26 taker leaves well over 0.5% net on a 1% spread.
	require.Len(t, res.Opportunities, 1)
	assert.Equal(t, 1, c.Stats().OpportunitiesDetected)
}

func TestCollectBelowOpportunityThreshold(t *testing.T) {
	provider := &fakeProvider{
		quotes: map[string]domain.Quote{
			"binance": {Bid: 49990, Ask: 50000},
			"kraken":  {Bid: 50050, Ask: 50100},
		},
	}
	c := newTestCollector(t, provider, Config{Markets: []string{"binance", "kraken"}, MinNetProfitPct: 0.5})

	res, err := c.Collect(context.Background(), "BTC/USDT", 1000)
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	assert.Empty(t, res.Opportunities)
}

func TestCollectFallsBackToLastPrice(t *testing.T) {
	provider := &fakeProvider{
		quotes: map[string]domain.Quote{
			"binance": {Last: 50000},
			"kraken":  {Last: 50600},
		},
	}
	c := newTestCollector(t, provider, Config{Markets: []string{"binance", "kraken"}})

	res, err := c.Collect(context.Background(), "BTC/USDT", 1000)
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	assert.Equal(t, 50000.0, res.Candidates[0].BuyPrice)
	assert.Equal(t, 50600.0, res.Candidates[0].SellPrice)
}

func TestCollectNoQuotes(t *testing.T) {
	provider := &fakeProvider{
		quoteErrs: map[string]error{
			"binance": errors.New("timeout"),
			"kraken":  errors.New("timeout"),
		},
	}
	c := newTestCollector(t, provider, Config{Markets: []string{"binance", "kraken"}})

	_, err := c.Collect(context.Background(), "BTC/USDT", 1000)
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrMarketDown)
	assert.Equal(t, 1, c.Stats().FailedCollections)
}

func TestCollectAttachesLiquidity(t *testing.T) {
	buyAsks := []domain.PriceLevel{{Price: 50000, Volume: 5}}
	sellBids := []domain.PriceLevel{{Price: 50500, Volume: 5}}

	provider := &fakeProvider{
		quotes: map[string]domain.Quote{
			"binance": {Bid: 49990, Ask: 50000},
			"kraken":  {Bid: 50500, Ask: 50550},
		},
		books: map[string]domain.OrderBookSnapshot{
			"binance": {Asks: buyAsks, Bids: []domain.PriceLevel{{Price: 49990, Volume: 5}}},
			"kraken":  {Bids: sellBids, Asks: []domain.PriceLevel{{Price: 50550, Volume: 5}}},
		},
	}
	c := newTestCollector(t, provider, Config{
		Markets:   []string{"binance", "kraken"},
		BookDepth: 10,
	})

	res, err := c.Collect(context.Background(), "BTC/USDT", 1000)
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	cand := res.Candidates[0]
	assert.True(t, cand.LiquidityChecked)
	assert.True(t, cand.LiquidityValid)
	assert.Equal(t, 100.0, cand.FilledPct)
	assert.Zero(t, cand.TotalSlippagePct) // single deep level on both sides
	// $250M of asks and $252.5M of bids against a $1k order.
	assert.Greater(t, cand.VolumeRatio, 10.0)
}

func TestCollectBookFetchFailureSkipsLiquidity(t *testing.T) {
	provider := &fakeProvider{
		quotes: map[string]domain.Quote{
			"binance": {Bid: 49990, Ask: 50000},
			"kraken":  {Bid: 50500, Ask: 50550},
		},
		books: map[string]domain.OrderBookSnapshot{
			"binance": {Asks: []domain.PriceLevel{{Price: 50000, Volume: 5}}},
		},
		bookErrs: map[string]error{
			"kraken": errors.New("rate limited"),
		},
	}
	c := newTestCollector(t, provider, Config{
		Markets:   []string{"binance", "kraken"},
		BookDepth: 10,
	})

	res, err := c.Collect(context.Background(), "BTC/USDT", 1000)
	require.NoError(t, err)

	require.Len(t, res.Candidates, 1)
	assert.False(t, res.Candidates[0].LiquidityChecked)
}
