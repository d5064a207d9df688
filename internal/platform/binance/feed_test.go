package binance

import (
	"context"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbot/internal/domain"
)

func newTestFeed(t *testing.T) *Feed {
	t.Helper()
	feed, err := NewFeed("", []string{"BTC/USDT", "ETH/USDT"}, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.NoError(t, err)
	feed.nowFn = func() time.Time { return time.Date(2026, 8, 26, 12, 0, 0, 0, time.UTC) }
	return feed
}

func TestNewFeedRequiresSymbols(t *testing.T) {
	_, err := NewFeed("", nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
}

func TestHandleBookTicker(t *testing.T) {
	feed := newTestFeed(t)

	feed.handleMessage([]byte(`{
		"stream": "btcusdt@bookTicker",
		"data": {"s": "BTCUSDT", "b": "50000.10", "B": "1.5", "a": "50001.20", "A": "0.8"}
	}`))

	quote, err := feed.FetchQuote(context.Background(), Market, "BTC/USDT")
	require.NoError(t, err)
	assert.Equal(t, "BTC/USDT", quote.Symbol)
	assert.Equal(t, Market, quote.Market)
	assert.InDelta(t, 50000.10, quote.Bid, 1e-9)
	assert.InDelta(t, 50001.20, quote.Ask, 1e-9)
	assert.InDelta(t, 50000.65, quote.Last, 1e-9)
	assert.InDelta(t, 2.3, quote.Volume, 1e-9)
}

func TestHandleDepth(t *testing.T) {
	feed := newTestFeed(t)

	feed.handleMessage([]byte(`{
		"stream": "ethusdt@depth20@100ms",
		"data": {
			"bids": [["3000.5", "10"], ["3000.0", "20"], ["bogus", "1"]],
			"asks": [["3001.0", "5"]]
		}
	}`))

	book, err := feed.FetchBook(context.Background(), Market, "ETH/USDT", 1)
	require.NoError(t, err)
	require.Len(t, book.Bids, 1, "depth argument should truncate levels")
	assert.InDelta(t, 3000.5, book.Bids[0].Price, 1e-9)
	require.Len(t, book.Asks, 1)
	assert.InDelta(t, 3001.0, book.Asks[0].Price, 1e-9)
}

func TestFetchQuoteMissingAndStale(t *testing.T) {
	feed := newTestFeed(t)

	_, err := feed.FetchQuote(context.Background(), Market, "BTC/USDT")
	require.ErrorIs(t, err, domain.ErrMarketDown)

	feed.handleMessage([]byte(`{
		"stream": "btcusdt@bookTicker",
		"data": {"s": "BTCUSDT", "b": "50000", "B": "1", "a": "50001", "A": "1"}
	}`))

	_, err = feed.FetchQuote(context.Background(), Market, "BTC/USDT")
	require.NoError(t, err)

	// Advance the clock past the freshness window.
	feed.nowFn = func() time.Time {
		return time.Date(2026, 8, 26, 12, 0, 30, 0, time.UTC)
	}
	_, err = feed.FetchQuote(context.Background(), Market, "BTC/USDT")
	require.ErrorIs(t, err, domain.ErrMarketDown)
}

func TestFetchQuoteUnknownMarket(t *testing.T) {
	feed := newTestFeed(t)

	_, err := feed.FetchQuote(context.Background(), "kraken", "BTC/USDT")
	require.ErrorIs(t, err, domain.ErrNotFound)

	_, err = feed.FetchBook(context.Background(), "kraken", "BTC/USDT", 5)
	require.ErrorIs(t, err, domain.ErrNotFound)
}

func TestHandleMessageDropsGarbage(t *testing.T) {
	feed := newTestFeed(t)

	feed.handleMessage([]byte(`not json`))
	feed.handleMessage([]byte(`{"stream": "nostreamkind", "data": {}}`))
	feed.handleMessage([]byte(`{"stream": "dogeusdt@bookTicker", "data": {"b": "1", "a": "2"}}`))
	feed.handleMessage([]byte(`{"stream": "btcusdt@bookTicker", "data": {"b": "-5", "a": "0"}}`))

	_, err := feed.FetchQuote(context.Background(), Market, "BTC/USDT")
	require.ErrorIs(t, err, domain.ErrMarketDown)
}

func TestStreamNames(t *testing.T) {
	feed := newTestFeed(t)
	assert.Equal(t, []string{
		"btcusdt@bookTicker", "btcusdt@depth20@100ms",
		"ethusdt@bookTicker", "ethusdt@depth20@100ms",
	}, feed.streamNames())
}
