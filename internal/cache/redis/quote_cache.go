package redis

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// QuoteCache implements domain.QuoteCache with one Redis hash per
// market/symbol, expiring after a TTL so stale tickers never look live.
type QuoteCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewQuoteCache creates a QuoteCache. A zero TTL keeps quotes forever.
func NewQuoteCache(c *Client, ttl time.Duration) *QuoteCache {
	return &QuoteCache{rdb: c.Underlying(), ttl: ttl}
}

func quoteKey(market, symbol string) string {
	return "quote:" + market + ":" + symbol
}

// SetQuote stores the latest ticker for the quote's market and symbol.
func (qc *QuoteCache) SetQuote(ctx context.Context, q domain.Quote) error {
	key := quoteKey(q.Market, q.Symbol)
	fields := map[string]any{
		"bid":    strconv.FormatFloat(q.Bid, 'f', -1, 64),
		"ask":    strconv.FormatFloat(q.Ask, 'f', -1, 64),
		"last":   strconv.FormatFloat(q.Last, 'f', -1, 64),
		"volume": strconv.FormatFloat(q.Volume, 'f', -1, 64),
		"ts":     strconv.FormatInt(q.Timestamp.UnixNano(), 10),
	}

	pipe := qc.rdb.TxPipeline()
	pipe.HSet(ctx, key, fields)
	if qc.ttl > 0 {
		pipe.Expire(ctx, key, qc.ttl)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("redis: set quote %s %s: %w", q.Market, q.Symbol, err)
	}
	return nil
}

// GetQuote retrieves the latest ticker, or domain.ErrNotFound when the key
// is missing or expired.
func (qc *QuoteCache) GetQuote(ctx context.Context, market, symbol string) (domain.Quote, error) {
	vals, err := qc.rdb.HGetAll(ctx, quoteKey(market, symbol)).Result()
	if err != nil {
		return domain.Quote{}, fmt.Errorf("redis: get quote %s %s: %w", market, symbol, err)
	}
	if len(vals) == 0 {
		return domain.Quote{}, domain.ErrNotFound
	}

	q := domain.Quote{Market: market, Symbol: symbol}
	q.Bid, _ = strconv.ParseFloat(vals["bid"], 64)
	q.Ask, _ = strconv.ParseFloat(vals["ask"], 64)
	q.Last, _ = strconv.ParseFloat(vals["last"], 64)
	q.Volume, _ = strconv.ParseFloat(vals["volume"], 64)
	if tsNano, err := strconv.ParseInt(vals["ts"], 10, 64); err == nil {
		q.Timestamp = time.Unix(0, tsNano)
	}
	return q, nil
}

var _ domain.QuoteCache = (*QuoteCache)(nil)
