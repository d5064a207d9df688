package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// BookCache implements domain.BookCache with one JSON value per
// market/symbol. Snapshots are always written whole, so a single value with
// a TTL beats per-level structures here.
type BookCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewBookCache creates a BookCache. A zero TTL keeps snapshots forever.
func NewBookCache(c *Client, ttl time.Duration) *BookCache {
	return &BookCache{rdb: c.Underlying(), ttl: ttl}
}

func bookKey(market, symbol string) string {
	return "book:" + market + ":" + symbol
}

// SetSnapshot replaces the stored snapshot for the market and symbol.
func (bc *BookCache) SetSnapshot(ctx context.Context, snap domain.OrderBookSnapshot) error {
	data, err := json.Marshal(snap)
	if err != nil {
		return fmt.Errorf("redis: marshal book %s %s: %w", snap.Market, snap.Symbol, err)
	}
	if err := bc.rdb.Set(ctx, bookKey(snap.Market, snap.Symbol), data, bc.ttl).Err(); err != nil {
		return fmt.Errorf("redis: set book %s %s: %w", snap.Market, snap.Symbol, err)
	}
	return nil
}

// GetSnapshot retrieves the stored snapshot, or domain.ErrNotFound when the
// key is missing or expired.
func (bc *BookCache) GetSnapshot(ctx context.Context, market, symbol string) (domain.OrderBookSnapshot, error) {
	data, err := bc.rdb.Get(ctx, bookKey(market, symbol)).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.OrderBookSnapshot{}, domain.ErrNotFound
	}
	if err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: get book %s %s: %w", market, symbol, err)
	}

	var snap domain.OrderBookSnapshot
	if err := json.Unmarshal(data, &snap); err != nil {
		return domain.OrderBookSnapshot{}, fmt.Errorf("redis: unmarshal book %s %s: %w", market, symbol, err)
	}
	return snap, nil
}

var _ domain.BookCache = (*BookCache)(nil)
