package domain

import "context"

// QuoteCache holds the latest quote per market/symbol.
type QuoteCache interface {
	SetQuote(ctx context.Context, q Quote) error
	GetQuote(ctx context.Context, market, symbol string) (Quote, error)
}

// BookCache holds the latest order book snapshot per market/symbol.
type BookCache interface {
	SetSnapshot(ctx context.Context, snap OrderBookSnapshot) error
	GetSnapshot(ctx context.Context, market, symbol string) (OrderBookSnapshot, error)
}
