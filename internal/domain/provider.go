package domain

import "context"

// QuoteProvider delivers normalized market data for one venue. Implementations
// may fail with provider-specific errors; callers classify them for retry.
type QuoteProvider interface {
	// FetchQuote returns the current top-of-book quote for symbol on market.
	FetchQuote(ctx context.Context, market, symbol string) (Quote, error)
	// FetchBook returns up to depth levels per side, best price first.
	FetchBook(ctx context.Context, market, symbol string, depth int) (OrderBookSnapshot, error)
}

// Executor acts on an authorized candidate. It may be a simulator or a real
// trade placer; the decision core only depends on the result shape.
type Executor interface {
	Execute(ctx context.Context, cand Candidate, amountUSD float64) (ExecutionResult, error)
	// Balance reports the current account balance in USD, or 0 if unknown.
	Balance() float64
}
