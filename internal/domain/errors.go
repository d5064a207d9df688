package domain

import "errors"

var (
	ErrNotFound          = errors.New("not found")
	ErrNoLiquidity       = errors.New("no liquidity")
	ErrRateLimited       = errors.New("rate limited")
	ErrInsufficientFunds = errors.New("insufficient funds")
	ErrInvalidOrder      = errors.New("invalid order parameters")
	ErrMarketDown        = errors.New("market unavailable")
	ErrBreakerOpen       = errors.New("circuit breaker open")
	ErrWSDisconnect      = errors.New("websocket disconnected")
)
