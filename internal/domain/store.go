package domain

import (
	"context"
	"time"
)

// OpportunityStore persists scored candidates, one row per cycle sighting.
type OpportunityStore interface {
	Insert(ctx context.Context, cand Candidate) error
	ListRecent(ctx context.Context, limit int) ([]Candidate, error)
	ListBefore(ctx context.Context, before time.Time) ([]Candidate, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
}

// TradeStore persists execution outcomes, one row per acted-on candidate.
type TradeStore interface {
	Insert(ctx context.Context, res ExecutionResult) error
	ListRecent(ctx context.Context, limit int) ([]ExecutionResult, error)
	ListBefore(ctx context.Context, before time.Time) ([]ExecutionResult, error)
	DeleteBefore(ctx context.Context, before time.Time) (int64, error)
	SumNetProfit(ctx context.Context, since time.Time) (float64, error)
}

// DailyPerformanceStore persists daily aggregates keyed by date.
type DailyPerformanceStore interface {
	Upsert(ctx context.Context, perf DailyPerformance) error
	Get(ctx context.Context, date string) (DailyPerformance, error)
	ListRange(ctx context.Context, from, to string) ([]DailyPerformance, error)
}
