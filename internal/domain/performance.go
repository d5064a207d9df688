package domain

import "time"

// DateLayout is the calendar-day key format used for daily aggregates.
const DateLayout = "2006-01-02"

// DailyPerformance is the persisted per-calendar-day trade aggregate,
// upserted after every recorded trade and flushed again at day rollover.
type DailyPerformance struct {
	Date string // DateLayout

	Trades int
	Wins   int
	Losses int

	WinRate     float64 // percentage
	TotalProfit float64 // sum of positive outcomes, USD
	TotalLoss   float64 // sum of |negative outcomes|, USD
	NetPnL      float64
	BestTrade   float64
	WorstTrade  float64

	MaxWinStreak  int
	MaxLossStreak int

	UpdatedAt time.Time
}

// Day returns t's calendar-day key in UTC-naive local time.
func Day(t time.Time) string {
	return t.Format(DateLayout)
}
