package domain

import "time"

// ExecutionResult is the outcome of acting on a candidate, real or simulated.
type ExecutionResult struct {
	ID          string
	CandidateID string
	Symbol      string
	BuyMarket   string
	SellMarket  string

	Success         bool
	AmountUSD       float64
	CryptoAmount    float64
	ActualBuyPrice  float64
	ActualSellPrice float64
	FeesUSD         float64
	NetProfitUSD    float64
	NetProfitPct    float64

	Latency    time.Duration
	Error      string
	ExecutedAt time.Time
}

// Win reports whether the execution both succeeded and made money.
func (r ExecutionResult) Win() bool {
	return r.Success && r.NetProfitUSD > 0
}
