package domain

import "time"

// Grade buckets a candidate's total score into a letter tier.
type Grade string

const (
	GradeS Grade = "S"
	GradeA Grade = "A"
	GradeB Grade = "B"
	GradeC Grade = "C"
	GradeD Grade = "D"
	GradeF Grade = "F"
)

// ScoreBreakdown decomposes a candidate's 0-100 score.
type ScoreBreakdown struct {
	ProfitScore      float64 // 0-40
	LiquidityScore   float64 // 0-30
	ReliabilityScore float64 // 0-20
	SpeedScore       float64 // 0-10
	TotalScore       float64 // 0-100
	Grade            Grade
}

// Candidate is a buy-here/sell-there pairing between two markets for one
// symbol at a point in time. It is built by the collector, enriched in place
// by the scorer and the risk gate, and terminal once acted on or discarded.
type Candidate struct {
	ID         string
	Symbol     string
	BuyMarket  string
	SellMarket string
	BuyPrice   float64
	SellPrice  float64

	TradeAmountUSD float64
	GrossSpreadPct float64
	FeesPct        float64
	NetProfitPct   float64
	NetProfitUSD   float64

	// Liquidity figures filled in when an order-book evaluation ran.
	LiquidityChecked bool
	LiquidityValid   bool
	TotalSlippagePct float64
	FilledPct        float64
	VolumeRatio      float64 // available volume / requested volume

	Score *ScoreBreakdown

	DetectedAt time.Time
}

// TotalScore returns the candidate's score, or 0 when it has not been scored.
func (c Candidate) TotalScore() float64 {
	if c.Score == nil {
		return 0
	}
	return c.Score.TotalScore
}
