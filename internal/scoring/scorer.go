// Package scoring ranks arbitrage candidates on a 0-100 scale built from
// profit, liquidity, market reliability, and expected execution speed.
package scoring

import (
	"log/slog"
	"sort"
	"strings"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// Component weight ceilings.
const (
	maxProfitScore      = 40.0
	maxLiquidityScore   = 30.0
	maxReliabilityScore = 20.0
	maxSpeedScore       = 10.0

	// profitSaturationPct is the net profit at which the profit component
	// reaches its ceiling.
	profitSaturationPct = 2.0

	// slippageFloorPct is the total slippage at which the slippage
	// sub-component drops to zero.
	slippageFloorPct = 0.5
)

// defaultReliability and defaultLatencyMS apply to markets missing from the
// static rating tables.
const (
	defaultReliability = 50.0
	defaultLatencyMS   = 500.0
)

// marketReliability rates venues 0-100 on uptime, API quality, and security.
var marketReliability = map[string]float64{
	"binance":  95,
	"kraken":   90,
	"coinbase": 85,
	"okx":      85,
	"bitfinex": 80,
	"bitstamp": 80,
	"bybit":    80,
	"huobi":    75,
	"kucoin":   75,
	"gate":     70,
}

// marketLatencyMS is the typical order round-trip per venue.
var marketLatencyMS = map[string]float64{
	"binance":  150,
	"okx":      180,
	"bybit":    200,
	"kraken":   250,
	"coinbase": 300,
	"bitfinex": 350,
	"bitstamp": 400,
	"huobi":    450,
	"kucoin":   500,
	"gate":     550,
}

// Scorer computes score breakdowns and orders candidates.
type Scorer struct {
	logger *slog.Logger
}

// NewScorer creates a Scorer.
func NewScorer(logger *slog.Logger) *Scorer {
	return &Scorer{logger: logger.With(slog.String("component", "scorer"))}
}

// ProfitScore maps net profit percent linearly onto [0, 40], saturating at
// profitSaturationPct and flooring at zero for unprofitable candidates.
func ProfitScore(netProfitPct float64) float64 {
	if netProfitPct <= 0 {
		return 0
	}
	if netProfitPct >= profitSaturationPct {
		return maxProfitScore
	}
	return netProfitPct / profitSaturationPct * maxProfitScore
}

// LiquidityScore combines fill ratio (0-15), slippage (0-10), and the
// available-vs-requested volume ratio (0-5).
func LiquidityScore(filledPct, slippagePct, volumeRatio float64) float64 {
	fill := filledPct / 100 * 15
	if fill < 0 {
		fill = 0
	}

	var slip float64
	if slippagePct <= slippageFloorPct {
		slip = 10 * (1 - slippagePct/slippageFloorPct)
	}

	var vol float64
	switch {
	case volumeRatio >= 10:
		vol = 5
	case volumeRatio >= 1:
		vol = 5 * (volumeRatio - 1) / 9
	}

	total := fill + slip + vol
	if total > maxLiquidityScore {
		total = maxLiquidityScore
	}
	return total
}

// ReliabilityScore averages the two venues' static ratings onto [0, 20].
// Unknown venues score as mid-tier.
func ReliabilityScore(buyMarket, sellMarket string) float64 {
	return (reliability(buyMarket) + reliability(sellMarket)) / 2 / 100 * maxReliabilityScore
}

// SpeedScore maps the average expected latency onto [0, 10]: full marks at
// 200ms or less, half at 500ms, zero at 1000ms or more.
func SpeedScore(buyMarket, sellMarket string) float64 {
	avg := (latency(buyMarket) + latency(sellMarket)) / 2
	switch {
	case avg <= 200:
		return maxSpeedScore
	case avg <= 500:
		return 10 - (avg-200)/300*5
	case avg <= 1000:
		return 5 - (avg-500)/500*5
	default:
		return 0
	}
}

func reliability(market string) float64 {
	if r, ok := marketReliability[strings.ToLower(market)]; ok {
		return r
	}
	return defaultReliability
}

func latency(market string) float64 {
	if l, ok := marketLatencyMS[strings.ToLower(market)]; ok {
		return l
	}
	return defaultLatencyMS
}

// Score computes the full breakdown for cand and attaches it. The liquidity
// component consumes the candidate's real fill/slippage/volume figures when
// an order-book evaluation ran; otherwise the liquidity_valid flag degrades
// to a coarse volume-ratio guess.
func (s *Scorer) Score(cand *domain.Candidate) domain.ScoreBreakdown {
	filledPct := 100.0
	volumeRatio := 1.0
	if cand.LiquidityChecked {
		filledPct = cand.FilledPct
		volumeRatio = cand.VolumeRatio
		if volumeRatio == 0 {
			if cand.LiquidityValid {
				volumeRatio = 5.0
			} else {
				volumeRatio = 0.5
			}
		}
	}

	b := domain.ScoreBreakdown{
		ProfitScore:      ProfitScore(cand.NetProfitPct),
		LiquidityScore:   LiquidityScore(filledPct, cand.TotalSlippagePct, volumeRatio),
		ReliabilityScore: ReliabilityScore(cand.BuyMarket, cand.SellMarket),
		SpeedScore:       SpeedScore(cand.BuyMarket, cand.SellMarket),
	}
	total := b.ProfitScore + b.LiquidityScore + b.ReliabilityScore + b.SpeedScore
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	b.TotalScore = total
	b.Grade = GradeFor(total)

	cand.Score = &b
	s.logger.Debug("candidate scored",
		slog.String("buy_market", cand.BuyMarket),
		slog.String("sell_market", cand.SellMarket),
		slog.Float64("total_score", b.TotalScore),
		slog.String("grade", string(b.Grade)))
	return b
}

// GradeFor buckets a total score into a letter grade.
func GradeFor(score float64) domain.Grade {
	switch {
	case score >= 90:
		return domain.GradeS
	case score >= 80:
		return domain.GradeA
	case score >= 70:
		return domain.GradeB
	case score >= 60:
		return domain.GradeC
	case score >= 50:
		return domain.GradeD
	default:
		return domain.GradeF
	}
}

// Rank scores every candidate and sorts them by total score descending.
// The sort is stable: ties keep their original relative order.
func (s *Scorer) Rank(cands []domain.Candidate) []domain.Candidate {
	for i := range cands {
		s.Score(&cands[i])
	}
	sort.SliceStable(cands, func(i, j int) bool {
		return cands[i].TotalScore() > cands[j].TotalScore()
	})
	return cands
}

// Filter returns the already-scored candidates with a total score of at
// least minScore, preserving order.
func Filter(cands []domain.Candidate, minScore float64) []domain.Candidate {
	out := cands[:0:0]
	for _, c := range cands {
		if c.TotalScore() >= minScore {
			out = append(out, c)
		}
	}
	return out
}

// TopN returns the first n ranked candidates.
func TopN(cands []domain.Candidate, n int) []domain.Candidate {
	if n > len(cands) {
		n = len(cands)
	}
	return cands[:n]
}
