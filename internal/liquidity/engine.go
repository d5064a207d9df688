// Package liquidity simulates fills against order-book levels to discover the
// true achievable execution price, fill ratio, and slippage for a trade size.
package liquidity

import (
	"fmt"
	"log/slog"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// minFillFraction is the smallest fraction of the requested quantity that
// still counts as executable.
const minFillFraction = 0.95

// Fill is the raw result of walking one book side for a target quantity.
type Fill struct {
	AvgPrice       float64
	BestPrice      float64
	FilledAmount   float64 // base currency actually available
	FilledFraction float64 // FilledAmount / requested, in [0,1]
	SlippagePct    float64 // |avg - best| / best * 100
	LevelsUsed     int
	Notional       float64 // cost (asks) or revenue (bids) in USD
	CanExecute     bool    // FilledFraction >= minFillFraction
}

// Validation is the outcome of checking one side of a prospective trade.
type Validation struct {
	Valid        bool
	Reason       string
	AvgPrice     float64
	BestPrice    float64
	SlippagePct  float64
	FilledPct    float64 // 100 when valid
	CryptoAmount float64
	LevelsUsed   int
	Notional     float64
}

// ArbEvaluation combines the buy-side and sell-side validations of a
// candidate and the gross economics after slippage.
type ArbEvaluation struct {
	Valid  bool
	Reason string

	Buy  Validation
	Sell Validation

	CryptoAmount     float64
	TotalSlippagePct float64
	GrossProfitUSD   float64
	GrossProfitPct   float64
}

// DepthStats summarises the top levels of both book sides.
type DepthStats struct {
	AskVolume   float64
	AskValueUSD float64
	BidVolume   float64
	BidValueUSD float64
	Levels      int
}

// Engine walks order books and validates trade liquidity against a
// configured slippage budget.
type Engine struct {
	maxSlippagePct float64
	logger         *slog.Logger
}

// NewEngine creates an Engine. maxSlippagePct is the per-side slippage budget
// in percent.
func NewEngine(maxSlippagePct float64, logger *slog.Logger) *Engine {
	return &Engine{
		maxSlippagePct: maxSlippagePct,
		logger:         logger.With(slog.String("component", "liquidity")),
	}
}

// Walk consumes levels from best price outward until quantity is met or the
// side is exhausted, accumulating a volume-weighted average price.
func Walk(side []domain.PriceLevel, quantity float64) (Fill, error) {
	if quantity <= 0 {
		return Fill{}, fmt.Errorf("liquidity: non-positive quantity %v", quantity)
	}
	if len(side) == 0 {
		return Fill{}, fmt.Errorf("liquidity: %w", domain.ErrNoLiquidity)
	}

	best := side[0].Price
	var filled, notional float64
	levels := 0

	for _, lvl := range side {
		if filled >= quantity {
			break
		}
		levels++
		take := quantity - filled
		if take > lvl.Volume {
			take = lvl.Volume
		}
		notional += lvl.Price * take
		filled += take
	}

	f := Fill{
		BestPrice:    best,
		FilledAmount: filled,
		LevelsUsed:   levels,
		Notional:     notional,
	}
	if filled > 0 {
		f.AvgPrice = notional / filled
		slip := (f.AvgPrice - best) / best * 100
		if slip < 0 {
			slip = -slip
		}
		f.SlippagePct = slip
	}
	f.FilledFraction = filled / quantity
	if f.FilledFraction > 1 {
		f.FilledFraction = 1
	}
	f.CanExecute = filled >= quantity*minFillFraction
	return f, nil
}

// ValidateBuy checks whether amountUSD can be bought against the ask side
// within the slippage budget. The crypto quantity is derived from the best
// ask, so a partially deeper book still fills the dollar target.
func (e *Engine) ValidateBuy(book domain.OrderBookSnapshot, amountUSD float64) Validation {
	if len(book.Asks) == 0 {
		return Validation{Valid: false, Reason: "no asks available"}
	}
	qty := amountUSD / book.Asks[0].Price
	return e.validateSide(book.Asks, qty)
}

// ValidateSell checks whether cryptoAmount can be sold against the bid side
// within the slippage budget.
func (e *Engine) ValidateSell(book domain.OrderBookSnapshot, cryptoAmount float64) Validation {
	if len(book.Bids) == 0 {
		return Validation{Valid: false, Reason: "no bids available"}
	}
	return e.validateSide(book.Bids, cryptoAmount)
}

func (e *Engine) validateSide(side []domain.PriceLevel, qty float64) Validation {
	fill, err := Walk(side, qty)
	if err != nil {
		return Validation{Valid: false, Reason: err.Error()}
	}

	if !fill.CanExecute {
		return Validation{
			Valid:       false,
			Reason:      fmt.Sprintf("insufficient liquidity: only %.6f of %.6f available", fill.FilledAmount, qty),
			AvgPrice:    fill.AvgPrice,
			BestPrice:   fill.BestPrice,
			SlippagePct: fill.SlippagePct,
			FilledPct:   fill.FilledFraction * 100,
			LevelsUsed:  fill.LevelsUsed,
		}
	}
	if fill.SlippagePct > e.maxSlippagePct {
		return Validation{
			Valid:       false,
			Reason:      fmt.Sprintf("slippage too high: %.2f%% > %.2f%%", fill.SlippagePct, e.maxSlippagePct),
			AvgPrice:    fill.AvgPrice,
			BestPrice:   fill.BestPrice,
			SlippagePct: fill.SlippagePct,
			FilledPct:   100,
			LevelsUsed:  fill.LevelsUsed,
		}
	}

	return Validation{
		Valid:        true,
		Reason:       "liquidity sufficient",
		AvgPrice:     fill.AvgPrice,
		BestPrice:    fill.BestPrice,
		SlippagePct:  fill.SlippagePct,
		FilledPct:    100,
		CryptoAmount: qty,
		LevelsUsed:   fill.LevelsUsed,
		Notional:     fill.Notional,
	}
}

// ValidateArbitrage runs the buy side first to discover the achievable crypto
// quantity, then re-runs the sell side for exactly that quantity. The
// asymmetric inputs (USD in, quantity through) are intentional.
func (e *Engine) ValidateArbitrage(buyBook, sellBook domain.OrderBookSnapshot, amountUSD float64) ArbEvaluation {
	buy := e.ValidateBuy(buyBook, amountUSD)
	if !buy.Valid {
		return ArbEvaluation{
			Valid:  false,
			Reason: fmt.Sprintf("buy leg: %s", buy.Reason),
			Buy:    buy,
		}
	}

	sell := e.ValidateSell(sellBook, buy.CryptoAmount)
	if !sell.Valid {
		return ArbEvaluation{
			Valid:  false,
			Reason: fmt.Sprintf("sell leg: %s", sell.Reason),
			Buy:    buy,
			Sell:   sell,
		}
	}

	grossUSD := sell.Notional - buy.Notional
	ev := ArbEvaluation{
		Valid:            true,
		Reason:           "liquidity sufficient for arbitrage",
		Buy:              buy,
		Sell:             sell,
		CryptoAmount:     buy.CryptoAmount,
		TotalSlippagePct: buy.SlippagePct + sell.SlippagePct,
		GrossProfitUSD:   grossUSD,
		GrossProfitPct:   grossUSD / buy.Notional * 100,
	}

	e.logger.Debug("arbitrage liquidity validated",
		slog.Float64("buy_avg", buy.AvgPrice),
		slog.Float64("sell_avg", sell.AvgPrice),
		slog.Float64("total_slippage_pct", ev.TotalSlippagePct),
		slog.Float64("gross_profit_pct", ev.GrossProfitPct))
	return ev
}

// MaxNotionalWithin returns the maximum USD notional tradable against side
// without the marginal price exceeding the slippage budget.
func MaxNotionalWithin(side []domain.PriceLevel, maxSlippagePct float64) float64 {
	if len(side) == 0 {
		return 0
	}
	limit := side[0].Price * (1 + maxSlippagePct/100)
	var value float64
	for _, lvl := range side {
		if lvl.Price > limit {
			break
		}
		value += lvl.Price * lvl.Volume
	}
	return value
}

// Depth summarises volume and USD value across the top levels of both sides.
func Depth(book domain.OrderBookSnapshot, levels int) DepthStats {
	stats := DepthStats{Levels: levels}
	for i, lvl := range book.Asks {
		if i >= levels {
			break
		}
		stats.AskVolume += lvl.Volume
		stats.AskValueUSD += lvl.Price * lvl.Volume
	}
	for i, lvl := range book.Bids {
		if i >= levels {
			break
		}
		stats.BidVolume += lvl.Volume
		stats.BidValueUSD += lvl.Price * lvl.Volume
	}
	return stats
}
