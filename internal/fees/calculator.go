// Package fees converts raw price spreads into cost-adjusted profit figures
// using per-market maker/taker fee schedules.
package fees

import (
	"log/slog"
	"sort"
	"strings"
)

// Role selects which side of the fee schedule applies.
type Role string

const (
	Maker Role = "maker"
	Taker Role = "taker"
)

// Schedule holds one market's maker/taker fees in percent.
type Schedule struct {
	MakerPct float64
	TakerPct float64
}

// Fee returns the percentage for the given role, defaulting to taker.
func (s Schedule) Fee(role Role) float64 {
	if role == Maker {
		return s.MakerPct
	}
	return s.TakerPct
}

// defaultSchedule is applied to markets missing from the table. It matches
// the most expensive known venue so unknown markets are never flattered.
var defaultSchedule = Schedule{MakerPct: 0.40, TakerPct: 0.60}

// defaultSchedules reflects published tier-0/tier-1 rates as of early 2026.
var defaultSchedules = map[string]Schedule{
	"binance":  {MakerPct: 0.10, TakerPct: 0.10},
	"kraken":   {MakerPct: 0.16, TakerPct: 0.26},
	"coinbase": {MakerPct: 0.40, TakerPct: 0.60},
	"bitfinex": {MakerPct: 0.10, TakerPct: 0.20},
	"bitstamp": {MakerPct: 0.30, TakerPct: 0.40},
	"okx":      {MakerPct: 0.08, TakerPct: 0.10},
	"bybit":    {MakerPct: 0.10, TakerPct: 0.10},
	"huobi":    {MakerPct: 0.20, TakerPct: 0.20},
	"kucoin":   {MakerPct: 0.10, TakerPct: 0.10},
	"gate":     {MakerPct: 0.15, TakerPct: 0.15},
}

// TradeFees is the cost breakdown of a single trade.
type TradeFees struct {
	Market   string
	Role     Role
	FeePct   float64
	FeeUSD   float64
	GrossUSD float64
	NetUSD   float64
}

// Profit is the full economics of a buy/sell pair after fees.
type Profit struct {
	BuyMarket  string
	SellMarket string
	BuyPrice   float64
	SellPrice  float64

	TradeAmountUSD float64
	CryptoAmount   float64
	SellAmountUSD  float64

	BuyFeePct  float64
	BuyFeeUSD  float64
	SellFeePct float64
	SellFeeUSD float64

	TotalFeesUSD float64
	TotalFeesPct float64

	GrossProfitUSD float64
	GrossProfitPct float64
	NetProfitUSD   float64
	NetProfitPct   float64

	IsProfitable bool
	// BreakevenSpreadPct is the minimum gross spread, as a percentage of the
	// trade amount, needed to cover fees.
	BreakevenSpreadPct float64
}

// MarketFees compares one market's schedule against the others.
type MarketFees struct {
	Market     string
	MakerPct   float64
	TakerPct   float64
	AveragePct float64
}

// Calculator resolves fee schedules and computes net arbitrage profit.
type Calculator struct {
	schedules map[string]Schedule
	logger    *slog.Logger
}

// NewCalculator builds a Calculator. overrides replace or extend the built-in
// schedule table; keys are lowercased market names.
func NewCalculator(overrides map[string]Schedule, logger *slog.Logger) *Calculator {
	schedules := make(map[string]Schedule, len(defaultSchedules)+len(overrides))
	for name, s := range defaultSchedules {
		schedules[name] = s
	}
	for name, s := range overrides {
		schedules[strings.ToLower(name)] = s
	}
	return &Calculator{
		schedules: schedules,
		logger:    logger.With(slog.String("component", "fees")),
	}
}

// Schedule returns the fee schedule for market, falling back to the
// conservative default when the market is unknown.
func (c *Calculator) Schedule(market string) Schedule {
	if s, ok := c.schedules[strings.ToLower(market)]; ok {
		return s
	}
	c.logger.Debug("unknown market, using default fee schedule",
		slog.String("market", market))
	return defaultSchedule
}

// TradeFees computes the fee charged on a single trade of amountUSD.
func (c *Calculator) TradeFees(market string, amountUSD float64, role Role) TradeFees {
	pct := c.Schedule(market).Fee(role)
	fee := amountUSD * pct / 100
	return TradeFees{
		Market:   market,
		Role:     role,
		FeePct:   pct,
		FeeUSD:   fee,
		GrossUSD: amountUSD,
		NetUSD:   amountUSD - fee,
	}
}

// ArbitrageProfit computes net profit for buying amountUSD at buyPrice on
// buyMarket and selling the acquired quantity at sellPrice on sellMarket.
// The buy fee is charged on the spent notional, the sell fee on the proceeds.
func (c *Calculator) ArbitrageProfit(buyMarket, sellMarket string, buyPrice, sellPrice, amountUSD float64, buyRole, sellRole Role) Profit {
	cryptoAmount := amountUSD / buyPrice
	sellAmount := cryptoAmount * sellPrice

	buyFeePct := c.Schedule(buyMarket).Fee(buyRole)
	buyFee := amountUSD * buyFeePct / 100
	sellFeePct := c.Schedule(sellMarket).Fee(sellRole)
	sellFee := sellAmount * sellFeePct / 100

	totalFees := buyFee + sellFee
	gross := sellAmount - amountUSD
	net := gross - totalFees

	p := Profit{
		BuyMarket:  buyMarket,
		SellMarket: sellMarket,
		BuyPrice:   buyPrice,
		SellPrice:  sellPrice,

		TradeAmountUSD: amountUSD,
		CryptoAmount:   cryptoAmount,
		SellAmountUSD:  sellAmount,

		BuyFeePct:  buyFeePct,
		BuyFeeUSD:  buyFee,
		SellFeePct: sellFeePct,
		SellFeeUSD: sellFee,

		TotalFeesUSD: totalFees,
		TotalFeesPct: totalFees / amountUSD * 100,

		GrossProfitUSD: gross,
		GrossProfitPct: gross / amountUSD * 100,
		NetProfitUSD:   net,
		NetProfitPct:   net / amountUSD * 100,

		IsProfitable: net > 0,
	}
	p.BreakevenSpreadPct = p.TotalFeesPct

	c.logger.Debug("arbitrage profit computed",
		slog.String("buy_market", buyMarket),
		slog.String("sell_market", sellMarket),
		slog.Float64("net_profit_usd", p.NetProfitUSD),
		slog.Float64("net_profit_pct", p.NetProfitPct))
	return p
}

// CompareSchedules returns all known markets sorted by average fee, cheapest
// first. Ties keep map-independent deterministic order by name.
func (c *Calculator) CompareSchedules() []MarketFees {
	out := make([]MarketFees, 0, len(c.schedules))
	for name, s := range c.schedules {
		out = append(out, MarketFees{
			Market:     name,
			MakerPct:   s.MakerPct,
			TakerPct:   s.TakerPct,
			AveragePct: (s.MakerPct + s.TakerPct) / 2,
		})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].AveragePct != out[j].AveragePct {
			return out[i].AveragePct < out[j].AveragePct
		}
		return out[i].Market < out[j].Market
	})
	return out
}
