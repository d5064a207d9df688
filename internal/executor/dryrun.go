// Package executor holds the execution step of the trade cycle. The shipped
// implementation is a simulator: it fills both legs against the candidate's
// prices with randomized slippage and latency, tracks a virtual balance, and
// never places a real order.
package executor

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/alanyoungcy/arbot/internal/domain"
	"github.com/alanyoungcy/arbot/internal/fees"
)

const (
	// Per-leg slippage is drawn uniformly from [0, maxLegSlippagePct].
	maxLegSlippagePct = 0.2

	// Simulated latency bounds per stage.
	minLegLatency      = 50 * time.Millisecond
	maxLegLatency      = 200 * time.Millisecond
	minTransferLatency = 100 * time.Millisecond
	maxTransferLatency = 300 * time.Millisecond
)

// Stats summarises the simulator's run so far.
type Stats struct {
	InitialBalanceUSD float64
	BalanceUSD        float64
	NetPnLUSD         float64
	ROIPct            float64

	Trades     int
	Wins       int
	Losses     int
	WinRatePct float64

	TotalProfitUSD float64
	TotalLossUSD   float64
	AvgWinUSD      float64
	AvgLossUSD     float64
}

// DryRun implements domain.Executor against a virtual balance.
type DryRun struct {
	fees   *fees.Calculator
	logger *slog.Logger
	nowFn  func() time.Time
	rng    *rand.Rand
	// sleepFn waits out the simulated latency; tests replace it.
	sleepFn func(context.Context, time.Duration) error

	mu             sync.Mutex
	initialBalance float64
	balance        float64
	trades         int
	wins           int
	losses         int
	totalProfit    float64
	totalLoss      float64
}

// NewDryRun creates the simulator with the given virtual starting balance.
func NewDryRun(initialBalanceUSD float64, feeCalc *fees.Calculator, logger *slog.Logger) *DryRun {
	return &DryRun{
		fees:           feeCalc,
		logger:         logger.With(slog.String("component", "executor"), slog.Bool("dry_run", true)),
		nowFn:          time.Now,
		rng:            rand.New(rand.NewSource(time.Now().UnixNano())),
		sleepFn:        sleepCtx,
		initialBalance: initialBalanceUSD,
		balance:        initialBalanceUSD,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// Execute simulates both legs of the arbitrage and settles the outcome
// against the virtual balance. amountUSD above the current balance fails
// without touching it.
func (d *DryRun) Execute(ctx context.Context, cand domain.Candidate, amountUSD float64) (domain.ExecutionResult, error) {
	start := d.nowFn()

	result := domain.ExecutionResult{
		ID:          uuid.NewString(),
		CandidateID: cand.ID,
		Symbol:      cand.Symbol,
		BuyMarket:   cand.BuyMarket,
		SellMarket:  cand.SellMarket,
		AmountUSD:   amountUSD,
		ExecutedAt:  start,
	}

	if amountUSD <= 0 || cand.BuyPrice <= 0 || cand.SellPrice <= 0 {
		result.Error = "invalid candidate prices or amount"
		return result, fmt.Errorf("executor: execute %s: %w", cand.Symbol, domain.ErrInvalidOrder)
	}

	d.mu.Lock()
	balance := d.balance
	d.mu.Unlock()
	if amountUSD > balance {
		result.Error = "insufficient balance"
		d.logger.Warn("trade rejected",
			slog.Float64("amount_usd", amountUSD),
			slog.Float64("balance_usd", balance))
		return result, fmt.Errorf("executor: execute %s: need $%.2f, have $%.2f: %w",
			cand.Symbol, amountUSD, balance, domain.ErrInsufficientFunds)
	}

	var latency time.Duration

	// Buy leg.
	legWait := d.randomDuration(minLegLatency, maxLegLatency)
	latency += legWait
	if err := d.sleepFn(ctx, legWait); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("executor: buy leg: %w", err)
	}
	quantity := amountUSD / cand.BuyPrice
	buySlipPct := d.rng.Float64() * maxLegSlippagePct
	actualBuyPrice := cand.BuyPrice * (1 + buySlipPct/100)
	buyCost := quantity * actualBuyPrice

	// Transfer between venues.
	if cand.BuyMarket != cand.SellMarket {
		transferWait := d.randomDuration(minTransferLatency, maxTransferLatency)
		latency += transferWait
		if err := d.sleepFn(ctx, transferWait); err != nil {
			result.Error = err.Error()
			return result, fmt.Errorf("executor: transfer: %w", err)
		}
	}

	// Sell leg.
	legWait = d.randomDuration(minLegLatency, maxLegLatency)
	latency += legWait
	if err := d.sleepFn(ctx, legWait); err != nil {
		result.Error = err.Error()
		return result, fmt.Errorf("executor: sell leg: %w", err)
	}
	sellSlipPct := d.rng.Float64() * maxLegSlippagePct
	actualSellPrice := cand.SellPrice * (1 - sellSlipPct/100)
	sellRevenue := quantity * actualSellPrice

	buyFee := d.fees.TradeFees(cand.BuyMarket, buyCost, fees.Taker)
	sellFee := d.fees.TradeFees(cand.SellMarket, sellRevenue, fees.Taker)
	totalFees := buyFee.FeeUSD + sellFee.FeeUSD

	netProfit := sellRevenue - buyCost - totalFees

	result.Success = true
	result.CryptoAmount = quantity
	result.ActualBuyPrice = actualBuyPrice
	result.ActualSellPrice = actualSellPrice
	result.FeesUSD = totalFees
	result.NetProfitUSD = netProfit
	if buyCost > 0 {
		result.NetProfitPct = netProfit / buyCost * 100
	}
	result.Latency = latency

	d.settle(netProfit)

	d.logger.Info("trade simulated",
		slog.String("symbol", cand.Symbol),
		slog.String("buy_market", cand.BuyMarket),
		slog.String("sell_market", cand.SellMarket),
		slog.Float64("net_profit_usd", netProfit),
		slog.Float64("buy_slippage_pct", buySlipPct),
		slog.Float64("sell_slippage_pct", sellSlipPct),
		slog.Duration("latency", latency),
		slog.Float64("balance_usd", d.Balance()))

	return result, nil
}

func (d *DryRun) randomDuration(low, high time.Duration) time.Duration {
	return low + time.Duration(d.rng.Int63n(int64(high-low)))
}

func (d *DryRun) settle(netProfit float64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.balance += netProfit
	d.trades++
	if netProfit > 0 {
		d.wins++
		d.totalProfit += netProfit
	} else {
		d.losses++
		d.totalLoss += -netProfit
	}
}

// Balance returns the current virtual balance in USD.
func (d *DryRun) Balance() float64 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.balance
}

// Stats returns the simulator counters.
func (d *DryRun) Stats() Stats {
	d.mu.Lock()
	defer d.mu.Unlock()

	s := Stats{
		InitialBalanceUSD: d.initialBalance,
		BalanceUSD:        d.balance,
		NetPnLUSD:         d.balance - d.initialBalance,
		Trades:            d.trades,
		Wins:              d.wins,
		Losses:            d.losses,
		TotalProfitUSD:    d.totalProfit,
		TotalLossUSD:      d.totalLoss,
	}
	if d.initialBalance > 0 {
		s.ROIPct = s.NetPnLUSD / d.initialBalance * 100
	}
	if d.trades > 0 {
		s.WinRatePct = float64(d.wins) / float64(d.trades) * 100
	}
	if d.wins > 0 {
		s.AvgWinUSD = d.totalProfit / float64(d.wins)
	}
	if d.losses > 0 {
		s.AvgLossUSD = d.totalLoss / float64(d.losses)
	}
	return s
}

// Reset restores the starting balance and clears the counters.
func (d *DryRun) Reset() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.balance = d.initialBalance
	d.trades = 0
	d.wins = 0
	d.losses = 0
	d.totalProfit = 0
	d.totalLoss = 0
	d.logger.Info("simulator reset", slog.Float64("balance_usd", d.balance))
}

var _ domain.Executor = (*DryRun)(nil)
