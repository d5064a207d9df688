// Package orchestrator drives the trade cycle: collect, score, gate,
// execute, record. It owns the run loop and is the single writer into the
// risk manager, tracker, and circuit breaker.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbot/internal/collector"
	"github.com/alanyoungcy/arbot/internal/domain"
	"github.com/alanyoungcy/arbot/internal/faults"
	"github.com/alanyoungcy/arbot/internal/notify"
	"github.com/alanyoungcy/arbot/internal/risk"
	"github.com/alanyoungcy/arbot/internal/scoring"
)

// errHalt stops the run loop without surfacing an error to the caller.
var errHalt = errors.New("orchestrator: run halted")

// Config bounds one run.
type Config struct {
	Symbols        []string
	TradeAmountUSD float64
	// Interval is the pause between cycles.
	Interval time.Duration
	// MaxCycles stops the run after that many cycles; zero means unbounded.
	MaxCycles int
	// Duration stops the run after the elapsed wall time; zero means unbounded.
	Duration time.Duration
	// MaxTradesPerCycle caps executions per cycle; zero means no cap.
	MaxTradesPerCycle int
	// ExecutionEnabled is false in monitor mode: detect and log only.
	ExecutionEnabled bool
}

// Stats counts run activity.
type Stats struct {
	Cycles                int
	OpportunitiesDetected int
	TradesExecuted        int
	TradesSkipped         int
	TradesFailed          int
	Errors                int
}

// Orchestrator wires the decision pipeline together.
type Orchestrator struct {
	collector  *collector.Collector
	scorer     *scoring.Scorer
	manager    *risk.Manager
	tracker    *risk.Tracker
	breaker    *risk.Breaker
	executor   domain.Executor
	retrier    *faults.Retrier
	classifier *faults.Classifier
	opps       domain.OpportunityStore
	trades     domain.TradeStore
	notifier   *notify.Notifier

	cfg    Config
	logger *slog.Logger
	nowFn  func() time.Time
	// sleepFn waits between cycles; tests replace it.
	sleepFn func(context.Context, time.Duration) error

	stats Stats
}

// Deps carries the orchestrator's collaborators. The opportunity and trade
// stores and the notifier may be nil; persistence and alerting are then
// skipped.
type Deps struct {
	Collector  *collector.Collector
	Scorer     *scoring.Scorer
	Manager    *risk.Manager
	Tracker    *risk.Tracker
	Breaker    *risk.Breaker
	Executor   domain.Executor
	Retrier    *faults.Retrier
	Classifier *faults.Classifier

	Opportunities domain.OpportunityStore
	Trades        domain.TradeStore
	Notifier      *notify.Notifier
}

// New creates an Orchestrator.
func New(deps Deps, cfg Config, logger *slog.Logger) (*Orchestrator, error) {
	switch {
	case deps.Collector == nil:
		return nil, fmt.Errorf("orchestrator: nil collector")
	case deps.Scorer == nil:
		return nil, fmt.Errorf("orchestrator: nil scorer")
	case deps.Manager == nil:
		return nil, fmt.Errorf("orchestrator: nil risk manager")
	case deps.Breaker == nil:
		return nil, fmt.Errorf("orchestrator: nil breaker")
	case deps.Classifier == nil:
		return nil, fmt.Errorf("orchestrator: nil classifier")
	case deps.Retrier == nil:
		return nil, fmt.Errorf("orchestrator: nil retrier")
	case cfg.ExecutionEnabled && deps.Executor == nil:
		return nil, fmt.Errorf("orchestrator: execution enabled without an executor")
	case len(cfg.Symbols) == 0:
		return nil, fmt.Errorf("orchestrator: no symbols configured")
	case cfg.TradeAmountUSD <= 0:
		return nil, fmt.Errorf("orchestrator: trade amount must be positive, got %.2f", cfg.TradeAmountUSD)
	}

	return &Orchestrator{
		collector:  deps.Collector,
		scorer:     deps.Scorer,
		manager:    deps.Manager,
		tracker:    deps.Tracker,
		breaker:    deps.Breaker,
		executor:   deps.Executor,
		retrier:    deps.Retrier,
		classifier: deps.Classifier,
		opps:       deps.Opportunities,
		trades:     deps.Trades,
		notifier:   deps.Notifier,
		cfg:        cfg,
		logger:     logger.With(slog.String("component", "orchestrator")),
		nowFn:      time.Now,
		sleepFn:    sleepCtx,
	}, nil
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

// Run executes cycles until the context is cancelled, a bound is hit, the
// circuit breaker opens, or a fault demands a stop. The final statistics are
// logged and notified before returning.
func (o *Orchestrator) Run(ctx context.Context) error {
	start := o.nowFn()
	o.logger.Info("run started",
		slog.Any("symbols", o.cfg.Symbols),
		slog.Float64("trade_amount_usd", o.cfg.TradeAmountUSD),
		slog.Bool("execution_enabled", o.cfg.ExecutionEnabled))

	var runErr error
	for {
		if o.cfg.Duration > 0 && o.nowFn().Sub(start) >= o.cfg.Duration {
			o.logger.Info("duration bound reached", slog.Duration("duration", o.cfg.Duration))
			break
		}
		if o.cfg.MaxCycles > 0 && o.stats.Cycles >= o.cfg.MaxCycles {
			o.logger.Info("cycle bound reached", slog.Int("max_cycles", o.cfg.MaxCycles))
			break
		}
		if o.breaker.IsOpen() {
			reason := o.breaker.TripReason()
			o.logger.Error("circuit breaker open, halting run", slog.String("reason", reason))
			o.alert(ctx, notify.EventBreakerTrip, "Circuit breaker open",
				fmt.Sprintf("Trading halted: %s", reason))
			break
		}

		if err := o.runCycle(ctx); err != nil {
			if !errors.Is(err, errHalt) {
				runErr = err
			}
			break
		}

		if err := o.sleepFn(ctx, o.cfg.Interval); err != nil {
			break
		}
	}

	o.shutdown(start, runErr)
	return runErr
}

func (o *Orchestrator) runCycle(ctx context.Context) error {
	o.stats.Cycles++

	for _, symbol := range o.cfg.Symbols {
		if err := o.processSymbol(ctx, symbol); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) processSymbol(ctx context.Context, symbol string) error {
	var res collector.Result
	err := o.retrier.Do(ctx, func(ctx context.Context) error {
		var err error
		res, err = o.collector.Collect(ctx, symbol, o.cfg.TradeAmountUSD)
		return err
	})
	if err != nil {
		o.stats.Errors++
		var fault *faults.Fault
		if errors.As(err, &fault) {
			o.breaker.Observe(risk.Signals{ErrorOccurred: true, ErrorKind: string(fault.Kind)})
			if fault.Action == faults.ActionStop {
				o.alert(ctx, notify.EventCritical, "Critical fault",
					fmt.Sprintf("Collection for %s failed: %v", symbol, fault.Err))
				return fmt.Errorf("orchestrator: collect %s: %w", symbol, fault)
			}
		}
		o.logger.Warn("collection failed, skipping symbol",
			slog.String("symbol", symbol),
			slog.String("error", err.Error()))
		return nil
	}

	if len(res.Opportunities) == 0 {
		return nil
	}
	o.stats.OpportunitiesDetected += len(res.Opportunities)

	for i := range res.Opportunities {
		o.scorer.Score(&res.Opportunities[i])
	}
	ranked := o.scorer.Rank(res.Opportunities)
	if o.cfg.MaxTradesPerCycle > 0 {
		ranked = scoring.TopN(ranked, o.cfg.MaxTradesPerCycle)
	}

	o.persistOpportunities(ctx, ranked)

	if !o.cfg.ExecutionEnabled {
		best := ranked[0]
		o.logger.Info("opportunity observed",
			slog.String("symbol", best.Symbol),
			slog.String("buy_market", best.BuyMarket),
			slog.String("sell_market", best.SellMarket),
			slog.Float64("net_profit_pct", best.NetProfitPct),
			slog.Float64("score", best.TotalScore()))
		return nil
	}

	for _, cand := range ranked {
		if o.breaker.IsOpen() {
			return nil
		}
		if err := o.processCandidate(ctx, cand); err != nil {
			return err
		}
	}
	return nil
}

func (o *Orchestrator) processCandidate(ctx context.Context, cand domain.Candidate) error {
	decision := o.manager.CanTrade(cand, o.cfg.TradeAmountUSD)
	if !decision.Allowed {
		o.stats.TradesSkipped++
		o.logger.Info("trade rejected",
			slog.String("symbol", cand.Symbol),
			slog.String("buy_market", cand.BuyMarket),
			slog.String("sell_market", cand.SellMarket),
			slog.String("reason", decision.Reason))
		return nil
	}

	result, err := o.executor.Execute(ctx, cand, o.cfg.TradeAmountUSD)
	if err != nil {
		o.stats.TradesFailed++
		o.stats.Errors++
		fault := o.classifier.Handle(err)
		if tripped := o.breaker.Observe(risk.Signals{ErrorOccurred: true, ErrorKind: string(fault.Kind)}); tripped {
			o.alert(ctx, notify.EventBreakerTrip, "Circuit breaker open",
				fmt.Sprintf("Tripped during execution: %s", o.breaker.TripReason()))
			return nil
		}
		if fault.Action == faults.ActionStop {
			o.alert(ctx, notify.EventCritical, "Critical fault",
				fmt.Sprintf("Execution of %s failed: %v", cand.Symbol, fault.Err))
			return fmt.Errorf("orchestrator: execute %s: %w", cand.Symbol, fault)
		}
		return nil
	}

	o.stats.TradesExecuted++
	win := result.Win()

	o.manager.RecordOutcome(result.NetProfitUSD, win)
	if o.tracker != nil {
		o.tracker.RecordTrade(ctx, result.NetProfitUSD, win)
	}

	balance := o.executor.Balance()
	o.manager.UpdateBalance(balance)

	sig := risk.Signals{BalanceUSD: balance}
	if result.NetProfitUSD < 0 {
		sig.LossUSD = -result.NetProfitUSD
	}
	if tripped := o.breaker.Observe(sig); tripped {
		o.alert(ctx, notify.EventBreakerTrip, "Circuit breaker open",
			fmt.Sprintf("Tripped after trade settlement: %s", o.breaker.TripReason()))
	}

	o.persistTrade(ctx, result)

	o.logger.Info("trade settled",
		slog.String("symbol", result.Symbol),
		slog.String("buy_market", result.BuyMarket),
		slog.String("sell_market", result.SellMarket),
		slog.Bool("win", win),
		slog.Float64("net_profit_usd", result.NetProfitUSD),
		slog.Float64("balance_usd", balance))

	return nil
}

func (o *Orchestrator) persistOpportunities(ctx context.Context, cands []domain.Candidate) {
	if o.opps == nil {
		return
	}
	for _, cand := range cands {
		if err := o.opps.Insert(ctx, cand); err != nil {
			o.stats.Errors++
			o.logger.Warn("opportunity persist failed",
				slog.String("id", cand.ID),
				slog.String("error", err.Error()))
		}
	}
}

func (o *Orchestrator) persistTrade(ctx context.Context, result domain.ExecutionResult) {
	if o.trades == nil {
		return
	}
	if err := o.trades.Insert(ctx, result); err != nil {
		o.stats.Errors++
		o.logger.Warn("trade persist failed",
			slog.String("id", result.ID),
			slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) alert(ctx context.Context, event notify.Event, title, message string) {
	if o.notifier == nil {
		return
	}
	if err := o.notifier.Notify(ctx, event, title, message); err != nil {
		o.logger.Warn("alert delivery failed", slog.String("error", err.Error()))
	}
}

func (o *Orchestrator) shutdown(start time.Time, runErr error) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if o.tracker != nil {
		o.tracker.Flush(ctx)
	}

	elapsed := o.nowFn().Sub(start)
	daily := o.manager.DailyStats()
	breaker := o.breaker.Status()
	errStats := o.classifier.Stats()

	o.logger.Info("run finished",
		slog.Duration("elapsed", elapsed),
		slog.Int("cycles", o.stats.Cycles),
		slog.Int("opportunities", o.stats.OpportunitiesDetected),
		slog.Int("trades_executed", o.stats.TradesExecuted),
		slog.Int("trades_skipped", o.stats.TradesSkipped),
		slog.Int("trades_failed", o.stats.TradesFailed),
		slog.Int("errors", errStats.TotalErrors),
		slog.Int("retries", errStats.TotalRetries),
		slog.Float64("daily_pnl_usd", daily.DailyPnLUSD),
		slog.Bool("breaker_open", breaker.Open))

	summary := fmt.Sprintf(
		"Cycles: %d\nOpportunities: %d\nTrades: %d executed, %d skipped, %d failed\nDaily PnL: $%.2f",
		o.stats.Cycles, o.stats.OpportunitiesDetected,
		o.stats.TradesExecuted, o.stats.TradesSkipped, o.stats.TradesFailed,
		daily.DailyPnLUSD)
	if runErr != nil {
		summary += fmt.Sprintf("\nStopped on error: %v", runErr)
	}
	o.alert(ctx, notify.EventRunSummary, "Run finished", summary)
}

// Stats returns the run counters.
func (o *Orchestrator) Stats() Stats { return o.stats }
