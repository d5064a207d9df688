package app

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbot/internal/collector"
	"github.com/alanyoungcy/arbot/internal/executor"
	"github.com/alanyoungcy/arbot/internal/faults"
	"github.com/alanyoungcy/arbot/internal/fees"
	"github.com/alanyoungcy/arbot/internal/liquidity"
	"github.com/alanyoungcy/arbot/internal/orchestrator"
	"github.com/alanyoungcy/arbot/internal/risk"
	"github.com/alanyoungcy/arbot/internal/scoring"
)

// RunPipeline runs the detect/score/gate/execute loop. In monitor mode the
// orchestrator logs the best opportunity per cycle without executing; in
// trade mode the dry-run executor settles against a virtual balance.
func (a *App) RunPipeline(ctx context.Context, deps *Dependencies) error {
	feeCalc := fees.NewCalculator(nil, a.logger)
	engine := liquidity.NewEngine(a.cfg.Limits.MaxSlippagePct, a.logger)

	coll, err := collector.New(deps.Provider, feeCalc, engine,
		deps.QuoteCache, deps.BookCache, a.cfg.CollectorConfig(), a.logger)
	if err != nil {
		return fmt.Errorf("app: collector: %w", err)
	}

	manager, err := risk.NewManager(a.cfg.RiskLimits(), a.logger)
	if err != nil {
		return fmt.Errorf("app: risk manager: %w", err)
	}
	manager.UpdateBalance(a.cfg.Trading.InitialBalanceUSD)

	tracker, err := risk.NewTracker(ctx, deps.DailyPerf, a.logger)
	if err != nil {
		return fmt.Errorf("app: daily tracker: %w", err)
	}

	classifier := faults.NewClassifier(a.logger)

	orchDeps := orchestrator.Deps{
		Collector:     coll,
		Scorer:        scoring.NewScorer(a.logger),
		Manager:       manager,
		Tracker:       tracker,
		Breaker:       risk.NewBreaker(a.cfg.RiskBreaker(), a.logger),
		Retrier:       faults.NewRetrier(classifier, faults.DefaultPolicy()),
		Classifier:    classifier,
		Opportunities: deps.Opportunities,
		Trades:        deps.Trades,
		Notifier:      deps.Notifier,
	}
	if a.cfg.Mode == "trade" {
		orchDeps.Executor = executor.NewDryRun(a.cfg.Trading.InitialBalanceUSD, feeCalc, a.logger)
	}

	orch, err := orchestrator.New(orchDeps, a.cfg.OrchestratorConfig(), a.logger)
	if err != nil {
		return fmt.Errorf("app: orchestrator: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	if deps.Feed != nil {
		g.Go(func() error {
			return deps.Feed.Run(gctx)
		})
	}
	g.Go(func() error {
		defer func() {
			if deps.Feed != nil {
				deps.Feed.Close()
			}
		}()
		return orch.Run(gctx)
	})

	return g.Wait()
}

// ArchiveMode uploads rows older than the retention window to cold storage
// and, when configured, prunes them from the database afterwards.
func (a *App) ArchiveMode(ctx context.Context, deps *Dependencies) error {
	if deps.Archiver == nil {
		return fmt.Errorf("app: archive mode requires object storage")
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -a.cfg.Archive.RetentionDays)
	a.logger.InfoContext(ctx, "archiving aged rows",
		slog.Time("cutoff", cutoff),
		slog.Int("retention_days", a.cfg.Archive.RetentionDays))

	opps, err := deps.Archiver.ArchiveOpportunities(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("app: archive opportunities: %w", err)
	}
	trades, err := deps.Archiver.ArchiveTrades(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("app: archive trades: %w", err)
	}

	if a.cfg.Archive.DeleteAfterUpload {
		deletedOpps, err := deps.Opportunities.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("app: prune opportunities: %w", err)
		}
		deletedTrades, err := deps.Trades.DeleteBefore(ctx, cutoff)
		if err != nil {
			return fmt.Errorf("app: prune trades: %w", err)
		}
		a.logger.InfoContext(ctx, "archived rows pruned",
			slog.Int64("opportunities", deletedOpps),
			slog.Int64("trades", deletedTrades))
	}

	a.logger.InfoContext(ctx, "archive complete",
		slog.Int64("opportunities", opps),
		slog.Int64("trades", trades))
	return nil
}
