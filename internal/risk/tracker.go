package risk

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// TrackerStats is the full view of one day's performance including the
// in-flight streak counters that are not persisted.
type TrackerStats struct {
	domain.DailyPerformance

	AvgWinUSD       float64
	AvgLossUSD      float64
	ProfitLossRatio float64

	CurrentWinStreak  int
	CurrentLossStreak int
}

// Tracker accumulates per-calendar-day trade outcomes and mirrors them into
// the daily performance store after every trade. In-memory state is the
// source of truth; a failed upsert never corrupts the counters.
type Tracker struct {
	store  domain.DailyPerformanceStore
	logger *slog.Logger
	nowFn  func() time.Time

	day    string
	trades int
	wins   int
	losses int

	totalProfit float64
	totalLoss   float64
	bestTrade   float64
	worstTrade  float64

	winStreak     int
	lossStreak    int
	maxWinStreak  int
	maxLossStreak int
}

// NewTracker creates a Tracker and resumes today's counters from the store,
// so a process restart mid-day does not lose the day's aggregate. A missing
// row is a fresh day; any other load error is returned.
func NewTracker(ctx context.Context, store domain.DailyPerformanceStore, logger *slog.Logger) (*Tracker, error) {
	t := &Tracker{
		store:  store,
		logger: logger.With(slog.String("component", "tracker")),
		nowFn:  time.Now,
	}
	t.day = domain.Day(t.nowFn())

	if store != nil {
		perf, err := store.Get(ctx, t.day)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			// fresh day
		case err != nil:
			return nil, fmt.Errorf("risk: load today's performance: %w", err)
		default:
			t.trades = perf.Trades
			t.wins = perf.Wins
			t.losses = perf.Losses
			t.totalProfit = perf.TotalProfit
			t.totalLoss = perf.TotalLoss
			t.bestTrade = perf.BestTrade
			t.worstTrade = perf.WorstTrade
			t.maxWinStreak = perf.MaxWinStreak
			t.maxLossStreak = perf.MaxLossStreak
			t.logger.Info("resumed today's performance",
				slog.String("date", t.day),
				slog.Int("trades", t.trades),
				slog.Float64("net_pnl", t.totalProfit-t.totalLoss))
		}
	}
	return t, nil
}

// rolloverIfNeeded flushes the tracked day's aggregate and starts fresh
// counters when the calendar day has moved past it.
func (t *Tracker) rolloverIfNeeded(ctx context.Context) {
	today := domain.Day(t.nowFn())
	if today == t.day {
		return
	}

	t.logger.Info("day rollover, flushing aggregate",
		slog.String("old_date", t.day),
		slog.String("new_date", today),
		slog.Int("trades", t.trades),
		slog.Float64("net_pnl", t.totalProfit-t.totalLoss))
	t.flush(ctx)

	t.day = today
	t.trades = 0
	t.wins = 0
	t.losses = 0
	t.totalProfit = 0
	t.totalLoss = 0
	t.bestTrade = 0
	t.worstTrade = 0
	t.winStreak = 0
	t.lossStreak = 0
	t.maxWinStreak = 0
	t.maxLossStreak = 0
}

// RecordTrade folds one outcome into the day's aggregate and upserts the row.
func (t *Tracker) RecordTrade(ctx context.Context, pnlUSD float64, win bool) {
	t.rolloverIfNeeded(ctx)

	t.trades++
	if win {
		t.wins++
		t.totalProfit += pnlUSD
		if pnlUSD > t.bestTrade {
			t.bestTrade = pnlUSD
		}
		t.winStreak++
		t.lossStreak = 0
		if t.winStreak > t.maxWinStreak {
			t.maxWinStreak = t.winStreak
		}
	} else {
		t.losses++
		loss := pnlUSD
		if loss < 0 {
			loss = -loss
		}
		t.totalLoss += loss
		if pnlUSD < t.worstTrade {
			t.worstTrade = pnlUSD
		}
		t.lossStreak++
		t.winStreak = 0
		if t.lossStreak > t.maxLossStreak {
			t.maxLossStreak = t.lossStreak
		}
	}

	t.flush(ctx)
}

// Flush forces a persistence pass, used at shutdown.
func (t *Tracker) Flush(ctx context.Context) {
	t.rolloverIfNeeded(ctx)
	t.flush(ctx)
}

func (t *Tracker) flush(ctx context.Context) {
	if t.store == nil {
		return
	}
	if err := t.store.Upsert(ctx, t.snapshot()); err != nil {
		t.logger.Error("daily performance upsert failed",
			slog.String("date", t.day),
			slog.String("error", err.Error()))
	}
}

func (t *Tracker) snapshot() domain.DailyPerformance {
	perf := domain.DailyPerformance{
		Date:          t.day,
		Trades:        t.trades,
		Wins:          t.wins,
		Losses:        t.losses,
		TotalProfit:   t.totalProfit,
		TotalLoss:     t.totalLoss,
		NetPnL:        t.totalProfit - t.totalLoss,
		BestTrade:     t.bestTrade,
		WorstTrade:    t.worstTrade,
		MaxWinStreak:  t.maxWinStreak,
		MaxLossStreak: t.maxLossStreak,
		UpdatedAt:     t.nowFn(),
	}
	if t.trades > 0 {
		perf.WinRate = float64(t.wins) / float64(t.trades) * 100
	}
	return perf
}

// Stats returns the day's aggregate plus derived averages and live streaks.
func (t *Tracker) Stats(ctx context.Context) TrackerStats {
	t.rolloverIfNeeded(ctx)

	s := TrackerStats{
		DailyPerformance:  t.snapshot(),
		CurrentWinStreak:  t.winStreak,
		CurrentLossStreak: t.lossStreak,
	}
	if t.wins > 0 {
		s.AvgWinUSD = t.totalProfit / float64(t.wins)
	}
	if t.losses > 0 {
		s.AvgLossUSD = t.totalLoss / float64(t.losses)
	}
	if s.AvgLossUSD > 0 {
		s.ProfitLossRatio = s.AvgWinUSD / s.AvgLossUSD
	}
	return s
}
