package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// DailyPerformanceStore implements domain.DailyPerformanceStore on PostgreSQL.
type DailyPerformanceStore struct {
	pool *pgxpool.Pool
}

// NewDailyPerformanceStore creates a DailyPerformanceStore on the pool.
func NewDailyPerformanceStore(pool *pgxpool.Pool) *DailyPerformanceStore {
	return &DailyPerformanceStore{pool: pool}
}

const dailyCols = `date, trades, wins, losses, win_rate, total_profit, total_loss,
	net_pnl, best_trade, worst_trade, max_win_streak, max_loss_streak, updated_at`

// Upsert writes the day's aggregate, replacing any existing row for the date.
func (s *DailyPerformanceStore) Upsert(ctx context.Context, perf domain.DailyPerformance) error {
	date, err := time.Parse(domain.DateLayout, perf.Date)
	if err != nil {
		return fmt.Errorf("postgres: parse performance date %q: %w", perf.Date, err)
	}

	_, err = s.pool.Exec(ctx, `
		INSERT INTO daily_performance (`+dailyCols+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
		ON CONFLICT (date) DO UPDATE SET
			trades = EXCLUDED.trades,
			wins = EXCLUDED.wins,
			losses = EXCLUDED.losses,
			win_rate = EXCLUDED.win_rate,
			total_profit = EXCLUDED.total_profit,
			total_loss = EXCLUDED.total_loss,
			net_pnl = EXCLUDED.net_pnl,
			best_trade = EXCLUDED.best_trade,
			worst_trade = EXCLUDED.worst_trade,
			max_win_streak = EXCLUDED.max_win_streak,
			max_loss_streak = EXCLUDED.max_loss_streak,
			updated_at = EXCLUDED.updated_at`,
		date, perf.Trades, perf.Wins, perf.Losses, perf.WinRate,
		perf.TotalProfit, perf.TotalLoss, perf.NetPnL,
		perf.BestTrade, perf.WorstTrade,
		perf.MaxWinStreak, perf.MaxLossStreak, perf.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: upsert daily performance %s: %w", perf.Date, err)
	}
	return nil
}

// Get returns the aggregate for the date, or domain.ErrNotFound.
func (s *DailyPerformanceStore) Get(ctx context.Context, date string) (domain.DailyPerformance, error) {
	var perf domain.DailyPerformance
	var day time.Time
	err := s.pool.QueryRow(ctx,
		`SELECT `+dailyCols+` FROM daily_performance WHERE date = $1`, date,
	).Scan(
		&day, &perf.Trades, &perf.Wins, &perf.Losses, &perf.WinRate,
		&perf.TotalProfit, &perf.TotalLoss, &perf.NetPnL,
		&perf.BestTrade, &perf.WorstTrade,
		&perf.MaxWinStreak, &perf.MaxLossStreak, &perf.UpdatedAt,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.DailyPerformance{}, fmt.Errorf("postgres: daily performance %s: %w", date, domain.ErrNotFound)
	}
	if err != nil {
		return domain.DailyPerformance{}, fmt.Errorf("postgres: get daily performance %s: %w", date, err)
	}
	perf.Date = day.Format(domain.DateLayout)
	return perf, nil
}

// ListRange returns aggregates for dates in [from, to], ascending.
func (s *DailyPerformanceStore) ListRange(ctx context.Context, from, to string) ([]domain.DailyPerformance, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+dailyCols+` FROM daily_performance WHERE date BETWEEN $1 AND $2 ORDER BY date ASC`,
		from, to)
	if err != nil {
		return nil, fmt.Errorf("postgres: list daily performance: %w", err)
	}
	defer rows.Close()

	var perfs []domain.DailyPerformance
	for rows.Next() {
		var perf domain.DailyPerformance
		var day time.Time
		if err := rows.Scan(
			&day, &perf.Trades, &perf.Wins, &perf.Losses, &perf.WinRate,
			&perf.TotalProfit, &perf.TotalLoss, &perf.NetPnL,
			&perf.BestTrade, &perf.WorstTrade,
			&perf.MaxWinStreak, &perf.MaxLossStreak, &perf.UpdatedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan daily performance: %w", err)
		}
		perf.Date = day.Format(domain.DateLayout)
		perfs = append(perfs, perf)
	}
	return perfs, rows.Err()
}

var _ domain.DailyPerformanceStore = (*DailyPerformanceStore)(nil)
