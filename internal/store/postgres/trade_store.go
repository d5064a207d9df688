package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// TradeStore implements domain.TradeStore on PostgreSQL.
type TradeStore struct {
	pool *pgxpool.Pool
}

// NewTradeStore creates a TradeStore on the pool.
func NewTradeStore(pool *pgxpool.Pool) *TradeStore {
	return &TradeStore{pool: pool}
}

const tradeCols = `id, candidate_id, symbol, buy_market, sell_market, success,
	amount_usd, crypto_amount, actual_buy_price, actual_sell_price,
	fees_usd, net_profit_usd, net_profit_pct, latency_ms, error, executed_at`

// Insert stores one execution outcome.
func (s *TradeStore) Insert(ctx context.Context, res domain.ExecutionResult) error {
	var candidateID *string
	if res.CandidateID != "" {
		candidateID = &res.CandidateID
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO trades (`+tradeCols+`)
		VALUES ($1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10,
			$11, $12, $13, $14, $15, $16)
		ON CONFLICT (id) DO NOTHING`,
		res.ID, candidateID, res.Symbol, res.BuyMarket, res.SellMarket, res.Success,
		res.AmountUSD, res.CryptoAmount, res.ActualBuyPrice, res.ActualSellPrice,
		res.FeesUSD, res.NetProfitUSD, res.NetProfitPct, res.Latency.Milliseconds(),
		res.Error, res.ExecutedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert trade %s: %w", res.ID, err)
	}
	return nil
}

// ListRecent returns the newest trades, most recent first.
func (s *TradeStore) ListRecent(ctx context.Context, limit int) ([]domain.ExecutionResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeCols+` FROM trades ORDER BY executed_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent trades: %w", err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// ListBefore returns trades executed strictly before the cutoff, oldest
// first, for archiving.
func (s *TradeStore) ListBefore(ctx context.Context, before time.Time) ([]domain.ExecutionResult, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+tradeCols+` FROM trades WHERE executed_at < $1 ORDER BY executed_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list trades before: %w", err)
	}
	defer rows.Close()
	return scanTradeRows(rows)
}

// DeleteBefore removes trades older than the cutoff and reports the count.
func (s *TradeStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM trades WHERE executed_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete trades before: %w", err)
	}
	return tag.RowsAffected(), nil
}

// SumNetProfit totals net profit across trades executed at or after since.
func (s *TradeStore) SumNetProfit(ctx context.Context, since time.Time) (float64, error) {
	var sum float64
	err := s.pool.QueryRow(ctx,
		`SELECT COALESCE(SUM(net_profit_usd), 0) FROM trades WHERE executed_at >= $1`, since,
	).Scan(&sum)
	if err != nil {
		return 0, fmt.Errorf("postgres: sum net profit: %w", err)
	}
	return sum, nil
}

func scanTradeRows(rows pgx.Rows) ([]domain.ExecutionResult, error) {
	var results []domain.ExecutionResult
	for rows.Next() {
		var r domain.ExecutionResult
		var candidateID *string
		var latencyMS int64
		if err := rows.Scan(
			&r.ID, &candidateID, &r.Symbol, &r.BuyMarket, &r.SellMarket, &r.Success,
			&r.AmountUSD, &r.CryptoAmount, &r.ActualBuyPrice, &r.ActualSellPrice,
			&r.FeesUSD, &r.NetProfitUSD, &r.NetProfitPct, &latencyMS,
			&r.Error, &r.ExecutedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan trade: %w", err)
		}
		if candidateID != nil {
			r.CandidateID = *candidateID
		}
		r.Latency = time.Duration(latencyMS) * time.Millisecond
		results = append(results, r)
	}
	return results, rows.Err()
}

var _ domain.TradeStore = (*TradeStore)(nil)
