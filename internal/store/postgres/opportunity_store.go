package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// OpportunityStore implements domain.OpportunityStore on PostgreSQL.
type OpportunityStore struct {
	pool *pgxpool.Pool
}

// NewOpportunityStore creates an OpportunityStore on the pool.
func NewOpportunityStore(pool *pgxpool.Pool) *OpportunityStore {
	return &OpportunityStore{pool: pool}
}

const opportunityCols = `id, symbol, buy_market, sell_market, buy_price, sell_price,
	trade_amount_usd, gross_spread_pct, fees_pct, net_profit_pct, net_profit_usd,
	liquidity_checked, liquidity_valid, total_slippage_pct, filled_pct, volume_ratio,
	profit_score, liquidity_score, reliability_score, speed_score, total_score, grade,
	detected_at`

// Insert stores one sighting. A scored candidate carries its breakdown;
// unscored rows leave the score columns NULL.
func (s *OpportunityStore) Insert(ctx context.Context, cand domain.Candidate) error {
	var profitScore, liquidityScore, reliabilityScore, speedScore, totalScore *float64
	var grade *string
	if cand.Score != nil {
		profitScore = &cand.Score.ProfitScore
		liquidityScore = &cand.Score.LiquidityScore
		reliabilityScore = &cand.Score.ReliabilityScore
		speedScore = &cand.Score.SpeedScore
		totalScore = &cand.Score.TotalScore
		g := string(cand.Score.Grade)
		grade = &g
	}

	_, err := s.pool.Exec(ctx, `
		INSERT INTO opportunities (`+opportunityCols+`)
		VALUES ($1, $2, $3, $4, $5, $6,
			$7, $8, $9, $10, $11,
			$12, $13, $14, $15, $16,
			$17, $18, $19, $20, $21, $22,
			$23)
		ON CONFLICT (id) DO NOTHING`,
		cand.ID, cand.Symbol, cand.BuyMarket, cand.SellMarket, cand.BuyPrice, cand.SellPrice,
		cand.TradeAmountUSD, cand.GrossSpreadPct, cand.FeesPct, cand.NetProfitPct, cand.NetProfitUSD,
		cand.LiquidityChecked, cand.LiquidityValid, cand.TotalSlippagePct, cand.FilledPct, cand.VolumeRatio,
		profitScore, liquidityScore, reliabilityScore, speedScore, totalScore, grade,
		cand.DetectedAt,
	)
	if err != nil {
		return fmt.Errorf("postgres: insert opportunity %s: %w", cand.ID, err)
	}
	return nil
}

// ListRecent returns the newest sightings, most recent first.
func (s *OpportunityStore) ListRecent(ctx context.Context, limit int) ([]domain.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+opportunityCols+` FROM opportunities ORDER BY detected_at DESC LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("postgres: list recent opportunities: %w", err)
	}
	defer rows.Close()
	return scanOpportunityRows(rows)
}

// ListBefore returns sightings detected strictly before the cutoff, oldest
// first, for archiving.
func (s *OpportunityStore) ListBefore(ctx context.Context, before time.Time) ([]domain.Candidate, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT `+opportunityCols+` FROM opportunities WHERE detected_at < $1 ORDER BY detected_at ASC`, before)
	if err != nil {
		return nil, fmt.Errorf("postgres: list opportunities before: %w", err)
	}
	defer rows.Close()
	return scanOpportunityRows(rows)
}

// DeleteBefore removes sightings older than the cutoff and reports the count.
func (s *OpportunityStore) DeleteBefore(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM opportunities WHERE detected_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("postgres: delete opportunities before: %w", err)
	}
	return tag.RowsAffected(), nil
}

func scanOpportunityRows(rows pgx.Rows) ([]domain.Candidate, error) {
	var cands []domain.Candidate
	for rows.Next() {
		var c domain.Candidate
		var profitScore, liquidityScore, reliabilityScore, speedScore, totalScore *float64
		var grade *string
		if err := rows.Scan(
			&c.ID, &c.Symbol, &c.BuyMarket, &c.SellMarket, &c.BuyPrice, &c.SellPrice,
			&c.TradeAmountUSD, &c.GrossSpreadPct, &c.FeesPct, &c.NetProfitPct, &c.NetProfitUSD,
			&c.LiquidityChecked, &c.LiquidityValid, &c.TotalSlippagePct, &c.FilledPct, &c.VolumeRatio,
			&profitScore, &liquidityScore, &reliabilityScore, &speedScore, &totalScore, &grade,
			&c.DetectedAt,
		); err != nil {
			return nil, fmt.Errorf("postgres: scan opportunity: %w", err)
		}
		if totalScore != nil {
			c.Score = &domain.ScoreBreakdown{
				ProfitScore:      *profitScore,
				LiquidityScore:   *liquidityScore,
				ReliabilityScore: *reliabilityScore,
				SpeedScore:       *speedScore,
				TotalScore:       *totalScore,
			}
			if grade != nil {
				c.Score.Grade = domain.Grade(*grade)
			}
		}
		cands = append(cands, c)
	}
	return cands, rows.Err()
}

var _ domain.OpportunityStore = (*OpportunityStore)(nil)
