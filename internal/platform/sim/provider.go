// Package sim generates synthetic market data so the detection and execution
// pipeline can run end-to-end without live exchange connectivity. Each
// market/symbol pair follows an independent bounded random walk; independent
// walks drift apart, which is what produces cross-market spreads.
package sim

import (
	"context"
	"fmt"
	"log/slog"
	"math/rand"
	"sync"
	"time"

	"github.com/alanyoungcy/arbot/internal/domain"
)

const (
	// stepVolatilityPct is the stddev of one random-walk step.
	stepVolatilityPct = 0.05

	// maxDriftPct bounds how far any market can wander from the base price.
	maxDriftPct = 2.0

	// spreadPct is the bid/ask spread each simulated venue quotes.
	spreadPct = 0.05

	// bookLevels is how many levels each generated book side carries.
	bookLevels = 20

	// levelStepPct is the price distance between adjacent book levels.
	levelStepPct = 0.02
)

// Provider implements the quote provider interface with generated data.
type Provider struct {
	markets []string
	base    map[string]float64 // base mid price per symbol

	mu   sync.Mutex
	mids map[string]float64 // current mid per market:symbol
	rng  *rand.Rand

	nowFn  func() time.Time
	logger *slog.Logger
}

var _ domain.QuoteProvider = (*Provider)(nil)

// NewProvider creates a simulator quoting the given markets. basePrices maps
// each supported symbol to its starting mid price.
func NewProvider(markets []string, basePrices map[string]float64, seed int64, logger *slog.Logger) (*Provider, error) {
	if len(markets) == 0 {
		return nil, fmt.Errorf("sim: at least one market is required")
	}
	if len(basePrices) == 0 {
		return nil, fmt.Errorf("sim: at least one base price is required")
	}

	marketSet := make(map[string]struct{}, len(markets))
	for _, m := range markets {
		marketSet[m] = struct{}{}
	}
	if len(marketSet) != len(markets) {
		return nil, fmt.Errorf("sim: duplicate market names")
	}

	return &Provider{
		markets: markets,
		base:    basePrices,
		mids:    make(map[string]float64),
		rng:     rand.New(rand.NewSource(seed)),
		nowFn:   time.Now,
		logger:  logger.With(slog.String("component", "sim_provider")),
	}, nil
}

// FetchQuote advances the walk for market/symbol one step and returns the
// resulting top-of-book quote.
func (p *Provider) FetchQuote(_ context.Context, market, symbol string) (domain.Quote, error) {
	if !p.hasMarket(market) {
		return domain.Quote{}, fmt.Errorf("sim: unknown market %q: %w", market, domain.ErrNotFound)
	}
	base, ok := p.base[symbol]
	if !ok {
		return domain.Quote{}, fmt.Errorf("sim: unknown symbol %q: %w", symbol, domain.ErrNotFound)
	}

	p.mu.Lock()
	mid := p.step(market, symbol, base)
	volume := 100 + p.rng.Float64()*900
	p.mu.Unlock()

	half := mid * spreadPct / 200
	return domain.Quote{
		Market:    market,
		Symbol:    symbol,
		Bid:       mid - half,
		Ask:       mid + half,
		Last:      mid,
		Volume:    volume,
		Timestamp: p.nowFn(),
	}, nil
}

// FetchBook builds a synthetic book around the current mid, best price first,
// with randomised per-level volume.
func (p *Provider) FetchBook(_ context.Context, market, symbol string, depth int) (domain.OrderBookSnapshot, error) {
	if !p.hasMarket(market) {
		return domain.OrderBookSnapshot{}, fmt.Errorf("sim: unknown market %q: %w", market, domain.ErrNotFound)
	}
	base, ok := p.base[symbol]
	if !ok {
		return domain.OrderBookSnapshot{}, fmt.Errorf("sim: unknown symbol %q: %w", symbol, domain.ErrNotFound)
	}
	if depth <= 0 || depth > bookLevels {
		depth = bookLevels
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	mid, ok := p.mids[p.key(market, symbol)]
	if !ok {
		mid = p.step(market, symbol, base)
	}
	half := mid * spreadPct / 200

	bids := make([]domain.PriceLevel, 0, depth)
	asks := make([]domain.PriceLevel, 0, depth)
	for i := 0; i < depth; i++ {
		offset := mid * levelStepPct / 100 * float64(i)
		// Volume sized so each level carries roughly $10k-60k of notional.
		bids = append(bids, domain.PriceLevel{
			Price:  mid - half - offset,
			Volume: (10000 + p.rng.Float64()*50000) / mid,
		})
		asks = append(asks, domain.PriceLevel{
			Price:  mid + half + offset,
			Volume: (10000 + p.rng.Float64()*50000) / mid,
		})
	}

	return domain.OrderBookSnapshot{
		Market:    market,
		Symbol:    symbol,
		Bids:      bids,
		Asks:      asks,
		Timestamp: p.nowFn(),
	}, nil
}

// step advances the random walk for one market/symbol and returns the new
// mid. Caller must hold p.mu.
func (p *Provider) step(market, symbol string, base float64) float64 {
	key := p.key(market, symbol)
	mid, ok := p.mids[key]
	if !ok {
		// Seed each market at a slightly different level so spreads
		// exist from the first cycle.
		mid = base * (1 + (p.rng.Float64()-0.5)*maxDriftPct/100)
	}

	mid *= 1 + p.rng.NormFloat64()*stepVolatilityPct/100

	// Clamp the drift from base.
	lo := base * (1 - maxDriftPct/100)
	hi := base * (1 + maxDriftPct/100)
	if mid < lo {
		mid = lo
	} else if mid > hi {
		mid = hi
	}

	p.mids[key] = mid
	return mid
}

func (p *Provider) hasMarket(market string) bool {
	for _, m := range p.markets {
		if m == market {
			return true
		}
	}
	return false
}

func (p *Provider) key(market, symbol string) string {
	return market + ":" + symbol
}
