// Package collector fans quote and orderbook fetches out across markets and
// turns the results into scored-ready arbitrage candidates.
package collector

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/alanyoungcy/arbot/internal/domain"
	"github.com/alanyoungcy/arbot/internal/fees"
	"github.com/alanyoungcy/arbot/internal/liquidity"
)

// Config bounds one collector instance.
type Config struct {
	// Markets to poll each cycle.
	Markets []string
	// BookDepth is how many levels to request per side. Zero disables
	// orderbook fetches and liquidity validation.
	BookDepth int
	// MinNetProfitPct separates plain spreads from opportunities.
	MinNetProfitPct float64
	// MaxConcurrent caps in-flight provider calls. Zero means one per market.
	MaxConcurrent int
}

// Stats counts collector activity since construction.
type Stats struct {
	Collections           int
	SuccessfulCollections int
	FailedCollections     int
	FetchErrors           int
	OpportunitiesDetected int
}

// Result is one symbol's collection pass.
type Result struct {
	Symbol        string
	Quotes        map[string]domain.Quote
	Books         map[string]domain.OrderBookSnapshot
	Candidates    []domain.Candidate
	Opportunities []domain.Candidate
}

// Collector polls a quote provider across markets and builds candidates out
// of every profitable market pair.
type Collector struct {
	provider domain.QuoteProvider
	fees     *fees.Calculator
	engine   *liquidity.Engine
	quotes   domain.QuoteCache
	books    domain.BookCache
	cfg      Config
	logger   *slog.Logger
	nowFn    func() time.Time

	mu    sync.Mutex
	stats Stats
}

// New creates a Collector. The quote and book caches may be nil; cache
// writes are best effort either way.
func New(
	provider domain.QuoteProvider,
	feeCalc *fees.Calculator,
	engine *liquidity.Engine,
	quotes domain.QuoteCache,
	books domain.BookCache,
	cfg Config,
	logger *slog.Logger,
) (*Collector, error) {
	if provider == nil {
		return nil, fmt.Errorf("collector: nil provider")
	}
	if len(cfg.Markets) < 2 {
		return nil, fmt.Errorf("collector: need at least two markets, got %d", len(cfg.Markets))
	}
	if cfg.MaxConcurrent <= 0 {
		cfg.MaxConcurrent = len(cfg.Markets)
	}
	return &Collector{
		provider: provider,
		fees:     feeCalc,
		engine:   engine,
		quotes:   quotes,
		books:    books,
		cfg:      cfg,
		logger:   logger.With(slog.String("component", "collector")),
		nowFn:    time.Now,
	}, nil
}

// CollectQuotes fetches the symbol's ticker from every configured market in
// parallel. A market that fails is logged and left out; the map only carries
// what succeeded.
func (c *Collector) CollectQuotes(ctx context.Context, symbol string) map[string]domain.Quote {
	var mu sync.Mutex
	quotes := make(map[string]domain.Quote, len(c.cfg.Markets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrent)

	for _, market := range c.cfg.Markets {
		market := market
		g.Go(func() error {
			q, err := c.provider.FetchQuote(gctx, market, symbol)
			if err != nil {
				c.countFetchError()
				c.logger.Warn("quote fetch failed",
					slog.String("market", market),
					slog.String("symbol", symbol),
					slog.String("error", err.Error()))
				return nil
			}
			mu.Lock()
			quotes[market] = q
			mu.Unlock()

			if c.quotes != nil {
				if err := c.quotes.SetQuote(gctx, q); err != nil {
					c.logger.Warn("quote cache write failed",
						slog.String("market", market),
						slog.String("error", err.Error()))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return quotes
}

// CollectBooks fetches orderbook snapshots for the markets that produced a
// quote. Depth zero skips the fetch entirely.
func (c *Collector) CollectBooks(ctx context.Context, symbol string, markets []string) map[string]domain.OrderBookSnapshot {
	if c.cfg.BookDepth <= 0 {
		return nil
	}

	var mu sync.Mutex
	books := make(map[string]domain.OrderBookSnapshot, len(markets))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.cfg.MaxConcurrent)

	for _, market := range markets {
		market := market
		g.Go(func() error {
			book, err := c.provider.FetchBook(gctx, market, symbol, c.cfg.BookDepth)
			if err != nil {
				c.countFetchError()
				c.logger.Warn("book fetch failed",
					slog.String("market", market),
					slog.String("symbol", symbol),
					slog.String("error", err.Error()))
				return nil
			}
			mu.Lock()
			books[market] = book
			mu.Unlock()

			if c.books != nil {
				if err := c.books.SetSnapshot(gctx, book); err != nil {
					c.logger.Warn("book cache write failed",
						slog.String("market", market),
						slog.String("error", err.Error()))
				}
			}
			return nil
		})
	}
	_ = g.Wait()

	return books
}

// Collect runs one full pass for the symbol: quotes, books, then pairwise
// candidates. It returns an error only when no market produced a quote.
func (c *Collector) Collect(ctx context.Context, symbol string, amountUSD float64) (Result, error) {
	res := Result{Symbol: symbol}

	res.Quotes = c.CollectQuotes(ctx, symbol)

	c.mu.Lock()
	c.stats.Collections++
	if len(res.Quotes) == 0 {
		c.stats.FailedCollections++
	} else {
		c.stats.SuccessfulCollections++
	}
	c.mu.Unlock()

	if len(res.Quotes) == 0 {
		return res, fmt.Errorf("collector: no quotes for %s: %w", symbol, domain.ErrMarketDown)
	}

	markets := make([]string, 0, len(res.Quotes))
	for market := range res.Quotes {
		markets = append(markets, market)
	}
	sort.Strings(markets)

	res.Books = c.CollectBooks(ctx, symbol, markets)
	res.Candidates = c.buildCandidates(symbol, markets, res.Quotes, res.Books, amountUSD)

	for _, cand := range res.Candidates {
		if cand.NetProfitPct > c.cfg.MinNetProfitPct {
			res.Opportunities = append(res.Opportunities, cand)
		}
	}

	if n := len(res.Opportunities); n > 0 {
		c.mu.Lock()
		c.stats.OpportunitiesDetected += n
		c.mu.Unlock()
		c.logger.Info("opportunities detected",
			slog.String("symbol", symbol),
			slog.Int("count", n))
	}

	return res, nil
}

// buildCandidates compares every ordered market pair: buy at one market's
// ask, sell at the other's bid. Pairs with a non-positive gross spread are
// not candidates.
func (c *Collector) buildCandidates(
	symbol string,
	markets []string,
	quotes map[string]domain.Quote,
	books map[string]domain.OrderBookSnapshot,
	amountUSD float64,
) []domain.Candidate {
	var candidates []domain.Candidate

	for _, buyMarket := range markets {
		for _, sellMarket := range markets {
			if buyMarket == sellMarket {
				continue
			}

			buyQuote := quotes[buyMarket]
			sellQuote := quotes[sellMarket]

			buyPrice := buyQuote.Ask
			if buyPrice <= 0 {
				buyPrice = buyQuote.Last
			}
			sellPrice := sellQuote.Bid
			if sellPrice <= 0 {
				sellPrice = sellQuote.Last
			}
			if buyPrice <= 0 || sellPrice <= 0 || sellPrice <= buyPrice {
				continue
			}

			cand := c.buildCandidate(symbol, buyMarket, sellMarket, buyPrice, sellPrice, amountUSD)

			if buyBook, ok := books[buyMarket]; ok {
				if sellBook, ok := books[sellMarket]; ok {
					c.attachLiquidity(&cand, buyBook, sellBook, amountUSD)
				}
			}

			candidates = append(candidates, cand)
		}
	}

	return candidates
}

func (c *Collector) buildCandidate(symbol, buyMarket, sellMarket string, buyPrice, sellPrice, amountUSD float64) domain.Candidate {
	cand := domain.Candidate{
		ID:             uuid.NewString(),
		Symbol:         symbol,
		BuyMarket:      buyMarket,
		SellMarket:     sellMarket,
		BuyPrice:       buyPrice,
		SellPrice:      sellPrice,
		TradeAmountUSD: amountUSD,
		GrossSpreadPct: (sellPrice - buyPrice) / buyPrice * 100,
		DetectedAt:     c.nowFn(),
	}

	profit := c.fees.ArbitrageProfit(buyMarket, sellMarket, buyPrice, sellPrice, amountUSD, fees.Taker, fees.Taker)
	cand.FeesPct = profit.TotalFeesPct
	cand.NetProfitPct = profit.NetProfitPct
	cand.NetProfitUSD = profit.NetProfitUSD

	return cand
}

// attachLiquidity runs the orderbook validation for both legs and records
// the outcome on the candidate.
func (c *Collector) attachLiquidity(cand *domain.Candidate, buyBook, sellBook domain.OrderBookSnapshot, amountUSD float64) {
	eval := c.engine.ValidateArbitrage(buyBook, sellBook, amountUSD)

	cand.LiquidityChecked = true
	cand.LiquidityValid = eval.Valid

	if eval.Valid {
		cand.TotalSlippagePct = eval.TotalSlippagePct
		cand.FilledPct = min(eval.Buy.FilledPct, eval.Sell.FilledPct)
	} else {
		cand.TotalSlippagePct = eval.Buy.SlippagePct + eval.Sell.SlippagePct
		cand.FilledPct = min(eval.Buy.FilledPct, eval.Sell.FilledPct)
		c.logger.Debug("liquidity validation failed",
			slog.String("symbol", cand.Symbol),
			slog.String("buy_market", cand.BuyMarket),
			slog.String("sell_market", cand.SellMarket),
			slog.String("reason", eval.Reason))
	}

	buyDepth := liquidity.Depth(buyBook, c.cfg.BookDepth)
	sellDepth := liquidity.Depth(sellBook, c.cfg.BookDepth)
	if amountUSD > 0 {
		cand.VolumeRatio = min(buyDepth.AskValueUSD, sellDepth.BidValueUSD) / amountUSD
	}
}

func (c *Collector) countFetchError() {
	c.mu.Lock()
	c.stats.FetchErrors++
	c.mu.Unlock()
}

// Stats returns a snapshot of the collector counters.
func (c *Collector) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}
