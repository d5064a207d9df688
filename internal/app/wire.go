package app

import (
	"context"
	"fmt"
	"log/slog"

	s3blob "github.com/alanyoungcy/arbot/internal/blob/s3"
	"github.com/alanyoungcy/arbot/internal/cache/redis"
	"github.com/alanyoungcy/arbot/internal/config"
	"github.com/alanyoungcy/arbot/internal/domain"
	"github.com/alanyoungcy/arbot/internal/notify"
	"github.com/alanyoungcy/arbot/internal/platform/binance"
	"github.com/alanyoungcy/arbot/internal/platform/sim"
	"github.com/alanyoungcy/arbot/internal/store/postgres"
)

// Dependencies bundles every concrete dependency the operating modes need.
// It is constructed by Wire and torn down by the returned cleanup function.
type Dependencies struct {
	// Stores
	Opportunities domain.OpportunityStore
	Trades        domain.TradeStore
	DailyPerf     domain.DailyPerformanceStore

	// Caches (nil when redis is disabled)
	QuoteCache domain.QuoteCache
	BookCache  domain.BookCache

	// Blob storage (archive mode only)
	BlobWriter domain.BlobWriter
	BlobReader domain.BlobReader
	Archiver   domain.Archiver

	// Market data
	Provider domain.QuoteProvider
	// Feed is non-nil when the provider is the live binance stream; the
	// mode must run it alongside the pipeline.
	Feed *binance.Feed

	Notifier *notify.Notifier
}

// needsS3 returns true for modes that require object storage.
func needsS3(mode string) bool {
	return mode == "archive"
}

// needsProvider returns true for modes that consume live market data.
func needsProvider(mode string) bool {
	return mode == "trade" || mode == "monitor"
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that
// should be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Dependencies, func(), error) {
	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- PostgreSQL ---
	pgClient, err := postgres.New(ctx, cfg.PostgresClientConfig())
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: postgres: %w", err)
	}
	closers = append(closers, pgClient.Close)

	if cfg.Postgres.RunMigrations {
		if err := pgClient.RunMigrations(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
		}
	}

	pool := pgClient.Pool()
	deps.Opportunities = postgres.NewOpportunityStore(pool)
	deps.Trades = postgres.NewTradeStore(pool)
	deps.DailyPerf = postgres.NewDailyPerformanceStore(pool)

	// --- Redis (optional) ---
	if cfg.Redis.Enabled {
		redisClient, err := redis.New(ctx, cfg.RedisClientConfig())
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: redis: %w", err)
		}
		closers = append(closers, func() { _ = redisClient.Close() })

		deps.QuoteCache = redis.NewQuoteCache(redisClient, cfg.Trading.QuoteTTL.Duration)
		deps.BookCache = redis.NewBookCache(redisClient, cfg.Trading.BookTTL.Duration)
	}

	// --- S3 blob storage ---
	if needsS3(cfg.Mode) {
		s3Client, err := s3blob.New(ctx, cfg.S3ClientConfig())
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client, logger)
		deps.BlobReader = s3blob.NewReader(s3Client, logger)
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter,
			postgres.NewOpportunityStore(pool),
			postgres.NewTradeStore(pool),
			logger)
	}

	// --- Market data provider ---
	if needsProvider(cfg.Mode) {
		switch cfg.Trading.Provider {
		case "binance":
			feed, err := binance.NewFeed(cfg.Trading.BinanceStreamURL, cfg.Trading.Symbols, logger)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: binance feed: %w", err)
			}
			closers = append(closers, feed.Close)
			deps.Provider = feed
			deps.Feed = feed
		default:
			provider, err := sim.NewProvider(cfg.Trading.Markets, cfg.Trading.BasePrices, cfg.Trading.SimSeed, logger)
			if err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: sim provider: %w", err)
			}
			deps.Provider = provider
		}
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegram(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscord(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.New(senders, cfg.NotifyEvents(), logger)

	return deps, cleanup, nil
}
