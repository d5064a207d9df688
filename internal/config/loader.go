package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies ARBOT_* environment variable overrides, and
// returns the final Config. Pass an empty path to run on defaults plus
// environment only. The returned Config has NOT been validated; the caller
// should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil {
			return nil, err
		}
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known ARBOT_* environment variables and
// overwrites the corresponding Config fields when a variable is set. This
// lets operators inject secrets at deploy time without touching the TOML
// file.
func applyEnvOverrides(cfg *Config) {
	// ── Trading ──
	setStr(&cfg.Trading.Provider, "ARBOT_TRADING_PROVIDER")
	setStringSlice(&cfg.Trading.Symbols, "ARBOT_TRADING_SYMBOLS")
	setStringSlice(&cfg.Trading.Markets, "ARBOT_TRADING_MARKETS")
	setFloat64(&cfg.Trading.TradeAmountUSD, "ARBOT_TRADING_TRADE_AMOUNT_USD")
	setFloat64(&cfg.Trading.InitialBalanceUSD, "ARBOT_TRADING_INITIAL_BALANCE_USD")
	setDuration(&cfg.Trading.Interval, "ARBOT_TRADING_INTERVAL")
	setInt(&cfg.Trading.MaxCycles, "ARBOT_TRADING_MAX_CYCLES")
	setDuration(&cfg.Trading.Duration, "ARBOT_TRADING_DURATION")
	setInt(&cfg.Trading.MaxTradesPerCycle, "ARBOT_TRADING_MAX_TRADES_PER_CYCLE")
	setFloat64(&cfg.Trading.MinNetProfitPct, "ARBOT_TRADING_MIN_NET_PROFIT_PCT")
	setInt(&cfg.Trading.BookDepth, "ARBOT_TRADING_BOOK_DEPTH")
	setInt(&cfg.Trading.MaxConcurrent, "ARBOT_TRADING_MAX_CONCURRENT")
	setInt64(&cfg.Trading.SimSeed, "ARBOT_TRADING_SIM_SEED")
	setStr(&cfg.Trading.BinanceStreamURL, "ARBOT_TRADING_BINANCE_STREAM_URL")
	setDuration(&cfg.Trading.QuoteTTL, "ARBOT_TRADING_QUOTE_TTL")
	setDuration(&cfg.Trading.BookTTL, "ARBOT_TRADING_BOOK_TTL")

	// ── Limits ──
	setFloat64(&cfg.Limits.MinTradeAmount, "ARBOT_LIMITS_MIN_TRADE_AMOUNT")
	setFloat64(&cfg.Limits.MaxTradeAmount, "ARBOT_LIMITS_MAX_TRADE_AMOUNT")
	setInt(&cfg.Limits.MaxDailyTrades, "ARBOT_LIMITS_MAX_DAILY_TRADES")
	setInt(&cfg.Limits.MaxConsecutiveLosses, "ARBOT_LIMITS_MAX_CONSECUTIVE_LOSSES")
	setFloat64(&cfg.Limits.MaxDailyLoss, "ARBOT_LIMITS_MAX_DAILY_LOSS")
	setFloat64(&cfg.Limits.MaxLossPerTrade, "ARBOT_LIMITS_MAX_LOSS_PER_TRADE")
	setFloat64(&cfg.Limits.MaxPositionSizePct, "ARBOT_LIMITS_MAX_POSITION_SIZE_PCT")
	setFloat64(&cfg.Limits.MinProfitPct, "ARBOT_LIMITS_MIN_PROFIT_PCT")
	setFloat64(&cfg.Limits.MinScore, "ARBOT_LIMITS_MIN_SCORE")
	setFloat64(&cfg.Limits.MaxSlippagePct, "ARBOT_LIMITS_MAX_SLIPPAGE_PCT")
	setFloat64(&cfg.Limits.MinBalanceUSD, "ARBOT_LIMITS_MIN_BALANCE_USD")
	setFloat64(&cfg.Limits.ReservePct, "ARBOT_LIMITS_RESERVE_PCT")

	// ── Breaker ──
	setFloat64(&cfg.Breaker.MaxLossInWindow, "ARBOT_BREAKER_MAX_LOSS_IN_WINDOW")
	setDuration(&cfg.Breaker.LossWindow, "ARBOT_BREAKER_LOSS_WINDOW")
	setInt(&cfg.Breaker.MaxConsecutiveErrors, "ARBOT_BREAKER_MAX_CONSECUTIVE_ERRORS")
	setInt(&cfg.Breaker.MaxErrorsInWindow, "ARBOT_BREAKER_MAX_ERRORS_IN_WINDOW")
	setDuration(&cfg.Breaker.ErrorWindow, "ARBOT_BREAKER_ERROR_WINDOW")
	setDuration(&cfg.Breaker.MaxMarketDowntime, "ARBOT_BREAKER_MAX_MARKET_DOWNTIME")
	setFloat64(&cfg.Breaker.MinBalanceThresholdPct, "ARBOT_BREAKER_MIN_BALANCE_THRESHOLD_PCT")
	setDuration(&cfg.Breaker.AutoReset, "ARBOT_BREAKER_AUTO_RESET")

	// ── Postgres ──
	setStr(&cfg.Postgres.DSN, "ARBOT_POSTGRES_DSN")
	setStr(&cfg.Postgres.Host, "ARBOT_POSTGRES_HOST")
	setInt(&cfg.Postgres.Port, "ARBOT_POSTGRES_PORT")
	setStr(&cfg.Postgres.Database, "ARBOT_POSTGRES_DATABASE")
	setStr(&cfg.Postgres.User, "ARBOT_POSTGRES_USER")
	setStr(&cfg.Postgres.Password, "ARBOT_POSTGRES_PASSWORD")
	setStr(&cfg.Postgres.SSLMode, "ARBOT_POSTGRES_SSL_MODE")
	setInt(&cfg.Postgres.PoolMaxConns, "ARBOT_POSTGRES_POOL_MAX_CONNS")
	setInt(&cfg.Postgres.PoolMinConns, "ARBOT_POSTGRES_POOL_MIN_CONNS")
	setBool(&cfg.Postgres.RunMigrations, "ARBOT_POSTGRES_RUN_MIGRATIONS")

	// ── Redis ──
	setBool(&cfg.Redis.Enabled, "ARBOT_REDIS_ENABLED")
	setStr(&cfg.Redis.Addr, "ARBOT_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "ARBOT_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "ARBOT_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "ARBOT_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "ARBOT_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "ARBOT_REDIS_TLS_ENABLED")

	// ── S3 ──
	setStr(&cfg.S3.Endpoint, "ARBOT_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "ARBOT_S3_REGION")
	setStr(&cfg.S3.Bucket, "ARBOT_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "ARBOT_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "ARBOT_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "ARBOT_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "ARBOT_S3_FORCE_PATH_STYLE")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "ARBOT_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "ARBOT_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "ARBOT_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "ARBOT_NOTIFY_EVENTS")

	// ── Archive ──
	setInt(&cfg.Archive.RetentionDays, "ARBOT_ARCHIVE_RETENTION_DAYS")
	setBool(&cfg.Archive.DeleteAfterUpload, "ARBOT_ARCHIVE_DELETE_AFTER_UPLOAD")

	// ── Top-level ──
	setStr(&cfg.Mode, "ARBOT_MODE")
	setStr(&cfg.LogLevel, "ARBOT_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setInt64(dst *int64, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			*dst = n
		}
	}
}

func setFloat64(dst *float64, key string) {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
