package risk

import (
	"fmt"
	"log/slog"
	"time"
)

// BreakerConfig holds the circuit breaker trip thresholds.
type BreakerConfig struct {
	MaxLossInWindow float64
	LossWindow      time.Duration

	MaxConsecutiveErrors int
	MaxErrorsInWindow    int
	ErrorWindow          time.Duration

	MaxMarketDowntime time.Duration

	// MinBalanceThresholdPct trips when the balance falls below this
	// percentage of the first-observed balance.
	MinBalanceThresholdPct float64

	AutoReset time.Duration
}

// DefaultBreakerConfig returns the stock thresholds.
func DefaultBreakerConfig() BreakerConfig {
	return BreakerConfig{
		MaxLossInWindow:        100.0,
		LossWindow:             15 * time.Minute,
		MaxConsecutiveErrors:   5,
		MaxErrorsInWindow:      20,
		ErrorWindow:            time.Hour,
		MaxMarketDowntime:      5 * time.Minute,
		MinBalanceThresholdPct: 50,
		AutoReset:              time.Hour,
	}
}

// BreakerStatus is a point-in-time view of the breaker.
type BreakerStatus struct {
	Open       bool
	TripReason string
	TripTime   time.Time

	RecentLossUSD     float64
	ConsecutiveErrors int
	ErrorsInWindow    int

	InitialBalanceUSD float64
	CurrentBalanceUSD float64
	BalancePct        float64
}

// Signals carries one evaluation's worth of danger inputs into Observe.
// Zero values mean "nothing to report" for the respective condition.
type Signals struct {
	LossUSD       float64 // positive loss amount
	ErrorOccurred bool
	ErrorKind     string
	MarketDown    string  // market reported unavailable this check
	MarketUp      string  // market confirmed healthy this check
	BalanceUSD    float64 // current balance, 0 if unknown
}

type stamped struct {
	at   time.Time
	loss float64
}

// Breaker is the CLOSED/OPEN safety state machine that halts all trading on
// danger signals. Single-writer: only the orchestrator's control goroutine
// may call its methods.
type Breaker struct {
	cfg    BreakerConfig
	logger *slog.Logger
	nowFn  func() time.Time

	tripped    bool
	tripReason string
	tripTime   time.Time

	losses []stamped
	errors []time.Time

	consecutiveErrors int
	downSince         map[string]time.Time

	initialBalance float64
	currentBalance float64
}

// NewBreaker creates a closed Breaker.
func NewBreaker(cfg BreakerConfig, logger *slog.Logger) *Breaker {
	return &Breaker{
		cfg:       cfg,
		logger:    logger.With(slog.String("component", "breaker")),
		nowFn:     time.Now,
		downSince: make(map[string]time.Time),
	}
}

// IsOpen reports whether trading is halted. An open breaker lazily closes
// once the auto-reset cooldown has elapsed since the trip.
func (b *Breaker) IsOpen() bool {
	if b.tripped && b.cfg.AutoReset > 0 && b.nowFn().Sub(b.tripTime) >= b.cfg.AutoReset {
		b.close("auto-reset after cooldown")
	}
	return b.tripped
}

// Observe feeds one evaluation's signals through every trip condition and
// returns true if the breaker is (now) open. An error-free observation
// resets only the consecutive-error counter; loss-window and balance
// conditions are independent of success.
func (b *Breaker) Observe(sig Signals) bool {
	if b.tripped {
		return true
	}

	now := b.nowFn()

	if sig.LossUSD > 0 {
		b.losses = append(b.losses, stamped{at: now, loss: sig.LossUSD})
		b.pruneLosses(now)

		var total float64
		for _, l := range b.losses {
			total += l.loss
		}
		if total >= b.cfg.MaxLossInWindow {
			b.trip("lost $%.2f within %s (max $%.2f)", total, b.cfg.LossWindow, b.cfg.MaxLossInWindow)
			return true
		}
	}

	if sig.ErrorOccurred {
		b.errors = append(b.errors, now)
		b.consecutiveErrors++

		if b.consecutiveErrors >= b.cfg.MaxConsecutiveErrors {
			b.trip("%d consecutive errors (max %d)", b.consecutiveErrors, b.cfg.MaxConsecutiveErrors)
			return true
		}

		b.pruneErrors(now)
		if len(b.errors) >= b.cfg.MaxErrorsInWindow {
			b.trip("%d errors within %s (max %d)", len(b.errors), b.cfg.ErrorWindow, b.cfg.MaxErrorsInWindow)
			return true
		}
	} else {
		b.consecutiveErrors = 0
	}

	if sig.MarketUp != "" {
		delete(b.downSince, sig.MarketUp)
	}
	if sig.MarketDown != "" {
		since, known := b.downSince[sig.MarketDown]
		if !known {
			b.downSince[sig.MarketDown] = now
		} else if down := now.Sub(since); down >= b.cfg.MaxMarketDowntime {
			b.trip("market %s down for %s (max %s)", sig.MarketDown, down.Round(time.Second), b.cfg.MaxMarketDowntime)
			return true
		}
	}

	if sig.BalanceUSD > 0 {
		b.currentBalance = sig.BalanceUSD
		if b.initialBalance == 0 {
			b.initialBalance = sig.BalanceUSD
		} else {
			pct := sig.BalanceUSD / b.initialBalance * 100
			if pct < b.cfg.MinBalanceThresholdPct {
				b.trip("balance at %.1f%% of initial capital (min %.0f%%)", pct, b.cfg.MinBalanceThresholdPct)
				return true
			}
		}
	}

	return false
}

// Reset closes the breaker manually.
func (b *Breaker) Reset() {
	if !b.tripped {
		b.logger.Warn("reset requested but breaker already closed")
		return
	}
	b.close("manual reset")
}

// Status returns the breaker's current state and rolling metrics.
func (b *Breaker) Status() BreakerStatus {
	now := b.nowFn()
	b.pruneLosses(now)
	b.pruneErrors(now)

	var recentLoss float64
	for _, l := range b.losses {
		recentLoss += l.loss
	}

	st := BreakerStatus{
		Open:              b.tripped,
		TripReason:        b.tripReason,
		TripTime:          b.tripTime,
		RecentLossUSD:     recentLoss,
		ConsecutiveErrors: b.consecutiveErrors,
		ErrorsInWindow:    len(b.errors),
		InitialBalanceUSD: b.initialBalance,
		CurrentBalanceUSD: b.currentBalance,
	}
	if b.initialBalance > 0 {
		st.BalancePct = b.currentBalance / b.initialBalance * 100
	}
	return st
}

// TripReason returns the reason for the current trip, empty when closed.
func (b *Breaker) TripReason() string { return b.tripReason }

func (b *Breaker) trip(format string, args ...any) {
	b.tripped = true
	b.tripReason = fmt.Sprintf(format, args...)
	b.tripTime = b.nowFn()
	b.logger.Error("circuit breaker tripped", slog.String("reason", b.tripReason))
}

func (b *Breaker) close(why string) {
	b.logger.Info("circuit breaker closed",
		slog.String("previous_reason", b.tripReason),
		slog.String("reset_reason", why))
	b.tripped = false
	b.tripReason = ""
	b.tripTime = time.Time{}
	b.consecutiveErrors = 0
}

func (b *Breaker) pruneLosses(now time.Time) {
	cutoff := now.Add(-b.cfg.LossWindow)
	kept := b.losses[:0]
	for _, l := range b.losses {
		if !l.at.Before(cutoff) {
			kept = append(kept, l)
		}
	}
	b.losses = kept
}

func (b *Breaker) pruneErrors(now time.Time) {
	cutoff := now.Add(-b.cfg.ErrorWindow)
	kept := b.errors[:0]
	for _, t := range b.errors {
		if !t.Before(cutoff) {
			kept = append(kept, t)
		}
	}
	b.errors = kept
}
