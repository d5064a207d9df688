// Package faults turns arbitrary failures into a bounded, policy-driven
// recovery action. Typed errors are matched first; keyword matching on the
// message is kept only as a fallback for opaque provider errors.
package faults

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"github.com/alanyoungcy/arbot/internal/domain"
)

// Kind is the failure taxonomy.
type Kind string

const (
	Network           Kind = "network"
	RateLimit         Kind = "rate_limit"
	InsufficientFunds Kind = "insufficient_funds"
	InvalidOrder      Kind = "invalid_order"
	ExchangeError     Kind = "exchange_error"
	DatabaseError     Kind = "database_error"
	ValidationError   Kind = "validation_error"
	Timeout           Kind = "timeout"
	Critical          Kind = "critical"
	Unknown           Kind = "unknown"
)

// Action is what the caller should do about a classified failure.
type Action string

const (
	ActionRetry        Action = "retry"
	ActionRetryBackoff Action = "retry_with_backoff"
	ActionSkip         Action = "skip"
	ActionStop         Action = "stop"
)

// ActionFor maps a kind to its default recovery action.
func ActionFor(kind Kind) Action {
	switch kind {
	case Network, RateLimit, ExchangeError, Timeout:
		return ActionRetryBackoff
	case DatabaseError, Unknown:
		return ActionRetry
	case InsufficientFunds, InvalidOrder, ValidationError:
		return ActionSkip
	case Critical:
		return ActionStop
	default:
		return ActionSkip
	}
}

// Classify assigns a taxonomy kind to err. Sentinel and interface matches
// run before the keyword fallback so wrapped typed errors never depend on
// their message text.
func Classify(err error) Kind {
	if err == nil {
		return Unknown
	}

	switch {
	case errors.Is(err, domain.ErrRateLimited):
		return RateLimit
	case errors.Is(err, domain.ErrInsufficientFunds):
		return InsufficientFunds
	case errors.Is(err, domain.ErrInvalidOrder):
		return InvalidOrder
	case errors.Is(err, domain.ErrMarketDown), errors.Is(err, domain.ErrWSDisconnect):
		return ExchangeError
	case errors.Is(err, domain.ErrNoLiquidity):
		return ValidationError
	case errors.Is(err, context.DeadlineExceeded):
		return Timeout
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return DatabaseError
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return Timeout
		}
		return Network
	}

	return classifyMessage(err.Error())
}

// classifyMessage is the keyword fallback, checked in a fixed order.
func classifyMessage(msg string) Kind {
	msg = strings.ToLower(msg)

	contains := func(keywords ...string) bool {
		for _, kw := range keywords {
			if strings.Contains(msg, kw) {
				return true
			}
		}
		return false
	}

	switch {
	case contains("connection", "network", "unreachable", "refused"):
		return Network
	case contains("rate limit", "too many requests", "429", "ratelimit"):
		return RateLimit
	case contains("insufficient", "not enough", "balance too low", "funds"):
		return InsufficientFunds
	case contains("invalid order", "order not found", "invalid amount", "invalid price"):
		return InvalidOrder
	case contains("exchange", "market", "symbol not found"):
		return ExchangeError
	case contains("database", "postgres", "sql"):
		return DatabaseError
	case contains("timeout", "deadline"):
		return Timeout
	case contains("validation", "invalid", "required"):
		return ValidationError
	case contains("critical", "fatal", "system"):
		return Critical
	default:
		return Unknown
	}
}

// Fault wraps an error with its classification and chosen action.
type Fault struct {
	Kind   Kind
	Action Action
	Err    error
}

func (f *Fault) Error() string {
	return fmt.Sprintf("%s (%s): %v", f.Kind, f.Action, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// Stats summarises what the classifier has seen.
type Stats struct {
	TotalErrors  int
	TotalRetries int
	ByKind       map[Kind]int
}

// Classifier counts classified failures and resolves their actions.
type Classifier struct {
	logger *slog.Logger

	totalErrors  int
	totalRetries int
	byKind       map[Kind]int
}

// NewClassifier creates a Classifier.
func NewClassifier(logger *slog.Logger) *Classifier {
	return &Classifier{
		logger: logger.With(slog.String("component", "faults")),
		byKind: make(map[Kind]int),
	}
}

// Handle classifies err, counts it, and returns the fault.
func (c *Classifier) Handle(err error) *Fault {
	kind := Classify(err)
	action := ActionFor(kind)

	c.totalErrors++
	c.byKind[kind]++

	c.logger.Error("failure classified",
		slog.String("kind", string(kind)),
		slog.String("action", string(action)),
		slog.String("error", err.Error()))

	return &Fault{Kind: kind, Action: action, Err: err}
}

// CountRetry records one retry attempt for the stats surface.
func (c *Classifier) CountRetry() { c.totalRetries++ }

// Stats returns a copy of the counters.
func (c *Classifier) Stats() Stats {
	byKind := make(map[Kind]int, len(c.byKind))
	for k, n := range c.byKind {
		byKind[k] = n
	}
	return Stats{
		TotalErrors:  c.totalErrors,
		TotalRetries: c.totalRetries,
		ByKind:       byKind,
	}
}
