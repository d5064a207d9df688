package faults

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/alanyoungcy/arbot/internal/domain"
)

type fakeNetError struct{ timeout bool }

func (e *fakeNetError) Error() string   { return "dial tcp: connect" }
func (e *fakeNetError) Timeout() bool   { return e.timeout }
func (e *fakeNetError) Temporary() bool { return true }

var _ net.Error = (*fakeNetError)(nil)

func TestClassifyTypedErrorsFirst(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{"rate limited sentinel", fmt.Errorf("provider: %w", domain.ErrRateLimited), RateLimit},
		{"insufficient funds sentinel", domain.ErrInsufficientFunds, InsufficientFunds},
		{"invalid order sentinel", domain.ErrInvalidOrder, InvalidOrder},
		{"market down sentinel", fmt.Errorf("fetch: %w", domain.ErrMarketDown), ExchangeError},
		{"websocket disconnect", domain.ErrWSDisconnect, ExchangeError},
		{"no liquidity sentinel", domain.ErrNoLiquidity, ValidationError},
		{"deadline exceeded", context.DeadlineExceeded, Timeout},
		{"net error", &fakeNetError{}, Network},
		{"net timeout", &fakeNetError{timeout: true}, Timeout},
		{"postgres error", &pgconn.PgError{Code: "57P01", Message: "terminating"}, DatabaseError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(tc.err))
		})
	}
}

func TestClassifyKeywordFallback(t *testing.T) {
	cases := []struct {
		msg  string
		want Kind
	}{
		{"Connection refused by peer", Network},
		{"network timeout while polling", Network}, // network keywords win over timeout
		{"HTTP 429 Too Many Requests", RateLimit},
		{"insufficient margin for order", InsufficientFunds},
		{"invalid order id 42", InvalidOrder},
		{"symbol not found on venue", ExchangeError},
		{"sql: transaction aborted", DatabaseError},
		{"operation deadline reached", Timeout},
		{"validation failed: amount required", ValidationError},
		{"fatal: state corrupted", Critical},
		{"something odd happened", Unknown},
	}
	for _, tc := range cases {
		t.Run(tc.msg, func(t *testing.T) {
			assert.Equal(t, tc.want, Classify(errors.New(tc.msg)))
		})
	}
}

func TestActionFor(t *testing.T) {
	assert.Equal(t, ActionRetryBackoff, ActionFor(Network))
	assert.Equal(t, ActionRetryBackoff, ActionFor(RateLimit))
	assert.Equal(t, ActionRetryBackoff, ActionFor(ExchangeError))
	assert.Equal(t, ActionRetryBackoff, ActionFor(Timeout))
	assert.Equal(t, ActionRetry, ActionFor(DatabaseError))
	assert.Equal(t, ActionRetry, ActionFor(Unknown))
	assert.Equal(t, ActionSkip, ActionFor(InsufficientFunds))
	assert.Equal(t, ActionSkip, ActionFor(InvalidOrder))
	assert.Equal(t, ActionSkip, ActionFor(ValidationError))
	assert.Equal(t, ActionStop, ActionFor(Critical))
}

func TestPolicyBackoff(t *testing.T) {
	p := DefaultPolicy()

	t.Run("delay doubles per attempt", func(t *testing.T) {
		d0, ok := p.Backoff(Network, 0)
		require.True(t, ok)
		assert.Equal(t, 2*time.Second, d0)

		d1, ok := p.Backoff(Network, 1)
		require.True(t, ok)
		assert.Equal(t, 4*time.Second, d1)
	})

	t.Run("attempts are bounded per kind", func(t *testing.T) {
		_, ok := p.Backoff(Network, 2) // third failure of three allowed attempts
		assert.False(t, ok)

		_, ok = p.Backoff(Timeout, 1)
		assert.False(t, ok)

		d, ok := p.Backoff(RateLimit, 3)
		require.True(t, ok)
		assert.Equal(t, 80*time.Second, d)
	})

	t.Run("unlisted kinds use the fallback budget", func(t *testing.T) {
		d, ok := p.Backoff(Critical, 0)
		require.True(t, ok)
		assert.Equal(t, time.Second, d)
		assert.Equal(t, 3, p.MaxAttempts(Critical))
	})
}

func TestClassifierStats(t *testing.T) {
	c := NewClassifier(slog.New(slog.NewTextHandler(io.Discard, nil)))

	c.Handle(errors.New("connection refused"))
	c.Handle(errors.New("connection refused"))
	c.Handle(domain.ErrInvalidOrder)
	c.CountRetry()

	stats := c.Stats()
	assert.Equal(t, 3, stats.TotalErrors)
	assert.Equal(t, 1, stats.TotalRetries)
	assert.Equal(t, 2, stats.ByKind[Network])
	assert.Equal(t, 1, stats.ByKind[InvalidOrder])
}

func TestRetrierDo(t *testing.T) {
	fastPolicy := NewPolicy(map[Kind]Setting{
		Network: {MaxAttempts: 3, BaseDelay: time.Millisecond},
	}, Setting{MaxAttempts: 2, BaseDelay: time.Millisecond})

	t.Run("succeeds after transient failures", func(t *testing.T) {
		r := NewRetrier(NewClassifier(slog.New(slog.NewTextHandler(io.Discard, nil))), fastPolicy)
		calls := 0
		err := r.Do(context.Background(), func(context.Context) error {
			calls++
			if calls < 3 {
				return errors.New("connection refused")
			}
			return nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
	})

	t.Run("exhausted attempts return the last fault", func(t *testing.T) {
		r := NewRetrier(NewClassifier(slog.New(slog.NewTextHandler(io.Discard, nil))), fastPolicy)
		calls := 0
		err := r.Do(context.Background(), func(context.Context) error {
			calls++
			return errors.New("connection refused")
		})
		var fault *Fault
		require.ErrorAs(t, err, &fault)
		assert.Equal(t, Network, fault.Kind)
		assert.Equal(t, 3, calls)
	})

	t.Run("skip actions never retry", func(t *testing.T) {
		r := NewRetrier(NewClassifier(slog.New(slog.NewTextHandler(io.Discard, nil))), fastPolicy)
		calls := 0
		err := r.Do(context.Background(), func(context.Context) error {
			calls++
			return domain.ErrInvalidOrder
		})
		var fault *Fault
		require.ErrorAs(t, err, &fault)
		assert.Equal(t, ActionSkip, fault.Action)
		assert.Equal(t, 1, calls)
	})

	t.Run("stop actions surface immediately", func(t *testing.T) {
		r := NewRetrier(NewClassifier(slog.New(slog.NewTextHandler(io.Discard, nil))), fastPolicy)
		err := r.Do(context.Background(), func(context.Context) error {
			return errors.New("fatal: api keys revoked")
		})
		var fault *Fault
		require.ErrorAs(t, err, &fault)
		assert.Equal(t, ActionStop, fault.Action)
	})

	t.Run("cancellation interrupts the backoff wait", func(t *testing.T) {
		slow := NewPolicy(map[Kind]Setting{
			Network: {MaxAttempts: 3, BaseDelay: time.Minute},
		}, Setting{MaxAttempts: 2, BaseDelay: time.Minute})
		r := NewRetrier(NewClassifier(slog.New(slog.NewTextHandler(io.Discard, nil))), slow)
		ctx, cancel := context.WithCancel(context.Background())

		done := make(chan error, 1)
		go func() {
			done <- r.Do(ctx, func(context.Context) error {
				return errors.New("connection refused")
			})
		}()
		cancel()

		select {
		case err := <-done:
			var fault *Fault
			require.ErrorAs(t, err, &fault)
			assert.ErrorIs(t, fault.Err, context.Canceled)
		case <-time.After(5 * time.Second):
			t.Fatal("retrier did not observe cancellation")
		}
	})
}
