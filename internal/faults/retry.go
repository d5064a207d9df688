package faults

import (
	"context"
	"time"
)

// Setting bounds one kind's retry loop.
type Setting struct {
	MaxAttempts int
	BaseDelay   time.Duration
}

// Policy is a pure function from (kind, attempt) to (wait, continue). It
// holds no mutable state; callers own the loop.
type Policy struct {
	settings map[Kind]Setting
	fallback Setting
}

// NewPolicy builds a Policy from per-kind settings; kinds without an entry
// use the fallback.
func NewPolicy(settings map[Kind]Setting, fallback Setting) Policy {
	return Policy{settings: settings, fallback: fallback}
}

// DefaultPolicy returns the stock per-kind retry budgets.
func DefaultPolicy() Policy {
	return NewPolicy(map[Kind]Setting{
		Network:       {MaxAttempts: 3, BaseDelay: 2 * time.Second},
		RateLimit:     {MaxAttempts: 5, BaseDelay: 10 * time.Second},
		ExchangeError: {MaxAttempts: 3, BaseDelay: 2 * time.Second},
		DatabaseError: {MaxAttempts: 3, BaseDelay: time.Second},
		Timeout:       {MaxAttempts: 2, BaseDelay: 5 * time.Second},
		Unknown:       {MaxAttempts: 2, BaseDelay: time.Second},
	}, Setting{MaxAttempts: 3, BaseDelay: time.Second})
}

// MaxAttempts returns how many attempts the kind is allowed in total.
func (p Policy) MaxAttempts(kind Kind) int {
	if s, ok := p.settings[kind]; ok {
		return s.MaxAttempts
	}
	return p.fallback.MaxAttempts
}

// Backoff returns the delay before retrying after the failed zero-based
// attempt, and whether another attempt is allowed at all. The delay doubles
// per attempt from the kind's base delay.
func (p Policy) Backoff(kind Kind, attempt int) (time.Duration, bool) {
	s, ok := p.settings[kind]
	if !ok {
		s = p.fallback
	}
	if attempt >= s.MaxAttempts-1 {
		return 0, false
	}
	return s.BaseDelay << attempt, true
}

// Retrier drives an operation through classification and the retry policy.
type Retrier struct {
	classifier *Classifier
	policy     Policy
}

// NewRetrier creates a Retrier.
func NewRetrier(classifier *Classifier, policy Policy) *Retrier {
	return &Retrier{classifier: classifier, policy: policy}
}

// Do runs op, classifying each failure and retrying per the policy. It
// returns nil on success, or a *Fault carrying the last failure once
// attempts are exhausted or the action forbids retrying. Skip and stop
// actions return immediately; the caller dispatches on Fault.Action.
func (r *Retrier) Do(ctx context.Context, op func(context.Context) error) error {
	for attempt := 0; ; attempt++ {
		err := op(ctx)
		if err == nil {
			return nil
		}

		fault := r.classifier.Handle(err)
		if fault.Action != ActionRetry && fault.Action != ActionRetryBackoff {
			return fault
		}

		delay, ok := r.policy.Backoff(fault.Kind, attempt)
		if !ok {
			return fault
		}

		r.classifier.CountRetry()
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return &Fault{Kind: fault.Kind, Action: ActionSkip, Err: ctx.Err()}
		case <-timer.C:
		}
	}
}
