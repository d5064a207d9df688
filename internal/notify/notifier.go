// Package notify fans operator alerts out to the configured channels.
// Breaker trips, critical faults, and end-of-run summaries each carry an
// event type so deployments can subscribe to a subset.
package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
)

// Event classifies a notification for filtering.
type Event string

const (
	EventBreakerTrip Event = "breaker_trip"
	EventCritical    Event = "critical"
	EventRunSummary  Event = "run_summary"
	EventTrade       Event = "trade"
)

// Sender delivers one notification over a single channel.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Notifier dispatches to every sender. An empty subscription set means all
// events are delivered.
type Notifier struct {
	senders    []Sender
	subscribed map[Event]struct{}
	logger     *slog.Logger
}

// New creates a Notifier delivering to senders, filtered to the given
// events. Pass no events to receive everything.
func New(senders []Sender, events []Event, logger *slog.Logger) *Notifier {
	subscribed := make(map[Event]struct{}, len(events))
	for _, e := range events {
		subscribed[e] = struct{}{}
	}
	return &Notifier{
		senders:    senders,
		subscribed: subscribed,
		logger:     logger.With(slog.String("component", "notifier")),
	}
}

// Notify delivers the message to every sender if the event is subscribed.
// Sender failures are joined so one dead channel never blocks the rest.
func (n *Notifier) Notify(ctx context.Context, event Event, title, message string) error {
	if len(n.subscribed) > 0 {
		if _, ok := n.subscribed[event]; !ok {
			return nil
		}
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			n.logger.Error("notification delivery failed",
				slog.String("sender", s.Name()),
				slog.String("event", string(event)),
				slog.String("error", err.Error()))
			errs = append(errs, fmt.Errorf("notify: %s: %w", s.Name(), err))
			continue
		}
		n.logger.Debug("notification sent",
			slog.String("sender", s.Name()),
			slog.String("event", string(event)))
	}
	return errors.Join(errs...)
}
