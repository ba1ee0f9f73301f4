// Package dispatch routes domain events to the subscribers registered for
// their concrete variant. Delivery is a synchronous, sequential fan-out, so a
// caller publishing a portfolio's events in log order preserves that order
// for every subscriber; events of different portfolios have no ordering
// relationship.
package dispatch

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/foliotrack/foliotrack-backend/internal/domain"
)

// Handler processes one event. Handlers must be idempotent: each projection
// records the last sequence number it has processed per portfolio and skips
// events at or below that watermark, so redelivery after a retry or restart
// does not double-apply effects.
type Handler func(ctx context.Context, ev domain.Event) error

// HandlerError reports one subscriber failure during a publish.
type HandlerError struct {
	Subscriber string
	Err        error
}

func (e HandlerError) Error() string {
	return fmt.Sprintf("subscriber %s: %v", e.Subscriber, e.Err)
}

func (e HandlerError) Unwrap() error { return e.Err }

type subscription struct {
	name    string
	handler Handler
}

// Dispatcher is an in-process publish/subscribe bus keyed by event kind.
// Handler registration is explicit construction at startup, not runtime
// scanning.
type Dispatcher struct {
	mu       sync.RWMutex
	handlers map[domain.EventKind][]subscription
	logger   *logrus.Logger
}

// New creates an empty dispatcher.
func New(logger *logrus.Logger) *Dispatcher {
	return &Dispatcher{
		handlers: make(map[domain.EventKind][]subscription),
		logger:   logger,
	}
}

// Subscribe registers a named handler for one event kind. Multiple handlers
// per kind are allowed; registration order does not imply delivery-order
// guarantees across handlers, which must be independent.
func (d *Dispatcher) Subscribe(kind domain.EventKind, name string, h Handler) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.handlers[kind] = append(d.handlers[kind], subscription{name: name, handler: h})
}

// Publish delivers the event to every handler registered for its kind. A
// failing handler is isolated: its error is logged with the event's identity
// and collected, and delivery continues to the remaining handlers. The event
// is already durably appended by the time dispatch occurs, so failures never
// mark it failed in the log; the returned slice lets the caller retry or
// alert. An empty result means every handler succeeded.
func (d *Dispatcher) Publish(ctx context.Context, ev domain.Event) []HandlerError {
	d.mu.RLock()
	subs := append([]subscription(nil), d.handlers[ev.Kind()]...)
	d.mu.RUnlock()

	var failures []HandlerError
	for _, sub := range subs {
		if err := d.deliver(ctx, sub, ev); err != nil {
			d.logger.WithFields(logrus.Fields{
				"subscriber": sub.name,
				"kind":       ev.Kind(),
				"portfolio":  ev.Portfolio(),
				"sequence":   ev.Sequence(),
			}).WithError(err).Warn("event handler failed")
			failures = append(failures, HandlerError{Subscriber: sub.name, Err: err})
		}
	}
	return failures
}

// deliver invokes one handler, converting a panic into an error so one broken
// projection never takes down the publisher.
func (d *Dispatcher) deliver(ctx context.Context, sub subscription, ev domain.Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("handler panic: %v", r)
		}
	}()
	return sub.handler(ctx, ev)
}
