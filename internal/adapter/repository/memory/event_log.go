// Package memory provides an in-memory event log, used by tests and as the
// storage fallback when no database is configured.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/foliotrack/foliotrack-backend/internal/domain"
)

// EventLog implements domain.EventLog with per-portfolio slices guarded by a
// mutex. Events are kept in append order, which Append enforces to be
// sequence order.
type EventLog struct {
	mu     sync.RWMutex
	byPort map[domain.PortfolioID][]domain.Event
}

// NewEventLog creates an empty in-memory event log.
func NewEventLog() *EventLog {
	return &EventLog{byPort: make(map[domain.PortfolioID][]domain.Event)}
}

// Append stores the event. The sequence number must be strictly greater than
// the last appended sequence for the portfolio.
func (l *EventLog) Append(ctx context.Context, ev domain.Event) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	id := ev.Portfolio()
	stream := l.byPort[id]
	if n := len(stream); n > 0 && ev.Sequence() <= stream[n-1].Sequence() {
		return fmt.Errorf("%w: sequence %d already appended for %s",
			domain.ErrOutOfOrderEvent, ev.Sequence(), id)
	}
	l.byPort[id] = append(stream, ev)
	return nil
}

// LoadFrom returns the portfolio's events with sequence > after, in order.
func (l *EventLog) LoadFrom(ctx context.Context, id domain.PortfolioID, after int64) ([]domain.Event, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	var out []domain.Event
	for _, ev := range l.byPort[id] {
		if ev.Sequence() > after {
			out = append(out, ev)
		}
	}
	return out, nil
}

// LastSequence returns the highest appended sequence, zero for an empty
// stream.
func (l *EventLog) LastSequence(ctx context.Context, id domain.PortfolioID) (int64, error) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stream := l.byPort[id]
	if len(stream) == 0 {
		return 0, nil
	}
	return stream[len(stream)-1].Sequence(), nil
}
